package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"GapSight/internal/domain/models"
	"GapSight/internal/domain/service"
	"GapSight/internal/services/timeseries"
	xhttp "GapSight/pkg/http"
)

var (
	ErrNotConfigured = errors.New("upstream: base url is not configured")
	ErrUnknownReport = errors.New("upstream: unknown report")

	errInterrupted = errors.New("report interrupted")
)

// Recorder observes every upstream call.
type Recorder interface {
	ObserveUpstream(endpoint string, seconds float64, err error)
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets the number of retries after the first attempt and the base of the exponential backoff.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Client) {
		c.retries = attempts
		c.retryBase = base
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithHTTPOptions passes options through to the underlying pkg/http client.
func WithHTTPOptions(opts ...xhttp.ClientOption) Option {
	return func(c *Client) { c.httpOpts = append(c.httpOpts, opts...) }
}

// Client talks to the GapSight analytics API.
type Client struct {
	baseURL   string
	timeout   time.Duration
	retries   int
	retryBase time.Duration
	recorder  Recorder
	httpOpts  []xhttp.ClientOption
	http      *xhttp.Client
}

var _ service.AnalyticsSource = (*Client)(nil)

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   10 * time.Second,
		retries:   2,
		retryBase: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryBase <= 0 {
		c.retryBase = 200 * time.Millisecond
	}
	httpOpts := append([]xhttp.ClientOption{xhttp.WithTimeout(c.timeout)}, c.httpOpts...)
	c.http = xhttp.NewClient(httpOpts...)
	return c
}

func (c *Client) backoff() retry.Backoff {
	b := retry.NewExponential(c.retryBase)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(uint64(max(c.retries, 0)), b)
}

// do runs call with retries. 5xx, 429 and transport errors are retried; everything else is returned as is.
func (c *Client) do(ctx context.Context, path string, call func(ctx context.Context, url string) error) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	start := time.Now()
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := call(ctx, c.baseURL+path)
		if err != nil && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if c.recorder != nil {
		c.recorder.ObserveUpstream(path, time.Since(start).Seconds(), err)
	}
	if err != nil {
		return &Error{Path: path, Err: err}
	}
	return nil
}

// Error is a failed upstream call after retries.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string { return "upstream " + e.Path + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// IsUpstream reports whether err came from the upstream API rather than from this service.
func IsUpstream(err error) bool {
	var ue *Error
	return errors.As(err, &ue) || errors.Is(err, ErrNotConfigured)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, xhttp.ErrDecode) || errors.Is(err, errInterrupted) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// What remains is a transport failure from SendRequest.
	return true
}

// StatusCode extracts the upstream HTTP status from err.
func StatusCode(err error) (int, bool) {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

func (c *Client) getJSON(ctx context.Context, path string, dest interface{}) error {
	return c.do(ctx, path, func(ctx context.Context, url string) error {
		return c.http.SendAndParse(ctx, &xhttp.RequestOptions{Method: xhttp.MethodGet, URL: url}, dest)
	})
}

func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return err
	}
	if out.Status != "" && out.Status != "ok" {
		return &Error{Path: "/health", Err: fmt.Errorf("status %q", out.Status)}
	}
	return nil
}

func (c *Client) Summary(ctx context.Context) (models.Summary, error) {
	var out models.Summary
	err := c.getJSON(ctx, "/analytics/summary", &out)
	return out, err
}

func (c *Client) Followers(ctx context.Context) ([]timeseries.Sample, error) {
	var out []timeseries.Sample
	err := c.getJSON(ctx, "/analytics/followers", &out)
	return out, err
}

func (c *Client) TrendPrediction(ctx context.Context) ([]timeseries.TrendPoint, error) {
	var out []timeseries.TrendPoint
	err := c.getJSON(ctx, "/analytics/trend-prediction", &out)
	return out, err
}

func (c *Client) ContentTypes(ctx context.Context) ([]models.ContentTypeStat, error) {
	var out []models.ContentTypeStat
	err := c.getJSON(ctx, "/analytics/content-types", &out)
	return out, err
}

func (c *Client) FrequencyCorrelation(ctx context.Context) ([]models.FrequencyBucket, error) {
	var out []models.FrequencyBucket
	err := c.getJSON(ctx, "/analytics/frequency-correlation", &out)
	return out, err
}

func (c *Client) Competitors(ctx context.Context) ([]models.Competitor, error) {
	var out []models.Competitor
	err := c.getJSON(ctx, "/competitors/list", &out)
	return out, err
}

func (c *Client) Compare(ctx context.Context) ([]models.CompetitorStat, error) {
	var out []models.CompetitorStat
	err := c.getJSON(ctx, "/competitors/compare", &out)
	return out, err
}

func (c *Client) Gaps(ctx context.Context) ([]models.ContentGap, error) {
	var out []models.ContentGap
	err := c.getJSON(ctx, "/competitors/gaps", &out)
	return out, err
}

func (c *Client) Growth(ctx context.Context) ([]timeseries.Series, error) {
	var out []timeseries.Series
	err := c.getJSON(ctx, "/competitors/growth", &out)
	return out, err
}

func (c *Client) Insights(ctx context.Context) (models.Insights, error) {
	var out models.Insights
	err := c.getJSON(ctx, "/insights/", &out)
	return out, err
}

func (c *Client) Workflows(ctx context.Context) ([]models.Workflow, error) {
	var out []models.Workflow
	err := c.getJSON(ctx, "/insights/workflows", &out)
	return out, err
}

// Report streams /reports/{kind}.{format} into w. A retry after a partial write would
// duplicate bytes, so only failures before the body starts are retried.
func (c *Client) Report(ctx context.Context, kind, format string, w io.Writer) (models.Report, error) {
	name, err := ReportName(kind, format)
	if err != nil {
		return models.Report{}, err
	}
	var resp *xhttp.Response
	err = c.do(ctx, "/reports/"+name, func(ctx context.Context, url string) error {
		cw := &countingWriter{w: w}
		r, err := c.http.Stream(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodGet,
			URL:     url,
			Headers: map[string]string{"Accept": "*/*"},
		}, cw)
		if err != nil && cw.n > 0 {
			return fmt.Errorf("%w after %d bytes: %v", errInterrupted, cw.n, err)
		}
		resp = r
		return err
	})
	if err != nil {
		return models.Report{}, err
	}
	return models.Report{
		Name:               name,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		Size:               resp.Written,
	}, nil
}

var reportFormats = map[string][]string{
	"dashboard":   {"csv", "pdf"},
	"competitors": {"csv", "pdf"},
	"summary":     {"pdf"},
}

// ReportName validates a (kind, format) pair and returns the file name.
func ReportName(kind, format string) (string, error) {
	for _, f := range reportFormats[kind] {
		if f == format {
			return kind + "." + format, nil
		}
	}
	return "", fmt.Errorf("%w: %s.%s", ErrUnknownReport, kind, format)
}

// SplitReportName turns "dashboard.csv" into ("dashboard", "csv").
func SplitReportName(name string) (kind, format string, err error) {
	kind, format, ok := strings.Cut(name, ".")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownReport, name)
	}
	if _, err := ReportName(kind, format); err != nil {
		return "", "", err
	}
	return kind, format, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
