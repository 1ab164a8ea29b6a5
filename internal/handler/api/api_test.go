package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GapSight/internal/service/ratelimit"
	"GapSight/internal/services/timeseries"
	"GapSight/internal/services/upstream"
	"GapSight/internal/usecase"
	xhttp "GapSight/pkg/http"
	xlogger "GapSight/pkg/logger"
)

const growthJSON = `[
	{"name":"rival_a","data":[{"date":"2024-01-02","followers":120},{"date":"2024-01-01","followers":100}]},
	{"name":"rival_b","data":[{"date":"2024-01-02","followers":80}]}
]`

// fakeUpstream answers each path with a fixed body; paths missing from the map are 500s.
func fakeUpstream(t *testing.T, routes map[string]string) *upstream.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/reports/") {
			w.Header().Set("Content-Type", "text/csv")
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return upstream.New(srv.URL, upstream.WithRetry(0, time.Millisecond))
}

type fakeHistory struct {
	accounts []string
	from, to time.Time
}

func (f *fakeHistory) History(_ context.Context, accounts []string, from, to time.Time) ([]timeseries.Series, error) {
	f.accounts, f.from, f.to = accounts, from, to
	return []timeseries.Series{{Name: "rival_a", Data: []timeseries.Sample{{Date: "2024-01-01", Followers: 90}}}}, nil
}

type env struct {
	srv  *xhttp.Server
	hub  *GrowthHub
	hist *fakeHistory
}

func newEnv(t *testing.T, routes map[string]string, limiter *ratelimit.Limiter) *env {
	t.Helper()
	src := fakeUpstream(t, routes)
	log := xlogger.NewNop()
	opts := usecase.Options{Logger: log}
	hist := &fakeHistory{}
	competitors := usecase.NewCompetitorsUseCase(src, opts, usecase.WithHistory(hist, 30))
	hub := NewGrowthHub(log, competitors, nil)
	t.Cleanup(hub.Close)

	handlers := xhttp.Handlers{
		NewHealthHandler(log, src),
		NewDashboardHandler(log, usecase.NewDashboardUseCase(src, opts)),
		NewCompetitorsHandler(log, competitors),
		NewInsightsHandler(log, usecase.NewInsightsUseCase(src, opts, nil), limiter),
		NewReportsHandler(log, usecase.NewReportsUseCase(src, log), limiter),
		hub,
	}
	return &env{
		srv:  xhttp.NewServer(handlers, xhttp.WithMetricsPath(""), xhttp.WithLogger(log)),
		hub:  hub,
		hist: hist,
	}
}

func (e *env) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.1:5000"
	rec := httptest.NewRecorder()
	e.srv.Echo().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestGrowthAligned(t *testing.T) {
	e := newEnv(t, map[string]string{"/competitors/growth": growthJSON}, nil)

	rec := e.do(http.MethodGet, "/api/competitors/growth")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var chart struct {
		Rows   []map[string]interface{} `json:"rows"`
		Series []string                 `json:"series"`
		Latest map[string]int64         `json:"latest"`
		Source string                   `json:"source"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &chart))
	require.Len(t, chart.Rows, 2)
	assert.Equal(t, "2024-01-01", chart.Rows[0]["date"])
	assert.NotContains(t, chart.Rows[0], "rival_b")
	assert.EqualValues(t, 80, chart.Rows[1]["rival_b"])
	assert.Equal(t, []string{"rival_a", "rival_b"}, chart.Series)
	assert.Equal(t, map[string]int64{"rival_a": 120, "rival_b": 80}, chart.Latest)
	assert.Equal(t, usecase.GrowthSourceUpstream, chart.Source)
}

func TestGrowthErrors(t *testing.T) {
	tests := []struct {
		name   string
		routes map[string]string
		target string
		status int
		code   string
	}{
		{"bad policy", map[string]string{"/competitors/growth": growthJSON}, "/api/competitors/growth?policy=random", http.StatusBadRequest, "ERR_ONEOF"},
		{"malformed date", map[string]string{"/competitors/growth": `[{"name":"a","data":[{"date":"01/02/2024","followers":1}]}]`}, "/api/competitors/growth", http.StatusUnprocessableEntity, "ERR_INVALID_SERIES"},
		{"duplicate under reject", map[string]string{"/competitors/growth": `[{"name":"a","data":[{"date":"2024-01-01","followers":1},{"date":"2024-01-01","followers":2}]}]`}, "/api/competitors/growth?policy=reject", http.StatusUnprocessableEntity, "ERR_INVALID_SERIES"},
		{"bad policy on png", map[string]string{"/competitors/growth": growthJSON}, "/api/competitors/growth.png?policy=newest", http.StatusBadRequest, "ERR_ONEOF"},
		{"png size out of range", map[string]string{}, "/api/competitors/growth.png?width=10", http.StatusBadRequest, "ERR_GTE"},
		{"charts disabled", map[string]string{"/competitors/growth": growthJSON}, "/api/competitors/growth.png", http.StatusServiceUnavailable, "ERR_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newEnv(t, tt.routes, nil).do(http.MethodGet, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestGrowthDuplicatePolicy(t *testing.T) {
	dup := `[{"name":"a","data":[{"date":"2024-01-01","followers":100},{"date":"2024-01-01","followers":110}]}]`

	for target, want := range map[string]int64{
		"/api/competitors/growth":              100,
		"/api/competitors/growth?policy=LAST":  110,
		"/api/competitors/growth?policy=First": 100,
	} {
		t.Run(target, func(t *testing.T) {
			rec := newEnv(t, map[string]string{"/competitors/growth": dup}, nil).do(http.MethodGet, target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var chart struct {
				Latest map[string]int64 `json:"latest"`
			}
			require.NoError(t, json.Unmarshal(decode(t, rec).Data, &chart))
			assert.Equal(t, want, chart.Latest["a"])
		})
	}
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	e := newEnv(t, map[string]string{}, nil)

	rec := e.do(http.MethodGet, "/api/insights")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_UPSTREAM")
	assert.NotContains(t, rec.Body.String(), "boom", "upstream bodies are not leaked")
}

func TestCompetitorsFallsBackToArchive(t *testing.T) {
	e := newEnv(t, map[string]string{
		"/competitors/compare": `[{"username":"rival_a","follower_count":120,"avg_engagement":3.5}]`,
		"/competitors/gaps":    `[]`,
	}, nil)

	rec := e.do(http.MethodGet, "/api/competitors")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view struct {
		GrowthSource string           `json:"growth_source"`
		Latest       map[string]int64 `json:"latest"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
	assert.Equal(t, usecase.GrowthSourceArchive, view.GrowthSource)
	assert.Equal(t, int64(90), view.Latest["rival_a"])
}

func TestHistory(t *testing.T) {
	e := newEnv(t, map[string]string{}, nil)

	rec := e.do(http.MethodGet, "/api/competitors/history?from=2024-01-01&to=2024-01-31&accounts=rival_a,%20rival_b,rival_a")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"rival_a", "rival_b"}, e.hist.accounts)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), e.hist.from)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), e.hist.to)

	rec = e.do(http.MethodGet, "/api/competitors/history?to=1704088800")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), e.hist.to, "unix seconds are exact")

	rec = e.do(http.MethodGet, "/api/competitors/history?to=2024-01-01T06:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), e.hist.to)

	rec = e.do(http.MethodGet, "/api/competitors/history?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_TIME")

	rec = e.do(http.MethodGet, "/api/competitors/history?from=2024-02-01&to=2024-01-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardDegrades(t *testing.T) {
	e := newEnv(t, map[string]string{
		"/analytics/summary":   `{"follower_count":24500,"top_content_type":"Reels"}`,
		"/analytics/followers": `[{"date":"2024-01-01","followers":24000},{"date":"2024-01-02","followers":24500}]`,
	}, nil)

	rec := e.do(http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ov struct {
		Trend  []map[string]interface{} `json:"trend"`
		Errors map[string]string        `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &ov))
	assert.Len(t, ov.Trend, 2, "trend falls back to the observed followers")
	assert.Contains(t, ov.Errors, "trend")
	assert.Contains(t, ov.Errors, "frequency")

	e = newEnv(t, map[string]string{}, nil)
	assert.Equal(t, http.StatusBadGateway, e.do(http.MethodGet, "/api/dashboard").Code)
}

func TestReportDownload(t *testing.T) {
	e := newEnv(t, map[string]string{"/reports/dashboard.csv": "metric,value\nfollowers,24500\n"}, ratelimit.PerMinute(2))

	rec := e.do(http.MethodGet, "/api/reports/dashboard.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metric,value\nfollowers,24500\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dashboard.csv")

	rec = e.do(http.MethodGet, "/api/reports/passwd")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, "/api/reports/summary.pdf")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_RATE_LIMITED")
}

func TestReportUpstreamFailureIsJSON(t *testing.T) {
	e := newEnv(t, map[string]string{}, nil)

	rec := e.do(http.MethodGet, "/api/reports/competitors.pdf")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestInsightsRefreshInline(t *testing.T) {
	e := newEnv(t, map[string]string{
		"/insights/":          `{"recommendations":["post more reels"],"source":"rules"}`,
		"/insights/workflows": `[]`,
	}, nil)

	rec := e.do(http.MethodPost, "/api/insights/refresh")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"queued":false}`, string(decode(t, rec).Data))
}

func TestHealth(t *testing.T) {
	e := newEnv(t, map[string]string{"/health": `{"status":"ok"}`}, nil)
	rec := e.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	h := NewHealthHandler(xlogger.NewNop(), fakeUpstream(t, map[string]string{"/health": `{"status":"ok"}`}))
	h.AddCheck("clickhouse", func(context.Context) error { return assert.AnError })
	res := h.run(context.Background())
	assert.Equal(t, "degraded", res.Status)
	assert.Equal(t, "ok", res.Checks["upstream"])
	assert.Equal(t, assert.AnError.Error(), res.Checks["clickhouse"])
}

func TestUnknownRouteIsEnveloped(t *testing.T) {
	rec := newEnv(t, map[string]string{}, nil).do(http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decode(t, rec).Status)
}

func TestGrowthWebsocket(t *testing.T) {
	e := newEnv(t, map[string]string{"/competitors/growth": growthJSON}, nil)
	srv := httptest.NewServer(e.srv.Echo())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/growth", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var frame struct {
		Type string `json:"type"`
		Data *struct {
			Series []string         `json:"series"`
			Latest map[string]int64 `json:"latest"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "growth", frame.Type)
	require.NotNil(t, frame.Data)
	assert.Equal(t, []string{"rival_a", "rival_b"}, frame.Data.Series)

	require.Eventually(t, func() bool { return e.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	a, err := timeseries.Align([]timeseries.Series{{Name: "rival_c", Data: []timeseries.Sample{{Date: "2024-02-01", Followers: 5}}}})
	require.NoError(t, err)
	e.hub.GrowthUpdated(a)

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, []string{"rival_c"}, frame.Data.Series)
	assert.Equal(t, int64(5), frame.Data.Latest["rival_c"])
}
