package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GapSight/internal/services/timeseries"
)

const growthBody = `[
	{"name":"acme","data":[{"date":"2024-01-01","followers":10},{"date":"2024-01-02","followers":12}]},
	{"name":"globex","data":[{"date":"2024-01-02","followers":5}]}
]`

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/analytics/summary", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"follower_count":1200,"follower_growth_pct":3.5,"avg_engagement":4.25,"top_content_type":"reel","posts_per_week":5}`))
	})
	mux.HandleFunc("/competitors/gaps", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"competitor":"acme","their_top_content":"carousel","your_usage":2,"gap":4}]`))
	})
	mux.HandleFunc("/competitors/growth", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(growthBody))
	})
	mux.HandleFunc("/reports/dashboard.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("date,followers\n2024-01-01,10\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--color", "never", "--timeout", "5s"))
	err := root.Execute()
	return out.String(), err
}

func TestSummary(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, "summary", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "3.50%")
	assert.Contains(t, out, "reel")
}

func TestGrowthTable(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, "growth", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-01")
	assert.Contains(t, out, "ACME")
	assert.Contains(t, out, "-")
	assert.Contains(t, out, "2 dates, 2 series")
}

func TestGrowthJSON(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, "growth", "--json", "--api-url", srv.URL)
	require.NoError(t, err)

	var rows []timeseries.AlignedRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-01", rows[0].Date)
	_, ok := rows[0].Value("globex")
	assert.False(t, ok)
	v, _ := rows[1].Value("globex")
	assert.Equal(t, int64(5), v)
}

func TestGrowthRejectsUnknownPolicy(t *testing.T) {
	srv := fakeAPI(t)
	_, err := run(t, "growth", "--policy", "newest", "--api-url", srv.URL)
	assert.Error(t, err)
}

func TestGapsTable(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, "gaps", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "carousel")
	assert.Contains(t, out, "4")
}

func TestReportDownload(t *testing.T) {
	srv := fakeAPI(t)
	dst := filepath.Join(t.TempDir(), "out.csv")
	out, err := run(t, "report", "dashboard.csv", "-o", dst, "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "[OK] saved dashboard.csv")

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "date,followers\n2024-01-01,10\n", string(b))
}

func TestReportUnknownName(t *testing.T) {
	srv := fakeAPI(t)
	dst := filepath.Join(t.TempDir(), "out.csv")
	_, err := run(t, "report", "payroll.xlsx", "-o", dst, "--api-url", srv.URL)
	assert.Error(t, err)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWatchOnce(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"growth","data":{"rows":[],"series":["acme"],"latest":{"acme":42},"source":"archive"},"sent_at":"2024-01-02T10:00:00Z"}`))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	out, err := run(t, "watch", "--once", "--server-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "connected to ws://")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "(archive)")
}

func TestConfigFileAndValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: http://api:8000\ntimeout: 3s\n"), 0o600))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://api:8000", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "auto", cfg.Color)

	require.NoError(t, os.WriteFile(path, []byte("color: rainbow\n"), 0o600))
	_, err = LoadConfig(path, nil)
	assert.ErrorContains(t, err, "invalid color mode")
}

func TestVersionNeedsNoConfig(t *testing.T) {
	SetVersion("1.2.3")
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "gapsightctl 1.2.3\n", out.String())
}
