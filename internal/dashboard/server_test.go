package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fundingwatch/config"
	"fundingwatch/internal/metrics"
	"fundingwatch/internal/monitor"
	"fundingwatch/logger"
)

type fakeChecker struct {
	report monitor.Report
	err    error
	calls  int
	last   *monitor.Report
}

func (f *fakeChecker) Check(context.Context) (monitor.Report, error) {
	f.calls++
	if f.err != nil {
		return monitor.Report{}, f.err
	}
	rep := f.report
	f.last = &rep
	return rep, nil
}

func (f *fakeChecker) Last() (monitor.Report, bool) {
	if f.last == nil {
		return monitor.Report{}, false
	}
	return *f.last, true
}

func newTestServer(t *testing.T, checker Checker) *Server {
	t.Helper()
	srv := NewServer(config.ServerConfig{Enabled: true, Address: "127.0.0.1:0", MetricHistory: 10}, checker, logger.Logger())
	if srv == nil {
		t.Fatal("expected server, got nil")
	}
	t.Cleanup(srv.cleanup)
	return srv
}

func serve(srv *Server, path string) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                         "0.0.0.0:8000",
		"  :9090  ":                "0.0.0.0:9090",
		"localhost":                "localhost:8000",
		"0.0.0.0:80":               "0.0.0.0:80",
		"[::1]:443":                "[::1]:443",
		"::1":                      "[::1]:8000",
		"*:8080":                   "0.0.0.0:8080",
		"http://10.0.0.7:8080":     "10.0.0.7:8080",
		"https://10.0.0.7":         "10.0.0.7:8000",
		"http://:7070":             "0.0.0.0:7070",
		"https://funding.example/": "funding.example:8000",
	}

	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewServerDisabled(t *testing.T) {
	if srv := NewServer(config.ServerConfig{}, &fakeChecker{}, logger.Logger()); srv != nil {
		t.Fatal("expected nil server when disabled")
	}
	var srv *Server
	if srv.Address() != "" {
		t.Fatal("nil server should report an empty address")
	}
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("nil server Run: %v", err)
	}
}

func TestNewServerNormalizesConfiguredAddress(t *testing.T) {
	srv := NewServer(config.ServerConfig{Enabled: true, Address: ":9000"}, &fakeChecker{}, logger.Logger())
	t.Cleanup(srv.cleanup)
	if got := srv.Address(); got != "0.0.0.0:9000" {
		t.Fatalf("server address = %q, want %q", got, "0.0.0.0:9000")
	}
}

func TestCheckFundingSuccess(t *testing.T) {
	checker := &fakeChecker{report: monitor.Report{RunID: "run-1", Messages: []string{"digest"}}}
	srv := newTestServer(t, checker)

	res := serve(srv, "/check_funding")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", res.Code)
	}
	if body := res.Body.String(); body != "Funding check done, alerts sent if applicable." {
		t.Fatalf("unexpected body %q", body)
	}
	if checker.calls != 1 {
		t.Fatalf("expected one check, got %d", checker.calls)
	}
}

func TestCheckFundingFailure(t *testing.T) {
	srv := newTestServer(t, &fakeChecker{err: errors.New("run cycle: context canceled")})

	res := serve(srv, "/check_funding")
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", res.Code)
	}
	if body := res.Body.String(); body != "Error: run cycle: context canceled" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHealthz(t *testing.T) {
	res := serve(newTestServer(t, &fakeChecker{}), "/healthz")
	if res.Code != http.StatusOK || strings.TrimSpace(res.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("unexpected response %d %q", res.Code, res.Body.String())
	}
}

func TestLastReport(t *testing.T) {
	checker := &fakeChecker{report: monitor.Report{RunID: "run-42", Upcoming: 3, Delivered: 2}}
	srv := newTestServer(t, checker)

	if res := serve(srv, "/api/last"); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before the first check, got %d", res.Code)
	}

	serve(srv, "/check_funding")
	res := serve(srv, "/api/last")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", res.Code)
	}
	var got monitor.Report
	if err := json.Unmarshal(res.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if got.RunID != "run-42" || got.Upcoming != 3 || got.Delivered != 2 {
		t.Fatalf("unexpected report %+v", got)
	}
}

func TestMetricsEndpointEmitsStoredMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeChecker{})

	metrics.EmitMetric(srv.log, "funding_cycle", "upcoming_records", 5, "gauge", logger.Fields{"unit": "count"})

	res := serve(srv, "/api/metrics")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	var payload struct {
		Metrics []struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if len(payload.Metrics) == 0 || payload.Metrics[len(payload.Metrics)-1].Name != "upcoming_records" {
		t.Fatalf("unexpected metrics %+v", payload.Metrics)
	}
}

func TestLogsEndpointCapturesServerLogs(t *testing.T) {
	srv := newTestServer(t, &fakeChecker{err: errors.New("boom")})
	serve(srv, "/check_funding")

	res := serve(srv, "/api/logs")
	if !strings.Contains(res.Body.String(), "manual funding check failed") {
		t.Fatalf("expected failure to be captured, got %s", res.Body.String())
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	metrics.Init()
	res := serve(newTestServer(t, &fakeChecker{}), "/metrics")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "fundingwatch_cycles_total") {
		t.Fatalf("unexpected prometheus output %d", res.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := newTestServer(t, &fakeChecker{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestPrometheusRouteCanBeDisabled(t *testing.T) {
	srv := NewServer(config.ServerConfig{Enabled: true}, &fakeChecker{}, logger.Logger(), WithPrometheus(false))
	t.Cleanup(srv.cleanup)
	if res := serve(srv, "/metrics"); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with prometheus disabled, got %d", res.Code)
	}
}

type staticStats struct{ runs, skipped int64 }

func (s staticStats) Stats() (int64, int64) { return s.runs, s.skipped }

func TestStatusIncludesSchedulerStats(t *testing.T) {
	srv := NewServer(config.ServerConfig{Enabled: true}, &fakeChecker{}, logger.Logger(), WithScheduler(staticStats{runs: 7, skipped: 2}))
	t.Cleanup(srv.cleanup)

	res := serve(srv, "/api/status")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", res.Code)
	}
	var payload struct {
		Counters  logger.ReportSnapshot `json:"counters"`
		Scheduler struct {
			Runs    int64 `json:"runs"`
			Skipped int64 `json:"skipped"`
		} `json:"scheduler"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload.Scheduler.Runs != 7 || payload.Scheduler.Skipped != 2 {
		t.Fatalf("unexpected scheduler stats %+v", payload.Scheduler)
	}
}
