package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/linkauth"
)

type fakeSource struct {
	snapshot linkauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() linkauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := New(fakeSource{
		snapshot: linkauth.MetricsSnapshot{
			Counters:   map[linkauth.MetricID]uint64{},
			Histograms: map[linkauth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: linkauth.MetricsSnapshot{
			Counters: map[linkauth.MetricID]uint64{
				linkauth.MetricLoginSuccess:   7,
				linkauth.MetricReplayDetected: 2,
			},
			Histograms: map[linkauth.MetricID][]uint64{
				linkauth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"linkauth_login_success_total 7",
		"linkauth_replay_detected_total 2",
		"linkauth_register_success_total 0",
		`linkauth_validate_latency_seconds_bucket{le="0.005"} 1`,
		`linkauth_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"linkauth_validate_latency_seconds_count 36",
		"linkauth_audit_dropped_total 2",
		"# TYPE linkauth_login_success_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSkipsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := New(fakeSource{
		snapshot: linkauth.MetricsSnapshot{
			Counters:   map[linkauth.MetricID]uint64{linkauth.MetricLogout: 1},
			Histograms: map[linkauth.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "validate_latency") {
		t.Fatalf("unexpected histogram in output:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := New(fakeSource{
		snapshot: linkauth.MetricsSnapshot{
			Counters:   map[linkauth.MetricID]uint64{linkauth.MetricLoginSuccess: 1},
			Histograms: map[linkauth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{
		snapshot: linkauth.MetricsSnapshot{
			Counters: map[linkauth.MetricID]uint64{
				linkauth.MetricLoginSuccess:   1000,
				linkauth.MetricLoginFailure:   40,
				linkauth.MetricRefreshSuccess: 800,
				linkauth.MetricRefreshFailure: 10,
			},
			Histograms: map[linkauth.MetricID][]uint64{
				linkauth.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	for b.Loop() {
		_ = exp.Render()
	}
}
