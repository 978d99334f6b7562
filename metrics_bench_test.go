package linkauth

import (
	"testing"
	"time"
)

// loginPathMetricIDs are the counters touched by one password login and one
// refresh.
var loginPathMetricIDs = [...]MetricID{
	MetricLoginSuccess,
	MetricTokensIssued,
	MetricRefreshSuccess,
	MetricValidateSuccess,
}

func BenchmarkMetricsInc(b *testing.B) {
	for _, enabled := range []bool{true, false} {
		m := NewMetrics(MetricsConfig{Enabled: enabled})
		name := "disabled"
		if enabled {
			name = "enabled"
		}
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				m.Inc(MetricLoginSuccess)
			}
		})
	}
}

func BenchmarkMetricsIncLoginPathParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(loginPathMetricIDs[idx])
			idx = (idx + 1) % len(loginPathMetricIDs)
		}
	})
}

func BenchmarkMetricsObserveValidateLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 300 * time.Microsecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricValidateLatency, d)
		}
	})
}
