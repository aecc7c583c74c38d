package instrumentation

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// NewMetrics registers against the default registry, so it is called exactly
// once for the whole test binary.
func TestMetricsRecording(t *testing.T) {
	m := NewMetrics()

	m.RecordTicks(100, map[string]int{
		"invalid":       3,
		"duplicate_seq": 1,
		"unparsable":    0, // zero counts must not create a series
	})
	if got := testutil.ToFloat64(m.TicksProcessed); got != 100 {
		t.Errorf("ticks processed = %v, want 100", got)
	}
	if got := testutil.ToFloat64(m.TicksDropped.WithLabelValues("invalid")); got != 3 {
		t.Errorf("invalid drops = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.TicksDropped.WithLabelValues("duplicate_seq")); got != 1 {
		t.Errorf("duplicate drops = %v, want 1", got)
	}

	m.RecordSession("tick", 12.5)
	m.RecordSession("minute_fallback", 0.2)
	m.RecordSession("tick", 8.0)
	if got := testutil.ToFloat64(m.SessionsTotal.WithLabelValues("tick")); got != 2 {
		t.Errorf("tick sessions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SessionsTotal.WithLabelValues("minute_fallback")); got != 1 {
		t.Errorf("fallback sessions = %v, want 1", got)
	}

	m.RecordAnomaly("density_burst")
	if got := testutil.ToFloat64(m.AnomaliesTotal.WithLabelValues("density_burst")); got != 1 {
		t.Errorf("anomalies = %v, want 1", got)
	}

	m.RecordError("pipeline", "run_failed")
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("pipeline", "run_failed")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}
