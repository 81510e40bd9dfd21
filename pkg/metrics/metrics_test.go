package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSettlementMetricsCountsPerKind(t *testing.T) {
	m := NewSettlementMetrics(prometheus.NewRegistry())

	m.IncApplied("earned")
	m.IncApplied("earned")
	m.IncSkipped("redeemed")
	m.IncFailure("")

	if got := testutil.ToFloat64(m.applied.WithLabelValues("earned")); got != 2 {
		t.Fatalf("applied counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.skipped.WithLabelValues("redeemed")); got != 1 {
		t.Fatalf("skipped counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("empty kind should count under unknown, got %v", got)
	}
}

func TestSettlementMetricsNilReceiverIsSafe(t *testing.T) {
	var m *SettlementMetrics
	m.IncApplied("earned")
	m.IncSkipped("earned")
	m.IncFailure("earned")

	unregistered := NewSettlementMetrics(nil)
	unregistered.IncApplied("earned")
}

func TestWorkerMetricsRecordsDeliveries(t *testing.T) {
	m := NewWorkerMetrics(prometheus.NewRegistry())

	m.ObserveDelivery("order.approved", 30*time.Millisecond)
	m.IncPublished("order.approved")
	m.IncFailure("order.rejected")

	if got := testutil.ToFloat64(m.published.WithLabelValues("order.approved")); got != 1 {
		t.Fatalf("published counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("order.rejected")); got != 1 {
		t.Fatalf("failure counter = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 1 {
		t.Fatalf("duration series = %d, want 1", got)
	}
}
