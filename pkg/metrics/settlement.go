package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records loyalty-points settlement outcomes per kind
// (earned, redeemed).
type SettlementMetrics struct {
	applied *prometheus.CounterVec
	skipped *prometheus.CounterVec
	failure *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "points_settlement_applied",
		Help: "Ledger entries posted by settlement.",
	}, []string{"kind"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "points_settlement_skipped",
		Help: "Settlement runs skipped because the entry already existed.",
	}, []string{"kind"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "points_settlement_failure",
		Help: "Settlement runs that failed to post.",
	}, []string{"kind"})
	reg.MustRegister(applied, skipped, failure)
	return &SettlementMetrics{
		applied: applied,
		skipped: skipped,
		failure: failure,
	}
}

// IncApplied increments the applied counter for the given entry kind.
func (s *SettlementMetrics) IncApplied(kind string) {
	if s == nil || s.applied == nil {
		return
	}
	s.applied.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncSkipped increments the skipped counter for the given entry kind.
func (s *SettlementMetrics) IncSkipped(kind string) {
	if s == nil || s.skipped == nil {
		return
	}
	s.skipped.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailure increments the failure counter for the given entry kind.
func (s *SettlementMetrics) IncFailure(kind string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return kind
}
