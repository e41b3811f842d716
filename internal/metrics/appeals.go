package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AppealMetrics contains Prometheus metrics for the appeal lifecycle
type AppealMetrics struct {
	appealsCreatedTotal   prometheus.Counter
	transitionsTotal      *prometheus.CounterVec
	guardRejectionsTotal  *prometheus.CounterVec
	stageConflictsTotal   *prometheus.CounterVec
	paymentsTotal         *prometheus.CounterVec
	successFeeBilledTotal prometheus.Counter
	successFeeAmount      prometheus.Histogram
}

// NewAppealMetrics creates and registers new appeal metrics
func NewAppealMetrics(registry *prometheus.Registry) (*AppealMetrics, error) {
	m := &AppealMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AppealMetrics) initMetrics() {
	m.appealsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appeals_created_total",
			Help: "Total number of appeals created from a recommendation",
		},
	)

	m.transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appeal_transitions_total",
			Help: "Total number of applied stage transitions",
		},
		[]string{"from", "to"},
	)

	m.guardRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appeal_guard_rejections_total",
			Help: "Total number of lifecycle actions rejected by a guard",
		},
		[]string{"action", "kind"}, // kind: not_allowed_yet, not_allowed_anymore
	)

	m.stageConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appeal_stage_conflicts_total",
			Help: "Conditional writes that lost a race",
		},
		[]string{"outcome"}, // outcome: retried, exhausted
	)

	m.paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appeal_payments_total",
			Help: "Total number of recorded payments",
		},
		[]string{"kind"},
	)

	m.successFeeBilledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appeal_success_fees_billed_total",
			Help: "Total number of success fees billed",
		},
	)

	m.successFeeAmount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "appeal_success_fee_amount_dollars",
			Help:    "Distribution of billed success fees",
			Buckets: []float64{25, 50, 100, 250, 500, 750, 1000},
		},
	)
}

// Describe implements the Collector interface
func (m *AppealMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *AppealMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *AppealMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.appealsCreatedTotal,
		m.transitionsTotal,
		m.guardRejectionsTotal,
		m.stageConflictsTotal,
		m.paymentsTotal,
		m.successFeeBilledTotal,
		m.successFeeAmount,
	}
}

// RecordCreated records a new appeal.
func (m *AppealMetrics) RecordCreated() {
	if m == nil {
		return
	}
	m.appealsCreatedTotal.Inc()
}

// RecordTransition records an applied stage change.
func (m *AppealMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordGuardRejection records a rejected lifecycle action.
func (m *AppealMetrics) RecordGuardRejection(action, kind string) {
	if m == nil {
		return
	}
	m.guardRejectionsTotal.WithLabelValues(action, kind).Inc()
}

// RecordStageConflict records a lost conditional write; exhausted is true
// when the caller gave up retrying.
func (m *AppealMetrics) RecordStageConflict(exhausted bool) {
	if m == nil {
		return
	}
	outcome := "retried"
	if exhausted {
		outcome = "exhausted"
	}
	m.stageConflictsTotal.WithLabelValues(outcome).Inc()
}

// RecordPayment records a payment of the given kind.
func (m *AppealMetrics) RecordPayment(kind string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(kind).Inc()
}

// RecordSuccessFee records a newly billed success fee.
func (m *AppealMetrics) RecordSuccessFee(amount float64) {
	if m == nil {
		return
	}
	m.successFeeBilledTotal.Inc()
	m.successFeeAmount.Observe(amount)
}
