package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics contains Prometheus metrics for opportunity analyses
type AnalysisMetrics struct {
	analysesTotal        *prometheus.CounterVec
	analysisDuration     prometheus.Histogram
	opportunityScore     prometheus.Histogram
	lookupFailuresTotal  *prometheus.CounterVec
	socialProofCacheHits *prometheus.CounterVec
}

// NewAnalysisMetrics creates and registers new analysis metrics
func NewAnalysisMetrics(registry *prometheus.Registry) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AnalysisMetrics) initMetrics() {
	m.analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyses_total",
			Help: "Total number of property analyses",
		},
		[]string{"strategy", "status"}, // strategy: file_mv, file_uni, file_both, do_not_file, none on error
	)

	m.analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Time taken to gather inputs and analyze a property",
			Buckets: prometheus.ExponentialBuckets(bucketStart1ms, bucketFactor2, bucketCount12),
		},
	)

	m.opportunityScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_opportunity_score",
			Help:    "Distribution of opportunity scores",
			Buckets: prometheus.LinearBuckets(10, 10, 9), // 10..90
		},
	)

	m.lookupFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_optional_lookup_failures_total",
			Help: "Optional analysis inputs that degraded to empty",
		},
		[]string{"lookup"}, // lookup: comparables, exemptions, social_proof, deadlines
	)

	m.socialProofCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_social_proof_cache_total",
			Help: "Social proof cache lookups",
		},
		[]string{"result"}, // result: hit, miss
	)
}

// Describe implements the Collector interface
func (m *AnalysisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.analysesTotal.Describe(ch)
	m.analysisDuration.Describe(ch)
	m.opportunityScore.Describe(ch)
	m.lookupFailuresTotal.Describe(ch)
	m.socialProofCacheHits.Describe(ch)
}

// Collect implements the Collector interface
func (m *AnalysisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.analysesTotal.Collect(ch)
	m.analysisDuration.Collect(ch)
	m.opportunityScore.Collect(ch)
	m.lookupFailuresTotal.Collect(ch)
	m.socialProofCacheHits.Collect(ch)
}

// RecordAnalysis records a completed analysis.
func (m *AnalysisMetrics) RecordAnalysis(strategy string, score int, seconds float64) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(strategy, StatusSuccess).Inc()
	m.analysisDuration.Observe(seconds)
	m.opportunityScore.Observe(float64(score))
}

// RecordAnalysisError records an analysis that could not be produced.
func (m *AnalysisMetrics) RecordAnalysisError(seconds float64) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues("none", StatusError).Inc()
	m.analysisDuration.Observe(seconds)
}

// RecordLookupFailure records an optional input that degraded.
func (m *AnalysisMetrics) RecordLookupFailure(lookup string) {
	if m == nil {
		return
	}
	m.lookupFailuresTotal.WithLabelValues(lookup).Inc()
}

// RecordSocialProofCache records a social proof cache hit or miss.
func (m *AnalysisMetrics) RecordSocialProofCache(result string) {
	if m == nil {
		return
	}
	m.socialProofCacheHits.WithLabelValues(result).Inc()
}
