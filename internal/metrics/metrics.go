// Package metrics defines the Prometheus collectors exposed at /metrics.
// Every Record method is safe to call on a nil receiver so components can be
// constructed without metrics in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Label values shared across collectors.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	LookupComparables = "comparables"
	LookupExemptions  = "exemptions"
	LookupSocialProof = "social_proof"
	LookupDeadlines   = "deadlines"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Histogram bucket configuration.
const (
	bucketStart1ms = 0.001
	bucketFactor2  = 2
	bucketCount12  = 12
)

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Set bundles every collector of the service.
type Set struct {
	HTTP     *HTTPMetrics
	Analysis *AnalysisMetrics
	Appeals  *AppealMetrics
}

// NewSet creates and registers all collectors on registry.
func NewSet(registry *prometheus.Registry) (*Set, error) {
	httpMetrics, err := NewHTTPMetrics(registry)
	if err != nil {
		return nil, err
	}
	analysisMetrics, err := NewAnalysisMetrics(registry)
	if err != nil {
		return nil, err
	}
	appealMetrics, err := NewAppealMetrics(registry)
	if err != nil {
		return nil, err
	}
	return &Set{HTTP: httpMetrics, Analysis: analysisMetrics, Appeals: appealMetrics}, nil
}
