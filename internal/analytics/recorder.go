package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hemocount/internal/core"
)

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder exports session recompute timings as a histogram and
// outcomes as a counter, both labelled by operation.
type PrometheusRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusRecorder registers the recompute collectors with reg.
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) (*PrometheusRecorder, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	r := &PrometheusRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_duration_seconds",
			Help:      "Duration of session recomputes by operation.",
			Buckets:   []float64{.00001, .0001, .001, .01, .1},
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_total",
			Help:      "Session recomputes by operation and status.",
		}, []string{"operation", "status"}),
	}
	for _, c := range []prometheus.Collector{r.durations, r.results} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register recompute metrics: %w", err)
		}
	}
	return r, nil
}

// Observe implements core.MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}
