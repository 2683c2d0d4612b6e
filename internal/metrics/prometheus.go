package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	deniedTotal       prometheus.Counter
}

var _ Recorder = &PrometheusRecorder{}

// NewPrometheusRecorder creates a new Prometheus recorder registered on reg,
// nil uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		executionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sshmcp_executions_total",
				Help: "Total number of gateway executions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		executionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sshmcp_execution_duration_seconds",
				Help:    "Duration of gateway executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		deniedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sshmcp_denied_total",
				Help: "Total number of commands rejected by the allowlist",
			},
		),
	}
}

// ObserveExecution records metrics for a finished gateway call.
func (p *PrometheusRecorder) ObserveExecution(op model.Operation, outcome model.Outcome, duration time.Duration) {
	p.executionsTotal.WithLabelValues(string(op), string(outcome)).Inc()
	p.executionDuration.WithLabelValues(string(op)).Observe(duration.Seconds())
	if outcome == model.OutcomeDenied {
		p.deniedTotal.Inc()
	}
}
