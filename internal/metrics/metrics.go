package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome labels for Classifications.
const (
	OutcomeClassified       = "classified"
	OutcomeNoCredential     = "no_credential"
	OutcomeModelError       = "model_error"
	OutcomeUnexpectedAnswer = "unexpected_answer"
	OutcomeUnauthenticated  = "unauthenticated"
	OutcomeInvalidArgument  = "invalid_argument"
)

// Metrics holds the collectors for one process. It owns its registry so
// tests can build independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	Classifications *prometheus.CounterVec
	ModelDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealsize_classifications_total",
				Help: "Classification requests by returned level and outcome.",
			},
			[]string{"level", "outcome"},
		),
		ModelDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mealsize_model_call_duration_seconds",
				Help:    "Latency of vision model calls.",
				Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"result"}, // ok | error
		),
	}
	m.Registry.MustRegister(
		m.Classifications,
		m.ModelDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordClassification counts one finished request. level is empty for
// rejected requests.
func (m *Metrics) RecordClassification(level, outcome string) {
	m.Classifications.WithLabelValues(level, outcome).Inc()
}

// ObserveModelCall records the latency of a single model call.
func (m *Metrics) ObserveModelCall(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ModelDuration.WithLabelValues(result).Observe(d.Seconds())
}
