package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielterwiel/stepvis/executor"
	"github.com/danielterwiel/stepvis/guard"
)

// Metrics holds the Prometheus instruments for the execution API.
type Metrics struct {
	Executions *prometheus.CounterVec
	Faults     *prometheus.CounterVec
	Duration   prometheus.Histogram
	Steps      prometheus.Histogram
}

// NewMetrics registers all execution metrics with the given registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepvis_executions_total",
				Help: "Total number of executions by outcome",
			},
			[]string{"outcome"},
		),
		Faults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepvis_faults_total",
				Help: "Total number of guard faults by kind",
			},
			[]string{"kind"},
		),
		Duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stepvis_execution_duration_seconds",
				Help:    "Execution duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0},
			},
		),
		Steps: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stepvis_execution_steps",
				Help:    "Number of captured steps per execution",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
	}
}

// NewRegistry creates a private Prometheus registry with all execution
// metrics registered. Each Server carries its own so metrics never collide
// across instances or tests.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// RecordResult counts one Execute call.
func (m *Metrics) RecordResult(res executor.Result) {
	m.record(res.Success, res.Fault, res.Duration.Seconds(), len(res.Steps))
}

// RecordOutcome counts one test-case execution.
func (m *Metrics) RecordOutcome(out executor.TestOutcome) {
	m.record(out.Passed, out.Fault, out.Duration.Seconds(), len(out.Steps))
}

func (m *Metrics) record(success bool, fault *guard.Fault, seconds float64, steps int) {
	outcome := "success"
	switch {
	case fault != nil:
		outcome = "fault"
		m.Faults.WithLabelValues(string(fault.Kind)).Inc()
	case !success:
		outcome = "error"
	}
	m.Executions.WithLabelValues(outcome).Inc()
	m.Duration.Observe(seconds)
	m.Steps.Observe(float64(steps))
}
