package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimulationMetrics() {
	r.ScenariosTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilsim_scenarios_total",
			Help: "Total number of scenario runs by final status",
		},
		[]string{"status"},
	)

	r.StepsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "resilsim_steps_total",
			Help: "Total number of propagation steps executed",
		},
	)

	r.StepDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resilsim_step_duration_seconds",
			Help:    "Wall-clock duration of one propagation step",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	r.PropagationPasses = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resilsim_propagation_passes",
			Help:    "Static fixed-point passes needed per step",
			Buckets: []float64{1, 2, 3, 5, 10, 50, 100, 500, 1000},
		},
	)

	r.ConvergenceFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "resilsim_convergence_failures_total",
			Help: "Total number of steps that exceeded the pass ceiling",
		},
	)

	r.FaultsInjectedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilsim_faults_injected_total",
			Help: "Total number of fault injections by target block",
		},
		[]string{"block"},
	)
}
