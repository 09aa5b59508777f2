package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSamplingMetrics() {
	r.ScenariosGeneratedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilsim_scenarios_generated_total",
			Help: "Total number of scenarios generated by kind",
		},
		[]string{"kind"},
	)

	r.SampleTimesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "resilsim_sample_times_total",
			Help: "Total number of distinct injection times sampled",
		},
	)
}
