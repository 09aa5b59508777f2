package metrics

import (
	"runtime"
	"time"
)

// RecordScenario records one finished scenario run with its final status
// ("completed", "failed" or "convergence_failure")
func (r *Registry) RecordScenario(status string) {
	r.ScenariosTotal.WithLabelValues(status).Inc()
}

// RecordStep records one propagation step with its wall-clock duration
func (r *Registry) RecordStep(duration time.Duration) {
	r.StepsTotal.Inc()
	r.StepDuration.Observe(duration.Seconds())
}

// RecordPasses records the static fixed-point pass count of one step
func (r *Registry) RecordPasses(passes int) {
	r.PropagationPasses.Observe(float64(passes))
}

// RecordConvergenceFailure records a step that exceeded the pass ceiling
func (r *Registry) RecordConvergenceFailure() {
	r.ConvergenceFailuresTotal.Inc()
}

// RecordInjection records fault injections into the named block
func (r *Registry) RecordInjection(block string, count int) {
	r.FaultsInjectedTotal.WithLabelValues(block).Add(float64(count))
}

// RecordGenerated records scenarios generated by the sampler ("single" or
// "joint")
func (r *Registry) RecordGenerated(kind string, count int) {
	r.ScenariosGeneratedTotal.WithLabelValues(kind).Add(float64(count))
}

// RecordSampleTime records one newly-seen distinct injection time
func (r *Registry) RecordSampleTime() {
	r.SampleTimesTotal.Inc()
}

// UpdateSystemMetrics refreshes the process-level gauges
func (r *Registry) UpdateSystemMetrics(startTime time.Time) {
	r.UptimeSeconds.Set(time.Since(startTime).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}
