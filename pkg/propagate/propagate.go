// Package propagate runs scenarios against models: single nominal or faulty
// runs, arbitrary injection sequences, and batches of sampled scenarios
// spread over a worker pool. Every run gets a private model copy, so runs
// never share mutable state.
package propagate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-resilsim/pkg/history"
	"github.com/dd0wney/cluso-resilsim/pkg/logging"
	"github.com/dd0wney/cluso-resilsim/pkg/metrics"
	"github.com/dd0wney/cluso-resilsim/pkg/model"
	"github.com/dd0wney/cluso-resilsim/pkg/scenario"
	"github.com/dd0wney/cluso-resilsim/pkg/simerr"
)

// Options configures a run.
type Options struct {
	// Logger receives per-run progress; nil defaults to a no-op logger.
	Logger logging.Logger

	// Metrics receives run counters and timings; nil disables recording.
	Metrics *metrics.Registry

	// Workers bounds batch parallelism; values below 1 mean one worker.
	Workers int

	// Seed reseeds the model copy before the run when non-zero.
	Seed int64

	// Track restricts history to the listed keys or key prefixes
	// ("flows.line_1" keeps all of that flow's fields). Empty tracks
	// everything.
	Track []string
}

func (o Options) tracked(key string) bool {
	if len(o.Track) == 0 {
		return true
	}
	for _, t := range o.Track {
		if key == t || strings.HasPrefix(key, t+".") {
			return true
		}
	}
	return false
}

func (o Options) logger() logging.Logger {
	if o.Logger == nil {
		return logging.NewNopLogger()
	}
	return o.Logger
}

// Result is the outcome of one scenario run.
type Result struct {
	RunID    string
	Scenario scenario.Scenario

	History        *history.History
	EndFaults      map[string][]string
	Classification model.Classification

	// Err is non-nil when the run aborted; a convergence failure leaves a
	// *simerr.ConvergenceError here.
	Err error
}

// Failed reports whether the run aborted before completing.
func (r Result) Failed() bool { return r.Err != nil }

// Nominal runs the model with no injections over its full time range.
func Nominal(mdl *model.Model, opts Options) (Result, error) {
	return Sequence(mdl, scenario.Nominal(), opts)
}

// OneFault runs a single-fault scenario injecting the named mode at time t.
// The scenario rate uses a unit sample weight.
func OneFault(mdl *model.Model, blockName, modeName string, t float64, opts Options) (Result, error) {
	rate, err := mdl.ScenRate(blockName, modeName, t, nil, 1.0)
	if err != nil {
		return Result{}, err
	}
	return Sequence(mdl, scenario.SingleFault(blockName, modeName, t, rate), opts)
}

// Sequence runs one scenario to completion on a private copy of the model.
// The model passed in is never mutated.
func Sequence(mdl *model.Model, scen scenario.Scenario, opts Options) (Result, error) {
	m, err := mdl.Copy()
	if err != nil {
		return Result{}, err
	}
	if opts.Seed != 0 {
		m.UpdateSeed(opts.Seed)
	}
	return run(m, scen, opts)
}

// run executes one scenario on a model the caller owns exclusively.
func run(m *model.Model, scen scenario.Scenario, opts Options) (Result, error) {
	res := Result{
		RunID:    uuid.NewString(),
		Scenario: scen,
		History:  history.New(),
	}
	log := opts.logger().With(
		logging.ModelName(m.Name()),
		logging.ScenarioName(scen.Name),
		logging.String("run_id", res.RunID),
	)
	log.Debug("scenario run starting", logging.Rate(scen.Rate))

	for _, t := range m.Params().Times() {
		var faults map[string][]string
		var disturbances map[string]float64
		if inj, ok := scen.At(t); ok {
			faults = inj.Faults
			disturbances = inj.Disturbances
			for block, modes := range faults {
				log.Info("injecting faults",
					logging.BlockName(block),
					logging.SimTime(t),
					logging.Any("modes", modes),
				)
				if opts.Metrics != nil {
					opts.Metrics.RecordInjection(block, len(modes))
				}
			}
		}

		start := time.Now()
		err := m.Step(t, faults, disturbances)
		if opts.Metrics != nil {
			opts.Metrics.RecordStep(time.Since(start))
			if err == nil {
				opts.Metrics.RecordPasses(m.LastPasses())
			}
		}
		if err != nil {
			res.Err = err
			var cerr *simerr.ConvergenceError
			if errors.As(err, &cerr) {
				log.Error("static propagation did not converge",
					logging.SimTime(t),
					logging.Int("passes", cerr.Passes),
					logging.Any("active_blocks", cerr.Active),
				)
				if opts.Metrics != nil {
					opts.Metrics.RecordConvergenceFailure()
					opts.Metrics.RecordScenario("convergence_failure")
				}
			} else {
				log.Error("scenario run aborted", logging.SimTime(t), logging.Error(err))
				if opts.Metrics != nil {
					opts.Metrics.RecordScenario("failed")
				}
			}
			return res, fmt.Errorf("scenario %q at t=%g: %w", scen.Name, t, err)
		}
		snap := m.Snapshot()
		if len(opts.Track) > 0 {
			kept := snap[:0]
			for _, e := range snap {
				if opts.tracked(e.Key) {
					kept = append(kept, e)
				}
			}
			snap = kept
		}
		if err := res.History.Log(t, snap); err != nil {
			res.Err = err
			return res, fmt.Errorf("scenario %q at t=%g: %w", scen.Name, t, err)
		}
	}

	res.EndFaults = m.Faults()
	res.Classification = m.Classify(scen.Rate, res.History)
	if opts.Metrics != nil {
		opts.Metrics.RecordScenario("completed")
	}
	log.Debug("scenario run completed",
		logging.Count(res.History.Len()),
		logging.Float64("expected_cost", res.Classification.ExpectedCost),
	)
	return res, nil
}
