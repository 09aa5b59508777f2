package propagate

import (
	"context"
	"sync"

	"github.com/dd0wney/cluso-resilsim/pkg/logging"
	"github.com/dd0wney/cluso-resilsim/pkg/model"
	"github.com/dd0wney/cluso-resilsim/pkg/sample"
	"github.com/dd0wney/cluso-resilsim/pkg/scenario"
)

// Batch runs every scenario on a worker pool. Each worker simulates against
// its own model copies; results come back in scenario order. A run that
// fails (including convergence failure) is reported in its Result and does
// not stop the batch. Cancelling the context stops dispatching new
// scenarios; runs already started complete.
func Batch(ctx context.Context, mdl *model.Model, scens []scenario.Scenario, opts Options) ([]Result, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(scens) {
		workers = len(scens)
	}
	log := opts.logger().With(logging.ModelName(mdl.Name()))
	log.Info("starting scenario batch",
		logging.Count(len(scens)),
		logging.Int("workers", workers),
	)

	results := make([]Result, len(scens))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := Sequence(mdl, scens[i], opts)
				if err != nil {
					res.Err = err
				}
				results[i] = res
			}
		}()
	}

dispatch:
	for i := range scens {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	log.Info("scenario batch finished",
		logging.Count(len(scens)),
		logging.Int("failed", failed),
	)
	return results, nil
}

// FaultSample runs every scenario generated by the sample, preceded by a
// nominal baseline run. The nominal result comes first in the returned
// slice.
func FaultSample(ctx context.Context, fs *sample.FaultSample, opts Options) ([]Result, error) {
	scens := append([]scenario.Scenario{scenario.Nominal()}, fs.Scenarios()...)
	return Batch(ctx, fs.Domain().Model(), scens, opts)
}

// Approach runs every scenario of a sample approach, preceded by a nominal
// baseline run.
func Approach(ctx context.Context, sa *sample.SampleApproach, opts Options) ([]Result, error) {
	scens := append([]scenario.Scenario{scenario.Nominal()}, sa.Scenarios()...)
	return Batch(ctx, sa.Model(), scens, opts)
}

// ExpectedCost sums rate-weighted costs over a batch of results, skipping
// failed runs. Combined with a full single-fault sample this gives the
// model-level resilience metric.
func ExpectedCost(results []Result) float64 {
	var total float64
	for _, res := range results {
		if res.Failed() || res.Scenario.Name == "nominal" {
			continue
		}
		total += res.Classification.ExpectedCost
	}
	return total
}
