package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dd0wney/cluso-resilsim/pkg/config"
	"github.com/dd0wney/cluso-resilsim/pkg/logging"
	"github.com/dd0wney/cluso-resilsim/pkg/metrics"
	"github.com/dd0wney/cluso-resilsim/pkg/model"
	"github.com/dd0wney/cluso-resilsim/pkg/propagate"
	"github.com/dd0wney/cluso-resilsim/pkg/sample"
)

func main() {
	configPath := flag.String("config", "", "Sampling configuration file (YAML)")
	modelName := flag.String("model", "pump", "Built-in model to simulate")
	workers := flag.Int("workers", 4, "Parallel scenario workers")
	seed := flag.Int64("seed", 0, "Stochastic seed override (0 keeps the model seed)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	historyDir := flag.String("history-dir", "", "Save per-scenario histories into this directory")
	flag.Parse()

	startTime := time.Now()

	var cfg *config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if cfg.Run.Workers > 0 {
			*workers = cfg.Run.Workers
		}
		if cfg.Run.LogLevel != "" {
			*logLevel = cfg.Run.LogLevel
		}
	}

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(*logLevel))
	logging.SetDefaultLogger(logger)

	log.Printf("Starting resilience simulation")
	log.Printf("Model: %s", *modelName)
	log.Printf("Workers: %d", *workers)

	reg := metrics.DefaultRegistry()
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", reg.Handler())
			log.Printf("Metrics listening on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server", logging.Error(err))
			}
		}()
	}

	sp := model.SimParams{}
	if cfg != nil {
		sp = cfg.SimParams()
	}
	mdl, err := buildModel(*modelName, sp)
	if err != nil {
		log.Fatalf("Failed to build model: %v", err)
	}
	if *seed != 0 {
		mdl.UpdateSeed(*seed)
	}

	var sa *sample.SampleApproach
	if cfg != nil {
		cfg.Metrics = reg
		sa, err = cfg.Apply(mdl)
	} else {
		sa, err = defaultApproach(mdl, reg)
	}
	if err != nil {
		log.Fatalf("Failed to build sample approach: %v", err)
	}

	opts := propagate.Options{Logger: logger, Metrics: reg, Workers: *workers}
	if cfg != nil {
		opts.Track = cfg.Run.Track
	}
	results, err := propagate.Approach(context.Background(), sa, opts)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	reg.UpdateSystemMetrics(startTime)

	if *historyDir != "" {
		if err := saveHistories(*historyDir, results); err != nil {
			log.Fatalf("Failed to save histories: %v", err)
		}
		log.Printf("Histories saved to %s", *historyDir)
	}

	printSummary(results)
}

// defaultApproach samples every fault mode at three evenly-spaced times per
// phase, the standard first look at a model.
func defaultApproach(mdl *model.Model, reg *metrics.Registry) (*sample.SampleApproach, error) {
	sa := sample.NewApproach(mdl)
	sa.SetMetrics(reg)
	if pm := mdl.Params().Phases; pm != nil {
		if err := sa.AddPhaseMap("op", pm); err != nil {
			return nil, err
		}
	}
	fd, err := sa.NewDomain("all")
	if err != nil {
		return nil, err
	}
	if err := fd.AddAll(); err != nil {
		return nil, err
	}
	pmName := ""
	if mdl.Params().Phases != nil {
		pmName = "op"
	}
	fs, err := sa.NewSample("single", "all", pmName)
	if err != nil {
		return nil, err
	}
	if err := fs.AddSingleFaultPhases(sample.EvenPolicy(3), nil); err != nil {
		return nil, err
	}
	return sa, nil
}

func saveHistories(dir string, results []propagate.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, res := range results {
		if res.Failed() || res.History == nil {
			continue
		}
		path := filepath.Join(dir, res.Scenario.Name+".hist")
		if err := res.History.Save(path); err != nil {
			return fmt.Errorf("saving %s: %w", res.Scenario.Name, err)
		}
	}
	return nil
}

func printSummary(results []propagate.Result) {
	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	fmt.Printf("\nran %d scenarios (%d failed)\n\n", len(results), failed)
	if err := propagate.WriteTable(os.Stdout, results); err != nil {
		log.Fatalf("Failed to write summary: %v", err)
	}
}
