// Package portfolio runs several independently seeded solvers over the
// same problem concurrently and returns the first outcome. Each solver is
// single-threaded; the portfolio exploits the variance of randomized
// heuristics rather than splitting one search.
package portfolio

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/gitrdm/goconstrain/pkg/solver"
)

// stepsPerPoll is how many search steps run between context checks.
const stepsPerPoll = 256

// BuildFunc constructs a fresh solver for one seed. It must build the same
// problem every time; only the seed varies.
type BuildFunc func(seed int64) *solver.Solver

// Outcome reports the winning run of a portfolio.
type Outcome struct {
	// Seed identifies the run that finished first.
	Seed int64
	// Solver is the finished solver, ready for solution extraction.
	Solver *solver.Solver
	// Status is ResultSolved or ResultUnsatisfiable.
	Status solver.Result
}

// Config controls a portfolio run.
type Config struct {
	// Seeds are the seeds to race. Each seed gets its own solver.
	Seeds []int64
	// Workers bounds concurrency; 0 means one worker per seed.
	Workers int
	// Logger receives per-run progress. Defaults to a null logger.
	Logger hclog.Logger
}

// Solve races the seeds and returns the first terminal outcome: the first
// run to finish without error decides, whether it found a solution or
// proved the problem unsatisfiable. Run errors are skipped; the first one
// is returned only if no run finishes. The context cancels remaining runs
// at their next step boundary.
func Solve(ctx context.Context, build BuildFunc, cfg Config) (Outcome, error) {
	if len(cfg.Seeds) == 0 {
		return Outcome{}, errors.New("portfolio: no seeds")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	workers := cfg.Workers
	if workers <= 0 || workers > len(cfg.Seeds) {
		workers = len(cfg.Seeds)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type runResult struct {
		outcome Outcome
		err     error
	}

	seedCh := make(chan int64)
	resultCh := make(chan runResult, len(cfg.Seeds))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seed := range seedCh {
				out, err := run(ctx, build, seed, logger)
				if err != nil || out.Status != solver.ResultUnsolved {
					resultCh <- runResult{outcome: out, err: err}
				}
			}
		}()
	}

	go func() {
		defer close(seedCh)
		for _, seed := range cfg.Seeds {
			select {
			case seedCh <- seed:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var firstErr error
	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		cancel()
		// Drain remaining workers in the background; the outcome stands.
		return r.outcome, nil
	}
	if firstErr != nil {
		return Outcome{}, firstErr
	}
	return Outcome{}, errors.Wrap(ctx.Err(), "portfolio: cancelled before any run finished")
}

// run drives one solver, polling the context between step batches.
func run(ctx context.Context, build BuildFunc, seed int64, logger hclog.Logger) (Outcome, error) {
	s := build(seed)
	res, err := s.StartSolving()
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "seed %d", seed)
	}
	for res == solver.ResultUnsolved {
		for i := 0; i < stepsPerPoll && res == solver.ResultUnsolved; i++ {
			res = s.Step()
		}
		if err := ctx.Err(); err != nil {
			logger.Debug("portfolio run cancelled", "seed", seed, "steps", s.Stats().Steps)
			return Outcome{Seed: seed, Solver: s, Status: res}, nil
		}
	}
	logger.Debug("portfolio run finished", "seed", seed, "status", res.String(), "steps", s.Stats().Steps)
	return Outcome{Seed: seed, Solver: s, Status: res}, nil
}
