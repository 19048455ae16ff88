package health

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds every check.
	// Default: 10 seconds
	Timeout time.Duration

	// Limit bounds concurrent checks. Zero means no limit.
	Limit int
}

// Aggregator runs a fixed set of checkers and combines their results.
type Aggregator struct {
	config   AggregatorConfig
	checkers []Checker
}

// NewAggregator creates an aggregator. Checker names must be unique.
func NewAggregator(config AggregatorConfig, checkers ...Checker) (*Aggregator, error) {
	if len(checkers) == 0 {
		return nil, ErrNoCheckers
	}
	seen := make(map[string]bool, len(checkers))
	for _, c := range checkers {
		if seen[c.Name()] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateChecker, c.Name())
		}
		seen[c.Name()] = true
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Aggregator{config: config, checkers: checkers}, nil
}

// CheckAll runs every checker concurrently and returns results in
// registration order.
func (a *Aggregator) CheckAll(ctx context.Context) []Result {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	results := make([]Result, len(a.checkers))
	var g errgroup.Group
	if a.config.Limit > 0 {
		g.SetLimit(a.config.Limit)
	}
	for i, c := range a.checkers {
		g.Go(func() error {
			results[i] = runCheck(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Overall is the worst status among results; no results is healthy.
func Overall(results []Result) Status {
	worst := StatusHealthy
	for _, r := range results {
		if r.Status > worst {
			worst = r.Status
		}
	}
	return worst
}

func runCheck(ctx context.Context, c Checker) Result {
	start := time.Now()
	ch := make(chan Result, 1)
	go func() {
		ch <- c.Check(ctx)
	}()

	var r Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		r = Unhealthy("check timed out", ErrCheckTimeout)
	}
	r.Name = c.Name()
	if r.Duration == 0 {
		r.Duration = time.Since(start)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = start
	}
	return r
}
