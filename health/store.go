package health

import (
	"context"
	"time"
)

// Prober is a cache store that can verify it is writable.
// cache.FileStore implements it.
type Prober interface {
	Probe(ctx context.Context) error
}

// StoreChecker probes a cache store.
//
// A failing store is reported as degraded, not unhealthy: cache faults are
// absorbed by lookups and stores, so invocations keep running uncached.
type StoreChecker struct {
	name    string
	prober  Prober
	details map[string]any
}

// NewStoreChecker creates a checker for prober. details (e.g. the cache
// directory) are attached to every result.
func NewStoreChecker(name string, prober Prober, details map[string]any) *StoreChecker {
	if name == "" {
		name = "cache"
	}
	return &StoreChecker{name: name, prober: prober, details: details}
}

// Name returns the name of this checker.
func (c *StoreChecker) Name() string {
	return c.name
}

// Check writes and removes a probe entry.
func (c *StoreChecker) Check(ctx context.Context) Result {
	start := time.Now()
	var r Result
	if err := c.prober.Probe(ctx); err != nil {
		r = Degraded("cache store not writable, invocations run uncached", err)
	} else {
		r = Healthy("cache store writable")
	}
	r.Duration = time.Since(start)
	return r.WithDetails(c.details)
}
