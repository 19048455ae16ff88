// Package health reports whether the invocation stack can do its job.
//
// StoreChecker probes a cache store by writing and removing a probe file.
// An Aggregator runs several checkers concurrently under one timeout:
//
//	store, _ := cache.NewFileStore(dir)
//	agg, _ := health.NewAggregator(health.AggregatorConfig{},
//	    health.NewStoreChecker("cache", store, map[string]any{"dir": store.Dir()}),
//	)
//	results := agg.CheckAll(ctx)
//	status := health.Overall(results)
package health
