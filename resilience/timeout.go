package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutConfig configures the per-attempt deadline.
type TimeoutConfig struct {
	// Timeout bounds a single attempt, not the whole invocation.
	// Default: 60 seconds
	Timeout time.Duration
}

// Timeout bounds each attempt with a deadline.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &Timeout{config: config}
}

// Execute runs op under the attempt deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := Within(ctx, t, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

type timed[T any] struct {
	value T
	err   error
}

// Within runs fn under t's deadline and returns its value. A nil t runs fn
// directly. When the deadline passes first, Within returns ErrTimeout without
// waiting for fn; fn observes the cancelled context and its late result is
// discarded.
func Within[T any](ctx context.Context, t *Timeout, fn func(context.Context) (T, error)) (T, error) {
	if t == nil {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	done := make(chan timed[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- timed[T]{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, t.config.Timeout)
		}
		return zero, ctx.Err()
	}
}
