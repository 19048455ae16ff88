package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/invokeops/cache"
	"github.com/jonwraymond/invokeops/observe"
)

// Request is one invocation: the cacheable identity plus the payload the
// operation needs that does not belong in the key (decoded images, clients).
type Request struct {
	cache.Request
	Payload any
}

// Operation performs one remote-call attempt inside sess.
type Operation[T any] func(ctx context.Context, sess *Session, req Request) (T, error)

// Validator rejects raw results that must not be accepted. A non-nil error
// makes the attempt fail and is retried like any transient error.
type Validator[T any] func(T) error

// Sanitizer normalizes an accepted value (e.g. clamps marks into range).
type Sanitizer[T any] func(T) T

// Fallback builds the degraded value returned after exhaustion.
type Fallback[T any] func(req Request) T

// Invocation describes how to run and judge one kind of remote call.
type Invocation[T any] struct {
	// Name labels logs, spans and metrics. Defaults to the request namespace.
	Name string

	Operation Operation[T]
	Validate  Validator[T]
	Sanitize  Sanitizer[T]

	// Fallback is optional. Without it, exhaustion yields OutcomeFailed.
	Fallback Fallback[T]

	// Artifacts lists files the value refers to. The cache entry is
	// invalidated when any of them goes missing.
	Artifacts func(T) []string

	// NoCache skips both lookup and store.
	NoCache bool
}

// Executor runs invocations: cache lookup, sequential attempts in fresh
// sessions, validation, sanitization, store, fallback.
//
// An Executor holds configuration and shared collaborators only. No
// per-invocation state survives an Execute call.
type Executor struct {
	cache       *cache.Cache
	retry       *Retry
	timeout     *Timeout
	rateLimiter *RateLimiter

	tracer  observe.Tracer
	metrics observe.Metrics
	logger  observe.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an executor. Without options it retries 3 times with
// 1s/2s exponential backoff and does not cache.
func NewExecutor(opts ...ExecutorOption) *Executor {
	in := observe.Instruments{}.Normalize()
	e := &Executor{
		tracer:  in.Tracer,
		metrics: in.Metrics,
		logger:  in.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retry == nil {
		e.retry = NewRetry(RetryConfig{})
	}
	return e
}

// WithCache enables result caching.
func WithCache(c *cache.Cache) ExecutorOption {
	return func(e *Executor) {
		e.cache = c
	}
}

// WithRetry sets the retry policy.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithRateLimiter paces attempt starts.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) {
		e.rateLimiter = rl
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// WithTimeoutConfig bounds each attempt with a prepared Timeout.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.timeout = t
	}
}

// WithInstruments sets the tracer, metrics and logger.
func WithInstruments(in observe.Instruments) ExecutorOption {
	return func(e *Executor) {
		in = in.Normalize()
		e.tracer = in.Tracer
		e.metrics = in.Metrics
		e.logger = in.Logger
	}
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) ExecutorOption {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t observe.Tracer) ExecutorOption {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// Cache returns the configured cache, or nil.
func (e *Executor) Cache() *cache.Cache {
	return e.cache
}

// Execute runs inv for req and never returns an error: failures are carried
// in the Result.
//
// A valid cached value is returned without calling the operation. Otherwise
// attempts run one after another; each gets a new Session that is closed
// before the next starts. The first attempt whose value passes the validator
// wins; it is sanitized, stored and returned. When attempts run out the
// fallback value is returned as OutcomeDegraded, and nothing is cached.
func Execute[T any](ctx context.Context, e *Executor, inv Invocation[T], req Request) Result[T] {
	meta := observe.OperationMeta{
		Namespace: req.Namespace,
		Name:      inv.Name,
		Version:   req.Version,
	}
	start := time.Now()

	ctx, span := e.tracer.StartSpan(ctx, meta)
	res := execute(ctx, e, inv, req, e.logger.With(meta), meta)

	e.tracer.EndSpan(span, observe.SpanOutcome{
		Outcome:  res.Status.String(),
		Attempts: res.Attempts,
		Cached:   res.Cached,
		Err:      res.Err,
	})
	e.metrics.RecordInvocation(ctx, meta, res.Status.String(), time.Since(start))
	return res
}

func execute[T any](ctx context.Context, e *Executor, inv Invocation[T], req Request, logger observe.Logger, meta observe.OperationMeta) Result[T] {
	if inv.Operation == nil {
		return exhausted(ctx, inv, req, logger, ErrNilOperation, 0)
	}

	key, cacheable := e.cacheKey(ctx, inv.NoCache, req, logger)
	if cacheable {
		if v, ok := cachedValue(ctx, e.cache, key, inv.Validate, logger); ok {
			res := Success(v)
			res.Cached = true
			return res
		}
	}

	var (
		value    T
		attempts int
	)
	err := e.retry.Execute(ctx, func(ctx context.Context, st RetryState) error {
		attempts = st.Attempt
		v, err := attempt(ctx, e, inv, req, st)
		e.metrics.RecordAttempt(ctx, meta, err)
		if err != nil {
			class := e.retry.Config().Classify(err)
			logger.Warn(ctx, "attempt failed",
				observe.F("attempt", st.Attempt),
				observe.F("max_attempts", st.MaxAttempts),
				observe.F("class", class.String()),
				observe.F("error", err),
			)
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return exhausted(ctx, inv, req, logger, err, attempts)
	}

	if inv.Sanitize != nil {
		value = inv.Sanitize(value)
	}

	if cacheable {
		var refs []string
		if inv.Artifacts != nil {
			refs = inv.Artifacts(value)
		}
		// Store failures are logged by the cache; the value is still good.
		_ = e.cache.Store(ctx, key, value, refs...)
	}

	if attempts > 1 {
		logger.Info(ctx, "invocation recovered", observe.F("attempts", attempts))
	}

	res := Success(value)
	res.Attempts = attempts
	return res
}

// attempt runs one operation call in a fresh session.
func attempt[T any](ctx context.Context, e *Executor, inv Invocation[T], req Request, st RetryState) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if e.rateLimiter != nil {
		if err := e.rateLimiter.Wait(ctx); err != nil {
			return zero, err
		}
	}

	sess := NewSession(ctx, st)
	defer sess.Close()

	return Within(sess.Context(), e.timeout, func(ctx context.Context) (T, error) {
		v, err := inv.Operation(ctx, sess, req)
		if err != nil {
			return zero, err
		}
		if inv.Validate != nil {
			if err := inv.Validate(v); err != nil {
				if !errors.Is(err, ErrValidation) {
					err = fmt.Errorf("%w: %w", ErrValidation, err)
				}
				return zero, err
			}
		}
		return v, nil
	})
}

func exhausted[T any](ctx context.Context, inv Invocation[T], req Request, logger observe.Logger, err error, attempts int) Result[T] {
	if inv.Fallback == nil {
		logger.Error(ctx, "invocation failed",
			observe.F("attempts", attempts),
			observe.F("error", err),
		)
		res := Failed[T](err)
		res.Attempts = attempts
		return res
	}

	logger.Error(ctx, "invocation degraded to fallback",
		observe.F("attempts", attempts),
		observe.F("error", err),
	)
	res := Degraded(inv.Fallback(req), err.Error(), err)
	res.Attempts = attempts
	return res
}

func (e *Executor) cacheKey(ctx context.Context, noCache bool, req Request, logger observe.Logger) (cache.Key, bool) {
	if e.cache == nil || noCache {
		return cache.Key{}, false
	}
	key, err := e.cache.DeriveKey(req.Request)
	if err != nil {
		logger.Warn(ctx, "cache key derivation failed, running uncached", observe.F("error", err))
		return cache.Key{}, false
	}
	return key, true
}

func cachedValue[T any](ctx context.Context, c *cache.Cache, key cache.Key, validate Validator[T], logger observe.Logger) (T, bool) {
	var zero T
	entry, ok := c.Lookup(ctx, key)
	if !ok {
		return zero, false
	}
	v, err := cache.Decode[T](entry)
	if err != nil {
		logger.Warn(ctx, "cached payload does not decode, treating as miss",
			observe.F("key", key.String()),
			observe.F("error", err),
		)
		return zero, false
	}
	if validate != nil {
		if err := validate(v); err != nil {
			logger.Warn(ctx, "cached payload fails validation, treating as miss",
				observe.F("key", key.String()),
				observe.F("error", err),
			)
			return zero, false
		}
	}
	return v, true
}
