package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by BackoffBase each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// State is a phase of one retry loop.
//
// Idle → Attempting → {Succeeded | RetryScheduled → Attempting | Exhausted}
type State int

const (
	// StateIdle is the state before the first attempt.
	StateIdle State = iota
	// StateAttempting means an attempt is in progress.
	StateAttempting
	// StateRetryScheduled means an attempt failed and the loop is backing off.
	StateRetryScheduled
	// StateSucceeded is terminal: an attempt succeeded.
	StateSucceeded
	// StateExhausted is terminal: attempts ran out, a terminal error
	// occurred, or the context ended during backoff.
	StateExhausted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateRetryScheduled:
		return "retry-scheduled"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// RetryState describes the attempt about to run. It lives only for the
// duration of one Execute call.
type RetryState struct {
	// Attempt is the 1-based attempt number.
	Attempt int
	// MaxAttempts is the configured attempt budget.
	MaxAttempts int
	// LastErr is the error of the previous attempt, nil on the first.
	LastErr error
}

// Last reports whether this is the final attempt.
func (s RetryState) Last() bool {
	return s.Attempt >= s.MaxAttempts
}

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 1s
	InitialDelay time.Duration

	// MaxDelay caps the maximum delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// BackoffBase is the multiplier for exponential backoff.
	// Default: 2.0 (delays 1s, 2s, 4s with the default InitialDelay)
	BackoffBase float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds up to 25% random delay to spread concurrent retries.
	// Default: false
	Jitter bool

	// Classify decides whether an error is retried.
	// Default: DefaultClassify (everything transient except ErrTerminal).
	Classify func(err error) ErrorClass

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)

	// OnStateChange is called on every state transition.
	OnStateChange func(from, to State)
}

// Validate reports configuration values that cannot be defaulted.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 0 {
		return fmt.Errorf("resilience: max attempts must be >= 0, got %d", c.MaxAttempts)
	}
	if c.BackoffBase < 0 {
		return fmt.Errorf("resilience: backoff base must be >= 0, got %f", c.BackoffBase)
	}
	if c.MaxDelay > 0 && c.InitialDelay > c.MaxDelay {
		return fmt.Errorf("resilience: initial delay %s exceeds max delay %s", c.InitialDelay, c.MaxDelay)
	}
	return nil
}

// Retry implements sequential retry with backoff.
// A Retry holds only configuration and may be shared by concurrent callers.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = 2.0
	}
	if config.Classify == nil {
		config.Classify = DefaultClassify
	}

	return &Retry{config: config}
}

// Execute runs op until it succeeds, returns a terminal error, or the
// attempt budget is spent. Attempts never overlap.
//
// On exhaustion the returned error wraps both ErrMaxRetriesExceeded and the
// last attempt error. If ctx ends during a backoff sleep, the returned error
// wraps ctx.Err().
func (r *Retry) Execute(ctx context.Context, op func(context.Context, RetryState) error) error {
	state := StateIdle
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		r.transition(&state, StateAttempting)

		err := op(ctx, RetryState{
			Attempt:     attempt,
			MaxAttempts: r.config.MaxAttempts,
			LastErr:     lastErr,
		})
		if err == nil {
			r.transition(&state, StateSucceeded)
			return nil
		}
		lastErr = err

		if r.config.Classify(err) == ClassTerminal {
			r.transition(&state, StateExhausted)
			return err
		}

		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.Delay(attempt)
		r.transition(&state, StateRetryScheduled)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			r.transition(&state, StateExhausted)
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}

	r.transition(&state, StateExhausted)
	return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, r.config.MaxAttempts, lastErr)
}

func (r *Retry) transition(state *State, to State) {
	from := *state
	*state = to
	if r.config.OnStateChange != nil && from != to {
		r.config.OnStateChange(from, to)
	}
}

// Delay returns the backoff before the attempt following failed attempt n.
func (r *Retry) Delay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.Strategy {
	case BackoffConstant:
		delay = r.config.InitialDelay

	case BackoffLinear:
		delay = r.config.InitialDelay * time.Duration(attempt)

	case BackoffExponential:
		multiplier := math.Pow(r.config.BackoffBase, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)
	}

	if delay > r.config.MaxDelay || delay < 0 {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		jitter := time.Duration(rand.Int64N(int64(delay / 4)))
		delay += jitter
	}

	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
