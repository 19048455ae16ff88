package resilience

// Outcome is the kind of an invocation result.
type Outcome int

const (
	// OutcomeSuccess carries a validated value from the remote call or the cache.
	OutcomeSuccess Outcome = iota
	// OutcomeDegraded carries the fallback value after attempts were exhausted.
	OutcomeDegraded
	// OutcomeFailed carries no usable value.
	OutcomeFailed
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the typed outcome of Execute. Errors never escape Execute;
// they are carried here.
type Result[T any] struct {
	// Status is the outcome kind.
	Status Outcome
	// Value is the result value. Zero when Status is OutcomeFailed.
	Value T
	// Reason explains a degraded or failed outcome.
	Reason string
	// Err is the last error observed, nil on success.
	Err error
	// Attempts is the number of remote-call attempts made. Zero on a cache hit.
	Attempts int
	// Cached reports whether Value came from the cache.
	Cached bool
}

// Success returns a successful result.
func Success[T any](value T) Result[T] {
	return Result[T]{Status: OutcomeSuccess, Value: value}
}

// Degraded returns a fallback result with the reason the real value is missing.
func Degraded[T any](value T, reason string, err error) Result[T] {
	return Result[T]{Status: OutcomeDegraded, Value: value, Reason: reason, Err: err}
}

// Failed returns a result without a usable value.
func Failed[T any](err error) Result[T] {
	r := Result[T]{Status: OutcomeFailed, Err: err}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool {
	return r.Status == OutcomeSuccess
}

// Usable reports whether Value can be consumed (success or degraded).
func (r Result[T]) Usable() bool {
	return r.Status == OutcomeSuccess || r.Status == OutcomeDegraded
}
