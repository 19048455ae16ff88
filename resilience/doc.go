// Package resilience runs remote generative-model calls so that callers
// always get a typed value back.
//
// # Execution
//
// Execute combines a cache lookup with a sequential retry loop:
//
//   - A valid cached value is returned immediately; the operation is not called.
//   - Otherwise each attempt runs in a fresh Session (new identity, child
//     context, cleanup hooks) that is closed before the next attempt starts.
//   - A raw value must pass the Invocation's Validator. A rejected value counts as
//     a failed attempt and is never cached.
//   - The first accepted value is sanitized, stored with its artifact
//     references and returned as OutcomeSuccess.
//   - When the attempt budget is spent the Invocation's Fallback is returned as
//     OutcomeDegraded, or OutcomeFailed when no fallback exists.
//
// Backoff between attempts is InitialDelay * BackoffBase^(n-1): 1s then 2s
// with the defaults. Errors are transient unless wrapped with Terminal,
// which stops the loop early.
//
// # Usage
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCache(c),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(60*time.Second),
//	)
//
//	res := resilience.Execute(ctx, exec, resilience.Invocation[Grade]{
//	    Operation: gradeOnce,
//	    Validate:  func(g Grade) error { return resilience.ExpectNonEmpty("feedback", g.Feedback) },
//	    Sanitize:  func(g Grade) Grade { g.Marks = resilience.Clamp(g.Marks, 0, g.Max); return g },
//	    Fallback:  func(resilience.Request) Grade { return Grade{Feedback: "Unable to grade"} },
//	}, req)
//
// # Patterns
//
// Retry, Timeout and RateLimiter are also usable on their own. Retry exposes
// its state machine through RetryConfig.OnStateChange.
package resilience
