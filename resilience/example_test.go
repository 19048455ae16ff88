package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/invokeops/cache"
	"github.com/jonwraymond/invokeops/resilience"
)

type verdict struct {
	Marks    float64 `json:"marks"`
	Feedback string  `json:"feedback"`
}

func ExampleExecute() {
	c, _ := cache.New(cache.NewMemoryStore())
	exec := resilience.NewExecutor(
		resilience.WithCache(c),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
		})),
	)

	calls := 0
	inv := resilience.Invocation[verdict]{
		Name: "grade",
		Operation: func(ctx context.Context, sess *resilience.Session, req resilience.Request) (verdict, error) {
			calls++
			if calls == 1 {
				return verdict{}, errors.New("upstream 503")
			}
			return verdict{Marks: 7.5, Feedback: "Correct method"}, nil
		},
		Validate: func(v verdict) error { return resilience.ExpectNonEmpty("feedback", v.Feedback) },
		Sanitize: func(v verdict) verdict {
			v.Marks = resilience.Clamp(v.Marks, 0, 5)
			return v
		},
	}
	req := resilience.Request{Request: cache.Request{
		Namespace:  "grade_answer",
		Parameters: map[string]any{"q": "Q1", "marks": 5},
	}}

	first := resilience.Execute(context.Background(), exec, inv, req)
	second := resilience.Execute(context.Background(), exec, inv, req)

	fmt.Println(first.Status, first.Attempts, first.Value.Marks)
	fmt.Println(second.Status, second.Cached, calls)
	// Output:
	// success 2 5
	// success true 2
}

func ExampleExecute_degraded() {
	exec := resilience.NewExecutor(resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
		InitialDelay: time.Millisecond,
	})))

	res := resilience.Execute(context.Background(), exec, resilience.Invocation[string]{
		Operation: func(context.Context, *resilience.Session, resilience.Request) (string, error) {
			return "", resilience.ErrEmptyResult
		},
		Fallback: func(resilience.Request) string { return "Unable to grade automatically" },
	}, resilience.Request{Request: cache.Request{Namespace: "ocr"}})

	fmt.Println(res.Status, res.Attempts)
	fmt.Println(res.Value)
	// Output:
	// degraded 3
	// Unable to grade automatically
}

func ExampleNewRetry() {
	r := resilience.NewRetry(resilience.RetryConfig{})
	fmt.Println(r.Delay(1), r.Delay(2), r.Delay(3))
	// Output: 1s 2s 4s
}
