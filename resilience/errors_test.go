package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrTransient", ErrTransient},
		{"ErrTerminal", ErrTerminal},
		{"ErrValidation", ErrValidation},
		{"ErrEmptyResult", ErrEmptyResult},
		{"ErrMaxRetriesExceeded", ErrMaxRetriesExceeded},
		{"ErrRateLimitExceeded", ErrRateLimitExceeded},
		{"ErrTimeout", ErrTimeout},
		{"ErrNilOperation", ErrNilOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("%s is nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s has empty message", tt.name)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	base := errors.New("HTTP 401")
	err := Terminal(base)

	if !errors.Is(err, ErrTerminal) {
		t.Error("Terminal(err) does not match ErrTerminal")
	}
	if !errors.Is(err, base) {
		t.Error("Terminal(err) does not match the wrapped error")
	}
	if err.Error() != "HTTP 401" {
		t.Errorf("Error() = %q, want %q", err.Error(), "HTTP 401")
	}
	if Terminal(nil) != nil {
		t.Error("Terminal(nil) should be nil")
	}
	if Terminal(err) != err {
		t.Error("Terminal should not double-wrap")
	}
}

func TestDefaultClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"plain", errors.New("connection reset"), ClassTransient},
		{"validation", Validation("marks missing"), ClassTransient},
		{"timeout", ErrTimeout, ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"terminal", Terminal(errors.New("bad request")), ClassTerminal},
		{"wrapped terminal", fmt.Errorf("call: %w", Terminal(errors.New("x"))), ClassTerminal},
		{"canceled", context.Canceled, ClassTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultClassify(tt.err); got != tt.want {
				t.Errorf("DefaultClassify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidation(t *testing.T) {
	err := Validation("expected %d items, got %d", 3, 2)
	if !errors.Is(err, ErrValidation) {
		t.Error("Validation() does not wrap ErrValidation")
	}
	want := "resilience: result failed validation: expected 3 items, got 2"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorClass_String(t *testing.T) {
	if ClassTransient.String() != "transient" {
		t.Errorf("ClassTransient.String() = %q", ClassTransient.String())
	}
	if ClassTerminal.String() != "terminal" {
		t.Errorf("ClassTerminal.String() = %q", ClassTerminal.String())
	}
	if ErrorClass(99).String() != "unknown" {
		t.Errorf("ErrorClass(99).String() = %q", ErrorClass(99).String())
	}
}
