package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTimeout(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{})
	if timeout.Config().Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", timeout.Config().Timeout)
	}
}

func TestTimeout_ExecuteSuccess(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})

	called := false
	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if !called {
		t.Error("operation was not called")
	}
}

func TestTimeout_ExecuteError(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})
	testErr := errors.New("test error")

	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	if err != testErr {
		t.Errorf("Execute() error = %v, want %v", err, testErr)
	}
}

func TestTimeout_ExecuteTimeout(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond})

	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
}

func TestTimeout_ExecuteContextCancelled(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := timeout.Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestTimeout_OperationRespectsCancelledContext(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: 50 * time.Millisecond})

	ctxDoneCh := make(chan bool, 1)
	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			ctxDoneCh <- true
			return ctx.Err()
		case <-time.After(time.Second):
			ctxDoneCh <- false
			return nil
		}
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}

	select {
	case ctxDone := <-ctxDoneCh:
		if !ctxDone {
			t.Error("Context was not cancelled")
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("Operation goroutine did not complete")
	}
}

func TestWithin(t *testing.T) {
	t.Run("nil timeout runs directly", func(t *testing.T) {
		v, err := Within(context.Background(), nil, func(ctx context.Context) (int, error) {
			return 7, nil
		})
		if err != nil || v != 7 {
			t.Errorf("Within() = (%d, %v), want (7, nil)", v, err)
		}
	})

	t.Run("returns value", func(t *testing.T) {
		to := NewTimeout(TimeoutConfig{Timeout: time.Second})
		v, err := Within(context.Background(), to, func(ctx context.Context) (string, error) {
			return "ok", nil
		})
		if err != nil || v != "ok" {
			t.Errorf("Within() = (%q, %v), want (ok, nil)", v, err)
		}
	})

	t.Run("late value discarded", func(t *testing.T) {
		to := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond})
		v, err := Within(context.Background(), to, func(ctx context.Context) (string, error) {
			time.Sleep(100 * time.Millisecond)
			return "late", nil
		})
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("Within() error = %v, want ErrTimeout", err)
		}
		if v != "" {
			t.Errorf("Within() value = %q, want zero", v)
		}
	})
}
