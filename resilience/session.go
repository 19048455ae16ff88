package resilience

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Session is the disposable execution context of one attempt.
//
// Each attempt gets a new Session with a fresh identity and a child context.
// Closing the session cancels that context and runs registered cleanups in
// reverse order, so nothing an attempt allocated leaks into the next one.
type Session struct {
	// ID is a unique identity for this attempt (e.g. a remote session id).
	ID string
	// Attempt is the 1-based attempt number.
	Attempt int
	// MaxAttempts is the attempt budget of the invocation.
	MaxAttempts int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cleanups []func()
	closed   bool
}

// NewSession creates a session for the attempt described by st.
func NewSession(parent context.Context, st RetryState) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:          "session_" + uuid.NewString(),
		Attempt:     st.Attempt,
		MaxAttempts: st.MaxAttempts,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Context returns the attempt context. It is cancelled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

// OnClose registers fn to run when the session closes.
// If the session is already closed, fn runs immediately.
func (s *Session) OnClose(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
	s.mu.Unlock()
}

// Close cancels the session context and runs cleanups. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	s.cancel()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
