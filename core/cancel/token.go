// Package cancel provides the cooperative cancellation token threaded through
// every suspension point of a transformation. Cancellation is advisory: an
// in-flight subprocess or network call completes, and the next check-point
// observes the token.
package cancel

import (
	"errors"
	"sync/atomic"
)

// ErrCancelled is returned by Check after the token has been cancelled
var ErrCancelled = errors.New("transformation cancelled")

// Token is the single source of truth for a job's stopped flag
type Token struct {
	stopped atomic.Bool
}

// New creates an active (not cancelled) token
func New() *Token { return &Token{} }

// Cancel marks the token. Idempotent.
func (t *Token) Cancel() {
	if t != nil {
		t.stopped.Store(true)
	}
}

// Cancelled reports whether Cancel has been called
func (t *Token) Cancelled() bool {
	return t != nil && t.stopped.Load()
}

// Check returns ErrCancelled once the token is cancelled, nil otherwise.
// A nil token never cancels, so library callers can opt out.
func (t *Token) Check() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}
