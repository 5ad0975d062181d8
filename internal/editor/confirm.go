package editor

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNothingPending = errors.New("nothing pending confirmation")
	ErrStale          = errors.New("confirmation is for a different target")
)

// Confirmation holds a target awaiting an explicit confirm or cancel.
type Confirmation[T comparable] struct {
	mu      sync.Mutex
	target  T
	pending bool
}

// Request replaces any previous pending target.
func (c *Confirmation[T]) Request(target T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
	c.pending = true
}

func (c *Confirmation[T]) Pending() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target, c.pending
}

// Cancel discards the pending target without running anything.
func (c *Confirmation[T]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.target = zero
	c.pending = false
}

// Confirm clears the pending target and runs fn with it.
func (c *Confirmation[T]) Confirm(ctx context.Context, fn func(context.Context, T) error) error {
	c.mu.Lock()
	target, ok := c.target, c.pending
	var zero T
	c.target = zero
	c.pending = false
	c.mu.Unlock()

	if !ok {
		return ErrNothingPending
	}
	return fn(ctx, target)
}

// ConfirmTarget runs fn only when want is the pending target. A mismatch
// leaves the newer request pending and returns ErrStale.
func (c *Confirmation[T]) ConfirmTarget(ctx context.Context, want T, fn func(context.Context, T) error) error {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return ErrNothingPending
	}
	if c.target != want {
		c.mu.Unlock()
		return ErrStale
	}
	var zero T
	c.target = zero
	c.pending = false
	c.mu.Unlock()

	return fn(ctx, want)
}

// CancelTarget discards the pending request only if it is for want.
func (c *Confirmation[T]) CancelTarget(want T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending || c.target != want {
		return false
	}
	var zero T
	c.target = zero
	c.pending = false
	return true
}
