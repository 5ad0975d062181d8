package deadline

import (
	"errors"
	"sync"
	"time"
)

// DefaultInterval is how often a displayed countdown is recomputed.
const DefaultInterval = 60 * time.Second

// Scheduler runs job every interval until the returned cancel is called.
type Scheduler interface {
	Every(interval time.Duration, job func()) (cancel func(), err error)
}

// Watcher creates countdown handles backed by a Scheduler.
type Watcher struct {
	sched    Scheduler
	interval time.Duration
	now      func() time.Time
}

func NewWatcher(sched Scheduler, interval time.Duration, now func() time.Time) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Watcher{sched: sched, interval: interval, now: now}
}

// Handle owns one periodic re-evaluation. Its owner must call Stop on teardown.
type Handle struct {
	w      *Watcher
	onTick func(Countdown)

	// resetMu is held across cancel and re-arm so concurrent resets leave
	// exactly one timer.
	resetMu sync.Mutex

	mu       sync.Mutex
	deadline time.Time
	cancel   func()
	stopped  bool
}

var ErrStopped = errors.New("countdown stopped")

// Watch evaluates the deadline right away and then on every interval.
func (w *Watcher) Watch(deadline time.Time, onTick func(Countdown)) (*Handle, error) {
	h := &Handle{w: w, onTick: onTick}
	if err := h.arm(deadline); err != nil {
		return nil, err
	}
	return h, nil
}

// Reset switches the handle to a new deadline. The old timer is cancelled
// before the new one is armed.
func (h *Handle) Reset(deadline time.Time) error {
	h.resetMu.Lock()
	defer h.resetMu.Unlock()

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrStopped
	}
	if h.deadline.Equal(deadline) {
		h.mu.Unlock()
		return nil
	}
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.mu.Unlock()
	return h.arm(deadline)
}

// Stop cancels the timer. Safe to call more than once.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func (h *Handle) Deadline() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deadline
}

func (h *Handle) arm(deadline time.Time) error {
	h.mu.Lock()
	h.deadline = deadline
	h.mu.Unlock()

	h.tick()

	cancel, err := h.w.sched.Every(h.w.interval, h.tick)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		cancel()
		return ErrStopped
	}
	h.cancel = cancel
	return nil
}

func (h *Handle) tick() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	deadline := h.deadline
	h.mu.Unlock()

	h.onTick(Evaluate(deadline, h.w.now()))
}
