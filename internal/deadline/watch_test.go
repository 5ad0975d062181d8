package deadline

import (
	"sync"
	"testing"
	"time"
)

type fakeScheduler struct {
	mu       sync.Mutex
	jobs     map[int]func()
	next     int
	armed    int
	canceled int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[int]func())}
}

func (f *fakeScheduler) Every(_ time.Duration, job func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.jobs[id] = job
	f.armed++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.jobs[id]; ok {
			delete(f.jobs, id)
			f.canceled++
		}
	}, nil
}

func (f *fakeScheduler) fire() {
	f.mu.Lock()
	jobs := make([]func(), 0, len(f.jobs))
	for _, job := range f.jobs {
		jobs = append(jobs, job)
	}
	f.mu.Unlock()
	for _, job := range jobs {
		job()
	}
}

func (f *fakeScheduler) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func TestWatchTicksImmediatelyAndPeriodically(t *testing.T) {
	sched := newFakeScheduler()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWatcher(sched, time.Minute, func() time.Time { return now })

	var got []Countdown
	h, err := w.Watch(now.Add(2*time.Minute), func(c Countdown) { got = append(got, c) })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 1 || got[0].Minutes != 2 {
		t.Fatalf("first tick = %+v", got)
	}

	now = now.Add(time.Minute)
	sched.fire()
	now = now.Add(time.Minute)
	sched.fire()
	if len(got) != 3 || got[1].Minutes != 1 || !got[2].IsOverdue() {
		t.Fatalf("ticks = %+v", got)
	}

	h.Stop()
	h.Stop()
	if sched.active() != 0 {
		t.Fatalf("timer still active after Stop")
	}
	sched.fire()
	if len(got) != 3 {
		t.Errorf("tick after Stop")
	}
}

func TestResetRearmsSingleTimer(t *testing.T) {
	sched := newFakeScheduler()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWatcher(sched, time.Minute, func() time.Time { return now })

	var ticks int
	h, err := w.Watch(now.Add(time.Hour), func(Countdown) { ticks++ })
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Reset(now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if sched.armed != 1 || ticks != 1 {
		t.Fatalf("same deadline re-armed: armed=%d ticks=%d", sched.armed, ticks)
	}

	if err := h.Reset(now.Add(2 * time.Hour)); err != nil {
		t.Fatal(err)
	}
	if sched.active() != 1 {
		t.Fatalf("active timers = %d, want 1", sched.active())
	}
	if ticks != 2 {
		t.Errorf("Reset did not evaluate immediately, ticks=%d", ticks)
	}
	if !h.Deadline().Equal(now.Add(2 * time.Hour)) {
		t.Errorf("Deadline = %v", h.Deadline())
	}

	h.Stop()
	if err := h.Reset(now); err != ErrStopped {
		t.Errorf("Reset after Stop err = %v", err)
	}
}

func TestConcurrentResetsLeaveOneTimer(t *testing.T) {
	sched := newFakeScheduler()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWatcher(sched, time.Minute, func() time.Time { return start })

	h, err := w.Watch(start.Add(time.Hour), func(Countdown) {})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.Reset(start.Add(time.Duration(i) * time.Hour))
		}(i + 1)
	}
	wg.Wait()

	if got := sched.active(); got != 1 {
		t.Fatalf("active timers = %d, want 1", got)
	}
	h.Stop()
	if got := sched.active(); got != 0 {
		t.Errorf("active timers after Stop = %d", got)
	}
}
