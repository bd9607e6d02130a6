// Package debounce provides a cancellable trailing-edge debounced task.
package debounce

import (
	"sync"
	"time"
)

// Task runs fn once delay has elapsed since the most recent Schedule call.
// A Task is safe for concurrent use. fn never runs concurrently with itself.
type Task struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool

	run sync.Mutex
}

// New creates an idle task.
func New(delay time.Duration, fn func()) *Task {
	return &Task{delay: delay, fn: fn}
}

// Delay returns the debounce window.
func (t *Task) Delay() time.Duration {
	return t.delay
}

// Schedule (re)starts the timer. Calls inside the window collapse into a
// single run. Schedule after Stop is a no-op.
func (t *Task) Schedule() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++
	seq := t.seq
	t.timer = time.AfterFunc(t.delay, func() { t.fire(seq) })
}

// Cancel discards a pending run, if any.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// Pending reports whether a run is scheduled and has not fired yet.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// FireNow cancels any pending run and runs fn synchronously on the caller's
// goroutine. It reports false when the task has been stopped.
func (t *Task) FireNow() bool {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return false
	}
	t.cancelLocked()
	t.mu.Unlock()

	t.run.Lock()
	defer t.run.Unlock()
	t.fn()
	return true
}

// Stop cancels any pending run and disables future scheduling. A run that
// is already executing is not interrupted.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.stopped = true
}

func (t *Task) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	// Invalidates a timer that already fired but has not taken the lock yet.
	t.seq++
}

func (t *Task) fire(seq uint64) {
	t.mu.Lock()
	if t.stopped || seq != t.seq {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.run.Lock()
	defer t.run.Unlock()
	t.fn()
}
