// Package clock abstracts the monotonic time source used by deadlines and
// fixed delays so they can be simulated without real elapsed time.
package clock

import (
	"sync"
	"time"
)

// Clock provides monotonic time and waiting primitives.
type Clock interface {
	// Now returns the current time. Only differences between two values
	// are meaningful.
	Now() time.Time
	// Sleep blocks for the duration.
	Sleep(time.Duration)
	// After returns a chan which receives once the duration elapsed.
	After(time.Duration) <-chan time.Time
}

// System is the Clock backed by package time.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time { return time.Now() }

// Sleep implements Clock.
func (System) Sleep(d time.Duration) { time.Sleep(d) }

// After implements Clock.
func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Fake is a manually driven Clock. Every call to Now advances the time by
// Step, so a spin-poll against a deadline terminates after a bounded number
// of iterations. Sleep and After advance the time immediately.
type Fake struct {
	Step time.Duration

	now   time.Time
	slept time.Duration
	waits []time.Duration
	lock  sync.Mutex
}

// NewFake creates a Fake advancing step on every Now.
func NewFake(step time.Duration) *Fake {
	return &Fake{Step: step, now: time.Unix(0, 0)}
}

// Now implements Clock.
func (f *Fake) Now() time.Time {
	f.lock.Lock()
	defer f.lock.Unlock()
	t := f.now
	f.now = f.now.Add(f.Step)
	return t
}

// Sleep implements Clock.
func (f *Fake) Sleep(d time.Duration) {
	f.wait(d)
}

// After implements Clock.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- f.wait(d)
	return ch
}

// Advance moves the time forward without recording a wait.
func (f *Fake) Advance(d time.Duration) {
	f.lock.Lock()
	f.now = f.now.Add(d)
	f.lock.Unlock()
}

// Slept returns the accumulated duration of Sleep and After calls.
func (f *Fake) Slept() time.Duration {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.slept
}

// Waits returns every duration passed to Sleep or After, in order.
func (f *Fake) Waits() []time.Duration {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

func (f *Fake) wait(d time.Duration) time.Time {
	f.lock.Lock()
	defer f.lock.Unlock()
	if d > 0 {
		f.now = f.now.Add(d)
		f.slept += d
	}
	f.waits = append(f.waits, d)
	return f.now
}
