// scheduler.go — Timer scheduling abstraction.
// All chain timers (finalize grace, client-redirect await, idle cleanup) go
// through Scheduler so tests can drive time deterministically. The real
// implementation wraps time.AfterFunc.
package chain

import "time"

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. Returns false if it already
	// fired or was stopped.
	Stop() bool
}

// Scheduler schedules fire-and-forget callbacks and supplies the current time.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

// realScheduler is the production Scheduler backed by the runtime timer heap.
type realScheduler struct{}

// NewScheduler returns the production Scheduler.
func NewScheduler() Scheduler { return realScheduler{} }

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func (realScheduler) Now() time.Time { return time.Now() }
