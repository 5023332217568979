package engine

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled task. Calling it more than once, or after
// the task has already fired or stopped, is a no-op.
type CancelFunc func()

// Scheduler runs deferred and periodic tasks for the engine: the boss
// pressure pulse, the siphon payout, and file-transfer completion. The
// engine re-checks its own preconditions inside every task body, so a
// task firing after a logical cancel must be harmless; the Scheduler
// only has to deliver calls and honor cancellation eventually.
type Scheduler interface {
	// Every runs fn repeatedly with period d until cancelled.
	Every(d time.Duration, fn func()) CancelFunc

	// After runs fn once after d unless cancelled first.
	After(d time.Duration, fn func()) CancelFunc
}

// TickerScheduler is the production Scheduler, backed by real timers.
type TickerScheduler struct{}

// NewTickerScheduler returns a Scheduler backed by time.Ticker and
// time.AfterFunc.
func NewTickerScheduler() *TickerScheduler { return &TickerScheduler{} }

// Every starts a goroutine pumping fn on a ticker.
func (*TickerScheduler) Every(d time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	var stopOnce sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() {
		stopOnce.Do(func() { close(done) })
	}
}

// After schedules fn once.
func (*TickerScheduler) After(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() { t.Stop() })
	}
}
