package guard

import (
	"sync"
	"time"
)

// Watchdog is the external protection layer: a one-shot timer that reports an
// external Fault when an execution outlives its deadline. It exists because
// the injected counters cannot reach every loop, so the supervisor needs a
// lever that works regardless of what the guest is doing.
type Watchdog struct {
	timeout time.Duration
	timer   *time.Timer

	mu        sync.Mutex
	fired     bool
	cancelled bool
}

// NewWatchdog arms a watchdog that invokes onExpire with an external Fault
// once timeout elapses. The callback runs at most once, on the timer's
// goroutine. Cancel before expiry guarantees it never runs.
func NewWatchdog(timeout time.Duration, onExpire func(Fault)) *Watchdog {
	w := &Watchdog{timeout: timeout}
	w.timer = time.AfterFunc(timeout, func() {
		w.mu.Lock()
		if w.cancelled {
			w.mu.Unlock()
			return
		}
		w.fired = true
		w.mu.Unlock()
		onExpire(ExternalFault(timeout))
	})
	return w
}

// Cancel disarms the watchdog. Calling it after the callback has run, or
// calling it repeatedly from multiple goroutines, is harmless.
func (w *Watchdog) Cancel() {
	w.mu.Lock()
	w.cancelled = true
	w.mu.Unlock()
	w.timer.Stop()
}

// Fired reports whether the callback ran.
func (w *Watchdog) Fired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}
