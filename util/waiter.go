package util

import (
	"sync"
	"time"
)

// Waiter monitors receive timeouts and reception of initial value
type Waiter struct {
	sync.Mutex
	log     func()
	cond    *sync.Cond
	updated time.Time
	timeout time.Duration
}

// NewWaiter creates new waiter
func NewWaiter(timeout time.Duration, logUnavailable func()) *Waiter {
	p := &Waiter{
		log:     logUnavailable,
		timeout: timeout,
	}
	p.cond = sync.NewCond(p)
	return p
}

// Update resets the timeout counter. Waiter must be locked when calling Update.
func (p *Waiter) Update() {
	p.updated = time.Now()
	p.cond.Broadcast()
}

// LockWithTimeout acquires the lock, waiting for an initial value if none has
// been received yet. It returns the elapsed time since the last update if that
// exceeds the timeout, zero otherwise. Caller must unlock the waiter.
func (p *Waiter) LockWithTimeout() time.Duration {
	p.Lock()

	// wait for initial value
	if p.updated.IsZero() && p.timeout > 0 {
		p.log()

		timer := time.AfterFunc(p.timeout, func() {
			p.Lock()
			p.cond.Broadcast()
			p.Unlock()
		})
		defer timer.Stop()

		start := time.Now()
		for p.updated.IsZero() {
			p.cond.Wait()

			if p.updated.IsZero() && time.Since(start) >= p.timeout {
				return p.timeout
			}
		}
	}

	if elapsed := time.Since(p.updated); p.timeout != 0 && elapsed > p.timeout {
		return elapsed
	}

	return 0
}
