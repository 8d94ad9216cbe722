// Package clock provides the process-wide monotonic time source used by
// every broadcaster and receiver sync exchange.
//
// Time values are expressed in microseconds from an unspecified epoch
// (process start), unaffected by wall-clock adjustments — callers must not
// persist a Time value across process restarts.
package clock

import (
	"sync"
	"time"
)

// Time is a monotonic timestamp in microseconds from the Clock's epoch.
type Time int64

// Cancel stops a previously scheduled tick.
//
// Calling Cancel more than once is safe; the second and subsequent calls do
// nothing.
type Cancel func()

// Clock is a process-wide monotonic time source.
//
// Clock's zero value is ready to use.
type Clock struct {
	once  sync.Once
	epoch time.Time
}

// Default is the single process-wide Clock. Components that don't need an
// isolated clock (e.g. for testing) should use this.
var Default Clock

func (c *Clock) init() {
	c.once.Do(func() { c.epoch = time.Now() })
}

// Now returns the current monotonic time.
func (c *Clock) Now() Time {
	c.init()
	return Time(time.Since(c.epoch).Microseconds())
}

// ScheduleTick invokes fn(now, interval) approximately every interval until
// the returned Cancel is called.
//
// fn is always given the `now` observed by the ticking goroutine for that
// cycle; callers must tolerate arbitrary lateness and should not re-read the
// clock themselves — this lets every listener in one tick agree on a single
// `now`, which is what the Controller relies on to dispatch emit(now,
// interval) to every active Broadcaster in the same cycle.
func (c *Clock) ScheduleTick(interval time.Duration, fn func(now Time, interval time.Duration)) Cancel {
	c.init()

	stopC := make(chan struct{})
	var stopOnce sync.Once

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-stopC:
				return
			case <-t.C:
				fn(c.Now(), interval)
			}
		}
	}()

	return func() {
		stopOnce.Do(func() { close(stopC) })
	}
}
