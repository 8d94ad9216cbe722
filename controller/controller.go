// Package controller drives the periodic tick that paces every active
// Channel's Broadcaster. It owns no playback state itself; it only decides
// when each registered Channel gets its next scheduling step and in what
// order.
package controller

import (
	"sync"
	"time"

	"github.com/soundwaveio/syncaudio/clock"
	"github.com/soundwaveio/syncaudio/support/logging"
)

// Channel is the subset of *channel.Channel the Controller depends on.
// Declared locally so tests can substitute a fake without importing the
// channel package.
type Channel interface {
	Tick(now clock.Time, interval time.Duration)
}

// Controller fans a single clock tick out to every registered Channel, in a
// fixed order, once per interval.
//
// Controller registers and unregisters Channels from any goroutine; the tick
// callback itself runs on the Clock's own ticker goroutine, serialized with
// registration changes by mu. Channel.Tick does not wait for the step to be
// processed, but it blocks while that Channel's command queue is full; a
// wedged Channel therefore delays the tick for the Channels after it.
type Controller struct {
	Clock    *clock.Clock
	Interval time.Duration
	Logger   logging.L

	mu       sync.Mutex
	order    []string
	channels map[string]Channel
	cancel   clock.Cancel
}

func (ctl *Controller) init() {
	if ctl.channels == nil {
		ctl.channels = make(map[string]Channel)
	}
	ctl.Logger = logging.Must(ctl.Logger)
}

// Register adds ch under id, ticking after every already-registered Channel.
// Registering an id that's already present replaces it in place, keeping its
// original position in the tick order.
func (ctl *Controller) Register(id string, ch Channel) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.init()

	if _, exists := ctl.channels[id]; !exists {
		ctl.order = append(ctl.order, id)
	}
	ctl.channels[id] = ch
	metricsRegistered.Set(float64(len(ctl.channels)))
}

// Unregister removes id from the tick order. It is a no-op if id isn't
// registered.
func (ctl *Controller) Unregister(id string) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.init()

	if _, exists := ctl.channels[id]; !exists {
		return
	}
	delete(ctl.channels, id)
	for i, oid := range ctl.order {
		if oid == id {
			ctl.order = append(ctl.order[:i], ctl.order[i+1:]...)
			break
		}
	}
	metricsRegistered.Set(float64(len(ctl.channels)))
}

// Start begins ticking every Interval. Start is idempotent; calling it again
// before Stop has no effect.
func (ctl *Controller) Start() {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.init()

	if ctl.cancel != nil {
		return
	}
	ctl.cancel = ctl.Clock.ScheduleTick(ctl.Interval, ctl.tick)
}

// Stop halts ticking. It is safe to call more than once, and safe to call
// without a prior Start.
func (ctl *Controller) Stop() {
	ctl.mu.Lock()
	cancel := ctl.cancel
	ctl.cancel = nil
	ctl.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// tick is invoked from the Clock's ticker goroutine. It snapshots the
// current registration order under lock, then dispatches outside the lock so
// a Channel blocking on its own actor loop can't delay Register/Unregister.
func (ctl *Controller) tick(now clock.Time, interval time.Duration) {
	ctl.mu.Lock()
	order := append([]string(nil), ctl.order...)
	channels := make([]Channel, len(order))
	for i, id := range order {
		channels[i] = ctl.channels[id]
	}
	ctl.mu.Unlock()

	for _, ch := range channels {
		ch.Tick(now, interval)
	}
	metricsTicks.Inc()
}
