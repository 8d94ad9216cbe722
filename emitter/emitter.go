// Package emitter schedules and delivers timestamped audio packets to a
// single receiver's transport connection.
//
// An Emitter is a single-goroutine actor, following the same model the rest
// of this module uses for its entities: state lives entirely inside one
// goroutine's loop, and callers communicate with it over a command channel
// rather than touching its fields directly.
package emitter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundwaveio/syncaudio/clock"
	"github.com/soundwaveio/syncaudio/support/bufferpool"
	"github.com/soundwaveio/syncaudio/support/fmtutil"
	"github.com/soundwaveio/syncaudio/support/logging"
	"github.com/soundwaveio/syncaudio/support/transport"
	"github.com/soundwaveio/syncaudio/wire"
)

// Handle identifies a previously scheduled send, for use with Discard.
type Handle uint64

// ErrorReporter is notified when a send to the transport fails.
//
// Per spec, transport errors are observable but non-fatal: ReportSendError
// logs and continues. There is no retry — by the time a retry would land,
// the audio it carried is stale.
type ErrorReporter interface {
	ReportSendError(h Handle, playbackAt int64, err error)
}

// Emitter schedules delivery of timestamped packets to one receiver.
//
// Emit/Discard/Stop are safe to call from any goroutine; all scheduling
// state lives in the single goroutine started by Start.
type Emitter struct {
	Sender   transport.Sender
	Clock    *clock.Clock
	Reporter ErrorReporter
	Logger   logging.L

	// BufferPool, if set, supplies the scratch buffer sendHead encodes each
	// outgoing packet into, avoiding one allocation per send. Packets whose
	// encoded size exceeds BufferPool.Size fall back to a plain allocation.
	BufferPool *bufferpool.Pool

	startOnce sync.Once
	cmdC      chan command
	doneC     chan struct{}
	nextH     uint64
}

type command struct {
	emitAt     clock.Time
	playbackAt int64
	bytes      []byte
	handle     Handle
	discard    bool
	stop       bool
}

// Start begins the Emitter's dispatch goroutine. It must be called exactly
// once before Emit, Discard, or Stop.
func (e *Emitter) Start() {
	e.startOnce.Do(func() {
		e.cmdC = make(chan command, 256)
		e.doneC = make(chan struct{})
		e.Logger = logging.Must(e.Logger)
		go e.run()
	})
}

// DoneC returns a channel that is closed once the Emitter has fully stopped.
func (e *Emitter) DoneC() <-chan struct{} { return e.doneC }

// Emit schedules bytes (prefixed on the wire with playbackAt) for delivery at
// local time emitAt. emitAt may be in the past, in which case delivery
// happens as soon as the dispatch goroutine observes it.
//
// Emit returns a Handle usable with Discard. The handle is allocated
// immediately so callers can Discard a packet before it is ever dispatched,
// even if the dispatch goroutine hasn't processed the Emit yet.
func (e *Emitter) Emit(emitAt clock.Time, playbackAt int64, bytes []byte) Handle {
	h := Handle(atomic.AddUint64(&e.nextH, 1))
	select {
	case e.cmdC <- command{emitAt: emitAt, playbackAt: playbackAt, bytes: bytes, handle: h}:
	case <-e.doneC:
	}
	return h
}

// Discard revokes the packet identified by (h, playbackAt). If the packet has
// already been sent, Discard is a no-op. Discard is idempotent.
func (e *Emitter) Discard(h Handle, playbackAt int64) {
	select {
	case e.cmdC <- command{handle: h, playbackAt: playbackAt, discard: true}:
	case <-e.doneC:
	}
}

// Stop terminates the Emitter, discarding all pending sends. Stop blocks
// until the dispatch goroutine has exited.
func (e *Emitter) Stop() {
	select {
	case e.cmdC <- command{stop: true}:
	case <-e.doneC:
		return
	}
	<-e.doneC
}

type pending struct {
	handle     Handle
	emitAt     clock.Time
	playbackAt int64
	bytes      []byte
	discarded  bool
}

// run is the Emitter's single dispatch goroutine.
//
// queue is kept in arrival order and only its head is ever timed. The
// Broadcaster's tick loop emits with non-decreasing emitAt values, but
// FanOut.BufferReceiver emits at "now", which can be earlier than an emitAt
// already queued; such a packet waits until every packet ahead of it is due.
func (e *Emitter) run() {
	defer close(e.doneC)

	var queue []pending
	var timer *time.Timer
	timerRunning := false

	stopTimer := func() {
		if timerRunning {
			if !timer.Stop() {
				<-timer.C
			}
			timerRunning = false
		}
	}

	for {
		var timerC <-chan time.Time
		if len(queue) > 0 {
			delay := time.Duration(queue[0].emitAt-e.Clock.Now()) * time.Microsecond
			if delay <= 0 {
				e.sendHead(&queue)
				continue
			}
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			timerRunning = true
			timerC = timer.C
		}

		select {
		case cmd, ok := <-e.cmdC:
			if !ok {
				stopTimer()
				return
			}
			stopTimer()

			switch {
			case cmd.stop:
				metricsStopped.Inc()
				return
			case cmd.discard:
				for i := range queue {
					if queue[i].handle == cmd.handle && queue[i].playbackAt == cmd.playbackAt {
						queue[i].discarded = true
					}
				}
			default:
				queue = append(queue, pending{
					handle:     cmd.handle,
					emitAt:     cmd.emitAt,
					playbackAt: cmd.playbackAt,
					bytes:      cmd.bytes,
				})
			}

		case <-timerC:
			timerRunning = false
			e.sendHead(&queue)
		}
	}
}

// sendHead dispatches (or skips, if discarded) the head of queue and pops it.
func (e *Emitter) sendHead(queue *[]pending) {
	p := (*queue)[0]
	*queue = (*queue)[1:]

	if p.discarded {
		return
	}

	pkt := wire.Packet{PlaybackAt: p.playbackAt, Bytes: p.bytes}

	var buf []byte
	var pooled *bufferpool.Buffer
	if e.BufferPool != nil {
		pooled = e.BufferPool.Get()
		buf = wire.Encode(pooled.Bytes()[:0], pkt)
		pooled.Truncate(len(buf))
		defer pooled.Release()
	} else {
		buf = wire.Encode(make([]byte, 0, wire.HeaderSize+len(p.bytes)), pkt)
	}

	if err := e.Sender.Send(buf); err != nil {
		metricsSendErrors.Inc()
		e.Logger.Debugf("send failed for playback_at=%d payload=%s: %v", p.playbackAt, fmtutil.HexSlice(p.bytes), err)
		if e.Reporter != nil {
			e.Reporter.ReportSendError(p.handle, p.playbackAt, err)
		}
		return
	}
	metricsSent.Inc()
}
