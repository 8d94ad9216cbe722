// Package broadcaster implements the packet scheduler: it turns a
// SourceStream into a paced stream of timestamped packets, keeps a sliding
// in-flight window so late-joining receivers can catch up, and reports
// completion back to its owning Channel.
//
// A Broadcaster is a single-goroutine actor. Its State, in-flight window,
// and stream cursor are all private to the run goroutine; callers interact
// exclusively through Start/Emit/Stop/BufferReceiver, which are at-most-once
// commands queued on an internal channel. Start, Emit and BufferReceiver
// return without waiting; Stop blocks until the Broadcaster has terminated.
package broadcaster

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundwaveio/syncaudio/clock"
	"github.com/soundwaveio/syncaudio/emitter"
	"github.com/soundwaveio/syncaudio/eventbus"
	"github.com/soundwaveio/syncaudio/sourcestream"
	"github.com/soundwaveio/syncaudio/support/logging"
)

// State is one of the Broadcaster lifecycle states.
type State int32

const (
	// Created is the state before Start has been processed.
	Created State = iota
	// Running is the steady-state playback state.
	Running
	// Draining is entered once the SourceStream reports End; the Broadcaster
	// keeps ticking only to let the existing in_flight window play out.
	Draining
	// Terminated is the final state; no further commands are processed.
	Terminated
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Running:
		return "Running"
	case Draining:
		return "Draining"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// StopReason distinguishes the caller-issued stop commands. The third
// termination path, stream exhaustion, is never requested by a caller; it is
// the Broadcaster's own transition out of Draining.
type StopReason int

const (
	// StopNormal rebuffers the in-flight window back into the SourceStream so
	// a later play_pause resumes without losing unplayed audio.
	StopNormal StopReason = iota
	// StopSkip discards the in-flight window outright.
	StopSkip
)

// FastFillDivisor controls the over-speed pacing Start uses to pack a
// receiver's buffer before the first playback deadline: fast-fill frames are
// emitted FastFillDivisor times more densely than steady-state frames.
const FastFillDivisor = 4

// progressTickInterval is how many cmdEmit ticks elapse between
// eventbus.SourceProgress publications, expressed as a multiple of the
// controller's tick interval.
const progressTickInterval = 3

// inFlightPacket records a packet that has been handed to the Emitter but
// whose playback_at is still in the future.
type inFlightPacket struct {
	handle     emitter.Handle
	playbackAt int64
	sourceID   string
	bytes      []byte
}

// Broadcaster is the packet scheduler for one Channel's active playback.
type Broadcaster struct {
	ChannelID      string
	Stream         *sourcestream.Stream
	Emitter        *emitter.FanOut
	Clock          *clock.Clock
	Events         *eventbus.Bus
	Logger         logging.L
	StreamInterval time.Duration

	// OnStreamFinished is invoked exactly once, from the run goroutine, when
	// the Broadcaster terminates because the SourceStream was exhausted and
	// its in-flight window fully drained. It is not invoked for StopNormal or
	// StopSkip, since those are caller-initiated and the caller already knows.
	OnStreamFinished func()

	startOnce sync.Once
	cmdC      chan command
	doneC     chan struct{}
	state     int32 // atomic State
}

type command struct {
	kind          commandKind
	now           clock.Time
	interval      time.Duration
	latencyUS     int64
	bufferSize    int
	stopReason    StopReason
	receiverID    string
	stopReasonSet bool
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdEmit
	cmdStop
	cmdBufferReceiver
)

// init lazily starts the Broadcaster's run goroutine on first use.
func (b *Broadcaster) init() {
	b.startOnce.Do(func() {
		b.cmdC = make(chan command, 64)
		b.doneC = make(chan struct{})
		b.Logger = logging.Must(b.Logger)
		atomic.StoreInt32(&b.state, int32(Created))
		go b.run()
	})
}

// State returns the Broadcaster's current lifecycle state.
func (b *Broadcaster) State() State {
	return State(atomic.LoadInt32(&b.state))
}

// DoneC returns a channel closed once the Broadcaster has fully terminated.
func (b *Broadcaster) DoneC() <-chan struct{} {
	b.init()
	return b.doneC
}

// Start fast-fills receiver buffers and transitions the Broadcaster to
// Running. now is the local time Start is issued at; latency is the
// broadcast latency budget (microseconds); bufferSize is the number of
// frames to pre-fill.
func (b *Broadcaster) Start(now clock.Time, latencyUS int64, bufferSize int) {
	b.init()
	b.send(command{kind: cmdStart, now: now, latencyUS: latencyUS, bufferSize: bufferSize})
}

// Emit is one steady-state scheduling step, driven by the Controller's tick
// loop. now and interval come from that tick so every Broadcaster in a given
// cycle agrees on the same now.
func (b *Broadcaster) Emit(now clock.Time, interval time.Duration) {
	b.init()
	b.send(command{kind: cmdEmit, now: now, interval: interval})
}

// Stop terminates the Broadcaster for the given reason and blocks until
// termination completes. now is used to partition the in-flight window when
// reason is StopNormal.
func (b *Broadcaster) Stop(now clock.Time, reason StopReason) {
	b.init()
	b.send(command{kind: cmdStop, now: now, stopReason: reason, stopReasonSet: true})
	<-b.doneC
}

// BufferReceiver re-sends the current in-flight window to receiverID only,
// preserving each packet's playback_at. Used when a receiver attaches
// mid-playback.
func (b *Broadcaster) BufferReceiver(now clock.Time, receiverID string) {
	b.init()
	b.send(command{kind: cmdBufferReceiver, now: now, receiverID: receiverID})
}

func (b *Broadcaster) send(cmd command) {
	select {
	case b.cmdC <- cmd:
	case <-b.doneC:
	}
}
