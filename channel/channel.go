// Package channel implements the top-level playback-group state machine:
// it owns a SourceStream, a set of attached Receivers, and at most one
// active Broadcaster, and coordinates play/pause/skip and receiver
// attach/detach.
package channel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundwaveio/syncaudio/broadcaster"
	"github.com/soundwaveio/syncaudio/clock"
	"github.com/soundwaveio/syncaudio/emitter"
	"github.com/soundwaveio/syncaudio/eventbus"
	"github.com/soundwaveio/syncaudio/receiver"
	"github.com/soundwaveio/syncaudio/sourcestream"
	"github.com/soundwaveio/syncaudio/support/logging"
	"github.com/soundwaveio/syncaudio/support/transport"
)

// State is one of a Channel's three playback states.
type State int32

const (
	// Stop is the initial state; no Broadcaster is active.
	Stop State = iota
	// Play is steady-state playback.
	Play
	// Skip is the transient state entered while tearing down the current
	// Broadcaster and standing up a new one at a different source; by the
	// time Skip returns to a caller, the Channel has settled back to Play.
	Skip
)

func (s State) String() string {
	switch s {
	case Stop:
		return "Stop"
	case Play:
		return "Play"
	case Skip:
		return "Skip"
	default:
		return "Unknown"
	}
}

// BufferLatency is the fixed headroom added on top of the slowest attached
// receiver's measured latency when computing broadcast_latency.
const BufferLatency = 50 * time.Millisecond

// Attachment bundles what AttachReceiver needs to wire a new receiver into
// both the audio fan-out and the time-sync engine.
type Attachment struct {
	ID            string
	AudioSender   transport.Sender
	SyncTransport receiver.SyncTransport
}

// Channel owns one playback group for its entire process lifetime.
type Channel struct {
	ID             string
	Clock          *clock.Clock
	Events         *eventbus.Bus
	Logger         logging.L
	StreamInterval time.Duration
	BufferSize     int

	// Stream is the Channel's single SourceStream, created once and reused
	// across every Broadcaster this Channel ever creates.
	Stream *sourcestream.Stream

	startOnce sync.Once
	cmdC      chan cmd
	doneC     chan struct{}
	state     int32 // atomic State

	fanOut    *emitter.FanOut
	receivers map[string]*receiver.Receiver
	current   *broadcaster.Broadcaster
}

type cmdKind int

const (
	cmdAttach cmdKind = iota
	cmdDetach
	cmdPlayPause
	cmdSkip
	cmdStreamFinished
	cmdSetVolume
	cmdTick
)

type cmd struct {
	kind       cmdKind
	attachment Attachment
	receiverID string
	sourceID   string
	volumePct  int
	now        clock.Time
	interval   time.Duration
	resultC    chan error
}

// init lazily starts the Channel's command loop on first use. Every exported
// method calls it, so callers never need to start a Channel explicitly.
func (ch *Channel) init() {
	ch.startOnce.Do(func() {
		ch.cmdC = make(chan cmd, 64)
		ch.doneC = make(chan struct{})
		ch.Logger = logging.Must(ch.Logger)
		ch.fanOut = emitter.NewFanOut()
		ch.receivers = make(map[string]*receiver.Receiver)
		atomic.StoreInt32(&ch.state, int32(Stop))
		go ch.run()
	})
}

// DoneC returns a channel closed once the Channel's loop has exited. Channel
// has no method that ends the loop, so for a live Channel it stays open.
func (ch *Channel) DoneC() <-chan struct{} {
	ch.init()
	return ch.doneC
}

// State returns the Channel's current state.
func (ch *Channel) State() State {
	return State(atomic.LoadInt32(&ch.state))
}

func (ch *Channel) call(c cmd) error {
	ch.init()
	c.resultC = make(chan error, 1)
	select {
	case ch.cmdC <- c:
	case <-ch.doneC:
		return errChannelClosed
	}
	select {
	case err := <-c.resultC:
		return err
	case <-ch.doneC:
		return errChannelClosed
	}
}

// AttachReceiver wires a new receiver into the Channel: it joins att's
// SyncTransport to the time-sync engine and registers att's AudioSender with
// the Channel's shared packet fan-out. If the Channel is currently playing,
// the newly attached receiver is immediately caught up via the active
// Broadcaster's in-flight window.
func (ch *Channel) AttachReceiver(att Attachment) error {
	return ch.call(cmd{kind: cmdAttach, attachment: att})
}

// DetachReceiver removes a receiver from the Channel. Packets already
// dispatched to it are not revoked.
func (ch *Channel) DetachReceiver(id string) error {
	return ch.call(cmd{kind: cmdDetach, receiverID: id})
}

// PlayPause toggles between Stop and Play.
func (ch *Channel) PlayPause() error {
	return ch.call(cmd{kind: cmdPlayPause})
}

// Skip stops the current Broadcaster, advances the SourceStream to id, and
// starts a new Broadcaster there. Skip fails with ErrNotPlaying if the
// Channel is not currently in Play.
func (ch *Channel) Skip(id string) error {
	return ch.call(cmd{kind: cmdSkip, sourceID: id})
}

// SetVolume updates the volume of the named receiver, 0-100.
func (ch *Channel) SetVolume(id string, pct int) error {
	return ch.call(cmd{kind: cmdSetVolume, receiverID: id, volumePct: pct})
}

// Tick forwards one scheduling step to the Channel's active Broadcaster, if
// any, so a single controller tick loop can drive every Channel without
// reaching into Broadcaster internals itself. Tick is fire-and-forget: a
// Channel that isn't playing simply drops it.
func (ch *Channel) Tick(now clock.Time, interval time.Duration) {
	ch.init()
	select {
	case ch.cmdC <- cmd{kind: cmdTick, now: now, interval: interval}:
	case <-ch.doneC:
	}
}
