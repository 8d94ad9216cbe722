package channel

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/soundwaveio/syncaudio/broadcaster"
	"github.com/soundwaveio/syncaudio/clock"
	"github.com/soundwaveio/syncaudio/emitter"
	"github.com/soundwaveio/syncaudio/eventbus"
	"github.com/soundwaveio/syncaudio/receiver"
)

var errChannelClosed = errors.New("channel: closed")

func (ch *Channel) run() {
	defer close(ch.doneC)

	for c := range ch.cmdC {
		switch c.kind {
		case cmdAttach:
			c.resultC <- ch.handleAttach(c.attachment)
		case cmdDetach:
			c.resultC <- ch.handleDetach(c.receiverID)
		case cmdPlayPause:
			c.resultC <- ch.handlePlayPause()
		case cmdSkip:
			c.resultC <- ch.handleSkip(c.sourceID)
		case cmdSetVolume:
			c.resultC <- ch.handleSetVolume(c.receiverID, c.volumePct)
		case cmdStreamFinished:
			ch.handleStreamFinished()
			c.resultC <- nil
		case cmdTick:
			ch.handleTick(c.now, c.interval)
		}
	}
}

func (ch *Channel) handleAttach(att Attachment) error {
	if _, exists := ch.receivers[att.ID]; exists {
		return ErrReceiverElsewhere
	}

	em := &emitter.Emitter{Sender: att.AudioSender, Clock: ch.Clock}
	em.Start()

	rcv := &receiver.Receiver{ID: att.ID, Transport: att.SyncTransport, Clock: ch.Clock}
	if err := rcv.Join(ch.ID); err != nil {
		em.Stop()
		return err
	}

	ch.receivers[att.ID] = rcv
	ch.fanOut.AddReceiver(att.ID, em)

	if ch.State() == Play && ch.current != nil {
		ch.current.BufferReceiver(ch.Clock.Now(), att.ID)
	}

	metricsAttached.Inc()
	if ch.Events != nil {
		ch.Events.Publish(eventbus.ReceiverAdded{ChannelID: ch.ID, ReceiverID: att.ID})
	}
	return nil
}

func (ch *Channel) handleDetach(id string) error {
	rcv, ok := ch.receivers[id]
	if !ok {
		return ErrUnknownReceiver
	}

	delete(ch.receivers, id)
	ch.fanOut.RemoveReceiver(id)
	rcv.Leave()

	metricsDetached.Inc()
	if ch.Events != nil {
		ch.Events.Publish(eventbus.ReceiverRemoved{ChannelID: ch.ID, ReceiverID: id})
	}
	return nil
}

func (ch *Channel) handleSetVolume(id string, pct int) error {
	rcv, ok := ch.receivers[id]
	if !ok {
		return ErrUnknownReceiver
	}
	rcv.SetVolume(pct)

	if ch.Events != nil {
		ch.Events.Publish(eventbus.VolumeChange{ChannelID: ch.ID, ReceiverID: id, Volume: rcv.Volume()})
	}
	return nil
}

func (ch *Channel) handlePlayPause() error {
	metricsPlayPause.Inc()
	switch ch.State() {
	case Stop:
		ch.startBroadcaster()
		atomic.StoreInt32(&ch.state, int32(Play))
		if ch.Events != nil {
			ch.Events.Publish(eventbus.ChannelPlayPause{ChannelID: ch.ID, Playing: true})
		}

	case Play:
		ch.current.Stop(ch.Clock.Now(), broadcaster.StopNormal)
		ch.current = nil
		atomic.StoreInt32(&ch.state, int32(Stop))
		if ch.Events != nil {
			ch.Events.Publish(eventbus.ChannelPlayPause{ChannelID: ch.ID, Playing: false})
		}

	case Skip:
		// A play_pause racing a concurrent Skip is serialized behind it by
		// this loop; by the time we'd observe Skip here the prior command has
		// already finished and settled back to Play, so this case is dead in
		// practice. Treat it as a no-op rather than silently misbehaving.
	}
	return nil
}

// handleSkip follows the command sequence from the component design exactly:
// stop(skip) the live Broadcaster before touching the SourceStream at all,
// since Stream is only safe to drive from the goroutine currently holding
// it — which, until stop(skip) returns, is the Broadcaster's, not ours.
//
// If the requested id turns out not to exist, a fresh Broadcaster is
// restarted at the Stream's unskipped position so the Channel still settles
// back to Play with no observable state change, even though the in-flight
// window that was already discarded isn't recoverable.
func (ch *Channel) handleSkip(id string) error {
	metricsSkips.Inc()
	if ch.State() != Play {
		return ErrNotPlaying
	}

	atomic.StoreInt32(&ch.state, int32(Skip))

	ch.current.Stop(ch.Clock.Now(), broadcaster.StopSkip)
	ch.current = nil

	skipErr := ch.Stream.Skip(id)

	ch.startBroadcaster()
	atomic.StoreInt32(&ch.state, int32(Play))

	if skipErr != nil {
		metricsSkipFailed.Inc()
		return ErrUnknownSource
	}
	return nil
}

func (ch *Channel) handleTick(now clock.Time, interval time.Duration) {
	if ch.State() == Play && ch.current != nil {
		ch.current.Emit(now, interval)
	}
}

func (ch *Channel) handleStreamFinished() {
	if ch.current == nil {
		// A play_pause or skip already tore this Broadcaster down between it
		// finishing and this event being processed; nothing left to do.
		return
	}
	ch.current = nil
	atomic.StoreInt32(&ch.state, int32(Stop))
	metricsStreamFinished.Inc()
	if ch.Events != nil {
		ch.Events.Publish(eventbus.ChannelFinished{ChannelID: ch.ID})
	}
}

// broadcastLatencyUS is recomputed only on Play entry, per spec; late-joining
// receivers accept whatever latency is already in force.
func (ch *Channel) broadcastLatencyUS() int64 {
	var max int64
	for _, rcv := range ch.receivers {
		if us := rcv.Latency().Microseconds(); us > max {
			max = us
		}
	}
	return max + BufferLatency.Microseconds()
}

func (ch *Channel) startBroadcaster() {
	b := &broadcaster.Broadcaster{
		ChannelID:      ch.ID,
		Stream:         ch.Stream,
		Emitter:        ch.fanOut,
		Clock:          ch.Clock,
		Events:         ch.Events,
		Logger:         ch.Logger,
		StreamInterval: ch.StreamInterval,
	}
	b.OnStreamFinished = func() {
		ch.cmdC <- cmd{kind: cmdStreamFinished, resultC: make(chan error, 1)}
	}

	ch.current = b
	b.Start(ch.Clock.Now(), ch.broadcastLatencyUS(), ch.BufferSize)
}
