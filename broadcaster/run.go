package broadcaster

import (
	"sync/atomic"
	"time"

	"github.com/soundwaveio/syncaudio/clock"
	"github.com/soundwaveio/syncaudio/emitter"
	"github.com/soundwaveio/syncaudio/eventbus"
	"github.com/soundwaveio/syncaudio/sourcestream"
)

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// run is the Broadcaster's single-goroutine command loop. Every field below
// is private state touched only from here; cross-goroutine access goes
// through the cmdC channel. All time quantities are microseconds (clock.Time
// or a plain int64), matching the MonotonicClock's resolution.
func (b *Broadcaster) run() {
	defer close(b.doneC)

	var (
		startTime         int64
		latencyUS         int64
		emitTime          int64
		packetNumber      uint64
		inFlight          []inFlightPacket
		lastSourceID      string
		sawFirstSource    bool
		draining          bool
		playedCount       int64
		sourceStartPlayed int64
		progressTicks     int
	)

	streamIntervalUS := b.StreamInterval.Microseconds()

	terminate := func() {
		atomic.StoreInt32(&b.state, int32(Terminated))
		metricsTerminated.Inc()
	}

	timestampFor := func(n uint64) int64 {
		return startTime + latencyUS + int64(n)*streamIntervalUS
	}

	announceSourceChange := func(id string, n uint64) {
		if id == lastSourceID && sawFirstSource {
			return
		}
		prior := lastSourceID
		lastSourceID = id
		sawFirstSource = true
		sourceStartPlayed = playedCount
		if b.Events != nil {
			b.Events.Publish(eventbus.SourceChanged{
				ChannelID: b.ChannelID,
				PriorID:   prior,
				CurrentID: id,
				PacketAtN: n,
			})
		}
	}

	// pruneInFlight drops every entry whose playback_at has already passed,
	// scanning the dropped partition for source_id transitions and releasing
	// each played packet's Emitter handle so FanOut can forget it.
	pruneInFlight := func(now int64) {
		kept := inFlight[:0]
		for _, p := range inFlight {
			if p.playbackAt > now {
				kept = append(kept, p)
				continue
			}
			announceSourceChange(p.sourceID, packetNumber)
			playedCount++
			b.Emitter.Discard(p.handle, p.playbackAt)
			metricsPlayed.Inc()
		}
		inFlight = kept
		metricsInFlightGauge.Set(float64(len(inFlight)))
	}

	// publishProgress reports how far playback has advanced into the current
	// source, at progressTickInterval granularity.
	publishProgress := func() {
		if !sawFirstSource || b.Events == nil {
			return
		}
		progressTicks++
		if progressTicks < progressTickInterval {
			return
		}
		progressTicks = 0
		elapsedUS := (playedCount - sourceStartPlayed) * streamIntervalUS
		b.Events.Publish(eventbus.SourceProgress{
			ChannelID: b.ChannelID,
			SourceID:  lastSourceID,
			Position:  time.Duration(elapsedUS) * time.Microsecond,
			Duration:  b.Stream.Duration(),
		})
	}

	emitOne := func(emitAt int64, playbackAt int64, f sourcestream.Frame) {
		h := b.Emitter.Emit(clock.Time(emitAt), playbackAt, f.Bytes)
		inFlight = append(inFlight, inFlightPacket{
			handle:     h,
			playbackAt: playbackAt,
			sourceID:   f.SourceID,
			bytes:      f.Bytes,
		})
		metricsEmitted.Inc()
		metricsInFlightGauge.Set(float64(len(inFlight)))
		packetNumber++
	}

	discardAll := func() {
		for _, p := range inFlight {
			b.Emitter.Discard(p.handle, p.playbackAt)
		}
		inFlight = nil
	}

	rebufferAll := func(now int64) {
		var frames []sourcestream.Frame
		for _, p := range inFlight {
			if p.playbackAt <= now {
				continue
			}
			b.Emitter.Discard(p.handle, p.playbackAt)
			frames = append(frames, sourcestream.Frame{SourceID: p.sourceID, Bytes: p.bytes})
		}
		inFlight = nil
		b.Stream.Rebuffer(frames)
	}

	snapshotWindow := func() []emitter.TimestampedPacket {
		out := make([]emitter.TimestampedPacket, len(inFlight))
		for i, p := range inFlight {
			out[i] = emitter.TimestampedPacket{PlaybackAt: p.playbackAt, Bytes: p.bytes}
		}
		return out
	}

	for cmd := range b.cmdC {
		switch cmd.kind {
		case cmdStart:
			startTime = int64(cmd.now)
			latencyUS = cmd.latencyUS
			fastFillStepUS := streamIntervalUS / FastFillDivisor

			for k := 0; k < cmd.bufferSize; k++ {
				f, err := b.Stream.NextFrame()
				if err == sourcestream.End {
					draining = true
					break
				}
				playbackAt := timestampFor(packetNumber)
				emitAt := int64(cmd.now) + int64(k)*fastFillStepUS
				emitOne(emitAt, playbackAt, f)
			}
			emitTime = int64(cmd.now) + int64(cmd.bufferSize)*fastFillStepUS

			if draining {
				atomic.StoreInt32(&b.state, int32(Draining))
			} else {
				atomic.StoreInt32(&b.state, int32(Running))
			}

		case cmdEmit:
			now := int64(cmd.now)
			intervalUS := cmd.interval.Microseconds()

			if !draining {
				nowPlusInterval := now + intervalUS
				diff := nowPlusInterval - emitTime
				if abs64(diff) < intervalUS || nowPlusInterval > emitTime {
					f, err := b.Stream.NextFrame()
					if err == sourcestream.End {
						draining = true
						atomic.StoreInt32(&b.state, int32(Draining))
					} else {
						playbackAt := timestampFor(packetNumber)
						emitOne(emitTime, playbackAt, f)
						emitTime += streamIntervalUS
					}
				}
			}

			pruneInFlight(now)
			publishProgress()

			if draining && len(inFlight) == 0 {
				terminate()
				if b.OnStreamFinished != nil {
					b.OnStreamFinished()
				}
				return
			}

		case cmdStop:
			switch cmd.stopReason {
			case StopNormal:
				rebufferAll(int64(cmd.now))
			case StopSkip:
				discardAll()
			}
			terminate()
			return

		case cmdBufferReceiver:
			b.Emitter.BufferReceiver(cmd.now, cmd.receiverID, snapshotWindow())
		}
	}
}
