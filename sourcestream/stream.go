// Package sourcestream wraps a playlist source with the frame-level
// resilience and cursor discipline a Broadcaster needs: rebuffer on pause,
// flush on skip, and silent-frame substitution on decode errors. Frames are
// pulled from the Source only on demand; there is no read-ahead.
package sourcestream

import (
	"time"

	"github.com/pkg/errors"

	"github.com/soundwaveio/syncaudio/support/logging"
)

// Frame is a single fixed-size unit of PCM audio pulled from a Source.
type Frame struct {
	// PacketNumber is the position of this Frame within the Broadcaster's
	// emission, assigned by the caller, not the Stream.
	PacketNumber uint64

	// SourceID identifies the playlist entry this Frame came from. Two
	// consecutive frames either share a SourceID or the SourceID strictly
	// advances; a change from one non-empty value to another signals a track
	// change.
	SourceID string

	// Bytes is the raw PCM payload.
	Bytes []byte
}

// End is returned by Source.Next when the entire playlist is exhausted, and
// by Source.Advance when no entries remain.
var End = errors.New("sourcestream: end of stream")

// FrameSize is the fixed size, in bytes, of every Frame's Bytes.
//
// A single Stream only ever serves frames of its own FrameSize; Source
// implementations must pad or truncate to match.
type FrameSize int

// Source produces raw frames for a single playlist entry at a time and
// advances to the next entry on its own schedule. Stream is the adapter that
// gives callers the flush/rebuffer/reset vocabulary on top of a Source.
type Source interface {
	// Next returns the next frame from the current playlist entry, or End if
	// the entire playlist has been exhausted. A read or decode error for the
	// current entry is returned as-is; Stream is responsible for substituting
	// silence and eventually advancing past a persistently broken entry.
	Next() (Frame, error)

	// Skip advances the underlying playlist to the entry identified by id.
	// Skip returns an error if id is not a known upcoming entry.
	Skip(id string) error

	// Advance gives up on the current playlist entry and moves to the next
	// one in playlist order, returning its id. Advance returns End if no
	// entries remain.
	Advance() (string, error)
}

// DurationSource is optionally implemented by a Source that knows the total
// duration of the playlist entry it is currently serving.
type DurationSource interface {
	Duration() time.Duration
}

// SilenceThreshold is the number of consecutive Source read failures Stream
// will paper over with silent frames before giving up on the current entry
// and advancing to the next one.
const SilenceThreshold = 4

// Stream adapts a Source with rebuffer, flush, and reset semantics. The only
// frames it holds are those pushed back by Rebuffer.
//
// Stream is not safe for concurrent use; it is driven exclusively by the
// owning Broadcaster's single goroutine.
type Stream struct {
	Source    Source
	FrameSize int
	Logger    logging.L

	rebuffered  []Frame
	lastSource  string
	failStreak  int
	nextPacketN uint64
}

// Init must be called once before any other Stream method.
func (s *Stream) Init() {
	s.Logger = logging.Must(s.Logger)
}

// NextFrame yields the next frame in playback order.
//
// If rebuffer has pushed frames back onto the head of the stream, those are
// drained first, in order, before Source is consulted again. On a Source
// read error, NextFrame substitutes a silent frame of FrameSize bytes tagged
// with the prior SourceID; after SilenceThreshold consecutive substitutions
// it gives up on the current entry, calls Source.Advance to move past it,
// and resets the failure streak. The frame returned for that call is still a
// silent placeholder, but tagged with the new source id, so the Broadcaster
// observes the source_id transition as soon as the frame plays.
func (s *Stream) NextFrame() (Frame, error) {
	if len(s.rebuffered) > 0 {
		f := s.rebuffered[0]
		s.rebuffered = s.rebuffered[1:]
		s.lastSource = f.SourceID
		return f, nil
	}

	f, err := s.Source.Next()
	switch {
	case err == nil:
		s.failStreak = 0
		s.lastSource = f.SourceID
		return f, nil

	case errors.Is(err, End):
		return Frame{}, End

	default:
		s.failStreak++
		s.Logger.Warnf("source read error (%d/%d consecutive): %s", s.failStreak, SilenceThreshold, err)

		if s.failStreak < SilenceThreshold {
			return Frame{SourceID: s.lastSource, Bytes: make([]byte, s.FrameSize)}, nil
		}

		s.failStreak = 0
		next, advErr := s.Source.Advance()
		if advErr != nil {
			if errors.Is(advErr, End) {
				return Frame{}, End
			}
			s.Logger.Warnf("advancing past unrecoverable source %q: %s", s.lastSource, advErr)
			return Frame{SourceID: s.lastSource, Bytes: make([]byte, s.FrameSize)}, nil
		}

		s.Logger.Warnf("advanced past unrecoverable source %q to %q after %d consecutive failures", s.lastSource, next, SilenceThreshold)
		s.lastSource = next
		return Frame{SourceID: next, Bytes: make([]byte, s.FrameSize)}, nil
	}
}

// Duration returns the current playlist entry's total duration, or zero if
// the underlying Source doesn't report one.
func (s *Stream) Duration() time.Duration {
	if ds, ok := s.Source.(DurationSource); ok {
		return ds.Duration()
	}
	return 0
}

// Rebuffer pushes frames back onto the head of the stream, preserving their
// relative order, so that the next NextFrame call returns frames[0]. Used
// when playback is paused mid-buffer so the paused packets aren't lost.
func (s *Stream) Rebuffer(frames []Frame) {
	if len(frames) == 0 {
		return
	}
	s.rebuffered = append(append([]Frame(nil), frames...), s.rebuffered...)
}

// Flush discards all rebuffered frames without advancing the playlist
// cursor; Skip calls it, since the frames being discarded were never played.
func (s *Stream) Flush() {
	s.rebuffered = nil
	s.failStreak = 0
}

// Reset drops rebuffered frames and clears the failure streak and the last
// seen source id. It does not move the Source's cursor, so the next frame
// comes from wherever the Source currently is.
func (s *Stream) Reset() {
	s.rebuffered = nil
	s.failStreak = 0
	s.lastSource = ""
}

// Skip flushes any rebuffered frames and advances the underlying Source to
// the playlist entry identified by id. It returns an error if id is not a
// known upcoming entry, in which case no state changes.
func (s *Stream) Skip(id string) error {
	if err := s.Source.Skip(id); err != nil {
		return err
	}
	s.Flush()
	return nil
}
