package channel

import "github.com/pkg/errors"

// ErrNotPlaying is returned by Skip when the Channel is in the Stop state.
// Per-design decision, skip never implicitly starts playback or seeks a
// stopped SourceStream; callers must play_pause first.
var ErrNotPlaying = errors.New("channel: skip requires the channel to be playing")

// ErrUnknownReceiver is returned by DetachReceiver for an id that isn't
// currently attached.
var ErrUnknownReceiver = errors.New("channel: unknown receiver")

// ErrReceiverElsewhere is returned by AttachReceiver when a receiver with the
// same id is already attached to this Channel. Attachments held by other
// Channels are not checked.
var ErrReceiverElsewhere = errors.New("channel: receiver already attached elsewhere")

// ErrUnknownSource is returned by Skip when id does not name a known
// upcoming playlist entry.
var ErrUnknownSource = errors.New("channel: unknown source id")
