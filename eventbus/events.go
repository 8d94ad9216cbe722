package eventbus

import "time"

// ReceiverAdded is published when a receiver attaches to a channel.
type ReceiverAdded struct {
	ChannelID  string
	ReceiverID string
}

// ReceiverRemoved is published when a receiver detaches from a channel.
type ReceiverRemoved struct {
	ChannelID  string
	ReceiverID string
}

// ChannelPlayPause is published whenever a Channel's play/pause state
// toggles, reporting the state it transitioned into.
type ChannelPlayPause struct {
	ChannelID string
	Playing   bool
}

// ChannelFinished is published when a Channel's Broadcaster drains and the
// Channel returns to Stop because its SourceStream is exhausted.
type ChannelFinished struct {
	ChannelID string
}

// SourceChanged is published when the frame stream crosses from one
// source_id to another, including the first non-nil observation.
type SourceChanged struct {
	ChannelID   string
	PriorID     string
	CurrentID   string
	PacketAtN   uint64
}

// SourceProgress is published periodically (every 3 tick intervals) while a
// Channel is playing, reporting how far into the current source playback
// has advanced. Duration is the current source's total length and is zero
// if the underlying Source doesn't report one.
type SourceProgress struct {
	ChannelID string
	SourceID  string
	Position  time.Duration
	Duration  time.Duration
}

// VolumeChange is published when a receiver's volume is changed.
type VolumeChange struct {
	ChannelID  string
	ReceiverID string
	Volume     int
}
