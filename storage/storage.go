// Package storage defines the persistence contracts a Channel relies on for
// state it does not own itself: playlists and receiver identity/volume
// profiles. Neither is implemented against a real backend here; callers
// supply a PlaylistStore/ReceiverStore the same way the teacher treats
// device discovery as an external, pluggable collaborator.
package storage

import "github.com/pkg/errors"

// ErrNotFound is returned by a Store's Load when id is unknown.
var ErrNotFound = errors.New("storage: not found")

// Playlist is the persisted ordering of source ids a Channel's SourceStream
// should read from.
type Playlist struct {
	ID        string
	ChannelID string
	SourceIDs []string
}

// PlaylistStore loads and saves Playlists by id.
type PlaylistStore interface {
	Load(id string) (Playlist, error)
	Save(p Playlist) error
}

// ReceiverProfile is the persisted identity of one receiver: its last known
// volume, independent of whether it's currently attached to any Channel.
type ReceiverProfile struct {
	ID        string
	VolumePct int
}

// ReceiverStore loads and saves ReceiverProfiles by id.
type ReceiverStore interface {
	Load(id string) (ReceiverProfile, error)
	Save(p ReceiverProfile) error
}
