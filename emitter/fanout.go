package emitter

import (
	"sync"
	"sync/atomic"

	"github.com/soundwaveio/syncaudio/clock"
)

// FanOut presents many per-receiver Emitters as the single Emitter contract a
// Broadcaster expects: one emit_at/playback_at/bytes triple in, one opaque
// Handle out, fanned out to every currently attached receiver.
//
// FanOut is safe for concurrent use.
type FanOut struct {
	mu       sync.Mutex
	members  map[string]*Emitter
	inflight map[Handle]map[string]Handle
	nextH    uint64
}

// NewFanOut returns an empty FanOut.
func NewFanOut() *FanOut {
	return &FanOut{
		members:  make(map[string]*Emitter),
		inflight: make(map[Handle]map[string]Handle),
	}
}

// AddReceiver registers em under id. em must already be Start()ed.
func (f *FanOut) AddReceiver(id string, em *Emitter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[id] = em
}

// RemoveReceiver unregisters id. It does not Stop the removed Emitter;
// ownership of its lifecycle belongs to whoever constructed it.
func (f *FanOut) RemoveReceiver(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, id)
}

// Emit schedules bytes for delivery to every currently registered receiver at
// emitAt, tagging the packet with playbackAt. The returned Handle can later
// be passed to Discard to revoke delivery on every member that hasn't sent it
// yet.
func (f *FanOut) Emit(emitAt clock.Time, playbackAt int64, bytes []byte) Handle {
	h := Handle(atomic.AddUint64(&f.nextH, 1))

	f.mu.Lock()
	defer f.mu.Unlock()

	perMember := make(map[string]Handle, len(f.members))
	for id, em := range f.members {
		perMember[id] = em.Emit(emitAt, playbackAt, bytes)
	}
	f.inflight[h] = perMember
	return h
}

// BufferReceiver re-sends bytes immediately (emit_at = now) to the single
// receiver id only, preserving each packet's playback_at. Used when a
// receiver attaches mid-playback and needs to catch up on the current
// in-flight window.
func (f *FanOut) BufferReceiver(now clock.Time, id string, packets []TimestampedPacket) {
	f.mu.Lock()
	em, ok := f.members[id]
	f.mu.Unlock()
	if !ok {
		return
	}

	for _, p := range packets {
		em.Emit(now, p.PlaybackAt, p.Bytes)
	}
}

// TimestampedPacket is the minimal view of an in-flight packet FanOut needs
// to replay to a late-joining receiver.
type TimestampedPacket struct {
	PlaybackAt int64
	Bytes      []byte
}

// Discard revokes the packet identified by h on every member that is still
// holding it.
func (f *FanOut) Discard(h Handle, playbackAt int64) {
	f.mu.Lock()
	perMember, ok := f.inflight[h]
	if ok {
		delete(f.inflight, h)
	}
	members := make(map[string]*Emitter, len(perMember))
	for id := range perMember {
		if em, ok := f.members[id]; ok {
			members[id] = em
		}
	}
	f.mu.Unlock()

	for id, memberHandle := range perMember {
		if em, ok := members[id]; ok {
			em.Discard(memberHandle, playbackAt)
		}
	}
}

// InFlightCount returns the number of packets FanOut is still tracking
// pending Discard. A long-lived FanOut that never grows this number
// unboundedly depends on its caller discarding every packet it emits, once
// played or once revoked.
func (f *FanOut) InFlightCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inflight)
}

// Stop stops every currently registered member Emitter.
func (f *FanOut) Stop() {
	f.mu.Lock()
	members := make([]*Emitter, 0, len(f.members))
	for _, em := range f.members {
		members = append(members, em)
	}
	f.mu.Unlock()

	for _, em := range members {
		em.Stop()
	}
}
