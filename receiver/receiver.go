// Package receiver models one remote speaker from the broadcaster's side:
// its identity, current latency estimate, online/offline status, and volume,
// plus the time-sync engine that keeps its latency estimate current.
package receiver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/soundwaveio/syncaudio/clock"
	"github.com/soundwaveio/syncaudio/support/logging"
)

// ErrAlreadyJoined is returned by Join if the Receiver already belongs to a
// channel.
var ErrAlreadyJoined = errors.New("receiver: already joined to a channel")

// SyncTransport performs one round of the NTP-style exchange against the
// remote speaker: send a request stamped with the local send time and return
// the speaker's response. Exchange is expected to block until a response
// arrives or the round should be abandoned.
type SyncTransport interface {
	Exchange(req SyncRequest) (SyncResponse, error)
}

// SyncRequest and SyncResponse mirror wire.SyncRequest/wire.SyncResponse;
// kept as receiver-local types so this package doesn't need to import wire
// just to describe its transport seam, which a test double can implement
// without touching the wire codec.
type (
	SyncRequest struct {
		T1 int64
	}
	SyncResponse struct {
		T1, T2, T3 int64
	}
)

// Receiver is one remote speaker attached to a Channel.
//
// Receiver is an actor: Join starts its internal sync-engine goroutine, which
// updates latency and online; Leave resets both, and SetVolume sets volume
// from the caller's goroutine. All three are stored in atomics so
// Latency/Online/Volume can be read lock-free from the Broadcaster's tick loop.
type Receiver struct {
	ID        string
	Transport SyncTransport
	Clock     *clock.Clock
	Logger    logging.L

	// SyncSampleCount is the number of round trips collected before computing
	// a median offset. Zero means DefaultSyncSampleCount.
	SyncSampleCount int

	// SyncInterval is how often a fresh batch of sync samples is collected
	// once a Receiver is online. Zero means DefaultSyncInterval.
	SyncInterval time.Duration

	// RTTCeiling discards any round trip above this duration as an outlier.
	// Zero means DefaultRTTCeiling.
	RTTCeiling time.Duration

	joinMu    sync.Mutex
	joined    bool
	channelID string

	latencyUS int64 // atomic, microseconds
	online    int32 // atomic, 0 or 1
	volumePct int32 // atomic, 0-100

	stopC    chan struct{}
	stopOnce sync.Once
	doneC    chan struct{}
}

// Defaults for the sync engine, per spec.
const (
	DefaultSyncSampleCount = 11
	DefaultSyncInterval    = 30 * time.Second
	DefaultRTTCeiling      = time.Second

	// OfflineAfterMissedIntervals is the number of consecutive missed sync
	// rounds after which a Receiver is marked offline. It remains in the
	// Channel's receiver set; there is no auto-detach.
	OfflineAfterMissedIntervals = 3
)

// Join attaches the Receiver to channelID and starts its sync engine.
//
// Join fails with ErrAlreadyJoined if the Receiver is already attached
// elsewhere; callers must Leave first.
func (r *Receiver) Join(channelID string) error {
	r.joinMu.Lock()
	defer r.joinMu.Unlock()

	if r.joined {
		return ErrAlreadyJoined
	}

	r.channelID = channelID
	r.joined = true
	r.Logger = logging.Must(r.Logger)
	r.stopC = make(chan struct{})
	r.doneC = make(chan struct{})

	go r.runSyncEngine()
	return nil
}

// Leave detaches the Receiver and stops its sync engine. Leave blocks until
// the sync engine has exited.
func (r *Receiver) Leave() {
	r.joinMu.Lock()
	if !r.joined {
		r.joinMu.Unlock()
		return
	}
	r.joined = false
	stopC, doneC := r.stopC, r.doneC
	r.joinMu.Unlock()

	r.stopOnce.Do(func() { close(stopC) })
	<-doneC

	atomic.StoreInt64(&r.latencyUS, 0)
	atomic.StoreInt32(&r.online, 0)
}

// Latency returns the current end-to-end latency estimate, derived from the
// most recent converged sync round: round_trip / 2.
func (r *Receiver) Latency() time.Duration {
	return time.Duration(atomic.LoadInt64(&r.latencyUS)) * time.Microsecond
}

// Online reports whether this Receiver has completed a sync round within
// the last OfflineAfterMissedIntervals * SyncInterval.
func (r *Receiver) Online() bool {
	return atomic.LoadInt32(&r.online) != 0
}

// Volume returns the current volume, 0-100.
func (r *Receiver) Volume() int {
	return int(atomic.LoadInt32(&r.volumePct))
}

// SetVolume sets the current volume, 0-100. Out-of-range values are clamped.
func (r *Receiver) SetVolume(pct int) {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	atomic.StoreInt32(&r.volumePct, int32(pct))
}

func (r *Receiver) sampleCount() int {
	if r.SyncSampleCount > 0 {
		return r.SyncSampleCount
	}
	return DefaultSyncSampleCount
}

func (r *Receiver) syncInterval() time.Duration {
	if r.SyncInterval > 0 {
		return r.SyncInterval
	}
	return DefaultSyncInterval
}

func (r *Receiver) rttCeiling() time.Duration {
	if r.RTTCeiling > 0 {
		return r.RTTCeiling
	}
	return DefaultRTTCeiling
}
