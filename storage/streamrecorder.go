package storage

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// RecorderStatus is a snapshot of a StreamRecorder's progress, mirroring the
// shape of the teacher's replay.RecorderStatus.
type RecorderStatus struct {
	ChannelID string
	Error     error
	Events    int64
	Bytes     int64
	Duration  time.Duration
}

// StreamRecorder appends a flat, snappy-compressed log of
// (playback_at, source_id, payload) tuples for one Channel, for offline
// inspection of a broadcast session. It does not support playback; no spec
// operation needs to replay a recorded session, only record one.
//
// StreamRecorder is safe for concurrent use; RecordPacket is expected to be
// called from a Broadcaster's run goroutine while Status may be polled from
// anywhere.
type StreamRecorder struct {
	mu        sync.Mutex
	w         *snappy.Writer
	closer    io.Closer
	channelID string
	startedAt time.Time
	events    int64
	bytes     int64
	recvErr   error

	// NowFunc, if set, overrides time.Now for Duration computation in tests.
	NowFunc func() time.Time
}

// Start begins recording channelID's packet stream to w. StreamRecorder
// takes ownership of w and closes it on Stop.
func (r *StreamRecorder) Start(channelID string, w io.WriteCloser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w != nil {
		panic("storage: StreamRecorder already started")
	}

	r.channelID = channelID
	r.w = snappy.NewBufferedWriter(w)
	r.closer = w
	r.startedAt = r.now()
	metricsRecordingGauge.Inc()
}

// Stop finalizes the recording and releases its resources.
func (r *StreamRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return nil
	}

	err := r.w.Close()
	if cerr := r.closer.Close(); err == nil {
		err = cerr
	}
	r.w = nil
	r.closer = nil

	if err == nil {
		err = r.recvErr
	}
	r.recvErr = nil
	metricsRecordingGauge.Dec()
	return err
}

// Status returns a snapshot of the recording's progress, or nil if the
// recorder isn't currently active.
func (r *StreamRecorder) Status() *RecorderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	return &RecorderStatus{
		ChannelID: r.channelID,
		Error:     r.recvErr,
		Events:    r.events,
		Bytes:     r.bytes,
		Duration:  r.now().Sub(r.startedAt),
	}
}

// RecordPacket appends one (playbackAt, sourceID, payload) tuple. It is a
// no-op, returning nil, if the recorder isn't currently started.
func (r *StreamRecorder) RecordPacket(playbackAt int64, sourceID string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return nil
	}
	metricsEvents.Inc()

	if len(sourceID) > 0xFFFF {
		err := errors.New("storage: source id too long to record")
		r.recvErr = err
		metricsErrors.Inc()
		return err
	}

	var header [14]byte
	binary.BigEndian.PutUint16(header[0:2], uint16(len(sourceID)))
	binary.BigEndian.PutUint64(header[2:10], uint64(playbackAt))
	binary.BigEndian.PutUint32(header[10:14], uint32(len(payload)))

	for _, chunk := range [][]byte{header[:], []byte(sourceID), payload} {
		if _, err := r.w.Write(chunk); err != nil {
			r.recvErr = errors.Wrap(err, "writing recorded event")
			metricsErrors.Inc()
			return r.recvErr
		}
	}

	r.events++
	r.bytes += int64(len(header) + len(sourceID) + len(payload))
	return nil
}

func (r *StreamRecorder) now() time.Time {
	if r.NowFunc != nil {
		return r.NowFunc()
	}
	return time.Now()
}
