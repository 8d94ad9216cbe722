package wire

import (
	"bytes"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/soundwaveio/syncaudio/support/byteslicereader"
)

// ErrBadMagic is returned when a sync message does not begin with SyncMagic.
var ErrBadMagic = errors.New("bad sync magic")

// SyncMagic prefixes every time-sync exchange message.
var SyncMagic = [4]byte{'S', 'Y', 'N', 'C'}

// SyncRequest begins a time-sync round. In this module it is sent from the
// broadcaster side by transport.TCPSyncClient to a remote speaker; no code
// here answers a SyncRequest.
//
// Wire layout: [SyncMagic][t1: int64 big-endian].
type SyncRequest struct {
	// T1 is the sender's local clock reading at send time.
	T1 int64
}

// SyncResponse is the remote speaker's reply to a SyncRequest.
//
// Wire layout: [SyncMagic][t1: int64][t2: int64][t3: int64], all big-endian.
//
// t1 is echoed back from the request so the sender can match responses to
// requests without keeping per-request state; t2 and t3 bracket the time the
// responder spent processing the request.
type SyncResponse struct {
	T1 int64
	T2 int64
	T3 int64
}

const syncRequestSize = 4 + 8
const syncResponseSize = 4 + 8 + 8 + 8

// SyncRequestSize and SyncResponseSize are the fixed wire sizes of
// SyncRequest and SyncResponse, for callers (e.g. transport.TCPSyncClient)
// that need to read an exact number of bytes off a stream before decoding.
const (
	SyncRequestSize  = syncRequestSize
	SyncResponseSize = syncResponseSize
)

func checkMagic(r *byteslicereader.R) error {
	got := r.Peek(len(SyncMagic))
	if len(got) != len(SyncMagic) {
		return io.ErrUnexpectedEOF
	}
	for i, c := range SyncMagic {
		if got[i] != c {
			return ErrBadMagic
		}
	}
	_, err := r.Seek(int64(len(SyncMagic)), io.SeekCurrent)
	return err
}

// EncodeSyncRequest appends the wire encoding of req to buf.
func EncodeSyncRequest(buf []byte, req SyncRequest) []byte {
	buf = append(buf, SyncMagic[:]...)
	var b bytes.Buffer
	if err := struc.Pack(&b, &req); err != nil {
		panic(err)
	}
	return append(buf, b.Bytes()...)
}

// EncodeSyncResponse appends the wire encoding of resp to buf.
func EncodeSyncResponse(buf []byte, resp SyncResponse) []byte {
	buf = append(buf, SyncMagic[:]...)
	var b bytes.Buffer
	if err := struc.Pack(&b, &resp); err != nil {
		panic(err)
	}
	return append(buf, b.Bytes()...)
}

// DecodeSyncRequest reads a SyncRequest from r.
func DecodeSyncRequest(r *byteslicereader.R) (SyncRequest, error) {
	if err := checkMagic(r); err != nil {
		return SyncRequest{}, err
	}

	var req SyncRequest
	if err := struc.Unpack(r, &req); err != nil {
		return SyncRequest{}, errTruncatedPacket
	}
	return req, nil
}

// DecodeSyncResponse reads a SyncResponse from r.
func DecodeSyncResponse(r *byteslicereader.R) (SyncResponse, error) {
	if err := checkMagic(r); err != nil {
		return SyncResponse{}, err
	}

	var resp SyncResponse
	if err := struc.Unpack(r, &resp); err != nil {
		return SyncResponse{}, errTruncatedPacket
	}
	return resp, nil
}
