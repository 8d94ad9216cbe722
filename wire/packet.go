// Package wire defines the on-the-wire formats exchanged between a
// Broadcaster's Emitter and a receiver: timestamped audio packets, the
// time-sync request/response exchange, and the small set of ASCII control
// opcodes used to drive playback state.
//
// Fixed-size headers are packed with struc, matching how the teacher's
// protocol/pixelpusher command set is framed; trailing opaque payloads are
// read zero-copy via byteslicereader rather than run through struc, since
// struc has no tag for "the rest of the buffer".
package wire

import (
	"bytes"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/soundwaveio/syncaudio/support/byteslicereader"
)

// errTruncatedPacket is returned when a packet's header is incomplete.
var errTruncatedPacket = errors.New("truncated packet header")

// Packet is a single timestamped audio packet as written to a receiver's
// transport connection.
//
// Wire layout: [playback_at: int64 big-endian][pcm payload: remaining bytes].
type Packet struct {
	// PlaybackAt is the monotonic time (clock.Time, microseconds) at which the
	// receiver should begin playing Bytes.
	PlaybackAt int64

	// Bytes is the opaque PCM payload. When read with AlwaysCopy unset on the
	// source byteslicereader.R, Bytes references the reader's backing buffer
	// and must not outlive it.
	Bytes []byte
}

// packetHeader is the struc-tagged fixed portion of Packet.
type packetHeader struct {
	PlaybackAt int64
}

// HeaderSize is the number of bytes occupied by Packet's fixed fields.
const HeaderSize = 8

// Encode appends the wire encoding of p to buf and returns the result.
func Encode(buf []byte, p Packet) []byte {
	var hdr bytes.Buffer
	if err := struc.Pack(&hdr, &packetHeader{PlaybackAt: p.PlaybackAt}); err != nil {
		// packetHeader is a single fixed int64; struc.Pack into a bytes.Buffer
		// cannot fail.
		panic(err)
	}
	buf = append(buf, hdr.Bytes()...)
	buf = append(buf, p.Bytes...)
	return buf
}

// DecodePacket reads a single Packet from r.
//
// The returned Packet's Bytes references r's backing buffer unless
// r.AlwaysCopy is set.
func DecodePacket(r *byteslicereader.R) (Packet, error) {
	var hdr packetHeader
	if err := struc.Unpack(r, &hdr); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Packet{}, errTruncatedPacket
		}
		return Packet{}, err
	}

	payload, err := r.Next(r.Remaining())
	if err != nil && err != io.EOF {
		return Packet{}, err
	}

	return Packet{PlaybackAt: hdr.PlaybackAt, Bytes: payload}, nil
}
