package wire

// ControlOpcode is a 4-byte ASCII command sent to a receiver out-of-band from
// the packet stream (e.g. over the same transport connection, framed like any
// other Send).
type ControlOpcode [4]byte

// String returns the opcode's ASCII text.
func (c ControlOpcode) String() string { return string(c[:]) }

var (
	// OpPlay resumes packet playback on the receiver.
	OpPlay = ControlOpcode{'P', 'L', 'A', 'Y'}

	// OpFlush discards the receiver's in-flight buffer without stopping
	// playback. No code in this module sends it.
	OpFlush = ControlOpcode{'F', 'L', 'S', 'H'}

	// OpStop halts playback and discards the in-flight buffer.
	OpStop = ControlOpcode{'S', 'T', 'O', 'P'}

	// OpSync requests an out-of-band time-sync round. Sync rounds in this
	// module are started by the broadcaster-side receiver.Receiver, and no
	// code here sends OpSync.
	OpSync = ControlOpcode{'S', 'Y', 'N', 'C'}
)

// IsKnown reports whether c is one of the opcodes declared above. Unknown
// opcodes are ignored by receivers rather than treated as an error, so that
// future opcodes can be introduced without breaking older receivers.
func (c ControlOpcode) IsKnown() bool {
	switch c {
	case OpPlay, OpFlush, OpStop, OpSync:
		return true
	default:
		return false
	}
}

// EncodeControl appends the wire encoding of op to buf.
func EncodeControl(buf []byte, op ControlOpcode) []byte {
	return append(buf, op[:]...)
}

// DecodeControl reads a single ControlOpcode from b.
//
// DecodeControl reports ok=false if b is shorter than a control opcode.
func DecodeControl(b []byte) (op ControlOpcode, ok bool) {
	if len(b) < len(op) {
		return ControlOpcode{}, false
	}
	copy(op[:], b[:len(op)])
	return op, true
}
