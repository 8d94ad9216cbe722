// Package transport provides the reliable per-receiver connection that the
// Emitter writes timestamped packets to.
//
// Per spec Non-goals, this module assumes a reliable per-receiver transport
// rather than best-effort UDP multicast fan-out; Sender is implemented here
// over TCP, with multicast left as a future optimization.
package transport

import (
	"io"
	"net"

	"github.com/pkg/errors"
)

// MaxFrameSize is the largest single packet this transport will send in one
// write. It is advisory; Sender does not enforce it.
const MaxFrameSize = 65507

// Sender sends framed packets to a single receiver connection.
type Sender interface {
	io.Closer

	// Send writes b to the receiver as a single framed unit.
	Send(b []byte) error

	// MaxFrameSize returns the maximum allowed packet size.
	MaxFrameSize() int
}

// TCPSender sends length-prefixed frames over a *net.TCPConn.
//
// TCPSender takes ownership of conn, and will close it when Close is called.
func TCPSender(conn *net.TCPConn) Sender {
	return &tcpSender{conn: conn}
}

type tcpSender struct {
	conn *net.TCPConn
}

// Send implements Sender.
//
// Each frame is prefixed with its own 4-byte big-endian length so that the
// receiver, reading a byte stream, can recover frame boundaries.
func (ts *tcpSender) Send(b []byte) error {
	var lenPrefix [4]byte
	putUint32(lenPrefix[:], uint32(len(b)))

	if _, err := ts.conn.Write(lenPrefix[:]); err != nil {
		return errors.Wrap(err, "writing frame length")
	}
	if _, err := ts.conn.Write(b); err != nil {
		return errors.Wrap(err, "writing frame body")
	}
	return nil
}

func (ts *tcpSender) MaxFrameSize() int { return MaxFrameSize }
func (ts *tcpSender) Close() error      { return ts.conn.Close() }

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// Dial opens a reliable sender connection to addr.
func Dial(addr *net.TCPAddr) (Sender, error) {
	conn, err := net.DialTCP("tcp4", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing receiver at %s", addr)
	}
	return TCPSender(conn), nil
}

// ResilientSender is a Sender that automatically reconnects on failure.
//
// ResilientSender is not safe for concurrent use; callers (the Emitter's
// single dispatch goroutine) already serialize sends per receiver.
type ResilientSender struct {
	// Factory generates and connects a new Sender. On success, ResilientSender
	// takes ownership of the result.
	Factory func() (Sender, error)

	base Sender
}

var _ Sender = (*ResilientSender)(nil)

// MaxFrameSize implements Sender.
func (rs *ResilientSender) MaxFrameSize() int {
	if rs.base == nil {
		return MaxFrameSize
	}
	return rs.base.MaxFrameSize()
}

// Connect causes rs to try and open a new connection.
//
// If Connect fails, and rs already has an open connection, the open
// connection is left intact. If Connect succeeds, the previous connection is
// closed.
func (rs *ResilientSender) Connect() error {
	base, err := rs.Factory()
	if err != nil {
		return err
	}

	if rs.base != nil {
		_ = rs.Close()
	}
	rs.base = base
	return nil
}

// Close closes the current connection, if one is open.
func (rs *ResilientSender) Close() error {
	if rs.base == nil {
		return nil
	}
	err := rs.base.Close()
	rs.base = nil
	return err
}

// Send calls the corresponding call on rs's underlying connection, attempting
// to (re)connect first if not currently connected.
func (rs *ResilientSender) Send(b []byte) error {
	if rs.base == nil {
		if err := rs.Connect(); err != nil {
			return err
		}
	}

	if err := rs.base.Send(b); err != nil {
		_ = rs.Close()
		return err
	}
	return nil
}

// ResolveTCPAddr parses host:port into a *net.TCPAddr.
func ResolveTCPAddr(hostport string) (*net.TCPAddr, error) {
	addr, err := net.ResolveTCPAddr("tcp4", hostport)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %q", hostport)
	}
	return addr, nil
}
