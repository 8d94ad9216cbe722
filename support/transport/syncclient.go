package transport

import (
	"net"

	"github.com/pkg/errors"

	"github.com/soundwaveio/syncaudio/receiver"
	"github.com/soundwaveio/syncaudio/support/byteslicereader"
	"github.com/soundwaveio/syncaudio/support/dataio"
	"github.com/soundwaveio/syncaudio/wire"
)

// TCPSyncClient performs the time-sync exchange against a receiver's TCP
// connection, lazily dialing and reconnecting on failure the same way
// ResilientSender does for the audio path.
//
// TCPSyncClient is not safe for concurrent use; a Receiver's sync engine
// already serializes its own Exchange calls.
type TCPSyncClient struct {
	Addr *net.TCPAddr

	conn *net.TCPConn
}

// Exchange has receiver.SyncTransport's shape but takes and returns the wire
// types; DialSyncTransport adapts it to receiver.SyncTransport.
func (c *TCPSyncClient) Exchange(req wire.SyncRequest) (wire.SyncResponse, error) {
	if c.conn == nil {
		if err := c.connect(); err != nil {
			return wire.SyncResponse{}, err
		}
	}

	out := wire.EncodeSyncRequest(make([]byte, 0, wire.SyncRequestSize), req)
	if _, err := c.conn.Write(out); err != nil {
		_ = c.Close()
		return wire.SyncResponse{}, errors.Wrap(err, "writing sync request")
	}

	buf := make([]byte, wire.SyncResponseSize)
	if err := dataio.ReadFull(c.conn, buf); err != nil {
		_ = c.Close()
		return wire.SyncResponse{}, errors.Wrap(err, "reading sync response")
	}

	resp, err := wire.DecodeSyncResponse(&byteslicereader.R{Buffer: buf})
	if err != nil {
		return wire.SyncResponse{}, errors.Wrap(err, "decoding sync response")
	}
	return resp, nil
}

// Close releases the underlying connection, if any.
func (c *TCPSyncClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *TCPSyncClient) connect() error {
	conn, err := net.DialTCP("tcp4", nil, c.Addr)
	if err != nil {
		return errors.Wrapf(err, "dialing sync endpoint at %s", c.Addr)
	}
	c.conn = conn
	return nil
}

// DialSyncTransport opens a TCPSyncClient to addr and adapts it to
// receiver.SyncTransport.
func DialSyncTransport(addr *net.TCPAddr) receiver.SyncTransport {
	return syncTransportAdapter{&TCPSyncClient{Addr: addr}}
}

type syncTransportAdapter struct {
	client *TCPSyncClient
}

// Exchange implements receiver.SyncTransport.
func (a syncTransportAdapter) Exchange(req receiver.SyncRequest) (receiver.SyncResponse, error) {
	resp, err := a.client.Exchange(wire.SyncRequest{T1: req.T1})
	if err != nil {
		return receiver.SyncResponse{}, err
	}
	return receiver.SyncResponse{T1: resp.T1, T2: resp.T2, T3: resp.T3}, nil
}
