package transport

import (
	"net"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/soundwaveio/syncaudio/support/byteslicereader"
	"github.com/soundwaveio/syncaudio/wire"
)

// serveOneSyncExchange accepts a single connection on ln, reads one
// SyncRequest, and replies with a SyncResponse whose T2/T3 are offset from
// the request's T1 by a fixed amount.
func serveOneSyncExchange(ln *net.TCPListener, offset int64) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	buf := make([]byte, wire.SyncRequestSize)
	if _, err := conn.Read(buf); err != nil {
		return
	}
	req, err := wire.DecodeSyncRequest(&byteslicereader.R{Buffer: buf})
	if err != nil {
		return
	}

	resp := wire.SyncResponse{T1: req.T1, T2: req.T1 + offset, T3: req.T1 + offset + 10}
	out := wire.EncodeSyncResponse(make([]byte, 0, wire.SyncResponseSize), resp)
	_, _ = conn.Write(out)
}

var _ = Describe("TCPSyncClient", func() {
	It("performs one sync exchange over a TCP connection", func() {
		ln, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()

		done := make(chan struct{})
		go func() {
			defer close(done)
			serveOneSyncExchange(ln, 5000)
		}()

		client := &TCPSyncClient{Addr: ln.Addr().(*net.TCPAddr)}
		resp, err := client.Exchange(wire.SyncRequest{T1: 100})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.T1).To(Equal(int64(100)))
		Expect(resp.T2).To(Equal(int64(5100)))
		Expect(resp.T3).To(Equal(int64(5110)))

		<-done
	})
})
