package emitter

import (
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/soundwaveio/syncaudio/clock"
	"github.com/soundwaveio/syncaudio/support/byteslicereader"
	"github.com/soundwaveio/syncaudio/wire"
)

func TestEmitter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Emitter")
}

type fakeSender struct {
	mu      sync.Mutex
	frames  [][]byte
	failNth int
	sent    int
}

func (fs *fakeSender) Send(b []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.sent++
	if fs.failNth > 0 && fs.sent == fs.failNth {
		return errSend
	}
	fs.frames = append(fs.frames, append([]byte(nil), b...))
	return nil
}

func (fs *fakeSender) MaxFrameSize() int { return 65507 }
func (fs *fakeSender) Close() error      { return nil }

func (fs *fakeSender) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.frames)
}

func (fs *fakeSender) frame(i int) []byte {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.frames[i]
}

var errSend = &sendErr{}

type sendErr struct{}

func (*sendErr) Error() string { return "simulated send failure" }

type fakeReporter struct {
	mu     sync.Mutex
	errors int
}

func (fr *fakeReporter) ReportSendError(h Handle, playbackAt int64, err error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.errors++
}

func (fr *fakeReporter) count() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.errors
}

var _ = Describe("Emitter", func() {
	var (
		c      clock.Clock
		sender *fakeSender
		e      *Emitter
	)

	BeforeEach(func() {
		c = clock.Clock{}
		sender = &fakeSender{}
		e = &Emitter{Sender: sender, Clock: &c}
		e.Start()
	})

	AfterEach(func() {
		e.Stop()
	})

	It("delivers a packet whose emitAt is already in the past", func() {
		now := c.Now()
		e.Emit(now-1000, 42, []byte("pcm"))

		Eventually(sender.count).Should(Equal(1))

		r := &byteslicereader.R{Buffer: sender.frame(0), AlwaysCopy: true}
		pkt, err := wire.DecodePacket(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(pkt.PlaybackAt).To(Equal(int64(42)))
		Expect(pkt.Bytes).To(Equal([]byte("pcm")))
	})

	It("delays delivery until emitAt arrives", func() {
		now := c.Now()
		e.Emit(now+30*1000, 1, []byte("later"))

		Consistently(sender.count, 10*time.Millisecond).Should(Equal(0))
		Eventually(sender.count, time.Second).Should(Equal(1))
	})

	It("discards a packet before it is sent", func() {
		now := c.Now()
		h := e.Emit(now+50*1000, 7, []byte("skip-me"))
		e.Discard(h, 7)

		Consistently(sender.count, 100*time.Millisecond).Should(Equal(0))
	})

	It("treats Discard of an unknown handle as a no-op", func() {
		Expect(func() { e.Discard(Handle(9999), 0) }).NotTo(Panic())
	})

	It("reports send errors to the Reporter and continues", func() {
		reporter := &fakeReporter{}
		e2 := &Emitter{Sender: sender, Clock: &c, Reporter: reporter}
		e2.Start()
		defer e2.Stop()

		sender.failNth = 1
		e2.Emit(c.Now()-1, 1, []byte("a"))
		Eventually(reporter.count).Should(Equal(1))

		e2.Emit(c.Now()-1, 2, []byte("b"))
		Eventually(sender.count).Should(Equal(1))
	})

	It("stops cleanly and closes DoneC", func() {
		e.Stop()
		select {
		case <-e.DoneC():
		default:
			Fail("DoneC should be closed after Stop")
		}
	})
})
