package emitter

import (
	"github.com/soundwaveio/syncaudio/clock"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("FanOut", func() {
	var (
		c    clock.Clock
		fo   *FanOut
		s1   *fakeSender
		s2   *fakeSender
		em1  *Emitter
		em2  *Emitter
	)

	BeforeEach(func() {
		c = clock.Clock{}
		fo = NewFanOut()

		s1, s2 = &fakeSender{}, &fakeSender{}
		em1 = &Emitter{Sender: s1, Clock: &c}
		em2 = &Emitter{Sender: s2, Clock: &c}
		em1.Start()
		em2.Start()

		fo.AddReceiver("r1", em1)
		fo.AddReceiver("r2", em2)
	})

	AfterEach(func() {
		fo.Stop()
	})

	It("fans a single Emit out to every registered receiver", func() {
		fo.Emit(c.Now()-1, 100, []byte("hello"))

		Eventually(s1.count).Should(Equal(1))
		Eventually(s2.count).Should(Equal(1))
	})

	It("only delivers to receivers registered at Emit time", func() {
		fo.RemoveReceiver("r2")
		fo.Emit(c.Now()-1, 100, []byte("hello"))

		Eventually(s1.count).Should(Equal(1))
		Consistently(s2.count, "20ms").Should(Equal(0))
	})

	It("discards a pending packet on every member", func() {
		h := fo.Emit(c.Now()+50*1000, 101, []byte("late"))
		fo.Discard(h, 101)

		Consistently(s1.count, "80ms").Should(Equal(0))
		Consistently(s2.count, "80ms").Should(Equal(0))
	})

	It("buffers only the named receiver with BufferReceiver", func() {
		fo.BufferReceiver(c.Now(), "r1", []TimestampedPacket{
			{PlaybackAt: 10, Bytes: []byte("a")},
			{PlaybackAt: 20, Bytes: []byte("b")},
		})

		Eventually(s1.count).Should(Equal(2))
		Consistently(s2.count, "20ms").Should(Equal(0))
	})

	It("ignores BufferReceiver for an unknown id", func() {
		Expect(func() {
			fo.BufferReceiver(c.Now(), "unknown", []TimestampedPacket{{PlaybackAt: 1}})
		}).NotTo(Panic())
	})

	It("forgets a packet once Discard is called, whether revoked or already played", func() {
		h1 := fo.Emit(c.Now()-1, 100, []byte("played"))
		Eventually(s1.count).Should(Equal(1))
		Expect(fo.InFlightCount()).To(Equal(1))

		fo.Discard(h1, 100)
		Expect(fo.InFlightCount()).To(Equal(0))
	})
})
