package clock

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestClock(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Clock")
}

var _ = Describe("Clock", func() {
	var c Clock

	BeforeEach(func() {
		c = Clock{}
	})

	It("starts near zero and advances monotonically", func() {
		first := c.Now()
		Expect(first).To(BeNumerically(">=", 0))

		time.Sleep(2 * time.Millisecond)
		second := c.Now()
		Expect(second).To(BeNumerically(">", first))
	})

	It("shares a single epoch across calls", func() {
		c.Now()
		epoch := c.epoch
		c.Now()
		Expect(c.epoch).To(Equal(epoch))
	})

	Describe("ScheduleTick", func() {
		It("invokes fn repeatedly until cancelled", func() {
			var mu struct{}
			_ = mu

			ticks := make(chan Time, 8)
			cancel := c.ScheduleTick(time.Millisecond, func(now Time, interval time.Duration) {
				select {
				case ticks <- now:
				default:
				}
			})
			defer cancel()

			Eventually(ticks).Should(Receive())
			Eventually(ticks).Should(Receive())
		})

		It("stops invoking fn after Cancel", func() {
			ticks := make(chan Time, 64)
			cancel := c.ScheduleTick(time.Millisecond, func(now Time, interval time.Duration) {
				ticks <- now
			})

			Eventually(ticks).Should(Receive())
			cancel()

			for len(ticks) > 0 {
				<-ticks
			}
			Consistently(ticks, 20*time.Millisecond).ShouldNot(Receive())
		})

		It("tolerates Cancel being called more than once", func() {
			cancel := c.ScheduleTick(time.Millisecond, func(Time, time.Duration) {})
			cancel()
			Expect(cancel).NotTo(Panic())
		})
	})
})
