package eventbus

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestEventBus(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "EventBus")
}

var _ = Describe("Bus", func() {
	var b *Bus

	BeforeEach(func() {
		b = &Bus{}
	})

	It("delivers published events to all registered listeners", func() {
		var gotA, gotB []interface{}
		la := ListenerFunc(func(e interface{}) { gotA = append(gotA, e) })
		lb := ListenerFunc(func(e interface{}) { gotB = append(gotB, e) })
		b.AddListener(la)
		b.AddListener(lb)

		b.Publish(ChannelFinished{ChannelID: "c1"})

		Expect(gotA).To(ConsistOf(ChannelFinished{ChannelID: "c1"}))
		Expect(gotB).To(ConsistOf(ChannelFinished{ChannelID: "c1"}))
	})

	It("stops delivering to a removed listener", func() {
		var got []interface{}
		l := ListenerFunc(func(e interface{}) { got = append(got, e) })
		b.AddListener(l)
		b.RemoveListener(l)

		b.Publish(ChannelFinished{ChannelID: "c1"})
		Expect(got).To(BeEmpty())
	})

	It("does nothing when publishing with no listeners", func() {
		Expect(func() { b.Publish(ReceiverAdded{ReceiverID: "r1"}) }).NotTo(Panic())
	})

	It("removing an unregistered listener is a no-op", func() {
		l := ListenerFunc(func(interface{}) {})
		Expect(func() { b.RemoveListener(l) }).NotTo(Panic())
	})
})
