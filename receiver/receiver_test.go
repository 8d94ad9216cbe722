package receiver

import (
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pkg/errors"

	"github.com/soundwaveio/syncaudio/clock"
)

func TestReceiver(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Receiver")
}

type fakeTransport struct {
	mu        sync.Mutex
	exchanges int
	fn        func(req SyncRequest) (SyncResponse, error)
}

func (ft *fakeTransport) Exchange(req SyncRequest) (SyncResponse, error) {
	ft.mu.Lock()
	ft.exchanges++
	ft.mu.Unlock()
	return ft.fn(req)
}

func (ft *fakeTransport) count() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.exchanges
}

var errTransport = errors.New("simulated transport failure")

var _ = Describe("Receiver", func() {
	var (
		c clock.Clock
		r *Receiver
	)

	AfterEach(func() {
		if r != nil {
			r.Leave()
		}
	})

	It("converges to a nonzero latency after a clean sync batch", func() {
		transport := &fakeTransport{
			fn: func(req SyncRequest) (SyncResponse, error) {
				time.Sleep(2 * time.Millisecond)
				t2 := req.T1 + 1000
				t3 := t2 + 500
				return SyncResponse{T1: req.T1, T2: t2, T3: t3}, nil
			},
		}
		r = &Receiver{
			ID: "r1", Transport: transport, Clock: &c,
			SyncSampleCount: 5, SyncInterval: time.Hour,
		}
		Expect(r.Join("chan-1")).To(Succeed())

		Eventually(r.Online).Should(BeTrue())
		Expect(r.Latency()).To(BeNumerically(">", 0))
		Expect(transport.count()).To(Equal(5))
	})

	It("rejects Join if already joined", func() {
		transport := &fakeTransport{fn: func(req SyncRequest) (SyncResponse, error) {
			return SyncResponse{T1: req.T1, T2: req.T1, T3: req.T1}, nil
		}}
		r = &Receiver{ID: "r1", Transport: transport, Clock: &c, SyncInterval: time.Hour}
		Expect(r.Join("chan-1")).To(Succeed())
		Expect(r.Join("chan-2")).To(Equal(ErrAlreadyJoined))
	})

	It("stays offline when every sample exceeds the RTT ceiling", func() {
		transport := &fakeTransport{
			fn: func(req SyncRequest) (SyncResponse, error) {
				// Each exchange takes longer than the 1ms ceiling, so every
				// sample's round trip is discarded.
				time.Sleep(2 * time.Millisecond)
				return SyncResponse{T1: req.T1, T2: req.T1 + 1, T3: req.T1 + 1}, nil
			},
		}
		r = &Receiver{
			ID: "r1", Transport: transport, Clock: &c,
			SyncSampleCount: 3, SyncInterval: time.Hour, RTTCeiling: time.Millisecond,
		}
		Expect(r.Join("chan-1")).To(Succeed())

		Consistently(r.Online, 50*time.Millisecond).Should(BeFalse())
		Expect(r.Latency()).To(Equal(time.Duration(0)))
	})

	It("marks offline after enough missed batches, without detaching", func() {
		var mu sync.Mutex
		failing := false
		transport := &fakeTransport{
			fn: func(req SyncRequest) (SyncResponse, error) {
				mu.Lock()
				defer mu.Unlock()
				if failing {
					return SyncResponse{}, errTransport
				}
				time.Sleep(time.Millisecond)
				return SyncResponse{T1: req.T1, T2: req.T1 + 100, T3: req.T1 + 150}, nil
			},
		}
		r = &Receiver{
			ID: "r1", Transport: transport, Clock: &c,
			SyncSampleCount: 1, SyncInterval: time.Millisecond,
		}
		Expect(r.Join("chan-1")).To(Succeed())
		Eventually(r.Online).Should(BeTrue())

		mu.Lock()
		failing = true
		mu.Unlock()

		Eventually(r.Online).Should(BeFalse())
		Consistently(r.Online, 20*time.Millisecond).Should(BeFalse())
		Expect(r.Join("chan-2")).To(Equal(ErrAlreadyJoined))
	})

	It("resets latency and online on Leave", func() {
		transport := &fakeTransport{
			fn: func(req SyncRequest) (SyncResponse, error) {
				time.Sleep(time.Millisecond)
				return SyncResponse{T1: req.T1, T2: req.T1 + 100, T3: req.T1 + 150}, nil
			},
		}
		r = &Receiver{ID: "r1", Transport: transport, Clock: &c, SyncSampleCount: 3, SyncInterval: time.Hour}
		Expect(r.Join("chan-1")).To(Succeed())
		Eventually(r.Online).Should(BeTrue())

		r.Leave()
		Expect(r.Online()).To(BeFalse())
		Expect(r.Latency()).To(Equal(time.Duration(0)))
	})

	It("clamps SetVolume to [0, 100]", func() {
		r = &Receiver{ID: "r1", Transport: &fakeTransport{fn: func(SyncRequest) (SyncResponse, error) {
			return SyncResponse{}, errTransport
		}}, Clock: &c, SyncInterval: time.Hour}
		Expect(r.Join("c")).To(Succeed())

		r.SetVolume(-5)
		Expect(r.Volume()).To(Equal(0))
		r.SetVolume(250)
		Expect(r.Volume()).To(Equal(100))
		r.SetVolume(42)
		Expect(r.Volume()).To(Equal(42))
	})
})

var _ = Describe("medianOffset", func() {
	It("picks the sample with the median round trip", func() {
		samples := []sample{
			{offset: 10, roundTrip: 300},
			{offset: 20, roundTrip: 100},
			{offset: 30, roundTrip: 200},
		}
		Expect(medianOffset(samples).offset).To(Equal(int64(30)))
	})
})
