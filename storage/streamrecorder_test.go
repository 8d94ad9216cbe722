package storage

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type memWriteCloser struct {
	bytes.Buffer
	closed bool
}

func (m *memWriteCloser) Close() error {
	m.closed = true
	return nil
}

var _ = Describe("StreamRecorder", func() {
	It("reports nil status before Start", func() {
		r := &StreamRecorder{}
		Expect(r.Status()).To(BeNil())
	})

	It("counts events and bytes while recording", func() {
		r := &StreamRecorder{}
		buf := &memWriteCloser{}
		r.Start("c1", buf)

		Expect(r.RecordPacket(1000, "track-1", []byte{1, 2, 3, 4})).To(Succeed())
		Expect(r.RecordPacket(2000, "track-1", []byte{5, 6})).To(Succeed())

		status := r.Status()
		Expect(status).NotTo(BeNil())
		Expect(status.ChannelID).To(Equal("c1"))
		Expect(status.Events).To(Equal(int64(2)))
		Expect(status.Bytes).To(BeNumerically(">", 0))
	})

	It("closes the underlying writer on Stop and clears status", func() {
		r := &StreamRecorder{}
		buf := &memWriteCloser{}
		r.Start("c1", buf)
		Expect(r.RecordPacket(1000, "track-1", []byte{1})).To(Succeed())

		Expect(r.Stop()).To(Succeed())
		Expect(buf.closed).To(BeTrue())
		Expect(r.Status()).To(BeNil())
	})

	It("is a no-op to record a packet before Start", func() {
		r := &StreamRecorder{}
		Expect(r.RecordPacket(1000, "track-1", []byte{1})).To(Succeed())
		Expect(r.Status()).To(BeNil())
	})

	It("rejects a source id longer than 65535 bytes", func() {
		r := &StreamRecorder{}
		buf := &memWriteCloser{}
		r.Start("c1", buf)

		longID := make([]byte, 70000)
		err := r.RecordPacket(1000, string(longID), nil)
		Expect(err).To(HaveOccurred())
	})
})
