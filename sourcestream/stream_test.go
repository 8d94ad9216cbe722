package sourcestream

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pkg/errors"
)

func TestSourceStream(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SourceStream")
}

// fakeSource serves frames from a scripted list of entries, each of which is
// a list of (frame-or-error) results. Skip jumps to another entry by id.
type fakeSource struct {
	entries   map[string][]interface{} // each element is Frame or error
	order     []string
	cursor    int
	frameIdx  int
}

func (fs *fakeSource) currentID() string {
	if fs.cursor >= len(fs.order) {
		return ""
	}
	return fs.order[fs.cursor]
}

func (fs *fakeSource) Next() (Frame, error) {
	for {
		if fs.cursor >= len(fs.order) {
			return Frame{}, End
		}
		id := fs.order[fs.cursor]
		results := fs.entries[id]
		if fs.frameIdx >= len(results) {
			fs.cursor++
			fs.frameIdx = 0
			continue
		}
		r := results[fs.frameIdx]
		fs.frameIdx++
		switch v := r.(type) {
		case error:
			return Frame{}, v
		case Frame:
			v.SourceID = id
			return v, nil
		default:
			panic("bad fixture")
		}
	}
}

func (fs *fakeSource) Skip(id string) error {
	for i, e := range fs.order {
		if e == id {
			fs.cursor = i
			fs.frameIdx = 0
			return nil
		}
	}
	return errors.Errorf("unknown source id %q", id)
}

func (fs *fakeSource) Advance() (string, error) {
	fs.cursor++
	fs.frameIdx = 0
	if fs.cursor >= len(fs.order) {
		return "", End
	}
	return fs.order[fs.cursor], nil
}

var _ = Describe("Stream", func() {
	var s *Stream

	newStream := func(src *fakeSource) *Stream {
		st := &Stream{Source: src, FrameSize: 4}
		st.Init()
		return st
	}

	It("passes through frames from the Source in order", func() {
		src := &fakeSource{
			order: []string{"a"},
			entries: map[string][]interface{}{
				"a": {Frame{Bytes: []byte{1, 2, 3, 4}}, Frame{Bytes: []byte{5, 6, 7, 8}}},
			},
		}
		s = newStream(src)

		f1, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f1.Bytes).To(Equal([]byte{1, 2, 3, 4}))
		Expect(f1.SourceID).To(Equal("a"))

		f2, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f2.Bytes).To(Equal([]byte{5, 6, 7, 8}))
	})

	It("returns End once the source is exhausted", func() {
		src := &fakeSource{order: []string{"a"}, entries: map[string][]interface{}{"a": {Frame{Bytes: []byte{1, 2, 3, 4}}}}}
		s = newStream(src)

		_, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())

		_, err = s.NextFrame()
		Expect(err).To(Equal(End))
	})

	It("substitutes silent frames on read errors without surfacing them", func() {
		boom := errors.New("decode failure")
		src := &fakeSource{
			order: []string{"a"},
			entries: map[string][]interface{}{
				"a": {boom, boom, Frame{Bytes: []byte{9, 9, 9, 9}}},
			},
		}
		s = newStream(src)

		f1, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f1.Bytes).To(Equal(make([]byte, 4)))

		f2, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f2.Bytes).To(Equal(make([]byte, 4)))

		f3, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f3.Bytes).To(Equal([]byte{9, 9, 9, 9}))
	})

	It("advances to the next source after SilenceThreshold consecutive failures", func() {
		boom := errors.New("decode failure")
		src := &fakeSource{
			order: []string{"a", "b"},
			entries: map[string][]interface{}{
				"a": {boom, boom, boom, boom},
				"b": {Frame{Bytes: []byte{7, 7, 7, 7}}},
			},
		}
		s = newStream(src)

		for i := 0; i < SilenceThreshold; i++ {
			f, err := s.NextFrame()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Bytes).To(Equal(make([]byte, 4)))
		}

		f, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f.SourceID).To(Equal("b"))
		Expect(f.Bytes).To(Equal([]byte{7, 7, 7, 7}))
	})

	It("returns End if every remaining source is exhausted when advancing past a failure", func() {
		boom := errors.New("decode failure")
		src := &fakeSource{
			order:   []string{"a"},
			entries: map[string][]interface{}{"a": {boom, boom, boom, boom}},
		}
		s = newStream(src)

		for i := 0; i < SilenceThreshold-1; i++ {
			_, err := s.NextFrame()
			Expect(err).NotTo(HaveOccurred())
		}

		_, err := s.NextFrame()
		Expect(err).To(Equal(End))
	})

	It("rebuffers frames so the next NextFrame returns them in order", func() {
		src := &fakeSource{order: []string{"a"}, entries: map[string][]interface{}{"a": {Frame{Bytes: []byte{1}}}}}
		s = newStream(src)

		pushed := []Frame{{SourceID: "a", Bytes: []byte{100}}, {SourceID: "a", Bytes: []byte{101}}}
		s.Rebuffer(pushed)

		f1, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f1.Bytes).To(Equal([]byte{100}))

		f2, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f2.Bytes).To(Equal([]byte{101}))
	})

	It("discards rebuffered frames on Flush", func() {
		src := &fakeSource{order: []string{"a"}, entries: map[string][]interface{}{"a": {Frame{Bytes: []byte{1}}}}}
		s = newStream(src)
		s.Rebuffer([]Frame{{Bytes: []byte{100}}})
		s.Flush()

		f, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Bytes).To(Equal([]byte{1}))
	})

	It("skips to a known source id and clears read-ahead", func() {
		src := &fakeSource{
			order: []string{"a", "b"},
			entries: map[string][]interface{}{
				"a": {Frame{Bytes: []byte{1}}},
				"b": {Frame{Bytes: []byte{2}}},
			},
		}
		s = newStream(src)
		s.Rebuffer([]Frame{{Bytes: []byte{200}}})

		Expect(s.Skip("b")).To(Succeed())

		f, err := s.NextFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Bytes).To(Equal([]byte{2}))
		Expect(f.SourceID).To(Equal("b"))
	})

	It("rejects skipping to an unknown source id", func() {
		src := &fakeSource{order: []string{"a"}, entries: map[string][]interface{}{"a": {Frame{Bytes: []byte{1}}}}}
		s = newStream(src)

		err := s.Skip("nonexistent")
		Expect(err).To(HaveOccurred())
	})
})
