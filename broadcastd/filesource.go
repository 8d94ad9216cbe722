package broadcastd

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/soundwaveio/syncaudio/sourcestream"
)

// fileSource is a sourcestream.Source that plays a fixed ordered list of raw
// PCM files from disk, one FrameSize chunk at a time, advancing to the next
// file when the current one is exhausted.
//
// fileSource is not safe for concurrent use, matching the contract Stream
// already imposes on its Source.
type fileSource struct {
	paths     []string
	frameSize int

	idx int
	f   *os.File
	n   uint64
}

func newFileSource(paths []string, frameSize int) *fileSource {
	return &fileSource{paths: paths, frameSize: frameSize}
}

// Next implements sourcestream.Source.
func (fs *fileSource) Next() (sourcestream.Frame, error) {
	for {
		if fs.idx >= len(fs.paths) {
			return sourcestream.Frame{}, sourcestream.End
		}

		if fs.f == nil {
			f, err := os.Open(fs.paths[fs.idx])
			if err != nil {
				return sourcestream.Frame{}, errors.Wrapf(err, "opening source %q", fs.paths[fs.idx])
			}
			fs.f = f
		}

		buf := make([]byte, fs.frameSize)
		nRead, err := io.ReadFull(fs.f, buf)
		switch {
		case err == nil:
			fs.n++
			return sourcestream.Frame{PacketNumber: fs.n, SourceID: fs.paths[fs.idx], Bytes: buf}, nil

		case err == io.EOF, err == io.ErrUnexpectedEOF:
			fs.f.Close()
			fs.f = nil
			fs.idx++
			if nRead > 0 {
				fs.n++
				padded := make([]byte, fs.frameSize)
				copy(padded, buf[:nRead])
				return sourcestream.Frame{PacketNumber: fs.n, SourceID: fs.paths[fs.idx-1], Bytes: padded}, nil
			}
			continue

		default:
			fs.f.Close()
			fs.f = nil
			return sourcestream.Frame{}, errors.Wrapf(err, "reading source %q", fs.paths[fs.idx])
		}
	}
}

// Skip implements sourcestream.Source.
func (fs *fileSource) Skip(id string) error {
	for i, p := range fs.paths {
		if p == id {
			if fs.f != nil {
				fs.f.Close()
				fs.f = nil
			}
			fs.idx = i
			return nil
		}
	}
	return errors.Errorf("broadcastd: unknown source id %q", id)
}

// Advance implements sourcestream.Source.
func (fs *fileSource) Advance() (string, error) {
	if fs.f != nil {
		fs.f.Close()
		fs.f = nil
	}
	fs.idx++
	if fs.idx >= len(fs.paths) {
		return "", sourcestream.End
	}
	return fs.paths[fs.idx], nil
}
