package ffmpeg

import (
	"fmt"
	"io"
	"os"

	"github.com/robert-malhotra/go-h5j/internal/codec"
)

// demuxer exposes the staged file as a single packet on its first video
// stream; ffmpeg does the actual demuxing when the decoder runs.
type demuxer struct {
	engine  *Engine
	path    string
	streams []codec.Stream
	sent    bool
	closed  bool
}

func (d *demuxer) Streams() []codec.Stream {
	return d.streams
}

func (d *demuxer) ReadPacket() (*codec.Packet, error) {
	if d.closed {
		return nil, os.ErrClosed
	}
	if d.sent {
		return nil, io.EOF
	}
	d.sent = true

	s, ok := codec.FirstVideo(d.streams)
	if !ok {
		return nil, io.EOF
	}
	return &codec.Packet{StreamIndex: s.Index, KeyFrame: true}, nil
}

func (d *demuxer) OpenDecoder(s codec.Stream, threads int) (codec.Decoder, error) {
	if d.closed {
		return nil, os.ErrClosed
	}
	if s.Type != codec.MediaVideo {
		return nil, fmt.Errorf("stream %d is not a video stream", s.Index)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("stream %d has no frame size (%dx%d)", s.Index, s.Width, s.Height)
	}
	if threads < 1 {
		threads = 1
	}
	return &decoder{demux: d, stream: s, threads: threads}, nil
}

// Close removes the staged file.
func (d *demuxer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
