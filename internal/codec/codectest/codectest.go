// Package codectest provides a scripted in-memory codec.Engine for tests.
package codectest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/robert-malhotra/go-h5j/internal/codec"
)

// ErrUnknownBlob is returned by Engine.Open for buffers without a script.
var ErrUnknownBlob = errors.New("codectest: no script for buffer")

// Script describes the stream an Engine reports for one buffer.
type Script struct {
	Width    int
	Height   int
	Depth    int   // bits per component, 8 when zero
	Declared int64 // declared frame count, 0 when unknown

	// Frames are the decoded pictures, tightly packed in the format the
	// decoder negotiates: RGB24 for 8-bit streams, Gray16LE otherwise.
	Frames [][]byte

	StridePad int // extra bytes appended to every row
	Delay     int // pictures held back until the decoder is flushed
	Audio     int // audio packets interleaved before the first video packets

	NoVideo bool
	OpenErr error // returned by Engine.Open
	SendErr error // returned by SendPacket
}

// Engine serves scripts keyed by buffer content. It counts opened and closed
// demuxers and decoders so tests can check that resources are released.
type Engine struct {
	mu      sync.Mutex
	scripts map[string]Script

	DemuxersOpened  atomic.Int32
	DemuxersClosed  atomic.Int32
	DecodersOpened  atomic.Int32
	DecodersClosed  atomic.Int32
	PacketsSent     atomic.Int32
	lastThreadCount atomic.Int32
}

// NewEngine creates an Engine without scripts.
func NewEngine() *Engine {
	return &Engine{scripts: make(map[string]Script)}
}

// Add registers the script served for blob.
func (e *Engine) Add(blob []byte, s Script) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[string(blob)] = s
}

// Balanced reports whether every opened demuxer and decoder was closed.
func (e *Engine) Balanced() bool {
	return e.DemuxersOpened.Load() == e.DemuxersClosed.Load() &&
		e.DecodersOpened.Load() == e.DecodersClosed.Load()
}

// Threads returns the thread count passed to the most recent OpenDecoder.
func (e *Engine) Threads() int {
	return int(e.lastThreadCount.Load())
}

// Open implements codec.Engine.
func (e *Engine) Open(data []byte) (codec.Demuxer, error) {
	e.mu.Lock()
	s, ok := e.scripts[string(data)]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w (%d bytes)", ErrUnknownBlob, len(data))
	}
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	if s.Depth == 0 {
		s.Depth = 8
	}
	e.DemuxersOpened.Add(1)
	return newDemuxer(e, s), nil
}

const (
	audioIndex = 0
	videoIndex = 1
)

type demuxer struct {
	engine  *Engine
	script  Script
	streams []codec.Stream
	packets []*codec.Packet
	next    int
	closed  bool
}

func newDemuxer(e *Engine, s Script) *demuxer {
	d := &demuxer{engine: e, script: s}
	d.streams = append(d.streams, codec.Stream{Index: audioIndex, Type: codec.MediaAudio, Codec: "aac"})
	if !s.NoVideo {
		d.streams = append(d.streams, codec.Stream{
			Index:  videoIndex,
			Type:   codec.MediaVideo,
			Codec:  "scripted",
			Width:  s.Width,
			Height: s.Height,
			Depth:  s.Depth,
			Frames: s.Declared,
		})
	}
	for i := range s.Frames {
		if i < s.Audio {
			d.packets = append(d.packets, &codec.Packet{StreamIndex: audioIndex, Data: []byte{0xff}})
		}
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, uint32(i))
		d.packets = append(d.packets, &codec.Packet{StreamIndex: videoIndex, Data: data, KeyFrame: i == 0})
	}
	return d
}

func (d *demuxer) Streams() []codec.Stream {
	return d.streams
}

func (d *demuxer) ReadPacket() (*codec.Packet, error) {
	if d.closed {
		return nil, errors.New("codectest: demuxer closed")
	}
	if d.next >= len(d.packets) {
		return nil, io.EOF
	}
	p := d.packets[d.next]
	d.next++
	return p, nil
}

func (d *demuxer) OpenDecoder(s codec.Stream, threads int) (codec.Decoder, error) {
	if s.Type != codec.MediaVideo {
		return nil, fmt.Errorf("codectest: stream %d is not video", s.Index)
	}
	d.engine.DecodersOpened.Add(1)
	d.engine.lastThreadCount.Store(int32(threads))
	return &decoder{engine: d.engine, script: d.script}, nil
}

func (d *demuxer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.engine.DemuxersClosed.Add(1)
	return nil
}

type decoder struct {
	engine  *Engine
	script  Script
	format  codec.PixelFormat
	pending []int
	flushed bool
	closed  bool
}

func (d *decoder) Negotiate(f codec.PixelFormat) error {
	want := codec.RGB24
	if d.script.Depth > 8 {
		want = codec.Gray16LE
	}
	if f != want {
		return fmt.Errorf("%w: %v for %d-bit stream", codec.ErrUnsupportedFormat, f, d.script.Depth)
	}
	d.format = f
	return nil
}

func (d *decoder) SendPacket(p *codec.Packet) error {
	if d.closed {
		return errors.New("codectest: decoder closed")
	}
	if p == nil {
		d.flushed = true
		return nil
	}
	if d.script.SendErr != nil {
		return d.script.SendErr
	}
	if p.StreamIndex != videoIndex {
		return fmt.Errorf("codectest: packet for stream %d", p.StreamIndex)
	}
	d.engine.PacketsSent.Add(1)
	d.pending = append(d.pending, int(binary.LittleEndian.Uint32(p.Data)))
	return nil
}

func (d *decoder) ReceiveFrame() (*codec.Picture, error) {
	held := d.script.Delay
	if d.flushed {
		held = 0
	}
	if len(d.pending) <= held {
		if d.flushed {
			return nil, io.EOF
		}
		return nil, codec.ErrAgain
	}
	i := d.pending[0]
	d.pending = d.pending[1:]
	return d.picture(i), nil
}

func (d *decoder) picture(i int) *codec.Picture {
	row := d.script.Width * d.format.BytesPerPixel()
	stride := row + d.script.StridePad
	src := d.script.Frames[i]
	data := make([]byte, stride*d.script.Height)
	for y := 0; y < d.script.Height; y++ {
		copy(data[y*stride:y*stride+row], src[y*row:])
		for x := row; x < stride; x++ {
			data[y*stride+x] = 0xee
		}
	}
	return &codec.Picture{
		Width:    d.script.Width,
		Height:   d.script.Height,
		Stride:   stride,
		Format:   d.format,
		KeyFrame: i == 0,
		Data:     data,
	}
}

func (d *decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.engine.DecodersClosed.Add(1)
	return nil
}

// RGB builds a packed RGB24 picture whose blue component is gray(x, y). The
// red and green components are filled with values that differ from blue.
func RGB(width, height int, gray func(x, y int) uint8) []byte {
	b := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			v := gray(x, y)
			b[i] = v + 1
			b[i+1] = ^v
			b[i+2] = v
		}
	}
	return b
}

// Gray16 builds a little-endian 16-bit gray picture.
func Gray16(width, height int, gray func(x, y int) uint16) []byte {
	b := make([]byte, width*height*2)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			binary.LittleEndian.PutUint16(b[(y*width+x)*2:], gray(x, y))
		}
	}
	return b
}
