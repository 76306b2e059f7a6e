// Package codec defines the video codec engine used to decode channel
// streams.
//
// An Engine opens a compressed byte buffer as a Demuxer. The Demuxer yields
// packets and opens a Decoder for one of its streams. Decoders follow the
// send/receive model: packets go in with SendPacket, pictures come out of
// ReceiveFrame. ReceiveFrame returns ErrAgain when it needs more input and
// io.EOF once a flushed decoder is drained. A nil packet flushes the
// decoder.
package codec

import (
	"errors"
	"fmt"
)

// ErrAgain is returned by Decoder.ReceiveFrame when no picture is ready and
// more packets are required.
var ErrAgain = errors.New("codec: output not ready, send more input")

// ErrUnsupportedFormat is returned by Decoder.Negotiate for output formats
// the decoder cannot produce.
var ErrUnsupportedFormat = errors.New("codec: unsupported output format")

// PixelFormat is a decoder output format.
type PixelFormat int

const (
	FormatNone PixelFormat = iota
	RGB24                  // packed 8-bit R, G, B
	Gray16LE               // 16-bit little-endian gray
)

// BytesPerPixel returns the size of one output pixel.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case RGB24:
		return 3
	case Gray16LE:
		return 2
	}
	return 0
}

func (f PixelFormat) String() string {
	switch f {
	case RGB24:
		return "rgb24"
	case Gray16LE:
		return "gray16le"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// MediaType classifies a stream.
type MediaType int

const (
	MediaOther MediaType = iota
	MediaVideo
	MediaAudio
)

// Stream describes one elementary stream of a demuxed buffer.
type Stream struct {
	Index  int
	Type   MediaType
	Codec  string
	Width  int
	Height int
	Depth  int   // bits per component
	Frames int64 // declared frame count, 0 when unknown
}

// Packet is one compressed unit of a stream.
type Packet struct {
	StreamIndex int
	Data        []byte
	KeyFrame    bool
}

// Picture is one decoded image in the negotiated format. Rows are Stride
// bytes apart; Stride may exceed Width times the pixel size.
type Picture struct {
	Width    int
	Height   int
	Stride   int
	Format   PixelFormat
	KeyFrame bool
	Data     []byte
}

// Engine opens compressed buffers.
type Engine interface {
	Open(data []byte) (Demuxer, error)
}

// Demuxer splits a buffer into stream packets.
type Demuxer interface {
	// Streams returns the streams found in the buffer headers.
	Streams() []Stream

	// ReadPacket returns the next packet, or io.EOF when exhausted.
	ReadPacket() (*Packet, error)

	// OpenDecoder opens a decoder for s with a thread count hint.
	OpenDecoder(s Stream, threads int) (Decoder, error)

	Close() error
}

// Decoder turns packets of one stream into pictures.
type Decoder interface {
	// Negotiate selects the output format. It must be called before the
	// first packet is sent.
	Negotiate(f PixelFormat) error

	// SendPacket feeds a packet; nil signals end of stream.
	SendPacket(p *Packet) error

	// ReceiveFrame returns the next picture, ErrAgain or io.EOF.
	ReceiveFrame() (*Picture, error)

	Close() error
}

// FirstVideo returns the first video stream of streams.
func FirstVideo(streams []Stream) (Stream, bool) {
	for _, s := range streams {
		if s.Type == MediaVideo {
			return s, true
		}
	}
	return Stream{}, false
}
