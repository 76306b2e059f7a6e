package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/robert-malhotra/go-h5j/internal/codec"
	"github.com/robert-malhotra/go-h5j/internal/frames"
)

// State is the lifecycle state of a Decoder.
type State int

const (
	StateCreated State = iota
	StateOpened
	StateDecoding
	StateFlushing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpened:
		return "opened"
	case StateDecoding:
		return "decoding"
	case StateFlushing:
		return "flushing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Decoder decodes the video stream of one channel. It is not safe for
// concurrent use.
type Decoder struct {
	engine  codec.Engine
	data    []byte
	threads int
	logger  *slog.Logger
	verbose bool
	channel int
	onFrame func(n int)

	state  State
	demux  codec.Demuxer
	dec    codec.Decoder
	stream codec.Stream
	format codec.PixelFormat
}

// New creates a Decoder for the compressed stream in data.
func New(engine codec.Engine, data []byte, opts ...Option) *Decoder {
	d := &Decoder{
		engine:  engine,
		data:    data,
		threads: runtime.NumCPU(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current state.
func (d *Decoder) State() State {
	return d.state
}

// Stream returns the selected video stream. It is valid after Open.
func (d *Decoder) Stream() codec.Stream {
	return d.stream
}

// BytesPerPixel returns the bytes per sample of decoded frames: 1 for
// 8-bit streams, 2 for deeper ones. It is valid after Open.
func (d *Decoder) BytesPerPixel() int {
	if d.format == codec.Gray16LE {
		return 2
	}
	return 1
}

func (d *Decoder) log(msg string, args ...any) {
	level := slog.LevelDebug
	if d.verbose {
		level = slog.LevelInfo
	}
	d.logger.Log(context.Background(), level, msg, append([]any{"channel", d.channel}, args...)...)
}

// Open parses the stream headers, opens a codec for the first video stream
// and negotiates the output format. On failure all resources are released
// and the decoder is closed.
func (d *Decoder) Open() (err error) {
	if d.state != StateCreated {
		return fmt.Errorf("%w: Open in state %s", ErrInvalidState, d.state)
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	d.demux, err = d.engine.Open(d.data)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}

	stream, ok := codec.FirstVideo(d.demux.Streams())
	if !ok {
		return ErrNoVideoStream
	}
	if stream.Depth > 16 {
		return fmt.Errorf("%w: %d bits per component", codec.ErrUnsupportedFormat, stream.Depth)
	}
	d.stream = stream

	d.dec, err = d.demux.OpenDecoder(stream, d.threads)
	if err != nil {
		return fmt.Errorf("opening codec: %w", err)
	}

	format := codec.RGB24
	if stream.Depth > 8 {
		format = codec.Gray16LE
	}
	if err := d.dec.Negotiate(format); err != nil {
		return fmt.Errorf("negotiating output: %w", err)
	}
	d.format = format

	d.log("opened stream",
		"codec", stream.Codec,
		"width", stream.Width,
		"height", stream.Height,
		"depth", stream.Depth,
		"frames", stream.Frames,
		"threads", d.threads)

	d.state = StateOpened
	return nil
}

// Decode reads and decodes every packet of the video stream and returns the
// frames in presentation order. The decoder is closed when Decode returns.
// Cancelling ctx aborts between packets.
func (d *Decoder) Decode(ctx context.Context) (*frames.Store, error) {
	if d.state != StateOpened {
		return nil, fmt.Errorf("%w: Decode in state %s", ErrInvalidState, d.state)
	}
	defer d.Close()

	d.state = StateDecoding
	store := frames.New(d.stream.Width, d.stream.Height, d.BytesPerPixel())
	declared := int(d.stream.Frames)

	discarded := 0
	for declared == 0 || store.Len() < declared {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pkt, err := d.demux.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading packet: %w", err)
		}
		if pkt.StreamIndex != d.stream.Index {
			continue
		}
		if err := d.dec.SendPacket(pkt); err != nil {
			return nil, fmt.Errorf("sending packet: %w", err)
		}
		n, err := d.drain(store, declared)
		if err != nil {
			return nil, err
		}
		discarded += n
	}

	d.state = StateFlushing
	if err := d.dec.SendPacket(nil); err != nil {
		return nil, fmt.Errorf("flushing codec: %w", err)
	}
	n, err := d.drain(store, declared)
	if err != nil {
		return nil, err
	}
	discarded += n

	if store.Len() == 0 {
		return nil, ErrNoFrames
	}
	if discarded > 0 {
		d.log("discarded frames beyond declared count", "discarded", discarded, "declared", declared)
	}
	if declared > store.Len() {
		decoded := store.Len()
		if _, err := store.PadTo(declared); err != nil {
			return nil, err
		}
		d.logger.Warn("short stream, repeating last frame",
			"channel", d.channel,
			"decoded", decoded,
			"declared", declared)
	}

	d.log("decoded stream", "frames", store.Len())
	return store, nil
}

// drain receives pictures until the codec needs more input or reports end
// of stream. Pictures beyond the declared count are dropped; their number is
// returned.
func (d *Decoder) drain(store *frames.Store, declared int) (int, error) {
	discarded := 0
	for {
		pic, err := d.dec.ReceiveFrame()
		if errors.Is(err, codec.ErrAgain) || errors.Is(err, io.EOF) {
			return discarded, nil
		}
		if err != nil {
			return discarded, fmt.Errorf("receiving frame: %w", err)
		}
		if declared > 0 && store.Len() >= declared {
			discarded++
			continue
		}
		pixels, err := d.convert(pic)
		if err != nil {
			return discarded, err
		}
		if err := store.Append(frames.Frame{Pixels: pixels, KeyFrame: pic.KeyFrame}); err != nil {
			return discarded, err
		}
		if d.onFrame != nil {
			d.onFrame(store.Len())
		}
	}
}

// convert strips the row stride of pic into a tightly packed plane. For
// packed RGB only the blue component is kept, the byte a BGR conversion
// would put first.
func (d *Decoder) convert(pic *codec.Picture) ([]byte, error) {
	w, h := d.stream.Width, d.stream.Height
	if pic.Width != w || pic.Height != h || pic.Format != d.format {
		return nil, fmt.Errorf("%w: %dx%d %v, want %dx%d %v", ErrGeometry,
			pic.Width, pic.Height, pic.Format, w, h, d.format)
	}
	row := w * d.format.BytesPerPixel()
	if pic.Stride < row || len(pic.Data) < pic.Stride*(h-1)+row {
		return nil, fmt.Errorf("%w: stride %d with %d bytes", ErrGeometry, pic.Stride, len(pic.Data))
	}

	switch d.format {
	case codec.RGB24:
		out := make([]byte, w*h)
		for y := 0; y < h; y++ {
			src := pic.Data[y*pic.Stride:]
			dst := out[y*w : (y+1)*w]
			for x := range dst {
				dst[x] = src[3*x+2]
			}
		}
		return out, nil
	default:
		out := make([]byte, row*h)
		for y := 0; y < h; y++ {
			copy(out[y*row:(y+1)*row], pic.Data[y*pic.Stride:])
		}
		return out, nil
	}
}

// Close releases the codec and demuxer. It is safe to call in any state and
// more than once.
func (d *Decoder) Close() error {
	if d.state == StateClosed {
		return nil
	}
	d.state = StateClosed

	var errs []error
	if d.dec != nil {
		errs = append(errs, d.dec.Close())
		d.dec = nil
	}
	if d.demux != nil {
		errs = append(errs, d.demux.Close())
		d.demux = nil
	}
	d.data = nil
	return errors.Join(errs...)
}

// DecodeAll opens data, decodes it and closes the decoder.
func DecodeAll(ctx context.Context, engine codec.Engine, data []byte, opts ...Option) (*frames.Store, error) {
	d := New(engine, data, opts...)
	defer d.Close()
	if err := d.Open(); err != nil {
		return nil, err
	}
	return d.Decode(ctx)
}
