package ffmpeg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/robert-malhotra/go-h5j/internal/codec"
)

type decoder struct {
	demux   *demuxer
	stream  codec.Stream
	threads int
	format  codec.PixelFormat

	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	started bool
	flushed bool
	drained bool
	closed  bool
}

func (d *decoder) Negotiate(f codec.PixelFormat) error {
	if d.started {
		return errors.New("ffmpeg: format negotiated after decoding started")
	}
	switch f {
	case codec.RGB24, codec.Gray16LE:
		d.format = f
		return nil
	}
	return fmt.Errorf("%w: %v", codec.ErrUnsupportedFormat, f)
}

func (d *decoder) args() []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-threads", strconv.Itoa(d.threads),
		"-i", d.demux.path,
		"-map", "0:" + strconv.Itoa(d.stream.Index),
		"-f", "rawvideo",
		"-pix_fmt", d.format.String(),
		"-fps_mode", "passthrough",
		"pipe:1",
	}
}

// SendPacket starts ffmpeg on the first packet. A nil packet marks the end
// of input.
func (d *decoder) SendPacket(p *codec.Packet) error {
	if d.closed {
		return errors.New("ffmpeg: decoder closed")
	}
	if p == nil {
		d.flushed = true
		return nil
	}
	if d.started {
		return nil
	}
	if d.format == codec.FormatNone {
		return errors.New("ffmpeg: no output format negotiated")
	}

	cmd := exec.Command(d.demux.engine.ffmpeg, d.args()...)
	cmd.Stderr = &d.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg: starting: %w", err)
	}
	d.demux.engine.logger.Debug("started decoder", "pid", cmd.Process.Pid, "format", d.format.String())

	d.cmd = cmd
	d.stdout = stdout
	d.started = true
	return nil
}

func (d *decoder) ReceiveFrame() (*codec.Picture, error) {
	if !d.started || d.drained {
		if d.flushed {
			return nil, io.EOF
		}
		return nil, codec.ErrAgain
	}

	stride := d.stream.Width * d.format.BytesPerPixel()
	buf := make([]byte, stride*d.stream.Height)
	_, err := io.ReadFull(d.stdout, buf)
	switch {
	case err == nil:
		return &codec.Picture{
			Width:  d.stream.Width,
			Height: d.stream.Height,
			Stride: stride,
			Format: d.format,
			Data:   buf,
		}, nil
	case errors.Is(err, io.EOF):
		d.drained = true
		if werr := d.wait(); werr != nil {
			return nil, werr
		}
		return d.ReceiveFrame()
	case errors.Is(err, io.ErrUnexpectedEOF):
		d.drained = true
		d.wait()
		return nil, fmt.Errorf("ffmpeg: truncated frame: %s", bytes.TrimSpace(d.stderr.Bytes()))
	default:
		return nil, fmt.Errorf("ffmpeg: reading frame: %w", err)
	}
}

func (d *decoder) wait() error {
	if d.cmd == nil {
		return nil
	}
	cmd := d.cmd
	d.cmd = nil
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, bytes.TrimSpace(d.stderr.Bytes()))
	}
	return nil
}

// Close stops a running ffmpeg process.
func (d *decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
		d.cmd.Wait()
		d.cmd = nil
	}
	return nil
}
