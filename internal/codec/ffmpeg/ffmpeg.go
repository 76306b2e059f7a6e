// Package ffmpeg implements codec.Engine on top of the ffprobe and ffmpeg
// command line tools.
//
// Each opened buffer is staged into a temporary file. ffprobe reports its
// streams; ffmpeg decodes the selected video stream to raw frames in the
// negotiated pixel format, which are read from its standard output.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/robert-malhotra/go-h5j/internal/codec"
)

// ErrNotFound is returned when ffmpeg or ffprobe is not on PATH.
var ErrNotFound = errors.New("ffmpeg: executable not found")

// Engine runs ffprobe and ffmpeg processes.
type Engine struct {
	ffmpeg  string
	ffprobe string
	tempDir string
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBinaries overrides the ffmpeg and ffprobe executables.
func WithBinaries(ffmpegPath, ffprobePath string) Option {
	return func(e *Engine) {
		e.ffmpeg = ffmpegPath
		e.ffprobe = ffprobePath
	}
}

// WithTempDir sets the directory used to stage buffers.
func WithTempDir(dir string) Option {
	return func(e *Engine) {
		e.tempDir = dir
	}
}

// WithLogger sets the logger for process diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether both executables can be found.
func (e *Engine) Available() error {
	for _, bin := range []string{e.ffmpeg, e.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s", ErrNotFound, bin)
		}
	}
	return nil
}

// Open stages data and probes its streams.
func (e *Engine) Open(data []byte) (codec.Demuxer, error) {
	if err := e.Available(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(e.tempDir, "h5j-channel-*.bin")
	if err != nil {
		return nil, fmt.Errorf("staging stream: %w", err)
	}
	name := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(name)
		return nil, fmt.Errorf("staging stream: %w", err)
	}

	streams, err := probe(context.Background(), e.ffprobe, name)
	if err != nil {
		os.Remove(name)
		return nil, err
	}

	e.logger.Debug("probed stream", "file", name, "streams", len(streams))
	return &demuxer{engine: e, path: name, streams: streams}, nil
}
