package h5j

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/robert-malhotra/go-h5j/internal/codec"
	"github.com/robert-malhotra/go-h5j/internal/codec/ffmpeg"
)

const (
	DefaultBuildWorkers = 4
	MaxBuildWorkers     = 64
	DefaultTimeout      = 5 * time.Minute
)

// Stage identifies the phase a Progress report belongs to.
type Stage string

const (
	StageDecode   Stage = "decode"
	StageAssemble Stage = "assemble"
)

// Progress is reported while a file loads. Total is 0 when unknown.
type Progress struct {
	Stage    Stage
	Channel  int
	Channels int
	Done     int
	Total    int
}

// ProgressFunc receives progress reports. It is called from a single
// goroutine at a time.
type ProgressFunc func(Progress)

// Config holds the load settings.
type Config struct {
	// BuildWorkers bounds the goroutines depadding frames of a channel.
	BuildWorkers int

	// Timeout bounds the assembly of each channel.
	Timeout time.Duration

	// Threads is the codec thread count hint.
	Threads int

	// Verbose logs per-channel and per-frame events at Info.
	Verbose bool

	Logger   *slog.Logger
	Progress ProgressFunc

	// Engine decodes channel streams. Defaults to the ffmpeg engine. The
	// codec package is internal, so engines other than ffmpeg and the test
	// engine can only be supplied from inside this module.
	Engine codec.Engine
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		BuildWorkers: DefaultBuildWorkers,
		Timeout:      DefaultTimeout,
		Threads:      runtime.NumCPU(),
	}
}

func (c *Config) validate() {
	if c.BuildWorkers < 1 {
		c.BuildWorkers = 1
	}
	if c.BuildWorkers > MaxBuildWorkers {
		c.BuildWorkers = MaxBuildWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Threads < 1 {
		c.Threads = runtime.NumCPU()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Engine == nil {
		c.Engine = ffmpeg.New(ffmpeg.WithLogger(c.Logger))
	}
}

// Option configures a load.
type Option func(*Config)

func newConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.validate()
	return cfg
}

// WithConfig replaces all settings with cfg.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithVerbose enables per-channel and per-frame logging at Info.
func WithVerbose(v bool) Option {
	return func(c *Config) {
		c.Verbose = v
	}
}

// WithBuildWorkers sets the number of depadding goroutines per channel,
// clamped to [1, 64].
func WithBuildWorkers(n int) Option {
	return func(c *Config) {
		c.BuildWorkers = n
	}
}

// WithTimeout sets the per-channel assembly timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithThreads sets the codec thread count hint.
func WithThreads(n int) Option {
	return func(c *Config) {
		c.Threads = n
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// WithEngine sets the codec engine.
func WithEngine(e codec.Engine) Option {
	return func(c *Config) {
		c.Engine = e
	}
}
