package decoder

import (
	"log/slog"
)

// Option configures a Decoder.
type Option func(*Decoder)

// WithThreads sets the thread count hint passed to the codec. Values below
// one keep the default of runtime.NumCPU().
func WithThreads(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.threads = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithVerbose logs stream and frame events at Info instead of Debug.
func WithVerbose(v bool) Option {
	return func(d *Decoder) {
		d.verbose = v
	}
}

// WithChannel sets the channel ordinal reported in logs.
func WithChannel(ordinal int) Option {
	return func(d *Decoder) {
		d.channel = ordinal
	}
}

// WithFrameCallback registers fn to be called with the running frame count
// after each frame is stored.
func WithFrameCallback(fn func(n int)) Option {
	return func(d *Decoder) {
		d.onFrame = fn
	}
}
