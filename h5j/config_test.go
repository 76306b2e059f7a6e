package h5j

import (
	"runtime"
	"testing"
	"time"

	"github.com/robert-malhotra/go-h5j/internal/codec/ffmpeg"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		workers int
		timeout time.Duration
		threads int
	}{
		{"defaults", nil, 4, 5 * time.Minute, runtime.NumCPU()},
		{"too few workers", []Option{WithBuildWorkers(0)}, 1, 5 * time.Minute, runtime.NumCPU()},
		{"too many workers", []Option{WithBuildWorkers(1000)}, 64, 5 * time.Minute, runtime.NumCPU()},
		{"custom", []Option{WithBuildWorkers(8), WithTimeout(time.Second), WithThreads(2)}, 8, time.Second, 2},
		{"invalid timeout and threads", []Option{WithTimeout(-1), WithThreads(-3)}, 4, 5 * time.Minute, runtime.NumCPU()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig(tt.opts)
			if cfg.BuildWorkers != tt.workers {
				t.Errorf("BuildWorkers = %d, want %d", cfg.BuildWorkers, tt.workers)
			}
			if cfg.Timeout != tt.timeout {
				t.Errorf("Timeout = %v, want %v", cfg.Timeout, tt.timeout)
			}
			if cfg.Threads != tt.threads {
				t.Errorf("Threads = %d, want %d", cfg.Threads, tt.threads)
			}
			if cfg.Logger == nil {
				t.Error("Logger not defaulted")
			}
		})
	}
}

func TestDefaultEngineIsFFmpeg(t *testing.T) {
	cfg := newConfig(nil)
	if _, ok := cfg.Engine.(*ffmpeg.Engine); !ok {
		t.Errorf("default engine = %T, want *ffmpeg.Engine", cfg.Engine)
	}
}

func TestWithConfig(t *testing.T) {
	cfg := newConfig([]Option{WithConfig(Config{BuildWorkers: 2, Verbose: true})})
	if cfg.BuildWorkers != 2 || !cfg.Verbose || cfg.Timeout != DefaultTimeout {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestCalibrate(t *testing.T) {
	v := newVolume(1, 1, 2, 2, 1)
	v.MaxValues[0] = 900
	v.calibrate()
	if v.DisplayRanges[0] != (DisplayRange{0, 900}) || v.DisplayRanges[1] != (DisplayRange{0, 4095}) {
		t.Errorf("16-bit ranges = %v", v.DisplayRanges)
	}

	v = newVolume(1, 1, 1, 1, 1)
	v.calibrate()
	if v.DisplayRanges[0] != (DisplayRange{0, 255}) {
		t.Errorf("8-bit blank range = %v", v.DisplayRanges[0])
	}
}

func TestMaxSample(t *testing.T) {
	if got := maxSample([]byte{3, 200, 7}, 1); got != 200 {
		t.Errorf("8-bit max = %d", got)
	}
	if got := maxSample([]byte{0xff, 0x00, 0x00, 0x01, 0x10, 0x00}, 2); got != 256 {
		t.Errorf("16-bit max = %d", got)
	}
}
