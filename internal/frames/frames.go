// Package frames holds the decoded frames of a channel together with the
// geometry and calibration metadata needed to assemble them into a volume.
package frames

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/container"
)

var (
	ErrGeometry = errors.New("frames: geometry mismatch")
	ErrReleased = errors.New("frames: store released")
	ErrEmpty    = errors.New("frames: store has no frames")
)

// Frame is one decoded plane, tightly packed at the store's width, height
// and bytes per pixel.
type Frame struct {
	Pixels   []byte
	KeyFrame bool
}

// Store is an ordered, appendable list of frames for one channel, or for
// several channels after Merge.
type Store struct {
	Width         int
	Height        int
	BytesPerPixel int

	// PadRight and PadBottom are the container padding in pixels, or
	// container.NoPadding when absent.
	PadRight  int
	PadBottom int
	Spacing   [3]float64
	Unit      string

	// Channels is the number of channels whose frames the store holds,
	// concatenated channel-major.
	Channels int

	frames   []Frame
	released bool
}

// New creates an empty store for frames of the given geometry.
func New(width, height, bytesPerPixel int) *Store {
	md := container.DefaultMetadata()
	return &Store{
		Width:         width,
		Height:        height,
		BytesPerPixel: bytesPerPixel,
		PadRight:      md.PadRight,
		PadBottom:     md.PadBottom,
		Spacing:       md.Spacing,
		Unit:          md.Unit,
		Channels:      1,
	}
}

// SetMetadata copies padding and calibration from md.
func (s *Store) SetMetadata(md container.Metadata) {
	s.PadRight = md.PadRight
	s.PadBottom = md.PadBottom
	s.Spacing = md.Spacing
	s.Unit = md.Unit
}

// FrameSize returns the byte length of a stored (padded) frame.
func (s *Store) FrameSize() int {
	return s.Width * s.Height * s.BytesPerPixel
}

// UnpaddedWidth returns the width with the right padding removed.
func (s *Store) UnpaddedWidth() int {
	return s.Width - max(s.PadRight, 0)
}

// UnpaddedHeight returns the height with the bottom padding removed.
func (s *Store) UnpaddedHeight() int {
	return s.Height - max(s.PadBottom, 0)
}

// PlaneSize returns the byte length of a depadded plane.
func (s *Store) PlaneSize() int {
	return s.UnpaddedWidth() * s.UnpaddedHeight() * s.BytesPerPixel
}

// Append adds f at the end of the store.
func (s *Store) Append(f Frame) error {
	if s.released {
		return ErrReleased
	}
	if len(f.Pixels) != s.FrameSize() {
		return fmt.Errorf("%w: frame has %d bytes, want %d", ErrGeometry, len(f.Pixels), s.FrameSize())
	}
	s.frames = append(s.frames, f)
	return nil
}

// Len returns the number of stored frames.
func (s *Store) Len() int {
	return len(s.frames)
}

// Frame returns frame i.
func (s *Store) Frame(i int) Frame {
	return s.frames[i]
}

// Frames returns the stored frames in order. The slice is shared with the
// store.
func (s *Store) Frames() []Frame {
	return s.frames
}

// PadTo appends independent copies of the last frame until the store holds
// n frames and returns the number of frames added.
func (s *Store) PadTo(n int) (int, error) {
	if s.released {
		return 0, ErrReleased
	}
	if len(s.frames) >= n {
		return 0, nil
	}
	if len(s.frames) == 0 {
		return 0, ErrEmpty
	}
	last := s.frames[len(s.frames)-1]
	added := 0
	for len(s.frames) < n {
		s.frames = append(s.frames, Frame{Pixels: bytes.Clone(last.Pixels)})
		added++
	}
	return added, nil
}

// Truncate drops frames beyond the first n.
func (s *Store) Truncate(n int) {
	if n >= 0 && n < len(s.frames) {
		clear(s.frames[n:])
		s.frames = s.frames[:n]
	}
}

// Depad returns the pixels of f with the container padding removed. When
// neither padding is set the frame's own buffer is returned.
func (s *Store) Depad(f Frame) []byte {
	if s.PadRight <= 0 && s.PadBottom <= 0 {
		return f.Pixels
	}
	row := s.UnpaddedWidth() * s.BytesPerPixel
	stride := s.Width * s.BytesPerPixel
	h := s.UnpaddedHeight()
	out := make([]byte, row*h)
	for y := 0; y < h; y++ {
		copy(out[y*row:(y+1)*row], f.Pixels[y*stride:])
	}
	return out
}

// Merge appends the frames of other after those of s. Both stores must
// share width, height, bytes per pixel and frame count per channel. The
// merged padding is the larger of the two.
func (s *Store) Merge(other *Store) error {
	if s.released || other.released {
		return ErrReleased
	}
	if s.Width != other.Width || s.Height != other.Height || s.BytesPerPixel != other.BytesPerPixel {
		return fmt.Errorf("%w: %dx%dx%d and %dx%dx%d", ErrGeometry,
			s.Width, s.Height, s.BytesPerPixel, other.Width, other.Height, other.BytesPerPixel)
	}
	if s.Len()/s.Channels != other.Len()/other.Channels {
		return fmt.Errorf("%w: %d and %d frames per channel", ErrGeometry,
			s.Len()/s.Channels, other.Len()/other.Channels)
	}
	s.frames = append(s.frames, other.frames...)
	s.Channels += other.Channels
	s.PadRight = max(s.PadRight, other.PadRight)
	s.PadBottom = max(s.PadBottom, other.PadBottom)
	return nil
}

// Release drops the frames. It is safe to call more than once.
func (s *Store) Release() {
	if s.released {
		return
	}
	s.released = true
	clear(s.frames)
	s.frames = nil
}

// Released reports whether Release has been called.
func (s *Store) Released() bool {
	return s.released
}
