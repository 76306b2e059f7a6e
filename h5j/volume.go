package h5j

import (
	"encoding/binary"
)

// DisplayRange is the intensity range used to display a channel.
type DisplayRange struct {
	Min float64
	Max float64
}

// VolumeStack is an assembled multi-channel volume. Planes are depadded
// and tightly packed; 16-bit samples are little-endian.
type VolumeStack struct {
	Width         int
	Height        int
	BytesPerPixel int // 1 or 2
	Channels      int
	Frames        int // planes per channel

	DisplayRanges []DisplayRange // per channel
	MaxValues     []float64      // per channel, 0 when every sample is 0

	Spacing         [3]float64
	Unit            string
	AttributeReport string

	planes [][]byte
}

func newVolume(width, height, bpp, channels, frames int) *VolumeStack {
	return &VolumeStack{
		Width:         width,
		Height:        height,
		BytesPerPixel: bpp,
		Channels:      channels,
		Frames:        frames,
		DisplayRanges: make([]DisplayRange, channels),
		MaxValues:     make([]float64, channels),
		planes:        make([][]byte, channels*frames),
	}
}

// Plane returns plane z of channel c.
func (v *VolumeStack) Plane(c, z int) []byte {
	return v.planes[c*v.Frames+z]
}

// PlaneSize returns the byte length of a plane.
func (v *VolumeStack) PlaneSize() int {
	return v.Width * v.Height * v.BytesPerPixel
}

// Sample returns the value at (x, y) of plane z of channel c.
func (v *VolumeStack) Sample(c, z, x, y int) uint16 {
	p := v.Plane(c, z)
	i := y*v.Width + x
	if v.BytesPerPixel == 2 {
		return binary.LittleEndian.Uint16(p[2*i:])
	}
	return uint16(p[i])
}

// calibrate sets the display range of every channel from its maximum, or to
// the full range of the sample depth when the channel is blank.
func (v *VolumeStack) calibrate() {
	for c, m := range v.MaxValues {
		switch {
		case m > 0:
			v.DisplayRanges[c] = DisplayRange{Max: m}
		case v.BytesPerPixel == 2:
			v.DisplayRanges[c] = DisplayRange{Max: 4095}
		default:
			v.DisplayRanges[c] = DisplayRange{Max: 255}
		}
	}
}

// CompositeStack packs up to four 8-bit channels into one 32-bit value per
// pixel. Channel c occupies bits (Channels-c-1)*8 to (Channels-c)*8-1, so
// the first of three channels is red.
type CompositeStack struct {
	Width    int
	Height   int
	Channels int
	Frames   int

	Spacing         [3]float64
	Unit            string
	AttributeReport string

	planes [][]uint32
}

// Plane returns composite plane z.
func (s *CompositeStack) Plane(z int) []uint32 {
	return s.planes[z]
}

// maxSample returns the largest sample of plane.
func maxSample(plane []byte, bpp int) uint32 {
	var m uint32
	if bpp == 2 {
		for i := 0; i+1 < len(plane); i += 2 {
			m = max(m, uint32(binary.LittleEndian.Uint16(plane[i:])))
		}
		return m
	}
	for _, b := range plane {
		m = max(m, uint32(b))
	}
	return m
}
