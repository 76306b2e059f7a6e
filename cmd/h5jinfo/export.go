package main

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"github.com/robert-malhotra/go-h5j/h5j"
)

// planeImage wraps a depadded plane as a gray image. 16-bit planes are
// little-endian and are converted to the big-endian layout of image.Gray16.
func planeImage(plane []byte, width, height, bpp int) image.Image {
	rect := image.Rect(0, 0, width, height)
	if bpp == 1 {
		return &image.Gray{Pix: plane, Stride: width, Rect: rect}
	}
	img := image.NewGray16(rect)
	for i := 0; i+1 < len(plane); i += 2 {
		binary.BigEndian.PutUint16(img.Pix[i:], binary.LittleEndian.Uint16(plane[i:]))
	}
	return img
}

func exportPlanes(vol *h5j.VolumeStack, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	n := 0
	for c := 0; c < vol.Channels; c++ {
		for z := 0; z < vol.Frames; z++ {
			name := filepath.Join(dir, fmt.Sprintf("c%02d_z%04d.tif", c, z))
			img := planeImage(vol.Plane(c, z), vol.Width, vol.Height, vol.BytesPerPixel)
			if err := writeTIFF(name, img); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func writeTIFF(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return f.Close()
}
