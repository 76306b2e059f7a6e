// Package containertest writes H5J containers for tests.
//
// Files are produced by the HDF5 writer in internal/hdf5, so they exercise
// the same read path as containers written by other HDF5 implementations.
package containertest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/robert-malhotra/go-h5j/internal/container"
	"github.com/robert-malhotra/go-h5j/internal/hdf5"
)

// Compression selects how a channel blob is stored.
type Compression int

const (
	Contiguous Compression = iota
	Deflate
	Zstd
)

// VarString is an attribute value stored as a variable-length string.
type VarString string

// Attr is a named attribute value. Values are anything the HDF5 writer
// accepts, or a VarString.
type Attr struct {
	Name  string
	Value any
}

// Channel is one channel blob.
type Channel struct {
	Name        string
	Data        []byte
	Tag         string
	Compression Compression
	ChunkSize   uint64 // elements per chunk for compressed storage
}

// Fixture describes a container.
type Fixture struct {
	RootAttrs    []Attr
	ChannelAttrs []Attr
	Channels     []Channel

	// NoChannelGroup omits /Channels entirely.
	NoChannelGroup bool
}

// Standard returns a fixture with the usual H5J attributes. Negative padding
// leaves the attribute out.
func Standard(unit string, voxel []float64, padRight, padBottom int64, channels ...Channel) Fixture {
	var fx Fixture
	if voxel != nil {
		fx.RootAttrs = append(fx.RootAttrs, Attr{container.AttrVoxelSize, voxel})
	}
	if unit != "" {
		fx.RootAttrs = append(fx.RootAttrs, Attr{container.AttrUnit, unit})
	}
	if padRight >= 0 {
		fx.ChannelAttrs = append(fx.ChannelAttrs, Attr{container.AttrPadRight, padRight})
	}
	if padBottom >= 0 {
		fx.ChannelAttrs = append(fx.ChannelAttrs, Attr{container.AttrPadBottom, padBottom})
	}
	fx.Channels = channels
	return fx
}

// WriteFile writes fx to path.
func WriteFile(path string, fx Fixture) error {
	f, err := hdf5.Create(path)
	if err != nil {
		return err
	}

	if err := build(f, fx); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes fx into a fresh file under t.TempDir and returns its path.
func Write(t testing.TB, fx Fixture) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.h5j")
	if err := WriteFile(path, fx); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func build(f *hdf5.File, fx Fixture) error {
	root := f.Root()
	if err := setAttrs(root, fx.RootAttrs); err != nil {
		return err
	}
	if fx.NoChannelGroup {
		return nil
	}

	ch, err := root.CreateGroup("Channels")
	if err != nil {
		return err
	}
	if err := setAttrs(ch, fx.ChannelAttrs); err != nil {
		return err
	}

	for _, c := range fx.Channels {
		var opts []hdf5.DatasetOption
		chunk := c.ChunkSize
		if chunk == 0 {
			chunk = 4096
		}
		switch c.Compression {
		case Deflate:
			opts = append(opts, hdf5.WithChunks(chunk), hdf5.WithDeflate(6))
		case Zstd:
			opts = append(opts, hdf5.WithChunks(chunk), hdf5.WithZstd(3))
		}
		if _, err := ch.CreateOpaqueDataset(c.Name, c.Data, c.Tag, opts...); err != nil {
			return fmt.Errorf("channel %s: %w", c.Name, err)
		}
	}
	return nil
}

func setAttrs(g *hdf5.Group, attrs []Attr) error {
	for _, a := range attrs {
		var err error
		if s, ok := a.Value.(VarString); ok {
			err = g.SetVarStringAttr(a.Name, string(s))
		} else {
			err = g.SetAttr(a.Name, a.Value)
		}
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.Name, err)
		}
	}
	return nil
}
