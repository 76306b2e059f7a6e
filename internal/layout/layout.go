// Package layout reads the raw bytes of a dataset from its storage and
// writes chunked storage for new datasets.
//
// Compact data lives in the object header itself, contiguous data in one
// block of the file, and chunked data in separately stored, possibly
// filtered chunks found through a chunk index. Every index HDF5 writes is
// read: version 1 and 2 B-trees, single chunk, implicit, fixed array and
// extensible array.
package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

var ErrCorrupt = errors.New("layout: corrupt chunk index")

// Layout reads a dataset's raw bytes.
type Layout interface {
	Read() ([]byte, error)
	Class() message.LayoutClass
}

// New returns the reader for the storage described by l.
func New(l *message.DataLayout, space *message.Dataspace, dt *message.Datatype,
	pipeline *message.FilterPipeline, r *binary.Reader) (Layout, error) {
	if l == nil {
		return nil, errors.New("layout: missing data layout message")
	}
	switch l.Class {
	case message.LayoutCompact:
		return NewCompact(l), nil
	case message.LayoutContiguous:
		return NewContiguous(l, space, dt, r), nil
	case message.LayoutChunked:
		return NewChunked(l, space, dt, pipeline, r)
	}
	return nil, fmt.Errorf("layout: unsupported class %d", l.Class)
}

func dataSize(space *message.Dataspace, dt *message.Datatype) uint64 {
	if space == nil || dt == nil {
		return 0
	}
	return space.NumElements() * uint64(dt.Size)
}

// Compact data is stored in the layout message.
type Compact struct {
	data []byte
}

func NewCompact(l *message.DataLayout) *Compact {
	return &Compact{data: l.CompactData}
}

func (c *Compact) Class() message.LayoutClass { return message.LayoutCompact }

// Read returns a copy of the stored bytes.
func (c *Compact) Read() ([]byte, error) {
	return append([]byte(nil), c.data...), nil
}

// Contiguous data is one block of the file.
type Contiguous struct {
	r          *binary.Reader
	addr, size uint64
}

// NewContiguous describes the block named by l. Old layout messages may
// leave the size zero; it then follows from the dataspace and datatype.
func NewContiguous(l *message.DataLayout, space *message.Dataspace, dt *message.Datatype, r *binary.Reader) *Contiguous {
	size := l.Size
	if size == 0 {
		size = dataSize(space, dt)
	}
	return &Contiguous{r: r, addr: l.Address, size: size}
}

func (c *Contiguous) Class() message.LayoutClass { return message.LayoutContiguous }

// Read returns the block. Storage that was never allocated reads as
// zeros, the default fill value.
func (c *Contiguous) Read() ([]byte, error) {
	if c.r.IsUndefinedOffset(c.addr) {
		return make([]byte, c.size), nil
	}
	data, err := c.r.At(int64(c.addr)).ReadBytes(int(c.size))
	if err != nil {
		return nil, fmt.Errorf("reading %d bytes of contiguous data at %d: %w", c.size, c.addr, err)
	}
	return data, nil
}
