package layout

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/btree"
	"github.com/robert-malhotra/go-h5j/internal/filter"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

// Chunked data is split into equally shaped chunks, each stored and
// filtered on its own. Chunks that were never written read as zeros.
type Chunked struct {
	layout   *message.DataLayout
	r        *binary.Reader
	pipeline *filter.Pipeline

	dims     []uint64 // dataset extent
	maxDims  []uint64 // maximum extent; unlimited dimensions hold ^0
	chunk    []uint32 // chunk extent without the element size
	elemSize uint64
}

func NewChunked(l *message.DataLayout, space *message.Dataspace, dt *message.Datatype,
	fp *message.FilterPipeline, r *binary.Reader) (*Chunked, error) {
	if space == nil || dt == nil {
		return nil, fmt.Errorf("layout: chunked storage needs a dataspace and datatype")
	}
	pipeline, err := filter.NewPipeline(fp)
	if err != nil {
		return nil, err
	}

	c := &Chunked{layout: l, r: r, pipeline: pipeline, elemSize: uint64(dt.Size)}
	c.dims = space.Dimensions
	if len(c.dims) == 0 {
		c.dims = []uint64{1}
	}
	c.maxDims = space.MaxDims
	if len(c.maxDims) != len(c.dims) {
		c.maxDims = c.dims
	}
	if len(l.ChunkDims) < len(c.dims) {
		return nil, fmt.Errorf("layout: %d chunk dimensions for a rank %d dataset", len(l.ChunkDims), len(c.dims))
	}
	c.chunk = l.ChunkDims[:len(c.dims)]
	for _, d := range c.chunk {
		if d == 0 {
			return nil, fmt.Errorf("layout: zero chunk dimension in %v", l.ChunkDims)
		}
	}
	return c, nil
}

func (c *Chunked) Class() message.LayoutClass { return message.LayoutChunked }

// chunkBytes is the size of one unfiltered chunk.
func (c *Chunked) chunkBytes() uint64 {
	n := c.elemSize
	for _, d := range c.chunk {
		n *= uint64(d)
	}
	return n
}

// Read assembles the dataset from its chunks, decoding them in parallel.
func (c *Chunked) Read() ([]byte, error) {
	total := c.elemSize
	for _, d := range c.dims {
		total *= d
	}
	out := make([]byte, total)
	if total == 0 || c.r.IsUndefinedOffset(c.layout.ChunkIndexAddr) {
		return out, nil
	}

	entries, err := c.Entries()
	if err != nil {
		return nil, err
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, e := range entries {
		g.Go(func() error {
			data, err := c.readChunk(e)
			if err != nil {
				return fmt.Errorf("chunk at %v: %w", e.Offset, err)
			}
			c.place(out, data, e.Offset)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// readChunk reads one chunk and undoes its filters.
func (c *Chunked) readChunk(e btree.ChunkEntry) ([]byte, error) {
	size := uint64(e.Size)
	if size == 0 {
		size = c.chunkBytes()
	}
	raw, err := c.r.At(int64(e.Address)).ReadBytes(int(size))
	if err != nil {
		return nil, err
	}
	data, err := c.pipeline.Decode(raw, e.FilterMask)
	if err != nil {
		return nil, err
	}
	if want := c.chunkBytes(); uint64(len(data)) < want {
		return nil, fmt.Errorf("decoded to %d bytes, want %d", len(data), want)
	}
	return data, nil
}

// place copies the part of a chunk that lies inside the dataset into out,
// one row of the fastest dimension at a time. Chunks never overlap, so
// concurrent calls write disjoint bytes.
func (c *Chunked) place(out, chunk []byte, origin []uint64) {
	rank := len(c.dims)
	span := make([]uint64, rank)
	for d := range span {
		if origin[d] >= c.dims[d] {
			return
		}
		span[d] = min(uint64(c.chunk[d]), c.dims[d]-origin[d])
	}
	row := span[rank-1] * c.elemSize

	pos := make([]uint64, rank) // position inside the chunk; the last stays 0
	for {
		var src, dst uint64
		for d := 0; d < rank; d++ {
			src = src*uint64(c.chunk[d]) + pos[d]
			dst = dst*c.dims[d] + origin[d] + pos[d]
		}
		src, dst = src*c.elemSize, dst*c.elemSize
		copy(out[dst:dst+row], chunk[src:src+row])

		d := rank - 2
		for ; d >= 0; d-- {
			if pos[d]++; pos[d] < span[d] {
				break
			}
			pos[d] = 0
		}
		if d < 0 {
			return
		}
	}
}
