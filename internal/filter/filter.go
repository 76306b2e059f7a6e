// Package filter runs the HDF5 filter pipeline over chunk data.
//
// A dataset's pipeline message lists its filters in the order they were
// applied when writing. Reading undoes them in reverse, skipping any whose
// bit is set in the chunk's filter mask. Deflate, shuffle, Fletcher-32 and
// the registered Zstandard filter are implemented in both directions.
package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/message"
)

// ErrUnsupported is returned for filters this package cannot run.
var ErrUnsupported = errors.New("filter: unsupported filter")

// codec is one filter bound to its client data.
type codec struct {
	decode func([]byte) ([]byte, error)
	encode func([]byte) ([]byte, error)
}

var codecs = map[uint16]func(clientData []uint32) codec{
	message.FilterDeflate:    newDeflate,
	message.FilterShuffle:    newShuffle,
	message.FilterFletcher32: newFletcher32,
	message.FilterZstd:       newZstd,
}

var names = map[uint16]string{
	message.FilterDeflate:     "deflate",
	message.FilterShuffle:     "shuffle",
	message.FilterFletcher32:  "fletcher32",
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "nbit",
	message.FilterScaleOffset: "scaleoffset",
	message.FilterZstd:        "zstd",
}

func name(id uint16) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("filter %d", id)
}

// stage is one pipeline entry. Optional filters without a codec keep their
// place so that mask bits still line up.
type stage struct {
	id uint16
	codec
}

// Pipeline is the decoded filter pipeline of a dataset.
type Pipeline struct {
	stages []stage
}

// NewPipeline prepares the filters of fp. A nil message is an empty
// pipeline. Unknown filters are an error unless marked optional.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for _, info := range fp.Filters {
		s := stage{id: info.ID}
		if mk, ok := codecs[info.ID]; ok {
			s.codec = mk(info.ClientData)
		} else if !info.IsOptional() {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, name(info.ID))
		}
		p.stages = append(p.stages, s)
	}
	return p, nil
}

// Len returns the number of filters, including optional ones that cannot
// run.
func (p *Pipeline) Len() int { return len(p.stages) }

// Decode undoes the pipeline on one chunk. Bit i of mask marks filter i as
// not applied to this chunk.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		s := p.stages[i]
		if i < 32 && mask&(1<<i) != 0 {
			continue
		}
		if s.decode == nil {
			return nil, fmt.Errorf("%w: optional %s was applied", ErrUnsupported, name(s.id))
		}
		var err error
		if data, err = s.decode(data); err != nil {
			return nil, fmt.Errorf("%s: %w", name(s.id), err)
		}
	}
	return data, nil
}

// Encode applies the pipeline to one chunk in write order.
func (p *Pipeline) Encode(data []byte) ([]byte, error) {
	for _, s := range p.stages {
		if s.encode == nil {
			return nil, fmt.Errorf("%w: cannot write %s", ErrUnsupported, name(s.id))
		}
		var err error
		if data, err = s.encode(data); err != nil {
			return nil, fmt.Errorf("%s: %w", name(s.id), err)
		}
	}
	return data, nil
}
