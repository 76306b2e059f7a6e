package hdf5

import (
	"github.com/robert-malhotra/go-h5j/internal/filter"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

// FileOption configures Create.
type FileOption func(*fileOptions)

type fileOptions struct {
	offsetSize, lengthSize int
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{offsetSize: 8, lengthSize: 8}
}

func validWidth(n int) bool { return n == 2 || n == 4 || n == 8 }

// WithOffsetSize sets the width of file addresses: 2, 4 or 8 bytes.
// Other values are ignored.
func WithOffsetSize(n int) FileOption {
	return func(o *fileOptions) {
		if validWidth(n) {
			o.offsetSize = n
		}
	}
}

// WithLengthSize sets the width of stored lengths: 2, 4 or 8 bytes.
func WithLengthSize(n int) FileOption {
	return func(o *fileOptions) {
		if validWidth(n) {
			o.lengthSize = n
		}
	}
}

// DatasetOption configures CreateDataset and CreateOpaqueDataset.
type DatasetOption func(*datasetOptions)

type datasetOptions struct {
	chunk   uint64
	filters []message.FilterInfo
	attrs   []namedValue
}

type namedValue struct {
	name  string
	value any
}

func defaultDatasetOptions() *datasetOptions { return &datasetOptions{} }

// WithChunks stores a one-dimensional dataset in chunks of n elements.
// Any filter option implies chunking, with the whole dataset as one chunk
// unless WithChunks says otherwise.
func WithChunks(n uint64) DatasetOption {
	return func(o *datasetOptions) { o.chunk = n }
}

func withFilter(fi message.FilterInfo) DatasetOption {
	return func(o *datasetOptions) { o.filters = append(o.filters, fi) }
}

// WithDeflate compresses chunks with zlib at level 1 to 9. Other levels
// are ignored.
func WithDeflate(level int) DatasetOption {
	if level < 1 || level > 9 {
		return func(*datasetOptions) {}
	}
	return withFilter(message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{uint32(level)}})
}

// WithZstd compresses chunks with Zstandard, registered filter 32015.
func WithZstd(level int) DatasetOption {
	return withFilter(message.FilterInfo{
		ID:         message.FilterZstd,
		Name:       filter.ZstdName,
		ClientData: []uint32{uint32(level)},
	})
}

// WithShuffle regroups the bytes of elemSize-byte elements by
// significance. Filters run in option order, so it goes before a
// compressor.
func WithShuffle(elemSize int) DatasetOption {
	return withFilter(message.FilterInfo{ID: message.FilterShuffle, ClientData: []uint32{uint32(elemSize)}})
}

// WithFletcher32 appends a checksum to every chunk.
func WithFletcher32() DatasetOption {
	return withFilter(message.FilterInfo{ID: message.FilterFletcher32})
}

// WithAttribute attaches an attribute, with the value rules of
// Group.SetAttr. It may be given more than once.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) { o.attrs = append(o.attrs, namedValue{name, value}) }
}
