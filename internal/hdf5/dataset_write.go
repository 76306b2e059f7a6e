package hdf5

import (
	"fmt"
	"path"
	"reflect"

	"github.com/robert-malhotra/go-h5j/internal/dtype"
	"github.com/robert-malhotra/go-h5j/internal/filter"
	"github.com/robert-malhotra/go-h5j/internal/layout"
	"github.com/robert-malhotra/go-h5j/internal/message"
	"github.com/robert-malhotra/go-h5j/internal/object"
)

// CreateDataset writes data, a number or a possibly nested slice or array
// of numbers, as a new dataset. Its shape follows the nesting and its
// datatype the element type.
func (g *Group) CreateDataset(name string, data any, opts ...DatasetOption) (*Dataset, error) {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("dataset %s: nil data", name)
	}
	dt, err := dtype.GoTypeToDatatype(v.Type())
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	raw, err := dtype.Encode(dt, data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	return g.writeDataset(name, dt, shapeOf(v), raw, opts)
}

// shapeOf returns the extent of nested slices and arrays, measured along
// their first elements. A bare value has shape [1].
func shapeOf(v reflect.Value) []uint64 {
	var dims []uint64
	for v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		dims = append(dims, uint64(v.Len()))
		if v.Len() == 0 {
			break
		}
		v = v.Index(0)
	}
	if dims == nil {
		dims = []uint64{1}
	}
	return dims
}

// CreateOpaqueDataset writes data as a one-dimensional dataset of
// single-byte opaque elements labelled tag.
func (g *Group) CreateOpaqueDataset(name string, data []byte, tag string, opts ...DatasetOption) (*Dataset, error) {
	return g.writeDataset(name, message.NewOpaqueDatatype(1, tag), []uint64{uint64(len(data))}, data, opts)
}

func (g *Group) writeDataset(name string, dt *message.Datatype, dims []uint64, raw []byte, opts []DatasetOption) (*Dataset, error) {
	f := g.file
	if err := f.writable(); err != nil {
		return nil, err
	}
	if err := g.checkNewName(name); err != nil {
		return nil, err
	}
	o := defaultDatasetOptions()
	for _, opt := range opts {
		opt(o)
	}
	full := path.Join(g.path, name)

	space := message.NewDataspace(dims, nil)
	var msgs []message.Message
	if o.chunk == 0 && len(o.filters) == 0 {
		addr := f.allocate(int64(len(raw)))
		if err := f.w.At(int64(addr)).WriteBytes(raw); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", full, err)
		}
		msgs = object.DatasetMessages(space, dt, message.NewContiguousLayout(addr, uint64(len(raw))))
	} else {
		l, fp, err := g.writeChunks(dt, dims, raw, o)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", full, err)
		}
		msgs = object.DatasetMessages(space, dt, l)
		if fp != nil {
			msgs = append(msgs, fp)
		}
	}
	for _, a := range o.attrs {
		m, err := createAttributeMessage(a.name, a.value)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: attribute %s: %w", full, a.name, err)
		}
		msgs = append(msgs, m)
	}

	hdr, err := object.Encode(msgs, f.w.Config(), 0)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", full, err)
	}
	addr := f.allocate(int64(len(hdr)))
	if err := f.w.At(int64(addr)).WriteBytes(hdr); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", full, err)
	}
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, err
	}
	h := &object.Header{Version: 2, Address: addr, Messages: msgs}
	return &Dataset{file: f, path: full, header: h, space: space, dt: dt}, nil
}

// writeChunks stores one-dimensional data in chunks indexed by a fixed
// array. With filters, each chunk is encoded on its own and the index
// records its stored size.
func (g *Group) writeChunks(dt *message.Datatype, dims []uint64, raw []byte, o *datasetOptions) (*message.DataLayout, *message.FilterPipeline, error) {
	if len(dims) != 1 {
		return nil, nil, fmt.Errorf("chunking rank %d data: %w", len(dims), ErrUnsupported)
	}
	n := o.chunk
	if n == 0 || n > dims[0] {
		n = max(dims[0], 1)
	}
	chunkDims := []uint32{uint32(n)}

	chunks := layout.SplitIntoChunks(raw, uint32(n), dt.Size)
	var (
		fp    *message.FilterPipeline
		sizes []uint32
	)
	if len(o.filters) > 0 {
		fp = message.NewFilterPipeline(o.filters...)
		p, err := filter.NewPipeline(fp)
		if err != nil {
			return nil, nil, err
		}
		sizes = make([]uint32, len(chunks))
		for i := range chunks {
			if chunks[i], err = p.Encode(chunks[i]); err != nil {
				return nil, nil, fmt.Errorf("chunk %d: %w", i, err)
			}
			sizes[i] = uint32(len(chunks[i]))
		}
	}

	cw := layout.NewChunkWriter(g.file.w, chunkDims, dt.Size, g.file.allocate)
	addrs, err := cw.WriteChunks(chunks)
	if err != nil {
		return nil, nil, err
	}
	index, err := cw.WriteFixedArrayIndex(addrs, sizes)
	if err != nil {
		return nil, nil, err
	}
	l := message.NewChunkedLayout(chunkDims, dt.Size, message.ChunkIndexFixedArray)
	l.ChunkIndexAddr = index
	return l, fp, nil
}

// createAttributeMessage encodes a number, string, or slice of either.
// Strings become fixed-length NUL-terminated ASCII, sized by the longest.
func createAttributeMessage(name string, value any) (*message.Attribute, error) {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("nil value")
	}

	space := message.NewScalarDataspace()
	elem := v.Type()
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		space = message.NewDataspace([]uint64{uint64(v.Len())}, nil)
		elem = elem.Elem()
	}

	if elem.Kind() == reflect.String {
		var strs []string
		if v.Kind() == reflect.String {
			strs = []string{v.String()}
		} else {
			for i := range v.Len() {
				strs = append(strs, v.Index(i).String())
			}
		}
		if len(strs) == 0 {
			return nil, fmt.Errorf("empty string array")
		}
		width := 1
		for _, s := range strs {
			width = max(width, len(s)+1)
		}
		data := make([]byte, width*len(strs))
		for i, s := range strs {
			copy(data[i*width:], s)
		}
		dt := message.NewStringDatatype(uint32(width), message.PadNullTerm, message.CharsetASCII)
		return message.NewAttribute(name, dt, space, data), nil
	}

	dt, err := dtype.GoTypeToDatatype(elem)
	if err != nil {
		return nil, err
	}
	data, err := dtype.Encode(dt, value)
	if err != nil {
		return nil, err
	}
	return message.NewAttribute(name, dt, space, data), nil
}
