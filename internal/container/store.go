package container

import (
	"errors"
	"fmt"
	"math"
	"path"

	"github.com/robert-malhotra/go-h5j/internal/hdf5"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

// Well-known paths and attribute names.
const (
	RootPath     = "/"
	ChannelsPath = "/Channels"

	AttrVoxelSize = "voxel_size"
	AttrUnit      = "unit"
	AttrPadRight  = "pad_right"
	AttrPadBottom = "pad_bottom"
)

// ChannelStream is the compressed stream of one channel.
type ChannelStream struct {
	Name    string
	Ordinal int // index in ChannelNames order
	Bytes   []byte
}

// Store is an open H5J container. A Store is not safe for concurrent use.
type Store struct {
	path   string
	file   *hdf5.File
	names  []string
	closed bool
}

// Open opens the container at path for reading.
func Open(filePath string) (*Store, error) {
	f, err := hdf5.Open(filePath)
	if err != nil {
		return nil, &Error{Op: "open", File: filePath, Err: fmt.Errorf("%w: %w", ErrOpen, err)}
	}
	return &Store{path: filePath, file: f}, nil
}

// Path returns the container file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying file. Closing a closed Store is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// ChannelNames returns the channel names under /Channels in storage order.
// The result is read once and fixed for the life of the Store.
func (s *Store) ChannelNames() ([]string, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.names != nil {
		return s.names, nil
	}

	g, err := s.file.OpenGroup(ChannelsPath)
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotGroup) {
			err = ErrNoChannelGroup
		}
		return nil, &Error{Op: "list channels", File: s.path, Name: ChannelsPath, Err: err}
	}
	names, err := g.Members()
	if err != nil {
		return nil, &Error{Op: "list channels", File: s.path, Name: ChannelsPath, Err: err}
	}
	if names == nil {
		names = []string{}
	}
	s.names = names
	return names, nil
}

// ReadChannelBytes returns the compressed stream of the named channel.
func (s *Store) ReadChannelBytes(name string) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	ds, err := s.file.OpenDataset(path.Join(ChannelsPath, name))
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotDataset) {
			err = ErrChannelNotFound
		}
		return nil, &Error{Op: "read channel", File: s.path, Name: name, Err: err}
	}

	switch {
	case ds.DtypeClass() == message.ClassOpaque:
	case ds.DtypeClass() == message.ClassFixedPoint && ds.DtypeSize() == 1:
	default:
		return nil, &Error{Op: "read channel", File: s.path, Name: name, Err: ErrChannelType}
	}

	data, err := ds.ReadRaw()
	if err != nil {
		return nil, &Error{Op: "read channel", File: s.path, Name: name, Err: err}
	}
	return data, nil
}

// Channels reads every channel stream in storage order.
func (s *Store) Channels() ([]ChannelStream, error) {
	names, err := s.ChannelNames()
	if err != nil {
		return nil, err
	}
	streams := make([]ChannelStream, 0, len(names))
	for i, name := range names {
		data, err := s.ReadChannelBytes(name)
		if err != nil {
			return nil, err
		}
		streams = append(streams, ChannelStream{Name: name, Ordinal: i, Bytes: data})
	}
	return streams, nil
}

// holder returns the group or dataset at objPath.
func (s *Store) holder(op, objPath string) (hdf5.AttributeHolder, error) {
	if s.closed {
		return nil, ErrClosed
	}
	h, err := s.file.AttributeHolder(objPath)
	if err != nil {
		if errors.Is(err, hdf5.ErrNotFound) || errors.Is(err, hdf5.ErrNotGroup) {
			err = ErrObjectNotFound
		}
		return nil, &Error{Op: op, File: s.path, Name: objPath, Err: err}
	}
	return h, nil
}

// HasAttribute reports whether the object at objPath carries the attribute.
func (s *Store) HasAttribute(objPath, name string) bool {
	h, err := s.holder("read attribute", objPath)
	if err != nil {
		return false
	}
	return h.Attr(name) != nil
}

// AttributeNames returns the attribute names of the object at objPath in
// storage order.
func (s *Store) AttributeNames(objPath string) ([]string, error) {
	h, err := s.holder("list attributes", objPath)
	if err != nil {
		return nil, err
	}
	return h.Attrs(), nil
}

// ReadAttribute reads an attribute as a Go value: int64, uint64, float64 or
// string for scalars and the matching slice type for arrays. Unsigned
// integers keep their unsigned type. ok is false when the attribute does not
// exist.
func (s *Store) ReadAttribute(objPath, name string) (value any, ok bool, err error) {
	h, err := s.holder("read attribute", objPath)
	if err != nil {
		return nil, false, err
	}
	attr := h.Attr(name)
	if attr == nil {
		return nil, false, nil
	}
	v, err := attr.Value()
	if err != nil {
		return nil, false, &Error{Op: "read attribute", File: s.path, Name: objPath + "@" + name, Err: err}
	}
	return v, true, nil
}

// Int64Attribute reads an integer attribute holding a single value.
func (s *Store) Int64Attribute(objPath, name string) (int64, bool, error) {
	v, ok, err := s.ReadAttribute(objPath, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	switch x := single(v).(type) {
	case int64:
		return x, true, nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, false, s.typeError(objPath, name, v)
		}
		return int64(x), true, nil
	}
	return 0, false, s.typeError(objPath, name, v)
}

// Float64sAttribute reads a numeric attribute as float64 values.
func (s *Store) Float64sAttribute(objPath, name string) ([]float64, bool, error) {
	v, ok, err := s.ReadAttribute(objPath, name)
	if err != nil || !ok {
		return nil, ok, err
	}
	switch x := v.(type) {
	case float64:
		return []float64{x}, true, nil
	case []float64:
		return x, true, nil
	case int64:
		return []float64{float64(x)}, true, nil
	case []int64:
		out := make([]float64, len(x))
		for i, n := range x {
			out[i] = float64(n)
		}
		return out, true, nil
	case uint64:
		return []float64{float64(x)}, true, nil
	case []uint64:
		out := make([]float64, len(x))
		for i, n := range x {
			out[i] = float64(n)
		}
		return out, true, nil
	}
	return nil, false, s.typeError(objPath, name, v)
}

// StringAttribute reads a string attribute holding a single value.
func (s *Store) StringAttribute(objPath, name string) (string, bool, error) {
	v, ok, err := s.ReadAttribute(objPath, name)
	if err != nil || !ok {
		return "", ok, err
	}
	if str, isStr := single(v).(string); isStr {
		return str, true, nil
	}
	return "", false, s.typeError(objPath, name, v)
}

func (s *Store) typeError(objPath, name string, v any) error {
	return &Error{
		Op:   "read attribute",
		File: s.path,
		Name: objPath + "@" + name,
		Err:  fmt.Errorf("unexpected value type %T", v),
	}
}

// single unwraps one-element slices.
func single(v any) any {
	switch x := v.(type) {
	case []int64:
		if len(x) == 1 {
			return x[0]
		}
	case []uint64:
		if len(x) == 1 {
			return x[0]
		}
	case []string:
		if len(x) == 1 {
			return x[0]
		}
	}
	return v
}
