package hdf5

import (
	"errors"
	"path"
	"reflect"

	"github.com/robert-malhotra/go-h5j/internal/dtype"
	"github.com/robert-malhotra/go-h5j/internal/layout"
	"github.com/robert-malhotra/go-h5j/internal/message"
	"github.com/robert-malhotra/go-h5j/internal/object"
)

// Dataset is an array of typed elements with its storage.
type Dataset struct {
	file   *File
	path   string
	header *object.Header
	space  *message.Dataspace
	dt     *message.Datatype
	store  layout.Layout
}

func newDataset(f *File, p string, h *object.Header) (*Dataset, error) {
	d := &Dataset{file: f, path: p, header: h, space: h.Dataspace(), dt: h.Datatype()}
	if d.space == nil || d.dt == nil {
		return nil, errors.New("hdf5: dataset " + p + " lacks a dataspace or datatype")
	}
	var err error
	if d.store, err = layout.New(h.DataLayout(), d.space, d.dt, h.FilterPipeline(), f.r); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dataset) Name() string { return path.Base(d.path) }

func (d *Dataset) Path() string { return d.path }

// Shape returns the extent, or nil for a scalar.
func (d *Dataset) Shape() []uint64 {
	if d.space.IsScalar() {
		return nil
	}
	return d.space.Dimensions
}

func (d *Dataset) NumElements() uint64 { return d.space.NumElements() }

// DtypeSize returns the element size in bytes.
func (d *Dataset) DtypeSize() int { return int(d.dt.Size) }

func (d *Dataset) DtypeClass() message.DatatypeClass { return d.dt.Class }

// OpaqueTag returns the tag of an opaque datatype, or "".
func (d *Dataset) OpaqueTag() string { return d.dt.Tag }

func (d *Dataset) LayoutClass() message.LayoutClass { return d.header.DataLayout().Class }

// GoType returns the Go type of one element.
func (d *Dataset) GoType() (reflect.Type, error) { return dtype.GoType(d.dt) }

// Read decodes every element into dest, usually a pointer to a slice.
func (d *Dataset) Read(dest any) error {
	raw, err := d.ReadRaw()
	if err != nil {
		return err
	}
	return dtype.ConvertWithReader(d.dt, raw, d.NumElements(), dest, d.file.r)
}

// ReadRaw returns the stored elements with all filters undone.
func (d *Dataset) ReadRaw() ([]byte, error) {
	if d.file.closed {
		return nil, ErrClosed
	}
	if d.store == nil {
		return nil, errors.New("hdf5: dataset " + d.path + " is being written")
	}
	return d.store.Read()
}

func (d *Dataset) Attrs() []string { return attrNames(d.header) }

func (d *Dataset) Attr(name string) *Attribute { return findAttr(d.header, name, d.file.r) }

// HasAttr reports whether the dataset carries the named attribute.
func (d *Dataset) HasAttr(name string) bool { return d.Attr(name) != nil }
