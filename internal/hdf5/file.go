package hdf5

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/robert-malhotra/go-h5j/internal/alloc"
	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/superblock"
)

// File is an HDF5 file opened for reading with Open, or for writing with
// Create. The two modes do not mix: a created file is read back by closing
// it and opening the path again.
type File struct {
	path   string
	osf    *os.File
	r      *binary.Reader
	sb     *superblock.Superblock
	root   *Group
	closed bool

	w      *binary.Writer
	alloc  *alloc.Allocator
	groups map[string]*Group // created groups by path, for header rewrites
}

// Open opens the HDF5 file at path for reading.
func Open(path string) (*File, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	sb, err := superblock.Read(osf)
	if err != nil {
		osf.Close()
		if errors.Is(err, superblock.ErrNotHDF5) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotHDF5)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f := &File{path: path, osf: osf, sb: sb, r: binary.NewReader(osf, sb.ReaderConfig())}
	if f.root, err = f.groupAt(sb.RootGroupAddress, "/"); err != nil {
		osf.Close()
		return nil, fmt.Errorf("%s: root group: %w", path, err)
	}
	return f, nil
}

// Close flushes a file being written and releases the handle. Closing
// twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.w != nil {
		if err := f.flush(); err != nil {
			f.osf.Close()
			return err
		}
	}
	return f.osf.Close()
}

func (f *File) Path() string { return f.path }

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Version returns the superblock version.
func (f *File) Version() int { return int(f.sb.Version) }

// OpenGroup opens the group at an absolute path.
func (f *File) OpenGroup(p string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(p)
}

// OpenDataset opens the dataset at an absolute path.
func (f *File) OpenDataset(p string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(p)
}

// AttributeHolder is a group or dataset.
type AttributeHolder interface {
	Path() string
	Attrs() []string
	Attr(name string) *Attribute
}

// AttributeHolder opens the group or dataset at p.
func (f *File) AttributeHolder(p string) (AttributeHolder, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.open(p)
}

// GetAttr returns the attribute named by an "object@name" path, such as
// "/@voxel_size" or "/Channels@pad_right".
func (f *File) GetAttr(p string) (*Attribute, error) {
	if f.closed {
		return nil, ErrClosed
	}
	i := strings.LastIndexByte(p, '@')
	obj, name := p[:max(i, 0)], p[i+1:]
	if i < 0 || name == "" {
		return nil, fmt.Errorf("%w: %q has no attribute name", ErrInvalidPath, p)
	}
	if obj == "" {
		obj = "/"
	}
	h, err := f.root.open(obj)
	if err != nil {
		return nil, err
	}
	a := h.Attr(name)
	if a == nil {
		return nil, fmt.Errorf("attribute %s: %w", p, ErrNotFound)
	}
	return a, nil
}

// ReadAttr reads the attribute named by an "object@name" path with
// Attribute.Value.
func (f *File) ReadAttr(p string) (any, error) {
	a, err := f.GetAttr(p)
	if err != nil {
		return nil, err
	}
	return a.Value()
}
