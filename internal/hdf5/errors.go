// Package hdf5 reads the HDF5 files that carry H5J containers: groups,
// links, attributes and datasets in every storage layout.
//
// A small write side builds link groups, contiguous and chunked datasets
// and their attributes, so that containers can be produced in tests.
package hdf5

import "errors"

var (
	ErrNotHDF5     = errors.New("hdf5: missing superblock signature")
	ErrNotFound    = errors.New("hdf5: no such object")
	ErrNotDataset  = errors.New("hdf5: object is not a dataset")
	ErrNotGroup    = errors.New("hdf5: object is not a group")
	ErrUnsupported = errors.New("hdf5: unsupported object")
	ErrInvalidPath = errors.New("hdf5: invalid path")
	ErrClosed      = errors.New("hdf5: file closed")
	ErrReadOnly    = errors.New("hdf5: file opened read-only")
	ErrLinkDepth   = errors.New("hdf5: too many soft links")
)

// MaxLinkDepth bounds the soft links followed while resolving one path.
const MaxLinkDepth = 100
