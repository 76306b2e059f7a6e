package container

import (
	"github.com/robert-malhotra/go-h5j/internal/hdf5"
)

// Node describes one object of the container hierarchy.
type Node struct {
	Path     string
	Group    bool
	Elements uint64 // dataset element count
	Tag      string // opaque datatype tag
	Attrs    []string
}

// Tree calls fn for every group and dataset, parents before children.
func (s *Store) Tree(fn func(Node) error) error {
	if s.closed {
		return ErrClosed
	}
	return hdf5.Walk(s.file.Root(), func(p string, obj interface{}, err error) error {
		if err != nil {
			return &Error{Op: "walk", File: s.path, Name: p, Err: err}
		}
		switch o := obj.(type) {
		case *hdf5.Group:
			return fn(Node{Path: p, Group: true, Attrs: o.Attrs()})
		case *hdf5.Dataset:
			return fn(Node{Path: p, Elements: o.NumElements(), Tag: o.OpaqueTag(), Attrs: o.Attrs()})
		}
		return nil
	})
}
