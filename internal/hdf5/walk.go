package hdf5

import (
	"errors"
	"path"
)

// SkipGroup returned by a WalkFunc for a group skips its members.
var SkipGroup = errors.New("hdf5: skip group")

// WalkFunc is called by Walk for every object. obj is a *Group or a
// *Dataset; when the object cannot be opened, obj is nil and err says why.
// A non-nil result other than SkipGroup stops the walk and is returned.
type WalkFunc func(path string, obj any, err error) error

// Walk visits g and everything below it, depth first in member order. A
// group reached a second time, through a hard or soft link, is reported
// but not descended into again.
func Walk(g *Group, fn WalkFunc) error {
	return walk(g, fn, map[uint64]bool{})
}

func walk(g *Group, fn WalkFunc, seen map[uint64]bool) error {
	if err := fn(g.path, g, nil); err != nil {
		if errors.Is(err, SkipGroup) {
			return nil
		}
		return err
	}
	if seen[g.addr] {
		return nil
	}
	seen[g.addr] = true

	names, err := g.Members()
	if err != nil {
		return err
	}
	for _, name := range names {
		obj, err := g.open(name)
		if err != nil {
			err = fn(path.Join(g.path, name), nil, err)
		} else if sub, ok := obj.(*Group); ok {
			err = walk(sub, fn, seen)
		} else {
			err = fn(obj.Path(), obj, nil)
		}
		if err != nil && !errors.Is(err, SkipGroup) {
			return err
		}
	}
	return nil
}
