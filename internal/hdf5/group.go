package hdf5

import (
	"fmt"
	"path"
	"strings"

	"github.com/robert-malhotra/go-h5j/internal/btree"
	"github.com/robert-malhotra/go-h5j/internal/heap"
	"github.com/robert-malhotra/go-h5j/internal/message"
	"github.com/robert-malhotra/go-h5j/internal/object"
)

// Group is a container of named links to other objects. Groups written
// with link messages and old-style groups indexed by a symbol table B-tree
// are both read; dense link storage is not.
type Group struct {
	file   *File
	path   string
	header *object.Header // nil for groups created through a writable File
	addr   uint64

	// Write side: the header's size and everything it holds.
	headerSize   uint64
	pendingLinks []*message.Link
	pendingAttrs []*message.Attribute
}

// link is one named member of a group. Exactly one of addr, target and
// external is meaningful.
type link struct {
	name     string
	addr     uint64
	target   string // soft link path
	external string
}

func (f *File) groupAt(addr uint64, p string) (*Group, error) {
	h, err := object.Read(f.r, addr)
	if err != nil {
		return nil, err
	}
	return &Group{file: f, path: p, header: h, addr: addr}, nil
}

// Name returns the last element of the group's path.
func (g *Group) Name() string { return path.Base(g.path) }

func (g *Group) Path() string { return g.path }

// Members returns the names of the group's members in storage order: link
// message order, or name order for symbol table groups.
func (g *Group) Members() ([]string, error) {
	links, err := g.links()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.name
	}
	return names, nil
}

func (g *Group) links() ([]link, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	if g.header == nil {
		return nil, fmt.Errorf("group %s is being written: %w", g.path, ErrUnsupported)
	}

	var links []link
	for _, m := range g.header.FindAll(message.TypeLink) {
		l := m.(*message.Link)
		switch {
		case l.IsHard():
			links = append(links, link{name: l.Name, addr: l.ObjectAddress})
		case l.IsSoft():
			links = append(links, link{name: l.Name, target: l.SoftLinkValue})
		default:
			links = append(links, link{name: l.Name, external: l.ExternalFile + ":" + l.ExternalPath})
		}
	}
	if len(links) > 0 {
		return links, nil
	}

	if li, ok := g.header.Find(message.TypeLinkInfo).(*message.LinkInfo); ok &&
		!g.file.r.IsUndefinedOffset(li.FractalHeapAddr) {
		return nil, fmt.Errorf("group %s: dense link storage: %w", g.path, ErrUnsupported)
	}

	st := g.symbolTable()
	if st == nil {
		return nil, nil
	}
	names, err := heap.ReadLocalHeap(g.file.r, st.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.path, err)
	}
	entries, err := btree.ReadGroupEntries(g.file.r, st.BTreeAddress, names)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.path, err)
	}
	for _, e := range entries {
		links = append(links, link{name: e.Name, addr: e.ObjectAddress, target: e.Target})
	}
	return links, nil
}

// symbolTable returns the symbol table of an old-style group. The root
// group may have it only cached in the superblock.
func (g *Group) symbolTable() *message.SymbolTable {
	if st, ok := g.header.Find(message.TypeSymbolTable).(*message.SymbolTable); ok {
		return st
	}
	if g.path == "/" && g.file.sb.RootGroupBTreeAddress != 0 {
		return &message.SymbolTable{
			BTreeAddress:     g.file.sb.RootGroupBTreeAddress,
			LocalHeapAddress: g.file.sb.RootGroupLocalHeapAddress,
		}
	}
	return nil
}

func (g *Group) child(name string) (link, error) {
	links, err := g.links()
	if err != nil {
		return link{}, err
	}
	for _, l := range links {
		if l.name == name {
			return l, nil
		}
	}
	return link{}, fmt.Errorf("%s: %w", path.Join(g.path, name), ErrNotFound)
}

// resolve follows p from g, or from the root when p is absolute, and
// returns the header of the object it names with the path it was reached
// by. hops counts the soft links followed so far.
func (g *Group) resolve(p string, hops int) (*object.Header, string, error) {
	cur := g
	if strings.HasPrefix(p, "/") {
		cur = g.file.root
	}
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return cur.header, cur.path, nil
	}

	last := len(parts) - 1
	for _, name := range parts[:last] {
		h, full, err := cur.step(name, hops)
		if err != nil {
			return nil, "", err
		}
		if isDataset(h) {
			return nil, "", fmt.Errorf("%s: %w", full, ErrNotGroup)
		}
		cur = &Group{file: g.file, path: full, header: h, addr: h.Address}
	}
	return cur.step(parts[last], hops)
}

// step reads the header of member name, following a soft link.
func (g *Group) step(name string, hops int) (*object.Header, string, error) {
	l, err := g.child(name)
	if err != nil {
		return nil, "", err
	}
	full := path.Join(g.path, name)
	switch {
	case l.external != "":
		return nil, "", fmt.Errorf("%s: external link to %s: %w", full, l.external, ErrUnsupported)
	case l.target != "":
		if hops >= MaxLinkDepth {
			return nil, "", fmt.Errorf("%s: %w", full, ErrLinkDepth)
		}
		h, _, err := g.resolve(l.target, hops+1)
		return h, full, err
	}
	h, err := object.Read(g.file.r, l.addr)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", full, err)
	}
	return h, full, nil
}

func isDataset(h *object.Header) bool {
	return h.DataLayout() != nil
}

// open returns the group or dataset at p.
func (g *Group) open(p string) (AttributeHolder, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	h, full, err := g.resolve(p, 0)
	if err != nil {
		return nil, err
	}
	if isDataset(h) {
		ds, err := newDataset(g.file, full, h)
		if err != nil {
			return nil, err
		}
		return ds, nil
	}
	return &Group{file: g.file, path: full, header: h, addr: h.Address}, nil
}

// OpenGroup opens the group at p, relative to g unless absolute.
func (g *Group) OpenGroup(p string) (*Group, error) {
	obj, err := g.open(p)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%s: %w", obj.Path(), ErrNotGroup)
	}
	return sub, nil
}

// OpenDataset opens the dataset at p, relative to g unless absolute.
func (g *Group) OpenDataset(p string) (*Dataset, error) {
	obj, err := g.open(p)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%s: %w", obj.Path(), ErrNotDataset)
	}
	return ds, nil
}

// Attrs returns the group's attribute names in header order.
func (g *Group) Attrs() []string {
	if g.header == nil {
		return nil
	}
	return attrNames(g.header)
}

// Attr returns the named attribute, or nil.
func (g *Group) Attr(name string) *Attribute {
	if g.header == nil {
		return nil
	}
	return findAttr(g.header, name, g.file.r)
}
