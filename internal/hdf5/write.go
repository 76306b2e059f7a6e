package hdf5

import (
	"encoding/binary"
	"fmt"
	"os"
	"path"

	"github.com/robert-malhotra/go-h5j/internal/alloc"
	binpkg "github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/heap"
	"github.com/robert-malhotra/go-h5j/internal/message"
	"github.com/robert-malhotra/go-h5j/internal/object"
	"github.com/robert-malhotra/go-h5j/internal/superblock"
)

// Create creates a new file at path, truncating any existing one. Groups,
// datasets and attributes added to it are written immediately; Close
// writes the final superblock.
func Create(path string, opts ...FileOption) (*File, error) {
	o := defaultFileOptions()
	for _, opt := range opts {
		opt(o)
	}

	osf, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	sb := superblock.New()
	sb.OffsetSize, sb.LengthSize = uint8(o.offsetSize), uint8(o.lengthSize)

	f := &File{
		path: path,
		osf:  osf,
		sb:   sb,
		w: binpkg.NewWriter(osf, binpkg.Config{
			ByteOrder:  binary.LittleEndian,
			OffsetSize: o.offsetSize,
			LengthSize: o.lengthSize,
		}),
		alloc:  alloc.New(uint64(sb.Size())),
		groups: map[string]*Group{},
	}
	f.root = f.newGroup("/")
	if err := f.root.rewriteHeader(); err != nil {
		osf.Close()
		return nil, fmt.Errorf("%s: root group: %w", path, err)
	}
	if err := f.writeSuperblock(); err != nil {
		osf.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f *File) newGroup(p string) *Group {
	g := &Group{file: f, path: p}
	f.groups[p] = g
	return g
}

func (f *File) writeSuperblock() error {
	f.sb.EOFAddress = f.alloc.EOFAddr()
	return f.sb.Write(f.w.At(0))
}

func (f *File) flush() error {
	if err := f.validateAllocations(); err != nil {
		return err
	}
	if err := f.writeSuperblock(); err != nil {
		return err
	}
	return f.osf.Sync()
}

// AllocStats reports the space handed out while writing. It is zero for
// files opened for reading.
func (f *File) AllocStats() alloc.Stats {
	if f.alloc == nil {
		return alloc.Stats{}
	}
	return f.alloc.Stats()
}

func (f *File) validateAllocations() error {
	if err := f.alloc.Validate(); err != nil {
		return fmt.Errorf("hdf5: file space: %w", err)
	}
	return nil
}

func (f *File) allocate(size int64) uint64 {
	return f.alloc.Alloc(uint64(size))
}

func (f *File) writable() error {
	switch {
	case f.closed:
		return ErrClosed
	case f.w == nil:
		return ErrReadOnly
	}
	return nil
}

// CreateGroup adds an empty subgroup.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.file.writable(); err != nil {
		return nil, err
	}
	if err := g.checkNewName(name); err != nil {
		return nil, err
	}
	sub := g.file.newGroup(path.Join(g.path, name))
	if err := sub.rewriteHeader(); err != nil {
		return nil, err
	}
	if err := g.addLink(message.NewHardLink(name, sub.addr)); err != nil {
		return nil, err
	}
	return sub, nil
}

func (g *Group) checkNewName(name string) error {
	if name == "" || name == "." || name == ".." || path.Base(name) != name {
		return fmt.Errorf("%w: member name %q", ErrInvalidPath, name)
	}
	for _, l := range g.pendingLinks {
		if l.Name == name {
			return fmt.Errorf("%s: already exists", path.Join(g.path, name))
		}
	}
	return nil
}

// SetAttr sets an attribute from a Go number, string, or slice of either.
// Setting an existing name replaces the value in place.
func (g *Group) SetAttr(name string, value any) error {
	if err := g.file.writable(); err != nil {
		return err
	}
	a, err := createAttributeMessage(name, value)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", name, err)
	}
	return g.putAttr(a)
}

// SetVarStringAttr sets a variable-length string attribute. One value is
// stored as a scalar, several as a one-dimensional array. The strings
// themselves go into a new global heap collection.
func (g *Group) SetVarStringAttr(name string, values ...string) error {
	if err := g.file.writable(); err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("attribute %s: no values", name)
	}

	w := g.file.w
	gh := heap.NewGlobalHeapWriter(w, g.file.allocate)
	for _, s := range values {
		if s != "" {
			gh.AddString(s)
		}
	}
	addr, ids, err := gh.Write()
	if err != nil {
		return fmt.Errorf("attribute %s: %w", name, err)
	}

	// Each element is a sequence length, the collection address and the
	// object index. Empty strings are null references.
	o := w.OffsetSize()
	refSize := 4 + o + 4
	data := make([]byte, 0, refSize*len(values))
	for _, s := range values {
		if s == "" {
			data = append(data, make([]byte, refSize)...)
			continue
		}
		data = binary.LittleEndian.AppendUint32(data, uint32(len(s)))
		data = appendAddr(data, addr, o)
		data = binary.LittleEndian.AppendUint32(data, ids[0].ObjectIndex)
		ids = ids[1:]
	}

	dt := message.NewVarLenStringDatatype(message.CharsetUTF8)
	dt.Size = uint32(refSize)
	space := message.NewScalarDataspace()
	if len(values) > 1 {
		space = message.NewDataspace([]uint64{uint64(len(values))}, nil)
	}
	return g.putAttr(message.NewAttribute(name, dt, space, data))
}

func appendAddr(b []byte, v uint64, n int) []byte {
	for i := range n {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

func (g *Group) putAttr(a *message.Attribute) error {
	replaced := false
	for i, old := range g.pendingAttrs {
		if old.Name == a.Name {
			g.pendingAttrs[i], replaced = a, true
			break
		}
	}
	if !replaced {
		g.pendingAttrs = append(g.pendingAttrs, a)
	}
	return g.rewriteHeader()
}

func (g *Group) addLink(l *message.Link) error {
	g.pendingLinks = append(g.pendingLinks, l)
	return g.rewriteHeader()
}

// rewriteHeader writes the group's header at a new address and points the
// parent, or the superblock for the root, at it. Parents are rewritten in
// turn up to the root; the space of every old header is freed.
func (g *Group) rewriteHeader() error {
	f := g.file
	buf, err := object.Encode(object.GroupMessages(g.pendingLinks, g.pendingAttrs), f.w.Config(), object.MinGroupChunkSize)
	if err != nil {
		return fmt.Errorf("group %s: %w", g.path, err)
	}
	addr := f.allocate(int64(len(buf)))
	if err := f.w.At(int64(addr)).WriteBytes(buf); err != nil {
		return fmt.Errorf("group %s: %w", g.path, err)
	}

	old, oldSize := g.addr, g.headerSize
	g.addr, g.headerSize = addr, uint64(len(buf))
	if oldSize > 0 {
		if err := f.alloc.Free(old, oldSize); err != nil {
			return fmt.Errorf("group %s: %w", g.path, err)
		}
	}

	if g.path == "/" {
		f.sb.RootGroupAddress = addr
		return nil
	}
	if oldSize == 0 {
		// Not linked yet.
		return nil
	}
	parent := f.groups[path.Dir(g.path)]
	if parent == nil {
		return fmt.Errorf("group %s: parent not open for writing", g.path)
	}
	name := path.Base(g.path)
	for _, l := range parent.pendingLinks {
		if l.Name == name {
			l.ObjectAddress = addr
		}
	}
	return parent.rewriteHeader()
}
