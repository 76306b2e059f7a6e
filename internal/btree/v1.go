// Package btree walks the B-trees HDF5 uses to index group members and
// dataset chunks.
//
// Version 1 trees ("TREE") index both the symbol tables of old-style
// groups and the chunks of datasets written by older libraries. Version 2
// trees ("BTHD") index chunks of datasets with more than one unlimited
// dimension. Only the records are returned; the trees are never modified.
package btree

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/heap"
)

var ErrCorrupt = errors.New("btree: corrupt node")

// v1 node kinds
const (
	kindGroup = 0
	kindChunk = 1
)

// walkV1 visits the leaf entries of the version 1 tree rooted at addr in
// key order. Each visit gets the entry's left key and child address.
func walkV1(r *binary.Reader, addr uint64, kind uint8, keySize int, visit func(key []byte, child uint64) error) error {
	seen := map[uint64]bool{}
	var walk func(addr uint64, depth int) error
	walk = func(addr uint64, depth int) error {
		if seen[addr] {
			return fmt.Errorf("%w: node %d reached twice", ErrCorrupt, addr)
		}
		seen[addr] = true

		nr := r.At(int64(addr))
		head, err := nr.ReadBytes(8)
		if err != nil {
			return fmt.Errorf("reading B-tree node at %d: %w", addr, err)
		}
		if string(head[:4]) != "TREE" {
			return fmt.Errorf("%w: bad signature %q at %d", ErrCorrupt, head[:4], addr)
		}
		if head[4] != kind {
			return fmt.Errorf("%w: node at %d has type %d, want %d", ErrCorrupt, addr, head[4], kind)
		}
		level := int(head[5])
		if depth >= 0 && level != depth {
			return fmt.Errorf("%w: node at %d has level %d, want %d", ErrCorrupt, addr, level, depth)
		}
		used := int(head[6]) | int(head[7])<<8
		nr.Skip(2 * int64(nr.OffsetSize())) // siblings

		type entry struct {
			key   []byte
			child uint64
		}
		entries := make([]entry, used)
		for i := range entries {
			if entries[i].key, err = nr.ReadBytes(keySize); err != nil {
				return err
			}
			if entries[i].child, err = nr.ReadOffset(); err != nil {
				return err
			}
		}

		for _, e := range entries {
			if level == 0 {
				err = visit(e.key, e.child)
			} else {
				err = walk(e.child, level-1)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	return walk(addr, -1)
}

// GroupEntry is one member of an old-style group.
type GroupEntry struct {
	Name          string
	ObjectAddress uint64

	// Target is the path a soft link points at; empty for hard links.
	Target string
}

// symbol table entry cache types
const cacheSoftLink = 2

// ReadGroupEntries lists the members of the symbol table whose B-tree is
// at addr. Names are looked up in names, the group's local heap.
func ReadGroupEntries(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	var out []GroupEntry
	err := walkV1(r, addr, kindGroup, r.LengthSize(), func(_ []byte, snod uint64) error {
		entries, err := readSymbolNode(r, snod, names)
		if err != nil {
			return fmt.Errorf("symbol table node at %d: %w", snod, err)
		}
		out = append(out, entries...)
		return nil
	})
	return out, err
}

// readSymbolNode decodes an "SNOD" block:
//
//	"SNOD", version 1, reserved, symbol count (2), then entries of
//	name offset (O), header address (O), cache type (4), reserved (4),
//	scratch pad (16)
func readSymbolNode(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	if string(head[:4]) != "SNOD" {
		return nil, fmt.Errorf("%w: bad signature %q", ErrCorrupt, head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("unsupported symbol table node version %d", head[4])
	}
	count := int(head[6]) | int(head[7])<<8

	out := make([]GroupEntry, 0, count)
	for i := 0; i < count; i++ {
		nameOff, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		obj, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		cache, err := nr.ReadUint32()
		if err != nil {
			return nil, err
		}
		nr.Skip(4)
		scratch, err := nr.ReadBytes(16)
		if err != nil {
			return nil, err
		}

		e := GroupEntry{Name: names.Name(nameOff), ObjectAddress: obj}
		if e.Name == "" {
			continue
		}
		if cache == cacheSoftLink {
			off := uint64(scratch[0]) | uint64(scratch[1])<<8 | uint64(scratch[2])<<16 | uint64(scratch[3])<<24
			e.Target = names.Name(off)
			e.ObjectAddress = 0
		}
		out = append(out, e)
	}
	return out, nil
}

// ChunkEntry locates one stored chunk of a dataset.
type ChunkEntry struct {
	// Offset is the dataset coordinate of the chunk's first element.
	Offset     []uint64
	Size       uint32
	FilterMask uint32
	Address    uint64
}

// ReadChunkIndex lists the allocated chunks of a rank-dimensional dataset
// indexed by the version 1 tree at addr.
//
// Chunk keys are the stored size (4), filter mask (4) and rank+1 element
// offsets (8 each); the last offset is always zero.
func ReadChunkIndex(r *binary.Reader, addr uint64, rank int) ([]ChunkEntry, error) {
	var out []ChunkEntry
	err := walkV1(r, addr, kindChunk, 8+8*(rank+1), func(key []byte, child uint64) error {
		if r.IsUndefinedOffset(child) {
			return nil
		}
		e := ChunkEntry{
			Size:       le32(key),
			FilterMask: le32(key[4:]),
			Address:    child,
			Offset:     make([]uint64, rank),
		}
		if e.Size == 0 {
			return nil
		}
		for d := range e.Offset {
			e.Offset[d] = le64(key[8+8*d:])
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	return uint64(le32(b)) | uint64(le32(b[4:]))<<32
}
