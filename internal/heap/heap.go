// Package heap reads the two HDF5 heaps the engine meets: local heaps,
// which hold the link names of symbol-table groups, and global heap
// collections, which hold variable-length data such as vlen strings.
package heap

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/binary"
)

var ErrNoObject = errors.New("heap: no such object")

// LocalHeap is the data segment of a local heap.
type LocalHeap struct {
	DataAddress uint64
	data        []byte
}

// ReadLocalHeap reads the local heap whose header is at addr.
//
//	"HEAP", version 0, reserved (3), data size (L), free list offset (L),
//	data address (O)
func ReadLocalHeap(r *binary.Reader, addr uint64) (*LocalHeap, error) {
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}
	if string(head[:4]) != "HEAP" {
		return nil, fmt.Errorf("local heap at %d: bad signature %q", addr, head[:4])
	}
	if head[4] != 0 {
		return nil, fmt.Errorf("local heap at %d: unsupported version %d", addr, head[4])
	}

	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	hr.Skip(int64(hr.LengthSize())) // free list
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}

	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading local heap data: %w", err)
	}
	return &LocalHeap{DataAddress: dataAddr, data: data}, nil
}

// Name returns the NUL-terminated string at offset, or "" when offset is
// outside the heap.
func (h *LocalHeap) Name(offset uint64) string {
	if offset >= uint64(len(h.data)) {
		return ""
	}
	s := h.data[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

// GlobalHeapID addresses one object of a global heap collection.
type GlobalHeapID struct {
	CollectionAddress uint64
	ObjectIndex       uint32
}

// ParseGlobalHeapID decodes a heap ID: the collection address followed by
// a 4-byte object index.
func ParseGlobalHeapID(b []byte, cfg binary.Config) (GlobalHeapID, error) {
	n := cfg.OffsetSize
	if len(b) < n+4 {
		return GlobalHeapID{}, fmt.Errorf("heap ID needs %d bytes, have %d", n+4, len(b))
	}
	r := binary.NewReader(bytes.NewReader(b), cfg)
	addr, _ := r.ReadOffset()
	index, _ := r.ReadUint32()
	return GlobalHeapID{CollectionAddress: addr, ObjectIndex: index}, nil
}

// GlobalHeap is a decoded global heap collection.
type GlobalHeap struct {
	Size    uint64
	objects map[uint16][]byte
}

// ReadGlobalHeap reads the collection at addr.
//
//	"GCOL", version 1, reserved (3), collection size (L), then objects:
//	index (2), reference count (2), reserved (4), size (L), data padded
//	to 8 bytes. Index 0 marks the free space that ends the collection.
func ReadGlobalHeap(r *binary.Reader, addr uint64) (*GlobalHeap, error) {
	if addr == 0 || r.IsUndefinedOffset(addr) {
		return nil, fmt.Errorf("global heap: invalid address %#x", addr)
	}
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading global heap: %w", err)
	}
	if string(head[:4]) != "GCOL" {
		return nil, fmt.Errorf("global heap at %d: bad signature %q", addr, head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("global heap at %d: unsupported version %d", addr, head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}

	gh := &GlobalHeap{Size: size, objects: make(map[uint16][]byte)}
	end := int64(addr + size)
	objHeader := int64(8 + hr.LengthSize())
	for hr.Pos()+objHeader <= end {
		index, err := hr.ReadUint16()
		if err != nil || index == 0 {
			break
		}
		hr.Skip(6) // reference count, reserved
		n, err := hr.ReadLength()
		if err != nil {
			return nil, err
		}
		if hr.Pos()+int64(n) > end {
			return nil, fmt.Errorf("global heap at %d: object %d overruns collection", addr, index)
		}
		data, err := hr.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		gh.objects[index] = data
		hr.Skip(int64(pad8(int(n)) - int(n)))
	}
	return gh, nil
}

// Object returns a copy of object index.
func (h *GlobalHeap) Object(index uint16) ([]byte, error) {
	data, ok := h.objects[index]
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrNoObject, index)
	}
	return bytes.Clone(data), nil
}

// Text returns object index as a string, cut at the first NUL.
func (h *GlobalHeap) Text(index uint16) (string, error) {
	data, ok := h.objects[index]
	if !ok {
		return "", fmt.Errorf("%w: index %d", ErrNoObject, index)
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}
