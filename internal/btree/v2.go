package btree

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-h5j/internal/binary"
)

// v2 record types for chunk indexes
const (
	TypeChunk         = 10
	TypeFilteredChunk = 11
)

// ErrChecksum is returned when a version 2 node fails its checksum.
var ErrChecksum = fmt.Errorf("%w: checksum mismatch", ErrCorrupt)

// v2Header is the "BTHD" block of a version 2 tree.
type v2Header struct {
	Type       uint8
	NodeSize   uint32
	RecordSize uint16
	Depth      uint16
	Root       uint64
	RootCount  uint64
	Total      uint64

	// per-depth node capacity, index 0 being the leaves
	levels   []v2Level
	countLen int
}

type v2Level struct {
	maxRecords uint64
	cumRecords uint64
	cumLen     int
}

// encLen is the number of bytes used to store counts up to n.
func encLen(n uint64) int {
	if n == 0 {
		return 1
	}
	return (bits.Len64(n)-1)/8 + 1
}

// layoutLevels derives the width of the child pointer fields, which
// depend on how many records fit in a node at each depth.
func (h *v2Header) layoutLevels(offsetSize int) error {
	const overhead = 10 // signature, version, type, checksum
	if h.RecordSize == 0 || h.NodeSize <= overhead {
		return fmt.Errorf("%w: node size %d, record size %d", ErrCorrupt, h.NodeSize, h.RecordSize)
	}
	leaf := uint64(h.NodeSize-overhead) / uint64(h.RecordSize)
	h.levels = []v2Level{{maxRecords: leaf, cumRecords: leaf}}
	h.countLen = encLen(leaf)
	for d := 1; d <= int(h.Depth); d++ {
		ptr := offsetSize + h.countLen + h.levels[d-1].cumLen
		if int(h.NodeSize) <= overhead+ptr {
			return fmt.Errorf("%w: node size %d too small for depth %d", ErrCorrupt, h.NodeSize, h.Depth)
		}
		n := uint64(int(h.NodeSize)-(overhead+ptr)) / uint64(int(h.RecordSize)+ptr)
		cum := (n+1)*h.levels[d-1].cumRecords + n
		h.levels = append(h.levels, v2Level{maxRecords: n, cumRecords: cum, cumLen: encLen(cum)})
	}
	return nil
}

// readV2Header reads and verifies the tree header at addr.
//
//	"BTHD", version 0, type, node size (4), record size (2), depth (2),
//	split and merge percents, root address (O), root record count (2),
//	total records (L), checksum
func readV2Header(r *binary.Reader, addr uint64) (*v2Header, error) {
	size := 4 + 1 + 1 + 4 + 2 + 2 + 2 + r.OffsetSize() + 2 + r.LengthSize()
	buf, err := readChecked(r, addr, size, "BTHD")
	if err != nil {
		return nil, err
	}
	if buf[4] != 0 {
		return nil, fmt.Errorf("unsupported B-tree v2 version %d", buf[4])
	}

	br := binary.NewReader(bytes.NewReader(buf), r.Config()).At(5)
	h := &v2Header{}
	h.Type, _ = br.ReadUint8()
	h.NodeSize, _ = br.ReadUint32()
	h.RecordSize, _ = br.ReadUint16()
	h.Depth, _ = br.ReadUint16()
	br.Skip(2)
	h.Root, _ = br.ReadOffset()
	count, _ := br.ReadUint16()
	h.RootCount = uint64(count)
	h.Total, err = br.ReadLength()
	if err != nil {
		return nil, err
	}
	return h, h.layoutLevels(r.OffsetSize())
}

// readChecked reads size bytes at addr plus the trailing lookup3 checksum,
// verifies both the signature and checksum, and returns the bytes.
func readChecked(r *binary.Reader, addr uint64, size int, sig string) ([]byte, error) {
	buf, err := r.At(int64(addr)).ReadBytes(size + 4)
	if err != nil {
		return nil, fmt.Errorf("reading %s at %d: %w", sig, addr, err)
	}
	if string(buf[:4]) != sig {
		return nil, fmt.Errorf("%w: want %s at %d, found %q", ErrCorrupt, sig, addr, buf[:4])
	}
	if le32(buf[size:]) != binary.Lookup3Checksum(buf[:size]) {
		return nil, fmt.Errorf("%s at %d: %w", sig, addr, ErrChecksum)
	}
	return buf[:size], nil
}

// walkV2 visits every record of the tree in key order.
func walkV2(r *binary.Reader, h *v2Header, visit func(rec []byte) error) error {
	rs := int(h.RecordSize)
	var walk func(addr uint64, count uint64, depth int) error
	walk = func(addr uint64, count uint64, depth int) error {
		if count > h.levels[depth].maxRecords {
			return fmt.Errorf("%w: node at %d claims %d records", ErrCorrupt, addr, count)
		}
		n := int(count)
		if depth == 0 {
			buf, err := readChecked(r, addr, 6+n*rs, "BTLF")
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				if err := visit(buf[6+i*rs : 6+(i+1)*rs]); err != nil {
					return err
				}
			}
			return nil
		}

		ptrLen := r.OffsetSize() + h.countLen
		if depth > 1 {
			ptrLen += h.levels[depth-1].cumLen
		}
		buf, err := readChecked(r, addr, 6+n*rs+(n+1)*ptrLen, "BTIN")
		if err != nil {
			return err
		}
		pr := binary.NewReader(bytes.NewReader(buf), r.Config()).At(int64(6 + n*rs))
		for i := 0; i <= n; i++ {
			child, _ := pr.ReadOffset()
			childCount, err := pr.ReadUintN(h.countLen)
			if err != nil {
				return err
			}
			if depth > 1 {
				pr.Skip(int64(h.levels[depth-1].cumLen))
			}
			if err := walk(child, childCount, depth-1); err != nil {
				return err
			}
			if i < n {
				if err := visit(buf[6+i*rs : 6+(i+1)*rs]); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if h.Total == 0 {
		return nil
	}
	return walk(h.Root, h.RootCount, int(h.Depth))
}

// ReadChunkIndexV2 lists the chunks indexed by the version 2 tree at addr.
// chunkDims gives the chunk shape; records store chunk coordinates
// scaled by it. Unfiltered records carry no size, so Size is left zero.
//
//	type 10: address (O), scaled offsets (8 each)
//	type 11: address (O), stored size (variable), filter mask (4),
//	         scaled offsets (8 each)
func ReadChunkIndexV2(r *binary.Reader, addr uint64, chunkDims []uint32) ([]ChunkEntry, error) {
	h, err := readV2Header(r, addr)
	if err != nil {
		return nil, err
	}
	rank, o := len(chunkDims), r.OffsetSize()

	sizeLen := 0
	switch h.Type {
	case TypeChunk:
		if int(h.RecordSize) != o+8*rank {
			return nil, fmt.Errorf("%w: record size %d for rank %d", ErrCorrupt, h.RecordSize, rank)
		}
	case TypeFilteredChunk:
		sizeLen = int(h.RecordSize) - o - 4 - 8*rank
		if sizeLen < 1 || sizeLen > 8 {
			return nil, fmt.Errorf("%w: record size %d for rank %d", ErrCorrupt, h.RecordSize, rank)
		}
	default:
		return nil, fmt.Errorf("B-tree v2 record type %d is not a chunk index", h.Type)
	}

	out := make([]ChunkEntry, 0, min(h.Total, 1024))
	err = walkV2(r, h, func(rec []byte) error {
		rr := binary.NewReader(bytes.NewReader(rec), r.Config())
		e := ChunkEntry{Offset: make([]uint64, rank)}
		e.Address, _ = rr.ReadOffset()
		if h.Type == TypeFilteredChunk {
			size, _ := rr.ReadUintN(sizeLen)
			e.Size = uint32(size)
			e.FilterMask, _ = rr.ReadUint32()
		}
		for d := range e.Offset {
			scaled, err := rr.ReadUint64()
			if err != nil {
				return err
			}
			e.Offset[d] = scaled * uint64(chunkDims[d])
		}
		if !r.IsUndefinedOffset(e.Address) {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}
