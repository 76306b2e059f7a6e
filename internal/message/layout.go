package message

// LayoutClass is how a dataset's raw data is stored.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndexType selects the structure indexing a version 4 chunked layout.
type ChunkIndexType uint8

const (
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// FixedArrayPageBits is written for fixed array indexes and must agree with
// the page size of the index the layout package writes.
const FixedArrayPageBits = 10

// DataLayout locates a dataset's raw data.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	// Contiguous storage.
	Address uint64
	Size    uint64

	// Chunked storage. ChunkDims has one entry per dataspace dimension
	// followed by the element size in bytes.
	ChunkDims          []uint32
	ChunkIndexAddr     uint64
	ChunkIndexType     ChunkIndexType
	ChunkFlags         uint8
	DimensionSizeBytes uint8

	// Single chunk index with filters.
	FilteredChunkSize uint64
	FilterMask        uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

func decodeDataLayout(c *cursor) *DataLayout {
	l := &DataLayout{Version: c.u8()}
	switch l.Version {
	case 1, 2:
		decodeLayoutV1(c, l)
	case 3, 4:
		l.Class = LayoutClass(c.u8())
		switch l.Class {
		case LayoutCompact:
			l.CompactData = c.clone(int(c.u16()))
		case LayoutContiguous:
			l.Address = c.addr()
			l.Size = c.length()
		case LayoutChunked:
			if l.Version == 3 {
				rank := int(c.u8())
				l.ChunkIndexAddr = c.addr()
				l.ChunkDims = make([]uint32, rank)
				for i := range l.ChunkDims {
					l.ChunkDims[i] = c.u32()
				}
				l.DimensionSizeBytes = 4
				break
			}
			decodeChunkedV4(c, l)
		case LayoutVirtual:
			c.fail("virtual datasets are not supported")
		default:
			c.fail("unknown layout class %d", l.Class)
		}
	default:
		c.fail("unsupported version %d", l.Version)
	}
	return l
}

// decodeLayoutV1 reads the version 1 and 2 encodings, which store chunk
// and contiguous sizes as a dimension list.
func decodeLayoutV1(c *cursor, l *DataLayout) {
	rank := int(c.u8())
	l.Class = LayoutClass(c.u8())
	c.skip(5)
	if l.Class != LayoutCompact {
		l.Address = c.addr()
	}
	dims := make([]uint32, rank)
	size := uint64(1)
	for i := range dims {
		dims[i] = c.u32()
		size *= uint64(dims[i])
	}
	switch l.Class {
	case LayoutChunked:
		l.ChunkIndexAddr = l.Address
		l.Address = 0
		l.ChunkDims = dims
		l.DimensionSizeBytes = 4
		c.u32() // element size, also the last dimension
	case LayoutContiguous:
		l.Size = size
	case LayoutCompact:
		l.CompactData = c.clone(int(c.u32()))
	}
}

func decodeChunkedV4(c *cursor, l *DataLayout) {
	l.ChunkFlags = c.u8()
	rank := int(c.u8())
	l.DimensionSizeBytes = c.u8()
	l.ChunkDims = make([]uint32, rank)
	for i := range l.ChunkDims {
		l.ChunkDims[i] = uint32(c.uint(int(l.DimensionSizeBytes)))
	}
	l.ChunkIndexType = ChunkIndexType(c.u8())
	switch l.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if l.ChunkFlags&0x02 != 0 {
			l.FilteredChunkSize = c.length()
			l.FilterMask = c.u32()
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		c.skip(1)
	case ChunkIndexExtensibleArray:
		c.skip(5)
	case ChunkIndexBTreeV2:
		c.skip(6)
	default:
		c.fail("unknown chunk index type %d", l.ChunkIndexType)
	}
	l.ChunkIndexAddr = c.addr()
}

// encode writes version 3 for compact and contiguous storage and version
// 4 for chunked storage.
func (m *DataLayout) encode(e *encoder) {
	version := uint8(3)
	if m.Class == LayoutChunked {
		version = 4
	}
	e.u8(version)
	e.u8(uint8(m.Class))

	switch m.Class {
	case LayoutCompact:
		e.u16(uint16(len(m.CompactData)))
		e.bytes(m.CompactData)
	case LayoutContiguous:
		e.addr(m.Address)
		e.length(m.Size)
	case LayoutChunked:
		width := int(m.DimensionSizeBytes)
		if width == 0 {
			width = 4
		}
		e.u8(m.ChunkFlags)
		e.u8(uint8(len(m.ChunkDims)))
		e.u8(uint8(width))
		for _, d := range m.ChunkDims {
			e.uint(uint64(d), width)
		}
		e.u8(uint8(m.ChunkIndexType))
		switch m.ChunkIndexType {
		case ChunkIndexSingleChunk:
			if m.ChunkFlags&0x02 != 0 {
				e.length(m.FilteredChunkSize)
				e.u32(m.FilterMask)
			}
		case ChunkIndexFixedArray:
			e.u8(FixedArrayPageBits)
		}
		e.addr(m.ChunkIndexAddr)
	}
}

func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewChunkedLayout returns a version 4 chunked layout. chunkDims are the
// chunk extents of the dataspace; the element size is appended as the
// final dimension. ChunkIndexAddr is filled in once the index is written.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32, index ChunkIndexType) *DataLayout {
	dims := append(append([]uint32(nil), chunkDims...), elementSize)
	var widest uint32
	for _, d := range dims {
		widest = max(widest, d)
	}
	return &DataLayout{
		Version:            4,
		Class:              LayoutChunked,
		ChunkDims:          dims,
		ChunkIndexType:     index,
		DimensionSizeBytes: uint8(offsetWidth(widest)),
	}
}
