package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

// filteredSizeLen is the width of the stored size in filtered fixed array
// entries.
const filteredSizeLen = 4

// ChunkWriter stores the chunks of a new dataset and their fixed array
// index. Space comes from allocate, which returns the address of a fresh
// block of the requested size.
type ChunkWriter struct {
	w         *binary.Writer
	chunkDims []uint32
	elemSize  uint32
	allocate  func(size int64) uint64
}

func NewChunkWriter(w *binary.Writer, chunkDims []uint32, elemSize uint32, allocate func(size int64) uint64) *ChunkWriter {
	return &ChunkWriter{w: w, chunkDims: chunkDims, elemSize: elemSize, allocate: allocate}
}

// ChunkSize is the size of one unfiltered chunk.
func (cw *ChunkWriter) ChunkSize() uint64 {
	n := uint64(cw.elemSize)
	for _, d := range cw.chunkDims {
		n *= uint64(d)
	}
	return n
}

// WriteChunks stores each chunk in its own block and returns the
// addresses in order.
func (cw *ChunkWriter) WriteChunks(chunks [][]byte) ([]uint64, error) {
	addrs := make([]uint64, len(chunks))
	for i, data := range chunks {
		addrs[i] = cw.allocate(int64(len(data)))
		if err := cw.w.At(int64(addrs[i])).WriteBytes(data); err != nil {
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}
	}
	return addrs, nil
}

// WriteFixedArrayIndex writes a fixed array over addrs and returns the
// header address, or the undefined address when there are no chunks.
// Non-nil sizes mark the chunks as filtered; each entry then records the
// stored size and an empty filter mask. Arrays longer than one page are
// paged, with every page marked initialized.
func (cw *ChunkWriter) WriteFixedArrayIndex(addrs []uint64, sizes []uint32) (uint64, error) {
	if len(addrs) == 0 {
		return cw.w.UndefinedOffset(), nil
	}
	filtered := sizes != nil
	if filtered && len(sizes) != len(addrs) {
		return 0, fmt.Errorf("chunk sizes: got %d, want %d", len(sizes), len(addrs))
	}

	o, l := cw.w.OffsetSize(), cw.w.LengthSize()
	client, entryLen := uint8(clientChunk), o
	if filtered {
		client, entryLen = clientFilteredChunk, o+filteredSizeLen+4
	}

	hdrLen := 8 + l + o + 4
	hdrAddr := cw.allocate(int64(hdrLen))

	entries := make([]byte, 0, len(addrs)*entryLen)
	for i, a := range addrs {
		entries = appendLE(entries, a, o)
		if filtered {
			entries = appendLE(entries, uint64(sizes[i]), filteredSizeLen)
			entries = appendLE(entries, 0, 4)
		}
	}

	dblk := appendLE([]byte{'F', 'A', 'D', 'B', 0, client}, hdrAddr, o)
	pageLen := 1 << message.FixedArrayPageBits
	if len(addrs) <= pageLen {
		dblk = withChecksum(append(dblk, entries...))
	} else {
		pages := (len(addrs) + pageLen - 1) / pageLen
		bitmap := make([]byte, (pages+7)/8)
		for p := 0; p < pages; p++ {
			bitmap[p/8] |= 0x80 >> (p % 8)
		}
		dblk = withChecksum(append(dblk, bitmap...))
		for start := 0; start < len(entries); start += pageLen * entryLen {
			end := min(start+pageLen*entryLen, len(entries))
			dblk = append(dblk, withChecksum(append([]byte(nil), entries[start:end]...))...)
		}
	}
	dblkAddr := cw.allocate(int64(len(dblk)))
	if err := cw.w.At(int64(dblkAddr)).WriteBytes(dblk); err != nil {
		return 0, err
	}

	hdr := []byte{'F', 'A', 'H', 'D', 0, client, uint8(entryLen), message.FixedArrayPageBits}
	hdr = appendLE(hdr, uint64(len(addrs)), l)
	hdr = withChecksum(appendLE(hdr, dblkAddr, o))
	if err := cw.w.At(int64(hdrAddr)).WriteBytes(hdr); err != nil {
		return 0, err
	}
	return hdrAddr, nil
}

func appendLE(b []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

func withChecksum(b []byte) []byte {
	return appendLE(b, uint64(binary.Lookup3Checksum(b)), 4)
}

// SplitIntoChunks cuts one-dimensional data into chunks of chunkElems
// elements. The last chunk is zero padded to full size, as HDF5 stores
// edge chunks whole.
func SplitIntoChunks(data []byte, chunkElems, elemSize uint32) [][]byte {
	size := int(chunkElems) * int(elemSize)
	if size <= 0 {
		return [][]byte{data}
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for off := 0; off < len(data); off += size {
		if off+size > len(data) {
			last := make([]byte, size)
			copy(last, data[off:])
			chunks = append(chunks, last)
			break
		}
		chunks = append(chunks, data[off:off+size])
	}
	return chunks
}
