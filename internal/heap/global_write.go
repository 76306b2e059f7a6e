package heap

import (
	"encoding/binary"

	h5bin "github.com/robert-malhotra/go-h5j/internal/binary"
)

// GlobalHeapWriter collects objects and writes them as a single global heap
// collection.
type GlobalHeapWriter struct {
	w         *h5bin.Writer
	allocator func(size int64) uint64
	objects   [][]byte
}

// NewGlobalHeapWriter creates a new global heap writer.
func NewGlobalHeapWriter(w *h5bin.Writer, allocator func(size int64) uint64) *GlobalHeapWriter {
	return &GlobalHeapWriter{w: w, allocator: allocator}
}

// AddObject queues an object and returns its 1-based index.
func (ghw *GlobalHeapWriter) AddObject(data []byte) uint16 {
	ghw.objects = append(ghw.objects, data)
	return uint16(len(ghw.objects))
}

// AddString queues s without a terminator; the vlen reference carries the
// length.
func (ghw *GlobalHeapWriter) AddString(s string) uint16 {
	return ghw.AddObject([]byte(s))
}

// Len returns the number of queued objects.
func (ghw *GlobalHeapWriter) Len() int {
	return len(ghw.objects)
}

// Write writes the collection and returns its address together with the
// heap ID of each object, in the order they were added.
func (ghw *GlobalHeapWriter) Write() (uint64, []GlobalHeapID, error) {
	if len(ghw.objects) == 0 {
		return 0, nil, nil
	}

	lengthSize := ghw.w.LengthSize()
	size := 4 + 1 + 3 + lengthSize
	for _, obj := range ghw.objects {
		size += 2 + 2 + 4 + lengthSize + pad8(len(obj))
	}
	size += 2 // free-space object index 0
	// HDF5 requires collections of at least 4096 bytes.
	if size < minCollectionSize {
		size = minCollectionSize
	}
	size = pad8(size)

	buf := make([]byte, size)
	pos := copy(buf, "GCOL")
	buf[pos] = 1
	pos += 4
	putUint(buf[pos:], uint64(size), lengthSize)
	pos += lengthSize

	addr := ghw.allocator(int64(size))
	ids := make([]GlobalHeapID, len(ghw.objects))
	for i, obj := range ghw.objects {
		index := uint16(i + 1)
		binary.LittleEndian.PutUint16(buf[pos:], index)
		binary.LittleEndian.PutUint16(buf[pos+2:], 1) // reference count
		pos += 8
		putUint(buf[pos:], uint64(len(obj)), lengthSize)
		pos += lengthSize
		copy(buf[pos:], obj)
		pos += pad8(len(obj))

		ids[i] = GlobalHeapID{CollectionAddress: addr, ObjectIndex: uint32(index)}
	}

	// The remainder is the free-space object: index 0 and its size.
	if rest := size - pos; rest >= 8+lengthSize {
		pos += 8
		putUint(buf[pos:], uint64(rest), lengthSize)
	}

	if err := ghw.w.At(int64(addr)).WriteBytes(buf); err != nil {
		return 0, nil, err
	}
	return addr, ids, nil
}

const minCollectionSize = 4096

func pad8(n int) int {
	return (n + 7) &^ 7
}

func putUint(b []byte, v uint64, size int) {
	for i := 0; i < size; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
