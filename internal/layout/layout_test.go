package layout

import (
	"bytes"
	"errors"
	"testing"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/filter"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

const undef = ^uint64(0)

var cfg = binary.DefaultConfig()

type memFile struct{ buf []byte }

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	return copy(m.buf[off:], p), nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(m.buf).ReadAt(p, off)
}

func (m *memFile) put(addr int, parts ...[]byte) {
	m.WriteAt(bytes.Join(parts, nil), int64(addr))
}

func (m *memFile) reader() *binary.Reader { return binary.NewReader(m, cfg) }

func le(v uint64, n int) []byte { return appendLE(nil, v, n) }

func bump(start int64) func(int64) uint64 {
	next := start
	return func(n int64) uint64 {
		a := next
		next += n
		return uint64(a)
	}
}

func opaque(size uint32) *message.Datatype { return message.NewOpaqueDatatype(size, "") }

func TestCompactAndContiguous(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	compact, err := New(message.NewCompactLayout(data), nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := compact.Read()
	got[0] = 99
	if again, _ := compact.Read(); again[0] != 1 || compact.Class() != message.LayoutCompact {
		t.Error("compact Read must return a copy")
	}

	f := &memFile{}
	f.put(100, []byte("contiguous"))
	space := message.NewDataspace([]uint64{5}, nil)
	l := NewContiguous(message.NewContiguousLayout(100, 0), space, opaque(2), f.reader())
	if got, err := l.Read(); err != nil || string(got) != "contiguous" {
		t.Errorf("contiguous = %q, %v", got, err)
	}

	unallocated := NewContiguous(message.NewContiguousLayout(undef, 6), nil, nil, f.reader())
	if got, err := unallocated.Read(); err != nil || !bytes.Equal(got, make([]byte, 6)) {
		t.Errorf("unallocated = %v, %v", got, err)
	}

	if _, err := New(&message.DataLayout{Class: message.LayoutVirtual}, nil, nil, nil, nil); err == nil {
		t.Error("expected error for virtual layout")
	}
}

func TestFixedArrayRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name    string
		size    int
		chunk   uint32
		filters []message.FilterInfo
	}{
		{"plain", 1000, 64, nil},
		{"deflate", 1000, 64, []message.FilterInfo{
			{ID: message.FilterShuffle, ClientData: []uint32{1}},
			{ID: message.FilterDeflate, ClientData: []uint32{6}},
		}},
		{"zstd", 700, 100, []message.FilterInfo{{ID: message.FilterZstd}}},
		{"paged", 3001, 2, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data := make([]byte, tc.size)
			for i := range data {
				data[i] = byte(i * 7)
			}

			f := &memFile{}
			cw := NewChunkWriter(binary.NewWriter(f, cfg), []uint32{tc.chunk}, 1, bump(64))
			chunks := SplitIntoChunks(data, tc.chunk, 1)

			var fp *message.FilterPipeline
			var sizes []uint32
			if tc.filters != nil {
				fp = message.NewFilterPipeline(tc.filters...)
				p, err := filter.NewPipeline(fp)
				if err != nil {
					t.Fatal(err)
				}
				for i, c := range chunks {
					if chunks[i], err = p.Encode(c); err != nil {
						t.Fatal(err)
					}
					sizes = append(sizes, uint32(len(chunks[i])))
				}
			}
			addrs, err := cw.WriteChunks(chunks)
			if err != nil {
				t.Fatal(err)
			}
			index, err := cw.WriteFixedArrayIndex(addrs, sizes)
			if err != nil {
				t.Fatal(err)
			}

			lm := message.NewChunkedLayout([]uint32{tc.chunk}, 1, message.ChunkIndexFixedArray)
			lm.ChunkIndexAddr = index
			l, err := New(lm, message.NewDataspace([]uint64{uint64(len(data))}, nil), opaque(1), fp, f.reader())
			if err != nil {
				t.Fatal(err)
			}
			got, err := l.Read()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, data) {
				t.Error("data mismatch after round trip")
			}
		})
	}
}

func TestFixedArrayDamage(t *testing.T) {
	f := &memFile{}
	cw := NewChunkWriter(binary.NewWriter(f, cfg), []uint32{4}, 1, bump(0))
	addrs, _ := cw.WriteChunks(SplitIntoChunks([]byte("abcdefgh"), 4, 1))
	index, err := cw.WriteFixedArrayIndex(addrs, nil)
	if err != nil {
		t.Fatal(err)
	}
	f.buf[index+12] ^= 0xff

	lm := message.NewChunkedLayout([]uint32{4}, 1, message.ChunkIndexFixedArray)
	lm.ChunkIndexAddr = index
	l, _ := New(lm, message.NewDataspace([]uint64{8}, nil), opaque(1), nil, f.reader())
	if _, err := l.Read(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestWriteFixedArrayIndexArgs(t *testing.T) {
	cw := NewChunkWriter(binary.NewWriter(&memFile{}, cfg), []uint32{4}, 1, bump(0))
	if _, err := cw.WriteFixedArrayIndex([]uint64{1, 2}, []uint32{3}); err == nil {
		t.Error("expected error for mismatched sizes")
	}
	if addr, err := cw.WriteFixedArrayIndex(nil, nil); err != nil || addr != undef {
		t.Errorf("empty index = %#x, %v", addr, err)
	}
	if cw.ChunkSize() != 4 {
		t.Errorf("ChunkSize = %d", cw.ChunkSize())
	}
}

// TestImplicitTwoDimensions covers edge chunks that overhang the dataset
// in both dimensions.
func TestImplicitTwoDimensions(t *testing.T) {
	const rows, cols = 5, 6
	f := &memFile{}
	addr := 0x100
	for i := 0; i < 6; i++ { // 3 x 2 chunks
		r0, c0 := (i/2)*2, (i%2)*4
		buf := make([]byte, 8)
		for j := range buf {
			r, c := r0+j/4, c0+j%4
			buf[j] = 0xee
			if r < rows && c < cols {
				buf[j] = byte(r*cols + c)
			}
		}
		f.put(addr+8*i, buf)
	}

	lm := &message.DataLayout{Version: 4, Class: message.LayoutChunked, ChunkDims: []uint32{2, 4, 1},
		ChunkIndexType: message.ChunkIndexImplicit, ChunkIndexAddr: uint64(addr)}
	l, err := New(lm, message.NewDataspace([]uint64{rows, cols}, nil), opaque(1), nil, f.reader())
	if err != nil {
		t.Fatal(err)
	}
	got, err := l.Read()
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range got {
		if int(b) != i {
			t.Fatalf("element %d = %d", i, b)
		}
	}
}

func TestSingleChunk(t *testing.T) {
	data := bytes.Repeat([]byte("h5j"), 40)
	fp := message.NewFilterPipeline(message.FilterInfo{ID: message.FilterDeflate, ClientData: []uint32{9}})
	p, _ := filter.NewPipeline(fp)
	packed, err := p.Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	f := &memFile{}
	f.put(0x40, packed)

	lm := message.NewChunkedLayout([]uint32{120}, 1, message.ChunkIndexSingleChunk)
	lm.ChunkIndexAddr = 0x40
	lm.ChunkFlags = flagFilteredSingle
	lm.FilteredChunkSize = uint64(len(packed))
	l, err := New(lm, message.NewDataspace([]uint64{120}, nil), opaque(1), fp, f.reader())
	if err != nil {
		t.Fatal(err)
	}
	if got, err := l.Read(); err != nil || !bytes.Equal(got, data) {
		t.Errorf("single chunk = %q, %v", got, err)
	}

	// a chunk that inflates short is rejected
	long := message.NewChunkedLayout([]uint32{240}, 1, message.ChunkIndexSingleChunk)
	long.ChunkIndexAddr, long.ChunkFlags, long.FilteredChunkSize = 0x40, flagFilteredSingle, uint64(len(packed))
	l, _ = New(long, message.NewDataspace([]uint64{240}, nil), opaque(1), fp, f.reader())
	if _, err := l.Read(); err == nil {
		t.Error("expected error for short chunk")
	}
}

func TestUnwrittenChunks(t *testing.T) {
	lm := message.NewChunkedLayout([]uint32{4}, 2, message.ChunkIndexFixedArray)
	lm.ChunkIndexAddr = undef
	l, err := New(lm, message.NewDataspace([]uint64{6}, nil), opaque(2), nil, (&memFile{}).reader())
	if err != nil {
		t.Fatal(err)
	}
	if got, err := l.Read(); err != nil || !bytes.Equal(got, make([]byte, 12)) {
		t.Errorf("unwritten = %v, %v", got, err)
	}
}

func TestVersion3BTreeIndex(t *testing.T) {
	f := &memFile{}
	key := func(size uint32, off uint64) []byte {
		return bytes.Join([][]byte{le(uint64(size), 4), le(0, 4), le(off, 8), le(0, 8)}, nil)
	}
	f.put(0, []byte("TREE"), []byte{1, 0}, le(2, 2), le(undef, 8), le(undef, 8),
		key(3, 0), le(0x200, 8), key(3, 3), le(0x300, 8), key(0, 6))
	f.put(0x200, []byte("abc"))
	f.put(0x300, []byte("def"))

	lm := &message.DataLayout{Version: 3, Class: message.LayoutChunked, ChunkDims: []uint32{3, 1}, ChunkIndexAddr: 0}
	l, err := New(lm, message.NewDataspace([]uint64{5}, nil), opaque(1), nil, f.reader())
	if err != nil {
		t.Fatal(err)
	}
	if got, err := l.Read(); err != nil || string(got) != "abcde" {
		t.Errorf("got %q, %v", got, err)
	}
}

// TestExtensibleArray lays out an array with two elements in the index
// block, two data blocks listed there, and a super block holding one
// more. Chunk 1 was never written.
func TestExtensibleArray(t *testing.T) {
	const (
		hdrAddr = 0x40
		ibAddr  = 0x100
		d0Addr  = 0x200
		d1Addr  = 0x280
		sbAddr  = 0x300
		d2Addr  = 0x380
	)
	chunkAddr := func(k int) uint64 { return uint64(0x1000 + 0x10*k) }
	f := &memFile{}
	for k := 0; k < 11; k++ {
		if k != 1 {
			f.put(int(chunkAddr(k)), bytes.Repeat([]byte{byte(k + 1)}, 4))
		}
	}
	elems := func(ks ...int) []byte {
		var b []byte
		for _, k := range ks {
			if k < 0 {
				b = append(b, le(undef, 8)...)
			} else {
				b = append(b, le(chunkAddr(k), 8)...)
			}
		}
		return b
	}

	var stats []byte
	for _, v := range []uint64{1, 0, 3, 0, 11, 10} {
		stats = append(stats, le(v, 8)...)
	}
	// element size 8, 8 bits of index, 2 index block elements, data
	// blocks of at least 2, 2 data block pointers per super block
	hdr := bytes.Join([][]byte{[]byte("EAHD"), {0, clientChunk, 8, 8, 2, 2, 2, 10}, stats, le(ibAddr, 8)}, nil)
	f.put(hdrAddr, withChecksum(hdr))

	sblks := le(sbAddr, 8)
	for i := 0; i < 5; i++ {
		sblks = append(sblks, le(undef, 8)...)
	}
	f.put(ibAddr, withChecksum(bytes.Join([][]byte{
		[]byte("EAIB"), {0, clientChunk}, le(hdrAddr, 8), elems(0, -1), le(d0Addr, 8), le(d1Addr, 8), sblks,
	}, nil)))
	dblk := func(off byte, e []byte) []byte {
		return withChecksum(bytes.Join([][]byte{[]byte("EADB"), {0, clientChunk}, le(hdrAddr, 8), {off}, e}, nil))
	}
	f.put(d0Addr, dblk(2, elems(2, 3)))
	f.put(d1Addr, dblk(4, elems(4, 5, 6, 7)))
	f.put(sbAddr, withChecksum(bytes.Join([][]byte{[]byte("EASB"), {0, clientChunk}, le(hdrAddr, 8), {8}, le(d2Addr, 8), le(undef, 8)}, nil)))
	f.put(d2Addr, dblk(8, elems(8, 9, 10, -1)))

	lm := message.NewChunkedLayout([]uint32{4}, 1, message.ChunkIndexExtensibleArray)
	lm.ChunkIndexAddr = hdrAddr
	space := message.NewDataspace([]uint64{44}, []uint64{undef})
	l, err := New(lm, space, opaque(1), nil, f.reader())
	if err != nil {
		t.Fatal(err)
	}
	got, err := l.Read()
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range got {
		want := byte(i/4 + 1)
		if i/4 == 1 {
			want = 0
		}
		if b != want {
			t.Fatalf("byte %d = %d, want %d", i, b, want)
		}
	}
}
