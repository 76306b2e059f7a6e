package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/btree"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

// single chunk layout flag: the chunk is filtered and its size is stored
const flagFilteredSingle = 0x02

// array index client IDs
const (
	clientChunk         = 0
	clientFilteredChunk = 1
)

// Entries lists the allocated chunks, each with the dataset coordinate of
// its first element.
func (c *Chunked) Entries() ([]btree.ChunkEntry, error) {
	addr := c.layout.ChunkIndexAddr
	if c.r.IsUndefinedOffset(addr) {
		return nil, nil
	}
	if c.layout.Version < 4 {
		return btree.ReadChunkIndex(c.r, addr, len(c.dims))
	}

	switch c.layout.ChunkIndexType {
	case message.ChunkIndexSingleChunk:
		e := btree.ChunkEntry{Offset: make([]uint64, len(c.dims)), Address: addr}
		if c.layout.ChunkFlags&flagFilteredSingle != 0 {
			e.Size = uint32(c.layout.FilteredChunkSize)
			e.FilterMask = c.layout.FilterMask
		}
		return []btree.ChunkEntry{e}, nil
	case message.ChunkIndexImplicit:
		n := uint64(1)
		for _, g := range c.grid(false) {
			n *= g
		}
		out := make([]btree.ChunkEntry, 0, min(n, 1<<16))
		for i := uint64(0); i < n; i++ {
			if origin := c.origin(i, false); c.inside(origin) {
				out = append(out, btree.ChunkEntry{Offset: origin, Address: addr + i*c.chunkBytes()})
			}
		}
		return out, nil
	case message.ChunkIndexFixedArray:
		return c.fixedArray(addr)
	case message.ChunkIndexExtensibleArray:
		return c.extensibleArray(addr)
	case message.ChunkIndexBTreeV2:
		return btree.ReadChunkIndexV2(c.r, addr, c.chunk)
	}
	return nil, fmt.Errorf("layout: unsupported chunk index type %d", c.layout.ChunkIndexType)
}

// grid is the number of chunks along each dimension as seen by the array
// indexes, which size it from the maximum extent. Unlimited dimensions use
// the current extent. With swizzle the unlimited dimension is moved first,
// the order extensible arrays count chunks in.
func (c *Chunked) grid(swizzle bool) []uint64 {
	g := make([]uint64, len(c.dims))
	for d := range g {
		extent := c.maxDims[d]
		if c.unlimited(d) {
			extent = c.dims[d]
		}
		g[d] = (extent + uint64(c.chunk[d]) - 1) / uint64(c.chunk[d])
	}
	if u := c.unlimitedDim(); swizzle && u > 0 {
		g = swizzled(g, u)
	}
	return g
}

func (c *Chunked) unlimited(d int) bool {
	return c.maxDims[d] == ^uint64(0)>>(64-8*c.r.LengthSize())
}

func (c *Chunked) unlimitedDim() int {
	for d := range c.dims {
		if c.unlimited(d) {
			return d
		}
	}
	return -1
}

func (c *Chunked) inside(origin []uint64) bool {
	for d, o := range origin {
		if o >= c.dims[d] {
			return false
		}
	}
	return true
}

// swizzled moves dimension u to the front.
func swizzled(v []uint64, u int) []uint64 {
	out := append([]uint64{v[u]}, v[:u]...)
	return append(out, v[u+1:]...)
}

// origin converts the linear chunk index i into the coordinate of the
// chunk's first element.
func (c *Chunked) origin(i uint64, swizzle bool) []uint64 {
	g := c.grid(swizzle)
	scaled := make([]uint64, len(g))
	for d := len(g) - 1; d >= 0; d-- {
		scaled[d] = i % g[d]
		i /= g[d]
	}
	if u := c.unlimitedDim(); swizzle && u > 0 {
		// undo the swizzle
		first := scaled[0]
		copy(scaled, scaled[1:u+1])
		scaled[u] = first
	}
	for d := range scaled {
		scaled[d] *= uint64(c.chunk[d])
	}
	return scaled
}

// element decodes one array index entry: the chunk address, then for
// filtered chunks the stored size and filter mask.
func (c *Chunked) element(b []byte, client uint8) btree.ChunkEntry {
	o := c.r.OffsetSize()
	e := btree.ChunkEntry{Address: leUint(b[:o])}
	if client == clientFilteredChunk {
		e.Size = uint32(leUint(b[o : len(b)-4]))
		e.FilterMask = uint32(leUint(b[len(b)-4:]))
	}
	return e
}

func (c *Chunked) checkElementSize(size int, client uint8) error {
	o := c.r.OffsetSize()
	switch {
	case client == clientChunk && size == o:
	case client == clientFilteredChunk && size > o+4 && size <= o+12:
	default:
		return fmt.Errorf("%w: %d byte entries for client %d", ErrCorrupt, size, client)
	}
	return nil
}

// collect turns array entries into chunk entries, dropping unallocated
// chunks and those past the current extent.
func (c *Chunked) collect(out []btree.ChunkEntry, first uint64, elems []byte, size int, client uint8, swizzle bool) []btree.ChunkEntry {
	for j := 0; j+size <= len(elems); j += size {
		e := c.element(elems[j:j+size], client)
		if c.r.IsUndefinedOffset(e.Address) || e.Address == 0 {
			continue
		}
		e.Offset = c.origin(first+uint64(j/size), swizzle)
		if c.inside(e.Offset) {
			out = append(out, e)
		}
	}
	return out
}

// fixedArray reads a fixed array index.
//
//	header: "FAHD", version 0, client, entry size, page bits,
//	        entry count (L), data block address (O), checksum
//	data block: "FADB", version 0, client, header address (O), then the
//	        entries, or a page bitmap and checksum followed by pages of
//	        entries, each page with its own checksum
func (c *Chunked) fixedArray(addr uint64) ([]btree.ChunkEntry, error) {
	o, l := c.r.OffsetSize(), c.r.LengthSize()
	hdr, err := readChecked(c.r, addr, 8+l+o, "FAHD")
	if err != nil {
		return nil, err
	}
	client, size, pageBits := hdr[5], int(hdr[6]), hdr[7]
	if hdr[4] != 0 {
		return nil, fmt.Errorf("layout: unsupported fixed array version %d", hdr[4])
	}
	if err := c.checkElementSize(size, client); err != nil {
		return nil, err
	}
	n, dblk := leUint(hdr[8:8+l]), leUint(hdr[8+l:8+l+o])
	if c.r.IsUndefinedOffset(dblk) || n == 0 {
		return nil, nil
	}

	prefix := 6 + o
	pageLen := uint64(1) << pageBits
	if n <= pageLen {
		buf, err := readChecked(c.r, dblk, prefix+int(n)*size, "FADB")
		if err != nil {
			return nil, err
		}
		return c.collect(nil, 0, buf[prefix:], size, client, false), nil
	}

	pages := (n + pageLen - 1) / pageLen
	bitmap := int(pages+7) / 8
	buf, err := readChecked(c.r, dblk, prefix+bitmap, "FADB")
	if err != nil {
		return nil, err
	}
	var out []btree.ChunkEntry
	pos := dblk + uint64(prefix+bitmap+4)
	for p := uint64(0); p < pages; p++ {
		count := min(pageLen, n-p*pageLen)
		length := int(count) * size
		if buf[prefix+int(p/8)]&(0x80>>(p%8)) != 0 {
			page, err := readChecked(c.r, pos, length, "")
			if err != nil {
				return nil, fmt.Errorf("fixed array page %d: %w", p, err)
			}
			out = c.collect(out, p*pageLen, page, size, client, false)
		}
		pos += uint64(length + 4)
	}
	return out, nil
}

// extensibleArray reads an extensible array index. Elements live first in
// the index block, then in data blocks whose sizes double every other
// super block; the data blocks of the first few super blocks are listed
// in the index block directly.
//
//	header: "EAHD", version 0, client, element size, max element bits,
//	        index block elements, data block min elements, super block
//	        min data block pointers, data block page bits, six statistics
//	        (L each), index block address (O), checksum
func (c *Chunked) extensibleArray(addr uint64) ([]btree.ChunkEntry, error) {
	o, l := c.r.OffsetSize(), c.r.LengthSize()
	hdr, err := readChecked(c.r, addr, 12+6*l+o, "EAHD")
	if err != nil {
		return nil, err
	}
	if hdr[4] != 0 {
		return nil, fmt.Errorf("layout: unsupported extensible array version %d", hdr[4])
	}
	ea := earray{
		client:      hdr[5],
		size:        int(hdr[6]),
		maxBits:     int(hdr[7]),
		indexElems:  int(hdr[8]),
		dblkMin:     uint64(hdr[9]),
		sblkMinPtrs: int(hdr[10]),
		pageBits:    int(hdr[11]),
	}
	if err := c.checkElementSize(ea.size, ea.client); err != nil {
		return nil, err
	}
	if !isPow2(ea.dblkMin) || !isPow2(uint64(ea.sblkMinPtrs)) || ea.maxBits == 0 || ea.maxBits > 64 {
		return nil, fmt.Errorf("%w: extensible array parameters %v", ErrCorrupt, hdr[7:12])
	}
	set := leUint(hdr[12+4*l : 12+5*l]) // max index set
	iblock := leUint(hdr[12+6*l : 12+6*l+o])
	if c.r.IsUndefinedOffset(iblock) || set == 0 {
		return nil, nil
	}

	nsblks := 1 + ea.maxBits - bits.TrailingZeros64(ea.dblkMin)
	direct := 2 * bits.TrailingZeros64(uint64(ea.sblkMinPtrs)) // super blocks addressed from the index block
	ndblk := 2 * (ea.sblkMinPtrs - 1)
	nsblk := max(nsblks-direct, 0)
	offLen := (ea.maxBits + 7) / 8

	elemsEnd := 6 + o + ea.indexElems*ea.size
	ib, err := readChecked(c.r, iblock, elemsEnd+(ndblk+nsblk)*o, "EAIB")
	if err != nil {
		return nil, err
	}
	addrAt := func(i int) uint64 { return leUint(ib[elemsEnd+i*o : elemsEnd+(i+1)*o]) }

	elems := ib[6+o : elemsEnd]
	if n := min(uint64(ea.indexElems), set); n < uint64(ea.indexElems) {
		elems = elems[:int(n)*ea.size]
	}
	out := c.collect(nil, 0, elems, ea.size, ea.client, true)

	idx := uint64(ea.indexElems)
	next := 0 // next data block address in the index block
	for u := 0; u < nsblks && idx < set; u++ {
		count := 1 << (u / 2)
		dblkLen := (uint64(1) << ((u + 1) / 2)) * ea.dblkMin
		if dblkLen > uint64(1)<<ea.pageBits {
			return nil, fmt.Errorf("layout: paged extensible array data blocks are not supported")
		}

		var dblks []uint64
		if u < direct {
			for i := 0; i < count; i++ {
				dblks = append(dblks, addrAt(next))
				next++
			}
		} else {
			sblk := addrAt(ndblk + u - direct)
			if c.r.IsUndefinedOffset(sblk) {
				idx += uint64(count) * dblkLen
				continue
			}
			sb, err := readChecked(c.r, sblk, 6+o+offLen+count*o, "EASB")
			if err != nil {
				return nil, err
			}
			for i := 0; i < count; i++ {
				start := 6 + o + offLen + i*o
				dblks = append(dblks, leUint(sb[start:start+o]))
			}
		}

		for _, dblk := range dblks {
			if idx >= set {
				break
			}
			if !c.r.IsUndefinedOffset(dblk) {
				n := min(dblkLen, set-idx)
				db, err := readChecked(c.r, dblk, 6+o+offLen+int(dblkLen)*ea.size, "EADB")
				if err != nil {
					return nil, err
				}
				start := 6 + o + offLen
				out = c.collect(out, idx, db[start:start+int(n)*ea.size], ea.size, ea.client, true)
			}
			idx += dblkLen
		}
	}
	return out, nil
}

type earray struct {
	client      uint8
	size        int
	maxBits     int
	indexElems  int
	dblkMin     uint64
	sblkMinPtrs int
	pageBits    int
}

func isPow2(n uint64) bool { return n != 0 && n&(n-1) == 0 }

// readChecked reads size bytes at addr followed by their lookup3
// checksum. A non-empty sig must open the block.
func readChecked(r *binary.Reader, addr uint64, size int, sig string) ([]byte, error) {
	buf, err := r.At(int64(addr)).ReadBytes(size + 4)
	if err != nil {
		return nil, fmt.Errorf("reading %s block at %d: %w", sig, addr, err)
	}
	if sig != "" && string(buf[:len(sig)]) != sig {
		return nil, fmt.Errorf("%w: want %s at %d, found %q", ErrCorrupt, sig, addr, buf[:len(sig)])
	}
	if uint32(leUint(buf[size:])) != binary.Lookup3Checksum(buf[:size]) {
		return nil, fmt.Errorf("%w: %s block at %d fails its checksum", ErrCorrupt, sig, addr)
	}
	return buf[:size], nil
}

func leUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
