package alloc

import (
	"fmt"
	"sort"
	"sync"
)

// Allocator manages space allocation within an HDF5 file.
type Allocator struct {
	mu sync.Mutex

	eofAddr  uint64 // next append address
	baseAddr uint64 // lowest allocatable address

	live       map[uint64]uint64 // addr -> size
	freeBlocks []Block           // sorted by address, coalesced
	stats      Stats
}

// Block is a contiguous byte range of the file.
type Block struct {
	Addr uint64
	Size uint64
}

// End returns the first address past the block.
func (b Block) End() uint64 {
	return b.Addr + b.Size
}

// Stats contains allocation statistics.
type Stats struct {
	Allocations uint64 // blocks handed out
	Reused      uint64 // blocks served from freed space
	BytesAlloc  uint64
	BytesFreed  uint64
	BytesLive   uint64
}

// New creates a new Allocator starting at the given base address.
func New(baseAddr uint64) *Allocator {
	return &Allocator{
		eofAddr:  baseAddr,
		baseAddr: baseAddr,
		live:     make(map[uint64]uint64),
	}
}

// Alloc reserves size bytes and returns their address. Zero-size requests
// return the current EOF without reserving anything.
func (a *Allocator) Alloc(size uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size == 0 {
		return a.eofAddr
	}

	addr, reused := a.takeFree(size)
	if !reused {
		addr = a.eofAddr
		a.eofAddr += size
	} else {
		a.stats.Reused++
	}

	a.live[addr] = size
	a.stats.Allocations++
	a.stats.BytesAlloc += size
	a.stats.BytesLive += size
	return addr
}

// takeFree carves size bytes out of the first free block large enough.
func (a *Allocator) takeFree(size uint64) (uint64, bool) {
	for i, b := range a.freeBlocks {
		if b.Size < size {
			continue
		}
		if b.Size == size {
			a.freeBlocks = append(a.freeBlocks[:i], a.freeBlocks[i+1:]...)
		} else {
			a.freeBlocks[i] = Block{Addr: b.Addr + size, Size: b.Size - size}
		}
		return b.Addr, true
	}
	return 0, false
}

// Free releases a block previously returned by Alloc. Freeing an address
// that is not live returns an error.
func (a *Allocator) Free(addr, size uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	liveSize, ok := a.live[addr]
	if !ok {
		return fmt.Errorf("free of unallocated address 0x%x", addr)
	}
	if liveSize != size {
		return fmt.Errorf("free of 0x%x: size %d, allocated %d", addr, size, liveSize)
	}
	delete(a.live, addr)
	a.stats.BytesFreed += size
	a.stats.BytesLive -= size

	a.insertFree(Block{Addr: addr, Size: size})
	return nil
}

// insertFree adds b to the free list, merging it with adjacent blocks. A
// free block that ends at EOF is returned to the tail instead.
func (a *Allocator) insertFree(b Block) {
	i := sort.Search(len(a.freeBlocks), func(i int) bool {
		return a.freeBlocks[i].Addr > b.Addr
	})
	a.freeBlocks = append(a.freeBlocks, Block{})
	copy(a.freeBlocks[i+1:], a.freeBlocks[i:])
	a.freeBlocks[i] = b

	if i+1 < len(a.freeBlocks) && a.freeBlocks[i].End() == a.freeBlocks[i+1].Addr {
		a.freeBlocks[i].Size += a.freeBlocks[i+1].Size
		a.freeBlocks = append(a.freeBlocks[:i+1], a.freeBlocks[i+2:]...)
	}
	if i > 0 && a.freeBlocks[i-1].End() == a.freeBlocks[i].Addr {
		a.freeBlocks[i-1].Size += a.freeBlocks[i].Size
		a.freeBlocks = append(a.freeBlocks[:i], a.freeBlocks[i+1:]...)
	}

	if n := len(a.freeBlocks); n > 0 && a.freeBlocks[n-1].End() == a.eofAddr {
		a.eofAddr = a.freeBlocks[n-1].Addr
		a.freeBlocks = a.freeBlocks[:n-1]
	}
}

// EOFAddr returns the current end-of-file address.
func (a *Allocator) EOFAddr() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eofAddr
}

// Stats returns a copy of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// FreeBlocks returns a copy of the free list.
func (a *Allocator) FreeBlocks() []Block {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Block(nil), a.freeBlocks...)
}

// Validate checks that live allocations don't overlap each other or free
// space and lie within [base, EOF).
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	blocks := make([]Block, 0, len(a.live)+len(a.freeBlocks))
	for addr, size := range a.live {
		blocks = append(blocks, Block{Addr: addr, Size: size})
	}
	blocks = append(blocks, a.freeBlocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Addr < blocks[j].Addr })

	for i, b := range blocks {
		if b.Addr < a.baseAddr {
			return fmt.Errorf("block at 0x%x is before base address 0x%x", b.Addr, a.baseAddr)
		}
		if b.End() > a.eofAddr {
			return fmt.Errorf("block at 0x%x size %d extends past EOF 0x%x", b.Addr, b.Size, a.eofAddr)
		}
		if i > 0 && blocks[i-1].End() > b.Addr {
			return fmt.Errorf("overlapping blocks: [0x%x, size %d] and [0x%x, size %d]",
				blocks[i-1].Addr, blocks[i-1].Size, b.Addr, b.Size)
		}
	}
	return nil
}
