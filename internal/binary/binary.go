// Package binary reads and writes the integers that make up HDF5 metadata.
//
// Addresses and lengths are stored with the widths declared by the
// superblock, so every Reader and Writer carries a Config describing them.
package binary

import (
	"encoding/binary"
)

// Config describes the integer encoding of a file.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int // width of file addresses in bytes
	LengthSize int // width of lengths in bytes
}

// DefaultConfig is the encoding used before the superblock has been read
// and for files this package creates: little-endian, 8-byte addresses and
// lengths.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

func (c Config) order() binary.ByteOrder {
	if c.ByteOrder == nil {
		return binary.LittleEndian
	}
	return c.ByteOrder
}

// decode interprets b as an unsigned integer of len(b) bytes.
func (c Config) decode(b []byte) uint64 {
	var v uint64
	if c.order() == binary.BigEndian {
		for _, x := range b {
			v = v<<8 | uint64(x)
		}
		return v
	}
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// encode stores the low len(b) bytes of v into b.
func (c Config) encode(b []byte, v uint64) {
	n := len(b)
	if c.order() == binary.BigEndian {
		for i := range b {
			b[n-1-i] = byte(v >> (8 * i))
		}
		return
	}
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
}

// allOnes returns the undefined address value for a field of size bytes.
func allOnes(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*size) - 1
}
