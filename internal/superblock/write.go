package superblock

import (
	"encoding/binary"

	binpkg "github.com/robert-malhotra/go-h5j/internal/binary"
)

// New returns a version 3 superblock with 8-byte addresses and lengths.
func New() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8}
}

// Size returns the encoded size of a version 2 or 3 superblock.
func (sb *Superblock) Size() int {
	return 12 + 4*int(sb.OffsetSize) + 4
}

// Write encodes sb as a version 2 or 3 superblock at the writer's position.
func (sb *Superblock) Write(w *binpkg.Writer) error {
	version := max(sb.Version, 2)

	buf := make([]byte, sb.Size())
	copy(buf, Signature)
	buf[8] = version
	buf[9] = sb.OffsetSize
	buf[10] = sb.LengthSize
	buf[11] = sb.Flags

	ext := sb.ExtensionAddress
	if ext == 0 {
		ext = w.UndefinedOffset()
	}
	pos := 12
	n := int(sb.OffsetSize)
	for _, v := range []uint64{sb.BaseAddress, ext, sb.EOFAddress, sb.RootGroupAddress} {
		putUint(buf[pos:pos+n], v)
		pos += n
	}
	binary.LittleEndian.PutUint32(buf[pos:], binpkg.Lookup3Checksum(buf[:pos]))

	return w.WriteBytes(buf)
}

func putUint(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
}
