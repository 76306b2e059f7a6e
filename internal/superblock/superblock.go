// Package superblock locates and decodes the HDF5 superblock, the fixed
// header that declares the file's address widths and the root group.
//
// Versions 0 and 1 (written by HDF5 1.6 and 1.8 by default) and versions 2
// and 3 (the compact, checksummed form) are read. Files are written with
// version 3.
package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-h5j/internal/binary"
)

// Signature opens every superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var (
	ErrNotHDF5            = errors.New("superblock: HDF5 signature not found")
	ErrUnsupportedVersion = errors.New("superblock: unsupported version")
	ErrChecksum           = errors.New("superblock: checksum mismatch")
)

// A user block may precede the superblock; the signature is searched at 0
// and at powers of two from 512.
var searchOffsets = []int64{0, 512, 1024, 2048, 4096, 8192}

// Superblock holds the fields the rest of the engine needs.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	Flags      uint8 // file consistency flags, versions 2 and 3

	BaseAddress      uint64
	ExtensionAddress uint64 // versions 2 and 3
	EOFAddress       uint64
	RootGroupAddress uint64 // object header of the root group

	// Cached symbol table of the root group, versions 0 and 1. Zero when
	// the root entry carries no cache.
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	// FileOffset is where the signature was found.
	FileOffset int64
}

// Read finds and decodes the superblock of r.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature)+1)
	for _, off := range searchOffsets {
		if n, _ := r.ReadAt(sig, off); n < len(sig) {
			break
		}
		if !bytes.Equal(sig[:len(Signature)], Signature) {
			continue
		}

		var (
			sb  *Superblock
			err error
		)
		switch version := sig[len(Signature)]; version {
		case 0, 1:
			sb, err = readV0(r, off, version)
		case 2, 3:
			sb, err = readV2(r, off, version)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
		}
		if err != nil {
			return nil, err
		}
		sb.FileOffset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// ReaderConfig returns the integer encoding declared by the superblock.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

func validSize(n uint8) bool {
	return n == 2 || n == 4 || n == 8
}

// readV0 decodes versions 0 and 1:
//
//	signature, version, free-space version, root entry version, reserved,
//	shared header version, offset size, length size, reserved,
//	leaf K (2), internal K (2), flags (4), [indexed K (2), reserved (2)],
//	base, free-space, EOF, driver addresses, root symbol table entry
func readV0(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	head := binpkg.NewReader(r, binpkg.DefaultConfig()).At(off + 13)
	sizes, err := head.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	sb := &Superblock{Version: version, OffsetSize: sizes[0], LengthSize: sizes[1]}
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, fmt.Errorf("superblock: invalid sizes %d/%d", sb.OffsetSize, sb.LengthSize)
	}

	pos := off + 24
	if version == 1 {
		pos += 4
	}
	rd := binpkg.NewReader(r, sb.ReaderConfig()).At(pos)
	if sb.BaseAddress, err = rd.ReadOffset(); err != nil {
		return nil, err
	}
	rd.Skip(int64(sb.OffsetSize)) // free-space info
	if sb.EOFAddress, err = rd.ReadOffset(); err != nil {
		return nil, err
	}
	rd.Skip(int64(sb.OffsetSize)) // driver info

	// Root group symbol table entry: link name offset, header address,
	// cache type, reserved, scratch pad.
	rd.Skip(int64(sb.OffsetSize))
	if sb.RootGroupAddress, err = rd.ReadOffset(); err != nil {
		return nil, err
	}
	cacheType, err := rd.ReadUint32()
	if err != nil {
		return nil, err
	}
	rd.Skip(4)
	if cacheType == 1 {
		if sb.RootGroupBTreeAddress, err = rd.ReadOffset(); err != nil {
			return nil, err
		}
		if sb.RootGroupLocalHeapAddress, err = rd.ReadOffset(); err != nil {
			return nil, err
		}
	}
	return sb, nil
}

// readV2 decodes versions 2 and 3:
//
//	signature, version, offset size, length size, flags,
//	base, extension, EOF, root header addresses, checksum
func readV2(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	head := binpkg.NewReader(r, binpkg.DefaultConfig()).At(off + 9)
	b, err := head.ReadBytes(3)
	if err != nil {
		return nil, err
	}
	sb := &Superblock{Version: version, OffsetSize: b[0], LengthSize: b[1], Flags: b[2]}
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, fmt.Errorf("superblock: invalid sizes %d/%d", sb.OffsetSize, sb.LengthSize)
	}

	rd := binpkg.NewReader(r, sb.ReaderConfig()).At(off + 12)
	for _, dst := range []*uint64{&sb.BaseAddress, &sb.ExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
		if *dst, err = rd.ReadOffset(); err != nil {
			return nil, err
		}
	}
	stored, err := rd.ReadUint32()
	if err != nil {
		return nil, err
	}

	body, err := binpkg.NewReader(r, sb.ReaderConfig()).At(off).ReadBytes(int(rd.Pos() - 4 - off))
	if err != nil {
		return nil, err
	}
	if binpkg.Lookup3Checksum(body) != stored {
		return nil, ErrChecksum
	}
	return sb, nil
}
