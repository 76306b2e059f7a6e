package superblock

import (
	"encoding/binary"
	"errors"
	"testing"

	binpkg "github.com/robert-malhotra/go-h5j/internal/binary"
)

type buffer []byte

func (b *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(*b) {
		*b = append(*b, make([]byte, end-len(*b))...)
	}
	return copy((*b)[off:], p), nil
}

func (b *buffer) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(*b)) {
		return 0, errors.New("EOF")
	}
	n := copy(p, (*b)[off:])
	if n < len(p) {
		return n, errors.New("EOF")
	}
	return n, nil
}

func TestWriteReadV3(t *testing.T) {
	for _, userBlock := range []int64{0, 512} {
		buf := &buffer{}
		sb := New()
		sb.EOFAddress = 4096
		sb.RootGroupAddress = 48
		if err := sb.Write(binpkg.NewWriter(buf, binpkg.DefaultConfig()).At(userBlock)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if len(*buf) != int(userBlock)+sb.Size() {
			t.Errorf("wrote %d bytes, want %d", len(*buf), int(userBlock)+sb.Size())
		}

		got, err := Read(buf)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if got.Version != 3 || got.OffsetSize != 8 || got.LengthSize != 8 {
			t.Errorf("header = %+v", got)
		}
		if got.RootGroupAddress != 48 || got.EOFAddress != 4096 || got.FileOffset != userBlock {
			t.Errorf("addresses = %+v", got)
		}
		if got.ExtensionAddress != ^uint64(0) {
			t.Errorf("extension address = %#x, want undefined", got.ExtensionAddress)
		}
	}
}

func TestChecksumMismatch(t *testing.T) {
	buf := &buffer{}
	sb := New()
	sb.RootGroupAddress = 48
	sb.Write(binpkg.NewWriter(buf, binpkg.DefaultConfig()))
	(*buf)[20] ^= 0xff

	if _, err := Read(buf); !errors.Is(err, ErrChecksum) {
		t.Errorf("Read err = %v, want ErrChecksum", err)
	}
}

func TestNotHDF5(t *testing.T) {
	small := buffer("hello")
	if _, err := Read(&small); !errors.Is(err, ErrNotHDF5) {
		t.Errorf("short file err = %v", err)
	}
	large := make(buffer, 4096)
	if _, err := Read(&large); !errors.Is(err, ErrNotHDF5) {
		t.Errorf("zero file err = %v", err)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	buf := make(buffer, 64)
	copy(buf, Signature)
	buf[8] = 7
	if _, err := Read(&buf); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Read err = %v, want ErrUnsupportedVersion", err)
	}
}

// v0 builds a version 0 superblock with 8-byte fields and a cached root
// symbol table.
func v0() buffer {
	b := make(buffer, 128)
	copy(b, Signature)
	b[13], b[14] = 8, 8
	le := binary.LittleEndian
	le.PutUint64(b[24:], 0)          // base
	le.PutUint64(b[32:], ^uint64(0)) // free space
	le.PutUint64(b[40:], 2048)       // EOF
	le.PutUint64(b[48:], ^uint64(0)) // driver
	le.PutUint64(b[56:], 0)          // link name offset
	le.PutUint64(b[64:], 96)         // root header
	le.PutUint32(b[72:], 1)          // cache type
	le.PutUint64(b[80:], 136)        // B-tree
	le.PutUint64(b[88:], 680)        // local heap
	return b
}

func TestReadV0(t *testing.T) {
	buf := v0()
	sb, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if sb.Version != 0 || sb.EOFAddress != 2048 || sb.RootGroupAddress != 96 {
		t.Errorf("superblock = %+v", sb)
	}
	if sb.RootGroupBTreeAddress != 136 || sb.RootGroupLocalHeapAddress != 680 {
		t.Errorf("root cache = %d, %d", sb.RootGroupBTreeAddress, sb.RootGroupLocalHeapAddress)
	}

	cfg := sb.ReaderConfig()
	if cfg.OffsetSize != 8 || cfg.LengthSize != 8 || cfg.ByteOrder != binary.LittleEndian {
		t.Errorf("ReaderConfig = %+v", cfg)
	}
}

func TestReadV0InvalidSizes(t *testing.T) {
	buf := v0()
	buf[13] = 3
	if _, err := Read(&buf); err == nil {
		t.Error("expected error for 3-byte offsets")
	}
}
