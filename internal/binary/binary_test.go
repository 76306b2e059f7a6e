package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

type buffer struct{ b []byte }

func (m *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	return copy(m.b[off:], p), nil
}

func (m *buffer) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.b)) {
		return 0, io.EOF
	}
	n := copy(p, m.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"little endian 8/8", DefaultConfig()},
		{"little endian 4/2", Config{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 2}},
		{"big endian 8/4", Config{ByteOrder: binary.BigEndian, OffsetSize: 8, LengthSize: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &buffer{}
			w := NewWriter(buf, tt.cfg)
			w.WriteUint8(0xab)
			w.WriteUint16(0x1234)
			w.WriteUint32(0xdeadbeef)
			w.WriteUint64(0x0102030405060708)
			w.WriteOffset(0x4000)
			w.WriteLength(0x300)
			w.WriteUintN(0x0a0b0c, 3)
			w.WriteZeros(3)
			w.WriteBytes([]byte("OHDR"))

			want := int64(1 + 2 + 4 + 8 + tt.cfg.OffsetSize + tt.cfg.LengthSize + 3 + 3 + 4)
			if w.Pos() != want {
				t.Fatalf("writer at %d, want %d", w.Pos(), want)
			}

			r := NewReader(buf, tt.cfg)
			u8, _ := r.ReadUint8()
			u16, _ := r.ReadUint16()
			u32, _ := r.ReadUint32()
			u64, _ := r.ReadUint64()
			off, _ := r.ReadOffset()
			length, _ := r.ReadLength()
			n3, _ := r.ReadUintN(3)
			r.Skip(3)
			sig, err := r.ReadBytes(4)
			if err != nil {
				t.Fatalf("ReadBytes failed: %v", err)
			}

			if u8 != 0xab || u16 != 0x1234 || u32 != 0xdeadbeef || u64 != 0x0102030405060708 {
				t.Errorf("fixed values = %#x %#x %#x %#x", u8, u16, u32, u64)
			}
			if off != 0x4000 || length != 0x300 || n3 != 0x0a0b0c || string(sig) != "OHDR" {
				t.Errorf("variable values = %#x %#x %#x %q", off, length, n3, sig)
			}
		})
	}
}

func TestByteLayout(t *testing.T) {
	buf := &buffer{}
	NewWriter(buf, DefaultConfig()).WriteUint32(0x01020304)
	if !bytes.Equal(buf.b, []byte{4, 3, 2, 1}) {
		t.Errorf("little endian bytes = %v", buf.b)
	}

	buf = &buffer{}
	NewWriter(buf, Config{ByteOrder: binary.BigEndian}).WriteUint32(0x01020304)
	if !bytes.Equal(buf.b, []byte{1, 2, 3, 4}) {
		t.Errorf("big endian bytes = %v", buf.b)
	}
}

func TestPositioning(t *testing.T) {
	buf := &buffer{b: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}}
	r := NewReader(buf, DefaultConfig())

	sub := r.At(5)
	if v, _ := sub.ReadUint8(); v != 5 || r.Pos() != 0 {
		t.Errorf("At reader read %d, parent at %d", v, r.Pos())
	}
	sub.Align(8)
	if sub.Pos() != 8 {
		t.Errorf("Align(8) from 6 gave %d", sub.Pos())
	}
	sub.Align(8)
	if sub.Pos() != 8 {
		t.Errorf("Align on boundary moved to %d", sub.Pos())
	}

	p, _ := sub.Peek(2)
	if !bytes.Equal(p, []byte{8, 9}) || sub.Pos() != 8 {
		t.Errorf("Peek = %v at %d", p, sub.Pos())
	}

	w := NewWriter(&buffer{}, DefaultConfig()).At(3)
	w.Align(4)
	if w.Pos() != 4 {
		t.Errorf("writer Align gave %d", w.Pos())
	}
}

func TestShortRead(t *testing.T) {
	r := NewReader(&buffer{b: []byte{1, 2}}, DefaultConfig())
	if _, err := r.ReadUint32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short read err = %v", err)
	}
	if r.Pos() != 0 {
		t.Errorf("failed read moved position to %d", r.Pos())
	}
	if _, err := r.At(2).ReadUint8(); err == nil {
		t.Error("read past end should fail")
	}
	if b, err := r.ReadBytes(2); err != nil || len(b) != 2 {
		t.Errorf("exact read = %v, %v", b, err)
	}
}

func TestUndefinedOffset(t *testing.T) {
	for _, size := range []int{2, 4, 8} {
		cfg := Config{ByteOrder: binary.LittleEndian, OffsetSize: size, LengthSize: 8}
		w := NewWriter(&buffer{}, cfg)
		r := NewReader(&buffer{}, cfg)
		undef := w.UndefinedOffset()
		if !r.IsUndefinedOffset(undef) {
			t.Errorf("size %d: %#x not undefined", size, undef)
		}
		if r.IsUndefinedOffset(undef - 1) {
			t.Errorf("size %d: %#x reported undefined", size, undef-1)
		}
	}
}

func TestLookup3Checksum(t *testing.T) {
	// Reference values from the lookup3 driver.
	if got := Lookup3Checksum(nil); got != 0xdeadbeef {
		t.Errorf("empty = %#08x, want 0xdeadbeef", got)
	}
	if got := Lookup3Checksum([]byte("Four score and seven years ago")); got != 0x17770551 {
		t.Errorf("phrase = %#08x, want 0x17770551", got)
	}

	seen := make(map[uint32]int)
	for n := 0; n <= 24; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		seen[Lookup3Checksum(data)] = n
	}
	if len(seen) != 25 {
		t.Errorf("got %d distinct checksums for 25 lengths", len(seen))
	}
}

func TestFletcher32(t *testing.T) {
	if got := Fletcher32(nil); got != 0 {
		t.Errorf("empty = %#x", got)
	}
	// Words 0x0102 and 0x0304.
	if got, want := Fletcher32([]byte{1, 2, 3, 4}), uint32((0x0102+0x0102+0x0304)<<16|(0x0102+0x0304)); got != want {
		t.Errorf("Fletcher32 = %#x, want %#x", got, want)
	}
	if Fletcher32([]byte{1, 2, 3}) != Fletcher32([]byte{1, 2, 3, 0}) {
		t.Error("odd length is not zero padded")
	}
	// 0xffff words keep both sums at their folded maximum.
	if got := Fletcher32(bytes.Repeat([]byte{0xff}, 2000)); got != 0xffffffff {
		t.Errorf("all ones = %#x", got)
	}
}
