package heap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/robert-malhotra/go-h5j/internal/binary"
)

func TestReadLocalHeap(t *testing.T) {
	out := &growBuffer{}
	w := binary.NewWriter(out, binary.DefaultConfig())
	data := []byte("\x00Channels\x00Channel_0\x00")

	w.WriteBytes([]byte("HEAP"))
	w.WriteZeros(4)
	w.WriteLength(uint64(len(data)))
	w.WriteLength(^uint64(0))
	w.WriteOffset(64)
	w.At(64).WriteBytes(data)

	h, err := ReadLocalHeap(binary.NewReader(bytes.NewReader(out.buf), binary.DefaultConfig()), 0)
	if err != nil {
		t.Fatalf("ReadLocalHeap failed: %v", err)
	}
	if h.DataAddress != 64 {
		t.Errorf("DataAddress = %d", h.DataAddress)
	}
	tests := []struct {
		offset uint64
		want   string
	}{
		{0, ""},
		{1, "Channels"},
		{10, "Channel_0"},
		{14, "nel_0"},
		{500, ""},
	}
	for _, tt := range tests {
		if got := h.Name(tt.offset); got != tt.want {
			t.Errorf("Name(%d) = %q, want %q", tt.offset, got, tt.want)
		}
	}
}

func TestReadLocalHeapErrors(t *testing.T) {
	cfg := binary.DefaultConfig()
	bad := append([]byte("HEAX"), make([]byte, 40)...)
	if _, err := ReadLocalHeap(binary.NewReader(bytes.NewReader(bad), cfg), 0); err == nil {
		t.Error("expected error for bad signature")
	}
	v1 := append([]byte("HEAP\x01"), make([]byte, 40)...)
	if _, err := ReadLocalHeap(binary.NewReader(bytes.NewReader(v1), cfg), 0); err == nil {
		t.Error("expected error for version 1")
	}
}

func TestParseGlobalHeapID(t *testing.T) {
	b := []byte{0x00, 0x10, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0}
	id, err := ParseGlobalHeapID(b, binary.DefaultConfig())
	if err != nil {
		t.Fatalf("ParseGlobalHeapID failed: %v", err)
	}
	if id.CollectionAddress != 0x1000 || id.ObjectIndex != 3 {
		t.Errorf("id = %+v", id)
	}

	cfg := binary.DefaultConfig()
	cfg.OffsetSize = 4
	id, err = ParseGlobalHeapID([]byte{0x20, 0, 0, 0, 1, 0, 0, 0}, cfg)
	if err != nil || id.CollectionAddress != 0x20 || id.ObjectIndex != 1 {
		t.Errorf("4-byte id = %+v, %v", id, err)
	}

	if _, err := ParseGlobalHeapID(b[:6], binary.DefaultConfig()); err == nil {
		t.Error("expected error for short heap ID")
	}
}

func TestReadGlobalHeapErrors(t *testing.T) {
	r := binary.NewReader(bytes.NewReader(make([]byte, 64)), binary.DefaultConfig())
	if _, err := ReadGlobalHeap(r, 0); err == nil {
		t.Error("expected error for address 0")
	}
	if _, err := ReadGlobalHeap(r, ^uint64(0)); err == nil {
		t.Error("expected error for undefined address")
	}
	if _, err := ReadGlobalHeap(r, 8); err == nil {
		t.Error("expected error for missing signature")
	}
}

func TestGlobalHeapMissingObject(t *testing.T) {
	gh := &GlobalHeap{objects: map[uint16][]byte{1: []byte("nm\x00\x00")}}
	if s, err := gh.Text(1); err != nil || s != "nm" {
		t.Errorf("Text(1) = %q, %v", s, err)
	}
	if _, err := gh.Object(2); !errors.Is(err, ErrNoObject) {
		t.Errorf("Object(2) err = %v", err)
	}

	obj, _ := gh.Object(1)
	obj[0] = 'X'
	if s, _ := gh.Text(1); s != "nm" {
		t.Error("Object returned shared storage")
	}
}
