package hdf5

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/robert-malhotra/go-h5j/internal/message"
)

// createAndReopen builds a file with build, closes it and opens it for reading.
func createAndReopen(t *testing.T, build func(f *File)) *File {
	t.Helper()

	testFile := filepath.Join(t.TempDir(), "test.h5")
	f, err := Create(testFile)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	build(f)
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f2, err := Open(testFile)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { f2.Close() })
	return f2
}

func TestCreateNestedGroups(t *testing.T) {
	f := createAndReopen(t, func(f *File) {
		g1, err := f.Root().CreateGroup("level1")
		if err != nil {
			t.Fatalf("CreateGroup level1 failed: %v", err)
		}
		g2, err := g1.CreateGroup("level2")
		if err != nil {
			t.Fatalf("CreateGroup level2 failed: %v", err)
		}
		g3, err := g2.CreateGroup("level3")
		if err != nil {
			t.Fatalf("CreateGroup level3 failed: %v", err)
		}
		if g3.Path() != "/level1/level2/level3" {
			t.Errorf("Expected path '/level1/level2/level3', got '%s'", g3.Path())
		}
		if _, err := g3.CreateDataset("leaf", []int32{7}); err != nil {
			t.Fatalf("CreateDataset failed: %v", err)
		}
	})

	ds, err := f.OpenDataset("/level1/level2/level3/leaf")
	if err != nil {
		t.Fatalf("OpenDataset failed: %v", err)
	}
	var got []int32
	if err := ds.Read(&got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 1 || got[0] != 7 {
		t.Errorf("got %v, want [7]", got)
	}
}

func TestGroupAttributes(t *testing.T) {
	f := createAndReopen(t, func(f *File) {
		root := f.Root()
		if err := root.SetAttr("unit", "micron"); err != nil {
			t.Fatalf("SetAttr unit failed: %v", err)
		}
		if err := root.SetAttr("voxel_size", []float64{0.5, 0.5, 1.25}); err != nil {
			t.Fatalf("SetAttr voxel_size failed: %v", err)
		}

		ch, err := root.CreateGroup("Channels")
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if err := ch.SetAttr("pad_right", int64(4)); err != nil {
			t.Fatalf("SetAttr pad_right failed: %v", err)
		}
		if err := ch.SetAttr("pad_bottom", uint16(2)); err != nil {
			t.Fatalf("SetAttr pad_bottom failed: %v", err)
		}
		// Replacing keeps the original position.
		if err := ch.SetAttr("pad_right", int64(6)); err != nil {
			t.Fatalf("SetAttr pad_right again failed: %v", err)
		}
	})

	if got := f.Root().Attrs(); len(got) != 2 || got[0] != "unit" || got[1] != "voxel_size" {
		t.Errorf("root attrs = %v", got)
	}

	unit, err := f.ReadAttr("/@unit")
	if err != nil {
		t.Fatalf("ReadAttr unit failed: %v", err)
	}
	if unit != "micron" {
		t.Errorf("unit = %v, want micron", unit)
	}

	voxel, err := f.ReadAttr("/@voxel_size")
	if err != nil {
		t.Fatalf("ReadAttr voxel_size failed: %v", err)
	}
	vs, ok := voxel.([]float64)
	if !ok || len(vs) != 3 || vs[2] != 1.25 {
		t.Errorf("voxel_size = %#v", voxel)
	}

	ch, err := f.OpenGroup("Channels")
	if err != nil {
		t.Fatalf("OpenGroup failed: %v", err)
	}
	if got := ch.Attrs(); len(got) != 2 || got[0] != "pad_right" {
		t.Errorf("channel attrs = %v", got)
	}

	padRight, err := ch.Attr("pad_right").Value()
	if err != nil {
		t.Fatalf("pad_right Value failed: %v", err)
	}
	if padRight != int64(6) {
		t.Errorf("pad_right = %#v, want int64(6)", padRight)
	}

	padBottom := ch.Attr("pad_bottom")
	if !padBottom.IsUnsigned() {
		t.Error("pad_bottom should be unsigned")
	}
	v, err := padBottom.Value()
	if err != nil {
		t.Fatalf("pad_bottom Value failed: %v", err)
	}
	if v != uint64(2) {
		t.Errorf("pad_bottom = %#v, want uint64(2)", v)
	}
}

func TestUnsignedAttributeNotReinterpreted(t *testing.T) {
	f := createAndReopen(t, func(f *File) {
		if err := f.Root().SetAttr("big", uint64(1<<63+5)); err != nil {
			t.Fatalf("SetAttr failed: %v", err)
		}
		if err := f.Root().SetAttr("bytes", []uint8{200, 255}); err != nil {
			t.Fatalf("SetAttr failed: %v", err)
		}
	})

	big, err := f.ReadAttr("/@big")
	if err != nil {
		t.Fatalf("ReadAttr failed: %v", err)
	}
	if big != uint64(1<<63+5) {
		t.Errorf("big = %#v", big)
	}

	raw, err := f.ReadAttr("/@bytes")
	if err != nil {
		t.Fatalf("ReadAttr failed: %v", err)
	}
	b, ok := raw.([]uint64)
	if !ok || len(b) != 2 || b[0] != 200 || b[1] != 255 {
		t.Errorf("bytes = %#v, want []uint64{200, 255}", raw)
	}
}

func TestOpaqueDataset(t *testing.T) {
	blob := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0xff, 0x10}

	f := createAndReopen(t, func(f *File) {
		ch, err := f.Root().CreateGroup("Channels")
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if _, err := ch.CreateOpaqueDataset("Channel_0", blob, "h264"); err != nil {
			t.Fatalf("CreateOpaqueDataset failed: %v", err)
		}
	})

	ds, err := f.OpenDataset("/Channels/Channel_0")
	if err != nil {
		t.Fatalf("OpenDataset failed: %v", err)
	}
	if ds.DtypeClass() != message.ClassOpaque {
		t.Errorf("class = %d, want opaque", ds.DtypeClass())
	}
	if ds.OpaqueTag() != "h264" {
		t.Errorf("tag = %q, want h264", ds.OpaqueTag())
	}
	if ds.NumElements() != uint64(len(blob)) {
		t.Errorf("NumElements = %d, want %d", ds.NumElements(), len(blob))
	}

	got, err := ds.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("ReadRaw = %v, want %v", got, blob)
	}
}

func TestChunkedFilteredDatasets(t *testing.T) {
	payload := make([]byte, 10_000)
	for i := range payload {
		payload[i] = byte(i % 97)
	}
	samples := make([]uint16, 3000)
	for i := range samples {
		samples[i] = uint16(i * 7)
	}

	tests := []struct {
		name string
		opts []DatasetOption
	}{
		{"chunked", []DatasetOption{WithChunks(4096)}},
		{"deflate", []DatasetOption{WithDeflate(6)}},
		{"deflate_chunked", []DatasetOption{WithChunks(3000), WithDeflate(1)}},
		{"zstd", []DatasetOption{WithChunks(2048), WithZstd(3)}},
		{"fletcher32", []DatasetOption{WithChunks(5000), WithFletcher32()}},
	}

	f := createAndReopen(t, func(f *File) {
		for _, tt := range tests {
			if _, err := f.Root().CreateOpaqueDataset(tt.name, payload, "", tt.opts...); err != nil {
				t.Fatalf("CreateOpaqueDataset %s failed: %v", tt.name, err)
			}
		}
		if _, err := f.Root().CreateDataset("samples", samples, WithChunks(1000), WithShuffle(2), WithDeflate(4)); err != nil {
			t.Fatalf("CreateDataset samples failed: %v", err)
		}
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := f.OpenDataset(tt.name)
			if err != nil {
				t.Fatalf("OpenDataset failed: %v", err)
			}
			if ds.LayoutClass() != message.LayoutChunked {
				t.Errorf("layout = %d, want chunked", ds.LayoutClass())
			}
			got, err := ds.ReadRaw()
			if err != nil {
				t.Fatalf("ReadRaw failed: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("payload mismatch: got %d bytes", len(got))
			}
		})
	}

	ds, err := f.OpenDataset("samples")
	if err != nil {
		t.Fatalf("OpenDataset samples failed: %v", err)
	}
	var got []uint16
	if err := ds.Read(&got); err != nil {
		t.Fatalf("Read samples failed: %v", err)
	}
	if len(got) != len(samples) || got[2999] != samples[2999] || got[1234] != samples[1234] {
		t.Errorf("samples mismatch")
	}
}

func TestHeaderRewritesReuseSpace(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "reuse.h5")
	f, err := Create(testFile)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ch, err := f.Root().CreateGroup("Channels")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		if _, err := ch.CreateOpaqueDataset(name, []byte(name), ""); err != nil {
			t.Fatalf("CreateOpaqueDataset failed: %v", err)
		}
	}

	st := f.AllocStats()
	if st.BytesFreed == 0 {
		t.Error("expected rewritten headers to be freed")
	}
	if err := f.validateAllocations(); err != nil {
		t.Errorf("validateAllocations: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f2, err := Open(testFile)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f2.Close()

	g, err := f2.OpenGroup("/Channels")
	if err != nil {
		t.Fatalf("OpenGroup failed: %v", err)
	}
	members, err := g.Members()
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	want := []string{"a", "b", "c", "d"}
	if len(members) != len(want) {
		t.Fatalf("members = %v, want %v", members, want)
	}
	for i := range want {
		if members[i] != want[i] {
			t.Errorf("members[%d] = %q, want %q", i, members[i], want[i])
		}
	}
}

func TestReadOnlyFileRejectsWrites(t *testing.T) {
	f := createAndReopen(t, func(f *File) {})

	if _, err := f.Root().CreateGroup("x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("CreateGroup err = %v, want ErrReadOnly", err)
	}
	if err := f.Root().SetAttr("x", 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("SetAttr err = %v, want ErrReadOnly", err)
	}
}

func TestVarStringAttributes(t *testing.T) {
	f := createAndReopen(t, func(f *File) {
		if err := f.Root().SetVarStringAttr("unit", "nm"); err != nil {
			t.Fatalf("SetVarStringAttr failed: %v", err)
		}
		if err := f.Root().SetVarStringAttr("names", "red", "", "blue"); err != nil {
			t.Fatalf("SetVarStringAttr failed: %v", err)
		}
	})

	unit, err := f.ReadAttr("/@unit")
	if err != nil {
		t.Fatalf("ReadAttr unit failed: %v", err)
	}
	if unit != "nm" {
		t.Errorf("unit = %#v, want nm", unit)
	}

	names, err := f.Root().Attr("names").ReadString()
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	want := []string{"red", "", "blue"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestNarrowAddresses(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "narrow.h5")
	f, err := Create(testFile, WithOffsetSize(4), WithLengthSize(4))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	g, err := f.Root().CreateGroup("Channels")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if _, err := g.CreateDataset("grid", [][]int16{{1, -2, 3}, {4, 5, -6}}); err != nil {
		t.Fatalf("CreateDataset failed: %v", err)
	}
	if _, err := g.CreateOpaqueDataset("blob", make([]byte, 300), "", WithChunks(128), WithDeflate(5)); err != nil {
		t.Fatalf("CreateOpaqueDataset failed: %v", err)
	}
	if err := f.Root().SetVarStringAttr("unit", "um"); err != nil {
		t.Fatalf("SetVarStringAttr failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f2, err := Open(testFile)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f2.Close()
	if f2.Version() != 3 {
		t.Errorf("superblock version = %d, want 3", f2.Version())
	}

	ds, err := f2.OpenDataset("/Channels/grid")
	if err != nil {
		t.Fatalf("OpenDataset failed: %v", err)
	}
	if s := ds.Shape(); len(s) != 2 || s[0] != 2 || s[1] != 3 {
		t.Errorf("shape = %v, want [2 3]", s)
	}
	if ds.Name() != "grid" {
		t.Errorf("name = %q", ds.Name())
	}
	if typ, err := ds.GoType(); err != nil || typ.Kind().String() != "int16" {
		t.Errorf("GoType = %v, %v", typ, err)
	}
	var got []int16
	if err := ds.Read(&got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 6 || got[1] != -2 || got[5] != -6 {
		t.Errorf("grid = %v", got)
	}

	blob, err := f2.OpenDataset("/Channels/blob")
	if err != nil {
		t.Fatalf("OpenDataset failed: %v", err)
	}
	raw, err := blob.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if len(raw) != 300 {
		t.Errorf("blob is %d bytes, want 300", len(raw))
	}

	unit, err := f2.ReadAttr("/@unit")
	if err != nil || unit != "um" {
		t.Errorf("unit = %#v, %v", unit, err)
	}
}
