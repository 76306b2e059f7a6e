package dtype

import (
	"bytes"
	stdbin "encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/heap"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

func u16(order message.ByteOrder) *message.Datatype {
	return message.NewFixedPointDatatype(2, false, order)
}

func TestGoType(t *testing.T) {
	tests := []struct {
		name string
		dt   *message.Datatype
		want reflect.Type
	}{
		{"int8", message.NewFixedPointDatatype(1, true, message.OrderLE), reflect.TypeOf(int8(0))},
		{"uint32", message.NewFixedPointDatatype(4, false, message.OrderBE), reflect.TypeOf(uint32(0))},
		{"float32", message.NewFloatDatatype(4, message.OrderLE), reflect.TypeOf(float32(0))},
		{"string", message.NewStringDatatype(8, message.PadNullTerm, message.CharsetASCII), reflect.TypeOf("")},
		{"vlen string", message.NewVarLenStringDatatype(message.CharsetUTF8), reflect.TypeOf("")},
		{"opaque", message.NewOpaqueDatatype(4, "h5j"), reflect.TypeOf([]byte(nil))},
		{"compound", &message.Datatype{Class: message.ClassCompound, Size: 2}, reflect.TypeOf(map[string]any(nil))},
		{"array", &message.Datatype{Class: message.ClassArray, Size: 6, BaseType: u16(message.OrderLE), ArrayDims: []uint32{3}}, reflect.TypeOf([]uint16(nil))},
		{"enum", &message.Datatype{Class: message.ClassEnum, Size: 2, BaseType: u16(message.OrderLE)}, reflect.TypeOf(uint16(0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoType(tt.dt)
			if err != nil {
				t.Fatalf("GoType: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := GoType(message.NewFixedPointDatatype(3, true, message.OrderLE)); err == nil {
		t.Error("3-byte integer should have no Go type")
	}
	if _, err := GoType(&message.Datatype{Class: message.ClassReference, Size: 8}); err == nil {
		t.Error("references should have no Go type")
	}
}

func TestConvertIntegers(t *testing.T) {
	dt := message.NewFixedPointDatatype(2, true, message.OrderBE)
	data := []byte{0xff, 0xfe, 0x01, 0x00, 0x00, 0x07}

	var ints []int64
	if err := Convert(dt, data, 3, &ints); err != nil {
		t.Fatal(err)
	}
	if want := []int64{-2, 256, 7}; !reflect.DeepEqual(ints, want) {
		t.Errorf("ints = %v, want %v", ints, want)
	}

	var floats []float64
	if err := Convert(dt, data, 3, &floats); err != nil {
		t.Fatal(err)
	}
	if want := []float64{-2, 256, 7}; !reflect.DeepEqual(floats, want) {
		t.Errorf("floats = %v, want %v", floats, want)
	}

	var first int32
	if err := Convert(dt, data, 3, &first); err != nil || first != -2 {
		t.Errorf("scalar = %d, %v; want -2", first, err)
	}
}

func TestBitPrecision(t *testing.T) {
	// 12 significant bits starting at bit 2 of a little-endian word.
	dt := message.NewFixedPointDatatype(2, true, message.OrderLE)
	dt.BitOffset, dt.BitPrecision = 2, 12
	var got []int16
	if err := Convert(dt, []byte{0xfc, 0x3f, 0x04, 0x00}, 2, &got); err != nil {
		t.Fatal(err)
	}
	if want := []int16{-1, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestConvertBytes(t *testing.T) {
	dt := message.NewOpaqueDatatype(1, "stream")
	src := []byte{1, 2, 3, 4}
	var got []byte
	if err := Convert(dt, src, 4, &got); err != nil {
		t.Fatal(err)
	}
	src[0] = 9
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("got %v; must be a copy of the source", got)
	}

	wide := message.NewOpaqueDatatype(2, "pairs")
	var pairs [][2]byte
	if err := Convert(wide, []byte{1, 2, 3, 4}, 2, &pairs); err != nil {
		t.Fatal(err)
	}
	if want := [][2]byte{{1, 2}, {3, 4}}; !reflect.DeepEqual(pairs, want) {
		t.Errorf("pairs = %v, want %v", pairs, want)
	}
}

func TestConvertFloats(t *testing.T) {
	dt := message.NewFloatDatatype(4, message.OrderBE)
	data := stdbin.BigEndian.AppendUint32(nil, math.Float32bits(1.5))
	data = stdbin.BigEndian.AppendUint32(data, math.Float32bits(-0.25))
	var got []float32
	if err := Convert(dt, data, 2, &got); err != nil {
		t.Fatal(err)
	}
	if want := []float32{1.5, -0.25}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestConvertStrings(t *testing.T) {
	tests := []struct {
		pad  message.StringPadding
		data string
		want []string
	}{
		{message.PadNullTerm, "ab\x00xyz\x00\x00", []string{"ab", "yz"}},
		{message.PadNullPad, "ab\x00\x00xyz\x00", []string{"ab", "xyz"}},
		{message.PadSpacePad, "ab  xyz ", []string{"ab", "xyz"}},
	}
	for _, tt := range tests {
		dt := message.NewStringDatatype(4, tt.pad, message.CharsetASCII)
		var got []string
		if err := Convert(dt, []byte(tt.data), 2, &got); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("padding %d: got %q, want %q", tt.pad, got, tt.want)
		}
	}
}

func compound() *message.Datatype {
	return &message.Datatype{
		Class: message.ClassCompound,
		Size:  12,
		Members: []message.CompoundMember{
			{Name: "channel", ByteOffset: 0, Type: message.NewFixedPointDatatype(4, false, message.OrderLE)},
			{Name: "gain", ByteOffset: 4, Type: message.NewFloatDatatype(8, message.OrderLE)},
		},
	}
}

func TestConvertCompound(t *testing.T) {
	data := stdbin.LittleEndian.AppendUint32(nil, 3)
	data = stdbin.LittleEndian.AppendUint64(data, math.Float64bits(0.5))

	var maps []map[string]any
	if err := Convert(compound(), data, 1, &maps); err != nil {
		t.Fatal(err)
	}
	if want := []map[string]any{{"channel": uint64(3), "gain": 0.5}}; !reflect.DeepEqual(maps, want) {
		t.Errorf("maps = %v, want %v", maps, want)
	}

	var s struct {
		Channel int     `h5:"channel"`
		Gain    float32 `h5:"gain"`
		Skipped string
	}
	if err := Convert(compound(), data, 1, &s); err != nil {
		t.Fatal(err)
	}
	if s.Channel != 3 || s.Gain != 0.5 || s.Skipped != "" {
		t.Errorf("struct = %+v", s)
	}

	short := compound()
	short.Size = 8
	if err := Convert(short, data[:8], 1, &maps); err == nil {
		t.Error("member past the end of the compound should fail")
	}
}

func TestConvertArray(t *testing.T) {
	dt := &message.Datatype{Class: message.ClassArray, Size: 4, BaseType: u16(message.OrderLE), ArrayDims: []uint32{2}}
	data := []byte{1, 0, 2, 0, 3, 0, 4, 0}

	var slices [][]uint16
	if err := Convert(dt, data, 2, &slices); err != nil {
		t.Fatal(err)
	}
	if want := [][]uint16{{1, 2}, {3, 4}}; !reflect.DeepEqual(slices, want) {
		t.Errorf("slices = %v, want %v", slices, want)
	}

	var fixed [][2]int
	if err := Convert(dt, data, 2, &fixed); err != nil {
		t.Fatal(err)
	}
	if want := [][2]int{{1, 2}, {3, 4}}; !reflect.DeepEqual(fixed, want) {
		t.Errorf("fixed = %v, want %v", fixed, want)
	}

	var any1 any
	if err := Convert(dt, data, 2, &any1); err != nil {
		t.Fatal(err)
	}
	if want := []any{[]any{uint64(1), uint64(2)}, []any{uint64(3), uint64(4)}}; !reflect.DeepEqual(any1, want) {
		t.Errorf("interface = %v, want %v", any1, want)
	}
}

type growBuffer struct{ buf []byte }

func (g *growBuffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(g.buf) {
		g.buf = append(g.buf, make([]byte, end-len(g.buf))...)
	}
	copy(g.buf[off:], p)
	return len(p), nil
}

func TestVarLenStrings(t *testing.T) {
	cfg := binary.DefaultConfig()
	out := &growBuffer{}
	next := uint64(64)
	ghw := heap.NewGlobalHeapWriter(binary.NewWriter(out, cfg), func(size int64) uint64 {
		addr := next
		next += uint64(size)
		return addr
	})
	ghw.AddString("um")
	ghw.AddString("C1,C2")
	_, ids, err := ghw.Write()
	if err != nil {
		t.Fatal(err)
	}

	var refs []byte
	for i, id := range ids {
		refs = stdbin.LittleEndian.AppendUint32(refs, uint32(len([]string{"um", "C1,C2"}[i])))
		refs = stdbin.LittleEndian.AppendUint64(refs, id.CollectionAddress)
		refs = stdbin.LittleEndian.AppendUint32(refs, id.ObjectIndex)
	}
	refs = append(refs, make([]byte, 16)...) // null reference

	dt := message.NewVarLenStringDatatype(message.CharsetUTF8)
	r := binary.NewReader(bytes.NewReader(out.buf), cfg)
	var got []string
	if err := ConvertWithReader(dt, refs, 3, &got, r); err != nil {
		t.Fatal(err)
	}
	if want := []string{"um", "C1,C2", ""}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}

	if err := Convert(dt, refs, 3, &got); !errors.Is(err, ErrNoReader) {
		t.Errorf("err = %v, want ErrNoReader", err)
	}
}

func TestConvertErrors(t *testing.T) {
	dt := u16(message.OrderLE)
	var v []uint16
	if err := Convert(dt, []byte{1, 0}, 1, v); err == nil {
		t.Error("non-pointer destination should fail")
	}
	if err := Convert(dt, []byte{1, 0}, 2, &v); err == nil {
		t.Error("short data should fail")
	}
	var s []string
	if err := Convert(dt, []byte{1, 0}, 1, &s); err == nil {
		t.Error("integers should not store into strings")
	}
	var one uint16
	if err := Convert(dt, nil, 0, &one); err == nil {
		t.Error("scalar read of zero elements should fail")
	}
}

func TestEncode(t *testing.T) {
	be := message.NewFixedPointDatatype(2, true, message.OrderBE)
	got, err := Encode(be, [][]int16{{1, -1}, {256, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0, 1, 0xff, 0xff, 1, 0, 0, 2}; !bytes.Equal(got, want) {
		t.Errorf("nested = %x, want %x", got, want)
	}

	var back []int16
	if err := Convert(be, got, 4, &back); err != nil {
		t.Fatal(err)
	}
	if want := []int16{1, -1, 256, 2}; !reflect.DeepEqual(back, want) {
		t.Errorf("round trip = %v, want %v", back, want)
	}

	f := message.NewFloatDatatype(8, message.OrderLE)
	got, err = Encode(f, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Float64frombits(stdbin.LittleEndian.Uint64(got)) != 2.5 {
		t.Errorf("float = %x", got)
	}

	str := message.NewStringDatatype(4, message.PadSpacePad, message.CharsetASCII)
	if got, err = Encode(str, []string{"ab", "abcdef"}); err != nil || string(got) != "ab  abcd" {
		t.Errorf("strings = %q, %v", got, err)
	}

	raw := []byte{5, 6, 7}
	if got, err = Encode(message.NewFixedPointDatatype(1, false, message.OrderLE), raw); err != nil || !bytes.Equal(got, raw) {
		t.Errorf("bytes = %v, %v", got, err)
	}

	if _, err := Encode(be, "text"); err == nil {
		t.Error("string into integers should fail")
	}
	if _, err := Encode(message.NewOpaqueDatatype(1, "x"), 3); err == nil {
		t.Error("opaque encoding should fail")
	}
}

func TestGoTypeToDatatype(t *testing.T) {
	dt, err := GoTypeToDatatype(reflect.TypeOf([][]uint16(nil)))
	if err != nil {
		t.Fatal(err)
	}
	if dt.Class != message.ClassFixedPoint || dt.Size != 2 || dt.Signed {
		t.Errorf("[][]uint16 -> %+v", dt)
	}
	dt, err = GoTypeToDatatype(reflect.TypeOf(float32(0)))
	if err != nil || dt.Class != message.ClassFloatPoint || dt.Size != 4 {
		t.Errorf("float32 -> %+v, %v", dt, err)
	}
	if _, err := GoTypeToDatatype(reflect.TypeOf("")); err == nil {
		t.Error("strings should be rejected")
	}
}
