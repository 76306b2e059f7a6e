package dtype

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/heap"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

// ErrNoReader is returned for variable-length data decoded without a file
// to resolve it in.
var ErrNoReader = errors.New("dtype: variable-length data needs a file reader")

// Convert decodes n elements of dt into dest. It is ConvertWithReader
// without a file, so variable-length types fail.
func Convert(dt *message.Datatype, data []byte, n uint64, dest any) error {
	return ConvertWithReader(dt, data, n, dest, nil)
}

// ConvertWithReader decodes n elements of dt from data into dest, which
// must be a non-nil pointer. A slice receives every element; any other
// target receives the first, except an empty interface, which receives a
// []any when n is not 1. Variable-length elements are looked up through r.
func ConvertWithReader(dt *message.Datatype, data []byte, n uint64, dest any, r *binary.Reader) error {
	if dt == nil {
		return errors.New("dtype: nil datatype")
	}
	ptr := reflect.ValueOf(dest)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
		return fmt.Errorf("dtype: destination must be a non-nil pointer, got %T", dest)
	}
	size := uint64(dt.Size)
	if size == 0 {
		return errors.New("dtype: zero-sized datatype")
	}
	if uint64(len(data)) < n*size {
		return fmt.Errorf("dtype: %d bytes hold fewer than %d elements of %d bytes", len(data), n, size)
	}

	out := ptr.Elem()
	if size == 1 && out.Kind() == reflect.Slice && out.Type().Elem().Kind() == reflect.Uint8 && byteSized(dt) {
		out.SetBytes(append([]byte(nil), data[:n]...))
		return nil
	}

	d := decoder{r: r}
	at := func(i uint64) (any, error) {
		v, err := d.element(dt, data[i*size:(i+1)*size])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		return v, nil
	}

	switch {
	case out.Kind() == reflect.Slice, out.Kind() == reflect.Interface && n != 1:
		vals := make([]any, n)
		for i := range n {
			v, err := at(i)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		return store(out, vals)
	case n == 0:
		return errors.New("dtype: no element to read")
	}
	v, err := at(0)
	if err != nil {
		return err
	}
	return store(out, v)
}

// byteSized reports whether one-byte elements of dt are stored as is.
func byteSized(dt *message.Datatype) bool {
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield, message.ClassOpaque:
		return dt.BitOffset == 0
	}
	return false
}

// decoder turns element bytes into values, caching the global heap
// collections that variable-length elements point into.
type decoder struct {
	r     *binary.Reader
	heaps map[uint64]*heap.GlobalHeap
}

func (d *decoder) element(dt *message.Datatype, b []byte) (any, error) {
	switch dt.Class {
	case message.ClassFixedPoint:
		return integer(dt, b, dt.Signed)
	case message.ClassBitfield:
		return integer(dt, b, false)
	case message.ClassEnum:
		if dt.BaseType == nil {
			return nil, errors.New("dtype: enumeration without a base type")
		}
		return d.element(dt.BaseType, b)
	case message.ClassFloatPoint:
		order := ByteOrder(dt)
		switch len(b) {
		case 4:
			return float64(math.Float32frombits(order.Uint32(b))), nil
		case 8:
			return math.Float64frombits(order.Uint64(b)), nil
		}
		return nil, fmt.Errorf("dtype: unsupported %d-byte float", len(b))
	case message.ClassString:
		return text(b, dt.StringPadding), nil
	case message.ClassOpaque:
		return append([]byte(nil), b...), nil
	case message.ClassCompound:
		m := make(map[string]any, len(dt.Members))
		for _, mem := range dt.Members {
			if mem.Type == nil {
				continue
			}
			end := uint64(mem.ByteOffset) + uint64(mem.Type.Size)
			if end > uint64(len(b)) {
				return nil, fmt.Errorf("dtype: member %q ends at %d in a %d-byte compound", mem.Name, end, len(b))
			}
			v, err := d.element(mem.Type, b[mem.ByteOffset:end])
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", mem.Name, err)
			}
			m[mem.Name] = v
		}
		return m, nil
	case message.ClassArray:
		if dt.BaseType == nil || dt.BaseType.Size == 0 {
			return nil, errors.New("dtype: array without a base type")
		}
		count := uint64(1)
		for _, n := range dt.ArrayDims {
			count *= uint64(n)
		}
		return d.sequence(dt.BaseType, b, count)
	case message.ClassVarLen:
		obj, err := d.object(b)
		if err != nil {
			return nil, err
		}
		if dt.IsVarLenString {
			return strings.TrimRight(string(obj), "\x00"), nil
		}
		if dt.VarLenType == nil || dt.VarLenType.Size == 0 {
			return nil, errors.New("dtype: sequence without a base type")
		}
		return d.sequence(dt.VarLenType, obj, uint64(len(obj))/uint64(dt.VarLenType.Size))
	}
	return nil, fmt.Errorf("dtype: unsupported datatype class %d", dt.Class)
}

// sequence decodes count consecutive base elements.
func (d *decoder) sequence(base *message.Datatype, b []byte, count uint64) ([]any, error) {
	size := uint64(base.Size)
	if count*size > uint64(len(b)) {
		return nil, fmt.Errorf("dtype: %d elements of %d bytes overrun %d bytes", count, size, len(b))
	}
	vals := make([]any, count)
	for i := range count {
		v, err := d.element(base, b[i*size:(i+1)*size])
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// object resolves a variable-length reference: a 4-byte length followed by
// a global heap ID. A null collection address is an empty value.
func (d *decoder) object(b []byte) ([]byte, error) {
	if d.r == nil {
		return nil, ErrNoReader
	}
	if len(b) < 4 {
		return nil, fmt.Errorf("dtype: %d-byte variable-length reference", len(b))
	}
	id, err := heap.ParseGlobalHeapID(b[4:], d.r.Config())
	if err != nil {
		return nil, err
	}
	if id.CollectionAddress == 0 || d.r.IsUndefinedOffset(id.CollectionAddress) {
		return nil, nil
	}
	gh, ok := d.heaps[id.CollectionAddress]
	if !ok {
		if gh, err = heap.ReadGlobalHeap(d.r, id.CollectionAddress); err != nil {
			return nil, err
		}
		if d.heaps == nil {
			d.heaps = make(map[uint64]*heap.GlobalHeap)
		}
		d.heaps[id.CollectionAddress] = gh
	}
	return gh.Object(uint16(id.ObjectIndex))
}

// integer reads a fixed-point element of up to eight bytes, honoring the
// bit offset and precision of the type.
func integer(dt *message.Datatype, b []byte, signed bool) (any, error) {
	if len(b) == 0 || len(b) > 8 {
		return nil, fmt.Errorf("dtype: unsupported %d-byte integer", len(b))
	}
	var u uint64
	if dt.ByteOrder == message.OrderBE {
		for _, c := range b {
			u = u<<8 | uint64(c)
		}
	} else {
		for i := len(b) - 1; i >= 0; i-- {
			u = u<<8 | uint64(b[i])
		}
	}

	bits := uint(len(b) * 8)
	if p := uint(dt.BitPrecision); p > 0 && p+uint(dt.BitOffset) <= bits {
		u >>= dt.BitOffset
		if p < 64 {
			u &= 1<<p - 1
		}
		bits = p
	}
	if signed {
		shift := 64 - bits
		return int64(u<<shift) >> shift, nil
	}
	return u, nil
}

// text strips the padding of a fixed-length string.
func text(b []byte, pad message.StringPadding) string {
	switch pad {
	case message.PadSpacePad:
		return strings.TrimRight(string(b), " ")
	case message.PadNullPad:
		return strings.TrimRight(string(b), "\x00")
	}
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// store assigns a decoded value to dst, converting between numeric kinds
// and element by element between slices, arrays and structs.
func store(dst reflect.Value, v any) error {
	src := reflect.ValueOf(v)
	if !src.IsValid() {
		dst.SetZero()
		return nil
	}
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case numeric(src.Kind()) && numeric(dst.Kind()):
		dst.Set(src.Convert(dst.Type()))
	case src.Kind() == reflect.String && dst.Kind() == reflect.String:
		dst.SetString(src.String())
	case src.Kind() == reflect.Slice && dst.Kind() == reflect.Slice:
		s := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := range src.Len() {
			if err := store(s.Index(i), src.Index(i).Interface()); err != nil {
				return err
			}
		}
		dst.Set(s)
	case src.Kind() == reflect.Slice && dst.Kind() == reflect.Array && src.Len() == dst.Len():
		for i := range src.Len() {
			if err := store(dst.Index(i), src.Index(i).Interface()); err != nil {
				return err
			}
		}
	case src.Type() == mapType && dst.Kind() == reflect.Struct:
		return storeStruct(dst, v.(map[string]any))
	default:
		return fmt.Errorf("dtype: cannot store %T in %s", v, dst.Type())
	}
	return nil
}

// storeStruct fills the exported fields of dst from compound members,
// matching the h5 tag or else the field name. Members without a field are
// dropped.
func storeStruct(dst reflect.Value, m map[string]any) error {
	t := dst.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("h5")
		if name == "" {
			name = f.Name
		}
		v, ok := m[name]
		if !ok {
			continue
		}
		if err := store(dst.Field(i), v); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
