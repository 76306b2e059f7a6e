package dtype

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-h5j/internal/message"
)

// Encode packs src, a value or an arbitrarily nested slice or array of
// values, into elements of dt in row-major order. Fixed-point, float and
// fixed-length string types can be encoded.
func Encode(dt *message.Datatype, src any) ([]byte, error) {
	if dt == nil {
		return nil, errors.New("dtype: nil datatype")
	}
	return appendValue(nil, dt, reflect.ValueOf(src))
}

func appendValue(b []byte, dt *message.Datatype, v reflect.Value) ([]byte, error) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return appendValue(b, dt, v.Elem())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 &&
			dt.Class == message.ClassFixedPoint && dt.Size == 1 {
			return append(b, v.Bytes()...), nil
		}
		var err error
		for i := range v.Len() {
			if b, err = appendValue(b, dt, v.Index(i)); err != nil {
				return nil, err
			}
		}
		return b, nil
	case reflect.Invalid:
		return nil, errors.New("dtype: cannot encode nil")
	}

	size := int(dt.Size)
	switch dt.Class {
	case message.ClassFixedPoint:
		var u uint64
		switch {
		case v.CanInt():
			u = uint64(v.Int())
		case v.CanUint():
			u = v.Uint()
		default:
			return nil, fmt.Errorf("dtype: cannot encode %s as an integer", v.Type())
		}
		return appendUint(b, dt, u), nil
	case message.ClassFloatPoint:
		if !v.CanFloat() {
			return nil, fmt.Errorf("dtype: cannot encode %s as a float", v.Type())
		}
		switch size {
		case 4:
			return appendUint(b, dt, uint64(math.Float32bits(float32(v.Float())))), nil
		case 8:
			return appendUint(b, dt, math.Float64bits(v.Float())), nil
		}
		return nil, fmt.Errorf("dtype: cannot encode %d-byte floats", size)
	case message.ClassString:
		if v.Kind() != reflect.String {
			return nil, fmt.Errorf("dtype: cannot encode %s as a string", v.Type())
		}
		field := make([]byte, size)
		n := copy(field, v.String())
		if dt.StringPadding == message.PadSpacePad {
			for i := n; i < size; i++ {
				field[i] = ' '
			}
		}
		return append(b, field...), nil
	}
	return nil, fmt.Errorf("dtype: cannot encode datatype class %d", dt.Class)
}

// appendUint appends the low dt.Size bytes of u in dt's byte order.
func appendUint(b []byte, dt *message.Datatype, u uint64) []byte {
	n := int(dt.Size)
	for i := range n {
		shift := 8 * i
		if dt.ByteOrder == message.OrderBE {
			shift = 8 * (n - 1 - i)
		}
		b = append(b, byte(u>>shift))
	}
	return b
}

// GoTypeToDatatype returns the little-endian datatype for elements of t.
// Pointers, slices and arrays are looked through to their element type.
// Strings have no fixed size and are rejected.
func GoTypeToDatatype(t reflect.Type) (*message.Datatype, error) {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return message.NewFixedPointDatatype(uint32(t.Size()), true, message.OrderLE), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return message.NewFixedPointDatatype(uint32(t.Size()), false, message.OrderLE), nil
	case reflect.Float32, reflect.Float64:
		return message.NewFloatDatatype(uint32(t.Size()), message.OrderLE), nil
	}
	return nil, fmt.Errorf("dtype: unsupported Go type %v", t)
}
