// Package dtype maps HDF5 datatypes to Go values.
//
// Reading goes through one decoded value per element: integers widen to
// int64 or uint64, floats to float64, strings lose their padding, opaque
// elements become byte slices, compounds become maps keyed by member name
// and arrays become slices. Convert then stores those values in whatever
// the caller passed, converting between numeric kinds as Go would.
package dtype

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-h5j/internal/message"
)

var (
	bytesType = reflect.TypeOf([]byte(nil))
	mapType   = reflect.TypeOf(map[string]any(nil))
)

// GoType returns the Go type a single element of dt reads as.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("dtype: nil datatype")
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		return intType(dt.Size, dt.Signed)
	case message.ClassBitfield:
		return intType(dt.Size, false)
	case message.ClassEnum:
		return GoType(dt.BaseType)
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
		return nil, fmt.Errorf("dtype: no Go type for %d-byte floats", dt.Size)
	case message.ClassString:
		return reflect.TypeOf(""), nil
	case message.ClassOpaque:
		return bytesType, nil
	case message.ClassCompound:
		return mapType, nil
	case message.ClassArray:
		base, err := GoType(dt.BaseType)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(base), nil
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return reflect.TypeOf(""), nil
		}
		base, err := GoType(dt.VarLenType)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(base), nil
	}
	return nil, fmt.Errorf("dtype: no Go type for class %d", dt.Class)
}

// intTypes holds the unsigned and signed Go type of each integer size.
var intTypes = map[uint32][2]reflect.Type{
	1: {reflect.TypeOf(uint8(0)), reflect.TypeOf(int8(0))},
	2: {reflect.TypeOf(uint16(0)), reflect.TypeOf(int16(0))},
	4: {reflect.TypeOf(uint32(0)), reflect.TypeOf(int32(0))},
	8: {reflect.TypeOf(uint64(0)), reflect.TypeOf(int64(0))},
}

func intType(size uint32, signed bool) (reflect.Type, error) {
	t, ok := intTypes[size]
	if !ok {
		return nil, fmt.Errorf("dtype: no Go type for %d-byte integers", size)
	}
	if signed {
		return t[1], nil
	}
	return t[0], nil
}

// ByteOrder returns the byte order of dt's elements. Types without one
// read as little endian.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
