package message

import "fmt"

func (m *Datatype) encode(e *encoder) {
	version := uint8(1)
	if m.Class == ClassArray {
		version = 3
	}
	e.u8(uint8(m.Class) | version<<4)
	e.uint(uint64(m.ClassBits), 3)
	e.u32(m.Size)

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)
	case ClassFloatPoint:
		props := m.Properties
		if len(props) != 12 {
			props = ieeeLayout(m.Size)
		}
		e.bytes(props)
	case ClassString:
	case ClassOpaque:
		e.bytes(opaqueTag(m.Tag))
	case ClassVarLen:
		m.VarLenType.encode(e)
	case ClassArray:
		e.u8(uint8(len(m.ArrayDims)))
		for _, d := range m.ArrayDims {
			e.u32(d)
		}
		m.BaseType.encode(e)
	default:
		e.fail(fmt.Errorf("datatype message: cannot encode class %d", m.Class))
	}
}

// ieeeLayout returns the bit offset, precision, exponent and mantissa
// fields plus exponent bias of an IEEE 754 value of size bytes.
func ieeeLayout(size uint32) []byte {
	switch size {
	case 4:
		return []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	case 8:
		return []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xff, 0x03, 0, 0}
	}
	return make([]byte, 12)
}

// NewFixedPointDatatype returns an integer type of size bytes.
func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	bits := uint32(order)
	if signed {
		bits |= 0x08
	}
	return &Datatype{
		Class:        ClassFixedPoint,
		ClassBits:    bits,
		Size:         size,
		ByteOrder:    order,
		Signed:       signed,
		BitPrecision: uint16(size * 8),
	}
}

// NewFloatDatatype returns an IEEE 754 type of 4 or 8 bytes.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	// mantissa normalization "implied" plus the sign bit position
	bits := uint32(order) | 0x20 | (size*8-1)<<8
	return &Datatype{
		Class:      ClassFloatPoint,
		ClassBits:  bits,
		Size:       size,
		ByteOrder:  order,
		Properties: ieeeLayout(size),
	}
}

// NewStringDatatype returns a fixed-length string type.
func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Class:         ClassString,
		ClassBits:     uint32(padding) | uint32(charset)<<4,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
	}
}

// NewVarLenStringDatatype returns a variable-length string type whose
// elements are global heap references.
func NewVarLenStringDatatype(charset CharacterSet) *Datatype {
	return &Datatype{
		Class:          ClassVarLen,
		ClassBits:      1 | uint32(charset)<<8,
		Size:           16,
		IsVarLenString: true,
		VarLenType:     NewStringDatatype(1, PadNullTerm, charset),
	}
}

// NewOpaqueDatatype returns an opaque type of size bytes labelled tag.
func NewOpaqueDatatype(size uint32, tag string) *Datatype {
	return &Datatype{
		Class:     ClassOpaque,
		ClassBits: uint32(len(opaqueTag(tag))),
		Size:      size,
		ByteOrder: OrderNone,
		Tag:       tag,
	}
}

// opaqueTag NUL-terminates tag and pads it to a multiple of 8 bytes.
func opaqueTag(tag string) []byte {
	b := make([]byte, (len(tag)+8)&^7)
	copy(b, tag)
	return b
}
