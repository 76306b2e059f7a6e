package message

// DatatypeClass is the class nibble of a datatype message.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

type ByteOrder uint8

const (
	OrderLE   ByteOrder = 0
	OrderBE   ByteOrder = 1
	OrderNone ByteOrder = 3
)

type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype describes the element type of a dataset or attribute. Which
// fields are meaningful depends on Class.
type Datatype struct {
	Class     DatatypeClass
	ClassBits uint32 // the 24 class-specific flag bits
	Size      uint32

	ByteOrder    ByteOrder
	Signed       bool
	BitOffset    uint16
	BitPrecision uint16

	// Properties holds the raw floating-point layout fields.
	Properties []byte

	StringPadding StringPadding
	CharSet       CharacterSet

	Tag string // opaque

	Members []CompoundMember

	// BaseType is the element type of an array or the storage type of an
	// enumeration.
	BaseType  *Datatype
	ArrayDims []uint32
	Enum      []EnumMember

	VarLenType     *Datatype
	IsVarLenString bool
}

// CompoundMember is one field of a compound type.
type CompoundMember struct {
	Name       string
	ByteOffset uint32
	Type       *Datatype
}

// EnumMember pairs an enumeration name with its encoded value.
type EnumMember struct {
	Name  string
	Value []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

func decodeDatatype(c *cursor) *Datatype {
	head := c.u8()
	dt := &Datatype{
		Class:     DatatypeClass(head & 0x0f),
		ClassBits: uint32(c.uint(3)),
		Size:      c.u32(),
	}
	version := head >> 4
	bits := dt.ClassBits

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Signed = bits&0x08 != 0
		dt.BitOffset = c.u16()
		dt.BitPrecision = c.u16()

	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Properties = c.clone(12)

	case ClassTime:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.BitPrecision = c.u16()

	case ClassString:
		dt.StringPadding = StringPadding(bits & 0x0f)
		dt.CharSet = CharacterSet(bits >> 4 & 0x0f)

	case ClassOpaque:
		dt.ByteOrder = OrderNone
		dt.Tag = c.fixedString(int(bits & 0xff))

	case ClassCompound:
		n := int(bits & 0xffff)
		dt.Members = make([]CompoundMember, 0, n)
		for i := 0; i < n && c.err == nil; i++ {
			dt.Members = append(dt.Members, decodeMember(c, version, dt.Size))
		}

	case ClassReference:

	case ClassEnum:
		n := int(bits & 0xffff)
		dt.BaseType = decodeDatatype(c)
		dt.ByteOrder = dt.BaseType.ByteOrder
		dt.Signed = dt.BaseType.Signed
		dt.Enum = make([]EnumMember, n)
		for i := range dt.Enum {
			start := c.off
			dt.Enum[i].Name = c.cString()
			if version < 3 {
				c.pad(start)
			}
		}
		for i := range dt.Enum {
			dt.Enum[i].Value = c.clone(int(dt.BaseType.Size))
		}

	case ClassVarLen:
		dt.IsVarLenString = bits&0x0f == 1
		dt.VarLenType = decodeDatatype(c)

	case ClassArray:
		rank := int(c.u8())
		if version < 3 {
			c.skip(3)
		}
		dt.ArrayDims = make([]uint32, rank)
		for i := range dt.ArrayDims {
			dt.ArrayDims[i] = c.u32()
		}
		if version < 3 {
			c.skip(4 * rank) // permutation indices
		}
		dt.BaseType = decodeDatatype(c)

	default:
		c.fail("unknown datatype class %d", dt.Class)
	}
	return dt
}

func decodeMember(c *cursor, version uint8, size uint32) CompoundMember {
	start := c.off
	m := CompoundMember{Name: c.cString()}
	switch version {
	case 1:
		c.pad(start)
		m.ByteOffset = c.u32()
		// dimensionality, reserved, permutation, reserved and four dimensions
		c.skip(1 + 3 + 4 + 4 + 16)
	case 2:
		c.pad(start)
		m.ByteOffset = c.u32()
	default:
		m.ByteOffset = uint32(c.uint(offsetWidth(size)))
	}
	m.Type = decodeDatatype(c)
	return m
}

// offsetWidth is the number of bytes a version 3 compound uses for member
// offsets: just enough to hold the compound size.
func offsetWidth(size uint32) int {
	n := 1
	for size > 0xff {
		size >>= 8
		n++
	}
	return n
}
