// Package message decodes and encodes the header messages attached to HDF5
// objects: dataspaces, datatypes, storage layouts, filter pipelines,
// attributes and links.
//
// Only the message types an H5J container needs are decoded into structs.
// Everything else comes back as *Unknown so callers can still list it.
package message

import (
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/binary"
)

// Type identifies a header message.
type Type uint16

const (
	TypeNIL                      Type = 0x00
	TypeDataspace                Type = 0x01
	TypeLinkInfo                 Type = 0x02
	TypeDatatype                 Type = 0x03
	TypeFillValueOld             Type = 0x04
	TypeFillValue                Type = 0x05
	TypeLink                     Type = 0x06
	TypeExternalDataFiles        Type = 0x07
	TypeDataLayout               Type = 0x08
	TypeBogus                    Type = 0x09
	TypeGroupInfo                Type = 0x0A
	TypeFilterPipeline           Type = 0x0B
	TypeAttribute                Type = 0x0C
	TypeObjectComment            Type = 0x0D
	TypeObjectModTime            Type = 0x0E
	TypeSharedMessageTable       Type = 0x0F
	TypeObjectHeaderContinuation Type = 0x10
	TypeSymbolTable              Type = 0x11
	TypeObjectModTimeOld         Type = 0x12
	TypeBTreeKValues             Type = 0x13
	TypeDriverInfo               Type = 0x14
	TypeAttributeInfo            Type = 0x15
	TypeObjectRefCount           Type = 0x16
)

var typeNames = map[Type]string{
	TypeNIL:                      "nil",
	TypeDataspace:                "dataspace",
	TypeLinkInfo:                 "link info",
	TypeDatatype:                 "datatype",
	TypeFillValueOld:             "fill value (old)",
	TypeFillValue:                "fill value",
	TypeLink:                     "link",
	TypeExternalDataFiles:        "external data files",
	TypeDataLayout:               "data layout",
	TypeBogus:                    "bogus",
	TypeGroupInfo:                "group info",
	TypeFilterPipeline:           "filter pipeline",
	TypeAttribute:                "attribute",
	TypeObjectComment:            "comment",
	TypeObjectModTime:            "modification time",
	TypeSharedMessageTable:       "shared message table",
	TypeObjectHeaderContinuation: "continuation",
	TypeSymbolTable:              "symbol table",
	TypeObjectModTimeOld:         "modification time (old)",
	TypeBTreeKValues:             "b-tree k values",
	TypeDriverInfo:               "driver info",
	TypeAttributeInfo:            "attribute info",
	TypeObjectRefCount:           "reference count",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type 0x%04x", uint16(t))
}

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Parse decodes the body of a message of type t.
func Parse(t Type, body []byte, cfg binary.Config) (Message, error) {
	c := newCursor(body, cfg, t)
	var m Message
	switch t {
	case TypeDataspace:
		m = decodeDataspace(c)
	case TypeDatatype:
		m = decodeDatatype(c)
	case TypeDataLayout:
		m = decodeDataLayout(c)
	case TypeFilterPipeline:
		m = decodeFilterPipeline(c)
	case TypeAttribute:
		m = decodeAttribute(c)
	case TypeLink:
		m = decodeLink(c)
	case TypeLinkInfo:
		m = decodeLinkInfo(c)
	case TypeSymbolTable:
		m = &SymbolTable{BTreeAddress: c.addr(), LocalHeapAddress: c.addr()}
	case TypeObjectHeaderContinuation:
		m = &Continuation{Offset: c.addr(), Length: c.length()}
	default:
		return &Unknown{typ: t, body: body}, nil
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// Unknown holds a message this package does not decode.
type Unknown struct {
	typ  Type
	body []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.body }

// Continuation points at the next block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

func (m *Continuation) encode(e *encoder) {
	e.addr(m.Offset)
	e.length(m.Length)
}

// SymbolTable locates the v1 B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func (m *SymbolTable) encode(e *encoder) {
	e.addr(m.BTreeAddress)
	e.addr(m.LocalHeapAddress)
}

// Encodable is implemented by the messages this package can write.
type Encodable interface {
	Message
	encode(e *encoder)
}

// Encode returns the body of m as it is stored in an object header.
func Encode(m Message, cfg binary.Config) ([]byte, error) {
	enc, ok := m.(Encodable)
	if !ok {
		return nil, fmt.Errorf("cannot encode %s message", m.Type())
	}
	e := &encoder{cfg: cfg}
	enc.encode(e)
	if e.err != nil {
		return nil, e.err
	}
	return e.buf, nil
}
