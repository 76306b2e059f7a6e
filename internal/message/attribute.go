package message

// Attribute is a small named value attached to an object header.
type Attribute struct {
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func decodeAttribute(c *cursor) *Attribute {
	a := &Attribute{Version: c.u8()}
	if a.Version < 1 || a.Version > 3 {
		c.fail("unsupported version %d", a.Version)
		return a
	}
	c.skip(1) // reserved in version 1, flags after
	nameLen := int(c.u16())
	typeLen := int(c.u16())
	spaceLen := int(c.u16())
	if a.Version == 3 {
		c.skip(1) // name character set
	}

	// Version 1 pads each of the three fields to a multiple of 8 bytes.
	field := func(n int) *cursor {
		start := c.off
		sub := newCursor(c.take(n), c.cfg, TypeAttribute)
		if a.Version == 1 {
			c.pad(start)
		}
		return sub
	}

	a.Name = field(nameLen).fixedString(nameLen)
	tc := field(typeLen)
	a.Datatype = decodeDatatype(tc)
	sc := field(spaceLen)
	a.Dataspace = decodeDataspace(sc)
	for _, sub := range []*cursor{tc, sc} {
		if sub.err != nil && c.err == nil {
			c.err = sub.err
		}
	}
	a.Data = c.clone(c.left())
	return a
}

// encode writes version 3 with an ASCII name.
func (m *Attribute) encode(e *encoder) {
	dt := &encoder{cfg: e.cfg}
	m.Datatype.encode(dt)
	ds := &encoder{cfg: e.cfg}
	m.Dataspace.encode(ds)
	e.fail(dt.err)

	e.u8(3)
	e.u8(0)
	e.u16(uint16(len(m.Name) + 1))
	e.u16(uint16(len(dt.buf)))
	e.u16(uint16(len(ds.buf)))
	e.u8(uint8(CharsetASCII))
	e.cString(m.Name)
	e.bytes(dt.buf)
	e.bytes(ds.buf)
	e.bytes(m.Data)
}

func NewAttribute(name string, datatype *Datatype, dataspace *Dataspace, data []byte) *Attribute {
	return &Attribute{Version: 3, Name: name, Datatype: datatype, Dataspace: dataspace, Data: data}
}
