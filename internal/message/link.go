package message

type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// Link names a child of a new-style group.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Charset       CharacterSet
	Name          string

	ObjectAddress uint64 // hard links
	SoftLinkValue string // soft links

	ExternalFile string
	ExternalPath string
}

func (m *Link) Type() Type       { return TypeLink }
func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

const (
	linkNameWidth  = 0x03
	linkHasOrder   = 0x04
	linkHasType    = 0x08
	linkHasCharset = 0x10
)

func decodeLink(c *cursor) *Link {
	l := &Link{Version: c.u8()}
	if l.Version != 1 {
		c.fail("unsupported version %d", l.Version)
		return l
	}
	flags := c.u8()
	if flags&linkHasType != 0 {
		l.LinkType = LinkType(c.u8())
	}
	if flags&linkHasOrder != 0 {
		l.CreationOrder = c.u64()
	}
	if flags&linkHasCharset != 0 {
		l.Charset = CharacterSet(c.u8())
	}
	nameLen := int(c.uint(1 << (flags & linkNameWidth)))
	l.Name = string(c.take(nameLen))

	switch l.LinkType {
	case LinkTypeHard:
		l.ObjectAddress = c.addr()
	case LinkTypeSoft:
		l.SoftLinkValue = string(c.take(int(c.u16())))
	case LinkTypeExternal:
		// a version/flags byte, then the file and object paths
		ext := newCursor(c.take(int(c.u16())), c.cfg, TypeLink)
		ext.skip(1)
		l.ExternalFile = ext.cString()
		l.ExternalPath = ext.fixedString(ext.left())
		if ext.err != nil && c.err == nil {
			c.err = ext.err
		}
	default:
		c.fail("unknown link type %d", l.LinkType)
	}
	return l
}

func (m *Link) encode(e *encoder) {
	width := widthFor(uint64(len(m.Name)))
	var flags uint8
	switch width {
	case 2:
		flags = 1
	case 4:
		flags = 2
	case 8:
		flags = 3
	}
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}

	e.u8(1)
	e.u8(flags)
	if flags&linkHasType != 0 {
		e.u8(uint8(m.LinkType))
	}
	e.uint(uint64(len(m.Name)), width)
	e.bytes([]byte(m.Name))

	switch m.LinkType {
	case LinkTypeHard:
		e.addr(m.ObjectAddress)
	case LinkTypeSoft:
		e.u16(uint16(len(m.SoftLinkValue)))
		e.bytes([]byte(m.SoftLinkValue))
	case LinkTypeExternal:
		e.u16(uint16(len(m.ExternalFile) + len(m.ExternalPath) + 3))
		e.u8(0)
		e.cString(m.ExternalFile)
		e.cString(m.ExternalPath)
	}
}

// NewHardLink links name to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}

// LinkInfo marks a group as new-style. Groups this package writes keep
// their links in the header, so the heap and index addresses stay
// undefined.
type LinkInfo struct {
	Version          uint8
	Flags            uint8
	MaxCreationIndex uint64
	FractalHeapAddr  uint64
	NameIndexAddr    uint64
	OrderIndexAddr   uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

func decodeLinkInfo(c *cursor) *LinkInfo {
	m := &LinkInfo{Version: c.u8(), Flags: c.u8()}
	if m.Flags&0x01 != 0 {
		m.MaxCreationIndex = c.u64()
	}
	m.FractalHeapAddr = c.addr()
	m.NameIndexAddr = c.addr()
	if m.Flags&0x02 != 0 {
		m.OrderIndexAddr = c.addr()
	}
	return m
}

func (m *LinkInfo) encode(e *encoder) {
	e.u8(m.Version)
	e.u8(m.Flags)
	if m.Flags&0x01 != 0 {
		e.u64(m.MaxCreationIndex)
	}
	for _, a := range []uint64{m.FractalHeapAddr, m.NameIndexAddr} {
		if a == 0 {
			a = e.undefined()
		}
		e.addr(a)
	}
	if m.Flags&0x02 != 0 {
		e.addr(m.OrderIndexAddr)
	}
}

func NewLinkInfo() *LinkInfo { return &LinkInfo{} }

// GroupInfo carries link storage hints; the zero value requests the
// library defaults.
type GroupInfo struct {
	Version         uint8
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstNumEntries   uint16
	EstLinkNameLen  uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) encode(e *encoder) {
	e.u8(m.Version)
	e.u8(m.Flags)
	if m.Flags&0x01 != 0 {
		e.u16(m.MaxCompactLinks)
		e.u16(m.MinDenseLinks)
	}
	if m.Flags&0x02 != 0 {
		e.u16(m.EstNumEntries)
		e.u16(m.EstLinkNameLen)
	}
}

func NewGroupInfo() *GroupInfo { return &GroupInfo{} }
