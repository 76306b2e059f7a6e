package message

// Filter identifiers.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6

	FilterZstd uint16 = 32015 // registered third-party filter
)

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether the filter may be skipped when it fails.
func (f *FilterInfo) IsOptional() bool { return f.Flags&0x01 != 0 }

// FilterPipeline lists the filters applied to each chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func decodeFilterPipeline(c *cursor) *FilterPipeline {
	fp := &FilterPipeline{Version: c.u8()}
	n := int(c.u8())
	if fp.Version == 1 {
		c.skip(6)
	} else if fp.Version != 2 {
		c.fail("unsupported version %d", fp.Version)
		return fp
	}

	fp.Filters = make([]FilterInfo, n)
	for i := range fp.Filters {
		f := &fp.Filters[i]
		f.ID = c.u16()
		var nameLen int
		// version 2 omits the name of predefined filters
		if fp.Version == 1 || f.ID >= 256 {
			nameLen = int(c.u16())
		}
		f.Flags = c.u16()
		f.ClientData = make([]uint32, c.u16())
		if nameLen > 0 {
			start := c.off
			f.Name = c.fixedString(nameLen)
			if fp.Version == 1 {
				c.pad(start)
			}
		}
		for j := range f.ClientData {
			f.ClientData[j] = c.u32()
		}
		if fp.Version == 1 && len(f.ClientData)%2 == 1 {
			c.skip(4)
		}
	}
	return fp
}

// encode writes version 2, naming only third-party filters.
func (m *FilterPipeline) encode(e *encoder) {
	e.u8(2)
	e.u8(uint8(len(m.Filters)))
	for _, f := range m.Filters {
		named := f.ID >= 256 && f.Name != ""
		e.u16(f.ID)
		if f.ID >= 256 {
			n := 0
			if named {
				n = len(f.Name) + 1
			}
			e.u16(uint16(n))
		}
		e.u16(f.Flags)
		e.u16(uint16(len(f.ClientData)))
		if named {
			e.cString(f.Name)
		}
		for _, v := range f.ClientData {
			e.u32(v)
		}
	}
}

// NewFilterPipeline returns a version 2 pipeline of filters.
func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{Version: 2, Filters: filters}
}
