package container

// Default metadata values used when the attributes are absent.
const (
	DefaultUnit = "pixels"
	NoPadding   = -1
)

// Metadata holds the volume attributes of a container.
type Metadata struct {
	PadRight  int // NoPadding when absent
	PadBottom int // NoPadding when absent
	Spacing   [3]float64
	Unit      string
}

// DefaultMetadata returns the metadata of a container without attributes.
func DefaultMetadata() Metadata {
	return Metadata{
		PadRight:  NoPadding,
		PadBottom: NoPadding,
		Spacing:   [3]float64{1, 1, 1},
		Unit:      DefaultUnit,
	}
}

// Metadata reads padding, voxel spacing and unit. Missing attributes keep
// their defaults; a voxel_size that does not hold exactly three values is
// ignored.
func (s *Store) Metadata() (Metadata, error) {
	md := DefaultMetadata()

	if _, err := s.ChannelNames(); err != nil {
		return md, err
	}

	pad, ok, err := s.Int64Attribute(ChannelsPath, AttrPadRight)
	if err != nil {
		return md, err
	}
	if ok {
		md.PadRight = int(pad)
	}

	pad, ok, err = s.Int64Attribute(ChannelsPath, AttrPadBottom)
	if err != nil {
		return md, err
	}
	if ok {
		md.PadBottom = int(pad)
	}

	vs, ok, err := s.Float64sAttribute(RootPath, AttrVoxelSize)
	if err != nil {
		return md, err
	}
	if ok && len(vs) == 3 {
		copy(md.Spacing[:], vs)
	}

	unit, ok, err := s.StringAttribute(RootPath, AttrUnit)
	if err != nil {
		return md, err
	}
	if ok {
		md.Unit = unit
	}

	return md, nil
}
