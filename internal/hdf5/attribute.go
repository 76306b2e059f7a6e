package hdf5

import (
	"errors"
	"reflect"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/dtype"
	"github.com/robert-malhotra/go-h5j/internal/message"
	"github.com/robert-malhotra/go-h5j/internal/object"
)

// Attribute is a small named value attached to a group or dataset.
type Attribute struct {
	msg *message.Attribute
	r   *binary.Reader // resolves variable-length values
}

func attrNames(h *object.Header) []string {
	var names []string
	for _, m := range h.FindAll(message.TypeAttribute) {
		names = append(names, m.(*message.Attribute).Name)
	}
	return names
}

func findAttr(h *object.Header, name string, r *binary.Reader) *Attribute {
	for _, m := range h.FindAll(message.TypeAttribute) {
		if a := m.(*message.Attribute); a.Name == name {
			return &Attribute{msg: a, r: r}
		}
	}
	return nil
}

func (a *Attribute) Name() string { return a.msg.Name }

// Shape returns the extent, or nil for a scalar.
func (a *Attribute) Shape() []uint64 {
	if a.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// IsScalar reports whether the attribute holds a single value without
// dimensions.
func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

// IsUnsigned reports whether the attribute holds unsigned integers.
func (a *Attribute) IsUnsigned() bool {
	dt := a.msg.Datatype
	return dt != nil && (dt.Class == message.ClassFixedPoint || dt.Class == message.ClassEnum) && !dt.Signed
}

// Read decodes the value into dest; see dtype.ConvertWithReader.
func (a *Attribute) Read(dest any) error {
	if a.msg.Datatype == nil {
		return errors.New("hdf5: attribute " + a.msg.Name + " has no datatype")
	}
	return dtype.ConvertWithReader(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.r)
}

// ReadString reads the attribute as strings.
func (a *Attribute) ReadString() ([]string, error) {
	var s []string
	err := a.Read(&s)
	return s, err
}

// Value reads the attribute as the widest Go type of its class: int64 or
// uint64 for integers, float64, string, []byte for opaque values and
// map[string]any for compounds. Scalars come back bare and arrays as a
// slice of that type.
func (a *Attribute) Value() (any, error) {
	dt := a.msg.Datatype
	if dt == nil {
		return nil, errors.New("hdf5: attribute " + a.msg.Name + " has no datatype")
	}

	var dest any
	switch {
	case dt.IsString():
		dest = new([]string)
	case dt.Class == message.ClassFloatPoint:
		dest = new([]float64)
	case dt.Class == message.ClassFixedPoint, dt.Class == message.ClassEnum, dt.Class == message.ClassBitfield:
		if dt.Signed && dt.Class != message.ClassBitfield {
			dest = new([]int64)
		} else {
			dest = new([]uint64)
		}
	case dt.Class == message.ClassOpaque:
		dest = new([][]byte)
	case dt.Class == message.ClassCompound:
		dest = new([]map[string]any)
	default:
		dest = new([]any)
	}
	if err := a.Read(dest); err != nil {
		return nil, err
	}

	v := reflect.ValueOf(dest).Elem()
	if a.IsScalar() && v.Len() == 1 {
		return v.Index(0).Interface(), nil
	}
	return v.Interface(), nil
}
