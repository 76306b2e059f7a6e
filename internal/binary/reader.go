package binary

import (
	"encoding/binary"
	"io"
)

// Reader decodes values from an io.ReaderAt at a movable position. Readers
// are cheap; At derives a new one for each structure being parsed.
type Reader struct {
	src io.ReaderAt
	cfg Config
	pos int64
}

// NewReader returns a Reader at offset 0.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{src: r, cfg: cfg}
}

// At returns a Reader over the same source positioned at offset.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{src: r.src, cfg: r.cfg, pos: offset}
}

func (r *Reader) Pos() int64 { return r.pos }

// Skip moves the position forward by n bytes.
func (r *Reader) Skip(n int64) { r.pos += n }

// Align moves the position up to the next multiple of n.
func (r *Reader) Align(n int64) {
	if n > 1 && r.pos%n != 0 {
		r.pos += n - r.pos%n
	}
}

// Config returns the integer encoding the Reader was created with.
func (r *Reader) Config() Config { return r.cfg }

func (r *Reader) OffsetSize() int             { return r.cfg.OffsetSize }
func (r *Reader) LengthSize() int             { return r.cfg.LengthSize }
func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.order() }

// Peek returns the next n bytes without consuming them.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, err := r.src.ReadAt(buf, r.pos)
	if got == n {
		return buf, nil
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// ReadBytes consumes the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.Peek(n)
	if err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUintN consumes an unsigned integer n bytes wide.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return r.cfg.decode(buf), nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUintN(8)
}

// ReadOffset consumes a file address.
func (r *Reader) ReadOffset() (uint64, error) {
	return r.ReadUintN(r.cfg.OffsetSize)
}

// ReadLength consumes a length.
func (r *Reader) ReadLength() (uint64, error) {
	return r.ReadUintN(r.cfg.LengthSize)
}

// IsUndefinedOffset reports whether addr is the all-ones address HDF5 uses
// for "not allocated".
func (r *Reader) IsUndefinedOffset(addr uint64) bool {
	return addr == allOnes(r.cfg.OffsetSize)
}
