package binary

import (
	"encoding/binary"
	"io"
)

// Writer encodes values into an io.WriterAt at a movable position.
type Writer struct {
	dst io.WriterAt
	cfg Config
	pos int64
}

// NewWriter returns a Writer at offset 0.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{dst: w, cfg: cfg}
}

// At returns a Writer over the same destination positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{dst: w.dst, cfg: w.cfg, pos: offset}
}

func (w *Writer) Pos() int64 { return w.pos }

// Skip moves the position forward by n bytes, leaving them untouched.
func (w *Writer) Skip(n int64) { w.pos += n }

// Align moves the position up to the next multiple of n.
func (w *Writer) Align(n int64) {
	if n > 1 && w.pos%n != 0 {
		w.pos += n - w.pos%n
	}
}

func (w *Writer) Config() Config { return w.cfg }

func (w *Writer) OffsetSize() int             { return w.cfg.OffsetSize }
func (w *Writer) LengthSize() int             { return w.cfg.LengthSize }
func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.order() }

// UndefinedOffset returns the all-ones address for this file's offset size.
func (w *Writer) UndefinedOffset() uint64 {
	return allOnes(w.cfg.OffsetSize)
}

// WriteBytes writes b at the current position.
func (w *Writer) WriteBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n, err := w.dst.WriteAt(b, w.pos)
	w.pos += int64(n)
	return err
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// WriteUintN writes the low n bytes of v.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	w.cfg.encode(buf, v)
	return w.WriteBytes(buf)
}

func (w *Writer) WriteUint8(v uint8) error   { return w.WriteUintN(uint64(v), 1) }
func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }
func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }
func (w *Writer) WriteUint64(v uint64) error { return w.WriteUintN(v, 8) }

// WriteOffset writes a file address.
func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.cfg.OffsetSize)
}

// WriteLength writes a length.
func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.cfg.LengthSize)
}
