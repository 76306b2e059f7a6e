package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/binary"
)

// cursor walks the fields of a message body. Message fields are always
// little-endian; only address and length widths come from the file.
// The first read past the end sets err and later reads return zero values.
type cursor struct {
	buf []byte
	off int
	cfg binary.Config
	typ Type
	err error
}

func newCursor(buf []byte, cfg binary.Config, t Type) *cursor {
	return &cursor{buf: buf, cfg: cfg, typ: t}
}

func (c *cursor) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("%s message: %s", c.typ, fmt.Sprintf(format, args...))
	}
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > len(c.buf)-c.off {
		c.fail("truncated at byte %d (need %d of %d)", c.off, n, len(c.buf))
		return nil
	}
	p := c.buf[c.off : c.off+n]
	c.off += n
	return p
}

func (c *cursor) uint(n int) uint64 {
	var v uint64
	p := c.take(n)
	for i := len(p) - 1; i >= 0; i-- {
		v = v<<8 | uint64(p[i])
	}
	return v
}

func (c *cursor) u8() uint8      { return uint8(c.uint(1)) }
func (c *cursor) u16() uint16    { return uint16(c.uint(2)) }
func (c *cursor) u32() uint32    { return uint32(c.uint(4)) }
func (c *cursor) u64() uint64    { return c.uint(8) }
func (c *cursor) addr() uint64   { return c.uint(c.cfg.OffsetSize) }
func (c *cursor) length() uint64 { return c.uint(c.cfg.LengthSize) }
func (c *cursor) skip(n int)     { c.take(n) }
func (c *cursor) left() int      { return len(c.buf) - c.off }

// pad skips to the next multiple of 8 counted from start.
func (c *cursor) pad(start int) {
	if r := (c.off - start) % 8; r != 0 {
		c.skip(8 - r)
	}
}

// fixedString reads an n byte field and cuts it at the first NUL.
func (c *cursor) fixedString(n int) string {
	p := c.take(n)
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}

// cString reads a NUL-terminated string, consuming the terminator.
func (c *cursor) cString() string {
	if c.err != nil {
		return ""
	}
	i := bytes.IndexByte(c.buf[c.off:], 0)
	if i < 0 {
		c.fail("unterminated string at byte %d", c.off)
		return ""
	}
	s := string(c.buf[c.off : c.off+i])
	c.off += i + 1
	return s
}

// clone copies the next n bytes so they outlive the header buffer.
func (c *cursor) clone(n int) []byte {
	return bytes.Clone(c.take(n))
}

// encoder appends message fields in the layout cursor reads.
type encoder struct {
	buf []byte
	cfg binary.Config
	err error
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) uint(v uint64, n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, byte(v>>(8*i)))
	}
}

func (e *encoder) u8(v uint8)       { e.buf = append(e.buf, v) }
func (e *encoder) u16(v uint16)     { e.uint(uint64(v), 2) }
func (e *encoder) u32(v uint32)     { e.uint(uint64(v), 4) }
func (e *encoder) u64(v uint64)     { e.uint(v, 8) }
func (e *encoder) addr(v uint64)    { e.uint(v, e.cfg.OffsetSize) }
func (e *encoder) length(v uint64)  { e.uint(v, e.cfg.LengthSize) }
func (e *encoder) bytes(p []byte)   { e.buf = append(e.buf, p...) }
func (e *encoder) zeros(n int)      { e.buf = append(e.buf, make([]byte, n)...) }
func (e *encoder) cString(s string) { e.buf = append(append(e.buf, s...), 0) }

// undefined is the all-ones address of the encoder's offset width.
func (e *encoder) undefined() uint64 {
	if e.cfg.OffsetSize >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*e.cfg.OffsetSize) - 1
}

// widthFor returns the smallest of 1, 2, 4 or 8 bytes that holds v.
func widthFor(v uint64) int {
	switch {
	case v <= 0xff:
		return 1
	case v <= 0xffff:
		return 2
	case v <= 0xffffffff:
		return 4
	}
	return 8
}
