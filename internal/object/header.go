// Package object reads and writes HDF5 object headers, the message lists
// that describe every group and dataset in a file.
//
// Both on-disk forms are read: version 1 headers written by older
// libraries and the checksummed version 2 ("OHDR") form. Headers are
// always written as version 2.
package object

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksum           = errors.New("object header checksum mismatch")
)

const (
	headerSignature       = "OHDR"
	continuationSignature = "OCHK"
)

// v2 header flags
const (
	flagSizeWidth   = 0x03
	flagTrackOrder  = 0x04
	flagPhaseChange = 0x10
	flagTimes       = 0x20
)

// v2 message flags
const msgShared = 0x02

// Header is a decoded object header.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	RefCount uint32

	// Messages are in file order, continuation blocks included.
	Messages []message.Message

	AccessTime uint32
	ModTime    uint32
	ChangeTime uint32
	BirthTime  uint32
}

// Find returns the first message of type t, or nil.
func (h *Header) Find(t message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == t {
			return m
		}
	}
	return nil
}

// FindAll returns every message of type t in file order.
func (h *Header) FindAll(t message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if m.Type() == t {
			out = append(out, m)
		}
	}
	return out
}

func first[T message.Message](h *Header, t message.Type) T {
	m, _ := h.Find(t).(T)
	return m
}

func (h *Header) Dataspace() *message.Dataspace {
	return first[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return first[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) DataLayout() *message.DataLayout {
	return first[*message.DataLayout](h, message.TypeDataLayout)
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	return first[*message.FilterPipeline](h, message.TypeFilterPipeline)
}

// Shared is a message stored elsewhere in the file and referenced from
// this header. Its body is the reference, not the message itself.
type Shared struct {
	Of   message.Type
	Body []byte
}

func (m *Shared) Type() message.Type { return m.Of }

// block is a run of header messages, either the first chunk or one
// reached through a continuation message.
type block struct {
	addr, size uint64
}

// Read decodes the object header at addr.
func Read(r *binary.Reader, addr uint64) (*Header, error) {
	sig, err := r.At(int64(addr)).Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", addr, err)
	}

	h := &Header{Address: addr}
	var head block
	switch {
	case string(sig) == headerSignature:
		head, err = readPrefixV2(r, h)
	case sig[0] == 1:
		head, err = readPrefixV1(r, h)
	default:
		return nil, fmt.Errorf("%w at address %d", ErrInvalidHeader, addr)
	}
	if err != nil {
		return nil, err
	}

	seen := map[uint64]bool{}
	queue := []block{head}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		if seen[b.addr] {
			return nil, fmt.Errorf("%w: continuation loop at %d", ErrInvalidHeader, b.addr)
		}
		seen[b.addr] = true

		buf, err := r.At(int64(b.addr)).ReadBytes(int(b.size))
		if err != nil {
			return nil, fmt.Errorf("reading header block at %d: %w", b.addr, err)
		}
		if h.Version == 2 {
			if buf, err = checkBlock(buf, b.addr != head.addr); err != nil {
				return nil, fmt.Errorf("header block at %d: %w", b.addr, err)
			}
		}
		msgs, err := parseMessages(buf, h, r.Config())
		if err != nil {
			return nil, fmt.Errorf("object header at %d: %w", addr, err)
		}
		for _, m := range msgs {
			if c, ok := m.(*message.Continuation); ok {
				queue = append(queue, block{c.Offset, c.Length})
				continue
			}
			h.Messages = append(h.Messages, m)
		}
	}
	return h, nil
}

// readPrefixV1 reads the 16 byte version 1 prefix and returns the
// message block that follows it.
func readPrefixV1(r *binary.Reader, h *Header) (block, error) {
	hr := r.At(int64(h.Address))
	fields := make([]uint64, 0, 5)
	for _, n := range []int{1, 1, 2, 4, 4} {
		v, err := hr.ReadUintN(n)
		if err != nil {
			return block{}, fmt.Errorf("reading object header prefix: %w", err)
		}
		fields = append(fields, v)
	}
	h.Version = uint8(fields[0])
	h.RefCount = uint32(fields[3])
	hr.Align(8)
	return block{addr: uint64(hr.Pos()), size: fields[4]}, nil
}

// readPrefixV2 reads the version 2 prefix. The returned block starts at
// the header address so the checksum covers the prefix too.
func readPrefixV2(r *binary.Reader, h *Header) (block, error) {
	hr := r.At(int64(h.Address) + 4)
	version, err := hr.ReadUint8()
	if err != nil {
		return block{}, err
	}
	if version != 2 {
		return block{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	h.Version = 2
	if h.Flags, err = hr.ReadUint8(); err != nil {
		return block{}, err
	}
	if h.Flags&flagTimes != 0 {
		for _, t := range []*uint32{&h.AccessTime, &h.ModTime, &h.ChangeTime, &h.BirthTime} {
			if *t, err = hr.ReadUint32(); err != nil {
				return block{}, err
			}
		}
	}
	if h.Flags&flagPhaseChange != 0 {
		hr.Skip(4)
	}
	size, err := hr.ReadUintN(1 << (h.Flags & flagSizeWidth))
	if err != nil {
		return block{}, err
	}
	prefix := uint64(hr.Pos()) - h.Address
	return block{addr: h.Address, size: prefix + size + 4}, nil
}

// checkBlock verifies a version 2 block checksum and returns just its
// message bytes.
func checkBlock(buf []byte, continuation bool) ([]byte, error) {
	if len(buf) < 8 {
		return nil, ErrInvalidHeader
	}
	body, sum := buf[:len(buf)-4], buf[len(buf)-4:]
	want := uint32(sum[0]) | uint32(sum[1])<<8 | uint32(sum[2])<<16 | uint32(sum[3])<<24
	if got := binary.Lookup3Checksum(body); got != want {
		return nil, fmt.Errorf("%w: stored %#x, computed %#x", ErrChecksum, want, got)
	}
	if continuation {
		if string(body[:4]) != continuationSignature {
			return nil, fmt.Errorf("%w: bad continuation signature %q", ErrInvalidHeader, body[:4])
		}
		return body[4:], nil
	}
	return body[prefixLen(body):], nil
}

// prefixLen is the size of the version 2 prefix at the start of buf.
func prefixLen(buf []byte) int {
	flags := buf[5]
	n := 6
	if flags&flagTimes != 0 {
		n += 16
	}
	if flags&flagPhaseChange != 0 {
		n += 4
	}
	return n + 1<<(flags&flagSizeWidth)
}

// parseMessages decodes the messages packed in buf. A tail too short for
// a message header is a gap and is ignored.
func parseMessages(buf []byte, h *Header, cfg binary.Config) ([]message.Message, error) {
	hdrLen := 8
	if h.Version == 2 {
		hdrLen = 4
		if h.Flags&flagTrackOrder != 0 {
			hdrLen = 6
		}
	}

	var out []message.Message
	for pos := 0; len(buf)-pos >= hdrLen; {
		var typ message.Type
		var size int
		var flags uint8
		if h.Version == 1 {
			typ = message.Type(uint16(buf[pos]) | uint16(buf[pos+1])<<8)
			size = int(buf[pos+2]) | int(buf[pos+3])<<8
			flags = buf[pos+4]
		} else {
			typ = message.Type(buf[pos])
			size = int(buf[pos+1]) | int(buf[pos+2])<<8
			flags = buf[pos+3]
		}
		pos += hdrLen
		if size > len(buf)-pos {
			return nil, fmt.Errorf("%w: %s message overruns its block", ErrInvalidHeader, typ)
		}
		body := buf[pos : pos+size]
		pos += size

		switch {
		case typ == message.TypeNIL:
			continue
		case flags&msgShared != 0:
			out = append(out, &Shared{Of: typ, Body: body})
			continue
		}
		m, err := message.Parse(typ, body, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
