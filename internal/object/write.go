package object

import (
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/binary"
	"github.com/robert-malhotra/go-h5j/internal/message"
)

// MinGroupChunkSize is the smallest message area given to group headers,
// leaving room for links to be added without growing the chunk.
const MinGroupChunkSize = 120

// Encode lays out messages as a single-chunk version 2 object header.
// The message area is padded to at least minChunk bytes.
func Encode(messages []message.Message, cfg binary.Config, minChunk int) ([]byte, error) {
	var chunk []byte
	for _, m := range messages {
		body, err := message.Encode(m, cfg)
		if err != nil {
			return nil, err
		}
		if len(body) > 0xffff {
			return nil, fmt.Errorf("%s message is %d bytes, more than an object header can hold", m.Type(), len(body))
		}
		chunk = append(chunk, byte(m.Type()))
		chunk = appendUint(chunk, uint64(len(body)), 2)
		chunk = append(chunk, 0)
		chunk = append(chunk, body...)
	}

	// Pad with a NIL message; a gap too small for one is left as zeros.
	if gap := minChunk - len(chunk); gap >= 4 {
		chunk = append(chunk, byte(message.TypeNIL))
		chunk = appendUint(chunk, uint64(gap-4), 2)
		chunk = append(chunk, make([]byte, gap-3)...)
	} else if gap > 0 {
		chunk = append(chunk, make([]byte, gap)...)
	}

	width := sizeWidth(uint64(len(chunk)))
	var flags uint8
	for 1<<flags < width {
		flags++
	}

	buf := make([]byte, 0, 6+width+len(chunk)+4)
	buf = append(buf, headerSignature...)
	buf = append(buf, 2, flags)
	buf = appendUint(buf, uint64(len(chunk)), width)
	buf = append(buf, chunk...)
	return appendUint(buf, uint64(binary.Lookup3Checksum(buf)), 4), nil
}

// Write encodes messages and writes them at w's position, returning the
// number of bytes written.
func Write(w *binary.Writer, messages []message.Message, minChunk int) (int, error) {
	buf, err := Encode(messages, w.Config(), minChunk)
	if err != nil {
		return 0, err
	}
	return len(buf), w.WriteBytes(buf)
}

// GroupMessages returns the messages of a new-style group holding links
// and attrs.
func GroupMessages(links []*message.Link, attrs []*message.Attribute) []message.Message {
	out := make([]message.Message, 0, 2+len(links)+len(attrs))
	out = append(out, message.NewLinkInfo(), message.NewGroupInfo())
	for _, l := range links {
		out = append(out, l)
	}
	for _, a := range attrs {
		out = append(out, a)
	}
	return out
}

// DatasetMessages returns the three messages every dataset header needs.
func DatasetMessages(space *message.Dataspace, dt *message.Datatype, layout *message.DataLayout) []message.Message {
	return []message.Message{space, dt, layout}
}

func sizeWidth(n uint64) int {
	switch {
	case n <= 0xff:
		return 1
	case n <= 0xffff:
		return 2
	case n <= 0xffffffff:
		return 4
	}
	return 8
}

func appendUint(b []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}
