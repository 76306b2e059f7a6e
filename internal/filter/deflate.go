package filter

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// newDeflate takes the compression level from the first client value.
func newDeflate(cd []uint32) codec {
	level := zlib.DefaultCompression
	if len(cd) > 0 {
		level = int(cd[0])
	}
	return codec{
		decode: inflate,
		encode: func(b []byte) ([]byte, error) {
			var buf bytes.Buffer
			w, err := zlib.NewWriterLevel(&buf, level)
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(b); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	}
}

func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
