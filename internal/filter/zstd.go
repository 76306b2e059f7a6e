package filter

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ZstdName is the name registered for filter 32015.
const ZstdName = "Zstandard compression: http://www.zstd.net"

// DecodeAll is safe for concurrent use, so every chunk shares one decoder.
var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

// newZstd takes the compression level from the first client value.
func newZstd(cd []uint32) codec {
	level := 3
	if len(cd) > 0 && cd[0] > 0 {
		level = int(cd[0])
	}
	return codec{
		decode: func(b []byte) ([]byte, error) {
			dec, err := zstdDecoder()
			if err != nil {
				return nil, err
			}
			return dec.DecodeAll(b, nil)
		},
		encode: func(b []byte) ([]byte, error) {
			enc, err := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
				zstd.WithEncoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			defer enc.Close()
			return enc.EncodeAll(b, make([]byte, 0, len(b)/2)), nil
		},
	}
}
