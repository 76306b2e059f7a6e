package filter

import (
	stdbin "encoding/binary"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-h5j/internal/binary"
)

func newFletcher32([]uint32) codec {
	return codec{decode: checkFletcher32, encode: appendFletcher32}
}

// checkFletcher32 verifies and strips the trailing checksum. Libraries
// before HDF5 1.6.3 wrote it with the bytes of each half swapped on little
// endian machines; that form is accepted too.
func checkFletcher32(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, errors.New("chunk too short for a checksum")
	}
	data := b[:len(b)-4]
	stored := stdbin.LittleEndian.Uint32(b[len(b)-4:])
	sum := binary.Fletcher32(data)
	swapped := (sum&0x00ff00ff)<<8 | (sum&0xff00ff00)>>8
	if stored != sum && stored != swapped {
		return nil, fmt.Errorf("checksum %#08x, computed %#08x", stored, sum)
	}
	return data, nil
}

func appendFletcher32(b []byte) ([]byte, error) {
	out := make([]byte, len(b), len(b)+4)
	copy(out, b)
	return stdbin.LittleEndian.AppendUint32(out, binary.Fletcher32(b)), nil
}
