package filter

// newShuffle takes the element size from the first client value.
func newShuffle(cd []uint32) codec {
	size := 1
	if len(cd) > 0 && cd[0] > 0 {
		size = int(cd[0])
	}
	return codec{
		decode: func(b []byte) ([]byte, error) { return transpose(b, size, false), nil },
		encode: func(b []byte) ([]byte, error) { return transpose(b, size, true), nil },
	}
}

// transpose moves between element order and byte-plane order, where byte j
// of every element is stored together. Bytes past the last whole element
// stay where they are.
func transpose(b []byte, size int, toPlanes bool) []byte {
	n := len(b) / size
	if size <= 1 || n <= 1 {
		return b
	}
	out := make([]byte, len(b))
	for i := range n {
		for j := range size {
			if toPlanes {
				out[j*n+i] = b[i*size+j]
			} else {
				out[i*size+j] = b[j*n+i]
			}
		}
	}
	copy(out[n*size:], b[n*size:])
	return out
}
