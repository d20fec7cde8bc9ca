package rle

import (
	"errors"
	"fmt"
)

// ErrTruncated marks a segment that ends inside a run
var ErrTruncated = errors.New("rle: segment truncated")

// longest literal or replicate run a header byte can describe
const maxRun = 128

// packBits appends the PackBits coding of data to dst (PS3.5 G.3.1).
// Three or more equal bytes become a replicate run; a pair only does when
// it would not split a literal run.
func packBits(dst, data []byte) []byte {
	i := 0
	for i < len(data) {
		run := runLength(data, i)
		if run >= 3 || (run == 2 && i+2 == len(data)) {
			dst = append(dst, byte(int8(1-run)), data[i])
			i += run
			continue
		}
		start := i
		for i < len(data) && i-start < maxRun {
			if r := runLength(data, i); r >= 3 {
				break
			}
			i++
		}
		dst = append(dst, byte(i-start-1))
		dst = append(dst, data[start:i]...)
	}
	return dst
}

func runLength(data []byte, i int) int {
	n := 1
	for i+n < len(data) && n < maxRun && data[i+n] == data[i] {
		n++
	}
	return n
}

// unpackBits decodes a PackBits segment into exactly size bytes. Decoding
// stops once size bytes are produced, so segment padding is ignored; a
// segment that comes up short is an error.
func unpackBits(src []byte, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	for i := 0; i < len(src) && len(out) < size; {
		n := int8(src[i])
		i++
		switch {
		case n == -128:
		case n >= 0:
			count := int(n) + 1
			if i+count > len(src) {
				return nil, fmt.Errorf("%w: literal run of %d at %d", ErrTruncated, count, i)
			}
			out = append(out, src[i:i+count]...)
			i += count
		default:
			if i >= len(src) {
				return nil, fmt.Errorf("%w: replicate run at %d", ErrTruncated, i)
			}
			for range 1 - int(n) {
				out = append(out, src[i])
			}
			i++
		}
	}
	if len(out) < size {
		return nil, fmt.Errorf("%w: decoded %d of %d bytes", ErrTruncated, len(out), size)
	}
	return out[:size], nil
}
