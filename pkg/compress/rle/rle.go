// Package rle implements the DICOM RLE Lossless transfer syntax (PS3.5
// Annex G) over raster images. A frame is a 64 byte header followed by one
// PackBits segment per sample byte, most significant byte first.
package rle

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

const (
	// HeaderLength is the size of the segment offset table
	HeaderLength = 64
	// MaxSegments is the number of offsets the header can hold
	MaxSegments = 15
)

// ErrHeader marks a frame without a usable segment table
var ErrHeader = errors.New("rle: invalid header")

// Header is the segment table at the start of every RLE frame
type Header struct {
	Segments int
	Offsets  [MaxSegments]uint32
}

// ParseHeader reads the segment table. The first segment must begin
// right after the header and offsets must not decrease.
func ParseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderLength {
		return h, fmt.Errorf("%w: %d bytes", ErrHeader, len(b))
	}
	h.Segments = int(binary.LittleEndian.Uint32(b))
	if h.Segments < 1 || h.Segments > MaxSegments {
		return h, fmt.Errorf("%w: %d segments", ErrHeader, h.Segments)
	}
	for i := range h.Offsets {
		h.Offsets[i] = binary.LittleEndian.Uint32(b[4+4*i:])
	}
	if h.Offsets[0] != HeaderLength {
		return h, fmt.Errorf("%w: first segment at %d", ErrHeader, h.Offsets[0])
	}
	for i := 1; i < h.Segments; i++ {
		if h.Offsets[i] < h.Offsets[i-1] {
			return h, fmt.Errorf("%w: segment %d at %d precedes segment %d", ErrHeader, i, h.Offsets[i], i-1)
		}
	}
	return h, nil
}

// segment returns the coded bytes of segment i
func (h Header) segment(b []byte, i int) ([]byte, error) {
	start, end := int(h.Offsets[i]), len(b)
	if i+1 < h.Segments {
		end = int(h.Offsets[i+1])
	}
	if start > len(b) || end > len(b) {
		return nil, fmt.Errorf("%w: segment %d at %d beyond %d bytes", ErrHeader, i, start, len(b))
	}
	return b[start:end], nil
}

// bytesPerSample returns the number of segments one sample spans; bit
// packed frames are coded as a single byte stream
func bytesPerSample(l raster.Layout) int {
	if l.BitsAllocated <= 8 {
		return 1
	}
	return l.BitsAllocated / 8
}

// Decode decodes one RLE frame. The layout gives the frame geometry;
// its Planar and BigEndian fields are ignored as RLE fixes both.
func Decode(b []byte, l raster.Layout) (*raster.Image, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	size := bytesPerSample(l)
	want := l.Samples * size
	if h.Segments != want {
		return nil, fmt.Errorf("%w: %d segments for %d samples of %d bytes", ErrHeader, h.Segments, l.Samples, size)
	}

	pixels := l.Width * l.Height
	segLen := pixels
	if l.BitsAllocated == 1 {
		segLen = l.FrameLength()
	}

	// reassemble interleaved little endian native bytes
	native := make([]byte, segLen*want)
	for s := range l.Samples {
		for k := range size {
			i := s*size + k
			coded, err := h.segment(b, i)
			if err != nil {
				return nil, err
			}
			plane, err := unpackBits(coded, segLen)
			if err != nil {
				return nil, fmt.Errorf("segment %d: %w", i, err)
			}
			if l.BitsAllocated == 1 {
				copy(native, plane)
				continue
			}
			// segment k holds byte size-1-k of every sample
			pos := s*size + (size - 1 - k)
			for p, v := range plane {
				native[p*want+pos] = v
			}
		}
	}
	l.Planar = false
	l.BigEndian = false
	return raster.FromBytes(native, l)
}

// Encode codes an integer image as one RLE frame. The element type sets
// the segment count: one per byte of each sample.
func Encode(img *raster.Image) ([]byte, error) {
	if img.Type.IsFloat() {
		return nil, fmt.Errorf("rle: cannot code %s samples", img.Type)
	}
	size := img.Type.Size()
	segments := img.Channels * size
	if segments > MaxSegments {
		return nil, fmt.Errorf("rle: %d segments exceed %d", segments, MaxSegments)
	}
	pixels := img.Width * img.Height
	out := make([]byte, HeaderLength, HeaderLength+img.Len()*size)
	binary.LittleEndian.PutUint32(out, uint32(segments))
	plane := make([]byte, pixels)
	for s := range img.Channels {
		for k := range size {
			shift := 8 * (size - 1 - k)
			for p := range pixels {
				plane[p] = byte(img.Ints[p*img.Channels+s] >> shift)
			}
			binary.LittleEndian.PutUint32(out[4+4*(s*size+k):], uint32(len(out)))
			out = packBits(out, plane)
			if len(out)%2 != 0 {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}
