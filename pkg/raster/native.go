package raster

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Layout describes how native pixel bytes are arranged
type Layout struct {
	Width         int
	Height        int
	Samples       int
	Planar        bool // color-by-plane (Planar Configuration 1)
	BitsAllocated int
	Signed        bool
	Float         bool
	BigEndian     bool
}

// FrameLength returns the byte length of one frame in this layout
func (l Layout) FrameLength() int {
	if l.BitsAllocated == 1 {
		return (l.Width*l.Height*l.Samples + 7) / 8
	}
	return l.Width * l.Height * l.Samples * (l.BitsAllocated / 8)
}

// ElemType returns the sample type the layout decodes to
func (l Layout) ElemType() ElemType {
	if l.BitsAllocated == 1 {
		return Unsigned8
	}
	return ElemTypeFor(l.BitsAllocated, l.Signed, l.Float)
}

// FromBytes decodes one native frame. Bit packed data (1 bit allocated) is
// unpacked least significant bit first; planar color is interleaved.
func FromBytes(b []byte, l Layout) (*Image, error) {
	if need := l.FrameLength(); len(b) < need {
		return nil, fmt.Errorf("frame needs %d bytes, got %d", need, len(b))
	}
	img := New(l.Width, l.Height, l.Samples, l.ElemType())
	n := img.Len()
	pixels := l.Width * l.Height

	// index of sample i in source order
	src := func(i int) int {
		if !l.Planar || l.Samples == 1 {
			return i
		}
		p, c := i/l.Samples, i%l.Samples
		return c*pixels + p
	}

	var order binary.ByteOrder = binary.LittleEndian
	if l.BigEndian {
		order = binary.BigEndian
	}

	switch {
	case l.BitsAllocated == 1:
		for i := 0; i < n; i++ {
			j := src(i)
			img.Ints[i] = int32(b[j/8]>>(j%8)) & 1
		}
	case l.Float && l.BitsAllocated == 64:
		for i := 0; i < n; i++ {
			img.Floats[i] = math.Float64frombits(order.Uint64(b[src(i)*8:]))
		}
	case l.Float:
		for i := 0; i < n; i++ {
			img.Floats[i] = float64(math.Float32frombits(order.Uint32(b[src(i)*4:])))
		}
	case l.BitsAllocated <= 8:
		for i := 0; i < n; i++ {
			if l.Signed {
				img.Ints[i] = int32(int8(b[src(i)]))
			} else {
				img.Ints[i] = int32(b[src(i)])
			}
		}
	case l.BitsAllocated <= 16:
		for i := 0; i < n; i++ {
			u := order.Uint16(b[src(i)*2:])
			if l.Signed {
				img.Ints[i] = int32(int16(u))
			} else {
				img.Ints[i] = int32(u)
			}
		}
	case l.BitsAllocated == 32:
		for i := 0; i < n; i++ {
			img.Ints[i] = int32(order.Uint32(b[src(i)*4:]))
		}
	default:
		return nil, fmt.Errorf("unsupported bits allocated %d", l.BitsAllocated)
	}
	return img, nil
}

// ToBytes encodes an image as interleaved little endian native pixel data
func ToBytes(img *Image) []byte {
	size := img.Type.Size()
	out := make([]byte, img.Len()*size)
	le := binary.LittleEndian
	for i := 0; i < img.Len(); i++ {
		switch img.Type {
		case Unsigned8, Signed8:
			out[i] = byte(img.Ints[i])
		case Unsigned16, Signed16:
			le.PutUint16(out[i*2:], uint16(img.Ints[i]))
		case Signed32:
			le.PutUint32(out[i*4:], uint32(img.Ints[i]))
		case Float32:
			le.PutUint32(out[i*4:], math.Float32bits(float32(img.Floats[i])))
		case Float64:
			le.PutUint64(out[i*8:], math.Float64bits(img.Floats[i]))
		}
	}
	return out
}

// Expand422 converts YBR_FULL_422 native samples (Y1 Y2 Cb Cr for each
// horizontal pair) to one Y Cb Cr triplet per pixel
func Expand422(b []byte, width, height int) ([]byte, error) {
	if width%2 != 0 {
		return nil, fmt.Errorf("4:2:2 data needs an even width, got %d", width)
	}
	if need := width * height * 2; len(b) < need {
		return nil, fmt.Errorf("4:2:2 frame needs %d bytes, got %d", need, len(b))
	}
	out := make([]byte, 0, width*height*3)
	for i := 0; i < width*height*2; i += 4 {
		y1, y2, cb, cr := b[i], b[i+1], b[i+2], b[i+3]
		out = append(out, y1, cb, cr, y2, cb, cr)
	}
	return out, nil
}
