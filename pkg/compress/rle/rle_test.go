package rle

import (
	"encoding/binary"
	"testing"

	"github.com/jpfielding/dcmimage.go/pkg/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRLE_RoundTripGray8(t *testing.T) {
	img := raster.New(100, 20, 1, raster.Unsigned8)
	for y := range img.Height {
		for x := range img.Width {
			v := y
			if x >= 50 {
				v = x
			}
			img.Ints[y*img.Width+x] = int32(v)
		}
	}
	coded, err := Encode(img)
	require.NoError(t, err)
	assert.Less(t, len(coded), img.Len())

	out, err := Decode(coded, raster.Layout{Width: 100, Height: 20, Samples: 1, BitsAllocated: 8})
	require.NoError(t, err)
	assert.Equal(t, img.Ints, out.Ints)
}

func TestRLE_RoundTripSigned16(t *testing.T) {
	img := raster.New(4, 2, 1, raster.Signed16)
	copy(img.Ints, []int32{-1024, -1, 0, 1, 255, 256, 32767, -32768})
	coded, err := Encode(img)
	require.NoError(t, err)

	h, err := ParseHeader(coded)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Segments, "high byte then low byte")

	out, err := Decode(coded, raster.Layout{Width: 4, Height: 2, Samples: 1, BitsAllocated: 16, Signed: true})
	require.NoError(t, err)
	assert.Equal(t, raster.Signed16, out.Type)
	assert.Equal(t, img.Ints, out.Ints)
}

func TestRLE_RoundTripRGB(t *testing.T) {
	img := raster.New(3, 1, 3, raster.Unsigned8)
	copy(img.Ints, []int32{255, 0, 0, 0, 255, 0, 0, 0, 255})
	coded, err := Encode(img)
	require.NoError(t, err)

	h, err := ParseHeader(coded)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Segments, "one segment per color plane")

	out, err := Decode(coded, raster.Layout{Width: 3, Height: 1, Samples: 3, BitsAllocated: 8, Planar: true})
	require.NoError(t, err)
	assert.Equal(t, img.Ints, out.Ints, "output is interleaved")
}

func TestRLE_SegmentsEvenLength(t *testing.T) {
	img := raster.New(3, 1, 1, raster.Unsigned16)
	copy(img.Ints, []int32{1, 2, 3})
	coded, err := Encode(img)
	require.NoError(t, err)
	h, err := ParseHeader(coded)
	require.NoError(t, err)
	for i := range h.Segments {
		assert.Zero(t, h.Offsets[i]%2, "segment %d", i)
	}
	assert.Zero(t, len(coded)%2)
}

func TestParseHeader_Rejects(t *testing.T) {
	_, err := ParseHeader(make([]byte, 10))
	assert.ErrorIs(t, err, ErrHeader)

	hdr := make([]byte, HeaderLength)
	_, err = ParseHeader(hdr)
	assert.ErrorIs(t, err, ErrHeader, "zero segments")

	binary.LittleEndian.PutUint32(hdr, 1)
	binary.LittleEndian.PutUint32(hdr[4:], 60)
	_, err = ParseHeader(hdr)
	assert.ErrorIs(t, err, ErrHeader, "first offset")

	binary.LittleEndian.PutUint32(hdr[4:], 64)
	_, err = ParseHeader(hdr)
	assert.NoError(t, err)
}

func TestDecode_SegmentCountMismatch(t *testing.T) {
	coded, err := Encode(raster.New(2, 2, 1, raster.Unsigned8))
	require.NoError(t, err)
	_, err = Decode(coded, raster.Layout{Width: 2, Height: 2, Samples: 1, BitsAllocated: 16})
	assert.ErrorIs(t, err, ErrHeader)
}

func TestEncode_RejectsFloat(t *testing.T) {
	_, err := Encode(raster.New(1, 1, 1, raster.Float32))
	assert.Error(t, err)
}
