package ljpeg

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/jpfielding/dcmimage.go/pkg/jpegheader"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noise(width, height, channels int, typ raster.ElemType, bits int) *raster.Image {
	rng := rand.New(rand.NewPCG(7, 11))
	img := raster.New(width, height, channels, typ)
	for i := range img.Ints {
		// smooth gradient plus noise keeps every category in play
		img.Ints[i] = int32((i*3 + rng.IntN(64)) % (1 << bits))
	}
	return img
}

func roundTrip(t *testing.T, img *raster.Image, opts Options) *raster.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, opts))
	out, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, img.Width, out.Width)
	require.Equal(t, img.Height, out.Height)
	require.Equal(t, img.Channels, out.Channels)
	return out
}

func TestRoundTrip_Predictors(t *testing.T) {
	img := noise(17, 9, 1, raster.Unsigned16, 12)
	for sel := 1; sel <= 7; sel++ {
		t.Run(fmt.Sprintf("predictor %d", sel), func(t *testing.T) {
			out := roundTrip(t, img, Options{Predictor: sel, Precision: 12})
			assert.Equal(t, raster.Unsigned16, out.Type)
			assert.Equal(t, img.Ints, out.Ints)
		})
	}
}

func TestRoundTrip_EightBit(t *testing.T) {
	img := noise(32, 8, 1, raster.Unsigned8, 8)
	out := roundTrip(t, img, Options{})
	assert.Equal(t, raster.Unsigned8, out.Type)
	assert.Equal(t, img.Ints, out.Ints)
}

func TestRoundTrip_Interleaved(t *testing.T) {
	img := noise(5, 4, 3, raster.Unsigned8, 8)
	out := roundTrip(t, img, Options{Predictor: 4})
	assert.Equal(t, img.Ints, out.Ints)
}

func TestRoundTrip_FullRangeDifferences(t *testing.T) {
	img := raster.New(6, 2, 1, raster.Unsigned16)
	for i := range img.Ints {
		if i%2 == 1 {
			img.Ints[i] = 0x8000
		}
	}
	img.Ints[11] = 0xFFFF
	out := roundTrip(t, img, Options{Precision: 16})
	assert.Equal(t, img.Ints, out.Ints)
}

func TestRoundTrip_SignedBits(t *testing.T) {
	img := raster.New(3, 1, 1, raster.Signed16)
	copy(img.Ints, []int32{-1, -2048, 2047})
	out := roundTrip(t, img, Options{Precision: 12})
	assert.Equal(t, []int32{0xFFF, 0x800, 0x7FF}, out.Ints, "two's complement within precision")
}

func TestRoundTrip_PointTransform(t *testing.T) {
	img := raster.New(4, 2, 1, raster.Unsigned16)
	copy(img.Ints, []int32{3, 4, 5, 1023, 8, 9, 10, 11})
	out := roundTrip(t, img, Options{Precision: 10, PointTransform: 2})
	assert.Equal(t, []int32{0, 4, 4, 1020, 8, 8, 8, 8}, out.Ints)
}

func TestRoundTrip_RestartIntervals(t *testing.T) {
	img := noise(10, 12, 1, raster.Unsigned16, 16)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, Options{Predictor: 6, RestartRows: 5}))
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte{0xFF, markerRST0})+bytes.Count(buf.Bytes(), []byte{0xFF, markerRST0 + 1}))

	out, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, img.Ints, out.Ints)
}

func TestEncode_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, noise(8, 4, 1, raster.Unsigned16, 12), Options{Precision: 12, Predictor: 1}))

	h, err := jpegheader.Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, jpegheader.FamilyJPEG, h.Family)
	assert.True(t, h.IsLossless())
	assert.Equal(t, 12, h.Bits)
	assert.Equal(t, 8, h.Width)
	assert.Equal(t, 4, h.Height)
	assert.Equal(t, 1, h.Predictor)
}

func TestEncode_Rejects(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Encode(&buf, raster.New(2, 2, 1, raster.Float32), Options{}), ErrUnsupported)
	assert.ErrorIs(t, Encode(&buf, raster.New(2, 2, 1, raster.Signed32), Options{}), ErrUnsupported)
	assert.ErrorIs(t, Encode(&buf, raster.New(2, 2, 1, raster.Unsigned8), Options{Predictor: 8}), ErrUnsupported)
	assert.ErrorIs(t, Encode(&buf, raster.New(2, 2, 1, raster.Unsigned8), Options{Precision: 1}), ErrUnsupported)
	assert.ErrorIs(t, Encode(&buf, raster.New(2, 2, 1, raster.Unsigned8), Options{PointTransform: 8}), ErrUnsupported)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0x00, 0x01}))
	assert.ErrorIs(t, err, ErrFormat)

	baseline := []byte{0xFF, 0xD8, 0xFF, 0xC0, 0x00, 0x0B, 8, 0, 1, 0, 1, 1, 1, 0x11, 0}
	_, err = Decode(bytes.NewReader(baseline))
	assert.ErrorIs(t, err, ErrUnsupported)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, noise(32, 32, 1, raster.Unsigned8, 8), Options{}))
	_, err = Decode(bytes.NewReader(buf.Bytes()[:buf.Len()/3]))
	assert.ErrorIs(t, err, ErrFormat)
}

func TestOptimalSpec_LengthLimit(t *testing.T) {
	var counts [numCategories]int
	f := 1
	for i := range counts {
		counts[i] = f
		f *= 2
	}
	spec := optimalSpec(counts)
	total := 0
	for _, n := range spec.bits[1:] {
		total += n
	}
	assert.Equal(t, numCategories, total)
	assert.Len(t, spec.values, numCategories)

	// Kraft sum stays below one, leaving the all ones code unused
	kraft := 0.0
	for l := 1; l <= 16; l++ {
		kraft += float64(spec.bits[l]) / float64(int(1)<<l)
	}
	assert.Less(t, kraft, 1.0)
}

func TestCategoryExtend(t *testing.T) {
	for _, d := range []int{-32767, -255, -1, 1, 2, 255, 32767} {
		ssss := category(d)
		v := d
		if d < 0 {
			v += 1<<ssss - 1
		}
		assert.Equal(t, d, extend(v, ssss), "difference %d", d)
	}
	assert.Equal(t, 16, category(32768))
	assert.Equal(t, 32768, extend(0, 16))
}
