package codec

import (
	"testing"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForSyntax_Builtins(t *testing.T) {
	c, err := ForSyntax(transfer.RLELossless)
	require.NoError(t, err)
	assert.Equal(t, "rle", c.Name())

	for _, ts := range []transfer.Syntax{transfer.JPEGLossless, transfer.JPEGLosslessSV1} {
		c, err := ForSyntax(ts)
		require.NoError(t, err)
		assert.Equal(t, "jpeg-lossless", c.Name())
	}

	_, err = ForSyntax(transfer.JPEG2000)
	assert.ErrorIs(t, err, ErrCodecNotFound)
	_, err = ByName("jpeg-xl")
	assert.ErrorIs(t, err, ErrCodecNotFound)
	assert.Equal(t, []string{"jpeg-lossless", "rle"}, Names())
}

func TestLosslessJPEG_SignedRoundTrip(t *testing.T) {
	img := raster.New(4, 1, 1, raster.Signed16)
	copy(img.Ints, []int32{-2048, -1, 0, 2047})
	params := NewParams()
	params[ParamBitsPerSample] = 12
	params[ParamJPEGPrediction] = 1

	c, err := ForSyntax(transfer.JPEGLosslessSV1)
	require.NoError(t, err)
	coded, err := c.Encode(img, params)
	require.NoError(t, err)

	out, err := c.Decode(coded, raster.Layout{Width: 4, Height: 1, Samples: 1, BitsAllocated: 16, Signed: true})
	require.NoError(t, err)
	assert.Equal(t, raster.Signed16, out.Type)
	assert.Equal(t, img.Ints, out.Ints)
}

func TestLosslessJPEG_EightBitInSixteen(t *testing.T) {
	img := raster.New(2, 2, 1, raster.Unsigned16)
	copy(img.Ints, []int32{0, 10, 200, 255})
	params := NewParams()
	params[ParamBitsPerSample] = 8

	c, err := ByName("jpeg-lossless")
	require.NoError(t, err)
	coded, err := c.Encode(img, params)
	require.NoError(t, err)
	out, err := c.Decode(coded, raster.Layout{Width: 2, Height: 2, Samples: 1, BitsAllocated: 16})
	require.NoError(t, err)
	assert.Equal(t, raster.Unsigned16, out.Type, "retagged to the layout type")
	assert.Equal(t, img.Ints, out.Ints)
}

func TestRLE_RoundTrip(t *testing.T) {
	img := raster.New(3, 2, 3, raster.Unsigned8)
	for i := range img.Ints {
		img.Ints[i] = int32(i * 10)
	}
	c, err := ForSyntax(transfer.RLELossless)
	require.NoError(t, err)
	coded, err := c.Encode(img, NewParams())
	require.NoError(t, err)
	out, err := c.Decode(coded, raster.Layout{Width: 3, Height: 2, Samples: 3, BitsAllocated: 8})
	require.NoError(t, err)
	assert.Equal(t, img.Ints, out.Ints)
}

func TestIsLossy(t *testing.T) {
	tests := []struct {
		name string
		set  map[int]int
		want bool
	}{
		{"none", nil, false},
		{"baseline", map[int]int{ParamCompression: CompressionJPEG, ParamJPEGMode: JPEGBaseline}, true},
		{"jpeg lossless", map[int]int{ParamCompression: CompressionJPEG, ParamJPEGMode: JPEGLossless}, false},
		{"jpeg lossless point transform", map[int]int{ParamCompression: CompressionJPEG, ParamJPEGMode: JPEGLossless, ParamJPEGPointTransform: 2}, true},
		{"jpeg-ls lossless", map[int]int{ParamCompression: CompressionJPEGLS}, false},
		{"jpeg-ls near", map[int]int{ParamCompression: CompressionJPEGLS, ParamJPEGLSLossyError: 2}, true},
		{"j2k reversible", map[int]int{ParamCompression: CompressionJ2K}, false},
		{"j2k ratio", map[int]int{ParamCompression: CompressionJ2K, ParamJ2KCompressionFactor: 10}, true},
		{"jpeg-xl lossless", map[int]int{ParamCompression: CompressionJPEGXL, ParamJPEGQuality: 100}, false},
		{"jpeg-xl", map[int]int{ParamCompression: CompressionJPEGXL, ParamJPEGQuality: 85}, true},
		{"rle", map[int]int{ParamCompression: CompressionRLE}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParams()
			for k, v := range tt.set {
				p[k] = v
			}
			assert.Equal(t, tt.want, IsLossy(p))
		})
	}
	assert.False(t, IsLossy(nil))
	assert.Len(t, NewParams(), 16)
}
