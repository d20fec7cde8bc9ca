package render

import (
	"image/color"
	"testing"

	"github.com/jpfielding/dcmimage.go/pkg/adapter"
	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"github.com/jpfielding/dcmimage.go/pkg/module"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDescriptor(t *testing.T, opts ...dicom.Option) *descriptor.Descriptor {
	t.Helper()
	ds, err := dicom.NewDataset(opts...)
	require.NoError(t, err)
	return descriptor.New(ds)
}

func row(typ raster.ElemType, channels int, samples ...int32) *raster.Image {
	img := raster.New(len(samples)/channels, 1, channels, typ)
	copy(img.Ints, samples)
	return img
}

func embeddedOverlay(bitPosition int) []dicom.Option {
	return []dicom.Option{
		dicom.WithElement(tag.Overlay(0, tag.OverlayRows), uint16(1)),
		dicom.WithElement(tag.Overlay(0, tag.OverlayColumns), uint16(2)),
		dicom.WithElement(tag.Overlay(0, tag.OverlayBitsAllocated), uint16(16)),
		dicom.WithElement(tag.Overlay(0, tag.OverlayBitPosition), uint16(bitPosition)),
	}
}

func TestWithoutEmbeddedOverlay_LowBits(t *testing.T) {
	desc := newDescriptor(t, append(embeddedOverlay(12),
		dicom.WithElement(tag.Rows, uint16(1)),
		dicom.WithElement(tag.Columns, uint16(2)),
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.BitsStored, uint16(12)),
		dicom.WithElement(tag.HighBit, uint16(11)),
	)...)
	require.Len(t, desc.EmbeddedOverlays, 1)

	img := row(raster.Unsigned16, 1, 0x1005, 0x0FFF)
	once := WithoutEmbeddedOverlay(img, desc, 0)
	assert.Equal(t, []int32{0x005, 0xFFF}, once.Ints)
	assert.Equal(t, []int32{0x1005, 0x0FFF}, img.Ints, "source untouched")

	twice := WithoutEmbeddedOverlay(once, desc, 0)
	assert.Equal(t, once.Ints, twice.Ints)
	assert.False(t, desc.ModalityLUT.OverlayAdapted())
}

func TestWithoutEmbeddedOverlay_HighBitsAdaptSlopeOnce(t *testing.T) {
	desc := newDescriptor(t, append(embeddedOverlay(0),
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.BitsStored, uint16(12)),
		dicom.WithElement(tag.HighBit, uint16(15)),
	)...)

	img := row(raster.Unsigned16, 1, 0x1231, 0xFFFF)
	once := WithoutEmbeddedOverlay(img, desc, 0)
	assert.Equal(t, []int32{0x1230, 0xFFF0}, once.Ints)
	twice := WithoutEmbeddedOverlay(once, desc, 0)
	assert.Equal(t, once.Ints, twice.Ints)

	assert.True(t, desc.ModalityLUT.OverlayAdapted())
	assert.Equal(t, 1.0/16, desc.ModalityLUT.Slope(), "applied once")
}

func TestWithoutEmbeddedOverlay_HighBitPastAllocated(t *testing.T) {
	desc := newDescriptor(t, append(embeddedOverlay(0),
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.BitsStored, uint16(12)),
		dicom.WithElement(tag.HighBit, uint16(31)),
	)...)
	require.Equal(t, 15, desc.HighBit)

	once := WithoutEmbeddedOverlay(row(raster.Unsigned16, 1, 0x1231, 0xFFFF), desc, 0)
	assert.Equal(t, []int32{0x1230, 0xFFF0}, once.Ints)
}

func TestWithoutEmbeddedOverlay_NoOverlay(t *testing.T) {
	desc := newDescriptor(t, dicom.WithElement(tag.BitsAllocated, uint16(16)), dicom.WithElement(tag.BitsStored, uint16(12)))
	img := row(raster.Unsigned16, 1, 0xF000)
	assert.Same(t, img, WithoutEmbeddedOverlay(img, desc, 0))
}

func ct(t *testing.T) *descriptor.Descriptor {
	return newDescriptor(t,
		dicom.WithElement(tag.Rows, uint16(1)),
		dicom.WithElement(tag.Columns, uint16(3)),
		dicom.WithElement(tag.Modality, "CT"),
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.BitsStored, uint16(16)),
		dicom.WithElement(tag.PixelRepresentation, uint16(1)),
		dicom.WithElement(tag.RescaleSlope, "1"),
		dicom.WithElement(tag.RescaleIntercept, "-1024"),
		dicom.WithElement(tag.WindowCenter, "40"),
		dicom.WithElement(tag.WindowWidth, "400"),
	)
}

func TestRawRenderedImage_Rescale(t *testing.T) {
	img := row(raster.Signed16, 1, 0, 1024, 2048)
	out, err := RawRenderedImage(img, ct(t), nil, 0, adapter.WithCache(lut.NewCache(2)))
	require.NoError(t, err)
	assert.Equal(t, raster.Signed16, out.Type)
	assert.Equal(t, []int32{-1024, 0, 1024}, out.Ints)
}

func TestVOILUTImage_Window(t *testing.T) {
	desc := ct(t)
	img := row(raster.Signed16, 1, 0, 1064, 2048)
	a := adapter.New(img, desc, 0, adapter.WithCache(lut.NewCache(2)))

	out, err := VOILUTImage(img, a, nil)
	require.NoError(t, err)
	assert.Equal(t, raster.Unsigned8, out.Type)
	assert.Equal(t, int32(0), out.Ints[0])
	assert.InDelta(t, 128, out.Ints[1], 1, "level maps to mid gray")
	assert.Equal(t, int32(255), out.Ints[2])

	p := NewReadParam().SetWindowLevel(4000, 0)
	out, err = VOILUTImage(img, a, p)
	require.NoError(t, err)
	assert.Greater(t, out.Ints[0], int32(0))
	assert.Less(t, out.Ints[2], int32(255))

	p = NewReadParam()
	p.InverseLUT = true
	out, err = VOILUTImage(img, a, p)
	require.NoError(t, err)
	assert.Equal(t, int32(0), out.Ints[0], "inverse action only affects padding")
}

func TestVOILUTImage_ColorPassThrough(t *testing.T) {
	desc := newDescriptor(t,
		dicom.WithElement(tag.SamplesPerPixel, uint16(3)),
		dicom.WithElement(tag.PhotometricInterpretation, "RGB"),
	)
	img := row(raster.Unsigned8, 3, 1, 2, 3)
	a := adapter.New(img, desc, 0)

	out, err := VOILUTImage(img, a, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, out.Ints)

	p := NewReadParam().SetWindowLevel(2, 2)
	p.AllowWinLevelOnColor = true
	out, err = VOILUTImage(img, a, p)
	require.NoError(t, err)
	assert.NotEqual(t, []int32{1, 2, 3}, out.Ints)

	p = NewReadParam().SetWindowLevel(255, 127.5)
	p.AllowWinLevelOnColor = true
	out, err = VOILUTImage(img, a, p)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, out.Ints, "default window skipped")
}

func TestVOILUTImage_FloatLinear(t *testing.T) {
	desc := newDescriptor(t, dicom.WithElement(tag.BitsAllocated, uint16(32)), dicom.WithElement(tag.Modality, "CT"))
	img := raster.New(4, 1, 1, raster.Float32)
	copy(img.Floats, []float64{-5, 0, 50, 200})
	a := adapter.New(img, desc, 0)

	out, err := VOILUTImage(img, a, NewReadParam().SetWindowLevel(100, 50))
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0, 128, 255}, out.Ints)
}

func TestVOILUTImage_IntDegenerateWindow(t *testing.T) {
	desc := newDescriptor(t, dicom.WithElement(tag.BitsAllocated, uint16(32)), dicom.WithElement(tag.Modality, "RTDOSE"))
	img := row(raster.Signed32, 1, 9, 10, 11)
	a := adapter.New(img, desc, 0)

	out, err := VOILUTImage(img, a, NewReadParam().SetWindowLevel(0, 10))
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 255, 255}, out.Ints)
}

func TestVOILUTImage_PresentationLUT(t *testing.T) {
	desc := newDescriptor(t, dicom.WithElement(tag.Modality, "OT"))
	img := row(raster.Unsigned8, 1, 0, 100, 255)
	a := adapter.New(img, desc, 0)

	data := make([]int32, 256)
	for i := range data {
		data[i] = int32(255 - i)
	}
	p := NewReadParam()
	p.PresentationState = &module.PresentationState{LUT: lut.New(0, raster.Unsigned8, data)}

	out, err := VOILUTImage(img, a, p)
	require.NoError(t, err)
	assert.Equal(t, []int32{255, 155, 0}, out.Ints)
}

func TestOverlayImage(t *testing.T) {
	desc := newDescriptor(t,
		dicom.WithElement(tag.Rows, uint16(2)),
		dicom.WithElement(tag.Columns, uint16(2)),
		dicom.WithElement(tag.Overlay(1, tag.OverlayRows), uint16(2)),
		dicom.WithElement(tag.Overlay(1, tag.OverlayColumns), uint16(2)),
		dicom.WithElement(tag.Overlay(1, tag.OverlayOrigin), []int16{1, 2}),
		dicom.WithElementVR(tag.Overlay(1, tag.OverlayData), "OB", []byte{0x01}),
	)
	require.Len(t, desc.Overlays, 1)
	src := raster.New(2, 2, 1, raster.Unsigned8)
	rendered := raster.New(2, 2, 1, raster.Unsigned8)

	gray := OverlayImage(src, rendered, desc, nil, 0)
	assert.Equal(t, []int32{0, 255, 0, 0}, gray.Ints, "origin shifts one column")

	p := NewReadParam()
	p.OverlayColor = color.RGBA{R: 255, A: 255}
	red := OverlayImage(src, rendered, desc, p, 0)
	require.Equal(t, 3, red.Channels)
	assert.Equal(t, []int32{255, 0, 0}, red.Ints[3:6])

	assert.Same(t, rendered, OverlayImage(src, rendered, desc, nil, 1), "frame without plane")
}

func TestDefaultRenderedImage_EmbeddedOverlay(t *testing.T) {
	desc := newDescriptor(t, append(embeddedOverlay(12),
		dicom.WithElement(tag.Rows, uint16(1)),
		dicom.WithElement(tag.Columns, uint16(2)),
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.BitsStored, uint16(12)),
		dicom.WithElement(tag.WindowCenter, "2048"),
		dicom.WithElement(tag.WindowWidth, "4096"),
	)...)
	img := row(raster.Unsigned16, 1, 0x1000, 0x0000)

	out, err := DefaultRenderedImage(img, desc, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{255, 0}, out.Ints)
}

func TestReadParam_Unsupported(t *testing.T) {
	p := NewReadParam()
	assert.ErrorIs(t, p.SetSourceSubsampling(2, 2, 0, 0), ErrUnsupportedOperation)
	assert.ErrorIs(t, p.SetDestinationType(raster.Unsigned8), ErrUnsupportedOperation)
	assert.ErrorIs(t, p.SetSourceBands([]int{0}), ErrUnsupportedOperation)
	assert.ErrorIs(t, p.SetDestinationBands([]int{0}), ErrUnsupportedOperation)

	assert.True(t, p.PixelPadding())
	assert.False(t, p.SetPixelPadding(false).PixelPadding())
	_, _, ok := p.WindowLevel()
	assert.False(t, ok)
}
