package adapter

import (
	"testing"

	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
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

func image(t raster.ElemType, channels int, samples ...int32) *raster.Image {
	img := raster.New(len(samples)/channels, 1, channels, t)
	copy(img.Ints, samples)
	return img
}

func mono8(t *testing.T, opts ...dicom.Option) *descriptor.Descriptor {
	return newDescriptor(t, append([]dicom.Option{
		dicom.WithElement(tag.Rows, uint16(1)),
		dicom.WithElement(tag.Columns, uint16(4)),
		dicom.WithElement(tag.BitsAllocated, uint16(8)),
		dicom.WithElement(tag.BitsStored, uint16(8)),
		dicom.WithElement(tag.PhotometricInterpretation, "MONOCHROME2"),
	}, opts...)...)
}

func signed16(t *testing.T, opts ...dicom.Option) *descriptor.Descriptor {
	return newDescriptor(t, append([]dicom.Option{
		dicom.WithElement(tag.Rows, uint16(1)),
		dicom.WithElement(tag.Columns, uint16(4)),
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.BitsStored, uint16(16)),
		dicom.WithElement(tag.PixelRepresentation, uint16(1)),
	}, opts...)...)
}

func TestAdapter_IdentityEightBit(t *testing.T) {
	desc := mono8(t,
		dicom.WithElement(tag.RescaleSlope, "1"),
		dicom.WithElement(tag.RescaleIntercept, "0"),
	)
	a := New(image(raster.Unsigned8, 1, 10, 20, 30, 200), desc, 0)

	assert.Nil(t, a.ModalityLookup(nil, false))
	assert.Equal(t, descriptor.MinMax{Min: 10, Max: 200}, a.MinMax())
	assert.Equal(t, 190.0, a.DefaultWindow(nil))
	assert.Equal(t, 105.0, a.DefaultLevel(nil))
	assert.Equal(t, lut.FunctionLinear, a.DefaultShape(nil).Function)

	mm, src := desc.MinMax(0)
	assert.Equal(t, descriptor.SourceFrame, src)
	assert.Equal(t, 200.0, mm.Max)
}

func TestAdapter_PaddingMonochrome1(t *testing.T) {
	desc := signed16(t,
		dicom.WithElement(tag.Modality, "CT"),
		dicom.WithElement(tag.PhotometricInterpretation, "MONOCHROME1"),
		dicom.WithElement(tag.PixelPaddingValue, int16(-2000)),
	)
	cache := lut.NewCache(4)
	a := New(image(raster.Signed16, 1, -2000, -100, 0, 500), desc, 0, WithCache(cache))
	assert.Equal(t, descriptor.MinMax{Min: -100, Max: 500}, a.MinMax())

	inverted := a.ModalityLookup(nil, false)
	require.NotNil(t, inverted)
	assert.Equal(t, int32(32767), inverted.Lookup(-2000), "padding fills bright for MONOCHROME1")
	assert.Equal(t, int32(-100), inverted.Lookup(-100))

	p, ok := a.LUTParameters(nil, false)
	require.True(t, ok)
	assert.True(t, p.InversePadding)
	assert.True(t, p.OutputSigned)

	toggled := a.ModalityLookup(nil, true)
	require.NotNil(t, toggled)
	assert.NotSame(t, inverted, toggled)
	assert.Equal(t, int32(-32768), toggled.Lookup(-2000))

	// without padding the inverse action is ignored
	noPad := DefaultPresentation{PixelPadding: false}
	p1, _ := a.LUTParameters(noPad, false)
	p2, _ := a.LUTParameters(noPad, true)
	assert.Equal(t, p1, p2)
}

func TestAdapter_CacheSharesTables(t *testing.T) {
	cache := lut.NewCache(4)
	opts := []dicom.Option{
		dicom.WithElement(tag.Modality, "CT"),
		dicom.WithElement(tag.RescaleSlope, "1"),
		dicom.WithElement(tag.RescaleIntercept, "-1024"),
	}
	a := New(image(raster.Signed16, 1, 0, 10, 20, 3000), signed16(t, opts...), 0, WithCache(cache))
	b := New(image(raster.Signed16, 1, 3000, 20, 10, 0), signed16(t, opts...), 0, WithCache(cache))

	first := a.ModalityLookup(nil, false)
	require.NotNil(t, first)
	assert.Same(t, first, a.ModalityLookup(nil, false))
	assert.Same(t, first, b.ModalityLookup(nil, false))
	assert.Equal(t, int32(-1014), first.Lookup(10))
	assert.Equal(t, -1024.0, a.MinValue(nil))
	assert.Equal(t, 1976.0, a.MaxValue(nil))
}

func TestAdapter_UniformImage(t *testing.T) {
	a := New(image(raster.Unsigned8, 1, 7, 7, 7, 7), mono8(t), 0)
	assert.Equal(t, descriptor.MinMax{Min: 7, Max: 8}, a.MinMax())
}

func TestAdapter_ColorFastPath(t *testing.T) {
	desc := newDescriptor(t,
		dicom.WithElement(tag.Rows, uint16(1)),
		dicom.WithElement(tag.Columns, uint16(2)),
		dicom.WithElement(tag.SamplesPerPixel, uint16(3)),
		dicom.WithElement(tag.PhotometricInterpretation, "RGB"),
	)
	a := New(image(raster.Unsigned8, 3, 10, 20, 30, 40, 50, 60), desc, 0)
	assert.Equal(t, descriptor.MinMax{Min: 0, Max: 255}, a.MinMax())
}

func TestAdapter_WidensBitsStored(t *testing.T) {
	desc := newDescriptor(t,
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.BitsStored, uint16(12)),
	)
	a := New(image(raster.Unsigned16, 1, 0, 100, 5000, 4), desc, 0)
	assert.Equal(t, 16, a.BitsStored())
	assert.Equal(t, 12, desc.BitsStored, "descriptor untouched")

	// the cached range widens later adapters too
	b := New(nil, desc, 0)
	assert.Equal(t, 16, b.BitsStored())

	c := New(image(raster.Unsigned16, 1, 0, 4095), newDescriptor(t,
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.BitsStored, uint16(12)),
	), 0)
	assert.Equal(t, 12, c.BitsStored())
}

func TestAdapter_WideElements(t *testing.T) {
	desc := newDescriptor(t,
		dicom.WithElement(tag.BitsAllocated, uint16(32)),
		dicom.WithElement(tag.Modality, "CT"),
		dicom.WithElement(tag.RescaleSlope, "2"),
		dicom.WithElement(tag.RescaleIntercept, "1"),
	)
	img := raster.New(2, 1, 1, raster.Float32)
	img.Floats[0], img.Floats[1] = -1.5, 2.5
	a := New(img, desc, 0)
	assert.Equal(t, 32, a.BitsStored())
	assert.Nil(t, a.ModalityLookup(nil, false))
	assert.Equal(t, -1.5, a.MinValue(nil))
}

func TestAdapter_NegativeSlope(t *testing.T) {
	desc := newDescriptor(t,
		dicom.WithElement(tag.BitsAllocated, uint16(16)),
		dicom.WithElement(tag.Modality, "CT"),
		dicom.WithElement(tag.RescaleSlope, "-1"),
		dicom.WithElement(tag.RescaleIntercept, "0"),
	)
	a := New(image(raster.Unsigned16, 1, 0, 40, 100), desc, 0, WithCache(lut.NewCache(2)))
	assert.Equal(t, -100.0, a.MinValue(nil))
	assert.Equal(t, 0.0, a.MaxValue(nil))
	assert.True(t, a.IsModalityLUTOutSigned(nil))
	assert.Equal(t, -32768, a.MinAllocatedValue(nil))
	assert.Equal(t, 32767, a.MaxAllocatedValue(nil))
}

func TestAdapter_ModalitySequence(t *testing.T) {
	item, err := dicom.NewDataset(
		dicom.WithElement(tag.LUTDescriptor, []uint16{4, 0, 16}),
		dicom.WithElementVR(tag.LUTData, "OW", []uint16{100, 200, 300, 400}),
		dicom.WithElement(tag.ModalityLUTType, "OD"),
	)
	require.NoError(t, err)
	seq := dicom.WithSequence(tag.ModalityLUTSequence, item)

	desc := mono8(t, dicom.WithElement(tag.Modality, "OT"), seq)
	a := New(image(raster.Unsigned8, 1, 0, 1, 2, 3), desc, 0)
	table := a.ModalityLookup(nil, false)
	require.NotNil(t, table)
	assert.Same(t, desc.ModalityLUT.LUT, table)
	assert.Equal(t, 100.0, a.MinValue(nil))
	assert.Equal(t, 400.0, a.MaxValue(nil))

	// values outside the table domain fall back to the identity rescale
	desc = mono8(t, dicom.WithElement(tag.Modality, "OT"), seq)
	a = New(image(raster.Unsigned8, 1, 0, 1, 2, 9), desc, 0)
	assert.Nil(t, a.ModalityLookup(nil, false))
}

func TestAdapter_PhotometricInverse(t *testing.T) {
	a := New(image(raster.Unsigned8, 1, 0, 1), mono8(t, dicom.WithElement(tag.PhotometricInterpretation, "MONOCHROME1")), 0)
	assert.True(t, a.IsPhotometricInterpretationInverse(nil))

	b := New(image(raster.Unsigned8, 1, 0, 1), mono8(t,
		dicom.WithElement(tag.PhotometricInterpretation, "MONOCHROME1"),
		dicom.WithElement(tag.PresentationLUTShape, "IDENTITY"),
	), 0)
	assert.False(t, b.IsPhotometricInterpretationInverse(nil))

	c := New(image(raster.Unsigned8, 1, 0, 1), mono8(t), 0)
	assert.False(t, c.IsPhotometricInterpretationInverse(nil))
}

func TestAdapter_VOILookup(t *testing.T) {
	a := New(image(raster.Unsigned8, 1, 10, 20, 30, 200), mono8(t), 0)
	wp := NewWindowParams(a)
	assert.Equal(t, 10.0, wp.LevelMin)
	assert.Equal(t, 200.0, wp.LevelMax)

	table, err := a.VOILookup(wp)
	require.NoError(t, err)
	assert.Equal(t, 10, table.Offset)
	assert.Equal(t, 191, table.NumEntries())
	assert.Equal(t, raster.Unsigned8, table.Type)
	assert.Equal(t, int32(0), table.Lookup(10))
	assert.Equal(t, int32(255), table.Lookup(200))

	wp = NewWindowParams(a, WithFillOutsideLUTRange(true))
	table, err = a.VOILookup(wp)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Offset)
	assert.Equal(t, 256, table.NumEntries())
}

func TestAdapter_VOILookupPaddingDomain(t *testing.T) {
	desc := signed16(t,
		dicom.WithElement(tag.Modality, "CT"),
		dicom.WithElement(tag.PhotometricInterpretation, "MONOCHROME1"),
		dicom.WithElement(tag.PixelPaddingValue, int16(-2000)),
		dicom.WithElement(tag.WindowCenter, "40"),
		dicom.WithElement(tag.WindowWidth, "400"),
	)
	a := New(image(raster.Signed16, 1, -2000, -100, 0, 500), desc, 0, WithCache(lut.NewCache(2)))
	table, err := a.VOILookup(NewWindowParams(a))
	require.NoError(t, err)
	assert.Equal(t, -32768, table.Offset)
	assert.Equal(t, 65536, table.NumEntries())
	assert.Equal(t, int32(255), table.Lookup(-1000), "MONOCHROME1 displays low values bright")
	assert.Equal(t, int32(0), table.Lookup(1000))
}

func TestNewWindowParams_Overrides(t *testing.T) {
	a := New(image(raster.Unsigned8, 1, 10, 20, 30, 200), mono8(t), 0)
	wp := NewWindowParams(a,
		WithWindow(50),
		WithLevel(100),
		WithShape(lut.Sigmoid),
		WithPixelPadding(false),
		WithInverseLUT(true),
		WithWinLevelOnColor(true),
	)
	assert.Equal(t, 50.0, wp.Window)
	assert.Equal(t, 100.0, wp.Level)
	assert.Equal(t, lut.FunctionSigmoid, wp.Shape.Function)
	assert.Equal(t, 10.0, wp.LevelMin, "full range wider than the window")
	assert.Equal(t, 200.0, wp.LevelMax)
	assert.False(t, wp.IsPixelPadding())
	assert.True(t, wp.InverseLUT)
	assert.True(t, wp.AllowWinLevelOnColor)

	wp = NewWindowParams(a, WithLevelRange(-5, 5))
	assert.Equal(t, -5.0, wp.LevelMin)
	assert.Equal(t, 5.0, wp.LevelMax)
}
