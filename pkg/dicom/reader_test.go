package dicom

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeToBuffer(t *testing.T, ds *Dataset) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := Write(&buf, ds)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

func TestReader_NativePixelDataRegion(t *testing.T) {
	pixels := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	ds, err := NewDataset(
		WithFileMeta("1.2.840.10008.5.1.4.1.1.7", "1.2.3.4", string(transfer.ExplicitVRLittleEndian)),
		WithElement(tag.Rows, uint16(2)),
		WithElement(tag.Columns, uint16(2)),
		WithElement(tag.BitsAllocated, uint16(16)),
		WithNativePixelData(pixels),
	)
	require.NoError(t, err)
	raw := writeToBuffer(t, ds)

	parsed, err := ParseWithOptions(bytes.NewReader(raw), ReadOptions{SkipPixelBytes: true})
	require.NoError(t, err)

	pd, ok := GetPixelData(parsed)
	require.True(t, ok)
	assert.False(t, pd.IsEncapsulated)
	assert.Nil(t, pd.Native, "skipped bytes are not loaded")
	assert.Equal(t, int64(len(pixels)), pd.Bulk.Length)
	assert.Equal(t, pixels, raw[pd.Bulk.Offset:pd.Bulk.End()])

	assert.Equal(t, 2, GetInt(parsed, tag.Rows, 0))
	assert.Equal(t, transfer.ExplicitVRLittleEndian, GetTransferSyntax(parsed))
}

func TestReader_EncapsulatedFragmentRegions(t *testing.T) {
	frag1 := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	frag2 := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	ds, err := NewDataset(
		WithFileMeta("1.2.840.10008.5.1.4.1.1.7", "1.2.3.4", string(transfer.JPEGBaseline)),
		WithElement(tag.NumberOfFrames, "2"),
		WithEncapsulatedPixelData([]uint32{0, 12}, frag1, frag2),
	)
	require.NoError(t, err)
	raw := writeToBuffer(t, ds)

	for _, skip := range []bool{true, false} {
		parsed, err := ParseWithOptions(bytes.NewReader(raw), ReadOptions{SkipPixelBytes: skip})
		require.NoError(t, err)

		pd, ok := GetPixelData(parsed)
		require.True(t, ok)
		require.True(t, pd.IsEncapsulated)
		require.Equal(t, 3, pd.NumFragments(), "basic offset table plus two fragments")
		assert.Equal(t, []uint32{0, 12}, pd.Offsets)
		assert.Equal(t, int64(8), pd.Fragments[0].Region.Length)

		assert.Equal(t, frag1, raw[pd.Fragments[1].Region.Offset:pd.Fragments[1].Region.End()])
		assert.Equal(t, frag2, raw[pd.Fragments[2].Region.Offset:pd.Fragments[2].Region.End()])
		if skip {
			assert.Nil(t, pd.Fragments[1].Data)
		} else {
			assert.Equal(t, frag2, pd.Fragments[2].Data)
		}
	}
}

func TestReader_Sequences(t *testing.T) {
	item, err := NewDataset(
		WithElement(tag.LUTDescriptor, []uint16{4, 0, 8}),
		WithElement(tag.LUTExplanation, "ramp"),
		WithElementVR(tag.LUTData, "OW", []uint16{0, 10, 20, 30}),
	)
	require.NoError(t, err)
	ds, err := NewDataset(
		WithFileMeta("1.2.840.10008.5.1.4.1.1.7", "1.2.3.4", string(transfer.ExplicitVRLittleEndian)),
		WithSequence(tag.VOILUTSequence, item),
		WithElement(tag.Rows, uint16(8)),
	)
	require.NoError(t, err)

	parsed, err := Parse(bytes.NewReader(writeToBuffer(t, ds)))
	require.NoError(t, err)

	items := GetSequence(parsed, tag.VOILUTSequence)
	require.Len(t, items, 1)
	assert.Equal(t, []int{4, 0, 8}, GetInts(items[0], tag.LUTDescriptor))
	assert.Equal(t, "ramp", GetString(items[0], tag.LUTExplanation, ""))
	assert.Equal(t, []byte{0, 0, 10, 0, 20, 0, 30, 0}, GetBytes(items[0], tag.LUTData))
	assert.Equal(t, 8, GetInt(parsed, tag.Rows, 0), "elements after the sequence are read")
}

// implicitElement encodes an Implicit VR Little Endian element
func implicitElement(t Tag, value []byte) []byte {
	var b []byte
	b = binary.LittleEndian.AppendUint16(b, t.Group)
	b = binary.LittleEndian.AppendUint16(b, t.Element)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(value)))
	return append(b, value...)
}

func TestReader_ImplicitVR(t *testing.T) {
	meta, err := NewDataset(WithFileMeta("1.2.840.10008.5.1.4.1.1.7", "1.2.3", string(transfer.ImplicitVRLittleEndian)))
	require.NoError(t, err)
	raw := writeToBuffer(t, meta)
	raw = append(raw, implicitElement(tag.Rows, []byte{0x00, 0x02})...)
	raw = append(raw, implicitElement(tag.WindowCenter, []byte("40\\400 "))...)
	raw = append(raw, implicitElement(tag.PixelPaddingValue, []byte{0x18, 0xFC})...)

	parsed, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, 512, GetInt(parsed, tag.Rows, 0))
	assert.Equal(t, []float64{40, 400}, GetFloats(parsed, tag.WindowCenter))
	elem, ok := parsed.Get(tag.PixelPaddingValue)
	require.True(t, ok)
	assert.Equal(t, "US", elem.VR, "implicit VR comes from the dictionary")
	assert.Equal(t, uint16(0xFC18), elem.Value)
}

func TestReader_DeflatedBody(t *testing.T) {
	meta, err := NewDataset(WithFileMeta("1.2.840.10008.5.1.4.1.1.7", "1.2.3", string(transfer.DeflatedExplicitVR)))
	require.NoError(t, err)
	body, err := NewDataset(
		WithElement(tag.Rows, uint16(3)),
		WithElement(tag.PhotometricInterpretation, "MONOCHROME2"),
	)
	require.NoError(t, err)

	var plain bytes.Buffer
	_, err = writeDataSetBody(&plain, body)
	require.NoError(t, err)

	var deflated bytes.Buffer
	fw, err := flate.NewWriter(&deflated, flate.BestCompression)
	require.NoError(t, err)
	_, err = fw.Write(plain.Bytes())
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	raw := append(writeToBuffer(t, meta), deflated.Bytes()...)
	parsed, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 3, GetInt(parsed, tag.Rows, 0))
	assert.Equal(t, "MONOCHROME2", GetString(parsed, tag.PhotometricInterpretation, ""))
}

func TestReader_MissingMagic(t *testing.T) {
	_, err := Parse(bytes.NewReader(make([]byte, 200)))
	assert.Error(t, err)
}

// implicitBody returns a file without meta group holding one implicit VR
// element that declares vl bytes but carries only four
func implicitBody(t Tag, vl uint32) []byte {
	raw := append(make([]byte, 128), "DICM"...)
	raw = binary.LittleEndian.AppendUint16(raw, t.Group)
	raw = binary.LittleEndian.AppendUint16(raw, t.Element)
	raw = binary.LittleEndian.AppendUint32(raw, vl)
	return append(raw, 'D', 'O', 'E', ' ')
}

func TestReader_ValueLengthPastInput(t *testing.T) {
	for _, tt := range []struct {
		name string
		tag  Tag
		skip bool
	}{
		{"value", tag.PatientName, false},
		{"native pixel data", tag.PixelData, false},
		{"skipped pixel data", tag.PixelData, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWithOptions(bytes.NewReader(implicitBody(tt.tag, 0x7FFFFFF0)), ReadOptions{SkipPixelBytes: tt.skip})
			assert.ErrorIs(t, err, ErrValueLength)
		})
	}

	// a declared length that fits is read as usual
	ds, err := Parse(bytes.NewReader(implicitBody(tag.PatientName, 4)))
	require.NoError(t, err)
	assert.Equal(t, "DOE", GetString(ds, tag.PatientName, ""))

	// plain readers are bounded through the size option
	raw := implicitBody(tag.PatientName, 0x7FFFFFF0)
	_, err = ParseWithOptions(io.MultiReader(bytes.NewReader(raw)), ReadOptions{Size: int64(len(raw))})
	assert.ErrorIs(t, err, ErrValueLength)
}

func TestReader_FragmentLengthPastInput(t *testing.T) {
	raw := append(make([]byte, 128), "DICM"...)
	raw = binary.LittleEndian.AppendUint16(raw, tag.PixelData.Group)
	raw = binary.LittleEndian.AppendUint16(raw, tag.PixelData.Element)
	raw = binary.LittleEndian.AppendUint32(raw, 0xFFFFFFFF)
	// empty offset table, then a fragment far longer than the input
	raw = binary.LittleEndian.AppendUint16(raw, tag.Item.Group)
	raw = binary.LittleEndian.AppendUint16(raw, tag.Item.Element)
	raw = binary.LittleEndian.AppendUint32(raw, 0)
	raw = binary.LittleEndian.AppendUint16(raw, tag.Item.Group)
	raw = binary.LittleEndian.AppendUint16(raw, tag.Item.Element)
	raw = binary.LittleEndian.AppendUint32(raw, 0x40000000)
	raw = append(raw, 1, 2, 3, 4)

	_, err := Parse(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrValueLength)
	assert.ErrorContains(t, err, "fragment 1")
}

func TestElement_Getters(t *testing.T) {
	tests := []struct {
		name   string
		value  interface{}
		ints   []int
		floats []float64
	}{
		{"us", uint16(7), []int{7}, []float64{7}},
		{"ss", int16(-7), []int{-7}, []float64{-7}},
		{"us multi", []uint16{1, 2}, []int{1, 2}, []float64{1, 2}},
		{"is string", "3\\4", []int{3, 4}, []float64{3, 4}},
		{"ds string", "1.5\\-2", nil, []float64{1.5, -2}},
		{"fd", []float64{0.25}, nil, []float64{0.25}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			elem := &Element{Value: tc.value}
			ints, ok := elem.GetInts()
			if tc.ints == nil {
				assert.False(t, ok)
			} else {
				assert.True(t, ok)
				assert.Equal(t, tc.ints, ints)
			}
			floats, ok := elem.GetFloats()
			assert.True(t, ok)
			assert.Equal(t, tc.floats, floats)
		})
	}
}

func TestWrite_OddLengthPadding(t *testing.T) {
	ds, err := NewDataset(
		WithFileMeta("1.2.840.10008.5.1.4.1.1.7", "1.2.3", string(transfer.ExplicitVRLittleEndian)),
		WithElement(tag.Modality, "OT1"),
		WithElement(tag.PixelPaddingValue, int16(-1000)),
		WithElement(tag.RescaleSlope, 0.5),
	)
	require.NoError(t, err)

	parsed, err := Parse(bytes.NewReader(writeToBuffer(t, ds)))
	require.NoError(t, err)
	assert.Equal(t, "OT1", GetString(parsed, tag.Modality, ""))
	assert.Equal(t, -1000, GetInt(parsed, tag.PixelPaddingValue, 0))
	slope, ok := LookupFloat(parsed, tag.RescaleSlope)
	require.True(t, ok)
	assert.Equal(t, 0.5, slope)
}
