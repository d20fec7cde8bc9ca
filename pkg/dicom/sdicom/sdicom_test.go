package sdicom

import (
	"testing"

	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	suyash "github.com/suyashkumar/dicom"
	stag "github.com/suyashkumar/dicom/pkg/tag"
)

func mustNewElement(t *testing.T, tg stag.Tag, data interface{}) *suyash.Element {
	t.Helper()
	elem, err := suyash.NewElement(tg, data)
	require.NoError(t, err)
	return elem
}

func TestConvert_ImageAttributes(t *testing.T) {
	elems := []*suyash.Element{
		mustNewElement(t, stag.Rows, []int{4}),
		mustNewElement(t, stag.Columns, []int{6}),
		mustNewElement(t, stag.BitsAllocated, []int{16}),
		mustNewElement(t, stag.PhotometricInterpretation, []string{"MONOCHROME1"}),
		mustNewElement(t, stag.WindowCenter, []string{"40", "300"}),
		mustNewElement(t, stag.RescaleSlope, []string{"2.5"}),
	}

	ds := Convert(elems)
	assert.Equal(t, 4, dicom.GetInt(ds, tag.Rows, 0))
	assert.Equal(t, 6, dicom.GetInt(ds, tag.Columns, 0))
	assert.Equal(t, 16, dicom.GetInt(ds, tag.BitsAllocated, 0))
	assert.Equal(t, "MONOCHROME1", dicom.GetString(ds, tag.PhotometricInterpretation, ""))
	assert.Equal(t, []float64{40, 300}, dicom.GetFloats(ds, tag.WindowCenter))
	assert.Equal(t, 2.5, dicom.GetFloat(ds, tag.RescaleSlope, 1))
}

func TestConvert_Sequence(t *testing.T) {
	item := []*suyash.Element{
		mustNewElement(t, stag.LUTExplanation, []string{"soft tissue"}),
	}
	elems := []*suyash.Element{
		mustNewElement(t, stag.VOILUTSequence, [][]*suyash.Element{item}),
	}

	ds := Convert(elems)
	items := dicom.GetSequence(ds, tag.VOILUTSequence)
	require.Len(t, items, 1)
	assert.Equal(t, "soft tissue", dicom.GetString(items[0], tag.LUTExplanation, ""))
}
