// Package sdicom imports attribute sets parsed by github.com/suyashkumar/dicom
// into the native dataset model, so either parser can feed the image
// descriptor.
package sdicom

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	suyash "github.com/suyashkumar/dicom"
)

// ParseFile parses a file with suyashkumar/dicom, skipping pixel data, and
// converts the attributes
func ParseFile(path string) (*dicom.Dataset, error) {
	src, err := suyash.ParseFile(path, nil, suyash.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return Convert(src.Elements), nil
}

// Convert copies elements into a native dataset. Pixel data is not
// carried over; frames are located by the native reader.
func Convert(elems []*suyash.Element) *dicom.Dataset {
	ds, _ := dicom.NewDataset()
	for _, e := range elems {
		if e == nil || e.Value == nil {
			continue
		}
		t := tag.New(e.Tag.Group, e.Tag.Element)
		if t == tag.PixelData || t == tag.FloatPixelData || t == tag.DoubleFloatPixelData {
			continue
		}
		v := e.RawValueRepresentation
		if v == "" {
			v = tag.LookupVR(t)
		}
		value, ok := convertValue(e.Value.GetValue())
		if !ok {
			slog.Debug("skipping element", slog.String("tag", t.String()), slog.String("type", fmt.Sprintf("%T", e.Value.GetValue())))
			continue
		}
		if _, isSeq := value.([]*dicom.Dataset); isSeq {
			v = "SQ"
		}
		ds.Set(t, v, value)
	}
	return ds
}

func convertValue(raw interface{}) (interface{}, bool) {
	switch v := raw.(type) {
	case []string:
		return strings.Join(v, "\\"), true
	case []int:
		return v, true
	case []float64:
		return v, true
	case []byte:
		return v, true
	case []*suyash.SequenceItemValue:
		items := make([]*dicom.Dataset, 0, len(v))
		for _, item := range v {
			elems, ok := item.GetValue().([]*suyash.Element)
			if !ok {
				continue
			}
			items = append(items, Convert(elems))
		}
		return items, true
	}
	return nil, false
}
