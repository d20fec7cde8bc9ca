package dicom

import (
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
)

// Option configures a Dataset during construction
type Option func(*Dataset) error

// NewDataset creates a Dataset with the given options
func NewDataset(opts ...Option) (*Dataset, error) {
	ds := newDataset()
	for _, opt := range opts {
		if err := opt(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// WithElement adds a single element to the dataset, the VR coming from the dictionary
func WithElement(t tag.Tag, value interface{}) Option {
	return WithElementVR(t, GetVR(t, value), value)
}

// WithElementVR adds a single element with an explicit VR
func WithElementVR(t tag.Tag, vr string, value interface{}) Option {
	return func(ds *Dataset) error {
		ds.Elements[t] = &Element{
			Tag:   t,
			VR:    vr,
			Value: value,
		}
		return nil
	}
}

// WithSequence adds a sequence element to the dataset
func WithSequence(t tag.Tag, items ...*Dataset) Option {
	return WithElementVR(t, "SQ", items)
}

// WithFileMeta adds standard file meta information elements
func WithFileMeta(sopClassUID, sopInstanceUID, transferSyntax string) Option {
	return func(ds *Dataset) error {
		opts := []Option{
			WithElementVR(tag.FileMetaInformationVersion, "OB", []byte{0x00, 0x01}),
			WithElement(tag.MediaStorageSOPClassUID, sopClassUID),
			WithElement(tag.MediaStorageSOPInstanceUID, sopInstanceUID),
			WithElement(tag.TransferSyntaxUID, transferSyntax),
			WithElement(tag.ImplementationClassUID, "1.2.826.0.1.3680043.8.498.1"),
			WithElement(tag.ImplementationVersionName, "GO_DCMIMAGE"),
			WithElement(tag.SOPClassUID, sopClassUID),
			WithElement(tag.SOPInstanceUID, sopInstanceUID),
		}
		for _, opt := range opts {
			if err := opt(ds); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithNativePixelData adds uncompressed pixel data bytes
func WithNativePixelData(data []byte) Option {
	return WithElementVR(tag.PixelData, "OW", &PixelData{
		Native: data,
		Bulk:   ByteRegion{Length: int64(len(data))},
	})
}

// WithEncapsulatedPixelData adds compressed fragments behind a Basic
// Offset Table. offsets may be nil for an empty table.
func WithEncapsulatedPixelData(offsets []uint32, fragments ...[]byte) Option {
	pd := &PixelData{
		IsEncapsulated: true,
		Offsets:        offsets,
		Fragments:      []Fragment{{Region: ByteRegion{Length: int64(len(offsets) * 4)}}},
	}
	for _, f := range fragments {
		pd.Fragments = append(pd.Fragments, Fragment{Region: ByteRegion{Length: int64(len(f))}, Data: f})
	}
	return WithElementVR(tag.PixelData, "OB", pd)
}

// GetVR returns the Value Representation for a tag. Tags whose dictionary
// VR is US follow the value when it is signed (US or SS tags such as
// Pixel Padding Value).
func GetVR(t tag.Tag, value interface{}) string {
	v := tag.LookupVR(t)
	if v == "US" {
		switch value.(type) {
		case int16, []int16:
			return "SS"
		}
	}
	return v
}
