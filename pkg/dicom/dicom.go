// Package dicom provides a native Go reader and writer for the DICOM
// attributes that describe pixel data.
//
// The reader records the stream offset of pixel data and of every
// encapsulated fragment so frames can be located and read lazily:
//
//	ds, err := dicom.ReadFile("/path/to/file.dcm", dicom.ReadOptions{SkipPixelBytes: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	pd, ok := dicom.GetPixelData(ds)
package dicom

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
)

// ReadFile reads a DICOM file from disk
func ReadFile(path string, opts ReadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	if opts.Size == 0 {
		if fi, err := f.Stat(); err == nil {
			opts.Size = fi.Size()
		}
	}

	ds, err := ParseWithOptions(f, opts)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ds, nil
}

// ReadBuffer reads a DICOM file from a byte slice
func ReadBuffer(data []byte) (*Dataset, error) {
	return Parse(bytes.NewReader(data))
}

// GetString returns the trimmed string value of a tag or def
func GetString(ds *Dataset, t Tag, def string) string {
	if elem, ok := ds.Get(t); ok {
		if s, ok := elem.GetString(); ok {
			return strings.TrimSpace(s)
		}
	}
	return def
}

// GetStrings returns the values of a multi-valued string tag
func GetStrings(ds *Dataset, t Tag) []string {
	if elem, ok := ds.Get(t); ok {
		if s, ok := elem.GetStrings(); ok {
			return s
		}
	}
	return nil
}

// LookupInt returns the first integer value of a tag and whether it was present
func LookupInt(ds *Dataset, t Tag) (int, bool) {
	if elem, ok := ds.Get(t); ok {
		return elem.GetInt()
	}
	return 0, false
}

// GetInt returns the first integer value of a tag or def
func GetInt(ds *Dataset, t Tag, def int) int {
	if v, ok := LookupInt(ds, t); ok {
		return v
	}
	return def
}

// GetInts returns all integer values of a tag
func GetInts(ds *Dataset, t Tag) []int {
	if elem, ok := ds.Get(t); ok {
		if v, ok := elem.GetInts(); ok {
			return v
		}
	}
	return nil
}

// LookupFloat returns the first floating point value of a tag and whether it was present
func LookupFloat(ds *Dataset, t Tag) (float64, bool) {
	if f := GetFloats(ds, t); len(f) > 0 {
		return f[0], true
	}
	return 0, false
}

// GetFloat returns the first floating point value of a tag or def
func GetFloat(ds *Dataset, t Tag, def float64) float64 {
	if v, ok := LookupFloat(ds, t); ok {
		return v
	}
	return def
}

// GetFloats returns all floating point values of a tag
func GetFloats(ds *Dataset, t Tag) []float64 {
	if elem, ok := ds.Get(t); ok {
		if v, ok := elem.GetFloats(); ok {
			return v
		}
	}
	return nil
}

// GetBytes returns the raw bytes of a binary tag
func GetBytes(ds *Dataset, t Tag) []byte {
	if elem, ok := ds.Get(t); ok {
		if v, ok := elem.GetBytes(); ok {
			return v
		}
	}
	return nil
}

// GetSequence returns the items of a sequence tag
func GetSequence(ds *Dataset, t Tag) []*Dataset {
	if elem, ok := ds.Get(t); ok {
		if v, ok := elem.GetSequence(); ok {
			return v
		}
	}
	return nil
}

// GetTransferSyntax returns the transfer syntax from the dataset
func GetTransferSyntax(ds *Dataset) transfer.Syntax {
	if s := GetString(ds, tag.TransferSyntaxUID, ""); s != "" {
		return transfer.FromUID(s)
	}
	return transfer.ExplicitVRLittleEndian
}

// GetPixelData returns the pixel data of the dataset, looking at the
// integer, float and double float pixel data tags in that order. A dataset
// referencing its pixels through a Pixel Data Provider URL returns a
// PixelData carrying only the URL.
func GetPixelData(ds *Dataset) (*PixelData, bool) {
	if url := GetString(ds, tag.PixelDataProviderURL, ""); url != "" {
		return &PixelData{ProviderURL: url}, true
	}
	for _, t := range []Tag{tag.PixelData, tag.FloatPixelData, tag.DoubleFloatPixelData} {
		if elem, ok := ds.Get(t); ok {
			if pd, ok := elem.GetPixelData(); ok {
				return pd, true
			}
			if b, ok := elem.GetBytes(); ok {
				return &PixelData{Native: b, Bulk: ByteRegion{Length: int64(len(b))}}, true
			}
		}
	}
	return nil, false
}

// IsEncapsulated returns true if the pixel data is encapsulated (compressed)
func IsEncapsulated(ds *Dataset) bool {
	return GetTransferSyntax(ds).IsEncapsulated()
}
