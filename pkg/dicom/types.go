package dicom

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
)

// Dataset represents a complete DICOM dataset
type Dataset struct {
	Elements map[Tag]*Element
}

// Element represents a single DICOM element
type Element struct {
	Tag   Tag
	VR    string      // Value Representation
	Value interface{} // Parsed value
}

// Tag alias to avoid duplication
type Tag = tag.Tag

// ByteRegion is a span of bytes within the source stream
type ByteRegion struct {
	Offset int64
	Length int64
}

// End returns the offset just past the region
func (b ByteRegion) End() int64 {
	return b.Offset + b.Length
}

// Fragment is one item of encapsulated pixel data. Data is nil when the
// reader was asked to skip pixel bytes.
type Fragment struct {
	Region ByteRegion
	Data   []byte
}

// PixelData represents pixel data (native or encapsulated).
//
// For encapsulated data Fragments holds every item in stream order: item 0
// is the Basic Offset Table, items 1..N-1 are the compressed fragments.
type PixelData struct {
	IsEncapsulated bool
	Bulk           ByteRegion // native value span
	Native         []byte     // native value bytes, nil when skipped
	Fragments      []Fragment
	Offsets        []uint32 // Basic Offset Table
	BigEndian      bool
	ProviderURL    string // Pixel Data Provider URL (JPIP), no local bytes
}

// NumFragments returns the item count including the Basic Offset Table
func (pd *PixelData) NumFragments() int {
	return len(pd.Fragments)
}

func newDataset() *Dataset {
	return &Dataset{Elements: make(map[Tag]*Element)}
}

// FindElement returns an element by tag
func (ds *Dataset) FindElement(group, element uint16) (*Element, bool) {
	return ds.Get(Tag{Group: group, Element: element})
}

// Get returns an element by tag
func (ds *Dataset) Get(t Tag) (*Element, bool) {
	if ds == nil {
		return nil, false
	}
	elem, ok := ds.Elements[t]
	return elem, ok
}

// Set stores an element, replacing any previous value for the tag
func (ds *Dataset) Set(t Tag, vr string, value interface{}) {
	ds.Elements[t] = &Element{Tag: t, VR: vr, Value: value}
}

// Remove deletes the element for the tag
func (ds *Dataset) Remove(t Tag) {
	delete(ds.Elements, t)
}

// GetString returns a string value from an element
func (elem *Element) GetString() (string, bool) {
	if s, ok := elem.Value.(string); ok {
		return s, true
	}
	return "", false
}

// GetStrings returns the backslash separated values of a string element
func (elem *Element) GetStrings() ([]string, bool) {
	switch v := elem.Value.(type) {
	case string:
		if v == "" {
			return nil, true
		}
		parts := strings.Split(v, "\\")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, true
	case []string:
		return v, true
	}
	return nil, false
}

// GetInt returns the first value of an element as an int
func (elem *Element) GetInt() (int, bool) {
	switch v := elem.Value.(type) {
	case uint16:
		return int(v), true
	case int16:
		return int(v), true
	case uint32:
		return int(v), true
	case int32:
		return int(v), true
	case int:
		return v, true
	case string:
		first, _, _ := strings.Cut(v, "\\")
		first = strings.TrimSpace(first)
		if i, err := strconv.Atoi(first); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(first, 64); err == nil {
			return int(f), true
		}
	}
	if ints, ok := elem.GetInts(); ok && len(ints) > 0 {
		return ints[0], true
	}
	return 0, false
}

// GetInts returns a slice of ints from an element
func (elem *Element) GetInts() ([]int, bool) {
	switch v := elem.Value.(type) {
	case []uint16:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	case []int16:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	case []uint32:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	case []int32:
		res := make([]int, len(v))
		for i, val := range v {
			res[i] = int(val)
		}
		return res, true
	case []int:
		return v, true
	case uint16, int16, uint32, int32, int:
		i, _ := elem.GetInt()
		return []int{i}, true
	case string:
		parts, _ := elem.GetStrings()
		res := make([]int, 0, len(parts))
		for _, p := range parts {
			i, err := strconv.Atoi(p)
			if err != nil {
				return nil, false
			}
			res = append(res, i)
		}
		return res, true
	case []byte:
		if len(v)%2 == 0 {
			res := make([]int, len(v)/2)
			for i := 0; i < len(res); i++ {
				res[i] = int(binary.LittleEndian.Uint16(v[i*2:]))
			}
			return res, true
		}
	}
	return nil, false
}

// GetFloats returns a slice of float64s from an element
func (elem *Element) GetFloats() ([]float64, bool) {
	switch v := elem.Value.(type) {
	case []float32:
		res := make([]float64, len(v))
		for i, val := range v {
			res[i] = float64(val)
		}
		return res, true
	case []float64:
		return v, true
	case float32:
		return []float64{float64(v)}, true
	case float64:
		return []float64{v}, true
	case string:
		parts, _ := elem.GetStrings()
		res := make([]float64, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, false
			}
			res = append(res, f)
		}
		return res, true
	}
	if ints, ok := elem.GetInts(); ok {
		res := make([]float64, len(ints))
		for i, val := range ints {
			res[i] = float64(val)
		}
		return res, true
	}
	return nil, false
}

// GetBytes returns the raw value of a binary element
func (elem *Element) GetBytes() ([]byte, bool) {
	switch v := elem.Value.(type) {
	case []byte:
		return v, true
	case []uint16:
		b := make([]byte, len(v)*2)
		for i, u := range v {
			binary.LittleEndian.PutUint16(b[i*2:], u)
		}
		return b, true
	}
	return nil, false
}

// GetSequence returns the items of a sequence element
func (elem *Element) GetSequence() ([]*Dataset, bool) {
	if items, ok := elem.Value.([]*Dataset); ok {
		return items, true
	}
	return nil, false
}

// GetPixelData returns pixel data from an element
func (elem *Element) GetPixelData() (*PixelData, bool) {
	if pd, ok := elem.Value.(*PixelData); ok {
		return pd, true
	}
	return nil, false
}

func (b ByteRegion) String() string {
	return fmt.Sprintf("[%d+%d]", b.Offset, b.Length)
}
