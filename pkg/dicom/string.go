package dicom

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// String returns a string representation of the Element
func (e *Element) String() string {
	tagName := e.Tag.LookupName()
	if tagName != "" {
		tagName = " " + tagName
	}

	var valStr string
	switch v := e.Value.(type) {
	case *PixelData:
		if v.IsEncapsulated {
			valStr = fmt.Sprintf("Encapsulated Pixel Data (%d fragments, %d offsets)", len(v.Fragments), len(v.Offsets))
		} else {
			valStr = fmt.Sprintf("Native Pixel Data %s", v.Bulk)
		}
	case []*Dataset:
		valStr = fmt.Sprintf("Sequence (%d items)", len(v))
	case []uint16:
		if len(v) > 10 {
			valStr = fmt.Sprintf("Array of %d values", len(v))
		} else {
			valStr = fmt.Sprintf("%v", v)
		}
	case []byte:
		if len(v) > 20 {
			valStr = fmt.Sprintf("Binary Data (%d bytes)", len(v))
		} else {
			valStr = fmt.Sprintf("%v", v)
		}
	default:
		valStr = fmt.Sprintf("%v", v)
	}

	return fmt.Sprintf("[%s] %s%s: %s", e.Tag, e.VR, tagName, valStr)
}

// MarshalJSON returns a JSON representation of the Element
func (e *Element) MarshalJSON() ([]byte, error) {
	var value interface{} = e.Value
	if pd, ok := e.Value.(*PixelData); ok {
		regions := make([]ByteRegion, len(pd.Fragments))
		for i, f := range pd.Fragments {
			regions[i] = f.Region
		}
		value = struct {
			Encapsulated bool         `json:"encapsulated"`
			Bulk         ByteRegion   `json:"bulk"`
			Fragments    []ByteRegion `json:"fragments,omitempty"`
		}{pd.IsEncapsulated, pd.Bulk, regions}
	}
	return json.Marshal(&struct {
		Tag   string      `json:"tag"`
		Name  string      `json:"name,omitempty"`
		VR    string      `json:"vr"`
		Value interface{} `json:"value"`
	}{
		Tag:   e.Tag.String(),
		Name:  e.Tag.LookupName(),
		VR:    e.VR,
		Value: value,
	})
}

// sortedTags returns the dataset tags in ascending order
func (ds *Dataset) sortedTags() []Tag {
	keys := make([]Tag, 0, len(ds.Elements))
	for k := range ds.Elements {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})
	return keys
}

// String returns a string representation of the Dataset
func (ds *Dataset) String() string {
	if ds == nil {
		return "<nil>"
	}
	var b strings.Builder
	ds.writeIndented(&b, 0)
	return b.String()
}

func (ds *Dataset) writeIndented(b *strings.Builder, depth int) {
	for _, k := range ds.sortedTags() {
		elem := ds.Elements[k]
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(elem.String())
		b.WriteString("\n")
		if items, ok := elem.GetSequence(); ok {
			for _, item := range items {
				item.writeIndented(b, depth+1)
			}
		}
	}
}

// MarshalJSON returns a JSON representation of the Dataset
// It returns a sorted array of Elements instead of a Map
func (ds *Dataset) MarshalJSON() ([]byte, error) {
	keys := ds.sortedTags()
	elements := make([]*Element, 0, len(keys))
	for _, k := range keys {
		elements = append(elements, ds.Elements[k])
	}
	return json.Marshal(elements)
}
