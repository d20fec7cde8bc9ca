package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/vr"
)

// WriteFile writes a dataset to a DICOM file
func WriteFile(path string, ds *Dataset) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Write(f, ds)
}

// Write writes a dataset to a writer using Explicit VR Little Endian. The
// File Meta Information Group Length is recomputed.
func Write(w io.Writer, ds *Dataset) (int64, error) {
	cw := &CountingWriter{Writer: w}

	// 1. Preamble (128 bytes 0x00) and DICM Magic
	preamble := make([]byte, 132)
	copy(preamble[128:], "DICM")
	if _, err := cw.Write(preamble); err != nil {
		return cw.Count.Load(), err
	}

	// 2. File Meta group, prefixed by its length
	meta, body := splitMeta(ds)
	var metaBuf bytes.Buffer
	if _, err := writeDataSetBody(&metaBuf, meta); err != nil {
		return cw.Count.Load(), err
	}
	groupLength := &Element{Tag: tag.FileMetaInformationGroupLength, VR: "UL", Value: uint32(metaBuf.Len())}
	if _, err := writeElement(cw, groupLength); err != nil {
		return cw.Count.Load(), err
	}
	if _, err := cw.Write(metaBuf.Bytes()); err != nil {
		return cw.Count.Load(), err
	}

	// 3. Dataset Elements
	if _, err := writeDataSetBody(cw, body); err != nil {
		return cw.Count.Load(), err
	}
	return cw.Count.Load(), nil
}

func splitMeta(ds *Dataset) (*Dataset, *Dataset) {
	meta, body := newDataset(), newDataset()
	for t, elem := range ds.Elements {
		switch {
		case t == tag.FileMetaInformationGroupLength:
		case t.IsGroup0002():
			meta.Elements[t] = elem
		default:
			body.Elements[t] = elem
		}
	}
	return meta, body
}

func writeDataSetBody(w io.Writer, ds *Dataset) (int64, error) {
	elements := make([]*Element, 0, len(ds.Elements))
	for _, elem := range ds.Elements {
		elements = append(elements, elem)
	}
	sort.Slice(elements, func(i, j int) bool {
		return elements[i].Tag.Less(elements[j].Tag)
	})

	cw := &CountingWriter{Writer: w}
	for _, elem := range elements {
		if _, err := writeElement(cw, elem); err != nil {
			return cw.Count.Load(), fmt.Errorf("failed to write element %v: %w", elem.Tag, err)
		}
	}
	return cw.Count.Load(), nil
}

func writeElement(w io.Writer, elem *Element) (int, error) {
	cw := &CountingWriter{Writer: w}

	if err := binary.Write(cw, binary.LittleEndian, elem.Tag.Group); err != nil {
		return int(cw.Count.Load()), err
	}
	if err := binary.Write(cw, binary.LittleEndian, elem.Tag.Element); err != nil {
		return int(cw.Count.Load()), err
	}

	v := elem.VR
	if len(v) != 2 {
		slog.Warn("Invalid VR length, defaulting to UN", "vr", v, "tag", elem.Tag)
		v = "UN"
	}
	if _, err := cw.Write([]byte(v)); err != nil {
		return int(cw.Count.Load()), err
	}

	valBytes, isUndefinedLength, err := encodeValue(elem.Value, v)
	if err != nil {
		return int(cw.Count.Load()), err
	}
	if len(valBytes)%2 != 0 {
		valBytes = append(valBytes, vr.VR(v).PaddingByte())
	}

	if vr.VR(v).IsLong() {
		if _, err := cw.Write([]byte{0, 0}); err != nil {
			return int(cw.Count.Load()), err
		}
		length := uint32(len(valBytes))
		if isUndefinedLength {
			length = undefinedLength
		}
		if err := binary.Write(cw, binary.LittleEndian, length); err != nil {
			return int(cw.Count.Load()), err
		}
	} else {
		if isUndefinedLength {
			return int(cw.Count.Load()), fmt.Errorf("undefined length not supported for Short VR %s", v)
		}
		if len(valBytes) > math.MaxUint16 {
			return int(cw.Count.Load()), fmt.Errorf("value of %d bytes too long for VR %s", len(valBytes), v)
		}
		if err := binary.Write(cw, binary.LittleEndian, uint16(len(valBytes))); err != nil {
			return int(cw.Count.Load()), err
		}
	}

	if _, err := cw.Write(valBytes); err != nil {
		return int(cw.Count.Load()), err
	}
	return int(cw.Count.Load()), nil
}

// encodeValue returns encoded bytes and a bool indicating if undefined length used (e.g. encapsulated pixels)
func encodeValue(v interface{}, vrs string) ([]byte, bool, error) {
	if v == nil {
		return []byte{}, false, nil
	}

	if pd, ok := v.(*PixelData); ok {
		if pd.IsEncapsulated {
			b, err := encodeEncapsulatedPixelData(pd)
			return b, true, err
		}
		if pd.Native == nil && pd.Bulk.Length > 0 {
			return nil, false, fmt.Errorf("native pixel data of %d bytes was not loaded", pd.Bulk.Length)
		}
		return pd.Native, false, nil
	}

	le := binary.LittleEndian
	switch val := v.(type) {
	case []*Dataset:
		if vrs == "SQ" {
			b, err := encodeSequence(val)
			return b, true, err
		}
		return nil, false, fmt.Errorf("unexpected []*Dataset for VR %s", vrs)
	case string:
		return []byte(val), false, nil
	case []string:
		return []byte(strings.Join(val, "\\")), false, nil
	case uint16:
		return le.AppendUint16(nil, val), false, nil
	case []uint16:
		b := make([]byte, 0, len(val)*2)
		for _, u := range val {
			b = le.AppendUint16(b, u)
		}
		return b, false, nil
	case int16:
		return le.AppendUint16(nil, uint16(val)), false, nil
	case []int16:
		b := make([]byte, 0, len(val)*2)
		for _, u := range val {
			b = le.AppendUint16(b, uint16(u))
		}
		return b, false, nil
	case uint32:
		return le.AppendUint32(nil, val), false, nil
	case []uint32:
		b := make([]byte, 0, len(val)*4)
		for _, u := range val {
			b = le.AppendUint32(b, u)
		}
		return b, false, nil
	case int32:
		return le.AppendUint32(nil, uint32(val)), false, nil
	case int:
		return encodeInts([]int{val}, vrs)
	case []int:
		return encodeInts(val, vrs)
	case float64:
		return encodeFloats([]float64{val}, vrs)
	case []float64:
		return encodeFloats(val, vrs)
	case float32:
		return le.AppendUint32(nil, math.Float32bits(val)), false, nil
	case []float32:
		b := make([]byte, 0, len(val)*4)
		for _, f := range val {
			b = le.AppendUint32(b, math.Float32bits(f))
		}
		return b, false, nil
	case []byte:
		return val, false, nil
	}

	return nil, false, fmt.Errorf("unsupported value type %T for VR %s", v, vrs)
}

func encodeInts(val []int, vrs string) ([]byte, bool, error) {
	le := binary.LittleEndian
	var b []byte
	switch vrs {
	case "IS":
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.Itoa(n)
		}
		return []byte(strings.Join(parts, "\\")), false, nil
	case "UL", "SL":
		for _, n := range val {
			b = le.AppendUint32(b, uint32(n))
		}
	default: // US, SS
		for _, n := range val {
			b = le.AppendUint16(b, uint16(n))
		}
	}
	return b, false, nil
}

func encodeFloats(val []float64, vrs string) ([]byte, bool, error) {
	le := binary.LittleEndian
	var b []byte
	switch vrs {
	case "DS":
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = formatDS(f)
		}
		return []byte(strings.Join(parts, "\\")), false, nil
	case "FD":
		for _, f := range val {
			b = le.AppendUint64(b, math.Float64bits(f))
		}
	case "FL":
		for _, f := range val {
			b = le.AppendUint32(b, math.Float32bits(float32(f)))
		}
	default:
		return nil, false, fmt.Errorf("float64 for VR %s not implemented", vrs)
	}
	return b, false, nil
}

// formatDS renders a Decimal String within its 16 byte limit
func formatDS(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for prec := 15; len(s) > 16 && prec > 0; prec-- {
		s = strconv.FormatFloat(f, 'g', prec, 64)
	}
	return s
}

func encodeSequence(datasets []*Dataset) ([]byte, error) {
	var buf bytes.Buffer

	for _, ds := range datasets {
		// Item Tag (FFFE, E000)
		buf.Write([]byte{0xFE, 0xFF, 0x00, 0xE0})

		var dsBuf bytes.Buffer
		if _, err := writeDataSetBody(&dsBuf, ds); err != nil {
			return nil, fmt.Errorf("failed to encode sequence item: %w", err)
		}
		binary.Write(&buf, binary.LittleEndian, uint32(dsBuf.Len()))
		buf.Write(dsBuf.Bytes())
	}

	// Sequence Delimitation Item (FFFE, E0DD), length 0
	buf.Write([]byte{0xFE, 0xFF, 0xDD, 0xE0, 0x00, 0x00, 0x00, 0x00})
	return buf.Bytes(), nil
}

func encodeEncapsulatedPixelData(pd *PixelData) ([]byte, error) {
	var buf bytes.Buffer

	// 1. Basic Offset Table (Item Tag FFFE,E000)
	buf.Write([]byte{0xFE, 0xFF, 0x00, 0xE0})
	binary.Write(&buf, binary.LittleEndian, uint32(len(pd.Offsets)*4))
	for _, off := range pd.Offsets {
		binary.Write(&buf, binary.LittleEndian, off)
	}

	// 2. Fragments, item 0 is the table written above
	for i, frag := range pd.Fragments {
		if i == 0 {
			continue
		}
		if frag.Data == nil && frag.Region.Length > 0 {
			return nil, fmt.Errorf("fragment %d was not loaded", i)
		}
		data := frag.Data
		if len(data)%2 != 0 {
			data = append(data, 0)
		}
		buf.Write([]byte{0xFE, 0xFF, 0x00, 0xE0})
		binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
		buf.Write(data)
	}

	// 3. Sequence Delimitation Item
	buf.Write([]byte{0xFE, 0xFF, 0xDD, 0xE0, 0x00, 0x00, 0x00, 0x00})
	return buf.Bytes(), nil
}

// CountingWriter counts the bytes written through it
type CountingWriter struct {
	Count  atomic.Int64
	Writer io.Writer
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.Writer.Write(p)
	if err == nil {
		c.Count.Add(int64(n))
	}
	return n, err
}
