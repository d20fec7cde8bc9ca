package dicom

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/vr"
	"github.com/klauspost/compress/flate"
)

const undefinedLength = 0xFFFFFFFF

// ErrValueLength is returned when a declared length runs past the input
var ErrValueLength = errors.New("value length exceeds input")

// ReadOptions tunes how a dataset is read
type ReadOptions struct {
	// SkipPixelBytes records only the byte regions of pixel data and its
	// fragments; the bytes are later read through the recorded offsets.
	SkipPixelBytes bool
	// Size is the number of input bytes, 0 when unknown. Readers with a
	// Len method are measured when it is unset.
	Size int64
}

// Reader reads DICOM files, tracking the stream offset of every value so
// that pixel data can be located without being loaded.
type Reader struct {
	src            *bufio.Reader
	cr             *countReader
	opts           ReadOptions
	transferSyntax transfer.Syntax
	explicitVR     bool
	order          binary.ByteOrder
	inMeta         bool
}

// countReader tracks the logical stream position
type countReader struct {
	r io.Reader
	n int64
}

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// NewReader creates a new DICOM reader
func NewReader(r io.Reader, opts ReadOptions) *Reader {
	if l, ok := r.(interface{ Len() int }); ok && opts.Size == 0 {
		opts.Size = int64(l.Len())
	}
	src := bufio.NewReader(r)
	return &Reader{
		src:        src,
		cr:         &countReader{r: src},
		opts:       opts,
		explicitVR: true,
		order:      binary.LittleEndian,
	}
}

// Parse reads a complete DICOM file
func Parse(r io.Reader) (*Dataset, error) {
	return NewReader(r, ReadOptions{}).ReadDataset()
}

// ParseWithOptions reads a complete DICOM file with the given options
func ParseWithOptions(r io.Reader, opts ReadOptions) (*Dataset, error) {
	return NewReader(r, opts).ReadDataset()
}

// TransferSyntax returns the syntax of the dataset body, known once the
// file meta group has been read
func (r *Reader) TransferSyntax() transfer.Syntax {
	return r.transferSyntax
}

// ReadDataset reads the complete dataset
func (r *Reader) ReadDataset() (*Dataset, error) {
	ds := newDataset()

	// Read preamble (128 bytes) and DICM magic
	preamble := make([]byte, 132)
	if _, err := io.ReadFull(r.cr, preamble); err != nil {
		return nil, fmt.Errorf("failed to read preamble: %w", err)
	}
	if string(preamble[128:]) != "DICM" {
		return nil, errors.New("invalid DICOM file: missing DICM magic")
	}

	// Group 0002 (File Meta Information) is ALWAYS Explicit VR Little Endian
	r.inMeta = true

	for {
		if r.inMeta {
			group, err := r.peekGroup()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read tag: %w", err)
			}
			if group != 0x0002 {
				if err := r.enterDataset(); err != nil {
					return nil, err
				}
			}
		}

		t, err := r.readTag()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tag: %w", err)
		}
		if t == tag.ItemDelimitationItem || t == tag.SequenceDelimitationItem {
			// stray delimiter at top level
			if _, err := r.readUint32(); err != nil {
				return nil, err
			}
			continue
		}

		elem, err := r.readElementWithTag(t)
		if err != nil {
			return nil, fmt.Errorf("failed to read element %v: %w", t, err)
		}
		ds.Elements[elem.Tag] = elem

		if t == tag.TransferSyntaxUID {
			if tsStr, ok := elem.Value.(string); ok {
				r.transferSyntax = transfer.FromUID(tsStr)
			}
		}
	}

	return ds, nil
}

// peekGroup returns the little endian group of the next tag without consuming it
func (r *Reader) peekGroup() (uint16, error) {
	b, err := r.src.Peek(2)
	if err != nil {
		if len(b) == 0 {
			return 0, io.EOF
		}
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// enterDataset switches the reader from the file meta group to the dataset
// body encoding declared by the transfer syntax
func (r *Reader) enterDataset() error {
	r.inMeta = false
	if r.transferSyntax == "" {
		// Default to Implicit VR if no File Meta was found
		r.transferSyntax = transfer.ImplicitVRLittleEndian
	}
	r.explicitVR = r.transferSyntax.IsExplicitVR()
	r.order = binary.LittleEndian
	if !r.transferSyntax.IsLittleEndian() {
		r.order = binary.BigEndian
	}
	if r.transferSyntax == transfer.DeflatedExplicitVR || r.transferSyntax == transfer.JPIPReferencedDeflate {
		// offsets past this point are positions in the inflated stream
		r.src = bufio.NewReader(flate.NewReader(r.src))
		r.cr.r = r.src
		r.opts.Size = 0
	}
	return nil
}

// readElementWithTag reads a DICOM element after the tag has been read
func (r *Reader) readElementWithTag(t Tag) (*Element, error) {
	var v string
	var vl uint32

	if r.explicitVR {
		// Read VR (2 bytes)
		vrBytes := make([]byte, 2)
		if _, err := io.ReadFull(r.cr, vrBytes); err != nil {
			return nil, err
		}
		v = string(vrBytes)

		// Check if VR uses 4-byte VL or 2-byte VL + 2 reserved bytes
		if vr.VR(v).IsLong() {
			reserved := make([]byte, 2)
			if _, err := io.ReadFull(r.cr, reserved); err != nil {
				return nil, err
			}
			l, err := r.readUint32()
			if err != nil {
				return nil, err
			}
			vl = l
		} else {
			var vl16 uint16
			if err := binary.Read(r.cr, r.order, &vl16); err != nil {
				return nil, err
			}
			vl = uint32(vl16)
		}
	} else {
		// Implicit VR: VL is always 4 bytes, VR is determined by tag
		l, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		vl = l
		v = tag.LookupVR(t)
	}

	value, err := r.readValue(t, v, vl)
	if err != nil {
		return nil, err
	}

	return &Element{
		Tag:   t,
		VR:    v,
		Value: value,
	}, nil
}

// readTag reads a DICOM tag
func (r *Reader) readTag() (Tag, error) {
	var group, element uint16
	if err := binary.Read(r.cr, r.order, &group); err != nil {
		return Tag{}, err
	}
	if err := binary.Read(r.cr, r.order, &element); err != nil {
		return Tag{}, err
	}
	return Tag{Group: group, Element: element}, nil
}

// readItemTag reads an item or delimiter tag. These are encoded in the
// dataset byte order.
func (r *Reader) readItemTag() (Tag, uint32, error) {
	t, err := r.readTag()
	if err != nil {
		return Tag{}, 0, err
	}
	l, err := r.readUint32()
	if err != nil {
		return Tag{}, 0, err
	}
	return t, l, nil
}

func (r *Reader) readUint32() (uint32, error) {
	var v uint32
	err := binary.Read(r.cr, r.order, &v)
	return v, err
}

// readValue reads the value based on VR and VL
func (r *Reader) readValue(t Tag, v string, vl uint32) (interface{}, error) {
	if t == tag.PixelData || t == tag.FloatPixelData || t == tag.DoubleFloatPixelData {
		if vl == undefinedLength {
			return r.readEncapsulatedPixelData()
		}
		return r.readNativePixelData(vl)
	}

	if v == string(vr.SQ) || (vl == undefinedLength && v == string(vr.UN)) {
		return r.readSequence(vl)
	}
	if vl == undefinedLength {
		return nil, fmt.Errorf("undefined length not supported for VR %s", v)
	}

	if err := r.checkLength(vl); err != nil {
		return nil, err
	}
	data := make([]byte, vl)
	if _, err := io.ReadFull(r.cr, data); err != nil {
		return nil, err
	}
	return parseValue(v, data, r.order), nil
}

// readNativePixelData records the span of native pixel data
func (r *Reader) readNativePixelData(vl uint32) (*PixelData, error) {
	if err := r.checkLength(vl); err != nil {
		return nil, err
	}
	pd := &PixelData{
		Bulk:      ByteRegion{Offset: r.cr.n, Length: int64(vl)},
		BigEndian: r.order == binary.BigEndian,
	}
	if r.opts.SkipPixelBytes {
		if _, err := io.CopyN(io.Discard, r.cr, int64(vl)); err != nil {
			return nil, fmt.Errorf("skipping pixel data: %w", err)
		}
		return pd, nil
	}
	pd.Native = make([]byte, vl)
	if _, err := io.ReadFull(r.cr, pd.Native); err != nil {
		return nil, err
	}
	return pd, nil
}

// readEncapsulatedPixelData reads encapsulated (compressed) pixel data
func (r *Reader) readEncapsulatedPixelData() (*PixelData, error) {
	pd := &PixelData{IsEncapsulated: true}

	for {
		itemTag, itemLength, err := r.readItemTag()
		if err != nil {
			return nil, err
		}

		// Sequence Delimitation Item (FFFE,E0DD)
		if itemTag == tag.SequenceDelimitationItem {
			break
		}
		if itemTag != tag.Item {
			return nil, fmt.Errorf("expected item tag, got %v", itemTag)
		}
		if itemLength == undefinedLength {
			return nil, errors.New("undefined length pixel data item")
		}

		if err := r.checkLength(itemLength); err != nil {
			return nil, fmt.Errorf("fragment %d: %w", len(pd.Fragments), err)
		}
		frag := Fragment{Region: ByteRegion{Offset: r.cr.n, Length: int64(itemLength)}}
		first := len(pd.Fragments) == 0
		if first || !r.opts.SkipPixelBytes {
			frag.Data = make([]byte, itemLength)
			if _, err := io.ReadFull(r.cr, frag.Data); err != nil {
				return nil, err
			}
		} else if _, err := io.CopyN(io.Discard, r.cr, int64(itemLength)); err != nil {
			return nil, fmt.Errorf("skipping fragment: %w", err)
		}

		// item 0 is the Basic Offset Table
		if first {
			pd.Offsets = make([]uint32, len(frag.Data)/4)
			for i := range pd.Offsets {
				pd.Offsets[i] = r.order.Uint32(frag.Data[i*4:])
			}
		}
		pd.Fragments = append(pd.Fragments, frag)
	}

	if len(pd.Fragments) == 0 {
		return nil, errors.New("encapsulated pixel data without basic offset table item")
	}
	return pd, nil
}

// checkLength rejects a declared length longer than the rest of an input
// of known size
func (r *Reader) checkLength(vl uint32) error {
	if r.opts.Size <= 0 {
		return nil
	}
	if remain := r.opts.Size - r.cr.n; int64(vl) > remain {
		return fmt.Errorf("%w: %d bytes declared at offset %d, %d remain", ErrValueLength, vl, r.cr.n, remain)
	}
	return nil
}

// readSequence reads the items of a sequence of defined or undefined length
func (r *Reader) readSequence(vl uint32) ([]*Dataset, error) {
	var items []*Dataset
	end := r.cr.n + int64(vl)
	for vl == undefinedLength || r.cr.n < end {
		itemTag, itemLength, err := r.readItemTag()
		if err != nil {
			if err == io.EOF && vl == undefinedLength {
				return items, nil
			}
			return nil, fmt.Errorf("reading sequence item tag: %w", err)
		}
		switch itemTag {
		case tag.SequenceDelimitationItem:
			return items, nil
		case tag.Item:
			item, err := r.readItem(itemLength)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		default:
			return nil, fmt.Errorf("unexpected tag %v in sequence", itemTag)
		}
	}
	return items, nil
}

// readItem reads the elements of one sequence item
func (r *Reader) readItem(length uint32) (*Dataset, error) {
	ds := newDataset()
	end := r.cr.n + int64(length)
	for length == undefinedLength || r.cr.n < end {
		t, err := r.readTag()
		if err != nil {
			return nil, fmt.Errorf("reading item element tag: %w", err)
		}
		if t == tag.ItemDelimitationItem {
			if _, err := r.readUint32(); err != nil {
				return nil, err
			}
			return ds, nil
		}
		elem, err := r.readElementWithTag(t)
		if err != nil {
			return nil, fmt.Errorf("failed to read item element %v: %w", t, err)
		}
		ds.Elements[elem.Tag] = elem
	}
	return ds, nil
}

// parseValue converts raw bytes to typed value based on VR
func parseValue(v string, data []byte, order binary.ByteOrder) interface{} {
	switch vr.VR(v) {
	case vr.AE, vr.AS, vr.CS, vr.DA, vr.DS, vr.DT, vr.IS, vr.LO, vr.LT, vr.PN,
		vr.SH, vr.ST, vr.TM, vr.UC, vr.UI, vr.UR, vr.UT:
		// String types - trim null padding
		s := string(data)
		for len(s) > 0 && (s[len(s)-1] == 0 || s[len(s)-1] == ' ') {
			s = s[:len(s)-1]
		}
		return s
	case vr.US:
		if len(data) == 2 {
			return order.Uint16(data)
		}
		values := make([]uint16, len(data)/2)
		for i := range values {
			values[i] = order.Uint16(data[i*2:])
		}
		return values
	case vr.SS:
		if len(data) == 2 {
			return int16(order.Uint16(data))
		}
		values := make([]int16, len(data)/2)
		for i := range values {
			values[i] = int16(order.Uint16(data[i*2:]))
		}
		return values
	case vr.UL:
		if len(data) == 4 {
			return order.Uint32(data)
		}
		values := make([]uint32, len(data)/4)
		for i := range values {
			values[i] = order.Uint32(data[i*4:])
		}
		return values
	case vr.SL:
		if len(data) == 4 {
			return int32(order.Uint32(data))
		}
		values := make([]int32, len(data)/4)
		for i := range values {
			values[i] = int32(order.Uint32(data[i*4:]))
		}
		return values
	case vr.FL:
		if len(data) == 4 {
			return math.Float32frombits(order.Uint32(data))
		}
		values := make([]float32, len(data)/4)
		for i := range values {
			values[i] = math.Float32frombits(order.Uint32(data[i*4:]))
		}
		return values
	case vr.FD:
		if len(data) == 8 {
			return math.Float64frombits(order.Uint64(data))
		}
		values := make([]float64, len(data)/8)
		for i := range values {
			values[i] = math.Float64frombits(order.Uint64(data[i*8:]))
		}
		return values
	}
	// OB, OW, OF, OD, UN and friends stay binary
	return data
}
