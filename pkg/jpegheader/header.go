// Package jpegheader reads the main header of the JPEG family bitstreams
// carried in encapsulated pixel data: JPEG (ISO 10918-1), JPEG-LS
// (ISO 14495-1), JPEG 2000 codestreams and JP2 files (ISO 15444-1/15) and
// JPEG XL codestreams and containers (ISO 18181). Only the header is
// consumed, so probing a fragment never reads its entropy coded data.
package jpegheader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
)

var (
	// ErrUnknownFormat is returned when the stream starts with no known
	// signature
	ErrUnknownFormat = errors.New("not a JPEG family bitstream")
	// ErrNoFrameHeader is returned when the header ends before the frame
	// dimensions were declared
	ErrNoFrameHeader = errors.New("no frame header")
)

// Family identifies the bitstream format
type Family int

const (
	FamilyJPEG Family = iota + 1
	FamilyJPEGLS
	FamilyJ2K // raw codestream
	FamilyJP2 // JP2 file format wrapping a codestream
	FamilyJPEGXL
)

func (f Family) String() string {
	switch f {
	case FamilyJPEG:
		return "jpeg"
	case FamilyJPEGLS:
		return "jpeg-ls"
	case FamilyJ2K:
		return "j2k"
	case FamilyJP2:
		return "jp2"
	case FamilyJPEGXL:
		return "jpeg-xl"
	}
	return "unknown"
}

// Header holds the main header values of a bitstream
type Header struct {
	Family       Family
	SOF          byte // start of frame marker, JPEG and JPEG-LS
	Width        int
	Height       int
	Components   int
	Bits         int
	Signed       bool
	ComponentIDs []byte
	Sampling     []byte // Hi<<4 | Vi per component

	JFIF           bool
	Adobe          bool
	AdobeTransform int // APP14 color transform: 0 RGB/CMYK, 1 YCbCr, 2 YCCK

	Predictor      int // lossless JPEG selection value
	PointTransform int
	NearLossless   int // JPEG-LS NEAR
	Interleave     int // JPEG-LS ILV
	PresetParams   bool

	MCT            bool // JPEG 2000 multiple component transform
	Reversible     bool // JPEG 2000 5-3 wavelet
	HighThroughput bool // JPEG 2000 Part 15 capabilities
	ColorSpace     int  // JP2 enumerated colourspace, 0 when absent
}

// Parse reads the main header of a bitstream from r
func Parse(r io.Reader) (*Header, error) {
	br := bufio.NewReader(r)
	sig, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}
	h := &Header{}
	switch {
	case sig[0] == 0xFF && sig[1] == markerSOI:
		_, _ = br.Discard(2)
		h.Family = FamilyJPEG
		err = parseJPEG(br, h)
	case binary.BigEndian.Uint16(sig) == markerSOC:
		_, _ = br.Discard(2)
		h.Family = FamilyJ2K
		err = parseCodestream(br, h)
	case sig[0] == 0xFF && sig[1] == 0x0A:
		_, _ = br.Discard(2)
		h.Family = FamilyJPEGXL
		err = parseJXLSize(br, h)
	default:
		long, perr := br.Peek(len(jp2Signature))
		switch {
		case perr == nil && bytes.Equal(long, jp2Signature):
			h.Family = FamilyJP2
			err = parseJP2(br, h)
		case perr == nil && bytes.Equal(long, jxlSignature):
			h.Family = FamilyJPEGXL
			err = parseJXLContainer(br, h)
		default:
			return nil, ErrUnknownFormat
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s header: %w", h.Family, err)
	}
	if h.Width <= 0 || h.Height <= 0 {
		return nil, fmt.Errorf("%s header: %w", h.Family, ErrNoFrameHeader)
	}
	return h, nil
}

// HasHeader reports whether b starts with a parsable JPEG family header
func HasHeader(b []byte) bool {
	_, err := Parse(bytes.NewReader(b))
	return err == nil
}

// IsLossless reports a reversible coding process. JPEG XL streams report
// false as the header does not declare it.
func (h *Header) IsLossless() bool {
	switch h.Family {
	case FamilyJPEG:
		return isLosslessSOF(h.SOF)
	case FamilyJPEGLS:
		return h.NearLossless == 0
	case FamilyJ2K, FamilyJP2:
		return h.Reversible
	}
	return false
}

// IsSubsampled reports chroma subsampling of a three component JPEG
func (h *Header) IsSubsampled() bool {
	return len(h.Sampling) == 3 && h.Sampling[0] != 0x11
}

// HasRGBComponentIDs reports component identifiers 'R', 'G', 'B'
func (h *Header) HasRGBComponentIDs() bool {
	return bytes.Equal(h.ComponentIDs, []byte{'R', 'G', 'B'})
}

// TransferSyntax returns the transfer syntax matching the coding process
func (h *Header) TransferSyntax() transfer.Syntax {
	switch h.Family {
	case FamilyJPEG:
		switch {
		case h.SOF == markerSOF0:
			return transfer.JPEGBaseline
		case h.SOF == markerSOF1:
			return transfer.JPEGExtended
		case isLosslessSOF(h.SOF):
			if h.Predictor == 1 {
				return transfer.JPEGLosslessSV1
			}
			return transfer.JPEGLossless
		}
		return transfer.JPEGProgressive
	case FamilyJPEGLS:
		if h.NearLossless == 0 {
			return transfer.JPEGLSLossless
		}
		return transfer.JPEGLSNearLossless
	case FamilyJ2K, FamilyJP2:
		switch {
		case h.HighThroughput && h.Reversible:
			return transfer.HTJ2KLossless
		case h.HighThroughput:
			return transfer.HTJ2K
		case h.Reversible:
			return transfer.JPEG2000Lossless
		}
		return transfer.JPEG2000
	case FamilyJPEGXL:
		return transfer.JPEGXL
	}
	return ""
}

func (h *Header) String() string {
	return fmt.Sprintf("%s %dx%d components=%d bits=%d lossless=%t", h.Family, h.Width, h.Height, h.Components, h.Bits, h.IsLossless())
}

// nextMarker reads a marker, skipping fill bytes
func nextMarker(br *bufio.Reader) (byte, error) {
	b, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0xFF {
		return 0, fmt.Errorf("expected marker, found %#02x", b)
	}
	for b == 0xFF {
		if b, err = br.ReadByte(); err != nil {
			return 0, err
		}
	}
	return b, nil
}

// readSegment returns the payload of a marker segment, after the length
func readSegment(br *bufio.Reader) ([]byte, error) {
	var length uint16
	if err := binary.Read(br, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length < 2 {
		return nil, fmt.Errorf("invalid segment length %d", length)
	}
	seg := make([]byte, length-2)
	if _, err := io.ReadFull(br, seg); err != nil {
		return nil, err
	}
	return seg, nil
}

func parseJPEG(br *bufio.Reader, h *Header) error {
	for {
		m, err := nextMarker(br)
		if err != nil {
			return err
		}
		if isStandalone(m) {
			if m == markerEOI {
				return ErrNoFrameHeader
			}
			continue
		}
		seg, err := readSegment(br)
		if err != nil {
			return fmt.Errorf("marker %#02x: %w", m, err)
		}
		switch {
		case isSOF(m) || m == markerSOF55:
			if err := h.parseSOF(m, seg); err != nil {
				return err
			}
		case m == markerAPP0:
			h.JFIF = h.JFIF || bytes.HasPrefix(seg, []byte("JFIF\x00"))
		case m == markerAPP14:
			if len(seg) >= 12 && bytes.HasPrefix(seg, []byte("Adobe")) {
				h.Adobe = true
				h.AdobeTransform = int(seg[11])
			}
		case m == markerLSE:
			h.PresetParams = true
		case m == markerSOS:
			h.parseSOS(seg)
			return nil
		}
	}
}

func (h *Header) parseSOF(m byte, seg []byte) error {
	if len(seg) < 6 {
		return fmt.Errorf("short frame header of %d bytes", len(seg))
	}
	h.SOF = m
	if m == markerSOF55 {
		h.Family = FamilyJPEGLS
	}
	h.Bits = int(seg[0])
	h.Height = int(binary.BigEndian.Uint16(seg[1:3]))
	h.Width = int(binary.BigEndian.Uint16(seg[3:5]))
	h.Components = int(seg[5])
	if len(seg) < 6+3*h.Components {
		return fmt.Errorf("frame header declares %d components in %d bytes", h.Components, len(seg))
	}
	h.ComponentIDs = make([]byte, h.Components)
	h.Sampling = make([]byte, h.Components)
	for i := range h.Components {
		h.ComponentIDs[i] = seg[6+3*i]
		h.Sampling[i] = seg[7+3*i]
	}
	return nil
}

// parseSOS reads the parameters following the component selectors: Ss is
// the predictor (lossless JPEG) or NEAR (JPEG-LS), Se the JPEG-LS
// interleave mode and Al the point transform
func (h *Header) parseSOS(seg []byte) {
	if len(seg) < 1 {
		return
	}
	n := 1 + 2*int(seg[0])
	if len(seg) < n+3 {
		return
	}
	ss, se, a := int(seg[n]), int(seg[n+1]), int(seg[n+2])
	switch {
	case h.Family == FamilyJPEGLS:
		h.NearLossless = ss
		h.Interleave = se
		h.PointTransform = a & 0x0F
	case isLosslessSOF(h.SOF):
		h.Predictor = ss
		h.PointTransform = a & 0x0F
	}
}

// parseCodestream reads the JPEG 2000 main header up to the first tile
func parseCodestream(br *bufio.Reader, h *Header) error {
	for {
		var m uint16
		if err := binary.Read(br, binary.BigEndian, &m); err != nil {
			return err
		}
		if m == markerSOT || m == markerSOD {
			return nil
		}
		seg, err := readSegment(br)
		if err != nil {
			return fmt.Errorf("marker %#04x: %w", m, err)
		}
		switch m {
		case markerSIZ:
			if err := h.parseSIZ(seg); err != nil {
				return err
			}
		case markerCOD:
			if len(seg) < 10 {
				return fmt.Errorf("short COD segment of %d bytes", len(seg))
			}
			h.MCT = seg[4] != 0
			h.Reversible = seg[9] == 1
		case markerCAP:
			h.HighThroughput = true
		}
	}
}

func (h *Header) parseSIZ(seg []byte) error {
	if len(seg) < 36 {
		return fmt.Errorf("short SIZ segment of %d bytes", len(seg))
	}
	xsiz := binary.BigEndian.Uint32(seg[2:6])
	ysiz := binary.BigEndian.Uint32(seg[6:10])
	xosiz := binary.BigEndian.Uint32(seg[10:14])
	yosiz := binary.BigEndian.Uint32(seg[14:18])
	h.Width = int(xsiz - xosiz)
	h.Height = int(ysiz - yosiz)
	h.Components = int(binary.BigEndian.Uint16(seg[34:36]))
	if h.Components > 0 && len(seg) >= 39 {
		ssiz := seg[36]
		h.Signed = ssiz&0x80 != 0
		h.Bits = int(ssiz&0x7F) + 1
	}
	return nil
}

// box is an ISO base media box header
type box struct {
	kind   string
	length int64 // content length, -1 to the end of the stream
}

func readBox(br *bufio.Reader) (box, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return box{}, err
	}
	b := box{kind: string(hdr[4:8])}
	switch n := int64(binary.BigEndian.Uint32(hdr[0:4])); n {
	case 0:
		b.length = -1
	case 1:
		var xl uint64
		if err := binary.Read(br, binary.BigEndian, &xl); err != nil {
			return box{}, err
		}
		b.length = int64(xl) - 16
	default:
		b.length = n - 8
	}
	if b.length < -1 {
		return box{}, fmt.Errorf("invalid length for box %q", b.kind)
	}
	return b, nil
}

func skipBox(br *bufio.Reader, b box) error {
	if b.length < 0 {
		return io.ErrUnexpectedEOF
	}
	_, err := io.CopyN(io.Discard, br, b.length)
	return err
}

// parseJP2 walks the top level boxes to the contiguous codestream, reading
// the colour specification of the header box on the way
func parseJP2(br *bufio.Reader, h *Header) error {
	for {
		b, err := readBox(br)
		if err != nil {
			return err
		}
		switch b.kind {
		case "jp2h":
			content := make([]byte, max(b.length, 0))
			if _, err := io.ReadFull(br, content); err != nil {
				return err
			}
			h.ColorSpace = jp2ColorSpace(content)
		case "jp2c":
			var m uint16
			if err := binary.Read(br, binary.BigEndian, &m); err != nil {
				return err
			}
			if m != markerSOC {
				return fmt.Errorf("codestream box starts with %#04x", m)
			}
			return parseCodestream(br, h)
		default:
			if err := skipBox(br, b); err != nil {
				return err
			}
		}
	}
}

// jp2ColorSpace returns the enumerated colourspace of a colr box within the
// header superbox content
func jp2ColorSpace(content []byte) int {
	for len(content) >= 8 {
		n := int(binary.BigEndian.Uint32(content[0:4]))
		if n < 8 || n > len(content) {
			return 0
		}
		if string(content[4:8]) == "colr" && n >= 15 && content[8] == 1 {
			return int(binary.BigEndian.Uint32(content[11:15]))
		}
		content = content[n:]
	}
	return 0
}

// parseJXLContainer finds the codestream in a jxlc or the first jxlp box
func parseJXLContainer(br *bufio.Reader, h *Header) error {
	for {
		b, err := readBox(br)
		if err != nil {
			return err
		}
		switch b.kind {
		case "jxlp":
			if _, err := br.Discard(4); err != nil {
				return err
			}
			fallthrough
		case "jxlc":
			var sig [2]byte
			if _, err := io.ReadFull(br, sig[:]); err != nil {
				return err
			}
			if sig != [2]byte{0xFF, 0x0A} {
				return fmt.Errorf("codestream box starts with %#x", sig)
			}
			return parseJXLSize(br, h)
		default:
			if err := skipBox(br, b); err != nil {
				return err
			}
		}
	}
}

// jxlRatios are the fixed aspect ratios of the JPEG XL SizeHeader
var jxlRatios = [8][2]int{{0, 0}, {1, 1}, {12, 10}, {4, 3}, {3, 2}, {16, 9}, {5, 4}, {2, 1}}

// parseJXLSize decodes the SizeHeader following the codestream signature
func parseJXLSize(br *bufio.Reader, h *Header) error {
	bits := &bitReader{r: br}
	// small images share one flag for both dimensions
	if bits.read(1) == 1 {
		h.Height = 8 * (1 + bits.read(5))
		ratio := bits.read(3)
		if ratio == 0 {
			h.Width = 8 * (1 + bits.read(5))
		} else {
			h.Width = h.Height * jxlRatios[ratio][0] / jxlRatios[ratio][1]
		}
	} else {
		h.Height = 1 + readJXLU32(bits)
		ratio := bits.read(3)
		if ratio == 0 {
			h.Width = 1 + readJXLU32(bits)
		} else {
			h.Width = h.Height * jxlRatios[ratio][0] / jxlRatios[ratio][1]
		}
	}
	return bits.err
}

// readJXLU32 reads a dimension minus one coded as U32(Bits(9), Bits(13),
// Bits(18), Bits(30))
func readJXLU32(bits *bitReader) int {
	switch bits.read(2) {
	case 0:
		return bits.read(9)
	case 1:
		return bits.read(13)
	case 2:
		return bits.read(18)
	}
	return bits.read(30)
}

// bitReader reads JPEG XL fields, least significant bit first
type bitReader struct {
	r     io.ByteReader
	cur   uint64
	nbits uint
	err   error
}

func (b *bitReader) read(n uint) int {
	for b.nbits < n && b.err == nil {
		c, err := b.r.ReadByte()
		if err != nil {
			b.err = err
			return 0
		}
		b.cur |= uint64(c) << b.nbits
		b.nbits += 8
	}
	if b.err != nil {
		return 0
	}
	v := b.cur & (1<<n - 1)
	b.cur >>= n
	b.nbits -= n
	return int(v)
}
