package jpegheader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segment(marker byte, payload []byte) []byte {
	b := []byte{0xFF, marker}
	b = binary.BigEndian.AppendUint16(b, uint16(len(payload)+2))
	return append(b, payload...)
}

type jpegSpec struct {
	sof      byte
	bits     byte
	width    uint16
	height   uint16
	ids      []byte
	sampling []byte
	jfif     bool
	adobe    int // -1 for none
	ss, se   byte
	al       byte
}

func buildJPEG(s jpegSpec) []byte {
	b := []byte{0xFF, markerSOI}
	if s.jfif {
		b = append(b, segment(markerAPP0, []byte("JFIF\x00\x01\x02\x00\x00\x01\x00\x01\x00\x00"))...)
	}
	if s.adobe >= 0 {
		b = append(b, segment(markerAPP14, []byte{'A', 'd', 'o', 'b', 'e', 0, 100, 0, 0, 0, 0, byte(s.adobe)})...)
	}
	sof := []byte{s.bits}
	sof = binary.BigEndian.AppendUint16(sof, s.height)
	sof = binary.BigEndian.AppendUint16(sof, s.width)
	sof = append(sof, byte(len(s.ids)))
	for i, id := range s.ids {
		sof = append(sof, id, s.sampling[i], 0)
	}
	b = append(b, segment(0xDB, make([]byte, 65))...) // DQT
	b = append(b, segment(s.sof, sof)...)
	sos := []byte{byte(len(s.ids))}
	for _, id := range s.ids {
		sos = append(sos, id, 0)
	}
	sos = append(sos, s.ss, s.se, s.al)
	b = append(b, segment(markerSOS, sos)...)
	return append(b, 0x12, 0x34, 0xFF, 0x00, 0x56, 0xFF, markerEOI)
}

func buildJ2K(width, height uint32, comps int, ssiz byte, mct, reversible, ht bool) []byte {
	b := []byte{0xFF, 0x4F}
	siz := []byte{0, 0}
	for _, v := range []uint32{width, height, 0, 0, width, height, 0, 0} {
		siz = binary.BigEndian.AppendUint32(siz, v)
	}
	siz = binary.BigEndian.AppendUint16(siz, uint16(comps))
	for range comps {
		siz = append(siz, ssiz, 1, 1)
	}
	b = append(b, 0xFF, 0x51)
	b = binary.BigEndian.AppendUint16(b, uint16(len(siz)+2))
	b = append(b, siz...)
	if ht {
		b = append(b, 0xFF, 0x50, 0x00, 0x08, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00)
	}
	cod := []byte{0, 0, 0, 1, 0, 5, 4, 4, 0, 0}
	if mct {
		cod[4] = 1
	}
	if reversible {
		cod[9] = 1
	}
	b = append(b, 0xFF, 0x52)
	b = binary.BigEndian.AppendUint16(b, uint16(len(cod)+2))
	b = append(b, cod...)
	b = append(b, 0xFF, 0x90, 0x00, 0x0A, 0, 0, 0, 0, 0, 0, 0, 1)
	return b
}

func appendBox(b []byte, kind string, content []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(content)+8))
	b = append(b, kind...)
	return append(b, content...)
}

// bitWriter packs JPEG XL fields least significant bit first
type bitWriter struct {
	buf   []byte
	nbits uint
}

func (w *bitWriter) write(v uint64, n uint) {
	for i := uint(0); i < n; i++ {
		if w.nbits%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>i&1 == 1 {
			w.buf[len(w.buf)-1] |= 1 << (w.nbits % 8)
		}
		w.nbits++
	}
}

func TestParse_JPEGBaseline(t *testing.T) {
	raw := buildJPEG(jpegSpec{sof: markerSOF0, bits: 8, width: 640, height: 480,
		ids: []byte{1, 2, 3}, sampling: []byte{0x22, 0x11, 0x11}, jfif: true, adobe: -1, se: 63})
	h, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, FamilyJPEG, h.Family)
	assert.Equal(t, 640, h.Width)
	assert.Equal(t, 480, h.Height)
	assert.Equal(t, 3, h.Components)
	assert.Equal(t, 8, h.Bits)
	assert.True(t, h.JFIF)
	assert.False(t, h.Adobe)
	assert.True(t, h.IsSubsampled())
	assert.False(t, h.IsLossless())
	assert.Equal(t, transfer.JPEGBaseline, h.TransferSyntax())
}

func TestParse_JPEGLossless(t *testing.T) {
	raw := buildJPEG(jpegSpec{sof: markerSOF3, bits: 16, width: 10, height: 12,
		ids: []byte{1}, sampling: []byte{0x11}, adobe: -1, ss: 1, al: 2})
	h, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.True(t, h.IsLossless())
	assert.Equal(t, 1, h.Predictor)
	assert.Equal(t, 2, h.PointTransform)
	assert.Equal(t, transfer.JPEGLosslessSV1, h.TransferSyntax())

	raw = buildJPEG(jpegSpec{sof: markerSOF3, bits: 12, width: 10, height: 12,
		ids: []byte{1}, sampling: []byte{0x11}, adobe: -1, ss: 6})
	h, err = Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, transfer.JPEGLossless, h.TransferSyntax())
}

func TestParse_JPEGLS(t *testing.T) {
	raw := buildJPEG(jpegSpec{sof: markerSOF55, bits: 12, width: 256, height: 128,
		ids: []byte{1, 2, 3}, sampling: []byte{0x11, 0x11, 0x11}, adobe: -1, ss: 3, se: 2})
	h, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, FamilyJPEGLS, h.Family)
	assert.Equal(t, 3, h.NearLossless)
	assert.Equal(t, 2, h.Interleave)
	assert.False(t, h.IsLossless())
	assert.Equal(t, transfer.JPEGLSNearLossless, h.TransferSyntax())
}

func TestParse_AdobeTransform(t *testing.T) {
	raw := buildJPEG(jpegSpec{sof: markerSOF1, bits: 12, width: 4, height: 4,
		ids: []byte{'R', 'G', 'B'}, sampling: []byte{0x11, 0x11, 0x11}, adobe: 0, se: 63})
	h, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.True(t, h.Adobe)
	assert.Equal(t, 0, h.AdobeTransform)
	assert.True(t, h.HasRGBComponentIDs())
	assert.Equal(t, transfer.JPEGExtended, h.TransferSyntax())
}

func TestParse_J2KCodestream(t *testing.T) {
	h, err := Parse(bytes.NewReader(buildJ2K(512, 256, 1, 0x8F, false, true, false)))
	require.NoError(t, err)
	assert.Equal(t, FamilyJ2K, h.Family)
	assert.Equal(t, 512, h.Width)
	assert.Equal(t, 256, h.Height)
	assert.Equal(t, 16, h.Bits)
	assert.True(t, h.Signed)
	assert.True(t, h.IsLossless())
	assert.Equal(t, transfer.JPEG2000Lossless, h.TransferSyntax())

	h, err = Parse(bytes.NewReader(buildJ2K(8, 8, 3, 0x07, true, false, true)))
	require.NoError(t, err)
	assert.True(t, h.MCT)
	assert.True(t, h.HighThroughput)
	assert.Equal(t, transfer.HTJ2K, h.TransferSyntax())
}

func TestParse_JP2Box(t *testing.T) {
	colr := []byte{1, 0, 0, 0, 0, 0, 16}
	ihdr := make([]byte, 14)
	var jp2h []byte
	jp2h = appendBox(jp2h, "ihdr", ihdr)
	jp2h = appendBox(jp2h, "colr", colr)

	var raw []byte
	raw = appendBox(raw, "jP  ", []byte{0x0D, 0x0A, 0x87, 0x0A})
	raw = appendBox(raw, "ftyp", []byte("jp2 \x00\x00\x00\x00jp2 "))
	raw = appendBox(raw, "jp2h", jp2h)
	raw = appendBox(raw, "jp2c", buildJ2K(30, 20, 3, 0x07, true, true, false))

	h, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, FamilyJP2, h.Family)
	assert.Equal(t, 16, h.ColorSpace)
	assert.Equal(t, 30, h.Width)
	assert.Equal(t, 20, h.Height)
}

func TestParse_JPEGXL(t *testing.T) {
	small := &bitWriter{}
	small.write(1, 1) // small
	small.write(7, 5) // height 64
	small.write(1, 1) // ratio 1:1
	small.write(0, 2)
	h, err := Parse(bytes.NewReader(append([]byte{0xFF, 0x0A}, small.buf...)))
	require.NoError(t, err)
	assert.Equal(t, FamilyJPEGXL, h.Family)
	assert.Equal(t, 64, h.Width)
	assert.Equal(t, 64, h.Height)

	large := &bitWriter{}
	large.write(0, 1)
	large.write(0, 2)
	large.write(999, 9)
	large.write(0, 3)
	large.write(1, 2)
	large.write(1499, 13)
	codestream := append([]byte{0xFF, 0x0A}, large.buf...)

	var raw []byte
	raw = appendBox(raw, "JXL ", []byte{0x0D, 0x0A, 0x87, 0x0A})
	raw = appendBox(raw, "ftyp", []byte("jxl \x00\x00\x00\x00jxl "))
	raw = appendBox(raw, "jxlc", codestream)
	h, err = Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1500, h.Width)
	assert.Equal(t, 1000, h.Height)
	assert.Equal(t, transfer.JPEGXL, h.TransferSyntax())
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte{0x00, 0x01, 0x02, 0x03}))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	// SOI then EOI, no frame
	_, err = Parse(bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xD9}))
	assert.ErrorIs(t, err, ErrNoFrameHeader)

	// truncated segment
	raw := buildJPEG(jpegSpec{sof: markerSOF0, bits: 8, width: 4, height: 4, ids: []byte{1}, sampling: []byte{0x11}, adobe: -1})
	_, err = Parse(bytes.NewReader(raw[:30]))
	assert.Error(t, err)

	// RLE header is not a JPEG family stream
	rle := make([]byte, 64)
	rle[0] = 1
	rle[4] = 64
	assert.False(t, HasHeader(rle))
	assert.True(t, HasHeader(raw))
}

func TestColorModel_Heuristic(t *testing.T) {
	jfif := &Header{Components: 3, JFIF: true, Sampling: []byte{0x22, 0x11, 0x11}, ComponentIDs: []byte{1, 2, 3}}
	jfif444 := &Header{Components: 3, JFIF: true, Sampling: []byte{0x11, 0x11, 0x11}, ComponentIDs: []byte{1, 2, 3}}
	adobeRGB := &Header{Components: 3, Adobe: true, AdobeTransform: 0, Sampling: []byte{0x11, 0x11, 0x11}}
	rgbIDs := &Header{Components: 3, ComponentIDs: []byte{'R', 'G', 'B'}, Sampling: []byte{0x11, 0x11, 0x11}}
	gray := &Header{Components: 1}
	j2kRev := &Header{Components: 3, MCT: true, Reversible: true}
	j2kIrr := &Header{Components: 3, MCT: true}
	j2kPlain := &Header{Components: 3}

	tests := []struct {
		name     string
		declared descriptor.PhotometricInterpretation
		ts       transfer.Syntax
		hdr      *Header
		keepRGB  bool
		want     Decision
	}{
		{"monochrome", descriptor.Monochrome1, transfer.JPEGBaseline, gray, false, Decision{descriptor.Monochrome1, false, "declared"}},
		{"palette", descriptor.PaletteColor, transfer.JPEGBaseline, jfif, false, Decision{descriptor.PaletteColor, false, "declared"}},
		{"single component", descriptor.RGB, transfer.JPEGBaseline, gray, false, Decision{descriptor.RGB, false, "declared"}},
		{"rgb keep", descriptor.RGB, transfer.JPEGBaseline, jfif, true, Decision{descriptor.RGB, false, "keep-rgb"}},
		{"rgb adobe", descriptor.RGB, transfer.JPEGBaseline, adobeRGB, false, Decision{descriptor.RGB, false, "rgb-stream"}},
		{"rgb ids", descriptor.RGB, transfer.JPEGExtended, rgbIDs, false, Decision{descriptor.RGB, false, "rgb-stream"}},
		{"rgb jfif 422", descriptor.RGB, transfer.JPEGBaseline, jfif, false, Decision{descriptor.YBRFull422, true, "force-ybr"}},
		{"rgb jfif 444", descriptor.RGB, transfer.JPEGBaseline, jfif444, false, Decision{descriptor.YBRFull, true, "force-ybr"}},
		{"ybr adobe rgb", descriptor.YBRFull422, transfer.JPEGBaseline, adobeRGB, false, Decision{descriptor.RGB, false, "adobe-rgb"}},
		{"ybr lossy", descriptor.YBRFull422, transfer.JPEGBaseline, jfif, false, Decision{descriptor.YBRFull422, true, "ybr-lossy"}},
		{"rgb lossless jpeg", descriptor.RGB, transfer.JPEGLosslessSV1, jfif, false, Decision{descriptor.RGB, false, "declared"}},
		{"j2k reversible mct", descriptor.RGB, transfer.JPEG2000Lossless, j2kRev, false, Decision{descriptor.YBRRCT, false, "j2k-mct"}},
		{"j2k irreversible mct", descriptor.YBRICT, transfer.JPEG2000, j2kIrr, false, Decision{descriptor.YBRICT, false, "j2k-mct"}},
		{"j2k declared ict no mct", descriptor.YBRICT, transfer.HTJ2K, j2kPlain, false, Decision{descriptor.RGB, false, "j2k-no-mct"}},
		{"native ybr", descriptor.YBRFull, transfer.ExplicitVRLittleEndian, nil, false, Decision{descriptor.YBRFull, true, "ybr"}},
		{"rle rgb", descriptor.RGB, transfer.RLELossless, nil, false, Decision{descriptor.RGB, false, "declared"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ColorModel(tc.declared, tc.ts, tc.hdr, tc.keepRGB))
		})
	}
}
