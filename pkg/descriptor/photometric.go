package descriptor

import (
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
)

// PhotometricInterpretation is the color model of the pixel data
// (0028,0004)
type PhotometricInterpretation int

const (
	Monochrome2 PhotometricInterpretation = iota
	Monochrome1
	PaletteColor
	RGB
	YBRFull
	YBRFull422
	YBRPartial422
	YBRPartial420
	YBRICT
	YBRRCT
	HSV
	ARGB
	CMYK
)

var photometricNames = [...]string{
	Monochrome2:   "MONOCHROME2",
	Monochrome1:   "MONOCHROME1",
	PaletteColor:  "PALETTE COLOR",
	RGB:           "RGB",
	YBRFull:       "YBR_FULL",
	YBRFull422:    "YBR_FULL_422",
	YBRPartial422: "YBR_PARTIAL_422",
	YBRPartial420: "YBR_PARTIAL_420",
	YBRICT:        "YBR_ICT",
	YBRRCT:        "YBR_RCT",
	HSV:           "HSV",
	ARGB:          "ARGB",
	CMYK:          "CMYK",
}

func (p PhotometricInterpretation) String() string {
	if p < 0 || int(p) >= len(photometricNames) {
		return "UNKNOWN"
	}
	return photometricNames[p]
}

// ParsePhotometric parses a Photometric Interpretation value. Unknown
// values are false.
func ParsePhotometric(s string) (PhotometricInterpretation, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range photometricNames {
		if name == s {
			return PhotometricInterpretation(i), true
		}
	}
	return Monochrome2, false
}

func (p PhotometricInterpretation) IsMonochrome() bool {
	return p == Monochrome1 || p == Monochrome2
}

// IsInverse reports MONOCHROME1, where the minimum value is white
func (p PhotometricInterpretation) IsInverse() bool {
	return p == Monochrome1
}

func (p PhotometricInterpretation) IsYBR() bool {
	switch p {
	case YBRFull, YBRFull422, YBRPartial422, YBRPartial420, YBRICT, YBRRCT:
		return true
	}
	return false
}

// IsSubSampled reports chroma subsampled models
func (p PhotometricInterpretation) IsSubSampled() bool {
	return p == YBRFull422 || p == YBRPartial422 || p == YBRPartial420
}

// FrameLength returns the byte length of one native frame
func (p PhotometricInterpretation) FrameLength(cols, rows, samples, bitsAllocated int) int {
	switch {
	case bitsAllocated == 1:
		return (cols*rows*samples + 7) / 8
	case p == YBRFull422 || p == YBRPartial422:
		return cols * rows * 2 * bitsAllocated / 8
	case p == YBRPartial420:
		return cols * rows * 3 / 2 * bitsAllocated / 8
	}
	return cols * rows * samples * bitsAllocated / 8
}

// Compress returns the color model of RGB data once encoded with ts:
// lossy JPEG stores YBR_FULL_422, reversible and irreversible JPEG 2000
// store YBR_RCT and YBR_ICT
func (p PhotometricInterpretation) Compress(ts transfer.Syntax) PhotometricInterpretation {
	if p != RGB {
		return p
	}
	switch ts {
	case transfer.JPEGBaseline, transfer.JPEGExtended, transfer.JPEGSpectralSelection, transfer.JPEGProgressive:
		return YBRFull422
	case transfer.JPEG2000Lossless, transfer.JPEG2000MCLossless, transfer.HTJ2KLossless, transfer.HTJ2KLosslessRPCL:
		return YBRRCT
	case transfer.JPEG2000, transfer.JPEG2000MC, transfer.HTJ2K:
		return YBRICT
	}
	return p
}

// Decompress returns the color model of decoded samples
func (p PhotometricInterpretation) Decompress() PhotometricInterpretation {
	switch p {
	case YBRFull422, YBRPartial422, YBRPartial420:
		return YBRFull
	case YBRICT, YBRRCT:
		return RGB
	}
	return p
}
