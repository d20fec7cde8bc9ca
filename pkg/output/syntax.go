package output

import (
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

// AdaptSuitableSyntax returns the transfer syntax an image can actually be
// written with when requested is asked for. Each codec has a bit depth
// ceiling; past it the next safe syntax is chosen, ending at Explicit VR
// Little Endian.
//
//	requested                          accepts                    otherwise
//	native and deflated syntaxes       -                          Explicit VR LE
//	JPEG Baseline                      U8, bits stored <= 8       JPEG Lossless SV1 up to 16 bits, else raw
//	JPEG Extended / Progressive        unsigned, <= 12 bits       JPEG Lossless SV1 up to 16 bits, else raw
//	JPEG Lossless, JPEG-LS, JPEG 2000  integers up to 16 bits     raw
//	HTJ2K, RLE                         integers up to 16 bits     raw
//	JPEG XL Lossless                   up to Float32              raw
//	JPEG XL                            8 bits                     JPEG XL Lossless up to Float32, else raw
func AdaptSuitableSyntax(bitsStored int, t raster.ElemType, requested transfer.Syntax) transfer.Syntax {
	upTo16 := t <= raster.Signed16
	switch requested {
	case transfer.ImplicitVRLittleEndian, transfer.ExplicitVRLittleEndian,
		transfer.DeflatedExplicitVR, transfer.ExplicitVRBigEndian:
		return transfer.ExplicitVRLittleEndian

	case transfer.JPEGBaseline:
		switch {
		case t == raster.Unsigned8 && bitsStored <= 8:
			return requested
		case upTo16:
			return transfer.JPEGLosslessSV1
		}
		return transfer.ExplicitVRLittleEndian

	case transfer.JPEGExtended, transfer.JPEGSpectralSelection, transfer.JPEGProgressive:
		switch {
		case upTo16 && !t.IsSigned() && bitsStored <= 12:
			return requested
		case upTo16:
			return transfer.JPEGLosslessSV1
		}
		return transfer.ExplicitVRLittleEndian

	case transfer.JPEGLossless, transfer.JPEGLosslessSV1,
		transfer.JPEGLSLossless, transfer.JPEGLSNearLossless,
		transfer.JPEG2000Lossless, transfer.JPEG2000, transfer.JPEG2000MCLossless, transfer.JPEG2000MC,
		transfer.HTJ2KLossless, transfer.HTJ2KLosslessRPCL, transfer.HTJ2K,
		transfer.RLELossless:
		if upTo16 {
			return requested
		}
		return transfer.ExplicitVRLittleEndian

	case transfer.JPEGXLLossless:
		if t <= raster.Float32 {
			return requested
		}
		return transfer.ExplicitVRLittleEndian

	case transfer.JPEGXL, transfer.JPEGXLJPEGRecompression:
		switch {
		case t <= raster.Signed8:
			return requested
		case t <= raster.Float32:
			return transfer.JPEGXLLossless
		}
		return transfer.ExplicitVRLittleEndian
	}
	return requested
}

// IsNativeSyntax reports a syntax whose pixel data is written unencapsulated
func IsNativeSyntax(ts transfer.Syntax) bool {
	switch ts.Family() {
	case transfer.FamilyNative, transfer.FamilyDeflated:
		return !ts.IsEncapsulated()
	}
	return false
}

// WritePath selects how pixel data is written
type WritePath int

const (
	// PathRaw writes native pixel data
	PathRaw WritePath = iota
	// PathCompressed encodes every frame into encapsulated fragments
	PathCompressed
)

func (p WritePath) String() string {
	if p == PathRaw {
		return "raw"
	}
	return "compressed"
}

// SelectWritePath returns the write path of an adapted syntax
func SelectWritePath(ts transfer.Syntax) WritePath {
	if IsNativeSyntax(ts) {
		return PathRaw
	}
	return PathCompressed
}
