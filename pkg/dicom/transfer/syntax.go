// Package transfer defines DICOM Transfer Syntaxes
package transfer

// Syntax represents a DICOM Transfer Syntax
type Syntax string

// Standard Transfer Syntaxes
const (
	// Uncompressed
	ImplicitVRLittleEndian    Syntax = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian    Syntax = "1.2.840.10008.1.2.1"
	ExplicitVRLittleEndianExt Syntax = "1.2.840.10008.1.2.1.64" // Encapsulated Uncompressed
	DeflatedExplicitVR        Syntax = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian       Syntax = "1.2.840.10008.1.2.2" // Retired

	// JPEG (ISO 10918-1)
	JPEGBaseline          Syntax = "1.2.840.10008.1.2.4.50"
	JPEGExtended          Syntax = "1.2.840.10008.1.2.4.51"
	JPEGSpectralSelection Syntax = "1.2.840.10008.1.2.4.53" // Retired
	JPEGProgressive       Syntax = "1.2.840.10008.1.2.4.55" // Retired
	JPEGLossless          Syntax = "1.2.840.10008.1.2.4.57"
	JPEGLosslessSV1       Syntax = "1.2.840.10008.1.2.4.70" // Most common

	// JPEG-LS (ISO 14495-1)
	JPEGLSLossless     Syntax = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless Syntax = "1.2.840.10008.1.2.4.81"

	// JPEG 2000 (ISO 15444-1)
	JPEG2000Lossless      Syntax = "1.2.840.10008.1.2.4.90"
	JPEG2000              Syntax = "1.2.840.10008.1.2.4.91"
	JPEG2000MCLossless    Syntax = "1.2.840.10008.1.2.4.92"
	JPEG2000MC            Syntax = "1.2.840.10008.1.2.4.93"
	JPIPReferenced        Syntax = "1.2.840.10008.1.2.4.94"
	JPIPReferencedDeflate Syntax = "1.2.840.10008.1.2.4.95"

	// High-Throughput JPEG 2000 (ISO 15444-15)
	HTJ2KLossless     Syntax = "1.2.840.10008.1.2.4.201"
	HTJ2KLosslessRPCL Syntax = "1.2.840.10008.1.2.4.202"
	HTJ2K             Syntax = "1.2.840.10008.1.2.4.203"

	// JPEG XL (ISO 18181-1)
	JPEGXLLossless          Syntax = "1.2.840.10008.1.2.4.110"
	JPEGXLJPEGRecompression Syntax = "1.2.840.10008.1.2.4.111"
	JPEGXL                  Syntax = "1.2.840.10008.1.2.4.112"

	// Video
	MPEG2MainProfile Syntax = "1.2.840.10008.1.2.4.100"
	MPEG4AVCH264     Syntax = "1.2.840.10008.1.2.4.102"
	HEVCH265         Syntax = "1.2.840.10008.1.2.4.107"

	// Other
	RLELossless Syntax = "1.2.840.10008.1.2.5"
)

// Family groups transfer syntaxes by the codec that handles their pixel data
type Family int

const (
	FamilyUnknown Family = iota
	FamilyNative
	FamilyDeflated
	FamilyJPEG
	FamilyJPEGLS
	FamilyJPEG2000
	FamilyHTJ2K
	FamilyJPEGXL
	FamilyRLE
	FamilyJPIP
	FamilyVideo
)

var familyNames = map[Family]string{
	FamilyUnknown:  "unknown",
	FamilyNative:   "native",
	FamilyDeflated: "deflated",
	FamilyJPEG:     "jpeg",
	FamilyJPEGLS:   "jpeg-ls",
	FamilyJPEG2000: "jpeg2000",
	FamilyHTJ2K:    "htj2k",
	FamilyJPEGXL:   "jpeg-xl",
	FamilyRLE:      "rle",
	FamilyJPIP:     "jpip",
	FamilyVideo:    "video",
}

func (f Family) String() string {
	return familyNames[f]
}

// Family returns the codec family of the syntax
func (s Syntax) Family() Family {
	switch s {
	case ImplicitVRLittleEndian, ExplicitVRLittleEndian, ExplicitVRLittleEndianExt, ExplicitVRBigEndian:
		return FamilyNative
	case DeflatedExplicitVR:
		return FamilyDeflated
	case JPEGBaseline, JPEGExtended, JPEGSpectralSelection, JPEGProgressive, JPEGLossless, JPEGLosslessSV1:
		return FamilyJPEG
	case JPEGLSLossless, JPEGLSNearLossless:
		return FamilyJPEGLS
	case JPEG2000Lossless, JPEG2000, JPEG2000MCLossless, JPEG2000MC:
		return FamilyJPEG2000
	case HTJ2KLossless, HTJ2KLosslessRPCL, HTJ2K:
		return FamilyHTJ2K
	case JPEGXLLossless, JPEGXLJPEGRecompression, JPEGXL:
		return FamilyJPEGXL
	case RLELossless:
		return FamilyRLE
	case JPIPReferenced, JPIPReferencedDeflate:
		return FamilyJPIP
	case MPEG2MainProfile, MPEG4AVCH264, HEVCH265:
		return FamilyVideo
	}
	return FamilyUnknown
}

// IsExplicitVR returns true if this transfer syntax uses explicit VR
func (s Syntax) IsExplicitVR() bool {
	return s != ImplicitVRLittleEndian
}

// IsLittleEndian returns true if this transfer syntax uses little endian byte order
func (s Syntax) IsLittleEndian() bool {
	return s != ExplicitVRBigEndian
}

// IsEncapsulated returns true if pixel data is encapsulated in fragments
func (s Syntax) IsEncapsulated() bool {
	switch s.Family() {
	case FamilyNative:
		return s == ExplicitVRLittleEndianExt
	case FamilyDeflated, FamilyJPIP:
		return false
	default:
		return true
	}
}

// IsJPEGFamily returns true for the codecs whose fragments start with a
// self-describing JPEG-style header (JPEG, JPEG-LS, JPEG 2000, HTJ2K, JPEG XL)
func (s Syntax) IsJPEGFamily() bool {
	switch s.Family() {
	case FamilyJPEG, FamilyJPEGLS, FamilyJPEG2000, FamilyHTJ2K, FamilyJPEGXL:
		return true
	}
	return false
}

// IsJPEGLS returns true if this is a JPEG-LS transfer syntax
func (s Syntax) IsJPEGLS() bool {
	return s.Family() == FamilyJPEGLS
}

// IsJPEGLossless returns true if this is a JPEG Lossless (process 14) transfer syntax
func (s Syntax) IsJPEGLossless() bool {
	return s == JPEGLossless || s == JPEGLosslessSV1
}

// IsLossy returns true if the syntax may carry irreversibly compressed data
func (s Syntax) IsLossy() bool {
	switch s {
	case JPEGBaseline, JPEGExtended, JPEGSpectralSelection, JPEGProgressive,
		JPEGLSNearLossless, JPEG2000, JPEG2000MC, HTJ2K, JPEGXL, JPEGXLJPEGRecompression,
		MPEG2MainProfile, MPEG4AVCH264, HEVCH265:
		return true
	}
	return false
}

// LossyMethod returns the Lossy Image Compression Method (0028,2114) code
// for the syntax family, empty if the family has none
func (s Syntax) LossyMethod() string {
	switch s.Family() {
	case FamilyJPEG:
		return "ISO_10918_1"
	case FamilyJPEGLS:
		return "ISO_14495_1"
	case FamilyJPEG2000:
		return "ISO_15444_1"
	case FamilyHTJ2K:
		return "ISO_15444_15"
	case FamilyJPEGXL:
		return "ISO_18181_1"
	}
	return ""
}

// Name returns a human-readable name for the transfer syntax
func (s Syntax) Name() string {
	switch s {
	case ImplicitVRLittleEndian:
		return "Implicit VR Little Endian"
	case ExplicitVRLittleEndian:
		return "Explicit VR Little Endian"
	case ExplicitVRLittleEndianExt:
		return "Encapsulated Uncompressed Explicit VR Little Endian"
	case DeflatedExplicitVR:
		return "Deflated Explicit VR Little Endian"
	case ExplicitVRBigEndian:
		return "Explicit VR Big Endian (Retired)"
	case JPEGBaseline:
		return "JPEG Baseline (Process 1)"
	case JPEGExtended:
		return "JPEG Extended (Process 2 & 4)"
	case JPEGSpectralSelection:
		return "JPEG Spectral Selection, Non-Hierarchical (Retired)"
	case JPEGProgressive:
		return "JPEG Full Progression, Non-Hierarchical (Retired)"
	case JPEGLossless:
		return "JPEG Lossless (Process 14)"
	case JPEGLosslessSV1:
		return "JPEG Lossless First-Order (Process 14, SV1)"
	case JPEGLSLossless:
		return "JPEG-LS Lossless"
	case JPEGLSNearLossless:
		return "JPEG-LS Near-Lossless"
	case JPEG2000Lossless:
		return "JPEG 2000 Lossless"
	case JPEG2000:
		return "JPEG 2000"
	case JPEG2000MCLossless:
		return "JPEG 2000 Part 2 Multi-component Lossless"
	case JPEG2000MC:
		return "JPEG 2000 Part 2 Multi-component"
	case JPIPReferenced:
		return "JPIP Referenced"
	case JPIPReferencedDeflate:
		return "JPIP Referenced Deflate"
	case HTJ2KLossless:
		return "High-Throughput JPEG 2000 Lossless"
	case HTJ2KLosslessRPCL:
		return "High-Throughput JPEG 2000 with RPCL Options Lossless"
	case HTJ2K:
		return "High-Throughput JPEG 2000"
	case JPEGXLLossless:
		return "JPEG XL Lossless"
	case JPEGXLJPEGRecompression:
		return "JPEG XL JPEG Recompression"
	case JPEGXL:
		return "JPEG XL"
	case MPEG2MainProfile:
		return "MPEG2 Main Profile"
	case MPEG4AVCH264:
		return "MPEG-4 AVC/H.264 High Profile"
	case HEVCH265:
		return "HEVC/H.265 Main Profile"
	case RLELossless:
		return "RLE Lossless"
	default:
		return string(s)
	}
}

// FromUID converts a UID string to a Syntax, trimming DICOM padding
func FromUID(uid string) Syntax {
	for len(uid) > 0 && (uid[len(uid)-1] == 0 || uid[len(uid)-1] == ' ') {
		uid = uid[:len(uid)-1]
	}
	return Syntax(uid)
}
