package codec

// Positions of the encoder and decoder control integers. The layout is the
// contract between the writer that fills it and the codec that reads it.
const (
	ParamIMRead = iota
	ParamDCMRead
	ParamWidth
	ParamHeight
	ParamCompression
	ParamComponents
	ParamBitsPerSample
	ParamInterleaveMode
	ParamColorModel
	ParamJPEGMode
	ParamJPEGLSLossyError
	ParamJ2KCompressionFactor
	ParamJPEGQuality
	ParamJPEGPrediction
	ParamJPEGPointTransform
	ParamStreamVR

	// NumParams is the length of a parameter array
	NumParams
)

// ParamIMRead values
const (
	IMReadUnchanged = -1
	IMReadGrayscale = 0
	IMReadColor     = 1
)

// ParamDCMRead flags
const (
	FlagUnsigned  = 0
	FlagBigEndian = 1 << 0
	FlagFloat     = 1 << 1
	FlagSigned    = 1 << 2
	FlagRLE       = 1 << 3
	FlagYBR       = 1 << 4
)

// ParamCompression values
const (
	CompressionNone = iota
	CompressionJPEG
	CompressionJPEGLS
	CompressionJ2K
	CompressionRLE
	CompressionJPEGXL
	CompressionHTJ2K
)

// ParamJPEGMode values
const (
	JPEGBaseline = iota
	JPEGExtended
	JPEGSpectral
	JPEGProgressive
	JPEGLossless
)

// ParamColorModel values
const (
	ColorMonochrome = iota
	ColorPalette
	ColorRGB
	ColorYBRFull
	ColorYBRFull422
	ColorYBRPartial
	ColorYBRICT
	ColorYBRRCT
)

// ParamInterleaveMode values
const (
	InterleaveNone = iota
	InterleaveLine
	InterleaveSample
)

// ParamStreamVR values
const (
	StreamImplicitVR = iota
	StreamExplicitVR
)

// NewParams returns a parameter array with every slot zero except the read
// mode
func NewParams() []int {
	p := make([]int, NumParams)
	p[ParamIMRead] = IMReadUnchanged
	p[ParamStreamVR] = StreamExplicitVR
	return p
}

// Param returns slot i, zero when params is too short
func Param(params []int, i int) int {
	if i < 0 || i >= len(params) {
		return 0
	}
	return params[i]
}

// IsLossy reports whether the parameters select an irreversible mode, as
// opposed to a syntax that merely allows one
func IsLossy(params []int) bool {
	switch Param(params, ParamCompression) {
	case CompressionJPEG:
		return Param(params, ParamJPEGMode) != JPEGLossless || Param(params, ParamJPEGPointTransform) > 0
	case CompressionJPEGLS:
		return Param(params, ParamJPEGLSLossyError) > 0
	case CompressionJ2K, CompressionHTJ2K:
		return Param(params, ParamJ2KCompressionFactor) > 0
	case CompressionJPEGXL:
		q := Param(params, ParamJPEGQuality)
		return q > 0 && q < 100
	}
	return false
}
