package output

import (
	"fmt"

	"github.com/jpfielding/dcmimage.go/pkg/codec"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
)

// WriteParam carries the compression settings of an output syntax
type WriteParam struct {
	Syntax transfer.Syntax
	// CompressionQuality is the lossy JPEG and JPEG XL quality, 1..100
	CompressionQuality int
	// CompressionRatioFactor is the JPEG 2000 target ratio, 0 for
	// reversible coding
	CompressionRatioFactor int
	// NearLosslessError is the JPEG-LS NEAR value, 0 for lossless
	NearLosslessError int
	// Prediction is the lossless JPEG selection value 1..7
	Prediction int
	// PointTransform drops low order bits in lossless JPEG
	PointTransform int
}

// NewWriteParam returns the defaults of a syntax
func NewWriteParam(ts transfer.Syntax) *WriteParam {
	p := &WriteParam{Syntax: ts, CompressionQuality: 80, Prediction: 1}
	switch ts {
	case transfer.JPEGLSNearLossless:
		p.NearLosslessError = 2
	case transfer.JPEG2000, transfer.JPEG2000MC, transfer.HTJ2K:
		p.CompressionRatioFactor = 10
	case transfer.JPEGXLLossless:
		p.CompressionQuality = 100
	case transfer.JPEGXL, transfer.JPEGXLJPEGRecompression:
		p.CompressionQuality = 85
	}
	return p
}

// WithSyntax returns a copy of the parameters retargeted to ts. Settings
// the new syntax cannot honor fall back to its defaults.
func (p *WriteParam) WithSyntax(ts transfer.Syntax) *WriteParam {
	if p == nil {
		return NewWriteParam(ts)
	}
	if p.Syntax == ts {
		out := *p
		return &out
	}
	out := NewWriteParam(ts)
	if p.CompressionQuality > 0 && ts != transfer.JPEGXLLossless {
		out.CompressionQuality = p.CompressionQuality
	}
	if ts.IsJPEGLossless() {
		out.PointTransform = p.PointTransform
		if ts == transfer.JPEGLossless {
			out.Prediction = p.Prediction
		}
	}
	return out
}

// Validate checks the ranges of the settings
func (p *WriteParam) Validate() error {
	switch {
	case p.CompressionQuality < 1 || p.CompressionQuality > 100:
		return fmt.Errorf("compression quality %d outside 1..100", p.CompressionQuality)
	case p.CompressionRatioFactor < 0:
		return fmt.Errorf("negative compression ratio factor %d", p.CompressionRatioFactor)
	case p.NearLosslessError < 0 || p.NearLosslessError > 255:
		return fmt.Errorf("near lossless error %d outside 0..255", p.NearLosslessError)
	case p.Prediction < 1 || p.Prediction > 7:
		return fmt.Errorf("prediction %d outside 1..7", p.Prediction)
	case p.Syntax == transfer.JPEGLosslessSV1 && p.Prediction != 1:
		return fmt.Errorf("%s requires prediction 1, got %d", p.Syntax.Name(), p.Prediction)
	case p.PointTransform < 0 || p.PointTransform > 15:
		return fmt.Errorf("point transform %d outside 0..15", p.PointTransform)
	}
	return nil
}

// CompressionType returns the ParamCompression value of the syntax
func (p *WriteParam) CompressionType() int {
	switch p.Syntax.Family() {
	case transfer.FamilyJPEG:
		return codec.CompressionJPEG
	case transfer.FamilyJPEGLS:
		return codec.CompressionJPEGLS
	case transfer.FamilyJPEG2000:
		return codec.CompressionJ2K
	case transfer.FamilyHTJ2K:
		return codec.CompressionHTJ2K
	case transfer.FamilyJPEGXL:
		return codec.CompressionJPEGXL
	case transfer.FamilyRLE:
		return codec.CompressionRLE
	}
	return codec.CompressionNone
}

// JPEGMode returns the ParamJPEGMode value of a JPEG syntax
func (p *WriteParam) JPEGMode() int {
	switch p.Syntax {
	case transfer.JPEGExtended:
		return codec.JPEGExtended
	case transfer.JPEGSpectralSelection:
		return codec.JPEGSpectral
	case transfer.JPEGProgressive:
		return codec.JPEGProgressive
	case transfer.JPEGLossless, transfer.JPEGLosslessSV1:
		return codec.JPEGLossless
	}
	return codec.JPEGBaseline
}

// compressionRatioFactor is zero for the reversible JPEG 2000 syntaxes
func (p *WriteParam) compressionRatioFactor() int {
	switch p.Syntax {
	case transfer.JPEG2000Lossless, transfer.JPEG2000MCLossless, transfer.HTJ2KLossless, transfer.HTJ2KLosslessRPCL:
		return 0
	}
	return p.CompressionRatioFactor
}

// nearLosslessError is zero for the JPEG-LS lossless syntax
func (p *WriteParam) nearLosslessError() int {
	if p.Syntax == transfer.JPEGLSLossless {
		return 0
	}
	return p.NearLosslessError
}
