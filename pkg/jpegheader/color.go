package jpegheader

import (
	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/transfer"
)

// Decision is the color handling chosen for the frames of an object
type Decision struct {
	// Photometric is the color model of the coded samples
	Photometric descriptor.PhotometricInterpretation
	// ConvertToRGB asks the decode path for a YCbCr to RGB conversion
	ConvertToRGB bool
	// Rule names the table row that matched
	Rule string
}

// ColorModel reconciles the declared photometric interpretation with the
// header of the first fragment. Some encoders label lossy JPEG streams RGB
// while writing JFIF YCbCr, others the reverse; the table below follows
// what those streams actually contain. hdr may be nil for native and RLE
// data.
//
//	declared     syntax            header                           result
//	mono/palette any               any                              declared
//	any          any               components != 3                  declared
//	RGB          lossy JPEG        keepRGB                          RGB
//	RGB          lossy JPEG        Adobe transform 0 or ids "RGB"   RGB
//	RGB          lossy JPEG        otherwise                        YBR_FULL(_422), convert
//	YBR_*        lossy JPEG        Adobe transform 0                RGB
//	YBR_*        lossy JPEG        otherwise                        declared, convert
//	any          JPEG 2000/HTJ2K   MCT set                          YBR_RCT or YBR_ICT
//	YBR_ICT/RCT  JPEG 2000/HTJ2K   MCT clear                        RGB
//	YBR_FULL*    other             any                              declared, convert
func ColorModel(declared descriptor.PhotometricInterpretation, ts transfer.Syntax, hdr *Header, keepRGBForLossyJPEG bool) Decision {
	if declared.IsMonochrome() || declared == descriptor.PaletteColor {
		return Decision{Photometric: declared, Rule: "declared"}
	}
	if hdr != nil && hdr.Components != 3 {
		return Decision{Photometric: declared, Rule: "declared"}
	}
	family := ts.Family()
	switch {
	case hdr != nil && family == transfer.FamilyJPEG && ts.IsLossy():
		rgbStream := (hdr.Adobe && hdr.AdobeTransform == 0) || hdr.HasRGBComponentIDs()
		switch {
		case declared == descriptor.RGB && keepRGBForLossyJPEG:
			return Decision{Photometric: descriptor.RGB, Rule: "keep-rgb"}
		case declared == descriptor.RGB && rgbStream:
			return Decision{Photometric: descriptor.RGB, Rule: "rgb-stream"}
		case declared == descriptor.RGB:
			pmi := descriptor.YBRFull
			if hdr.IsSubsampled() {
				pmi = descriptor.YBRFull422
			}
			return Decision{Photometric: pmi, ConvertToRGB: true, Rule: "force-ybr"}
		case declared.IsYBR() && hdr.Adobe && hdr.AdobeTransform == 0:
			return Decision{Photometric: descriptor.RGB, Rule: "adobe-rgb"}
		case declared.IsYBR():
			return Decision{Photometric: declared, ConvertToRGB: true, Rule: "ybr-lossy"}
		}
	case hdr != nil && (family == transfer.FamilyJPEG2000 || family == transfer.FamilyHTJ2K):
		switch {
		case hdr.MCT && hdr.Reversible:
			return Decision{Photometric: descriptor.YBRRCT, Rule: "j2k-mct"}
		case hdr.MCT:
			return Decision{Photometric: descriptor.YBRICT, Rule: "j2k-mct"}
		case declared == descriptor.YBRICT || declared == descriptor.YBRRCT:
			return Decision{Photometric: descriptor.RGB, Rule: "j2k-no-mct"}
		}
	}
	if declared.IsYBR() && declared != descriptor.YBRICT && declared != descriptor.YBRRCT {
		return Decision{Photometric: declared, ConvertToRGB: true, Rule: "ybr"}
	}
	return Decision{Photometric: declared, Rule: "declared"}
}
