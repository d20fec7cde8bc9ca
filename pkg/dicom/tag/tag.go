// Package tag defines the DICOM tags used to describe, render and re-encode pixel data
package tag

import "fmt"

// Tag represents a DICOM tag with Group and Element
type Tag struct {
	Group   uint16
	Element uint16
}

// New creates a new Tag
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// IsPrivate returns true if this is a private tag (odd group number)
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsGroup0002 returns true if this tag is in the File Meta Information group
func (t Tag) IsGroup0002() bool {
	return t.Group == 0x0002
}

// IsOverlay returns true for the repeating overlay groups 6000-601E (even)
func (t Tag) IsOverlay() bool {
	return t.Group >= 0x6000 && t.Group <= 0x601E && t.Group%2 == 0
}

// Overlay returns the overlay tag for the given zero-based overlay index (0..15)
func Overlay(index int, base Tag) Tag {
	return Tag{Group: base.Group + uint16(index*2), Element: base.Element}
}

// Less orders tags by group then element
func (t Tag) Less(other Tag) bool {
	if t.Group != other.Group {
		return t.Group < other.Group
	}
	return t.Element < other.Element
}

// String formats the tag as (GGGG,EEEE)
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// MarshalText renders the tag as in String, which also makes tags usable
// as JSON object keys
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// File Meta Information (Group 0002)
var (
	FileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	FileMetaInformationVersion     = Tag{0x0002, 0x0001}
	MediaStorageSOPClassUID        = Tag{0x0002, 0x0002}
	MediaStorageSOPInstanceUID     = Tag{0x0002, 0x0003}
	TransferSyntaxUID              = Tag{0x0002, 0x0010}
	ImplementationClassUID         = Tag{0x0002, 0x0012}
	ImplementationVersionName      = Tag{0x0002, 0x0013}
)

// SOP Common, Patient, Study and Series
var (
	SpecificCharacterSet   = Tag{0x0008, 0x0005}
	ImageType              = Tag{0x0008, 0x0008}
	SOPClassUID            = Tag{0x0008, 0x0016}
	SOPInstanceUID         = Tag{0x0008, 0x0018}
	Modality               = Tag{0x0008, 0x0060}
	StationName            = Tag{0x0008, 0x1010}
	SeriesDescription      = Tag{0x0008, 0x103E}
	DerivationDescription  = Tag{0x0008, 0x2111}
	PatientName            = Tag{0x0010, 0x0010}
	PatientID              = Tag{0x0010, 0x0020}
	BodyPartExamined       = Tag{0x0018, 0x0015}
	StudyInstanceUID       = Tag{0x0020, 0x000D}
	SeriesInstanceUID      = Tag{0x0020, 0x000E}
	InstanceNumber         = Tag{0x0020, 0x0013}
	AnatomicRegionSequence = Tag{0x0008, 0x2218}
)

// Image Pixel Module (Group 0028)
var (
	SamplesPerPixel           = Tag{0x0028, 0x0002}
	PhotometricInterpretation = Tag{0x0028, 0x0004}
	PlanarConfiguration       = Tag{0x0028, 0x0006} // 0=color-by-pixel, 1=color-by-plane
	NumberOfFrames            = Tag{0x0028, 0x0008}
	Rows                      = Tag{0x0028, 0x0010}
	Columns                   = Tag{0x0028, 0x0011}
	BitsAllocated             = Tag{0x0028, 0x0100}
	BitsStored                = Tag{0x0028, 0x0101}
	HighBit                   = Tag{0x0028, 0x0102}
	PixelRepresentation       = Tag{0x0028, 0x0103}
	SmallestImagePixelValue   = Tag{0x0028, 0x0106}
	LargestImagePixelValue    = Tag{0x0028, 0x0107}
	PixelPaddingValue         = Tag{0x0028, 0x0120}
	PixelPaddingRangeLimit    = Tag{0x0028, 0x0121}
	PixelPresentation         = Tag{0x0008, 0x9205}
	PixelDataProviderURL      = Tag{0x0028, 0x7FE0}
	PixelData                 = Tag{0x7FE0, 0x0010}
	FloatPixelData            = Tag{0x7FE0, 0x0008}
	DoubleFloatPixelData      = Tag{0x7FE0, 0x0009}
)

// Modality LUT, VOI LUT and Presentation LUT
var (
	PixelIntensityRelationship     = Tag{0x0028, 0x1040}
	WindowCenter                   = Tag{0x0028, 0x1050}
	WindowWidth                    = Tag{0x0028, 0x1051}
	RescaleIntercept               = Tag{0x0028, 0x1052}
	RescaleSlope                   = Tag{0x0028, 0x1053}
	RescaleType                    = Tag{0x0028, 0x1054}
	WindowCenterWidthExplanation   = Tag{0x0028, 0x1055}
	VOILUTFunction                 = Tag{0x0028, 0x1056}
	LossyImageCompression          = Tag{0x0028, 0x2110} // 00=lossless, 01=lossy
	LossyImageCompressionRatio     = Tag{0x0028, 0x2112}
	LossyImageCompressionMethod    = Tag{0x0028, 0x2114}
	ModalityLUTSequence            = Tag{0x0028, 0x3000}
	LUTDescriptor                  = Tag{0x0028, 0x3002}
	LUTExplanation                 = Tag{0x0028, 0x3003}
	ModalityLUTType                = Tag{0x0028, 0x3004}
	LUTData                        = Tag{0x0028, 0x3006}
	VOILUTSequence                 = Tag{0x0028, 0x3010}
	PresentationLUTSequence        = Tag{0x2050, 0x0010}
	PresentationLUTShape           = Tag{0x2050, 0x0020}
	RedPaletteColorLUTDescriptor   = Tag{0x0028, 0x1101}
	GreenPaletteColorLUTDescriptor = Tag{0x0028, 0x1102}
	BluePaletteColorLUTDescriptor  = Tag{0x0028, 0x1103}
	RedPaletteColorLUTData         = Tag{0x0028, 0x1201}
	GreenPaletteColorLUTData       = Tag{0x0028, 0x1202}
	BluePaletteColorLUTData        = Tag{0x0028, 0x1203}
)

// Multi-frame functional groups
var (
	SharedFunctionalGroupsSequence   = Tag{0x5200, 0x9229}
	PerFrameFunctionalGroupsSequence = Tag{0x5200, 0x9230}
	PixelValueTransformationSequence = Tag{0x0028, 0x9145}
	FrameVOILUTSequence              = Tag{0x0028, 0x9132}
)

// Overlay Plane Module, group 6000 (repeats every even group to 601E)
var (
	OverlayRows             = Tag{0x6000, 0x0010}
	OverlayColumns          = Tag{0x6000, 0x0011}
	NumberOfFramesInOverlay = Tag{0x6000, 0x0015}
	OverlayDescription      = Tag{0x6000, 0x0022}
	OverlayType             = Tag{0x6000, 0x0040}
	OverlayOrigin           = Tag{0x6000, 0x0050}
	ImageFrameOrigin        = Tag{0x6000, 0x0051}
	OverlayBitsAllocated    = Tag{0x6000, 0x0100}
	OverlayBitPosition      = Tag{0x6000, 0x0102}
	OverlayData             = Tag{0x6000, 0x3000}
)

// Sequence delimiters
var (
	Item                     = Tag{0xFFFE, 0xE000}
	ItemDelimitationItem     = Tag{0xFFFE, 0xE00D}
	SequenceDelimitationItem = Tag{0xFFFE, 0xE0DD}
)
