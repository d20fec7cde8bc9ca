package tag

// Info is the dictionary entry of a tag: its keyword and default VR
type Info struct {
	Name string
	VR   string
}

var dictionary = map[Tag]Info{
	FileMetaInformationGroupLength: {"FileMetaInformationGroupLength", "UL"},
	FileMetaInformationVersion:     {"FileMetaInformationVersion", "OB"},
	MediaStorageSOPClassUID:        {"MediaStorageSOPClassUID", "UI"},
	MediaStorageSOPInstanceUID:     {"MediaStorageSOPInstanceUID", "UI"},
	TransferSyntaxUID:              {"TransferSyntaxUID", "UI"},
	ImplementationClassUID:         {"ImplementationClassUID", "UI"},
	ImplementationVersionName:      {"ImplementationVersionName", "SH"},

	SpecificCharacterSet:   {"SpecificCharacterSet", "CS"},
	ImageType:              {"ImageType", "CS"},
	SOPClassUID:            {"SOPClassUID", "UI"},
	SOPInstanceUID:         {"SOPInstanceUID", "UI"},
	Modality:               {"Modality", "CS"},
	StationName:            {"StationName", "SH"},
	SeriesDescription:      {"SeriesDescription", "LO"},
	DerivationDescription:  {"DerivationDescription", "ST"},
	AnatomicRegionSequence: {"AnatomicRegionSequence", "SQ"},
	PatientName:            {"PatientName", "PN"},
	PatientID:              {"PatientID", "LO"},
	BodyPartExamined:       {"BodyPartExamined", "CS"},
	StudyInstanceUID:       {"StudyInstanceUID", "UI"},
	SeriesInstanceUID:      {"SeriesInstanceUID", "UI"},
	InstanceNumber:         {"InstanceNumber", "IS"},

	SamplesPerPixel:           {"SamplesPerPixel", "US"},
	PhotometricInterpretation: {"PhotometricInterpretation", "CS"},
	PlanarConfiguration:       {"PlanarConfiguration", "US"},
	NumberOfFrames:            {"NumberOfFrames", "IS"},
	Rows:                      {"Rows", "US"},
	Columns:                   {"Columns", "US"},
	BitsAllocated:             {"BitsAllocated", "US"},
	BitsStored:                {"BitsStored", "US"},
	HighBit:                   {"HighBit", "US"},
	PixelRepresentation:       {"PixelRepresentation", "US"},
	SmallestImagePixelValue:   {"SmallestImagePixelValue", "US"},
	LargestImagePixelValue:    {"LargestImagePixelValue", "US"},
	PixelPaddingValue:         {"PixelPaddingValue", "US"},
	PixelPaddingRangeLimit:    {"PixelPaddingRangeLimit", "US"},
	PixelPresentation:         {"PixelPresentation", "CS"},
	PixelDataProviderURL:      {"PixelDataProviderURL", "UR"},
	PixelData:                 {"PixelData", "OW"},
	FloatPixelData:            {"FloatPixelData", "OF"},
	DoubleFloatPixelData:      {"DoubleFloatPixelData", "OD"},

	PixelIntensityRelationship:     {"PixelIntensityRelationship", "CS"},
	WindowCenter:                   {"WindowCenter", "DS"},
	WindowWidth:                    {"WindowWidth", "DS"},
	RescaleIntercept:               {"RescaleIntercept", "DS"},
	RescaleSlope:                   {"RescaleSlope", "DS"},
	RescaleType:                    {"RescaleType", "LO"},
	WindowCenterWidthExplanation:   {"WindowCenterWidthExplanation", "LO"},
	VOILUTFunction:                 {"VOILUTFunction", "CS"},
	LossyImageCompression:          {"LossyImageCompression", "CS"},
	LossyImageCompressionRatio:     {"LossyImageCompressionRatio", "DS"},
	LossyImageCompressionMethod:    {"LossyImageCompressionMethod", "CS"},
	ModalityLUTSequence:            {"ModalityLUTSequence", "SQ"},
	LUTDescriptor:                  {"LUTDescriptor", "US"},
	LUTExplanation:                 {"LUTExplanation", "LO"},
	ModalityLUTType:                {"ModalityLUTType", "LO"},
	LUTData:                        {"LUTData", "OW"},
	VOILUTSequence:                 {"VOILUTSequence", "SQ"},
	PresentationLUTSequence:        {"PresentationLUTSequence", "SQ"},
	PresentationLUTShape:           {"PresentationLUTShape", "CS"},
	RedPaletteColorLUTDescriptor:   {"RedPaletteColorLUTDescriptor", "US"},
	GreenPaletteColorLUTDescriptor: {"GreenPaletteColorLUTDescriptor", "US"},
	BluePaletteColorLUTDescriptor:  {"BluePaletteColorLUTDescriptor", "US"},
	RedPaletteColorLUTData:         {"RedPaletteColorLUTData", "OW"},
	GreenPaletteColorLUTData:       {"GreenPaletteColorLUTData", "OW"},
	BluePaletteColorLUTData:        {"BluePaletteColorLUTData", "OW"},

	SharedFunctionalGroupsSequence:   {"SharedFunctionalGroupsSequence", "SQ"},
	PerFrameFunctionalGroupsSequence: {"PerFrameFunctionalGroupsSequence", "SQ"},
	PixelValueTransformationSequence: {"PixelValueTransformationSequence", "SQ"},
	FrameVOILUTSequence:              {"FrameVOILUTSequence", "SQ"},

	OverlayRows:             {"OverlayRows", "US"},
	OverlayColumns:          {"OverlayColumns", "US"},
	NumberOfFramesInOverlay: {"NumberOfFramesInOverlay", "IS"},
	OverlayDescription:      {"OverlayDescription", "LO"},
	OverlayType:             {"OverlayType", "CS"},
	OverlayOrigin:           {"OverlayOrigin", "SS"},
	ImageFrameOrigin:        {"ImageFrameOrigin", "US"},
	OverlayBitsAllocated:    {"OverlayBitsAllocated", "US"},
	OverlayBitPosition:      {"OverlayBitPosition", "US"},
	OverlayData:             {"OverlayData", "OW"},
}

// Lookup returns the dictionary entry for a tag. Overlay groups 6002-601E
// resolve to their 6000 counterpart.
func Lookup(t Tag) (Info, bool) {
	if t.IsOverlay() {
		t.Group = 0x6000
	}
	info, ok := dictionary[t]
	return info, ok
}

// LookupName returns a human-readable name for known tags
func (t Tag) LookupName() string {
	info, _ := Lookup(t)
	return info.Name
}

// LookupVR returns the dictionary VR of a tag, UN if unknown
func LookupVR(t Tag) string {
	if info, ok := Lookup(t); ok {
		return info.VR
	}
	if t.Element == 0x0000 {
		return "UL" // group length
	}
	return "UN"
}
