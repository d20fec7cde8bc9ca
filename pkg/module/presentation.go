package module

import (
	"log/slog"
	"strings"

	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
)

// Presentation LUT Shape values
const (
	ShapeIdentity = "IDENTITY"
	ShapeInverse  = "INVERSE"
)

// PresentationState carries the LUT modules of a Grayscale Softcopy
// Presentation State that override the image's own
type PresentationState struct {
	// Modality overrides the image Modality LUT when it declares a rescale
	// or a LUT sequence
	Modality *ModalityLUTModule
	VOI      *VOILUTModule

	LUT            *lut.LookupTable
	LUTExplanation string
	Shape          string

	// Overlays are the graphic planes of the presentation state
	Overlays []OverlayData
}

// PresentationStateFromDataset reads the modules of a presentation state
// object
func PresentationStateFromDataset(ds *dicom.Dataset) *PresentationState {
	ps := &PresentationState{
		Shape:    strings.ToUpper(dicom.GetString(ds, tag.PresentationLUTShape, "")),
		Overlays: Overlays(ds),
	}
	if m := ModalityLUTFromDataset(ds); m.LUT != nil || m.rescaleSlope != nil {
		ps.Modality = m
	}
	if v := VOILUTFromDataset(ds); !v.IsEmpty() {
		ps.VOI = v
	}
	if items := dicom.GetSequence(ds, tag.PresentationLUTSequence); len(items) > 0 {
		table, err := lut.FromDescriptor(dicom.GetInts(items[0], tag.LUTDescriptor), dicom.GetBytes(items[0], tag.LUTData), false)
		if err != nil {
			slog.Warn("invalid presentation lut sequence", slog.Any("err", err))
		} else {
			ps.LUT = table
			ps.LUTExplanation = dicom.GetString(items[0], tag.LUTExplanation, "")
		}
	}
	return ps
}

// IsInverse reports an INVERSE presentation LUT shape
func (ps *PresentationState) IsInverse() bool {
	return ps != nil && ps.Shape == ShapeInverse
}

// ModalityLUT returns the override table of the modality module, nil when
// none
func (ps *PresentationState) ModalityLUT() *lut.LookupTable {
	if ps == nil || ps.Modality == nil {
		return nil
	}
	return ps.Modality.LUT
}
