package module

import (
	"log/slog"

	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
)

// VOILUTModule represents the VOI LUT (Value of Interest Lookup Table) Module
// Per DICOM Part 3 Section C.11.2
// Provides window/level and optional LUT-based transformations for display
type VOILUTModule struct {
	// Linear Window/Level (most common)
	// Multiple windows supported for different viewing presets
	Windows []WindowLevel

	// Optional: LUT-based transformation (VOI LUT Sequence)
	LUTs []VOILUT

	// VOI LUT Function - how to interpret window values
	// LINEAR (default), LINEAR_EXACT or SIGMOID
	VOILUTFunction string
}

// WindowLevel represents a single window/level preset
type WindowLevel struct {
	Center      float64 // Window center value
	Width       float64 // Window width value
	Explanation string  // Optional description (e.g., "BONE", "SOFT TISSUE")
}

// VOILUT represents a VOI Lookup Table
type VOILUT struct {
	Table       *lut.LookupTable
	Explanation string
}

// VOILUTFromDataset reads the module from a dataset (or a Frame VOI LUT
// functional group item). Centers and widths are paired up to the shorter
// list.
func VOILUTFromDataset(ds *dicom.Dataset) *VOILUTModule {
	m := &VOILUTModule{VOILUTFunction: dicom.GetString(ds, tag.VOILUTFunction, "")}

	centers := dicom.GetFloats(ds, tag.WindowCenter)
	widths := dicom.GetFloats(ds, tag.WindowWidth)
	explanations := dicom.GetStrings(ds, tag.WindowCenterWidthExplanation)
	if len(centers) != len(widths) {
		slog.Warn("window center and width counts differ", slog.Int("centers", len(centers)), slog.Int("widths", len(widths)))
	}
	for i := 0; i < min(len(centers), len(widths)); i++ {
		w := WindowLevel{Center: centers[i], Width: widths[i]}
		if i < len(explanations) {
			w.Explanation = explanations[i]
		}
		m.Windows = append(m.Windows, w)
	}

	signed := isSigned(ds)
	for _, item := range dicom.GetSequence(ds, tag.VOILUTSequence) {
		table, err := lut.FromDescriptor(dicom.GetInts(item, tag.LUTDescriptor), dicom.GetBytes(item, tag.LUTData), signed)
		if err != nil {
			slog.Warn("invalid voi lut sequence item", slog.Any("err", err))
			continue
		}
		m.LUTs = append(m.LUTs, VOILUT{Table: table, Explanation: dicom.GetString(item, tag.LUTExplanation, "")})
	}
	return m
}

// AddWindow adds a window/level preset
func (m *VOILUTModule) AddWindow(center, width float64, explanation string) {
	m.Windows = append(m.Windows, WindowLevel{
		Center:      center,
		Width:       width,
		Explanation: explanation,
	})
}

// SetWindow sets a single window (clears any existing windows)
func (m *VOILUTModule) SetWindow(center, width float64) {
	m.Windows = []WindowLevel{{Center: center, Width: width}}
}

// Shape returns the curve named by the VOI LUT Function, Linear when
// absent or unknown
func (m *VOILUTModule) Shape() lut.Shape {
	if s, ok := lut.ShapeByName(m.VOILUTFunction); ok {
		return s
	}
	return lut.Linear
}

// IsEmpty reports a module with neither windows nor tables
func (m *VOILUTModule) IsEmpty() bool {
	return m == nil || (len(m.Windows) == 0 && len(m.LUTs) == 0)
}
