// Package descriptor derives the geometry and encoding of an image from its
// attributes and keeps the lazily filled per-frame caches used while
// rendering.
package descriptor

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jpfielding/dcmimage.go/pkg/dicom"
	"github.com/jpfielding/dcmimage.go/pkg/dicom/tag"
	"github.com/jpfielding/dcmimage.go/pkg/module"
)

// Source tells where a per-frame value came from
type Source int

const (
	// SourceFrame is a value cached for the frame
	SourceFrame Source = iota
	// SourceDefault is the object level value for an empty frame slot
	SourceDefault
	// SourceOutOfRange is the object level value returned for a frame
	// index outside [0, frames)
	SourceOutOfRange
)

func (s Source) String() string {
	switch s {
	case SourceFrame:
		return "frame"
	case SourceDefault:
		return "default"
	}
	return "out-of-range"
}

// MinMax is the pixel value range of a frame
type MinMax struct {
	Min float64
	Max float64
}

// Descriptor describes the pixel data of one DICOM object. The fixed fields
// never change after New; the per-frame cells are filled lazily and are
// safe for concurrent use.
type Descriptor struct {
	Rows                 int
	Columns              int
	SamplesPerPixel      int
	BitsAllocated        int
	BitsStored           int
	BitsCompressed       int
	HighBit              int
	PixelRepresentation  int
	PlanarConfiguration  int
	Photometric          PhotometricInterpretation
	Modality             string
	SOPClassUID          string
	PresentationLUTShape string
	Frames               int

	pixelPadding      *int
	pixelPaddingLimit *int

	EmbeddedOverlays []module.EmbeddedOverlay
	Overlays         []module.OverlayData
	Palette          *module.PaletteColorLUT

	ModalityLUT *module.ModalityLUTModule
	VOILUT      *module.VOILUTModule

	minMax       []atomic.Pointer[MinMax]
	voiLUTs      []atomic.Pointer[module.VOILUTModule]
	modalityLUTs []atomic.Pointer[module.ModalityLUTModule]
}

// Option configures a Descriptor during construction
type Option func(*Descriptor)

// WithBitsCompressed sets the sample precision found in the compressed
// stream, clamped to bits allocated
func WithBitsCompressed(bits int) Option {
	return func(d *Descriptor) {
		if bits > 0 {
			d.BitsCompressed = min(bits, d.BitsAllocated)
		}
	}
}

// New derives a descriptor from an attribute set
func New(ds *dicom.Dataset, opts ...Option) *Descriptor {
	d := &Descriptor{
		Rows:                 dicom.GetInt(ds, tag.Rows, 0),
		Columns:              dicom.GetInt(ds, tag.Columns, 0),
		SamplesPerPixel:      max(dicom.GetInt(ds, tag.SamplesPerPixel, 1), 1),
		BitsAllocated:        max(dicom.GetInt(ds, tag.BitsAllocated, 8), 1),
		PixelRepresentation:  dicom.GetInt(ds, tag.PixelRepresentation, 0),
		PlanarConfiguration:  dicom.GetInt(ds, tag.PlanarConfiguration, 0),
		Modality:             dicom.GetString(ds, tag.Modality, ""),
		SOPClassUID:          dicom.GetString(ds, tag.SOPClassUID, ""),
		PresentationLUTShape: dicom.GetString(ds, tag.PresentationLUTShape, ""),
		Frames:               max(dicom.GetInt(ds, tag.NumberOfFrames, 1), 1),
	}
	d.BitsStored = min(max(dicom.GetInt(ds, tag.BitsStored, d.BitsAllocated), 1), d.BitsAllocated)
	d.HighBit = dicom.GetInt(ds, tag.HighBit, d.BitsStored-1)
	if hb := min(max(d.HighBit, d.BitsStored-1), d.BitsAllocated-1); hb != d.HighBit {
		// the stored bits must fit in the allocated ones
		slog.Warn("high bit outside the allocated bits, clamped",
			slog.Int("highBit", d.HighBit), slog.Int("bitsStored", d.BitsStored),
			slog.Int("bitsAllocated", d.BitsAllocated), slog.Int("clamped", hb))
		d.HighBit = hb
	}
	d.BitsCompressed = d.BitsStored

	pmi := dicom.GetString(ds, tag.PhotometricInterpretation, "")
	if p, ok := ParsePhotometric(pmi); ok {
		d.Photometric = p
	} else if pmi != "" {
		slog.Warn("unknown photometric interpretation, using MONOCHROME2", slog.String("value", pmi))
	}

	if v, ok := dicom.LookupInt(ds, tag.PixelPaddingValue); ok {
		v = d.signedValue(v)
		d.pixelPadding = &v
	}
	if v, ok := dicom.LookupInt(ds, tag.PixelPaddingRangeLimit); ok {
		v = d.signedValue(v)
		d.pixelPaddingLimit = &v
	}

	d.EmbeddedOverlays = module.EmbeddedOverlays(ds)
	d.Overlays = module.Overlays(ds)
	if d.Photometric == PaletteColor {
		d.Palette = module.PaletteColorLUTFromDataset(ds)
	}

	d.ModalityLUT = module.ModalityLUTFromDataset(ds)
	d.VOILUT = module.VOILUTFromDataset(ds)

	d.minMax = make([]atomic.Pointer[MinMax], d.Frames)
	d.voiLUTs = make([]atomic.Pointer[module.VOILUTModule], d.Frames)
	d.modalityLUTs = make([]atomic.Pointer[module.ModalityLUTModule], d.Frames)
	d.readFunctionalGroups(ds)

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// signedValue reinterprets a US-decoded value of a signed image
func (d *Descriptor) signedValue(v int) int {
	if d.IsSigned() && v > 0x7FFF && v <= 0xFFFF {
		return int(int16(uint16(v)))
	}
	return v
}

// readFunctionalGroups fills object and per-frame LUT modules from the
// Pixel Value Transformation and Frame VOI LUT functional groups
func (d *Descriptor) readFunctionalGroups(ds *dicom.Dataset) {
	shared := dicom.GetSequence(ds, tag.SharedFunctionalGroupsSequence)
	if len(shared) > 0 {
		if m := d.modalityFromGroup(ds, shared[0]); m != nil {
			d.ModalityLUT = m
		}
		if v := voiFromGroup(ds, shared[0]); v != nil {
			d.VOILUT = v
		}
	}
	for i, item := range dicom.GetSequence(ds, tag.PerFrameFunctionalGroupsSequence) {
		if i >= d.Frames {
			slog.Warn("more functional groups than frames", slog.Int("frames", d.Frames))
			break
		}
		if m := d.modalityFromGroup(ds, item); m != nil {
			d.modalityLUTs[i].Store(m)
		}
		if v := voiFromGroup(ds, item); v != nil {
			d.voiLUTs[i].Store(v)
		}
	}
}

func (d *Descriptor) modalityFromGroup(root, group *dicom.Dataset) *module.ModalityLUTModule {
	items := dicom.GetSequence(group, tag.PixelValueTransformationSequence)
	if len(items) == 0 {
		return nil
	}
	return module.ModalityLUTFromDataset(withContext(root, items[0]))
}

func voiFromGroup(root, group *dicom.Dataset) *module.VOILUTModule {
	items := dicom.GetSequence(group, tag.FrameVOILUTSequence)
	if len(items) == 0 {
		return nil
	}
	return module.VOILUTFromDataset(withContext(root, items[0]))
}

// withContext copies the attributes modules depend on from the root into
// a functional group item
func withContext(root, item *dicom.Dataset) *dicom.Dataset {
	out, _ := dicom.NewDataset()
	for t, e := range item.Elements {
		out.Elements[t] = e
	}
	for _, t := range []tag.Tag{tag.Modality, tag.PixelRepresentation, tag.PixelIntensityRelationship} {
		if e, ok := root.Get(t); ok {
			if _, exists := out.Get(t); !exists {
				out.Elements[t] = e
			}
		}
	}
	return out
}

func (d *Descriptor) IsMultiframe() bool {
	return d.Frames > 1
}

func (d *Descriptor) IsSigned() bool {
	return d.PixelRepresentation != 0
}

// IsBanded reports color-by-plane sample order
func (d *Descriptor) IsBanded() bool {
	return d.PlanarConfiguration != 0
}

func (d *Descriptor) HasPaletteColorLookupTable() bool {
	return d.Palette != nil
}

// IsFloatPixelData reports 32 bit (other than RT Dose) or 64 bit pixels
func (d *Descriptor) IsFloatPixelData() bool {
	return (d.BitsAllocated == 32 && d.Modality != "RTDOSE") || d.BitsAllocated == 64
}

// PixelPaddingValue returns the Pixel Padding Value
func (d *Descriptor) PixelPaddingValue() (int, bool) {
	if d.pixelPadding == nil {
		return 0, false
	}
	return *d.pixelPadding, true
}

// PixelPaddingRangeLimit returns the Pixel Padding Range Limit
func (d *Descriptor) PixelPaddingRangeLimit() (int, bool) {
	if d.pixelPaddingLimit == nil {
		return 0, false
	}
	return *d.pixelPaddingLimit, true
}

// FrameLength returns the byte length of one native frame
func (d *Descriptor) FrameLength() int {
	return d.Photometric.FrameLength(d.Columns, d.Rows, d.SamplesPerPixel, d.BitsAllocated)
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%dx%d %s frames=%d bits=%d/%d/%d signed=%t",
		d.Columns, d.Rows, d.Photometric, d.Frames, d.BitsAllocated, d.BitsStored, d.HighBit, d.IsSigned())
}

func (d *Descriptor) inRange(frame int) bool {
	return frame >= 0 && frame < d.Frames
}

// outOfRange logs an invalid frame index. Frame 0 is the implicit single
// frame fallback and is not logged.
func (d *Descriptor) outOfRange(frame int, cache string) {
	if frame != 0 {
		slog.Error("frame index out of range", slog.Int("frame", frame), slog.Int("frames", d.Frames), slog.String("cache", cache))
	}
}

// MinMax returns the cached pixel range of a frame, nil when not computed
func (d *Descriptor) MinMax(frame int) (*MinMax, Source) {
	if !d.inRange(frame) {
		d.outOfRange(frame, "minmax")
		return nil, SourceOutOfRange
	}
	if mm := d.minMax[frame].Load(); mm != nil {
		return mm, SourceFrame
	}
	return nil, SourceDefault
}

// SetMinMax caches the pixel range of a frame; out of range frames are
// ignored
func (d *Descriptor) SetMinMax(frame int, mm *MinMax) {
	if !d.inRange(frame) {
		slog.Error("frame index out of range", slog.Int("frame", frame), slog.Int("frames", d.Frames), slog.String("cache", "minmax"))
		return
	}
	d.minMax[frame].Store(mm)
}

// VOILUTForFrame returns the frame VOI LUT module, or the object module
func (d *Descriptor) VOILUTForFrame(frame int) (*module.VOILUTModule, Source) {
	if !d.inRange(frame) {
		d.outOfRange(frame, "voi")
		return d.VOILUT, SourceOutOfRange
	}
	if m := d.voiLUTs[frame].Load(); m != nil {
		return m, SourceFrame
	}
	return d.VOILUT, SourceDefault
}

// SetVOILUTForFrame overrides the VOI LUT module of a frame
func (d *Descriptor) SetVOILUTForFrame(frame int, m *module.VOILUTModule) {
	if !d.inRange(frame) {
		slog.Error("frame index out of range", slog.Int("frame", frame), slog.Int("frames", d.Frames), slog.String("cache", "voi"))
		return
	}
	d.voiLUTs[frame].Store(m)
}

// ModalityLUTForFrame returns the frame Modality LUT module, or the object
// module
func (d *Descriptor) ModalityLUTForFrame(frame int) (*module.ModalityLUTModule, Source) {
	if !d.inRange(frame) {
		d.outOfRange(frame, "modality")
		return d.ModalityLUT, SourceOutOfRange
	}
	if m := d.modalityLUTs[frame].Load(); m != nil {
		return m, SourceFrame
	}
	return d.ModalityLUT, SourceDefault
}

// SetModalityLUTForFrame overrides the Modality LUT module of a frame
func (d *Descriptor) SetModalityLUTForFrame(frame int, m *module.ModalityLUTModule) {
	if !d.inRange(frame) {
		slog.Error("frame index out of range", slog.Int("frame", frame), slog.Int("frames", d.Frames), slog.String("cache", "modality"))
		return
	}
	d.modalityLUTs[frame].Store(m)
}
