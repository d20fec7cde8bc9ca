// Package adapter derives the numeric envelope of one decoded frame: its
// pixel value range, the modality and VOI lookup tables and the window
// presets used when rendering it.
package adapter

import (
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"github.com/jpfielding/dcmimage.go/pkg/module"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

// Presentation selects the padding behavior and the presentation state
// used by a lookup. A nil Presentation applies pixel padding without a
// presentation state.
type Presentation interface {
	IsPixelPadding() bool
	PresentationState() *module.PresentationState
}

// DefaultPresentation is a Presentation without window values
type DefaultPresentation struct {
	PixelPadding bool
	State        *module.PresentationState
}

func (p DefaultPresentation) IsPixelPadding() bool { return p.PixelPadding }

func (p DefaultPresentation) PresentationState() *module.PresentationState { return p.State }

// Adapter holds the value range of one frame and builds the lookup tables
// that map it to display values
type Adapter struct {
	desc       *descriptor.Descriptor
	frame      int
	bitsStored int
	minMax     descriptor.MinMax
	cache      *lut.Cache
	typePreset map[string][]Preset

	presetMu sync.Mutex
	presets  []Preset
}

// Option configures an Adapter
type Option func(*Adapter)

// WithCache replaces the process wide modality table cache
func WithCache(c *lut.Cache) Option {
	return func(a *Adapter) {
		if c != nil {
			a.cache = c
		}
	}
}

// WithModalityPresets replaces the built in per modality window presets
func WithModalityPresets(p map[string][]Preset) Option {
	return func(a *Adapter) {
		a.typePreset = p
	}
}

// New measures the value range of a decoded frame. The range is cached on
// the descriptor and reused by later adapters of the same frame. When the
// measured range does not fit the declared Bits Stored, Bits Allocated is
// used instead.
func New(img *raster.Image, desc *descriptor.Descriptor, frame int, opts ...Option) *Adapter {
	a := &Adapter{
		desc:       desc,
		frame:      frame,
		bitsStored: desc.BitsStored,
		cache:      lut.Default(),
		typePreset: modalityPresets(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if img != nil && img.Type.Bits() > 16 {
		a.bitsStored = img.Type.Bits()
	}

	if mm, src := desc.MinMax(frame); src == descriptor.SourceFrame {
		a.minMax = *mm
	} else if img != nil {
		a.minMax = a.findMinMax(img)
		mm := a.minMax
		desc.SetMinMax(frame, &mm)
	} else {
		a.minMax = descriptor.MinMax{Min: 0, Max: 1}
	}
	a.widenBitsStored()

	// the default table is the one most renders need
	a.ModalityLookup(nil, false)
	return a
}

// findMinMax scans the frame for its extrema. Padding values of monochrome
// images are excluded. Color 8 bit images use the full 0..255 range.
func (a *Adapter) findMinMax(img *raster.Image) descriptor.MinMax {
	var mm descriptor.MinMax
	found := false
	if a.desc.Photometric.IsMonochrome() {
		if pad, ok := a.desc.PixelPaddingValue(); ok {
			lo, hi := pad, pad
			if limit, ok := a.desc.PixelPaddingRangeLimit(); ok {
				lo, hi = min(pad, limit), max(pad, limit)
			}
			mm.Min, mm.Max, found = raster.MinMaxExcluding(img, float64(lo), float64(hi))
		}
	}
	if !found {
		if !a.desc.Photometric.IsMonochrome() && img.Type == raster.Unsigned8 {
			mm = descriptor.MinMax{Min: 0, Max: 255}
		} else {
			mm.Min, mm.Max = raster.MinMax(img)
		}
	}
	if mm.Min == mm.Max {
		mm.Max++
	}
	return mm
}

// widenBitsStored switches to Bits Allocated when the frame holds values
// Bits Stored cannot represent, as with overlays left in the high bits
func (a *Adapter) widenBitsStored() {
	allocated := a.desc.BitsAllocated
	if a.bitsStored >= allocated || a.bitsStored > 16 {
		return
	}
	lo, hi := 0.0, float64(int(1)<<a.bitsStored-1)
	if a.desc.IsSigned() {
		lo, hi = -float64(int(1)<<(a.bitsStored-1)), float64(int(1)<<(a.bitsStored-1)-1)
	}
	if a.minMax.Min < lo || a.minMax.Max > hi {
		slog.Debug("pixel values exceed bits stored",
			slog.Int("frame", a.frame), slog.Int("bits_stored", a.bitsStored), slog.Int("bits_allocated", allocated),
			slog.Float64("min", a.minMax.Min), slog.Float64("max", a.minMax.Max))
		a.bitsStored = allocated
	}
}

// Descriptor returns the descriptor of the frame
func (a *Adapter) Descriptor() *descriptor.Descriptor { return a.desc }

// Frame returns the frame index
func (a *Adapter) Frame() int { return a.frame }

// BitsStored returns the effective bits stored, possibly widened
func (a *Adapter) BitsStored() int { return a.bitsStored }

// MinMax returns the raw value range of the frame
func (a *Adapter) MinMax() descriptor.MinMax { return a.minMax }

func presentationOf(p Presentation) (bool, *module.PresentationState) {
	if p == nil {
		return true, nil
	}
	return p.IsPixelPadding(), p.PresentationState()
}

// modalityModule returns the modality module of the frame
func (a *Adapter) modalityModule() *module.ModalityLUTModule {
	m, _ := a.desc.ModalityLUTForFrame(a.frame)
	return m
}

// RescaleSlope returns the presentation state slope, else the frame slope,
// else 1
func (a *Adapter) RescaleSlope(pr *module.PresentationState) float64 {
	if pr != nil && pr.Modality != nil {
		if v, ok := pr.Modality.RescaleSlope(); ok {
			return v
		}
	}
	if m := a.modalityModule(); m != nil {
		return m.Slope()
	}
	return 1
}

// RescaleIntercept returns the presentation state intercept, else the
// frame intercept, else 0
func (a *Adapter) RescaleIntercept(pr *module.PresentationState) float64 {
	if pr != nil && pr.Modality != nil {
		if v, ok := pr.Modality.RescaleIntercept(); ok {
			return v
		}
	}
	if m := a.modalityModule(); m != nil {
		return m.Intercept()
	}
	return 0
}

// IsPhotometricInterpretationInverse reports whether low values display
// bright. A Presentation LUT Shape, from the presentation state first,
// decides; MONOCHROME1 otherwise.
func (a *Adapter) IsPhotometricInterpretationInverse(pr *module.PresentationState) bool {
	shape := ""
	if pr != nil {
		shape = pr.Shape
	}
	if shape == "" {
		shape = strings.ToUpper(strings.TrimSpace(a.desc.PresentationLUTShape))
	}
	if shape != "" {
		return shape == module.ShapeInverse
	}
	return a.desc.Photometric == descriptor.Monochrome1
}

// ModalityLookup returns the table mapping stored values to modality
// values, nil when the mapping is the identity. A Modality LUT Sequence
// (from the presentation state first) is used when it covers the frame
// range and padding is not applied; otherwise the rescale ramp is built,
// padding filled, and shared through the cache.
func (a *Adapter) ModalityLookup(p Presentation, inverseLUTAction bool) *lut.LookupTable {
	pixelPadding, pr := presentationOf(p)
	_, hasPadding := a.desc.PixelPaddingValue()

	prLUT := pr.ModalityLUT()
	seq := prLUT
	if seq == nil {
		if m := a.modalityModule(); m != nil {
			seq = m.LUT
		}
	}
	if seq != nil {
		switch {
		case pixelPadding && hasPadding:
			slog.Warn("modality lut sequence ignored with pixel padding", slog.Int("frame", a.frame))
		case seq.Contains(int(a.minMax.Min)) && seq.Contains(int(a.minMax.Max)):
			return seq
		case prLUT == nil:
			slog.Warn("pixel values outside the modality lut sequence, lut not applied",
				slog.Int("frame", a.frame), slog.String("lut", seq.String()),
				slog.Float64("min", a.minMax.Min), slog.Float64("max", a.minMax.Max))
		}
	}

	inverse := a.IsPhotometricInterpretationInverse(pr)
	if pixelPadding {
		inverse = inverse != inverseLUTAction
	}
	params, ok := a.lutParameters(pixelPadding, inverse, pr)
	if !ok {
		return nil
	}
	if t := a.cache.Get(params); t != nil {
		return t
	}
	t := lut.RescaleRamp(params)
	if a.desc.Photometric.IsMonochrome() {
		t = lut.ApplyPixelPadding(t, params)
	}
	return a.cache.Put(params, t)
}

// LUTParameters returns the cache key of the rescale ramp, ok false when
// no table is needed
func (a *Adapter) LUTParameters(p Presentation, inverseLUTAction bool) (lut.Parameters, bool) {
	pixelPadding, pr := presentationOf(p)
	inverse := a.IsPhotometricInterpretationInverse(pr)
	if pixelPadding {
		inverse = inverse != inverseLUTAction
	}
	return a.lutParameters(pixelPadding, inverse, pr)
}

func (a *Adapter) lutParameters(pixelPadding, inversePadding bool, pr *module.PresentationState) (lut.Parameters, bool) {
	pad, hasPadding := a.desc.PixelPaddingValue()
	slope := a.RescaleSlope(pr)
	intercept := a.RescaleIntercept(pr)
	if a.bitsStored > 16 || (slope == 1 && intercept == 0 && !hasPadding) {
		return lut.Parameters{}, false
	}

	lo := a.minMax.Min*slope + intercept
	hi := a.minMax.Max*slope + intercept
	bitsOut := lut.BitsOf(int(math.Round(math.Abs(hi - lo))))
	outSigned := math.Min(lo, hi) < 0 || a.desc.IsSigned()
	if outSigned && bitsOut <= 8 {
		// room for negative values of 8 bit images
		bitsOut = 9
	}

	p := lut.Parameters{
		Intercept:      intercept,
		Slope:          slope,
		ApplyPadding:   pixelPadding,
		HasPadding:     hasPadding,
		PaddingValue:   pad,
		BitsStored:     a.bitsStored,
		Signed:         a.desc.IsSigned(),
		OutputSigned:   outSigned,
		BitsOutput:     bitsOut,
		InversePadding: inversePadding,
	}
	if limit, ok := a.desc.PixelPaddingRangeLimit(); ok {
		p.HasPaddingLimit = true
		p.PaddingLimit = limit
	}
	return p, true
}

// PixelToRealValue maps a stored value through the modality lookup. Values
// outside the table are returned unchanged.
func (a *Adapter) PixelToRealValue(v float64, p Presentation) float64 {
	t := a.ModalityLookup(p, false)
	if t == nil || !t.Contains(int(v)) {
		return v
	}
	return float64(t.Lookup(int(v)))
}

// MinValue returns the smallest modality value of the frame. Both raw
// extremes are mapped since a negative slope swaps them.
func (a *Adapter) MinValue(p Presentation) float64 {
	return math.Min(a.PixelToRealValue(a.minMax.Min, p), a.PixelToRealValue(a.minMax.Max, p))
}

// MaxValue returns the largest modality value of the frame
func (a *Adapter) MaxValue(p Presentation) float64 {
	return math.Max(a.PixelToRealValue(a.minMax.Min, p), a.PixelToRealValue(a.minMax.Max, p))
}

// FullDynamicWidth is the width covering every modality value
func (a *Adapter) FullDynamicWidth(p Presentation) float64 {
	return a.MaxValue(p) - a.MinValue(p)
}

// FullDynamicCenter is the center of the full dynamic window
func (a *Adapter) FullDynamicCenter(p Presentation) float64 {
	lo, hi := a.MinValue(p), a.MaxValue(p)
	return lo + (hi-lo)/2
}

// IsModalityLUTOutSigned reports whether modality values can be negative
func (a *Adapter) IsModalityLUTOutSigned(p Presentation) bool {
	return a.MinValue(p) < 0 || a.desc.IsSigned()
}

// MinAllocatedValue is the smallest value Bits Allocated can hold in the
// modality output signedness
func (a *Adapter) MinAllocatedValue(p Presentation) int {
	if a.IsModalityLUTOutSigned(p) {
		return -(a.maxAllocated(true) + 1)
	}
	return 0
}

// MaxAllocatedValue is the largest value Bits Allocated can hold in the
// modality output signedness
func (a *Adapter) MaxAllocatedValue(p Presentation) int {
	return a.maxAllocated(a.IsModalityLUTOutSigned(p))
}

func (a *Adapter) maxAllocated(signed bool) int {
	bits := min(a.desc.BitsAllocated, 16)
	if signed {
		return (1 << (bits - 1)) - 1
	}
	return (1 << bits) - 1
}

// VOILookup builds the 8 bit display table of a window. The table covers
// the allocated range when FillOutsideLUTRange is set or padding is
// declared on a monochrome image, the window's level range otherwise.
func (a *Adapter) VOILookup(wp *WindowParams) (*lut.LookupTable, error) {
	if wp == nil {
		return nil, nil
	}
	var lo, hi int
	_, hasPadding := a.desc.PixelPaddingValue()
	if wp.FillOutsideLUTRange || (hasPadding && a.desc.Photometric.IsMonochrome()) {
		lo, hi = a.MinAllocatedValue(wp), a.MaxAllocatedValue(wp)
	} else {
		lo, hi = int(wp.LevelMin), int(wp.LevelMax)
	}
	return lut.WindowLevel(wp.Shape, wp.Window, wp.Level, lo, hi, 8, false,
		a.IsPhotometricInterpretationInverse(wp.PresentationState()))
}

// voiModule returns the VOI module of the presentation state, else of the
// frame
func (a *Adapter) voiModule(pr *module.PresentationState) (*module.VOILUTModule, string) {
	if pr != nil && pr.VOI != nil {
		return pr.VOI, "[PR]"
	}
	m, _ := a.desc.VOILUTForFrame(a.frame)
	return m, "[Image]"
}

// DefaultWindow is the width of the first preset
func (a *Adapter) DefaultWindow(p Presentation) float64 {
	if preset, ok := a.DefaultPreset(p); ok {
		return preset.Window
	}
	return a.FullDynamicWidth(p)
}

// DefaultLevel is the center of the first preset
func (a *Adapter) DefaultLevel(p Presentation) float64 {
	if preset, ok := a.DefaultPreset(p); ok {
		return preset.Level
	}
	return a.FullDynamicCenter(p)
}

// DefaultShape is the curve of the first preset
func (a *Adapter) DefaultShape(p Presentation) lut.Shape {
	if preset, ok := a.DefaultPreset(p); ok {
		return preset.Shape
	}
	return lut.Linear
}

// DefaultPreset returns the first preset
func (a *Adapter) DefaultPreset(p Presentation) (Preset, bool) {
	presets := a.Presets(p)
	if len(presets) == 0 {
		return Preset{}, false
	}
	return presets[0], true
}

// Presets returns the window presets of the frame, built on the first
// call and reused afterwards
func (a *Adapter) Presets(p Presentation) []Preset {
	a.presetMu.Lock()
	defer a.presetMu.Unlock()
	if a.presets == nil {
		a.presets = a.buildPresets(p)
	}
	return a.presets
}
