package adapter

import (
	"fmt"
	"math"

	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"github.com/jpfielding/dcmimage.go/pkg/module"
)

// WindowParams are the resolved display settings of one render. Values
// not requested explicitly come from the adapter's default preset.
type WindowParams struct {
	Window   float64
	Level    float64
	LevelMin float64
	LevelMax float64
	Shape    lut.Shape

	PixelPadding         bool
	InverseLUT           bool
	FillOutsideLUTRange  bool
	AllowWinLevelOnColor bool

	State *module.PresentationState
}

func (wp *WindowParams) IsPixelPadding() bool { return wp.PixelPadding }

func (wp *WindowParams) PresentationState() *module.PresentationState { return wp.State }

func (wp *WindowParams) String() string {
	return fmt.Sprintf("W=%g L=%g range=[%g,%g] shape=%s", wp.Window, wp.Level, wp.LevelMin, wp.LevelMax, wp.Shape)
}

// request holds the explicitly requested settings
type request struct {
	window, level, levelMin, levelMax *float64
	shape                             *lut.Shape
	pixelPadding                      bool
	inverseLUT                        bool
	fillOutside                       bool
	allowColor                        bool
	state                             *module.PresentationState
}

// WindowOption requests a display setting
type WindowOption func(*request)

// WithWindow requests a window width
func WithWindow(w float64) WindowOption {
	return func(r *request) { r.window = &w }
}

// WithLevel requests a window center
func WithLevel(l float64) WindowOption {
	return func(r *request) { r.level = &l }
}

// WithLevelRange requests the input range of the VOI table
func WithLevelRange(lo, hi float64) WindowOption {
	return func(r *request) {
		r.levelMin = &lo
		r.levelMax = &hi
	}
}

// WithShape requests a VOI curve
func WithShape(s lut.Shape) WindowOption {
	return func(r *request) { r.shape = &s }
}

// WithPixelPadding enables or disables pixel padding, enabled by default
func WithPixelPadding(on bool) WindowOption {
	return func(r *request) { r.pixelPadding = on }
}

// WithInverseLUT inverts the display
func WithInverseLUT(on bool) WindowOption {
	return func(r *request) { r.inverseLUT = on }
}

// WithFillOutsideLUTRange builds VOI tables over the allocated range
func WithFillOutsideLUTRange(on bool) WindowOption {
	return func(r *request) { r.fillOutside = on }
}

// WithWinLevelOnColor applies the window to color images
func WithWinLevelOnColor(on bool) WindowOption {
	return func(r *request) { r.allowColor = on }
}

// WithPresentationState applies the LUT modules of a presentation state
func WithPresentationState(ps *module.PresentationState) WindowOption {
	return func(r *request) { r.state = ps }
}

// NewWindowParams resolves the display settings of a frame. The level
// range spans the window and the full modality range.
func NewWindowParams(a *Adapter, opts ...WindowOption) *WindowParams {
	r := request{pixelPadding: true}
	for _, opt := range opts {
		opt(&r)
	}
	def := DefaultPresentation{PixelPadding: r.pixelPadding, State: r.state}

	wp := &WindowParams{
		PixelPadding:         r.pixelPadding,
		InverseLUT:           r.inverseLUT,
		FillOutsideLUTRange:  r.fillOutside,
		AllowWinLevelOnColor: r.allowColor,
		State:                r.state,
	}
	if r.window != nil {
		wp.Window = *r.window
	} else {
		wp.Window = a.DefaultWindow(def)
	}
	if r.level != nil {
		wp.Level = *r.level
	} else {
		wp.Level = a.DefaultLevel(def)
	}
	if r.shape != nil {
		wp.Shape = *r.shape
	} else {
		wp.Shape = a.DefaultShape(def)
	}
	if r.levelMin != nil {
		wp.LevelMin = *r.levelMin
	} else {
		wp.LevelMin = math.Min(wp.Level-wp.Window/2, a.MinValue(def))
	}
	if r.levelMax != nil {
		wp.LevelMax = *r.levelMax
	} else {
		wp.LevelMax = math.Max(wp.Level+wp.Window/2, a.MaxValue(def))
	}
	return wp
}
