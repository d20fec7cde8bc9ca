package render

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/jpfielding/dcmimage.go/pkg/adapter"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"github.com/jpfielding/dcmimage.go/pkg/module"
)

// ErrUnsupportedOperation is returned by read settings DICOM decoding
// cannot honor
var ErrUnsupportedOperation = errors.New("unsupported read parameter")

// ReadParam holds the optional display settings of a render. Unset values
// fall back to the defaults of the frame.
type ReadParam struct {
	window   *float64
	level    *float64
	levelMin *float64
	levelMax *float64
	shape    *lut.Shape
	padding  *bool

	InverseLUT           bool
	FillOutsideLUTRange  bool
	AllowWinLevelOnColor bool
	// KeepRGBForLossyJPEG trusts an RGB declaration on lossy JPEG streams
	KeepRGBForLossyJPEG bool

	PresentationState *module.PresentationState
	// OverlayColor paints overlay pixels, white when nil
	OverlayColor color.Color
}

// NewReadParam returns settings that use every default
func NewReadParam() *ReadParam {
	return &ReadParam{}
}

// SetWindowLevel sets the window width and center
func (p *ReadParam) SetWindowLevel(window, level float64) *ReadParam {
	p.window, p.level = &window, &level
	return p
}

// SetLevelRange sets the input range of the VOI table
func (p *ReadParam) SetLevelRange(lo, hi float64) *ReadParam {
	p.levelMin, p.levelMax = &lo, &hi
	return p
}

// SetShape sets the VOI curve
func (p *ReadParam) SetShape(s lut.Shape) *ReadParam {
	p.shape = &s
	return p
}

// SetPixelPadding enables or disables pixel padding
func (p *ReadParam) SetPixelPadding(on bool) *ReadParam {
	p.padding = &on
	return p
}

// WindowLevel returns the requested width and center
func (p *ReadParam) WindowLevel() (window, level float64, ok bool) {
	if p == nil || p.window == nil || p.level == nil {
		return 0, 0, false
	}
	return *p.window, *p.level, true
}

// Shape returns the requested VOI curve
func (p *ReadParam) Shape() (lut.Shape, bool) {
	if p == nil || p.shape == nil {
		return lut.Shape{}, false
	}
	return *p.shape, true
}

// PixelPadding reports whether padding applies, true unless disabled
func (p *ReadParam) PixelPadding() bool {
	return p == nil || p.padding == nil || *p.padding
}

// SetSourceSubsampling is not supported
func (p *ReadParam) SetSourceSubsampling(xPeriod, yPeriod, xOffset, yOffset int) error {
	return fmt.Errorf("source subsampling: %w", ErrUnsupportedOperation)
}

// SetDestinationType is not supported
func (p *ReadParam) SetDestinationType(t any) error {
	return fmt.Errorf("destination type: %w", ErrUnsupportedOperation)
}

// SetSourceBands is not supported
func (p *ReadParam) SetSourceBands(bands []int) error {
	return fmt.Errorf("source bands: %w", ErrUnsupportedOperation)
}

// SetDestinationBands is not supported
func (p *ReadParam) SetDestinationBands(bands []int) error {
	return fmt.Errorf("destination bands: %w", ErrUnsupportedOperation)
}

// windowOptions translates the settings for adapter.NewWindowParams
func (p *ReadParam) windowOptions() []adapter.WindowOption {
	if p == nil {
		return nil
	}
	opts := []adapter.WindowOption{
		adapter.WithPixelPadding(p.PixelPadding()),
		adapter.WithInverseLUT(p.InverseLUT),
		adapter.WithFillOutsideLUTRange(p.FillOutsideLUTRange),
		adapter.WithWinLevelOnColor(p.AllowWinLevelOnColor),
		adapter.WithPresentationState(p.PresentationState),
	}
	if p.window != nil {
		opts = append(opts, adapter.WithWindow(*p.window))
	}
	if p.level != nil {
		opts = append(opts, adapter.WithLevel(*p.level))
	}
	if p.levelMin != nil && p.levelMax != nil {
		opts = append(opts, adapter.WithLevelRange(*p.levelMin, *p.levelMax))
	}
	if p.shape != nil {
		opts = append(opts, adapter.WithShape(*p.shape))
	}
	return opts
}

// overlayColor returns the overlay paint, white by default
func (p *ReadParam) overlayColor() color.RGBA {
	if p == nil || p.OverlayColor == nil {
		return color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	}
	return color.RGBAModel.Convert(p.OverlayColor).(color.RGBA)
}
