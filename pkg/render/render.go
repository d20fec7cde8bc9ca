// Package render turns decoded frames into display images: embedded
// overlay bits are stripped, the modality and VOI tables applied, and
// overlay planes painted last.
package render

import (
	"fmt"
	"log/slog"

	"github.com/jpfielding/dcmimage.go/pkg/adapter"
	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

// WithoutEmbeddedOverlay clears the pixel bits outside Bits Stored that
// carry embedded overlays. When the stored bits sit above bit 0 the frame
// modality slope is rescaled, once per module.
func WithoutEmbeddedOverlay(img *raster.Image, desc *descriptor.Descriptor, frame int) *raster.Image {
	if len(desc.EmbeddedOverlays) == 0 || img.Type.IsFloat() {
		return img
	}
	bitsStored, bitsAllocated := desc.BitsStored, desc.BitsAllocated
	if bitsStored >= bitsAllocated || bitsAllocated < 8 || bitsAllocated > 16 {
		return img
	}
	high := desc.HighBit + 1
	mask := int32(1)<<high - 1
	if high > bitsStored {
		shift := high - bitsStored
		mask -= int32(1)<<shift - 1
		if m, _ := desc.ModalityLUTForFrame(frame); m != nil && m.AdaptWithOverlayBitMask(shift) {
			slog.Debug("modality slope adapted to the overlay mask", slog.Int("frame", frame), slog.Int("shift", shift))
		}
	}
	return raster.BitwiseAnd(img, mask)
}

// ModalityLUTImage applies the modality table to 8 and 16 bit integer
// frames. Wider and floating point frames are returned unchanged.
func ModalityLUTImage(img *raster.Image, a *adapter.Adapter, p *ReadParam) (*raster.Image, error) {
	if !hasModalityTable(img.Type) {
		return img, nil
	}
	wp := adapter.NewWindowParams(a, p.windowOptions()...)
	t := a.ModalityLookup(wp, wp.InverseLUT)
	if t == nil {
		return img, nil
	}
	out, err := t.Apply(img)
	if err != nil {
		return nil, fmt.Errorf("modality lut: %w", err)
	}
	return out, nil
}

// RawRenderedImage returns the modality values of a frame
func RawRenderedImage(img *raster.Image, desc *descriptor.Descriptor, p *ReadParam, frame int, opts ...adapter.Option) (*raster.Image, error) {
	stripped := WithoutEmbeddedOverlay(img, desc, frame)
	a := adapter.New(stripped, desc, frame, opts...)
	return ModalityLUTImage(stripped, a, p)
}

// VOILUTImage maps a frame to 8 bit display values. Integer frames go
// through the modality, VOI and presentation tables; wider and floating
// point frames are rescaled linearly over the window.
func VOILUTImage(img *raster.Image, a *adapter.Adapter, p *ReadParam) (*raster.Image, error) {
	wp := adapter.NewWindowParams(a, p.windowOptions()...)
	if hasModalityTable(img.Type) {
		return byteOrShortImage(img, a, wp)
	}
	return linearImage(img, wp), nil
}

func hasModalityTable(t raster.ElemType) bool {
	switch t {
	case raster.Unsigned8, raster.Signed8, raster.Unsigned16, raster.Signed16:
		return true
	}
	return false
}

func byteOrShortImage(img *raster.Image, a *adapter.Adapter, wp *adapter.WindowParams) (*raster.Image, error) {
	desc := a.Descriptor()
	transformed := img
	if t := a.ModalityLookup(wp, wp.InverseLUT); t != nil {
		var err error
		if transformed, err = t.Apply(img); err != nil {
			return nil, fmt.Errorf("modality lut: %w", err)
		}
	}

	// window values have no meaning for color images; palette color
	// must never be windowed
	defaultWindow := wp.Window == 255 && wp.Level == 127.5
	if (!wp.AllowWinLevelOnColor || defaultWindow) && !desc.Photometric.IsMonochrome() {
		return transformed, nil
	}

	var prLUT *lut.LookupTable
	if wp.State != nil {
		prLUT = wp.State.LUT
	}
	voi := transformed
	if prLUT == nil || wp.Shape.Table != nil {
		t, err := a.VOILookup(wp)
		if err != nil {
			return nil, fmt.Errorf("voi lut: %w", err)
		}
		if voi, err = t.Apply(transformed); err != nil {
			return nil, fmt.Errorf("voi lut: %w", err)
		}
	}
	if prLUT == nil {
		return voi, nil
	}
	out, err := prLUT.Apply(voi)
	if err != nil {
		return nil, fmt.Errorf("presentation lut: %w", err)
	}
	return out, nil
}

// linearImage rescales the window [level-window/2, level+window/2] to
// 0..255
func linearImage(img *raster.Image, wp *adapter.WindowParams) *raster.Image {
	low := wp.Level - wp.Window/2
	high := wp.Level + wp.Window/2
	width := high - low
	if width < 1 && img.Type == raster.Signed32 {
		width = 1
	}
	slope := 255 / width
	return raster.ConvertScaleToU8(img, slope, 255-slope*high)
}

// DefaultRenderedImage strips embedded overlays, applies the display
// tables and paints the overlays of the frame
func DefaultRenderedImage(img *raster.Image, desc *descriptor.Descriptor, p *ReadParam, frame int, opts ...adapter.Option) (*raster.Image, error) {
	stripped := WithoutEmbeddedOverlay(img, desc, frame)
	a := adapter.New(stripped, desc, frame, opts...)
	rendered, err := VOILUTImage(stripped, a, p)
	if err != nil {
		return nil, err
	}
	return OverlayImage(img, rendered, desc, p, frame), nil
}
