package render

import (
	"image/color"
	"slices"

	"github.com/jpfielding/dcmimage.go/pkg/descriptor"
	"github.com/jpfielding/dcmimage.go/pkg/module"
	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

// OverlayImage paints the overlay planes of a frame over a rendered image.
// Embedded overlay bits are read from src, the frame before stripping.
// Gray paint keeps a single channel image; any other color converts the
// result to RGB.
func OverlayImage(src, rendered *raster.Image, desc *descriptor.Descriptor, p *ReadParam, frame int) *raster.Image {
	var planes []module.OverlayData
	if p != nil && p.PresentationState != nil {
		planes = append(planes, p.PresentationState.Overlays...)
	}
	planes = append(planes, desc.Overlays...)
	if len(desc.EmbeddedOverlays) == 0 && len(planes) == 0 {
		return rendered
	}
	if src.Width != rendered.Width || src.Height != rendered.Height {
		return rendered
	}

	width, height := src.Width, src.Height
	mask := make([]bool, width*height)
	if !src.Type.IsFloat() {
		for _, o := range desc.EmbeddedOverlays {
			bit := int32(1) << o.BitPosition
			for i := range mask {
				if src.Ints[i*src.Channels]&bit != 0 {
					mask[i] = true
				}
			}
		}
	}
	for _, o := range planes {
		if !o.CoversFrame(frame) {
			continue
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if o.IsSet(frame, y-(o.Origin[0]-1), x-(o.Origin[1]-1)) {
					mask[y*width+x] = true
				}
			}
		}
	}
	if !slices.Contains(mask, true) {
		return rendered
	}
	return paint(rendered, mask, p.overlayColor())
}

func paint(img *raster.Image, mask []bool, c color.RGBA) *raster.Image {
	gray := c.R == c.G && c.G == c.B
	var out *raster.Image
	if img.Channels == 1 && gray {
		out = img.Clone()
	} else {
		out = raster.ToRGB(img)
		if out == img {
			out = img.Clone()
		}
	}
	values := [3]float64{float64(c.R), float64(c.G), float64(c.B)}
	if out.Type == raster.Unsigned16 {
		for i := range values {
			values[i] *= 257
		}
	}
	for i, set := range mask {
		if !set {
			continue
		}
		for ch := 0; ch < min(out.Channels, 3); ch++ {
			out.SetSample(i*out.Channels+ch, values[ch])
		}
	}
	return out
}
