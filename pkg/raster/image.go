// Package raster holds decoded pixel samples and the whole-image operations
// the rendering pipeline needs.
package raster

import (
	"fmt"
	"image"
	"image/color"
)

// Image is an interleaved sample buffer. Integer types keep their samples
// in Ints, floating point types in Floats.
type Image struct {
	Width    int
	Height   int
	Channels int
	Type     ElemType
	Ints     []int32
	Floats   []float64
}

// New allocates a zeroed image
func New(width, height, channels int, t ElemType) *Image {
	img := &Image{Width: width, Height: height, Channels: channels, Type: t}
	n := width * height * channels
	if t.IsFloat() {
		img.Floats = make([]float64, n)
	} else {
		img.Ints = make([]int32, n)
	}
	return img
}

// Len returns the number of samples
func (img *Image) Len() int {
	return img.Width * img.Height * img.Channels
}

// Sample returns sample i of the interleaved buffer
func (img *Image) Sample(i int) float64 {
	if img.Type.IsFloat() {
		return img.Floats[i]
	}
	return float64(img.Ints[i])
}

// SetSample stores v at sample i, saturated to the element type
func (img *Image) SetSample(i int, v float64) {
	v = img.Type.Saturate(v)
	if img.Type.IsFloat() {
		img.Floats[i] = v
		return
	}
	img.Ints[i] = int32(v)
}

// At returns channel c of the pixel at (x, y)
func (img *Image) At(x, y, c int) float64 {
	return img.Sample((y*img.Width+x)*img.Channels + c)
}

// Set stores channel c of the pixel at (x, y)
func (img *Image) Set(x, y, c int, v float64) {
	img.SetSample((y*img.Width+x)*img.Channels+c, v)
}

// Clone returns a deep copy
func (img *Image) Clone() *Image {
	out := *img
	if img.Ints != nil {
		out.Ints = append([]int32(nil), img.Ints...)
	}
	if img.Floats != nil {
		out.Floats = append([]float64(nil), img.Floats...)
	}
	return &out
}

// IsMonochrome reports a single channel image
func (img *Image) IsMonochrome() bool {
	return img.Channels == 1
}

func (img *Image) String() string {
	return fmt.Sprintf("%dx%dx%d %s", img.Width, img.Height, img.Channels, img.Type)
}

// ToRGB expands a single channel image to three channels
func ToRGB(img *Image) *Image {
	if img.Channels != 1 {
		return img
	}
	out := New(img.Width, img.Height, 3, img.Type)
	for i := 0; i < img.Len(); i++ {
		for c := 0; c < 3; c++ {
			if img.Type.IsFloat() {
				out.Floats[i*3+c] = img.Floats[i]
			} else {
				out.Ints[i*3+c] = img.Ints[i]
			}
		}
	}
	return out
}

// ToGoImage converts an 8 or 16 bit image to the image package types: 1
// channel becomes Gray or Gray16, 3 or 4 channels become RGBA.
func ToGoImage(img *Image) (image.Image, error) {
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch {
	case img.Channels == 1 && img.Type == Unsigned8:
		out := image.NewGray(rect)
		for i, v := range img.Ints {
			out.Pix[i] = uint8(v)
		}
		return out, nil
	case img.Channels == 1 && img.Type == Unsigned16:
		out := image.NewGray16(rect)
		for i, v := range img.Ints {
			out.Pix[i*2] = uint8(v >> 8)
			out.Pix[i*2+1] = uint8(v)
		}
		return out, nil
	case (img.Channels == 3 || img.Channels == 4) && img.Type == Unsigned8:
		out := image.NewRGBA(rect)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				i := (y*img.Width + x) * img.Channels
				a := uint8(0xFF)
				if img.Channels == 4 {
					a = uint8(img.Ints[i+3])
				}
				out.SetRGBA(x, y, color.RGBA{uint8(img.Ints[i]), uint8(img.Ints[i+1]), uint8(img.Ints[i+2]), a})
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("no image mapping for %v", img)
}

// FromGoImage converts a gray or color image to an 8 bit raster
func FromGoImage(src image.Image) *Image {
	b := src.Bounds()
	if g, ok := src.(*image.Gray); ok {
		out := New(b.Dx(), b.Dy(), 1, Unsigned8)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				out.Ints[y*b.Dx()+x] = int32(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return out
	}
	out := New(b.Dx(), b.Dy(), 3, Unsigned8)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*b.Dx() + x) * 3
			out.Ints[i], out.Ints[i+1], out.Ints[i+2] = int32(r>>8), int32(g>>8), int32(bl>>8)
		}
	}
	return out
}
