package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MinMax returns the smallest and largest sample over all channels
func MinMax(img *Image) (float64, float64) {
	if img.Len() == 0 {
		return 0, 0
	}
	if img.Type.IsFloat() {
		return floats.Min(img.Floats), floats.Max(img.Floats)
	}
	lo, hi := img.Ints[0], img.Ints[0]
	for _, v := range img.Ints[1:] {
		if v < lo {
			lo = v
		} else if v > hi {
			hi = v
		}
	}
	return float64(lo), float64(hi)
}

// MinMaxExcluding returns the extrema of the samples outside the closed
// range [lo, hi]. ok is false when every sample is excluded.
func MinMaxExcluding(img *Image, lo, hi float64) (minV, maxV float64, ok bool) {
	minV, maxV = math.Inf(1), math.Inf(-1)
	for i := 0; i < img.Len(); i++ {
		v := img.Sample(i)
		if v >= lo && v <= hi {
			continue
		}
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return minV, maxV, true
}

// BitwiseAnd returns a copy of an integer image with every sample ANDed
// with mask
func BitwiseAnd(img *Image, mask int32) *Image {
	out := img.Clone()
	if img.Type.IsFloat() {
		return out
	}
	for i, v := range out.Ints {
		out.Ints[i] = v & mask
	}
	return out
}

// ConvertScaleToU8 maps every sample through v*slope+intercept and
// saturates the result to 0..255
func ConvertScaleToU8(img *Image, slope, intercept float64) *Image {
	out := New(img.Width, img.Height, img.Channels, Unsigned8)
	for i := 0; i < img.Len(); i++ {
		out.Ints[i] = int32(Unsigned8.Saturate(img.Sample(i)*slope + intercept))
	}
	return out
}

// Stats returns the mean and population standard deviation of the samples
func Stats(img *Image) (mean, std float64) {
	if img.Len() == 0 {
		return 0, 0
	}
	values := img.Floats
	if !img.Type.IsFloat() {
		values = make([]float64, img.Len())
		for i, v := range img.Ints {
			values[i] = float64(v)
		}
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	return mean, math.Sqrt(variance)
}

// YBRToRGB converts full range YCbCr samples to RGB (PS3.3 C.7.6.3.1.2)
func YBRToRGB(img *Image) (*Image, error) {
	if img.Channels != 3 || img.Type.IsFloat() {
		return nil, fmt.Errorf("YCbCr conversion needs 3 integer channels, got %s", img)
	}
	_, hi := img.Type.Range()
	half := (hi + 1) / 2
	out := New(img.Width, img.Height, 3, img.Type)
	for i := 0; i+2 < img.Len(); i += 3 {
		y, cb, cr := img.Sample(i), img.Sample(i+1)-half, img.Sample(i+2)-half
		out.SetSample(i, y+1.402*cr)
		out.SetSample(i+1, y-0.344136*cb-0.714136*cr)
		out.SetSample(i+2, y+1.772*cb)
	}
	return out, nil
}
