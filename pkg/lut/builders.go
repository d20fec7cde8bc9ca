package lut

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

// RescaleRamp builds the modality table value*slope+intercept over the
// full input range of the stored bits, saturated to the 8 or 16 bit output
// range holding BitsOutput
func RescaleRamp(p Parameters) *LookupTable {
	bitsStored := max(1, min(p.BitsStored, 16))
	bitsOut := 8
	if p.BitsOutput > 8 {
		bitsOut = 16
	}
	minIn, maxIn := outputRange(bitsStored, p.Signed)
	minOut, maxOut := outputRange(bitsOut, p.OutputSigned)

	data := make([]int32, maxIn-minIn+1)
	for i := range data {
		v := int(math.Round(float64(i+minIn)*p.Slope + p.Intercept))
		data[i] = int32(clamp(v, minOut, maxOut))
	}
	return New(minIn, tableType(bitsOut, p.OutputSigned), data)
}

// ApplyPixelPadding returns a copy of t whose padding range entries map to
// the darkest (or brightest when InversePadding) output. t is returned
// unchanged when padding does not apply.
func ApplyPixelPadding(t *LookupTable, p Parameters) *LookupTable {
	lo, hi, ok := p.PaddingRange()
	if t == nil || !p.ApplyPadding || !ok || p.BitsStored > 16 {
		return t
	}
	count := hi - lo + 1
	start := lo - t.Offset
	if start >= t.NumEntries() {
		return t
	}
	if start < 0 {
		count += start
		if count < 1 {
			return t
		}
		start = 0
	}
	end := min(start+count, t.NumEntries())

	out := t.Clone()
	var fill int32
	switch out.Type {
	case raster.Unsigned8, raster.Signed8:
		if p.InversePadding {
			fill = 255
		}
	default:
		fill = out.Data[0]
		if p.InversePadding {
			fill = out.Data[len(out.Data)-1]
		}
	}
	for i := start; i < end; i++ {
		out.Data[i] = fill
	}
	return out
}

// FromDescriptor builds a table from a LUT Descriptor (entries, first
// mapped value, bits per entry) and little endian LUT Data. A descriptor
// entry count of 0 means 65536. signed selects how the first mapped value
// is read.
func FromDescriptor(desc []int, data []byte, signed bool) (*LookupTable, error) {
	if len(desc) != 3 {
		return nil, fmt.Errorf("lut descriptor needs 3 values, got %d", len(desc))
	}
	entries := desc[0]
	if entries <= 0 {
		entries += 0x10000
	}
	offset := desc[1]
	if signed {
		offset = int(int16(uint16(offset)))
	}
	bits := desc[2]

	out := make([]int32, entries)
	switch {
	case bits <= 8 && len(data) >= entries*2:
		// 8 bit entries stored in 16 bit words
		for i := range out {
			out[i] = int32(data[i*2])
		}
		return New(offset, raster.Unsigned8, out), nil
	case bits <= 8 && len(data) >= entries:
		for i := range out {
			out[i] = int32(data[i])
		}
		return New(offset, raster.Unsigned8, out), nil
	case bits <= 16 && len(data) >= entries*2:
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint16(data[i*2:]))
		}
		return New(offset, raster.Unsigned16, out), nil
	}
	return nil, fmt.Errorf("lut data of %d bytes does not hold %d entries of %d bits", len(data), entries, bits)
}

// BitsOf returns the bit length of v
func BitsOf(v int) int {
	if v < 0 {
		v = -v
	}
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}
