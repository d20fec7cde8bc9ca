// Package lut builds and caches the lookup tables of the pixel value
// transformation pipeline (modality, VOI and presentation LUTs).
package lut

import (
	"fmt"

	"github.com/jpfielding/dcmimage.go/pkg/raster"
)

// LookupTable maps input values starting at Offset to Data entries of the
// table element type
type LookupTable struct {
	Offset int
	Type   raster.ElemType
	Data   []int32
}

// New creates a table
func New(offset int, t raster.ElemType, data []int32) *LookupTable {
	return &LookupTable{Offset: offset, Type: t, Data: data}
}

// NumEntries returns the table size
func (l *LookupTable) NumEntries() int {
	return len(l.Data)
}

// Lookup maps v, clamping to the first and last entry outside the table
func (l *LookupTable) Lookup(v int) int32 {
	i := v - l.Offset
	if i < 0 {
		i = 0
	} else if i >= len(l.Data) {
		i = len(l.Data) - 1
	}
	return l.Data[i]
}

// Contains reports whether v falls inside the table domain
func (l *LookupTable) Contains(v int) bool {
	return v >= l.Offset && v < l.Offset+len(l.Data)
}

// MinMax returns the smallest and largest entry
func (l *LookupTable) MinMax() (int32, int32) {
	if len(l.Data) == 0 {
		return 0, 0
	}
	lo, hi := l.Data[0], l.Data[0]
	for _, v := range l.Data[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// Clone returns a copy with its own data
func (l *LookupTable) Clone() *LookupTable {
	return &LookupTable{Offset: l.Offset, Type: l.Type, Data: append([]int32(nil), l.Data...)}
}

// Apply maps every sample of an integer image. The result has the table
// element type.
func (l *LookupTable) Apply(img *raster.Image) (*raster.Image, error) {
	if img.Type.IsFloat() {
		return nil, fmt.Errorf("lookup table cannot be applied to %s samples", img.Type)
	}
	if len(l.Data) == 0 {
		return nil, fmt.Errorf("empty lookup table")
	}
	out := raster.New(img.Width, img.Height, img.Channels, l.Type)
	for i, v := range img.Ints {
		out.Ints[i] = l.Lookup(int(v))
	}
	return out, nil
}

func (l *LookupTable) String() string {
	return fmt.Sprintf("lut[%s offset=%d entries=%d]", l.Type, l.Offset, len(l.Data))
}

// outputRange returns the signed or unsigned range of bits
func outputRange(bits int, signed bool) (int, int) {
	if signed {
		maxV := (1 << (bits - 1)) - 1
		return -(maxV + 1), maxV
	}
	return 0, (1 << bits) - 1
}

// tableType is the element type of a table with bits output
func tableType(bits int, signed bool) raster.ElemType {
	switch {
	case bits <= 8 && signed:
		return raster.Signed8
	case bits <= 8:
		return raster.Unsigned8
	case signed:
		return raster.Signed16
	}
	return raster.Unsigned16
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
