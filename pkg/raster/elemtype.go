package raster

import (
	"fmt"
	"math"
)

// ElemType is the sample type of a decoded image buffer. It is decided once
// when pixel bytes are decoded and then matched exhaustively downstream.
type ElemType int

const (
	Unsigned8 ElemType = iota
	Signed8
	Unsigned16
	Signed16
	Signed32
	Float32
	Float64
)

var elemNames = [...]string{"U8", "S8", "U16", "S16", "S32", "F32", "F64"}

func (t ElemType) String() string {
	if t < 0 || int(t) >= len(elemNames) {
		return fmt.Sprintf("ElemType(%d)", int(t))
	}
	return elemNames[t]
}

// Bits returns the sample width in bits
func (t ElemType) Bits() int {
	switch t {
	case Unsigned8, Signed8:
		return 8
	case Unsigned16, Signed16:
		return 16
	case Signed32, Float32:
		return 32
	case Float64:
		return 64
	}
	return 0
}

// Size returns the sample width in bytes
func (t ElemType) Size() int {
	return t.Bits() / 8
}

func (t ElemType) IsFloat() bool {
	return t == Float32 || t == Float64
}

func (t ElemType) IsSigned() bool {
	return t == Signed8 || t == Signed16 || t == Signed32 || t.IsFloat()
}

func (t ElemType) IsInteger() bool {
	return !t.IsFloat()
}

// Range returns the representable sample range
func (t ElemType) Range() (float64, float64) {
	switch t {
	case Unsigned8:
		return 0, math.MaxUint8
	case Signed8:
		return math.MinInt8, math.MaxInt8
	case Unsigned16:
		return 0, math.MaxUint16
	case Signed16:
		return math.MinInt16, math.MaxInt16
	case Signed32:
		return math.MinInt32, math.MaxInt32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	}
	return math.Inf(-1), math.Inf(1)
}

// Saturate rounds integer types to the nearest value and clamps to the range
func (t ElemType) Saturate(v float64) float64 {
	if t.IsInteger() {
		v = math.Round(v)
	}
	lo, hi := t.Range()
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ElemTypeFor maps DICOM pixel encoding to a sample type. Unsigned 32 bit
// data is held as Signed32.
func ElemTypeFor(bitsAllocated int, signed, float bool) ElemType {
	switch {
	case float && bitsAllocated == 64:
		return Float64
	case float:
		return Float32
	case bitsAllocated <= 8:
		if signed {
			return Signed8
		}
		return Unsigned8
	case bitsAllocated <= 16:
		if signed {
			return Signed16
		}
		return Unsigned16
	}
	return Signed32
}
