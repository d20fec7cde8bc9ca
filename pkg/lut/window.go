package lut

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Function is the VOI LUT Function curve
type Function int

const (
	// FunctionSequence uses an explicit table instead of a curve
	FunctionSequence Function = iota
	FunctionLinear
	FunctionLinearExact
	FunctionSigmoid
	FunctionSigmoidNorm
	FunctionLog
	FunctionLogInv
)

var functionNames = map[Function]string{
	FunctionSequence:    "SEQUENCE",
	FunctionLinear:      "LINEAR",
	FunctionLinearExact: "LINEAR_EXACT",
	FunctionSigmoid:     "SIGMOID",
	FunctionSigmoidNorm: "SIGMOID_NORM",
	FunctionLog:         "LOG",
	FunctionLogInv:      "LOG_INV",
}

func (f Function) String() string {
	return functionNames[f]
}

// Shape is a VOI curve, or an explicit table when Function is
// FunctionSequence
type Shape struct {
	Function    Function
	Explanation string
	Table       *LookupTable
}

// Standard shapes
var (
	Linear      = Shape{Function: FunctionLinear, Explanation: "Linear"}
	LinearExact = Shape{Function: FunctionLinearExact, Explanation: "Linear Exact"}
	Sigmoid     = Shape{Function: FunctionSigmoid, Explanation: "Sigmoid"}
	SigmoidNorm = Shape{Function: FunctionSigmoidNorm, Explanation: "Sigmoid Normalize"}
	Log         = Shape{Function: FunctionLog, Explanation: "Logarithmic"}
	LogInv      = Shape{Function: FunctionLogInv, Explanation: "Logarithmic Inverse"}
)

// Shapes lists the curve shapes
var Shapes = []Shape{Linear, LinearExact, Sigmoid, SigmoidNorm, Log, LogInv}

// SequenceShape wraps an explicit VOI LUT
func SequenceShape(t *LookupTable, explanation string) Shape {
	return Shape{Function: FunctionSequence, Explanation: explanation, Table: t}
}

func (s Shape) String() string {
	if s.Explanation != "" {
		return s.Explanation
	}
	return s.Function.String()
}

// ShapeByName resolves a VOI LUT Function value (or a shape name) to a
// curve shape. Unknown names are false.
func ShapeByName(name string) (Shape, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, s := range Shapes {
		if s.Function.String() == name {
			return s, true
		}
	}
	return Shape{}, false
}

// WindowLevel builds a VOI table over [minIn, maxIn] for a window and
// level. bitsOut (capped at 16) and signed decide the output range.
func WindowLevel(shape Shape, window, level float64, minIn, maxIn, bitsOut int, signed, inverse bool) (*LookupTable, error) {
	bitsOut = min(bitsOut, 16)
	window = math.Max(window, 1)
	outBits := 8
	if bitsOut > 8 {
		outBits = 16
	}
	minOut, maxOut := outputRange(outBits, signed)
	lo, hi := min(minIn, maxIn), max(minIn, maxIn)
	n := hi - lo + 1

	var values []float64
	switch shape.Function {
	case FunctionLinear:
		values = linearValues(window, level, lo, n, minOut, maxOut)
	case FunctionLinearExact:
		values = linearExactValues(window, level, lo, n, minOut, maxOut)
	case FunctionSigmoid, FunctionSigmoidNorm:
		values = sigmoidValues(window, level, lo, n, minOut, maxOut, shape.Function == FunctionSigmoidNorm)
	case FunctionLog, FunctionLogInv:
		values = logValues(window, level, lo, n, minOut, maxOut, shape.Function == FunctionLogInv)
	case FunctionSequence:
		if shape.Table == nil || shape.Table.NumEntries() == 0 {
			return nil, fmt.Errorf("sequence shape %q without table", shape.Explanation)
		}
		values = sequenceValues(shape.Table, window, level, lo, n, minOut, maxOut)
	default:
		return nil, fmt.Errorf("unknown lut function %d", shape.Function)
	}

	data := make([]int32, n)
	for i, v := range values {
		out := clamp(int(math.Round(v)), minOut, maxOut)
		if inverse {
			out = maxOut + minOut - out
		}
		data[i] = int32(out)
	}
	return New(lo, tableType(outBits, signed), data), nil
}

func linearValues(window, level float64, lo, n, minOut, maxOut int) []float64 {
	slope := float64(maxOut-minOut) / window
	intercept := float64(maxOut) - slope*(level+window/2)
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i+lo)*slope + intercept
	}
	return values
}

// linearExactValues follows the exact linear function of PS3.3 C.11.2.1.3.2
func linearExactValues(window, level float64, lo, n, minOut, maxOut int) []float64 {
	outRange := float64(maxOut - minOut)
	values := make([]float64, n)
	for i := range values {
		x := float64(i + lo)
		switch {
		case x <= level-window/2:
			values[i] = float64(minOut)
		case x > level+window/2:
			values[i] = float64(maxOut)
		default:
			values[i] = ((x-level)/window+0.5)*outRange + float64(minOut)
		}
	}
	return values
}

func sigmoidValues(window, level float64, lo, n, minOut, maxOut int, normalize bool) []float64 {
	const factor = -4.0
	outRange := float64(maxOut - minOut)
	curve := func(x float64) float64 {
		return outRange / (1 + math.Exp(factor*(x-level)/window))
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = curve(float64(i+lo)) + float64(minOut)
	}
	if normalize {
		// stretch the curve so the window edges reach the output extremes
		low, high := curve(level-window/2), curve(level+window/2)
		ratio := outRange / math.Abs(high-low)
		for i := range values {
			values[i] = (values[i]-float64(minOut)-low)*ratio + float64(minOut)
		}
	}
	return values
}

func logValues(window, level float64, lo, n, minOut, maxOut int, inverse bool) []float64 {
	const factor = 20.0
	low := level - window/2
	values := make([]float64, n)
	for i := range values {
		t := (float64(i+lo) - low) / window
		t = math.Max(0, math.Min(1, t))
		if inverse {
			values[i] = math.Expm1(t*math.Log1p(factor)) / factor
		} else {
			values[i] = math.Log1p(factor*t) / math.Log1p(factor)
		}
	}
	floats.Scale(float64(maxOut-minOut), values)
	floats.AddConst(float64(minOut), values)
	return values
}

func sequenceValues(t *LookupTable, window, level float64, lo, n, minOut, maxOut int) []float64 {
	lutMin, lutMax := t.MinMax()
	lutRange := math.Max(float64(lutMax-lutMin), 1)
	entries := t.NumEntries()
	widthRatio := float64(entries) / window
	outRatio := float64(maxOut-minOut) / lutRange
	low, high := level-window/2, level+window/2

	values := make([]float64, n)
	for i := range values {
		x := float64(i + lo)
		var idx int
		switch {
		case x <= low:
			idx = 0
		case x > high:
			idx = entries - 1
		default:
			idx = clamp(int(math.Round((x-low)*widthRatio)), 0, entries-1)
		}
		values[i] = float64(t.Data[idx]-lutMin)*outRatio + float64(minOut)
	}
	return values
}
