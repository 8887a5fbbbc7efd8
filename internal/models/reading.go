// Package models defines the measurement data structures shared by sources,
// buffers, the reporting loop and the sinks.
package models

import (
	"fmt"
	"strings"
	"time"
)

// MaxArity is the largest tuple a single Reading can carry.
const MaxArity = 4

// Shape is the arity of a reading: 1 for a scalar, 2 for a pair, and so on.
// A source's shape is fixed when it is constructed.
type Shape uint8

const (
	// ShapeScalar is a single value.
	ShapeScalar Shape = 1
	// ShapePair is a two-component tuple.
	ShapePair Shape = 2
)

// Valid reports whether the shape can be represented by a Reading.
func (s Shape) Valid() bool {
	return s >= 1 && s <= MaxArity
}

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapePair:
		return "pair"
	default:
		return fmt.Sprintf("tuple%d", uint8(s))
	}
}

// Reading is a single measurement: either a scalar or a fixed-arity tuple of
// scalars. The zero Reading has no shape and is never produced by a sampler.
type Reading struct {
	shape  Shape
	values [MaxArity]float64
}

// Scalar returns a single-valued reading.
func Scalar(v float64) Reading {
	r := Reading{shape: ShapeScalar}
	r.values[0] = v
	return r
}

// Pair returns a two-component reading.
func Pair(a, b float64) Reading {
	r := Reading{shape: ShapePair}
	r.values[0] = a
	r.values[1] = b
	return r
}

// Tuple returns a reading with one component per value. It panics when called
// with no values or more than MaxArity values, both of which are programming
// errors in the caller.
func Tuple(vs ...float64) Reading {
	if len(vs) == 0 || len(vs) > MaxArity {
		panic(fmt.Sprintf("models: tuple arity %d out of range", len(vs)))
	}
	r := Reading{shape: Shape(len(vs))}
	copy(r.values[:], vs)
	return r
}

// Shape returns the arity of the reading.
func (r Reading) Shape() Shape { return r.shape }

// IsZero reports whether r is the zero Reading.
func (r Reading) IsZero() bool { return r.shape == 0 }

// Values returns a copy of the reading's components.
func (r Reading) Values() []float64 {
	out := make([]float64, r.shape)
	copy(out, r.values[:r.shape])
	return out
}

// At returns component i. It panics if i is outside the reading's shape.
func (r Reading) At(i int) float64 {
	if i < 0 || i >= int(r.shape) {
		panic(fmt.Sprintf("models: component %d out of range for %s", i, r.shape))
	}
	return r.values[i]
}

// Scalar returns the value of a scalar reading.
func (r Reading) Scalar() (float64, bool) {
	if r.shape != ShapeScalar {
		return 0, false
	}
	return r.values[0], true
}

// Pair returns both components of a pair reading.
func (r Reading) Pair() (a, b float64, ok bool) {
	if r.shape != ShapePair {
		return 0, 0, false
	}
	return r.values[0], r.values[1], true
}

func (r Reading) String() string {
	if r.shape == 0 {
		return "<none>"
	}
	if r.shape == ShapeScalar {
		return fmt.Sprintf("%.3f", r.values[0])
	}
	parts := make([]string, r.shape)
	for i := range parts {
		parts[i] = fmt.Sprintf("%.3f", r.values[i])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Average is the result of draining a non-empty sample buffer: the
// component-wise mean of every reading appended since the previous drain.
type Average struct {
	Reading
	// Samples is the number of readings the mean was computed over.
	Samples int
	// DrainedAt is when the buffer was drained.
	DrainedAt time.Time
}
