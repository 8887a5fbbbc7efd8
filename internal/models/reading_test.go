package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingShapes(t *testing.T) {
	s := Scalar(21.5)
	v, ok := s.Scalar()
	require.True(t, ok)
	assert.Equal(t, 21.5, v)
	assert.Equal(t, ShapeScalar, s.Shape())
	_, _, ok = s.Pair()
	assert.False(t, ok)

	p := Pair(1, 2)
	a, b, ok := p.Pair()
	require.True(t, ok)
	assert.Equal(t, 1.0, a)
	assert.Equal(t, 2.0, b)
	_, ok = p.Scalar()
	assert.False(t, ok)
	assert.Equal(t, []float64{1, 2}, p.Values())
}

func TestTuple(t *testing.T) {
	r := Tuple(1, 2, 3)
	assert.Equal(t, Shape(3), r.Shape())
	assert.Equal(t, 3.0, r.At(2))
	assert.Equal(t, "(1.000, 2.000, 3.000)", r.String())

	assert.Panics(t, func() { Tuple() })
	assert.Panics(t, func() { Tuple(1, 2, 3, 4, 5) })
	assert.Panics(t, func() { r.At(3) })
}

func TestZeroReading(t *testing.T) {
	var r Reading
	assert.True(t, r.IsZero())
	assert.Empty(t, r.Values())
	assert.Equal(t, "<none>", r.String())
	assert.False(t, Scalar(0).IsZero())
}

func TestShapeString(t *testing.T) {
	tests := []struct {
		shape Shape
		want  string
		valid bool
	}{
		{ShapeScalar, "scalar", true},
		{ShapePair, "pair", true},
		{Shape(4), "tuple4", true},
		{Shape(0), "tuple0", false},
		{Shape(5), "tuple5", false},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.shape.String())
			assert.Equal(t, tt.valid, tt.shape.Valid())
		})
	}
}
