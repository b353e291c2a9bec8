package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFromSlice(t *testing.T) {
	tests := []struct {
		name  string
		v     []float64
		ortho bool
		err   bool
	}{
		{"cubic scalar", []float64{10}, true, false},
		{"ortho vector", []float64{10, 12, 14}, true, false},
		{"diagonal matrix canonicalizes", []float64{10, 0, 0, 0, 12, 0, 0, 0, 14}, true, false},
		{"triclinic matrix", []float64{10, 0, 0, 2, 12, 0, 0, 1, 14}, false, false},
		{"negative length", []float64{-1}, false, true},
		{"zero length", []float64{10, 0, 14}, false, true},
		{"bad size", []float64{1, 2}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := FromSlice(tt.v)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ortho, b.Ortho())
		})
	}
}

func TestVolumeAndWidths(t *testing.T) {
	b, err := FromSlice([]float64{10, 12, 14})
	require.NoError(t, err)
	assert.InDelta(t, 1680.0, b.Volume(), 1e-9)
	assert.InDelta(t, 10.0, b.MinDim(), 1e-12)

	// Sheared cell: widths shrink below edge lengths.
	tri, err := NewTriclinic(mat.NewDense(3, 3, []float64{
		10, 0, 0,
		5, 10, 0,
		0, 0, 10,
	}))
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, tri.Volume(), 1e-9)
	w := tri.Widths()
	assert.InDelta(t, 10.0, w[2], 1e-9)
	assert.Less(t, w[0], 10.0)
}

func TestWrapBias(t *testing.T) {
	b, err := NewCubic(10)
	require.NoError(t, err)
	out := b.Wrap([][3]float64{{-0.5, 10.0, 25.0}})
	for k := 0; k < 3; k++ {
		assert.Greater(t, out[0][k], 0.0)
		assert.Less(t, out[0][k], 10.0)
	}
	assert.InDelta(t, 9.5, out[0][0], 1e-4)
	assert.InDelta(t, 0.0, out[0][1], 1e-4)
	assert.InDelta(t, 5.0, out[0][2], 1e-4)
}

func TestMinimumImage(t *testing.T) {
	b, err := NewCubic(10)
	require.NoError(t, err)
	d := b.Displacement([3]float64{0.5, 0.5, 0.5}, [3]float64{9.5, 0.5, 0.5})
	assert.InDelta(t, -1.0, d[0], 1e-12)
	assert.InDelta(t, 1.0, b.Distance([3]float64{0.5, 0.5, 0.5}, [3]float64{9.5, 0.5, 0.5}), 1e-12)
}

func TestTriclinicMinimumImage(t *testing.T) {
	tri, err := NewTriclinic(mat.NewDense(3, 3, []float64{
		10, 0, 0,
		1, 10, 0,
		0, 0, 10,
	}))
	require.NoError(t, err)
	a := [3]float64{0.2, 0.2, 0.2}
	p := [3]float64{0.2 + 10, 0.2, 0.2}
	assert.InDelta(t, 0.0, tri.Distance(a, p), 1e-9)
}

func TestScale(t *testing.T) {
	b, err := NewCubic(10)
	require.NoError(t, err)
	s, err := b.Scale(1.1)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, s.Lengths()[0], 1e-12)
	assert.InDelta(t, math.Pow(1.1, 3)*1000, s.Volume(), 1e-9)
}
