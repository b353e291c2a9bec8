package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atomforge/mdsim/internal/units"
)

func TestKineticEnergy(t *testing.T) {
	vel := [][3]float64{{1, 0, 0}, {0, 2, 0}}
	mass := []float64{2, 1}
	assert.InDelta(t, 0.5*2*1+0.5*1*4, KineticEnergy(vel, mass), 1e-12)
}

func TestTemperatureRoundTrip(t *testing.T) {
	// One atom moving with v^2 = 3kT/m reads back exactly 300 K.
	kT := units.TempToInternal(300)
	m := units.MassToInternal(1)
	vel := [][3]float64{{math.Sqrt(3 * kT / m), 0, 0}}
	assert.InDelta(t, 300.0, TemperatureK(vel, []float64{m}), 1e-8)
}

func TestModelDeviation(t *testing.T) {
	a := [][3]float64{{1, 0, 0}, {0, 0, 0}}
	b := [][3]float64{{3, 0, 0}, {0, 0, 0}}
	// Population std dev of {1,3} is 1.
	assert.InDelta(t, 1.0, ModelDeviation([][][3]float64{a, b}), 1e-12)

	assert.Zero(t, ModelDeviation([][][3]float64{a}))
	assert.Zero(t, ModelDeviation(nil))
}
