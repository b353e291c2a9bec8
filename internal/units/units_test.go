package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	assert.InDelta(t, 300.0, TempFromInternal(TempToInternal(300.0)), 1e-10)
	assert.InDelta(t, 1.0, PressureFromInternal(PressureToInternal(1.0)), 1e-15)
	assert.InDelta(t, 15.9994, MassFromInternal(MassToInternal(15.9994)), 1e-10)
}

func TestConstants(t *testing.T) {
	// Load-bearing values, not tunables.
	assert.Equal(t, 1.036427e2, MassAMU)
	assert.Equal(t, 8.617333e-5, TemperatureK)
	assert.Equal(t, 6.241509e-7, PressureBar)
}

func TestWaterAt300K(t *testing.T) {
	kT := TempToInternal(300)
	assert.InDelta(t, 0.02585, kT, 1e-4)
}
