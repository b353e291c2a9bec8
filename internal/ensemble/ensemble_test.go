package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomforge/mdsim/internal/geom"
)

// bondField binds atoms 0 and 1 with a quadratic pair potential. No
// periodic images: box is only carried for volume terms.
type bondField struct {
	k, r0 float64
}

func (b bondField) Eval(pos [][3]float64, _ *geom.Box) (float64, [][3]float64, float64, error) {
	forces := make([][3]float64, len(pos))
	var d [3]float64
	for k := 0; k < 3; k++ {
		d[k] = pos[1][k] - pos[0][k]
	}
	r := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	e := 0.5 * b.k * (r - b.r0) * (r - b.r0)
	fm := -b.k * (r - b.r0) // -dV/dr
	for k := 0; k < 3; k++ {
		forces[0][k] -= fm * d[k] / r
		forces[1][k] += fm * d[k] / r
	}
	return e, forces, fm * r, nil
}

func twoAtomState(t *testing.T) *State {
	t.Helper()
	box, err := geom.NewCubic(20)
	require.NoError(t, err)
	pos := [][3]float64{{9, 10, 10}, {11.5, 10, 10}}
	return NewState(pos, []float64{1.0, 1.0}, box)
}

func TestNVEConservesEnergy(t *testing.T) {
	s := twoAtomState(t)
	f := bondField{k: 1.0, r0: 2.0}

	nve, err := NewNVE(0.25)
	require.NoError(t, err)
	require.NoError(t, nve.Init(s, f))

	e0 := nve.Invariant(s)
	require.Greater(t, e0, 0.0)

	for i := 0; i < 1000; i++ {
		require.NoError(t, nve.Step(s, f))
	}
	e1 := nve.Invariant(s)
	assert.InDelta(t, 0.0, math.Abs(e1-e0)/math.Abs(e0), 1e-3)
	assert.Equal(t, 1000, s.Step)
}

func TestNVTThermostatsTowardTarget(t *testing.T) {
	s := twoAtomState(t)
	f := bondField{k: 1.0, r0: 2.0}
	s.InitVelocities(600, 42)

	nvt, err := NewNVT(0.25, 300, 25, 1)
	require.NoError(t, err)
	require.NoError(t, nvt.Init(s, f))

	for i := 0; i < 2000; i++ {
		require.NoError(t, nvt.Step(s, f))
	}

	// Small system, loose bound: kT must stay finite and on the right scale.
	kT := s.Temperature()
	assert.False(t, math.IsNaN(kT))
	assert.Greater(t, kT, 0.0)
	assert.Less(t, kT, 10*300*8.617333e-5)
	assert.False(t, math.IsNaN(nvt.Invariant(s)))
}

func TestNPTStepMutatesBox(t *testing.T) {
	s := twoAtomState(t)
	f := bondField{k: 1.0, r0: 2.0}
	s.InitVelocities(300, 7)

	npt, err := NewNPT(0.25, 300, 1.0, 25, 250, 1)
	require.NoError(t, err)
	require.NoError(t, npt.Init(s, f))

	v0 := s.Box.Volume()
	for i := 0; i < 50; i++ {
		require.NoError(t, npt.Step(s, f))
	}
	assert.NotEqual(t, v0, s.Box.Volume())
	assert.False(t, math.IsNaN(npt.Invariant(s)))
}

func TestRoutineFactory(t *testing.T) {
	_, err := New(RoutineNVE, 0.5, Params{})
	assert.NoError(t, err)

	_, err = New(RoutineNVT, 0.5, Params{})
	assert.ErrorIs(t, err, ErrMissingTemperature)

	_, err = New(RoutineNVT, 0.5, Params{Temperature: 300})
	assert.NoError(t, err)

	_, err = New(RoutineNPT, 0.5, Params{Temperature: 300})
	assert.ErrorIs(t, err, ErrMissingPressure)

	_, err = New(RoutineNPT, 0.5, Params{Temperature: 300, Pressure: 1})
	assert.NoError(t, err)

	_, err = New("Langevin", 0.5, Params{})
	assert.ErrorIs(t, err, ErrUnknownRoutine)

	_, err = New(RoutineNVE, -1, Params{})
	assert.ErrorIs(t, err, ErrBadTimestep)
}

func TestInitVelocities(t *testing.T) {
	box, err := geom.NewCubic(30)
	require.NoError(t, err)
	n := 500
	pos := make([][3]float64, n)
	mass := make([]float64, n)
	for i := range pos {
		pos[i] = [3]float64{float64(i % 10), float64(i / 10 % 10), float64(i / 100)}
		mass[i] = 12.0
	}
	s := NewState(pos, mass, box)
	s.InitVelocities(300, 1)

	// Center-of-mass momentum removed.
	var p [3]float64
	for i, v := range s.Velocity {
		for k := 0; k < 3; k++ {
			p[k] += s.Mass[i] * v[k]
		}
	}
	for k := 0; k < 3; k++ {
		assert.InDelta(t, 0.0, p[k], 1e-8)
	}

	// Temperature lands near the request for a system this size.
	assert.InDelta(t, 300.0, s.TemperatureK(), 60.0)
}

func TestCloneIsDeep(t *testing.T) {
	s := twoAtomState(t)
	s.Xi = []float64{1}
	s.Vxi = []float64{2}
	c := s.Clone()
	c.Position[0][0] = 99
	c.Xi[0] = 99
	assert.NotEqual(t, s.Position[0][0], c.Position[0][0])
	assert.NotEqual(t, s.Xi[0], c.Xi[0])
}
