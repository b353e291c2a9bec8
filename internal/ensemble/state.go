// Package ensemble advances the simulation state under NVE, NVT
// (Nosé-Hoover chain) or NPT (Nosé-Hoover) equations of motion. The routine
// is chosen at construction and fixed for the simulation's lifetime; every
// variant exposes the same init/step contract with its extra thermostat or
// barostat variables carried alongside the core state.
package ensemble

import (
	"math"
	"math/rand"

	"github.com/atomforge/mdsim/internal/geom"
	"github.com/atomforge/mdsim/internal/metrics"
	"github.com/atomforge/mdsim/internal/units"
)

// ForceField evaluates energy, per-atom forces and the scalar pair virial
// for the given positions and box. Implemented by the potential adapter.
type ForceField interface {
	Eval(pos [][3]float64, box *geom.Box) (energy float64, forces [][3]float64, virial float64, err error)
}

// State is the mutable simulation state. It is owned exclusively by the
// driver and mutated only through a Routine's Init and Step.
type State struct {
	Position [][3]float64
	Velocity [][3]float64
	Force    [][3]float64
	Mass     []float64 // internal units, eV·fs²/Å²
	Box      *geom.Box

	PotentialEnergy float64
	Virial          float64
	Step            int

	// Nosé-Hoover chain variables (NVT, NPT).
	Xi  []float64
	Vxi []float64

	// Barostat variables (NPT).
	Eps  float64
	Peps float64
}

// NewState builds a state from positions, per-atom masses in AMU and a box.
// Velocities start zero; call SetVelocities or InitVelocities before running.
func NewState(pos [][3]float64, massAMU []float64, box *geom.Box) *State {
	mass := make([]float64, len(massAMU))
	for i, m := range massAMU {
		mass[i] = units.MassToInternal(m)
	}
	return &State{
		Position: clone3(pos),
		Velocity: make([][3]float64, len(pos)),
		Force:    make([][3]float64, len(pos)),
		Mass:     mass,
		Box:      box,
	}
}

func (s *State) NumAtoms() int { return len(s.Position) }

func (s *State) DOF() int { return 3 * len(s.Position) }

func (s *State) KineticEnergy() float64 {
	return metrics.KineticEnergy(s.Velocity, s.Mass)
}

// Temperature returns the instantaneous kT in internal units (eV).
func (s *State) Temperature() float64 {
	if s.NumAtoms() == 0 {
		return 0
	}
	return 2 * s.KineticEnergy() / float64(s.DOF())
}

// TemperatureK returns the instantaneous temperature in Kelvin.
func (s *State) TemperatureK() float64 {
	return metrics.TemperatureK(s.Velocity, s.Mass)
}

func (s *State) SetVelocities(vel [][3]float64) {
	s.Velocity = clone3(vel)
}

// InitVelocities draws Maxwell-Boltzmann velocities for the given
// temperature (Kelvin) and removes the center-of-mass drift.
func (s *State) InitVelocities(temperatureK float64, seed int64) {
	kT := units.TempToInternal(temperatureK)
	rng := rand.New(rand.NewSource(seed))
	var p [3]float64
	var mTot float64
	for i := range s.Velocity {
		sigma := math.Sqrt(kT / s.Mass[i])
		for k := 0; k < 3; k++ {
			s.Velocity[i][k] = sigma * rng.NormFloat64()
			p[k] += s.Mass[i] * s.Velocity[i][k]
		}
		mTot += s.Mass[i]
	}
	for i := range s.Velocity {
		for k := 0; k < 3; k++ {
			s.Velocity[i][k] -= p[k] / mTot
		}
	}
}

// Clone deep-copies the state so a provisional chunk can be discarded.
func (s *State) Clone() *State {
	c := *s
	c.Position = clone3(s.Position)
	c.Velocity = clone3(s.Velocity)
	c.Force = clone3(s.Force)
	c.Mass = append([]float64(nil), s.Mass...)
	c.Xi = append([]float64(nil), s.Xi...)
	c.Vxi = append([]float64(nil), s.Vxi...)
	return &c
}

// Pressure returns the instantaneous internal pressure in internal units.
func (s *State) Pressure() float64 {
	v := s.Box.Volume()
	return (2*s.KineticEnergy() + s.Virial) / (3 * v)
}

func clone3(x [][3]float64) [][3]float64 {
	c := make([][3]float64, len(x))
	copy(c, x)
	return c
}
