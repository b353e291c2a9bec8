package ensemble

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrBadTimestep        = errors.New("ensemble: timestep must be positive")
	ErrMissingTemperature = errors.New("ensemble: temperature required for this routine")
	ErrMissingPressure    = errors.New("ensemble: pressure required for this routine")
	ErrUnknownRoutine     = errors.New("ensemble: unknown routine")
)

// Routine names accepted by New.
const (
	RoutineNVE = "NVE"
	RoutineNVT = "NVT_Nose_Hoover"
	RoutineNPT = "NPT_Nose_Hoover"
)

// Routine is the common contract of all ensembles: initialize forces and
// auxiliary variables, advance one timestep, and report the conserved
// quantity that certifies the integration.
type Routine interface {
	Name() string
	Init(s *State, f ForceField) error
	Step(s *State, f ForceField) error
	Invariant(s *State) float64
}

// Params carries the routine-specific keyword arguments. Temperature is in
// Kelvin, pressure in bar; conversion to internal units happens here and
// nowhere else.
type Params struct {
	Temperature float64
	Pressure    float64
	Tau         float64 // thermostat relaxation time (fs); default 100*dt
	TauP        float64 // barostat relaxation time (fs); default 1000*dt
	ChainLength int     // Nosé-Hoover chain length; default 1
}

// New constructs the routine named by routine. Missing required parameters
// are fatal configuration errors.
func New(routine string, dt float64, p Params) (Routine, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrBadTimestep, dt)
	}
	switch routine {
	case RoutineNVE:
		return NewNVE(dt)
	case RoutineNVT:
		if p.Temperature <= 0 {
			return nil, fmt.Errorf("%w: provide 'temperature' in Kelvin for %s", ErrMissingTemperature, routine)
		}
		return NewNVT(dt, p.Temperature, tauOrDefault(p.Tau, 100*dt), chainOrDefault(p.ChainLength))
	case RoutineNPT:
		if p.Temperature <= 0 {
			return nil, fmt.Errorf("%w: provide 'temperature' in Kelvin for %s", ErrMissingTemperature, routine)
		}
		if p.Pressure <= 0 {
			return nil, fmt.Errorf("%w: provide 'pressure' in bar for %s", ErrMissingPressure, routine)
		}
		return NewNPT(dt, p.Temperature, p.Pressure, tauOrDefault(p.Tau, 100*dt), tauOrDefault(p.TauP, 1000*dt), chainOrDefault(p.ChainLength))
	default:
		return nil, fmt.Errorf("%w: %q (want NVE, NVT_Nose_Hoover or NPT_Nose_Hoover)", ErrUnknownRoutine, routine)
	}
}

func tauOrDefault(tau, def float64) float64 {
	if tau > 0 {
		return tau
	}
	return def
}

func chainOrDefault(n int) int {
	if n > 0 {
		return n
	}
	return 1
}

// evalInto refreshes forces, potential energy and virial on the state.
func evalInto(s *State, f ForceField) error {
	e, forces, w, err := f.Eval(s.Position, s.Box)
	if err != nil {
		return err
	}
	s.PotentialEnergy = e
	s.Force = forces
	s.Virial = w
	return nil
}

// velocityHalfKick advances velocities by dt/2 under the current forces.
func velocityHalfKick(s *State, dt float64) {
	for i := range s.Velocity {
		for k := 0; k < 3; k++ {
			s.Velocity[i][k] += 0.5 * dt * s.Force[i][k] / s.Mass[i]
		}
	}
}

// drift advances positions by dt under the current velocities.
func drift(s *State, dt float64) {
	for i := range s.Position {
		for k := 0; k < 3; k++ {
			s.Position[i][k] += dt * s.Velocity[i][k]
		}
	}
}

func scaleVelocities(s *State, factor float64) {
	for i := range s.Velocity {
		for k := 0; k < 3; k++ {
			s.Velocity[i][k] *= factor
		}
	}
}

// nhChain is the shared Nosé-Hoover thermostat chain update. It advances the
// chain by dt/2 and returns the velocity scaling factor to apply.
type nhChain struct {
	kT float64
	q  []float64
}

func newNHChain(kT, tau float64, length, dof int) *nhChain {
	q := make([]float64, length)
	q[0] = float64(dof) * kT * tau * tau
	for k := 1; k < length; k++ {
		q[k] = kT * tau * tau
	}
	return &nhChain{kT: kT, q: q}
}

// halfStep integrates the chain for dt/2 against the given kinetic energy
// and returns the factor by which particle velocities must be scaled.
func (c *nhChain) halfStep(s *State, ke float64, dof int, dt float64) float64 {
	m := len(c.q)
	dt2 := dt / 2
	dt4 := dt / 4
	dt8 := dt / 8

	g := func(k int, ke float64) float64 {
		if k == 0 {
			return (2*ke - float64(dof)*c.kT) / c.q[0]
		}
		return (c.q[k-1]*s.Vxi[k-1]*s.Vxi[k-1] - c.kT) / c.q[k]
	}

	// Inward sweep from the end of the chain.
	for k := m - 1; k >= 0; k-- {
		if k == m-1 {
			s.Vxi[k] += g(k, ke) * dt4
		} else {
			f := math.Exp(-dt8 * s.Vxi[k+1])
			s.Vxi[k] = f * (f*s.Vxi[k] + g(k, ke)*dt4)
		}
	}

	scale := math.Exp(-dt2 * s.Vxi[0])
	ke *= scale * scale
	for k := 0; k < m; k++ {
		s.Xi[k] += dt2 * s.Vxi[k]
	}

	// Outward sweep with the updated kinetic energy.
	for k := 0; k < m; k++ {
		if k == m-1 {
			s.Vxi[k] += g(k, ke) * dt4
		} else {
			f := math.Exp(-dt8 * s.Vxi[k+1])
			s.Vxi[k] = f * (f*s.Vxi[k] + g(k, ke)*dt4)
		}
	}
	return scale
}

// energy is the chain's contribution to the extended-system invariant.
func (c *nhChain) energy(s *State, dof int) float64 {
	e := 0.0
	for k, q := range c.q {
		e += 0.5 * q * s.Vxi[k] * s.Vxi[k]
		if k == 0 {
			e += float64(dof) * c.kT * s.Xi[0]
		} else {
			e += c.kT * s.Xi[k]
		}
	}
	return e
}
