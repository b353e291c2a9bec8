package ensemble

import (
	"math"

	"github.com/atomforge/mdsim/internal/units"
)

// NPT extends the Nosé-Hoover thermostat with an isotropic barostat: the box
// becomes part of the mutable state and breathes against a target pressure.
// The driver re-threads the changed box into the spatial engine whenever it
// moves beyond tolerance.
type NPT struct {
	dt     float64
	kT     float64
	pext   float64
	tau    float64
	taup   float64
	length int
	chain  *nhChain
	w      float64 // barostat inertia
}

func NewNPT(dt, temperatureK, pressureBar, tau, taup float64, chainLength int) (*NPT, error) {
	if dt <= 0 {
		return nil, ErrBadTimestep
	}
	if temperatureK <= 0 {
		return nil, ErrMissingTemperature
	}
	if pressureBar <= 0 {
		return nil, ErrMissingPressure
	}
	if chainLength < 1 {
		chainLength = 1
	}
	return &NPT{
		dt:     dt,
		kT:     units.TempToInternal(temperatureK),
		pext:   units.PressureToInternal(pressureBar),
		tau:    tau,
		taup:   taup,
		length: chainLength,
	}, nil
}

func (n *NPT) Name() string { return RoutineNPT }

func (n *NPT) Init(s *State, f ForceField) error {
	s.Xi = make([]float64, n.length)
	s.Vxi = make([]float64, n.length)
	s.Eps = math.Log(s.Box.Volume()) / 3
	s.Peps = 0
	n.chain = newNHChain(n.kT, n.tau, n.length, s.DOF())
	n.w = float64(s.DOF()+3) * n.kT * n.taup * n.taup
	return evalInto(s, f)
}

func (n *NPT) Step(s *State, f ForceField) error {
	dof := float64(s.DOF())
	dt2 := n.dt / 2

	scale := n.chain.halfStep(s, s.KineticEnergy(), s.DOF(), n.dt)
	scaleVelocities(s, scale)
	s.Peps *= scale

	// Half kick for the barostat momentum against the pressure imbalance.
	s.Peps += dt2 * n.barostatForce(s, dof)

	velocityHalfKick(s, n.dt)
	cpl := math.Exp(-dt2 * (1 + 3/dof) * s.Peps / n.w)
	scaleVelocities(s, cpl)

	// Breathe the cell and drift positions in the scaled frame.
	lam := math.Exp(n.dt * s.Peps / n.w)
	box, err := s.Box.Scale(lam)
	if err != nil {
		return err
	}
	s.Box = box
	s.Eps += n.dt * s.Peps / n.w
	for i := range s.Position {
		for k := 0; k < 3; k++ {
			s.Position[i][k] = s.Position[i][k]*lam + n.dt*s.Velocity[i][k]
		}
	}

	if err := evalInto(s, f); err != nil {
		return err
	}

	scaleVelocities(s, cpl)
	velocityHalfKick(s, n.dt)

	s.Peps += dt2 * n.barostatForce(s, dof)

	scale = n.chain.halfStep(s, s.KineticEnergy(), s.DOF(), n.dt)
	scaleVelocities(s, scale)
	s.Peps *= scale
	s.Step++
	return nil
}

func (n *NPT) barostatForce(s *State, dof float64) float64 {
	v := s.Box.Volume()
	return 3*v*(s.Pressure()-n.pext) + (3/dof)*2*s.KineticEnergy()
}

// Invariant is the extended Hamiltonian including the PV term and the
// barostat kinetic energy.
func (n *NPT) Invariant(s *State) float64 {
	return s.PotentialEnergy + s.KineticEnergy() +
		n.chain.energy(s, s.DOF()) +
		n.pext*s.Box.Volume() +
		s.Peps*s.Peps/(2*n.w)
}
