package ensemble

import "github.com/atomforge/mdsim/internal/units"

// NVT couples the system to a Nosé-Hoover thermostat chain targeting a
// fixed temperature.
type NVT struct {
	dt     float64
	kT     float64
	tau    float64
	length int
	chain  *nhChain
}

func NewNVT(dt, temperatureK, tau float64, chainLength int) (*NVT, error) {
	if dt <= 0 {
		return nil, ErrBadTimestep
	}
	if temperatureK <= 0 {
		return nil, ErrMissingTemperature
	}
	if chainLength < 1 {
		chainLength = 1
	}
	return &NVT{
		dt:     dt,
		kT:     units.TempToInternal(temperatureK),
		tau:    tau,
		length: chainLength,
	}, nil
}

func (n *NVT) Name() string { return RoutineNVT }

func (n *NVT) Init(s *State, f ForceField) error {
	s.Xi = make([]float64, n.length)
	s.Vxi = make([]float64, n.length)
	n.chain = newNHChain(n.kT, n.tau, n.length, s.DOF())
	return evalInto(s, f)
}

func (n *NVT) Step(s *State, f ForceField) error {
	scale := n.chain.halfStep(s, s.KineticEnergy(), s.DOF(), n.dt)
	scaleVelocities(s, scale)

	velocityHalfKick(s, n.dt)
	drift(s, n.dt)
	if err := evalInto(s, f); err != nil {
		return err
	}
	velocityHalfKick(s, n.dt)

	scale = n.chain.halfStep(s, s.KineticEnergy(), s.DOF(), n.dt)
	scaleVelocities(s, scale)
	s.Step++
	return nil
}

// Invariant is the extended Nosé-Hoover Hamiltonian.
func (n *NVT) Invariant(s *State) float64 {
	return s.PotentialEnergy + s.KineticEnergy() + n.chain.energy(s, s.DOF())
}
