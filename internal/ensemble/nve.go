package ensemble

// NVE is plain velocity-Verlet integration: symplectic, no coupling, total
// energy approximately conserved.
type NVE struct {
	dt float64
}

func NewNVE(dt float64) (*NVE, error) {
	if dt <= 0 {
		return nil, ErrBadTimestep
	}
	return &NVE{dt: dt}, nil
}

func (n *NVE) Name() string { return RoutineNVE }

func (n *NVE) Init(s *State, f ForceField) error {
	return evalInto(s, f)
}

func (n *NVE) Step(s *State, f ForceField) error {
	velocityHalfKick(s, n.dt)
	drift(s, n.dt)
	if err := evalInto(s, f); err != nil {
		return err
	}
	velocityHalfKick(s, n.dt)
	s.Step++
	return nil
}

func (n *NVE) Invariant(s *State) float64 {
	return s.PotentialEnergy + s.KineticEnergy()
}
