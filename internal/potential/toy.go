package potential

import "math"

// Harmonic is a quadratic pair bond, V(r) = 0.5*k*(r-r0)^2 inside the
// cutoff. Used for integrator verification where exact energy conservation
// is checkable.
type Harmonic struct {
	K      float64
	R0     float64
	Rcut   float64
	NTypes int
}

func (h *Harmonic) Cutoff() float64 { return h.Rcut }

func (h *Harmonic) NumTypes() int {
	if h.NTypes == 0 {
		return 1
	}
	return h.NTypes
}

func (h *Harmonic) PairEnergy(_, _ int, r float64) float64 {
	if r > h.Rcut {
		return 0
	}
	d := r - h.R0
	return 0.5 * h.K * d * d
}

func (h *Harmonic) PairForce(_, _ int, r float64) float64 {
	if r > h.Rcut {
		return 0
	}
	return -h.K * (r - h.R0)
}

// SoftSphere is a purely repulsive inverse-power potential,
// V(r) = eps*(sigma/r)^12, smoothly truncated at the cutoff.
type SoftSphere struct {
	Eps    float64
	Sigma  float64
	Rcut   float64
	NTypes int
}

func (s *SoftSphere) Cutoff() float64 { return s.Rcut }

func (s *SoftSphere) NumTypes() int {
	if s.NTypes == 0 {
		return 1
	}
	return s.NTypes
}

func (s *SoftSphere) PairEnergy(_, _ int, r float64) float64 {
	if r > s.Rcut || r <= 0 {
		return 0
	}
	return s.Eps*math.Pow(s.Sigma/r, 12) - s.shift()
}

func (s *SoftSphere) PairForce(_, _ int, r float64) float64 {
	if r > s.Rcut || r <= 0 {
		return 0
	}
	return 12 * s.Eps * math.Pow(s.Sigma/r, 12) / r
}

func (s *SoftSphere) shift() float64 {
	return s.Eps * math.Pow(s.Sigma/s.Rcut, 12)
}
