// Package potential defines the interface to the interatomic potential and
// the adapter that turns it into a pure energy/force function over neighbor
// or lattice data. The potential itself is an external collaborator: trained
// elsewhere, loaded from an artifact, read-only here.
package potential

import "errors"

var (
	ErrTypeOutOfRange = errors.New("potential: atom type out of range")
	ErrBadArtifact    = errors.New("potential: malformed model artifact")
)

// Potential is the black-box collaborator boundary. PairForce is the
// analytic stand-in for the gradient the original substrate derives
// automatically: it returns -dV/dr.
type Potential interface {
	Cutoff() float64
	NumTypes() int
	PairEnergy(ti, tj int, r float64) float64
	PairForce(ti, tj int, r float64) float64
}
