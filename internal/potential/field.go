package potential

import (
	"fmt"
	"math"

	"github.com/atomforge/mdsim/internal/device"
	"github.com/atomforge/mdsim/internal/geom"
	"github.com/atomforge/mdsim/internal/neighbor"
	"github.com/atomforge/mdsim/internal/partition"
)

// StaticArgs is the immutable per-simulation descriptor: spatial mode,
// per-type counts and mode-specific parameters. It stays structurally
// constant across a step chunk; anything that would change it (a reallocated
// buffer, a recomputed lattice) happens at chunk boundaries.
type StaticArgs struct {
	UseNeighborList bool
	TypeCount       []int
	Lattice         *geom.LatticeCandidate
}

// Field adapts a Potential into a pure function of (positions, box,
// neighbor data) -> energy, forces, virial. It holds no mutable state;
// evaluation is sharded over device blocks and reduced.
type Field struct {
	pot     Potential
	part    *partition.Partitioner
	backend device.Backend
}

func Bind(pot Potential, part *partition.Partitioner, backend device.Backend) (*Field, error) {
	if part.NumTypes() > pot.NumTypes() {
		return nil, fmt.Errorf("potential: configuration has %d types, model supports %d",
			part.NumTypes(), pot.NumTypes())
	}
	return &Field{pot: pot, part: part, backend: backend}, nil
}

func (f *Field) Cutoff() float64 { return f.pot.Cutoff() }

// Eval computes total energy, per-atom forces and the scalar pair virial.
// Positions and neighbor data must match the partitioning the Field was
// bound with; the box must match the mode declared in static.
func (f *Field) Eval(pos [][3]float64, box *geom.Box, static StaticArgs, nbrs *neighbor.List) (float64, [][3]float64, float64, error) {
	if len(pos) != f.part.TotalAtoms() {
		return 0, nil, 0, fmt.Errorf("potential: got %d positions for %d atoms", len(pos), f.part.TotalAtoms())
	}
	if static.UseNeighborList {
		if nbrs == nil {
			return 0, nil, 0, fmt.Errorf("potential: neighbor-list mode without a neighbor list")
		}
		if !box.Ortho() {
			return 0, nil, 0, fmt.Errorf("potential: neighbor-list mode requires an orthorhombic box")
		}
		return f.evalNeighbor(pos, box, nbrs)
	}
	if static.Lattice == nil {
		return 0, nil, 0, fmt.Errorf("potential: lattice mode without a lattice candidate")
	}
	return f.evalLattice(pos, box, static.Lattice)
}

func (f *Field) evalNeighbor(pos [][3]float64, box *geom.Box, nbrs *neighbor.List) (float64, [][3]float64, float64, error) {
	k := f.part.Devices()
	nt := f.part.NumTypes()
	rc := f.pot.Cutoff()
	caps := nbrs.Caps()

	forces := make([][3]float64, len(pos))
	energies := make([]float64, k)
	virials := make([]float64, k)

	f.backend.Run(func(d int) {
		var e, w float64
		for ti := 0; ti < nt; ti++ {
			lo, hi := f.part.Block(ti, d)
			for i := lo; i < hi; i++ {
				for tj := 0; tj < nt; tj++ {
					row := nbrs.Table(tj)[i*caps[tj] : (i+1)*caps[tj]]
					for _, local := range row {
						j, ok := f.part.GlobalFromPadded(local)
						if !ok {
							continue
						}
						dr := box.Displacement(pos[i], pos[j])
						r := math.Sqrt(dr[0]*dr[0] + dr[1]*dr[1] + dr[2]*dr[2])
						if r > rc || r == 0 {
							continue
						}
						e += 0.5 * f.pot.PairEnergy(ti, tj, r)
						fm := f.pot.PairForce(ti, tj, r)
						for c := 0; c < 3; c++ {
							forces[i][c] -= fm * dr[c] / r
						}
						w += 0.5 * fm * r
					}
				}
			}
		}
		energies[d] = e
		virials[d] = w
	})

	return sum(energies), forces, sum(virials), nil
}

func (f *Field) evalLattice(pos [][3]float64, box *geom.Box, lc *geom.LatticeCandidate) (float64, [][3]float64, float64, error) {
	k := f.part.Devices()
	nt := f.part.NumTypes()
	rc := f.pot.Cutoff()
	n := len(pos)
	types := f.typeOfAll()
	shifts := lc.Shifts(box)

	// The shift set only covers the cells around the origin cell, so raw
	// coordinates must be canonicalized into the box before pairs are
	// enumerated; an atom that has diffused across the boundary would
	// otherwise drop out of reach of every image.
	coord := box.Wrap(pos)

	forces := make([][3]float64, n)
	energies := make([]float64, k)
	virials := make([]float64, k)

	f.backend.Run(func(d int) {
		var e, w float64
		for ti := 0; ti < nt; ti++ {
			lo, hi := f.part.Block(ti, d)
			for i := lo; i < hi; i++ {
				for j := 0; j < n; j++ {
					for _, s := range shifts {
						if i == j && s[0] == 0 && s[1] == 0 && s[2] == 0 {
							continue
						}
						var dr [3]float64
						for c := 0; c < 3; c++ {
							dr[c] = coord[j][c] + s[c] - coord[i][c]
						}
						r := math.Sqrt(dr[0]*dr[0] + dr[1]*dr[1] + dr[2]*dr[2])
						if r > rc || r == 0 {
							continue
						}
						e += 0.5 * f.pot.PairEnergy(ti, types[j], r)
						fm := f.pot.PairForce(ti, types[j], r)
						for c := 0; c < 3; c++ {
							forces[i][c] -= fm * dr[c] / r
						}
						w += 0.5 * fm * r
					}
				}
			}
		}
		energies[d] = e
		virials[d] = w
	})

	return sum(energies), forces, sum(virials), nil
}

func (f *Field) typeOfAll() []int {
	types := make([]int, f.part.TotalAtoms())
	for t := 0; t < f.part.NumTypes(); t++ {
		lo, hi := f.part.TypeRange(t)
		for i := lo; i < hi; i++ {
			types[i] = t
		}
	}
	return types
}

func sum(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s
}
