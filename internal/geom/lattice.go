package geom

import (
	"fmt"
	"math"
)

// LatticeCandidate is the set of periodic image shifts that guarantees every
// pair within the cutoff is enumerated when no neighbor list is in use. The
// shifts are stored as integer cell offsets and materialized against the
// current box at evaluation time, so a slowly scaling box keeps exact images.
// It is recomputed whenever the box changes enough that the stored bounds no
// longer cover the cutoff.
type LatticeCandidate struct {
	Images [][3]int // integer cell offsets, zero offset included
	Bounds [3]int   // per-axis integer image bound used during enumeration
	Ortho  bool
}

// ComputeLatticeCandidate enumerates the integer image shifts whose cells can
// hold an atom within rcut of the origin cell.
func ComputeLatticeCandidate(b *Box, rcut float64) (*LatticeCandidate, error) {
	if rcut <= 0 {
		return nil, fmt.Errorf("geom: cutoff must be positive, got %g", rcut)
	}
	bounds := latticeBounds(b, rcut)
	lc := &LatticeCandidate{Bounds: bounds, Ortho: b.Ortho()}
	widths := b.Widths()
	for i := -bounds[0]; i <= bounds[0]; i++ {
		for j := -bounds[1]; j <= bounds[1]; j++ {
			for k := -bounds[2]; k <= bounds[2]; k++ {
				if b.Ortho() && !cellReachable([3]int{i, j, k}, widths, rcut) {
					continue
				}
				lc.Images = append(lc.Images, [3]int{i, j, k})
			}
		}
	}
	return lc, nil
}

// Shifts materializes the cartesian image shifts for the given box.
func (lc *LatticeCandidate) Shifts(b *Box) [][3]float64 {
	m := b.Matrix()
	shifts := make([][3]float64, len(lc.Images))
	for idx, img := range lc.Images {
		n := [3]float64{float64(img[0]), float64(img[1]), float64(img[2])}
		for c := 0; c < 3; c++ {
			shifts[idx][c] = n[0]*m.At(0, c) + n[1]*m.At(1, c) + n[2]*m.At(2, c)
		}
	}
	return shifts
}

// Sufficient reports whether the candidate set still covers rcut for the
// given box. False means a lattice overflow: the set must be recomputed.
func (lc *LatticeCandidate) Sufficient(b *Box, rcut float64) bool {
	need := latticeBounds(b, rcut)
	for k := 0; k < 3; k++ {
		if need[k] > lc.Bounds[k] {
			return false
		}
	}
	return true
}

// UseNeighborList decides the spatial mode: a neighbor list is preferred only
// for orthorhombic boxes whose shortest dimension exceeds twice the cutoff.
// Non-orthorhombic boxes always fall back to lattice enumeration.
func UseNeighborList(b *Box, rcut float64) bool {
	return b.Ortho() && 2*rcut < b.MinDim()
}

func latticeBounds(b *Box, rcut float64) [3]int {
	w := b.Widths()
	var n [3]int
	for k := 0; k < 3; k++ {
		n[k] = int(math.Ceil(rcut / w[k]))
	}
	return n
}

// cellReachable tests whether any point of the cell shifted by n can lie
// within rcut of a point in the origin cell. The closest approach along each
// axis is (|n|-1) cell widths.
func cellReachable(n [3]int, widths [3]float64, rcut float64) bool {
	sum := 0.0
	for k := 0; k < 3; k++ {
		a := math.Abs(float64(n[k]))
		if a > 1 {
			d := (a - 1) * widths[k]
			sum += d * d
		}
	}
	return sum <= rcut*rcut
}
