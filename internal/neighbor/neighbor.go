// Package neighbor maintains the per-atom candidate-neighbor tables used to
// keep force evaluation near-linear in atom count.
//
// The engine separates the cheap drift check, safe to run every step, from
// the expensive rebuild that changes buffer shapes and must happen outside
// the hot path. Capacities are measured per type at allocation: sparse types
// get narrow rows, dense types wide ones.
package neighbor

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/atomforge/mdsim/internal/geom"
	"github.com/atomforge/mdsim/internal/partition"
)

var (
	ErrNotAllocated = errors.New("neighbor: list not allocated")
	ErrBadPositions = errors.New("neighbor: position count does not match partitioner")
)

// drSlack keeps the drift criterion strictly conservative against the
// rounding of the wrap bias.
const drSlack = 0.01

// List is a per-type neighbor index table with fixed row widths.
//
// tables[t] holds, for every atom, a row of caps[t] candidate neighbors of
// type t, as padded device-major indices valid on every device. Rows are
// padded with the partitioner sentinel. The overflow flag records any true
// neighbor dropped since the last allocation because its row was full.
type List struct {
	box  *geom.Box
	part *partition.Partitioner

	cutoff float64 // model cutoff
	skin   float64 // extra radius delaying rebuilds

	bufferSize float64
	caps       []int
	tables     [][]int32
	reference  [][3]float64
	overflow   bool
}

// New prepares an unallocated list. radius = cutoff + skin is the binning
// radius; bufferSize is the capacity safety multiplier (>= 1).
func New(box *geom.Box, part *partition.Partitioner, cutoff, skin, bufferSize float64) (*List, error) {
	if cutoff <= 0 || skin < 0 {
		return nil, fmt.Errorf("neighbor: invalid cutoff %g / skin %g", cutoff, skin)
	}
	if bufferSize < 1 {
		return nil, fmt.Errorf("neighbor: buffer size must be >= 1, got %g", bufferSize)
	}
	return &List{
		box:        box,
		part:       part,
		cutoff:     cutoff,
		skin:       skin,
		bufferSize: bufferSize,
	}, nil
}

func (l *List) Radius() float64 { return l.cutoff + l.skin }

func (l *List) Skin() float64 { return l.skin }

func (l *List) BufferSize() float64 { return l.bufferSize }

// Caps returns the per-type row widths chosen at the last allocation.
func (l *List) Caps() []int { return append([]int(nil), l.caps...) }

func (l *List) Overflow() bool { return l.overflow }

// Table returns the flat row-major table for type t (rows of width caps[t],
// one per atom, padded device-major entries).
func (l *List) Table(t int) []int32 { return l.tables[t] }

// Reference returns the canonicalized positions recorded at the last rebuild.
func (l *List) Reference() [][3]float64 { return l.reference }

// Allocate performs a cold build: canonicalize positions, measure the actual
// per-type neighbor maxima, size rows as observed*bufferSize plus padding,
// and fill the tables. The table is complete for the given configuration.
func (l *List) Allocate(pos [][3]float64) error {
	if len(pos) != l.part.TotalAtoms() {
		return ErrBadPositions
	}
	coord := l.box.Wrap(pos)

	counts := l.countPerType(coord)
	nt := l.part.NumTypes()
	l.caps = make([]int, nt)
	for t := 0; t < nt; t++ {
		maxCount := 0
		for i := 0; i < len(coord); i++ {
			if c := counts[t][i]; c > maxCount {
				maxCount = c
			}
		}
		k := int(float64(maxCount) * l.bufferSize)
		if k == 0 {
			k = 1
		} else {
			k += 1 + max(int(20*(l.bufferSize-1.2)), 0)
		}
		l.caps[t] = k
	}
	logrus.Debugf("neighbor list allocated with per-type sizes %v", l.caps)

	l.overflow = false
	l.fill(coord)
	l.reference = coord
	return nil
}

// Update re-bins atoms into the existing fixed-capacity tables without
// resizing. A true neighbor count exceeding a row width sets the overflow
// flag; the caller recovers by reallocating at the next chunk boundary.
func (l *List) Update(pos [][3]float64) error {
	if l.caps == nil {
		return ErrNotAllocated
	}
	if len(pos) != l.part.TotalAtoms() {
		return ErrBadPositions
	}
	coord := l.box.Wrap(pos)
	l.overflow = false
	l.fill(coord)
	l.reference = coord
	return nil
}

// CheckDrOverflow reports whether any atom drifted more than half the skin
// since the reference configuration. While it stays false, the table built at
// the reference is still complete at the current positions.
func (l *List) CheckDrOverflow(pos [][3]float64) bool {
	if l.reference == nil {
		return true
	}
	limit := l.skin/2 - drSlack
	wrapped := l.box.Wrap(pos)
	for i := range wrapped {
		if l.box.Distance(l.reference[i], wrapped[i]) > limit {
			return true
		}
	}
	return false
}

// Reallocate rebuilds with a larger buffer multiplier. Capacity only ever
// grows within a run; a smaller value is ignored to avoid oscillation.
func (l *List) Reallocate(pos [][3]float64, bufferSize float64) error {
	if bufferSize > l.bufferSize {
		l.bufferSize = bufferSize
	}
	return l.Allocate(pos)
}

// SetBox rethreads a changed box (NPT) into the engine. Capacities and the
// reference configuration are kept; the next Update re-bins against the new
// box and surfaces any capacity overflow the change provokes.
func (l *List) SetBox(box *geom.Box) {
	l.box = box
}

func (l *List) countPerType(coord [][3]float64) [][]int {
	nt := l.part.NumTypes()
	counts := make([][]int, nt)
	for t := range counts {
		counts[t] = make([]int, len(coord))
	}
	l.forEachPair(coord, func(i, j, ti, tj int) {
		counts[tj][i]++
		counts[ti][j]++
	})
	return counts
}

func (l *List) fill(coord [][3]float64) {
	nt := l.part.NumTypes()
	n := len(coord)
	sentinel := l.part.Sentinel()

	l.tables = make([][]int32, nt)
	for t := 0; t < nt; t++ {
		l.tables[t] = make([]int32, n*l.caps[t])
		for i := range l.tables[t] {
			l.tables[t][i] = sentinel
		}
	}
	used := make([][]int, nt)
	for t := range used {
		used[t] = make([]int, n)
	}

	put := func(i, j, tj int) {
		row := used[tj][i]
		if row >= l.caps[tj] {
			l.overflow = true // row width exceeded, true neighbor dropped
			return
		}
		l.tables[tj][i*l.caps[tj]+row] = l.part.Remap(j)
		used[tj][i] = row + 1
	}

	l.forEachPair(coord, func(i, j, ti, tj int) {
		put(i, j, tj)
		put(j, i, ti)
	})
}

// forEachPair visits every unordered pair within the binning radius exactly
// once. Cell binning needs at least three cells per axis so the 27-cell scan
// never revisits a periodic image; smaller grids fall back to the direct
// minimum-image sweep.
func (l *List) forEachPair(coord [][3]float64, fn func(i, j, ti, tj int)) {
	radius := l.Radius()
	types := l.typeOfAll()

	lengths := l.box.Lengths()
	var ncell [3]int
	ok := l.box.Ortho()
	for k := 0; k < 3 && ok; k++ {
		ncell[k] = int(lengths[k] / radius)
		if ncell[k] < 3 {
			ok = false
		}
	}
	if !ok {
		for i := 0; i < len(coord); i++ {
			for j := i + 1; j < len(coord); j++ {
				if l.box.Distance(coord[i], coord[j]) <= radius {
					fn(i, j, types[i], types[j])
				}
			}
		}
		return
	}

	total := ncell[0] * ncell[1] * ncell[2]
	cells := make([][]int32, total)
	cellOf := func(p [3]float64) int {
		var c [3]int
		for k := 0; k < 3; k++ {
			c[k] = int(p[k] / lengths[k] * float64(ncell[k]))
			if c[k] >= ncell[k] {
				c[k] = ncell[k] - 1
			}
		}
		return (c[0]*ncell[1]+c[1])*ncell[2] + c[2]
	}
	for i, p := range coord {
		c := cellOf(p)
		cells[c] = append(cells[c], int32(i))
	}

	for cx := 0; cx < ncell[0]; cx++ {
		for cy := 0; cy < ncell[1]; cy++ {
			for cz := 0; cz < ncell[2]; cz++ {
				home := (cx*ncell[1]+cy)*ncell[2] + cz
				for dx := -1; dx <= 1; dx++ {
					for dy := -1; dy <= 1; dy++ {
						for dz := -1; dz <= 1; dz++ {
							nx := (cx + dx + ncell[0]) % ncell[0]
							ny := (cy + dy + ncell[1]) % ncell[1]
							nz := (cz + dz + ncell[2]) % ncell[2]
							other := (nx*ncell[1]+ny)*ncell[2] + nz
							if other < home {
								continue // visit each cell pair once
							}
							l.scanCells(coord, types, cells[home], cells[other], home == other, radius, fn)
						}
					}
				}
			}
		}
	}
}

func (l *List) scanCells(coord [][3]float64, types []int, a, b []int32, same bool, radius float64, fn func(i, j, ti, tj int)) {
	for ai, i32 := range a {
		i := int(i32)
		start := 0
		if same {
			start = ai + 1
		}
		for _, j32 := range b[start:] {
			j := int(j32)
			if l.box.Distance(coord[i], coord[j]) <= radius {
				if i < j {
					fn(i, j, types[i], types[j])
				} else {
					fn(j, i, types[j], types[i])
				}
			}
		}
	}
}

func (l *List) typeOfAll() []int {
	types := make([]int, l.part.TotalAtoms())
	for t := 0; t < l.part.NumTypes(); t++ {
		lo, hi := l.part.TypeRange(t)
		for i := lo; i < hi; i++ {
			types[i] = t
		}
	}
	return types
}
