// Package geom provides the periodic simulation box, minimum-image
// displacement, and the lattice-candidate selector that decides between
// neighbor-list and lattice-enumeration modes.
package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var ErrBadBox = errors.New("geom: non-positive box dimension")

// wrapEps biases wrapped coordinates slightly inward so atoms sitting
// exactly on a face never alias to both sides of the box.
const wrapEps = 1e-7

// Box is a periodic simulation cell. Orthorhombic boxes are stored as three
// edge lengths; general (triclinic) boxes as a 3x3 matrix of row lattice
// vectors. A diagonal matrix canonicalizes to the orthorhombic form.
type Box struct {
	lengths [3]float64
	m       *mat.Dense
	inv     *mat.Dense
	ortho   bool
}

func NewCubic(l float64) (*Box, error) {
	return NewOrtho([3]float64{l, l, l})
}

func NewOrtho(lengths [3]float64) (*Box, error) {
	for _, l := range lengths {
		if l <= 0 || math.IsNaN(l) {
			return nil, fmt.Errorf("%w: %v", ErrBadBox, lengths)
		}
	}
	return &Box{lengths: lengths, ortho: true}, nil
}

func NewTriclinic(m *mat.Dense) (*Box, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return nil, fmt.Errorf("geom: box matrix must be 3x3, got %dx%d", r, c)
	}
	if isDiagonal(m) {
		return NewOrtho([3]float64{m.At(0, 0), m.At(1, 1), m.At(2, 2)})
	}
	if math.Abs(mat.Det(m)) <= 0 {
		return nil, fmt.Errorf("%w: singular box matrix", ErrBadBox)
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBox, err)
	}
	b := &Box{m: mat.DenseCopyOf(m), inv: &inv}
	return b, nil
}

// FromSlice builds a box from a scalar (cubic), a 3-vector (orthorhombic)
// or a row-major 9-element matrix.
func FromSlice(v []float64) (*Box, error) {
	switch len(v) {
	case 1:
		return NewCubic(v[0])
	case 3:
		return NewOrtho([3]float64{v[0], v[1], v[2]})
	case 9:
		return NewTriclinic(mat.NewDense(3, 3, append([]float64(nil), v...)))
	default:
		return nil, fmt.Errorf("geom: box must have 1, 3 or 9 elements, got %d", len(v))
	}
}

func isDiagonal(m *mat.Dense) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i != j && m.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

func (b *Box) Ortho() bool { return b.ortho }

func (b *Box) Lengths() [3]float64 { return b.lengths }

// Matrix returns the 3x3 row-vector form regardless of storage.
func (b *Box) Matrix() *mat.Dense {
	if !b.ortho {
		return mat.DenseCopyOf(b.m)
	}
	return mat.NewDense(3, 3, []float64{
		b.lengths[0], 0, 0,
		0, b.lengths[1], 0,
		0, 0, b.lengths[2],
	})
}

func (b *Box) Volume() float64 {
	if b.ortho {
		return b.lengths[0] * b.lengths[1] * b.lengths[2]
	}
	return math.Abs(mat.Det(b.m))
}

// MinDim is the shortest perpendicular width of the cell, the quantity that
// bounds how far a periodic image can reach into the cell.
func (b *Box) MinDim() float64 {
	w := b.Widths()
	return math.Min(w[0], math.Min(w[1], w[2]))
}

// Widths returns the perpendicular width of the cell along each lattice
// direction: volume divided by the area of the opposing face.
func (b *Box) Widths() [3]float64 {
	if b.ortho {
		return b.lengths
	}
	vol := b.Volume()
	rows := [3][3]float64{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rows[i][j] = b.m.At(i, j)
		}
	}
	var w [3]float64
	for i := 0; i < 3; i++ {
		cr := cross(rows[(i+1)%3], rows[(i+2)%3])
		w[i] = vol / norm(cr)
	}
	return w
}

// Scale returns a new box with every lattice vector multiplied by f.
// Used by the NPT barostat when the cell breathes.
func (b *Box) Scale(f float64) (*Box, error) {
	if b.ortho {
		return NewOrtho([3]float64{b.lengths[0] * f, b.lengths[1] * f, b.lengths[2] * f})
	}
	var m mat.Dense
	m.Scale(f, b.m)
	return NewTriclinic(&m)
}

// Wrap canonicalizes positions into [0, box) with a small inward bias.
func (b *Box) Wrap(pos [][3]float64) [][3]float64 {
	out := make([][3]float64, len(pos))
	if b.ortho {
		for i, p := range pos {
			for k := 0; k < 3; k++ {
				l := b.lengths[k]
				x := math.Mod(p[k], l)
				if x < 0 {
					x += l
				}
				out[i][k] = x*(1-2*wrapEps) + wrapEps*l
			}
		}
		return out
	}
	for i, p := range pos {
		f := b.fractional(p)
		for k := 0; k < 3; k++ {
			x := math.Mod(f[k], 1)
			if x < 0 {
				x++
			}
			f[k] = x*(1-2*wrapEps) + wrapEps
		}
		out[i] = b.cartesian(f)
	}
	return out
}

// Displacement returns the minimum-image vector from a to b.
func (b *Box) Displacement(a, p [3]float64) [3]float64 {
	var d [3]float64
	if b.ortho {
		for k := 0; k < 3; k++ {
			l := b.lengths[k]
			d[k] = p[k] - a[k]
			d[k] -= l * math.Round(d[k]/l)
		}
		return d
	}
	fa, fp := b.fractional(a), b.fractional(p)
	var f [3]float64
	for k := 0; k < 3; k++ {
		f[k] = fp[k] - fa[k]
		f[k] -= math.Round(f[k])
	}
	return b.cartesian(f)
}

// Distance is the minimum-image distance between a and b.
func (b *Box) Distance(a, p [3]float64) float64 {
	return norm(b.Displacement(a, p))
}

func (b *Box) fractional(p [3]float64) [3]float64 {
	// rows of m are lattice vectors, so p = f·m and f = p·inv.
	var f [3]float64
	for k := 0; k < 3; k++ {
		f[k] = p[0]*b.inv.At(0, k) + p[1]*b.inv.At(1, k) + p[2]*b.inv.At(2, k)
	}
	return f
}

func (b *Box) cartesian(f [3]float64) [3]float64 {
	var p [3]float64
	for k := 0; k < 3; k++ {
		p[k] = f[0]*b.m.At(0, k) + f[1]*b.m.At(1, k) + f[2]*b.m.At(2, k)
	}
	return p
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
