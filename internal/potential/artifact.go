package potential

import (
	"encoding/json"
	"fmt"
	"os"
)

// Artifact is the serialized model bundle: hyperparameters plus trained
// parameters. The on-disk representation here is a tabulated pair potential;
// anything satisfying Potential can replace it.
type Artifact struct {
	NTypes int         `json:"ntypes"`
	Rcut   float64     `json:"rcut"`
	Tables []PairTable `json:"tables"`
}

// PairTable samples V(r) for one type pair on a uniform grid over [0, rcut].
type PairTable struct {
	TypeI  int       `json:"type_i"`
	TypeJ  int       `json:"type_j"`
	Values []float64 `json:"values"`
}

// LoadArtifact reads and validates a model bundle from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("potential: read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *Artifact) validate() error {
	if a.NTypes < 1 {
		return fmt.Errorf("%w: ntypes=%d", ErrBadArtifact, a.NTypes)
	}
	if a.Rcut <= 0 {
		return fmt.Errorf("%w: rcut=%g", ErrBadArtifact, a.Rcut)
	}
	for _, tb := range a.Tables {
		if tb.TypeI < 0 || tb.TypeI >= a.NTypes || tb.TypeJ < 0 || tb.TypeJ >= a.NTypes {
			return fmt.Errorf("%w: table pair (%d,%d) out of range", ErrBadArtifact, tb.TypeI, tb.TypeJ)
		}
		if len(tb.Values) < 2 {
			return fmt.Errorf("%w: table pair (%d,%d) needs >= 2 samples", ErrBadArtifact, tb.TypeI, tb.TypeJ)
		}
	}
	return nil
}

// Build compiles the artifact into an evaluatable potential. Missing pair
// tables are symmetrized from their mirror; a pair with no table at all is
// treated as non-interacting.
func (a *Artifact) Build() (*Tabulated, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	t := &Tabulated{
		ntypes: a.NTypes,
		rcut:   a.Rcut,
		tables: make([][]float64, a.NTypes*a.NTypes),
	}
	for _, tb := range a.Tables {
		v := append([]float64(nil), tb.Values...)
		t.tables[tb.TypeI*a.NTypes+tb.TypeJ] = v
		if t.tables[tb.TypeJ*a.NTypes+tb.TypeI] == nil {
			t.tables[tb.TypeJ*a.NTypes+tb.TypeI] = v
		}
	}
	return t, nil
}

// Load reads an artifact and compiles it in one step.
func Load(path string) (*Tabulated, error) {
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	return a.Build()
}

// Tabulated evaluates a grid-sampled pair potential with linear
// interpolation. Immutable after Build.
type Tabulated struct {
	ntypes int
	rcut   float64
	tables [][]float64
}

func (t *Tabulated) Cutoff() float64 { return t.rcut }

func (t *Tabulated) NumTypes() int { return t.ntypes }

func (t *Tabulated) PairEnergy(ti, tj int, r float64) float64 {
	v, _ := t.interp(ti, tj, r)
	return v
}

func (t *Tabulated) PairForce(ti, tj int, r float64) float64 {
	_, slope := t.interp(ti, tj, r)
	return -slope
}

func (t *Tabulated) interp(ti, tj int, r float64) (value, slope float64) {
	if ti < 0 || ti >= t.ntypes || tj < 0 || tj >= t.ntypes {
		return 0, 0
	}
	tab := t.tables[ti*t.ntypes+tj]
	if tab == nil || r >= t.rcut || r < 0 {
		return 0, 0
	}
	h := t.rcut / float64(len(tab)-1)
	i := int(r / h)
	if i >= len(tab)-1 {
		i = len(tab) - 2
	}
	s := (tab[i+1] - tab[i]) / h
	return tab[i] + s*(r-float64(i)*h), s
}
