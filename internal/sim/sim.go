// Package sim drives the simulation: it assembles the engine from the
// configuration, advances the state in chunks, and recovers from the three
// overflow classes (neighbor buffer, drift/lattice, hard geometry) by
// discarding the provisional chunk and retrying with adjusted structures.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atomforge/mdsim/internal/config"
	"github.com/atomforge/mdsim/internal/device"
	"github.com/atomforge/mdsim/internal/ensemble"
	"github.com/atomforge/mdsim/internal/geom"
	"github.com/atomforge/mdsim/internal/metrics"
	"github.com/atomforge/mdsim/internal/neighbor"
	"github.com/atomforge/mdsim/internal/partition"
	"github.com/atomforge/mdsim/internal/potential"
	"github.com/atomforge/mdsim/internal/storage"
)

var (
	ErrBadInput = errors.New("sim: initial configuration inconsistent")
	ErrUnstable = errors.New("sim: drift overflow persists at single-step neighbor updates; the system is moving too fast for the buffer")
)

// chunkSize caps how many steps run between overflow checks. Reports always
// land on a chunk boundary, so chunks shrink to hit the reporting stride.
const chunkSize = 10

// Simulation owns the assembled engine and the committed state. All mutation
// during a chunk happens on a clone; the committed state only advances when
// the chunk finishes without overflow.
type Simulation struct {
	cfg     *config.Config
	part    *partition.Partitioner
	backend device.Backend
	routine ensemble.Routine
	state   *ensemble.State
	rcut    float64

	field      *potential.Field
	deviFields []*potential.Field

	static  potential.StaticArgs
	nbrs    *neighbor.List
	lattice *geom.LatticeCandidate

	updateEvery int
	bufferSize  float64

	out io.Writer
	log *logrus.Entry

	posFrames [][][3]float64
	velFrames [][][3]float64
	reports   []storage.Report
	lastTick  time.Time
}

// New loads the model artifacts and input arrays named by the configuration
// and assembles the simulation.
func New(cfg *config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pots := make([]potential.Potential, 0, 1+len(cfg.DeviModels))
	primary, err := potential.Load(cfg.Model)
	if err != nil {
		return nil, err
	}
	pots = append(pots, primary)
	for _, path := range cfg.DeviModels {
		p, err := potential.Load(path)
		if err != nil {
			return nil, err
		}
		pots = append(pots, p)
	}

	pos, err := storage.ReadVectors(cfg.Input.Positions)
	if err != nil {
		return nil, err
	}
	var vel [][3]float64
	if cfg.Input.Velocities != "" {
		if vel, err = storage.ReadVectors(cfg.Input.Velocities); err != nil {
			return nil, err
		}
	}
	return NewWithModels(cfg, pots, pos, vel)
}

// NewWithModels assembles a simulation from in-memory potentials and arrays.
// The first potential drives the dynamics; any others only contribute to the
// model deviation diagnostic.
func NewWithModels(cfg *config.Config, pots []potential.Potential, pos, vel [][3]float64) (*Simulation, error) {
	if len(pots) == 0 {
		return nil, fmt.Errorf("%w: no potential", ErrBadInput)
	}
	typeCount := cfg.TypeCount()
	total := 0
	for _, c := range typeCount {
		total += c
	}
	if len(pos) != total {
		return nil, fmt.Errorf("%w: %d positions for %d atoms in type_bounds", ErrBadInput, len(pos), total)
	}
	if vel != nil && len(vel) != total {
		return nil, fmt.Errorf("%w: %d velocities for %d atoms", ErrBadInput, len(vel), total)
	}
	if (vel == nil) == (cfg.InitTemperature <= 0) {
		return nil, fmt.Errorf("%w: provide exactly one of velocities or init_temperature", ErrBadInput)
	}

	box, err := geom.FromSlice(cfg.Input.Box)
	if err != nil {
		return nil, err
	}
	backend := device.Auto(cfg.Devices)
	part, err := partition.New(typeCount, backend.Devices())
	if err != nil {
		return nil, err
	}

	rcut := pots[0].Cutoff()
	fields := make([]*potential.Field, len(pots))
	for i, p := range pots {
		if fields[i], err = potential.Bind(p, part, backend); err != nil {
			return nil, err
		}
	}

	routine, err := ensemble.New(cfg.Routine, cfg.Dt, ensemble.Params{
		Temperature: cfg.Temperature,
		Pressure:    cfg.Pressure,
		Tau:         cfg.Tau,
		TauP:        cfg.TauP,
		ChainLength: cfg.ChainLength,
	})
	if err != nil {
		return nil, err
	}

	massPerAtom := make([]float64, 0, total)
	for t, c := range typeCount {
		for i := 0; i < c; i++ {
			massPerAtom = append(massPerAtom, cfg.Input.Masses[t])
		}
	}
	state := ensemble.NewState(pos, massPerAtom, box)
	if vel != nil {
		state.SetVelocities(vel)
	} else {
		state.InitVelocities(cfg.InitTemperature, cfg.Seed)
	}

	s := &Simulation{
		cfg:         cfg,
		part:        part,
		backend:     backend,
		routine:     routine,
		state:       state,
		rcut:        rcut,
		field:       fields[0],
		deviFields:  fields[1:],
		updateEvery: cfg.UpdateEvery,
		bufferSize:  cfg.NeighborBufferSize,
		out:         os.Stdout,
		log: logrus.WithFields(logrus.Fields{
			"routine": routine.Name(),
			"atoms":   total,
			"backend": backend.Name(),
		}),
	}

	if geom.UseNeighborList(box, rcut) {
		if err := s.enterNeighborMode(); err != nil {
			return nil, err
		}
	} else {
		if err := s.enterLatticeMode(box); err != nil {
			return nil, err
		}
	}

	if err := routine.Init(state, s.bound(s.field)); err != nil {
		return nil, err
	}
	s.log.Infof("initial evaluation: PE=%.6f eV, T=%.1f K, mode=%s",
		state.PotentialEnergy, state.TemperatureK(), s.modeName())
	return s, nil
}

func (s *Simulation) SetOutput(w io.Writer) { s.out = w }

// State exposes the committed state for inspection and persistence.
func (s *Simulation) State() *ensemble.State { return s.state }

func (s *Simulation) UsingNeighborList() bool { return s.static.UseNeighborList }

func (s *Simulation) modeName() string {
	if s.static.UseNeighborList {
		return "neighbor_list"
	}
	return "lattice"
}

func (s *Simulation) enterNeighborMode() error {
	nbrs, err := neighbor.New(s.state.Box, s.part, s.rcut, s.cfg.DrBufferNeighbor, s.bufferSize)
	if err != nil {
		return err
	}
	if err := nbrs.Allocate(s.state.Position); err != nil {
		return err
	}
	s.nbrs = nbrs
	s.lattice = nil
	s.static = potential.StaticArgs{UseNeighborList: true, TypeCount: s.part.TypeCount()}
	return nil
}

// enterLatticeMode computes the image candidate set with a buffer margin so a
// slowly shrinking box stays covered between recomputations.
func (s *Simulation) enterLatticeMode(box *geom.Box) error {
	lc, err := geom.ComputeLatticeCandidate(box, s.rcut+s.cfg.DrBufferLattice)
	if err != nil {
		return err
	}
	s.lattice = lc
	s.nbrs = nil
	s.static = potential.StaticArgs{UseNeighborList: false, TypeCount: s.part.TypeCount(), Lattice: lc}
	return nil
}

// bound adapts a Field to the integrator's force-field contract, threading in
// the current spatial mode.
func (s *Simulation) bound(f *potential.Field) ensemble.ForceField {
	return &boundField{sim: s, field: f}
}

type boundField struct {
	sim   *Simulation
	field *potential.Field
}

func (b *boundField) Eval(pos [][3]float64, box *geom.Box) (float64, [][3]float64, float64, error) {
	return b.field.Eval(pos, box, b.sim.static, b.sim.nbrs)
}

// chunkResult carries the overflow flags and provisional samples of one chunk.
type chunkResult struct {
	bufferOverflow  bool
	drOverflow      bool
	latticeOverflow bool
	hardOverflow    bool

	box     *geom.Box      // trial box at the boundary, for lattice recomputation
	lastPos [][3]float64   // trial positions at the boundary, for capacity measurement
	pos     [][][3]float64
	vel     [][][3]float64
}

func (r *chunkResult) clean() bool {
	return !r.bufferOverflow && !r.drOverflow && !r.latticeOverflow && !r.hardOverflow
}

// Run advances the committed state by the given number of steps, honoring
// cancellation between chunks and writing the diagnostics report to the
// configured writer.
func (s *Simulation) Run(ctx context.Context, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("sim: steps must be positive, got %d", steps)
	}
	fmt.Fprintln(s.out, "# Step\tTemp\tKE\tPE\tInvariant\tModel Dev\ttime")
	s.lastTick = time.Now()
	s.report()
	s.sample(s.state)

	done := 0
	consecBuffer := 0
	for done < steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n := chunkSize
		if rem := steps - done; rem < n {
			n = rem
		}
		if toReport := s.cfg.ReportEvery - done%s.cfg.ReportEvery; toReport < n {
			n = toReport
		}

		trial := s.state.Clone()
		res, err := s.runChunk(trial, n)
		if err != nil {
			return err
		}

		if res.clean() {
			s.state = trial
			done += n
			consecBuffer = 0
			s.posFrames = append(s.posFrames, res.pos...)
			s.velFrames = append(s.velFrames, res.vel...)
			if done%s.cfg.ReportEvery == 0 || done == steps {
				s.report()
			}
			continue
		}

		// Every overflow path discards the chunk and retries from the
		// committed state with adjusted structures.
		if s.nbrs != nil {
			s.nbrs.SetBox(s.state.Box)
		}
		switch {
		case res.hardOverflow:
			s.log.Warnf("box shrank below 2x cutoff at step %d, switching to lattice enumeration", s.state.Step)
			if err := s.enterLatticeMode(s.state.Box); err != nil {
				return err
			}
		case res.bufferOverflow:
			consecBuffer++
			if consecBuffer >= 2 {
				s.bufferSize += 0.05
				s.log.Warnf("neighbor buffer overflowed twice in a row, growing buffer size to %.2f", s.bufferSize)
			} else {
				s.log.Infof("neighbor buffer overflow at step %d, reallocating", s.state.Step)
			}
			// Capacity is measured where the overflow happened; the table is
			// then rebuilt at the committed positions the retry starts from.
			if err := s.nbrs.Reallocate(res.lastPos, s.bufferSize); err != nil {
				return err
			}
			if err := s.nbrs.Update(s.state.Position); err != nil {
				return err
			}
		case res.drOverflow:
			if s.updateEvery <= 1 {
				return ErrUnstable
			}
			s.updateEvery /= 2
			s.log.Warnf("atoms drifted past half the skin between rebuilds, halving update stride to %d", s.updateEvery)
			if err := s.nbrs.Allocate(s.state.Position); err != nil {
				return err
			}
		case res.latticeOverflow:
			s.log.Infof("lattice candidate no longer covers the cutoff, recomputing")
			if err := s.enterLatticeMode(res.box); err != nil {
				return err
			}
		}
	}
	return nil
}

// runChunk advances the trial state n steps, re-binning the neighbor list at
// the update stride, and performs the boundary geometry checks. It never
// touches the committed state.
func (s *Simulation) runChunk(trial *ensemble.State, n int) (*chunkResult, error) {
	res := &chunkResult{}
	ff := s.bound(s.field)

	for k := 0; k < n; k++ {
		if err := s.routine.Step(trial, ff); err != nil {
			return nil, err
		}
		if s.static.UseNeighborList && ((k+1)%s.updateEvery == 0 || k == n-1) {
			s.nbrs.SetBox(trial.Box)
			if s.nbrs.CheckDrOverflow(trial.Position) {
				res.drOverflow = true
			}
			if err := s.nbrs.Update(trial.Position); err != nil {
				return nil, err
			}
			if s.nbrs.Overflow() {
				res.bufferOverflow = true
			}
		}
		if trial.Step%s.cfg.SaveEvery == 0 {
			s.sampleInto(res, trial)
		}
	}

	res.box = trial.Box
	res.lastPos = trial.Position
	if s.static.UseNeighborList {
		if !geom.UseNeighborList(trial.Box, s.rcut) {
			res.hardOverflow = true
		}
	} else if !s.lattice.Sufficient(trial.Box, s.rcut) {
		res.latticeOverflow = true
	}
	return res, nil
}

func (s *Simulation) sample(st *ensemble.State) {
	s.posFrames = append(s.posFrames, cloneVecs(st.Position))
	s.velFrames = append(s.velFrames, cloneVecs(st.Velocity))
}

func (s *Simulation) sampleInto(res *chunkResult, st *ensemble.State) {
	res.pos = append(res.pos, cloneVecs(st.Position))
	res.vel = append(res.vel, cloneVecs(st.Velocity))
}

// report writes one tab-separated diagnostics line and records it for
// persistence.
func (s *Simulation) report() {
	st := s.state
	now := time.Now()
	elapsed := now.Sub(s.lastTick).Seconds()
	s.lastTick = now

	devi := s.modelDeviation()
	r := storage.Report{
		Step:        st.Step,
		Temperature: st.TemperatureK(),
		Kinetic:     st.KineticEnergy(),
		Potential:   st.PotentialEnergy,
		Invariant:   s.routine.Invariant(st),
		ModelDevi:   devi,
		Seconds:     elapsed,
	}
	s.reports = append(s.reports, r)
	fmt.Fprintf(s.out, "%d\t%.2f\t%.4f\t%.4f\t%.4f\t%.4f\t%.2f\n",
		r.Step, r.Temperature, r.Kinetic, r.Potential, r.Invariant, r.ModelDevi, r.Seconds)
}

// modelDeviation evaluates every extra model at the committed positions and
// returns the max per-component force deviation across models.
func (s *Simulation) modelDeviation() float64 {
	if len(s.deviFields) == 0 {
		return 0
	}
	forces := make([][][3]float64, 0, len(s.deviFields)+1)
	forces = append(forces, s.state.Force)
	for _, f := range s.deviFields {
		_, fr, _, err := f.Eval(s.state.Position, s.state.Box, s.static, s.nbrs)
		if err != nil {
			s.log.Warnf("model deviation evaluation failed: %v", err)
			return 0
		}
		forces = append(forces, fr)
	}
	return metrics.ModelDeviation(forces)
}

// Save persists the sampled trajectory, the diagnostics and the run metadata
// under the configured path and prefix.
func (s *Simulation) Save() error {
	store := storage.New(s.cfg.SavePath)
	meta := storage.RunMetadata{
		Prefix:    s.cfg.SavePrefix,
		Routine:   s.routine.Name(),
		Dt:        s.cfg.Dt,
		Steps:     s.state.Step,
		Atoms:     s.part.TotalAtoms(),
		SaveEvery: s.cfg.SaveEvery,
		Seed:      s.cfg.Seed,
		Timestamp: time.Now().UTC(),
	}
	return store.SaveRun(meta, s.posFrames, s.velFrames, s.reports)
}

// Reports returns the diagnostics recorded so far.
func (s *Simulation) Reports() []storage.Report {
	return append([]storage.Report(nil), s.reports...)
}

func cloneVecs(x [][3]float64) [][3]float64 {
	c := make([][3]float64, len(x))
	copy(c, x)
	return c
}
