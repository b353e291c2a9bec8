// Package storage persists simulation runs: metadata as JSON, per-report
// diagnostics as CSV, and trajectory frames as raw little-endian float64
// arrays. It also reads the plain-text input arrays.
package storage

import (
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one finished (or aborted) run.
type RunMetadata struct {
	Prefix    string    `json:"prefix"`
	Routine   string    `json:"routine"`
	Dt        float64   `json:"dt"`
	Steps     int       `json:"steps"`
	Atoms     int       `json:"atoms"`
	SaveEvery int       `json:"save_every"`
	Seed      int64     `json:"seed"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is one diagnostics line of the driver.
type Report struct {
	Step        int
	Temperature float64 // Kelvin
	Kinetic     float64 // eV
	Potential   float64 // eV
	Invariant   float64 // eV
	ModelDevi   float64 // eV/Å
	Seconds     float64
}

// SaveRun writes <prefix>_meta.json, <prefix>_report.csv, <prefix>_pos.bin
// and <prefix>_vel.bin under the store directory.
func (s *Store) SaveRun(meta RunMetadata, pos, vel [][][3]float64, reports []Report) error {
	if err := s.Init(); err != nil {
		return err
	}
	metaPath := filepath.Join(s.baseDir, meta.Prefix+"_meta.json")
	f, err := os.Create(metaPath)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := s.saveReports(meta.Prefix, reports); err != nil {
		return err
	}
	if err := WriteFrames(filepath.Join(s.baseDir, meta.Prefix+"_pos.bin"), pos); err != nil {
		return err
	}
	return WriteFrames(filepath.Join(s.baseDir, meta.Prefix+"_vel.bin"), vel)
}

func (s *Store) saveReports(prefix string, reports []Report) error {
	f, err := os.Create(filepath.Join(s.baseDir, prefix+"_report.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"step", "temperature", "kinetic", "potential", "invariant", "model_devi", "seconds"}); err != nil {
		return err
	}
	for _, r := range reports {
		rec := []string{
			strconv.Itoa(r.Step),
			fmtFloat(r.Temperature),
			fmtFloat(r.Kinetic),
			fmtFloat(r.Potential),
			fmtFloat(r.Invariant),
			fmtFloat(r.ModelDevi),
			fmtFloat(r.Seconds),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// LoadReports reads a run's diagnostics back for plotting.
func (s *Store) LoadReports(prefix string) ([]Report, error) {
	f, err := os.Open(filepath.Join(s.baseDir, prefix+"_report.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("storage: empty report file for %q", prefix)
	}
	reports := make([]Report, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != 7 {
			return nil, fmt.Errorf("storage: malformed report row %v", row)
		}
		step, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, err
		}
		vals := make([]float64, 6)
		for i := 0; i < 6; i++ {
			if vals[i], err = strconv.ParseFloat(row[i+1], 64); err != nil {
				return nil, err
			}
		}
		reports = append(reports, Report{
			Step: step, Temperature: vals[0], Kinetic: vals[1],
			Potential: vals[2], Invariant: vals[3], ModelDevi: vals[4], Seconds: vals[5],
		})
	}
	return reports, nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteFrames stores trajectory frames as a small header (frames, atoms)
// followed by row-major float64 triplets.
func WriteFrames(path string, frames [][][3]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	atoms := 0
	if len(frames) > 0 {
		atoms = len(frames[0])
	}
	hdr := [2]int64{int64(len(frames)), int64(atoms)}
	if err := binary.Write(f, binary.LittleEndian, hdr[:]); err != nil {
		return err
	}
	for _, fr := range frames {
		if len(fr) != atoms {
			return fmt.Errorf("storage: ragged frame: %d atoms, want %d", len(fr), atoms)
		}
		if err := binary.Write(f, binary.LittleEndian, fr); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrames loads a trajectory written by WriteFrames.
func ReadFrames(path string) ([][][3]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var hdr [2]int64
	if err := binary.Read(f, binary.LittleEndian, hdr[:]); err != nil {
		return nil, err
	}
	frames := make([][][3]float64, hdr[0])
	for i := range frames {
		frames[i] = make([][3]float64, hdr[1])
		if err := binary.Read(f, binary.LittleEndian, frames[i]); err != nil {
			return nil, err
		}
	}
	return frames, nil
}
