package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRunRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	pos := [][][3]float64{
		{{0, 0, 0}, {1, 2, 3}},
		{{0.5, 0, 0}, {1, 2, 3.5}},
	}
	vel := [][][3]float64{
		{{0.1, 0, 0}, {0, -0.1, 0}},
		{{0.2, 0, 0}, {0, -0.2, 0}},
	}
	reports := []Report{
		{Step: 0, Temperature: 300, Kinetic: 1.5, Potential: -10, Invariant: -8.5, ModelDevi: 0.01, Seconds: 0},
		{Step: 100, Temperature: 298.5, Kinetic: 1.49, Potential: -9.99, Invariant: -8.5, ModelDevi: 0.02, Seconds: 1.2},
	}
	meta := RunMetadata{
		Prefix: "water", Routine: "NVE", Dt: 0.5, Steps: 100,
		Atoms: 2, SaveEvery: 50, Seed: 42, Timestamp: time.Now().UTC(),
	}
	require.NoError(t, s.SaveRun(meta, pos, vel, reports))

	loaded, err := s.LoadReports("water")
	require.NoError(t, err)
	assert.Equal(t, reports, loaded)

	gotPos, err := ReadFrames(filepath.Join(dir, "water_pos.bin"))
	require.NoError(t, err)
	assert.Equal(t, pos, gotPos)

	gotVel, err := ReadFrames(filepath.Join(dir, "water_vel.bin"))
	require.NoError(t, err)
	assert.Equal(t, vel, gotVel)

	_, err = os.Stat(filepath.Join(dir, "water_meta.json"))
	assert.NoError(t, err)
}

func TestWriteFramesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, WriteFrames(path, nil))
	frames, err := ReadFrames(path)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestLoadReportsMissing(t *testing.T) {
	_, err := New(t.TempDir()).LoadReports("nope")
	assert.Error(t, err)
}

func TestReadVectors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coord.txt")
	data := "# positions\n1 2 3\n\n4.5 5.5 6.5\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	rows, err := ReadVectors(path)
	require.NoError(t, err)
	assert.Equal(t, [][3]float64{{1, 2, 3}, {4.5, 5.5, 6.5}}, rows)
}

func TestReadVectorsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 2\n"), 0644))
	_, err := ReadVectors(path)
	assert.Error(t, err)
}

func TestVectorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vel.txt")
	rows := [][3]float64{{0.25, -1.5, 3e-4}, {1e6, 0, -2}}
	require.NoError(t, WriteVectors(path, rows))
	got, err := ReadVectors(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
