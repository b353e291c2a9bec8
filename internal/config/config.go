// Package config defines the yaml simulation configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt                 = 0.5
	DefaultSteps              = 1000
	DefaultReportEvery        = 100
	DefaultSaveEvery          = 1
	DefaultUpdateEvery        = 5
	DefaultDrBufferNeighbor   = 0.8
	DefaultDrBufferLattice    = 1.0
	DefaultNeighborBufferSize = 1.2
	DefaultChainLength        = 1
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Model      string   `yaml:"model"`       // model artifact path
	DeviModels []string `yaml:"devi_models"` // extra models for force deviation

	Routine     string  `yaml:"routine"` // NVE | NVT_Nose_Hoover | NPT_Nose_Hoover
	Dt          float64 `yaml:"dt"`      // fs
	Steps       int     `yaml:"steps"`
	Temperature float64 `yaml:"temperature"` // Kelvin (NVT/NPT)
	Pressure    float64 `yaml:"pressure"`    // bar (NPT)
	Tau         float64 `yaml:"tau"`         // thermostat relaxation (fs)
	TauP        float64 `yaml:"tau_p"`       // barostat relaxation (fs)
	ChainLength int     `yaml:"chain_length"`

	InitTemperature float64 `yaml:"init_temperature"` // Kelvin; exclusive with input velocities
	Seed            int64   `yaml:"seed"`

	Devices     int    `yaml:"devices"`
	ReportEvery int    `yaml:"report_every"`
	SaveEvery   int    `yaml:"save_every"`
	SavePath    string `yaml:"save_path"`
	SavePrefix  string `yaml:"save_prefix"`

	DrBufferNeighbor   float64 `yaml:"dr_buffer_neighbor"`
	DrBufferLattice    float64 `yaml:"dr_buffer_lattice"`
	NeighborBufferSize float64 `yaml:"neighbor_buffer_size"`
	UpdateEvery        int     `yaml:"update_every"`

	Input InputConfig `yaml:"input"`
}

// InputConfig describes the initial configuration arrays.
type InputConfig struct {
	Positions  string    `yaml:"positions"`   // text file, one "x y z" row per atom
	Velocities string    `yaml:"velocities"`  // optional, same layout
	Box        []float64 `yaml:"box"`         // 1, 3 or 9 numbers
	TypeBounds []int     `yaml:"type_bounds"` // ascending indices, first 0, last N
	Masses     []float64 `yaml:"masses"`      // per type, AMU
}

func DefaultConfig() *Config {
	return &Config{
		Routine:            "NVE",
		Dt:                 DefaultDt,
		Steps:              DefaultSteps,
		ChainLength:        DefaultChainLength,
		Devices:            1,
		ReportEvery:        DefaultReportEvery,
		SaveEvery:          DefaultSaveEvery,
		SavePath:           ".",
		SavePrefix:         "run",
		DrBufferNeighbor:   DefaultDrBufferNeighbor,
		DrBufferLattice:    DefaultDrBufferLattice,
		NeighborBufferSize: DefaultNeighborBufferSize,
		UpdateEvery:        DefaultUpdateEvery,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks everything that must be fatal before any simulation work.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model artifact path required", ErrInvalidConfig)
	}
	switch c.Routine {
	case "NVE", "NVT_Nose_Hoover", "NPT_Nose_Hoover":
	default:
		return fmt.Errorf("%w: unsupported routine %q", ErrInvalidConfig, c.Routine)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, c.Dt)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidConfig, c.Steps)
	}
	if c.ReportEvery <= 0 || c.SaveEvery <= 0 || c.UpdateEvery <= 0 {
		return fmt.Errorf("%w: report_every, save_every and update_every must be positive", ErrInvalidConfig)
	}
	if c.NeighborBufferSize < 1 {
		return fmt.Errorf("%w: neighbor_buffer_size must be >= 1", ErrInvalidConfig)
	}
	if (c.Input.Velocities == "") == (c.InitTemperature <= 0) {
		return fmt.Errorf("%w: provide exactly one of input velocities or init_temperature", ErrInvalidConfig)
	}
	if c.Input.Positions == "" {
		return fmt.Errorf("%w: input positions required", ErrInvalidConfig)
	}
	switch len(c.Input.Box) {
	case 1, 3, 9:
	default:
		return fmt.Errorf("%w: box must have 1, 3 or 9 elements", ErrInvalidConfig)
	}
	if len(c.Input.TypeBounds) < 2 || c.Input.TypeBounds[0] != 0 {
		return fmt.Errorf("%w: type_bounds must start at 0 and contain at least one type", ErrInvalidConfig)
	}
	if !sort.IntsAreSorted(c.Input.TypeBounds) {
		return fmt.Errorf("%w: type_bounds must be ascending", ErrInvalidConfig)
	}
	if len(c.Input.Masses) != len(c.Input.TypeBounds)-1 {
		return fmt.Errorf("%w: need one mass per type, got %d for %d types",
			ErrInvalidConfig, len(c.Input.Masses), len(c.Input.TypeBounds)-1)
	}
	return nil
}

// TypeCount converts the type boundary indices into per-type atom counts.
func (c *Config) TypeCount() []int {
	tb := c.Input.TypeBounds
	counts := make([]int, len(tb)-1)
	for i := range counts {
		counts[i] = tb[i+1] - tb[i]
	}
	return counts
}
