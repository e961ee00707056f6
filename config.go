package qsim

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config bounds the engines and tunes the shot runner.
type Config struct {
	// MaxQubits is the hard ceiling for dense state vectors. 2^30 complex
	// doubles is 16 GiB.
	MaxQubits int `json:"max_qubits" yaml:"max_qubits"`
	// MaxDensityQubits bounds density operators, which cost 4^n.
	MaxDensityQubits int `json:"max_density_qubits" yaml:"max_density_qubits"`
	// MaxStabilizerQubits bounds tableaux, which cost n^2.
	MaxStabilizerQubits int `json:"max_stabilizer_qubits" yaml:"max_stabilizer_qubits"`
	// Tolerance is the numerical band for reality, hermiticity and
	// normalization checks.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
	// SpectrumCutoff drops eigenpairs at or below it in DensOp.Spectrum.
	SpectrumCutoff float64 `json:"spectrum_cutoff" yaml:"spectrum_cutoff"`

	Workers     int `json:"workers" yaml:"workers"`
	ShotsPerJob int `json:"shots_per_job" yaml:"shots_per_job"`
	// SchedulingTimeout is how long a queued batch may wait for a worker
	// before the wait is logged and counted. Batches never fail on it.
	SchedulingTimeout time.Duration `json:"scheduling_timeout" yaml:"scheduling_timeout"`
	LogLevel          string        `json:"log_level" yaml:"log_level"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		MaxQubits:           30,
		MaxDensityQubits:    14,
		MaxStabilizerQubits: 1 << 14,
		Tolerance:           1e-8,
		SpectrumCutoff:      1e-6,
		Workers:             4,
		ShotsPerJob:         256,
		SchedulingTimeout:   10 * time.Second,
		LogLevel:            "warn",
	}
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the
// file keep their default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engines cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MaxQubits < 1 || c.MaxQubits > 62:
		return fmt.Errorf("config: max_qubits %d: %w", c.MaxQubits, ErrInvalidArgument)
	case c.MaxDensityQubits < 1 || c.MaxDensityQubits > 31:
		return fmt.Errorf("config: max_density_qubits %d: %w", c.MaxDensityQubits, ErrInvalidArgument)
	case c.MaxStabilizerQubits < 1:
		return fmt.Errorf("config: max_stabilizer_qubits %d: %w", c.MaxStabilizerQubits, ErrInvalidArgument)
	case c.Tolerance <= 0 || c.SpectrumCutoff < 0:
		return fmt.Errorf("config: tolerance %g, spectrum_cutoff %g: %w", c.Tolerance, c.SpectrumCutoff, ErrInvalidArgument)
	case c.Workers < 1 || c.ShotsPerJob < 1:
		return fmt.Errorf("config: workers %d, shots_per_job %d: %w", c.Workers, c.ShotsPerJob, ErrInvalidArgument)
	}
	return nil
}

func (c *Config) schedulingTimeout() time.Duration {
	if c != nil && c.SchedulingTimeout > 0 {
		return c.SchedulingTimeout
	}
	return 5 * time.Second
}
