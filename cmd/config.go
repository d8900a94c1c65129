package cmd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pgasrt/pgasrt/rt"
	"github.com/pgasrt/pgasrt/rt/trace"
)

// FileConfig is the YAML shape of a runtime config file. Pointer fields
// distinguish "absent" from "zero" so the file only overrides what it sets.
type FileConfig struct {
	PEs              *int    `yaml:"pes"`
	RegionSize       *int64  `yaml:"region_size"`
	Slots            *int    `yaml:"slots"`
	BarrierTimeoutMs *int64  `yaml:"barrier_timeout_ms"`
	Pin              *bool   `yaml:"pin"`
	Trace            *string `yaml:"trace"`
}

// LoadConfigFile reads and parses a YAML runtime config file.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &fc, nil
}

// Apply overlays the file's set fields onto cfg.
func (fc *FileConfig) Apply(cfg *rt.Config) {
	if fc.PEs != nil {
		cfg.PEs = *fc.PEs
	}
	if fc.RegionSize != nil {
		cfg.RegionSize = *fc.RegionSize
	}
	if fc.Slots != nil {
		cfg.Slots = *fc.Slots
	}
	if fc.BarrierTimeoutMs != nil {
		cfg.BarrierTimeout = time.Duration(*fc.BarrierTimeoutMs) * time.Millisecond
	}
	if fc.Pin != nil {
		cfg.PinThreads = *fc.Pin
	}
	if fc.Trace != nil {
		cfg.TraceLevel = trace.Level(*fc.Trace)
	}
}
