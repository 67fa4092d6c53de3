// Package config holds the run configuration for the reconstruction
// pipeline. Config files are JSON with every field optional; omitted fields
// keep their defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RunConfig is the optional JSON-file form of the pipeline configuration.
// Pointer fields distinguish "unset" from zero values.
type RunConfig struct {
	// PoseFileName is the pose file looked for in each rig folder.
	PoseFileName *string `json:"pose_file_name,omitempty"`

	// RefCamera names the reference camera used as each rig's frame.
	RefCamera *string `json:"ref_camera,omitempty"`

	// SkipSameRigPairs and RigVerification tune rig-aware matching.
	SkipSameRigPairs *bool `json:"skip_same_rig_pairs,omitempty"`
	RigVerification  *bool `json:"rig_verification,omitempty"`

	// RandomSeed seeds engine randomness for reproducible runs.
	RandomSeed *int `json:"random_seed,omitempty"`

	// PlotRigLayout and WriteReport toggle run diagnostics.
	PlotRigLayout *bool `json:"plot_rig_layout,omitempty"`
	WriteReport   *bool `json:"write_report,omitempty"`
}

// Resolved is the fully defaulted configuration consumed by the pipeline.
type Resolved struct {
	PoseFileName     string
	RefCamera        string
	SkipSameRigPairs bool
	RigVerification  bool
	RandomSeed       int
	PlotRigLayout    bool
	WriteReport      bool
}

// Default returns the resolved defaults: Blender exporter pose file name,
// Camera0 reference, rig-aware matching on, seed 0, diagnostics on.
func Default() Resolved {
	return Resolved{
		PoseFileName:     "cameras.json",
		RefCamera:        "Camera0",
		SkipSameRigPairs: true,
		RigVerification:  true,
		RandomSeed:       0,
		PlotRigLayout:    true,
		WriteReport:      true,
	}
}

// Load reads a RunConfig from a JSON file. The path must have a .json
// extension; the file is size-capped as a safety measure.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values that can be wrong on their own.
func (c *RunConfig) Validate() error {
	if c.PoseFileName != nil && *c.PoseFileName == "" {
		return fmt.Errorf("pose_file_name must not be empty")
	}
	if c.PoseFileName != nil && filepath.Base(*c.PoseFileName) != *c.PoseFileName {
		return fmt.Errorf("pose_file_name must be a bare file name, got %q", *c.PoseFileName)
	}
	if c.RandomSeed != nil && *c.RandomSeed < 0 {
		return fmt.Errorf("random_seed must be non-negative, got %d", *c.RandomSeed)
	}
	return nil
}

// Apply overlays the set fields of c onto r and returns the result.
func (c *RunConfig) Apply(r Resolved) Resolved {
	if c == nil {
		return r
	}
	if c.PoseFileName != nil {
		r.PoseFileName = *c.PoseFileName
	}
	if c.RefCamera != nil {
		r.RefCamera = *c.RefCamera
	}
	if c.SkipSameRigPairs != nil {
		r.SkipSameRigPairs = *c.SkipSameRigPairs
	}
	if c.RigVerification != nil {
		r.RigVerification = *c.RigVerification
	}
	if c.RandomSeed != nil {
		r.RandomSeed = *c.RandomSeed
	}
	if c.PlotRigLayout != nil {
		r.PlotRigLayout = *c.PlotRigLayout
	}
	if c.WriteReport != nil {
		r.WriteReport = *c.WriteReport
	}
	return r
}
