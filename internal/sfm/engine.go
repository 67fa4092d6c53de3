// Package sfm defines the boundary to the external structure-from-motion
// engine. The reconstruction core depends only on the Engine contract;
// engines are black boxes that consume image folders and emit artifacts in
// their own formats.
package sfm

import (
	"context"
	"errors"

	"github.com/banshee-data/rigmap/internal/rig"
)

// ErrEngineFailure wraps any failure inside an external pipeline stage.
// Fatal for the whole run; no partial reconstruction is emitted.
var ErrEngineFailure = errors.New("reconstruction engine failure")

// Workspace names the artifact locations for one reconstruction run. The
// database and sparse output formats are owned by the engine and opaque here.
type Workspace struct {
	// ImageRoot is the scene root; image names inside the engine database
	// are paths relative to it (<rig>/<camera>/<frame>).
	ImageRoot string

	// ImageListPath, when non-empty, names a file restricting the engine
	// to the listed images (the union of all validated rigs' images).
	ImageListPath string

	// DatabasePath is the engine's feature/match database file.
	DatabasePath string

	// SparseDir receives the reconstruction output.
	SparseDir string

	// Seed makes engine randomness deterministic when supported.
	Seed int
}

// MatchOptions tunes the matching stage. Matching is always exhaustive over
// the full image union so cross-rig correspondences are discoverable; these
// toggles only exploit known rig geometry on top of that.
type MatchOptions struct {
	// SkipSameRigPairs skips pairs whose relative pose is already fixed by
	// a rig constraint.
	SkipSameRigPairs bool

	// RigVerification verifies tentative matches against rig geometry.
	RigVerification bool
}

// Engine is the capability interface over an external SfM engine. Calls are
// strictly ordered by the orchestrator: features, then matches, then mapping.
// Each call blocks until the stage completes for the full image union.
type Engine interface {
	// Name identifies the engine in logs and run records.
	Name() string

	// ExtractFeatures runs per-image feature extraction over the scene.
	// Per-camera intrinsics hints are taken from the scene's pose records.
	ExtractFeatures(ctx context.Context, ws Workspace, scene *rig.SceneSet) error

	// MatchExhaustive runs exhaustive matching across the image union.
	MatchExhaustive(ctx context.Context, ws Workspace, opts MatchOptions) error

	// MapIncremental runs constrained incremental mapping. Each rig's
	// internal relative poses are held fixed at the supplied constraints;
	// the engine estimates only each rig's placement in world space.
	MapIncremental(ctx context.Context, ws Workspace, constraints []rig.ConstraintSet) error
}
