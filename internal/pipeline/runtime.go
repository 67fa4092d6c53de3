// Package pipeline sequences the reconstruction run: scene scanning, rig
// constraint building and the external engine stages. This package is the
// composition root: it imports rig, sfm, rundb and monitor, and none of
// those import pipeline.
package pipeline

import (
	"github.com/banshee-data/rigmap/internal/config"
	"github.com/banshee-data/rigmap/internal/fsutil"
	"github.com/banshee-data/rigmap/internal/rundb"
	"github.com/banshee-data/rigmap/internal/sfm"
	"github.com/banshee-data/rigmap/internal/timeutil"
)

// Runtime bundles the dependencies for one reconstruction run. Passing a
// Runtime through the orchestrator keeps wiring explicit and testing
// deterministic; there is no process-wide state.
type Runtime struct {
	// InputRoot is the scene root containing one folder per rig.
	InputRoot string

	// OutputDir receives the reconstruction artifacts, diagnostics and the
	// optional run ledger. Created only once validation has succeeded.
	OutputDir string

	// Engine is the external reconstruction engine.
	Engine sfm.Engine

	// FS defaults to the OS filesystem.
	FS fsutil.FileSystem

	// Clock defaults to the real clock. Stage timings come from here.
	Clock timeutil.Clock

	// Ledger is the optional run ledger. Nil disables run recording;
	// ledger write failures are logged, never fatal.
	Ledger *rundb.RunDB

	// Config is the resolved run configuration.
	Config config.Resolved
}

func (rt Runtime) withDefaults() Runtime {
	if rt.FS == nil {
		rt.FS = fsutil.OSFileSystem{}
	}
	if rt.Clock == nil {
		rt.Clock = timeutil.RealClock{}
	}
	return rt
}
