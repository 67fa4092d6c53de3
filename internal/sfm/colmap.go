package sfm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/banshee-data/rigmap/internal/fsutil"
	"github.com/banshee-data/rigmap/internal/monitoring"
	"github.com/banshee-data/rigmap/internal/rig"
)

// errTailBytes bounds how much engine output is attached to a stage error.
const errTailBytes = 2048

// Colmap drives the COLMAP command-line binaries as the reconstruction
// engine: feature_extractor, exhaustive_matcher, rig_configurator and mapper.
type Colmap struct {
	// Bin is the COLMAP executable, resolved via PATH when relative.
	Bin string

	fsys fsutil.FileSystem
}

// NewColmap returns a Colmap engine using the given binary.
func NewColmap(bin string) *Colmap {
	if bin == "" {
		bin = "colmap"
	}
	return &Colmap{Bin: bin, fsys: fsutil.OSFileSystem{}}
}

// Name identifies the engine.
func (c *Colmap) Name() string { return "colmap" }

// ExtractFeatures runs COLMAP feature extraction with one camera per image
// folder. When every pose record carries the same lens/sensor intrinsics the
// shared focal length factor (focal / sensor width) is forwarded as the
// extractor's prior.
func (c *Colmap) ExtractFeatures(ctx context.Context, ws Workspace, scene *rig.SceneSet) error {
	args := []string{
		"feature_extractor",
		"--database_path", ws.DatabasePath,
		"--image_path", ws.ImageRoot,
		"--ImageReader.single_camera_per_folder", "1",
	}
	if ws.ImageListPath != "" {
		args = append(args, "--image_list_path", ws.ImageListPath)
	}
	if factor, ok := sharedFocalFactor(scene); ok {
		args = append(args, "--ImageReader.default_focal_length_factor",
			strconv.FormatFloat(factor, 'f', 6, 64))
	}
	return c.run(ctx, args...)
}

// MatchExhaustive runs exhaustive matching over the image union. The rig
// toggles have no standalone CLI flags; COLMAP picks the rig geometry up from
// the database once the rig configuration is applied, so they are logged and
// otherwise left to the engine.
func (c *Colmap) MatchExhaustive(ctx context.Context, ws Workspace, opts MatchOptions) error {
	if opts.SkipSameRigPairs || opts.RigVerification {
		monitoring.Logf("colmap: rig-aware matching handled via database rig configuration")
	}
	return c.run(ctx, "exhaustive_matcher", "--database_path", ws.DatabasePath)
}

// MapIncremental applies the rig configuration to the database and runs the
// incremental mapper. The rig constraints are serialized to rig_config.json
// next to the database in COLMAP's rig configuration format.
func (c *Colmap) MapIncremental(ctx context.Context, ws Workspace, constraints []rig.ConstraintSet) error {
	if len(constraints) > 0 {
		cfgPath := filepath.Join(filepath.Dir(ws.DatabasePath), "rig_config.json")
		if err := WriteRigConfig(c.fsys, cfgPath, constraints); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineFailure, err)
		}
		if err := c.run(ctx, "rig_configurator",
			"--database_path", ws.DatabasePath,
			"--rig_config_path", cfgPath); err != nil {
			return err
		}
	}
	return c.run(ctx, "mapper",
		"--database_path", ws.DatabasePath,
		"--image_path", ws.ImageRoot,
		"--output_path", ws.SparseDir,
		"--random_seed", strconv.Itoa(ws.Seed))
}

func (c *Colmap) run(ctx context.Context, args ...string) error {
	monitoring.Logf("colmap %s...", args[0])
	cmd := exec.CommandContext(ctx, c.Bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		tail := out
		if len(tail) > errTailBytes {
			tail = tail[len(tail)-errTailBytes:]
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrEngineFailure, args[0], err, tail)
	}
	return nil
}

// rigConfigCamera mirrors one sensor entry in COLMAP's rig configuration
// document. Rotation is a [w x y z] quaternion.
type rigConfigCamera struct {
	ImagePrefix           string    `json:"image_prefix"`
	RefSensor             bool      `json:"ref_sensor,omitempty"`
	CamFromRigRotation    []float64 `json:"cam_from_rig_rotation,omitempty"`
	CamFromRigTranslation []float64 `json:"cam_from_rig_translation,omitempty"`
}

type rigConfigEntry struct {
	Cameras []rigConfigCamera `json:"cameras"`
}

// WriteRigConfig serializes the rig constraint sets into COLMAP's rig
// configuration JSON. Image prefixes follow the scene layout convention
// <rig>/<camera>/ so they match image names registered relative to the scene
// root. The reference camera carries no transform (identity by construction).
func WriteRigConfig(fsys fsutil.FileSystem, path string, constraints []rig.ConstraintSet) error {
	entries := make([]rigConfigEntry, 0, len(constraints))
	for _, cs := range constraints {
		names := make([]string, 0, len(cs.CamFromRef))
		for name := range cs.CamFromRef {
			names = append(names, name)
		}
		sort.Strings(names)

		entry := rigConfigEntry{Cameras: make([]rigConfigCamera, 0, len(names))}
		for _, name := range names {
			cam := rigConfigCamera{
				ImagePrefix: cs.RigID + "/" + name + "/",
				RefSensor:   name == cs.RefCamera,
			}
			if name != cs.RefCamera {
				t := cs.CamFromRef[name]
				q := t.Rotation()
				p := t.Translation()
				cam.CamFromRigRotation = []float64{q.W, q.V.X(), q.V.Y(), q.V.Z()}
				cam.CamFromRigTranslation = []float64{p.X(), p.Y(), p.Z()}
			}
			entry.Cameras = append(entry.Cameras, cam)
		}
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rig config: %w", err)
	}
	return fsys.WriteFile(path, data, 0644)
}

// sharedFocalFactor returns the focal length factor (lens / sensor width)
// common to every camera in the scene, or false when intrinsics are missing
// or disagree beyond 0.1%.
func sharedFocalFactor(scene *rig.SceneSet) (float64, bool) {
	factor := 0.0
	for _, r := range scene.Rigs {
		for _, cam := range r.Cameras {
			if !cam.HasIntrinsics() {
				return 0, false
			}
			f := cam.LensMM / cam.SensorWidthMM
			if factor == 0 {
				factor = f
				continue
			}
			if math.Abs(f-factor) > factor*1e-3 {
				return 0, false
			}
		}
	}
	return factor, factor > 0
}
