package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/rigmap/internal/monitor"
	"github.com/banshee-data/rigmap/internal/monitoring"
	"github.com/banshee-data/rigmap/internal/rig"
	"github.com/banshee-data/rigmap/internal/sfm"
)

// State is the orchestrator's position in the run. Transitions are linear
// with no way back; any stage failure moves to StateFailed and halts.
type State string

const (
	StateScanning    State = "scanning"
	StateRigBuilding State = "rig_building"
	StateExtracting  State = "extracting"
	StateMatching    State = "matching"
	StateMapping     State = "mapping"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// StageTiming is the wall time of one completed stage.
type StageTiming struct {
	Stage    State
	Duration time.Duration
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	State     State
	RigsUsed  []string
	Skipped   []rig.SkippedRig
	Images    int
	Timings   []StageTiming
	SparseDir string
}

// Orchestrator drives one reconstruction run to completion. Not safe for
// concurrent use; one run per Orchestrator.
type Orchestrator struct {
	rt      Runtime
	state   State
	timings []StageTiming
	runID   string
}

// New returns an orchestrator for the given runtime.
func New(rt Runtime) *Orchestrator {
	return &Orchestrator{rt: rt.withDefaults(), state: StateScanning}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State { return o.state }

// Run executes the full pipeline: scan, build rig constraints, then the
// external extraction, matching and mapping stages over the union of all
// validated rigs' images. Stages are strictly ordered and blocking; mapping
// does not begin until matching has completed for the whole image union.
// On failure no partial reconstruction is emitted.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	o.runID = uuid.NewString()
	o.ledgerStart()

	// Scanning.
	var scene *rig.SceneSet
	err := o.stage(StateScanning, func() error {
		var err error
		scene, err = rig.ScanScene(o.rt.FS, o.rt.InputRoot, rig.ScanOptions{
			PoseFileName: o.rt.Config.PoseFileName,
		})
		return err
	})
	if err != nil {
		return nil, o.fail(err)
	}

	// Rig building: independent per rig, barrier before assembly. A rig
	// with a degenerate pose is skipped, not fatal, unless nothing remains.
	var constraints []rig.ConstraintSet
	var used []rig.Rig
	err = o.stage(StateRigBuilding, func() error {
		sets := make([]rig.ConstraintSet, len(scene.Rigs))
		errs := make([]error, len(scene.Rigs))

		var wg sync.WaitGroup
		for i := range scene.Rigs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sets[i], errs[i] = rig.BuildConstraintSet(scene.Rigs[i], o.rt.Config.RefCamera)
			}(i)
		}
		wg.Wait()

		for i, r := range scene.Rigs {
			if errs[i] != nil {
				monitoring.Logf("skipping rig %s: %v", r.ID, errs[i])
				scene.Skipped = append(scene.Skipped, rig.SkippedRig{
					RigID:  r.ID,
					Reason: errs[i].Error(),
					Err:    errs[i],
				})
				continue
			}
			constraints = append(constraints, sets[i])
			used = append(used, r)
		}
		if len(used) == 0 {
			causes := make([]error, 0, len(errs)+1)
			causes = append(causes, rig.ErrNoRigsFound)
			causes = append(causes, errs...)
			return fmt.Errorf("all rigs failed constraint building: %w", errors.Join(causes...))
		}
		return nil
	})
	if err != nil {
		o.ledgerRigs(scene, nil)
		return nil, o.fail(err)
	}
	o.ledgerRigs(scene, used)

	// Validation is done; only now touch the output directory.
	ws, err := o.prepareWorkspace(used)
	if err != nil {
		return nil, o.fail(err)
	}

	err = o.stage(StateExtracting, func() error {
		return o.rt.Engine.ExtractFeatures(ctx, ws, scene)
	})
	if err != nil {
		return nil, o.fail(err)
	}

	err = o.stage(StateMatching, func() error {
		return o.rt.Engine.MatchExhaustive(ctx, ws, sfm.MatchOptions{
			SkipSameRigPairs: o.rt.Config.SkipSameRigPairs,
			RigVerification:  o.rt.Config.RigVerification,
		})
	})
	if err != nil {
		return nil, o.fail(err)
	}

	err = o.stage(StateMapping, func() error {
		return o.rt.Engine.MapIncremental(ctx, ws, constraints)
	})
	if err != nil {
		return nil, o.fail(err)
	}

	o.state = StateDone
	sum := o.summary(scene, used, ws)
	o.writeDiagnostics(scene, used, sum)
	o.ledgerFinish(string(StateDone))

	monitoring.Logf("run %s done: %d rigs used, %d skipped, %d images",
		sum.RunID, len(sum.RigsUsed), len(sum.Skipped), sum.Images)
	return sum, nil
}

// stage runs fn under the named state, recording its wall time.
func (o *Orchestrator) stage(s State, fn func() error) error {
	o.state = s
	start := o.rt.Clock.Now()
	err := fn()
	d := o.rt.Clock.Since(start)
	o.timings = append(o.timings, StageTiming{Stage: s, Duration: d})
	o.ledgerStage(string(s), d, err == nil)
	if err != nil {
		return fmt.Errorf("stage %s: %w", s, err)
	}
	return nil
}

func (o *Orchestrator) fail(err error) error {
	o.state = StateFailed
	o.ledgerFinish(string(StateFailed))
	return err
}

// prepareWorkspace lays out the output directory: engine database (any
// leftover from a previous run is removed), sparse output dir and the image
// list restricting the engine to validated rigs' images.
func (o *Orchestrator) prepareWorkspace(used []rig.Rig) (sfm.Workspace, error) {
	if err := o.rt.FS.MkdirAll(o.rt.OutputDir, 0755); err != nil {
		return sfm.Workspace{}, fmt.Errorf("creating output dir: %w", err)
	}

	ws := sfm.Workspace{
		ImageRoot:     o.rt.InputRoot,
		DatabasePath:  filepath.Join(o.rt.OutputDir, "database.db"),
		SparseDir:     filepath.Join(o.rt.OutputDir, "sparse"),
		ImageListPath: filepath.Join(o.rt.OutputDir, "image_list.txt"),
		Seed:          o.rt.Config.RandomSeed,
	}

	if o.rt.FS.Exists(ws.DatabasePath) {
		if err := o.rt.FS.Remove(ws.DatabasePath); err != nil {
			return sfm.Workspace{}, fmt.Errorf("removing stale database: %w", err)
		}
	}
	if err := o.rt.FS.MkdirAll(ws.SparseDir, 0755); err != nil {
		return sfm.Workspace{}, fmt.Errorf("creating sparse dir: %w", err)
	}

	var list strings.Builder
	for _, r := range used {
		for _, p := range r.RelativeImagePaths() {
			list.WriteString(p)
			list.WriteByte('\n')
		}
	}
	if err := o.rt.FS.WriteFile(ws.ImageListPath, []byte(list.String()), 0644); err != nil {
		return sfm.Workspace{}, fmt.Errorf("writing image list: %w", err)
	}
	return ws, nil
}

func (o *Orchestrator) summary(scene *rig.SceneSet, used []rig.Rig, ws sfm.Workspace) *Summary {
	sum := &Summary{
		RunID:     o.runID,
		State:     o.state,
		Skipped:   scene.Skipped,
		Timings:   o.timings,
		SparseDir: ws.SparseDir,
	}
	for _, r := range used {
		sum.RigsUsed = append(sum.RigsUsed, r.ID)
		sum.Images += r.TotalImages()
	}
	return sum
}

// writeDiagnostics emits the rig layout plot and HTML run report into the
// output directory. Diagnostics failures are logged, never fatal: the
// reconstruction itself has already succeeded. The report's rig list comes
// from used, not scene.Rigs: a rig skipped during constraint building is
// still present in scene.Rigs and must not be counted as used.
func (o *Orchestrator) writeDiagnostics(scene *rig.SceneSet, used []rig.Rig, sum *Summary) {
	if o.rt.Config.PlotRigLayout {
		plotPath := filepath.Join(o.rt.OutputDir, "rig_layout.png")
		if err := monitor.PlotRigLayout(scene, plotPath); err != nil {
			monitoring.Logf("rig layout plot failed: %v", err)
		}
	}
	if o.rt.Config.WriteReport {
		data := monitor.ReportData{
			RunID:     sum.RunID,
			InputRoot: o.rt.InputRoot,
			Engine:    o.rt.Engine.Name(),
			State:     string(sum.State),
		}
		for _, t := range sum.Timings {
			data.Stages = append(data.Stages, monitor.StageDuration{
				Stage:    string(t.Stage),
				Duration: t.Duration,
			})
		}
		for _, r := range used {
			data.Rigs = append(data.Rigs, monitor.RigLine{
				RigID:   r.ID,
				Cameras: len(r.Cameras),
				Images:  r.TotalImages(),
				Used:    true,
			})
		}
		for _, s := range sum.Skipped {
			data.Rigs = append(data.Rigs, monitor.RigLine{RigID: s.RigID, Reason: s.Reason})
		}

		var buf bytes.Buffer
		if err := monitor.WriteRunReport(&buf, data); err != nil {
			monitoring.Logf("run report failed: %v", err)
		} else if err := o.rt.FS.WriteFile(
			filepath.Join(o.rt.OutputDir, "run_report.html"), buf.Bytes(), 0644); err != nil {
			monitoring.Logf("writing run report: %v", err)
		}
	}
}

func (o *Orchestrator) ledgerStart() {
	if o.rt.Ledger == nil {
		return
	}
	if err := o.rt.Ledger.StartRun(o.runID, o.rt.InputRoot, o.rt.OutputDir, o.rt.Engine.Name()); err != nil {
		monitoring.Logf("ledger: %v", err)
	}
}

func (o *Orchestrator) ledgerRigs(scene *rig.SceneSet, used []rig.Rig) {
	if o.rt.Ledger == nil {
		return
	}
	for _, r := range used {
		if err := o.rt.Ledger.RecordRig(o.runID, r.ID, len(r.Cameras), r.TotalImages(), true, ""); err != nil {
			monitoring.Logf("ledger: %v", err)
		}
	}
	for _, s := range scene.Skipped {
		if err := o.rt.Ledger.RecordRig(o.runID, s.RigID, 0, 0, false, s.Reason); err != nil {
			monitoring.Logf("ledger: %v", err)
		}
	}
}

func (o *Orchestrator) ledgerStage(stage string, d time.Duration, ok bool) {
	if o.rt.Ledger == nil {
		return
	}
	if err := o.rt.Ledger.RecordStage(o.runID, stage, d, ok); err != nil {
		monitoring.Logf("ledger: %v", err)
	}
}

func (o *Orchestrator) ledgerFinish(state string) {
	if o.rt.Ledger == nil {
		return
	}
	if err := o.rt.Ledger.FinishRun(o.runID, state); err != nil {
		monitoring.Logf("ledger: %v", err)
	}
}
