package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/rigmap/internal/config"
	"github.com/banshee-data/rigmap/internal/fsutil"
	"github.com/banshee-data/rigmap/internal/monitoring"
	"github.com/banshee-data/rigmap/internal/rig"
	"github.com/banshee-data/rigmap/internal/sfm"
	"github.com/banshee-data/rigmap/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// testRuntime wires a two-rig in-memory scene against a mock engine.
// Diagnostics are off so runs stay entirely inside the memory filesystem.
func testRuntime(t *testing.T) (Runtime, *sfm.MockEngine, *fsutil.MemoryFileSystem) {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	cams := map[string]mgl64.Mat4{
		"Camera0": testutil.PoseAt(0, 0, 1, 0),
		"Camera1": testutil.PoseAt(0.4, 0, 1, 0),
	}
	testutil.WriteRigTree(t, fsys, "scene", "rigA", rig.DefaultPoseFileName, cams, 2)
	testutil.WriteRigTree(t, fsys, "scene", "rigB", rig.DefaultPoseFileName, cams, 3)

	cfg := config.Default()
	cfg.PlotRigLayout = false
	cfg.WriteReport = false

	eng := &sfm.MockEngine{}
	rt := Runtime{
		InputRoot: "scene",
		OutputDir: "out",
		Engine:    eng,
		FS:        fsys,
		Clock:     timeutilMock(),
		Config:    cfg,
	}
	return rt, eng, fsys
}

func TestRunHappyPath(t *testing.T) {
	rt, eng, fsys := testRuntime(t)
	o := New(rt)

	sum, err := o.Run(context.Background())
	testutil.AssertNoError(t, err)

	if o.State() != StateDone || sum.State != StateDone {
		t.Errorf("state = %s/%s, want done", o.State(), sum.State)
	}
	if sum.RunID == "" {
		t.Error("expected a run id")
	}

	if diff := cmp.Diff([]string{"extract", "match", "map"}, eng.Calls); diff != "" {
		t.Errorf("engine call order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"rigA", "rigB"}, sum.RigsUsed); diff != "" {
		t.Errorf("rigs used (-want +got):\n%s", diff)
	}
	if sum.Images != 10 {
		t.Errorf("images = %d, want 10", sum.Images)
	}
	if len(eng.Constraints) != 2 {
		t.Fatalf("constraints = %d sets, want 2", len(eng.Constraints))
	}
	if eng.Constraints[0].RefCamera != "Camera0" {
		t.Errorf("reference camera = %q, want Camera0", eng.Constraints[0].RefCamera)
	}

	wantStages := []State{StateScanning, StateRigBuilding, StateExtracting, StateMatching, StateMapping}
	if len(sum.Timings) != len(wantStages) {
		t.Fatalf("timings = %v", sum.Timings)
	}
	for i, want := range wantStages {
		if sum.Timings[i].Stage != want {
			t.Errorf("timing %d: stage %s, want %s", i, sum.Timings[i].Stage, want)
		}
	}

	list, err := fsys.ReadFile("out/image_list.txt")
	testutil.AssertNoError(t, err)
	want := "rigA/Camera0/frame000.png\nrigA/Camera0/frame001.png\n" +
		"rigA/Camera1/frame000.png\nrigA/Camera1/frame001.png\n" +
		"rigB/Camera0/frame000.png\nrigB/Camera0/frame001.png\nrigB/Camera0/frame002.png\n" +
		"rigB/Camera1/frame000.png\nrigB/Camera1/frame001.png\nrigB/Camera1/frame002.png\n"
	if diff := cmp.Diff(want, string(list)); diff != "" {
		t.Errorf("image list (-want +got):\n%s", diff)
	}

	if eng.LastWorkspace.DatabasePath != "out/database.db" {
		t.Errorf("database path = %q", eng.LastWorkspace.DatabasePath)
	}
	if sum.SparseDir != "out/sparse" || !fsys.Exists("out/sparse") {
		t.Errorf("sparse dir = %q", sum.SparseDir)
	}
}

func TestRunRemovesStaleDatabase(t *testing.T) {
	rt, _, fsys := testRuntime(t)
	testutil.AssertNoError(t, fsys.WriteFile("out/database.db", []byte("stale"), 0644))

	_, err := New(rt).Run(context.Background())
	testutil.AssertNoError(t, err)

	if fsys.Exists("out/database.db") {
		t.Error("stale database must be removed before extraction")
	}
}

func TestRunStageFailureHaltsPipeline(t *testing.T) {
	rt, eng, _ := testRuntime(t)
	eng.FailAt = "match"
	o := New(rt)

	_, err := o.Run(context.Background())
	testutil.AssertErrorIs(t, err, sfm.ErrEngineFailure)

	if o.State() != StateFailed {
		t.Errorf("state = %s, want failed", o.State())
	}
	if diff := cmp.Diff([]string{"extract", "match"}, eng.Calls); diff != "" {
		t.Errorf("mapping must not run after a matching failure (-want +got):\n%s", diff)
	}
}

func TestRunFailureBeforeValidationWritesNoOutput(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.AssertNoError(t, fsys.MkdirAll("scene", 0755))

	cfg := config.Default()
	cfg.PlotRigLayout = false
	cfg.WriteReport = false
	o := New(Runtime{
		InputRoot: "scene",
		OutputDir: "out",
		Engine:    &sfm.MockEngine{},
		FS:        fsys,
		Clock:     timeutilMock(),
		Config:    cfg,
	})

	_, err := o.Run(context.Background())
	testutil.AssertErrorIs(t, err, rig.ErrNoRigsFound)

	if o.State() != StateFailed {
		t.Errorf("state = %s, want failed", o.State())
	}
	if fsys.Exists("out") {
		t.Error("output dir must not be created when validation fails")
	}
}

func TestRunSkipsDegenerateRig(t *testing.T) {
	rt, eng, fsys := testRuntime(t)

	// rigC's pose carries scale, which cannot be a rigid camera pose.
	bad := map[string]mgl64.Mat4{"Camera0": mgl64.Scale3D(2, 2, 2)}
	testutil.WriteRigTree(t, fsys, "scene", "rigC", rig.DefaultPoseFileName, bad, 1)

	sum, err := New(rt).Run(context.Background())
	testutil.AssertNoError(t, err)

	if diff := cmp.Diff([]string{"rigA", "rigB"}, sum.RigsUsed); diff != "" {
		t.Errorf("rigs used (-want +got):\n%s", diff)
	}
	if len(sum.Skipped) != 1 || sum.Skipped[0].RigID != "rigC" {
		t.Fatalf("skipped = %v, want rigC", sum.Skipped)
	}
	testutil.AssertErrorIs(t, sum.Skipped[0].Err, rig.ErrDegeneratePose)
	if len(eng.Constraints) != 2 {
		t.Errorf("constraints = %d sets, want 2", len(eng.Constraints))
	}
}

func TestRunAllRigsDegenerate(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	bad := map[string]mgl64.Mat4{"Camera0": mgl64.Scale3D(2, 2, 2)}
	testutil.WriteRigTree(t, fsys, "scene", "rigA", rig.DefaultPoseFileName, bad, 1)

	cfg := config.Default()
	cfg.PlotRigLayout = false
	cfg.WriteReport = false
	o := New(Runtime{
		InputRoot: "scene",
		OutputDir: "out",
		Engine:    &sfm.MockEngine{},
		FS:        fsys,
		Clock:     timeutilMock(),
		Config:    cfg,
	})

	_, err := o.Run(context.Background())
	testutil.AssertErrorIs(t, err, rig.ErrNoRigsFound)
	testutil.AssertErrorIs(t, err, rig.ErrDegeneratePose)
	if fsys.Exists("out") {
		t.Error("output dir must not be created when every rig fails")
	}
}

func TestRunWritesReport(t *testing.T) {
	rt, _, fsys := testRuntime(t)
	rt.Config.WriteReport = true

	sum, err := New(rt).Run(context.Background())
	testutil.AssertNoError(t, err)

	report, err := fsys.ReadFile("out/run_report.html")
	testutil.AssertNoError(t, err)
	if len(report) == 0 {
		t.Fatal("expected non-empty run report")
	}
	if !strings.Contains(string(report), sum.RunID) {
		t.Error("report should mention the run id")
	}
}

// A rig skipped during constraint building stays in scene.Rigs, so the
// report must take its used-rig list from the rigs that actually survived.
func TestRunReportCountsBuildStageSkips(t *testing.T) {
	rt, _, fsys := testRuntime(t)
	rt.Config.WriteReport = true
	bad := map[string]mgl64.Mat4{"Camera0": mgl64.Scale3D(2, 2, 2)}
	testutil.WriteRigTree(t, fsys, "scene", "rigC", rig.DefaultPoseFileName, bad, 1)

	_, err := New(rt).Run(context.Background())
	testutil.AssertNoError(t, err)

	report, err := fsys.ReadFile("out/run_report.html")
	testutil.AssertNoError(t, err)
	html := string(report)

	// rigC must appear in the rig axis exactly once, as skipped.
	if got := strings.Count(html, `"rigC"`); got != 1 {
		t.Errorf("rigC listed %d times in the report, want 1", got)
	}
	if !strings.Contains(html, "2 used, 1 skipped") {
		t.Error("report subtitle should count rigC as skipped, not used")
	}
}

func timeutilMock() *fixedStepClock {
	return &fixedStepClock{now: time.Unix(1700000000, 0)}
}

// fixedStepClock advances one second on every Now call, so each stage's
// recorded duration is deterministic and non-zero.
type fixedStepClock struct {
	now time.Time
}

func (c *fixedStepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fixedStepClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}
