package rig

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/rigmap/internal/fsutil"
	"github.com/banshee-data/rigmap/internal/testutil"
)

func TestParsePoseFile(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	cams := map[string]mgl64.Mat4{
		"Camera1": testutil.PoseAt(1, 0, 2, 90),
		"Camera0": testutil.PoseAt(0, 0, 2, 0),
	}
	testutil.AssertNoError(t, fsys.WriteFile("scene/rigA/cameras.json", testutil.PoseJSON(t, cams), 0644))

	got, err := ParsePoseFile(fsys, "scene/rigA/cameras.json")
	testutil.AssertNoError(t, err)

	// Sorted by name regardless of document order.
	names := make([]string, len(got))
	for i, c := range got {
		names[i] = c.Name
	}
	if diff := cmp.Diff([]string{"Camera0", "Camera1"}, names); diff != "" {
		t.Errorf("camera order mismatch (-want +got):\n%s", diff)
	}

	for _, c := range got {
		if !c.World.ApproxEqualThreshold(cams[c.Name], 1e-12) {
			t.Errorf("camera %s matrix mismatch", c.Name)
		}
		if !c.HasIntrinsics() {
			t.Errorf("camera %s lost intrinsics", c.Name)
		}
		if c.LensMM != 50 || c.SensorWidthMM != 36 {
			t.Errorf("camera %s intrinsics = %v/%v, want 50/36", c.Name, c.LensMM, c.SensorWidthMM)
		}
	}
}

func TestParsePoseFileMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `garbage`},
		{"top level array", `[]`},
		{"missing matrix", `{"Camera0": {"location": [0, 0, 0]}}`},
		{"short matrix", `{"Camera0": {"matrix_world": [[1, 0, 0, 0], [0, 1, 0, 0]]}}`},
		{"ragged row", `{"Camera0": {"matrix_world": [[1, 0, 0], [0, 1, 0, 0], [0, 0, 1, 0], [0, 0, 0, 1]]}}`},
		{"non-numeric entry", `{"Camera0": {"matrix_world": [["x", 0, 0, 0], [0, 1, 0, 0], [0, 0, 1, 0], [0, 0, 0, 1]]}}`},
		{"bad location", `{"Camera0": {"matrix_world": [[1, 0, 0, 0], [0, 1, 0, 0], [0, 0, 1, 0], [0, 0, 0, 1]], "location": [1, 2]}}`},
		{"negative lens", `{"Camera0": {"matrix_world": [[1, 0, 0, 0], [0, 1, 0, 0], [0, 0, 1, 0], [0, 0, 0, 1]], "lens": -5}}`},
	}

	fsys := fsutil.NewMemoryFileSystem()
	for _, tt := range tests {
		testutil.AssertNoError(t, fsys.WriteFile("poses.json", []byte(tt.body), 0644))
		_, err := ParsePoseFile(fsys, "poses.json")
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		testutil.AssertErrorIs(t, err, ErrMalformedPoseFile)
	}
}

func TestParsePoseFileDuplicateCamera(t *testing.T) {
	body := `{
		"Camera0": {"matrix_world": [[1, 0, 0, 0], [0, 1, 0, 0], [0, 0, 1, 0], [0, 0, 0, 1]]},
		"Camera0": {"matrix_world": [[1, 0, 0, 1], [0, 1, 0, 0], [0, 0, 1, 0], [0, 0, 0, 1]]}
	}`
	fsys := fsutil.NewMemoryFileSystem()
	testutil.AssertNoError(t, fsys.WriteFile("poses.json", []byte(body), 0644))

	_, err := ParsePoseFile(fsys, "poses.json")
	testutil.AssertErrorIs(t, err, ErrDuplicateCameraName)
}

func TestParsePoseFileMissing(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	if _, err := ParsePoseFile(fsys, "nope.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParsePoseFileOptionalFields(t *testing.T) {
	// location and intrinsics are optional; position falls back to the
	// matrix translation column.
	body := `{"Camera0": {"matrix_world": [[1, 0, 0, 4], [0, 1, 0, 5], [0, 0, 1, 6], [0, 0, 0, 1]]}}`
	fsys := fsutil.NewMemoryFileSystem()
	testutil.AssertNoError(t, fsys.WriteFile("poses.json", []byte(body), 0644))

	got, err := ParsePoseFile(fsys, "poses.json")
	testutil.AssertNoError(t, err)
	if len(got) != 1 {
		t.Fatalf("got %d cameras, want 1", len(got))
	}
	if got[0].Location != (mgl64.Vec3{4, 5, 6}) {
		t.Errorf("Location = %v, want (4 5 6)", got[0].Location)
	}
	if got[0].HasIntrinsics() {
		t.Error("HasIntrinsics should be false without lens data")
	}
}
