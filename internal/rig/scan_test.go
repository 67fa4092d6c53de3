package rig

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/rigmap/internal/fsutil"
	"github.com/banshee-data/rigmap/internal/testutil"
)

func twoCams() map[string]mgl64.Mat4 {
	return map[string]mgl64.Mat4{
		"Cam0": testutil.PoseAt(0, 0, 1, 0),
		"Cam1": testutil.PoseAt(0.4, 0, 1, 0),
	}
}

func oneCam() map[string]mgl64.Mat4 {
	return map[string]mgl64.Mat4{"Cam0": testutil.PoseAt(0, 0, 2, 0)}
}

func TestScanSceneCompleteness(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteRigTree(t, fsys, "scene", "rigA", DefaultPoseFileName, twoCams(), 3)
	testutil.WriteRigTree(t, fsys, "scene", "rigB", DefaultPoseFileName, oneCam(), 2)

	scene, err := ScanScene(fsys, "scene", ScanOptions{})
	testutil.AssertNoError(t, err)

	if len(scene.Rigs) != 2 {
		t.Fatalf("got %d rigs, want 2", len(scene.Rigs))
	}
	if diff := cmp.Diff([]string{"Cam0", "Cam1"}, scene.Rigs[0].CameraNames()); diff != "" {
		t.Errorf("rigA cameras (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Cam0"}, scene.Rigs[1].CameraNames()); diff != "" {
		t.Errorf("rigB cameras (-want +got):\n%s", diff)
	}
	if got := scene.TotalImages(); got != 8 {
		t.Errorf("TotalImages = %d, want 8", got)
	}
	if len(scene.Skipped) != 0 {
		t.Errorf("unexpected skips: %v", scene.Skipped)
	}
}

// Removing one camera's image folder must fail that rig only.
func TestScanSceneCameraFolderMismatch(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteRigTree(t, fsys, "scene", "rigA", DefaultPoseFileName, twoCams(), 3)
	testutil.WriteRigTree(t, fsys, "scene", "rigB", DefaultPoseFileName, oneCam(), 2)
	testutil.AssertNoError(t, fsys.RemoveAll("scene/rigA/Cam1"))

	scene, err := ScanScene(fsys, "scene", ScanOptions{})
	testutil.AssertNoError(t, err)

	if len(scene.Rigs) != 1 || scene.Rigs[0].ID != "rigB" {
		t.Fatalf("surviving rigs = %v, want [rigB]", scene.Rigs)
	}
	if len(scene.Skipped) != 1 || scene.Skipped[0].RigID != "rigA" {
		t.Fatalf("skipped = %v, want rigA", scene.Skipped)
	}
	testutil.AssertErrorIs(t, scene.Skipped[0].Err, ErrCameraFolderMismatch)
}

func TestScanSceneExtraImageFolder(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteRigTree(t, fsys, "scene", "rigA", DefaultPoseFileName, oneCam(), 2)
	// An image folder with no declared camera is a mismatch too.
	testutil.AssertNoError(t, fsys.WriteFile("scene/rigA/CamX/frame000.png", []byte("x"), 0644))
	testutil.WriteRigTree(t, fsys, "scene", "rigB", DefaultPoseFileName, oneCam(), 2)

	scene, err := ScanScene(fsys, "scene", ScanOptions{})
	testutil.AssertNoError(t, err)

	if len(scene.Rigs) != 1 || scene.Rigs[0].ID != "rigB" {
		t.Fatalf("surviving rigs = %v, want [rigB]", scene.Rigs)
	}
	testutil.AssertErrorIs(t, scene.Skipped[0].Err, ErrCameraFolderMismatch)
}

func TestScanSceneEmptyImageFolder(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteRigTree(t, fsys, "scene", "rigA", DefaultPoseFileName, oneCam(), 2)
	testutil.AssertNoError(t, fsys.RemoveAll("scene/rigA/Cam0"))
	testutil.AssertNoError(t, fsys.MkdirAll("scene/rigA/Cam0", 0755))

	_, err := ScanScene(fsys, "scene", ScanOptions{})
	testutil.AssertErrorIs(t, err, ErrNoRigsFound)
	testutil.AssertErrorIs(t, err, ErrCameraFolderMismatch)
}

// A rig folder without a pose file is skipped with a warning; the run
// continues with the remaining rigs.
func TestScanSceneMissingPoseFile(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteRigTree(t, fsys, "scene", "rigA", DefaultPoseFileName, oneCam(), 1)
	testutil.AssertNoError(t, fsys.WriteFile("scene/rigNoPoses/Cam0/frame000.png", []byte("x"), 0644))

	scene, err := ScanScene(fsys, "scene", ScanOptions{})
	testutil.AssertNoError(t, err)

	if len(scene.Rigs) != 1 || scene.Rigs[0].ID != "rigA" {
		t.Fatalf("surviving rigs = %v, want [rigA]", scene.Rigs)
	}
	testutil.AssertErrorIs(t, scene.Skipped[0].Err, ErrMissingPoseFile)
}

func TestScanSceneNoRigs(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.AssertNoError(t, fsys.MkdirAll("scene", 0755))

	_, err := ScanScene(fsys, "scene", ScanOptions{})
	testutil.AssertErrorIs(t, err, ErrNoRigsFound)
}

// When every rig failed the same way the scan error carries that cause, so
// the CLI can exit with the most specific code.
func TestScanSceneNoRigsCarriesCause(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.AssertNoError(t, fsys.WriteFile("scene/rigA/cameras.json", []byte("garbage"), 0644))
	testutil.AssertNoError(t, fsys.MkdirAll("scene/rigA/Cam0", 0755))

	_, err := ScanScene(fsys, "scene", ScanOptions{})
	testutil.AssertErrorIs(t, err, ErrNoRigsFound)
	testutil.AssertErrorIs(t, err, ErrMalformedPoseFile)
}

// With mixed failure causes, the scan error must carry every rig's cause so
// matching on a specific one does not depend on which rig sorts first.
func TestScanSceneNoRigsJoinsAllCauses(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.AssertNoError(t, fsys.WriteFile("scene/rigA/cameras.json", []byte("garbage"), 0644))
	testutil.AssertNoError(t, fsys.MkdirAll("scene/rigA/Cam0", 0755))
	testutil.WriteRigTree(t, fsys, "scene", "rigB", DefaultPoseFileName, oneCam(), 1)
	testutil.AssertNoError(t, fsys.RemoveAll("scene/rigB/Cam0"))

	_, err := ScanScene(fsys, "scene", ScanOptions{})
	testutil.AssertErrorIs(t, err, ErrNoRigsFound)
	testutil.AssertErrorIs(t, err, ErrMalformedPoseFile)
	testutil.AssertErrorIs(t, err, ErrCameraFolderMismatch)
}

func TestScanSceneCustomPoseFileName(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteRigTree(t, fsys, "scene", "rigA", "poses.json", oneCam(), 1)

	scene, err := ScanScene(fsys, "scene", ScanOptions{PoseFileName: "poses.json"})
	testutil.AssertNoError(t, err)
	if len(scene.Rigs) != 1 {
		t.Fatalf("got %d rigs, want 1", len(scene.Rigs))
	}
}

func TestScanSceneImageListing(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteRigTree(t, fsys, "scene", "rigA", DefaultPoseFileName, oneCam(), 2)

	scene, err := ScanScene(fsys, "scene", ScanOptions{})
	testutil.AssertNoError(t, err)

	want := []string{"rigA/Cam0/frame000.png", "rigA/Cam0/frame001.png"}
	if diff := cmp.Diff(want, scene.Rigs[0].RelativeImagePaths()); diff != "" {
		t.Errorf("image paths (-want +got):\n%s", diff)
	}
}
