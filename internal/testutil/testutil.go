// Package testutil provides shared fixtures for rig and pipeline tests:
// ground-truth camera poses and in-memory scene trees.
package testutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/rigmap/internal/fsutil"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertErrorIs fails the test unless err wraps target.
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// PoseAt builds a camera-to-world matrix placed at (x, y, z) and rotated
// yawDeg about the world Z axis. Proper rigid by construction, so it is a
// valid ground-truth authoring pose.
func PoseAt(x, y, z, yawDeg float64) mgl64.Mat4 {
	m := mgl64.HomogRotate3DZ(mgl64.DegToRad(yawDeg))
	m.Set(0, 3, x)
	m.Set(1, 3, y)
	m.Set(2, 3, z)
	return m
}

// PoseJSON encodes camera name -> world matrix as a Blender-export style
// cameras.json document, including plausible intrinsics.
func PoseJSON(t *testing.T, cams map[string]mgl64.Mat4) []byte {
	t.Helper()
	doc := make(map[string]any, len(cams))
	for name, m := range cams {
		rows := make([][]float64, 4)
		for r := 0; r < 4; r++ {
			rows[r] = []float64{m.At(r, 0), m.At(r, 1), m.At(r, 2), m.At(r, 3)}
		}
		doc[name] = map[string]any{
			"matrix_world":  rows,
			"location":      []float64{m.At(0, 3), m.At(1, 3), m.At(2, 3)},
			"lens":          50.0,
			"sensor_width":  36.0,
			"sensor_height": 24.0,
		}
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		t.Fatalf("encoding pose fixture: %v", err)
	}
	return data
}

// WriteRigTree lays out one rig folder on fsys: the pose file plus one image
// folder per camera holding imagesPerCam dummy frames.
func WriteRigTree(t *testing.T, fsys fsutil.FileSystem, root, rigID, poseFileName string, cams map[string]mgl64.Mat4, imagesPerCam int) {
	t.Helper()
	dir := root + "/" + rigID
	AssertNoError(t, fsys.WriteFile(dir+"/"+poseFileName, PoseJSON(t, cams), 0644))
	for name := range cams {
		for i := 0; i < imagesPerCam; i++ {
			frame := fmt.Sprintf("%s/%s/frame%03d.png", dir, name, i)
			AssertNoError(t, fsys.WriteFile(frame, []byte("not a real png"), 0644))
		}
	}
}
