package rig

import "github.com/go-gl/mathgl/mgl64"

// CameraPose is one camera entry from a rig's pose file. World is the
// camera-to-world matrix exactly as exported by the authoring tool (Blender
// convention: X right, Y up, -Z view). Records are immutable once parsed.
type CameraPose struct {
	Name     string
	World    mgl64.Mat4
	Location mgl64.Vec3

	// Optional intrinsics hints from the exporter. Zero when absent.
	LensMM         float64
	SensorWidthMM  float64
	SensorHeightMM float64
}

// HasIntrinsics reports whether the exporter supplied lens and sensor data.
func (c CameraPose) HasIntrinsics() bool {
	return c.LensMM > 0 && c.SensorWidthMM > 0
}

// Rig is one validated rig folder: a set of cameras with fixed relative
// poses, observed through per-camera image folders. Invariant: the camera
// names in Cameras and the keys of ImageDirs match exactly.
type Rig struct {
	ID      string
	Dir     string
	Cameras []CameraPose

	// ImageDirs maps camera name to its image folder path. ImageFiles
	// holds the image file names found per camera, sorted.
	ImageDirs  map[string]string
	ImageFiles map[string][]string
}

// CameraNames returns the camera names in declaration order.
func (r Rig) CameraNames() []string {
	names := make([]string, len(r.Cameras))
	for i, c := range r.Cameras {
		names[i] = c.Name
	}
	return names
}

// TotalImages returns the number of image files across all cameras.
func (r Rig) TotalImages() int {
	n := 0
	for _, files := range r.ImageFiles {
		n += len(files)
	}
	return n
}

// RelativeImagePaths returns every image path relative to the scene root,
// using forward slashes (<rig>/<camera>/<file>), in camera then file order.
func (r Rig) RelativeImagePaths() []string {
	var paths []string
	for _, cam := range r.Cameras {
		for _, f := range r.ImageFiles[cam.Name] {
			paths = append(paths, r.ID+"/"+cam.Name+"/"+f)
		}
	}
	return paths
}

// ConstraintSet holds a rig's fixed rigidity constraints: for every member
// camera, the transform from the reference camera's frame into that camera's
// frame, in the reconstruction convention. CamFromRef[RefCamera] is the
// identity by construction. Derived once per rig and read-only afterwards;
// the mapping stage holds these fixed and only estimates the rig's free
// placement in the world.
type ConstraintSet struct {
	RigID      string
	RefCamera  string
	CamFromRef map[string]Transform
}

// SkippedRig records a rig folder excluded from the run and why.
type SkippedRig struct {
	RigID  string
	Reason string
	Err    error
}

// SceneSet is the ordered collection of validated rigs for one run, plus the
// rig folders that were skipped. Never mutated after scanning completes.
type SceneSet struct {
	Root    string
	Rigs    []Rig
	Skipped []SkippedRig
}

// TotalImages returns the number of image files across all rigs.
func (s *SceneSet) TotalImages() int {
	n := 0
	for _, r := range s.Rigs {
		n += r.TotalImages()
	}
	return n
}
