package rig

import "errors"

// Stable error kinds surfaced by scanning, parsing and constraint building.
// Callers match with errors.Is; messages carry the rig and camera context.
var (
	// ErrMalformedPoseFile indicates a pose file with missing, non-numeric
	// or structurally invalid fields.
	ErrMalformedPoseFile = errors.New("malformed pose file")

	// ErrDuplicateCameraName indicates the same camera name appearing twice
	// within one pose file.
	ErrDuplicateCameraName = errors.New("duplicate camera name")

	// ErrCameraFolderMismatch indicates a camera declared in the pose file
	// without a matching image folder, or an image folder with no matching
	// camera declaration. Fatal for the owning rig only.
	ErrCameraFolderMismatch = errors.New("camera folder mismatch")

	// ErrMissingPoseFile indicates a rig folder without a pose file. The
	// rig is skipped with a warning; the run continues.
	ErrMissingPoseFile = errors.New("missing pose file")

	// ErrEmptyRig indicates a rig with zero cameras.
	ErrEmptyRig = errors.New("rig has no cameras")

	// ErrDegeneratePose indicates a camera matrix that is not a proper
	// rigid transform (non-finite entries, scale or reflection).
	ErrDegeneratePose = errors.New("degenerate camera pose")

	// ErrNoRigsFound indicates that no rig survived validation. Always
	// fatal for the run.
	ErrNoRigsFound = errors.New("no valid rigs found")
)
