package rig

import (
	"fmt"

	"github.com/banshee-data/rigmap/internal/monitoring"
)

// DefaultRefCamera is the camera treated as each rig's reference (the rig
// frame) when present. Rigs without it fall back to the first camera in
// sorted name order; the policy is applied uniformly across rigs.
const DefaultRefCamera = "Camera0"

// BuildConstraintSet derives a rig's fixed rigidity constraints from its
// camera poses. Poses are converted to the reconstruction convention first,
// then every camera's transform relative to the reference is computed as
// inv(M_cam) * M_ref. The result is rigid and fixed for the whole run: the
// mapping stage estimates only the rig's free 6-DoF placement.
//
// refName selects the reference camera; when the rig has no camera by that
// name the first camera in sorted order is used. A single-camera rig is
// legal and yields only the identity constraint.
func BuildConstraintSet(r Rig, refName string) (ConstraintSet, error) {
	if len(r.Cameras) == 0 {
		return ConstraintSet{}, fmt.Errorf("rig %s: %w", r.ID, ErrEmptyRig)
	}

	converted := make(map[string]Transform, len(r.Cameras))
	for _, cam := range r.Cameras {
		m := ToReconstruction(cam.World)
		if !IsRigid(m) {
			return ConstraintSet{}, fmt.Errorf("rig %s: camera %q: %w", r.ID, cam.Name, ErrDegeneratePose)
		}
		converted[cam.Name] = Transform{M: m}
	}

	ref := refName
	if _, ok := converted[ref]; !ok {
		ref = r.Cameras[0].Name
	}
	refWorld := converted[ref]

	set := ConstraintSet{
		RigID:      r.ID,
		RefCamera:  ref,
		CamFromRef: make(map[string]Transform, len(r.Cameras)),
	}
	for _, cam := range r.Cameras {
		if cam.Name == ref {
			set.CamFromRef[cam.Name] = IdentityTransform()
			continue
		}
		rel := CamFromRef(refWorld.M, converted[cam.Name].M)
		set.CamFromRef[cam.Name] = rel
		monitoring.Logf("rig %s: %s -> %s: baseline=%.3fm rotation=%.1f°",
			r.ID, cam.Name, ref, rel.BaselineMeters(), rel.RotationDegrees())
	}
	return set, nil
}
