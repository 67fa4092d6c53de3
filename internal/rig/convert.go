package rig

import "github.com/go-gl/mathgl/mgl64"

// The authoring tool and the reconstruction engine disagree on the camera
// frame: Blender looks down -Z with Y up, COLMAP looks down +Z with Y down.
// Both are right-handed, so the change of basis negates the Y and Z camera
// axes, which is the same rotation as 180 degrees about the camera X axis.
//
// For a camera-to-world matrix M the converted matrix is M * b2c: the flip
// acts on the camera-local frame, so world placement of the camera center is
// unchanged and only the orientation columns flip. b2c is its own inverse.
var b2c = mgl64.Diag4(mgl64.Vec4{1, -1, -1, 1})

// ToReconstruction converts a camera-to-world matrix from the authoring
// convention (Z-back, Y-up) to the reconstruction convention (Z-forward,
// Y-down). Pure; applied uniformly to every camera including the reference,
// so relative poses within a rig are unaffected by the convention choice.
func ToReconstruction(world mgl64.Mat4) mgl64.Mat4 {
	return world.Mul4(b2c)
}

// FromReconstruction is the inverse of ToReconstruction. The basis change is
// an involution, so a round trip recovers the original matrix exactly up to
// floating point.
func FromReconstruction(world mgl64.Mat4) mgl64.Mat4 {
	return world.Mul4(b2c)
}

// ConvertPose returns a copy of c with its world matrix converted to the
// reconstruction convention. Location and intrinsics are unchanged: the
// camera center does not move under a camera-local basis flip.
func ConvertPose(c CameraPose) CameraPose {
	c.World = ToReconstruction(c.World)
	return c
}
