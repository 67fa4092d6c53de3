package rig

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RigidTolerance is the tolerance used when checking that a 4x4 matrix is a
// proper rigid transform (orthonormal rotation, determinant 1, affine bottom
// row). Blender computes matrices in single precision, so exported rotations
// are only orthonormal to roughly 1e-6 per element.
const RigidTolerance = 1e-4

// Transform is a rigid camera transform held as a homogeneous 4x4 matrix.
// All transforms downstream of the coordinate converter are expressed in the
// reconstruction engine's convention; conventions are never mixed.
type Transform struct {
	M mgl64.Mat4
}

// IdentityTransform returns the identity transform.
func IdentityTransform() Transform {
	return Transform{M: mgl64.Ident4()}
}

// Mul composes t with o, returning t * o.
func (t Transform) Mul(o Transform) Transform {
	return Transform{M: t.M.Mul4(o.M)}
}

// Inv returns the inverse transform.
func (t Transform) Inv() Transform {
	return Transform{M: t.M.Inv()}
}

// Rotation returns the rotation component as a unit quaternion.
func (t Transform) Rotation() mgl64.Quat {
	return mgl64.Mat4ToQuat(t.M)
}

// Translation returns the translation component.
func (t Transform) Translation() mgl64.Vec3 {
	return mgl64.Vec3{t.M.At(0, 3), t.M.At(1, 3), t.M.At(2, 3)}
}

// BaselineMeters returns the length of the translation component. For a
// camera-from-reference transform this is the stereo baseline.
func (t Transform) BaselineMeters() float64 {
	return t.Translation().Len()
}

// RotationDegrees returns the rotation angle of the transform in degrees.
// The trace is clamped to [-1, 1] before acos to absorb rounding.
func (t Transform) RotationDegrees() float64 {
	trace := t.M.At(0, 0) + t.M.At(1, 1) + t.M.At(2, 2)
	c := (trace - 1) / 2
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) * 180 / math.Pi
}

// ApproxEqual reports whether two transforms match element-wise within tol.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	return t.M.ApproxEqualThreshold(o.M, tol)
}

// IsIdentity reports whether t is the identity transform within tol.
func (t Transform) IsIdentity(tol float64) bool {
	return t.M.ApproxEqualThreshold(mgl64.Ident4(), tol)
}

// CamFromRef computes the fixed rig constraint for a camera: the transform
// from the reference camera's frame into the camera's frame. Both inputs are
// camera-to-world matrices in the same convention.
//
//	T_cam_from_ref = inv(M_cam) * M_ref
func CamFromRef(refWorld, camWorld mgl64.Mat4) Transform {
	return Transform{M: camWorld.Inv().Mul4(refWorld)}
}

// IsRigid reports whether m is a proper rigid transform: finite entries, an
// orthonormal rotation block with determinant ~1 (no scale or reflection) and
// a [0 0 0 1] bottom row.
func IsRigid(m mgl64.Mat4) bool {
	if !isFinite(m) {
		return false
	}
	if math.Abs(m.At(3, 0)) > RigidTolerance ||
		math.Abs(m.At(3, 1)) > RigidTolerance ||
		math.Abs(m.At(3, 2)) > RigidTolerance ||
		math.Abs(m.At(3, 3)-1) > RigidTolerance {
		return false
	}
	r := m.Mat3()
	if math.Abs(r.Det()-1) > RigidTolerance {
		return false
	}
	// Orthonormality: R * R^T must be the identity.
	rrt := r.Mul3(r.Transpose())
	return rrt.ApproxEqualThreshold(mgl64.Ident3(), RigidTolerance)
}

func isFinite(m mgl64.Mat4) bool {
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			v := m.At(row, col)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
