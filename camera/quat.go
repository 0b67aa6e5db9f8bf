package camera

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Quat is a rotation quaternion. Camera orientations map camera space, where
// the camera looks along +Z with +Y up, to world space.
type Quat = ms3.Quat

// IdentityQuat returns the quaternion representing no rotation.
func IdentityQuat() Quat { return ms3.QuatIdent() }

// EulerQuat returns the rotation built by rotating the identity around X by
// pitch, then around Y by yaw, then around Z by roll. Angles are in radians.
func EulerQuat(pitch, yaw, roll float32) Quat {
	q := IdentityQuat()
	q = q.Mul(ms3.Rotation(pitch, ms3.Vec{X: 1}))
	q = q.Mul(ms3.Rotation(yaw, ms3.Vec{Y: 1}))
	q = q.Mul(ms3.Rotation(roll, ms3.Vec{Z: 1}))
	return q
}

// LookAtLH returns the left handed orientation whose +Z axis points along dir
// and whose +Y axis is as close as possible to up.
func LookAtLH(dir, up ms3.Vec) Quat {
	if ms3.Norm(dir) < epstol {
		return IdentityQuat()
	}
	forward := ms3.Unit(dir)
	right := ms3.Cross(up, forward)
	if ms3.Norm(right) < epstol {
		// Looking along up, pick another reference.
		right = ms3.Cross(ms3.Vec{Z: 1}, forward)
	}
	right = ms3.Unit(right)
	return quatFromBasis(right, ms3.Cross(forward, right), forward)
}

// quatFromBasis converts the rotation matrix with columns c0, c1, c2 to a quaternion.
func quatFromBasis(c0, c1, c2 ms3.Vec) Quat {
	m00, m01, m02 := c0.X, c1.X, c2.X
	m10, m11, m12 := c0.Y, c1.Y, c2.Y
	m20, m21, m22 := c0.Z, c1.Z, c2.Z
	var q Quat
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := 2 * math32.Sqrt(trace+1)
		q = Quat{W: 0.25 * s, I: (m21 - m12) / s, J: (m02 - m20) / s, K: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := 2 * math32.Sqrt(1+m00-m11-m22)
		q = Quat{W: (m21 - m12) / s, I: 0.25 * s, J: (m01 + m10) / s, K: (m02 + m20) / s}
	case m11 > m22:
		s := 2 * math32.Sqrt(1+m11-m00-m22)
		q = Quat{W: (m02 - m20) / s, I: (m01 + m10) / s, J: 0.25 * s, K: (m12 + m21) / s}
	default:
		s := 2 * math32.Sqrt(1+m22-m00-m11)
		q = Quat{W: (m10 - m01) / s, I: (m02 + m20) / s, J: (m12 + m21) / s, K: 0.25 * s}
	}
	return q.Unit()
}

// UniformMat4 returns the homogeneous rotation matrix of q in column major
// order, ready to be uploaded as a GLSL mat4 uniform.
func UniformMat4(q Quat) [16]float32 {
	// Row major storage of the transpose is column major storage of the matrix.
	return q.Unit().RotationMat3().Transpose().AsMat4().Array()
}
