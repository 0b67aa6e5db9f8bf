package camera

import (
	"github.com/soypat/geometry/ms3"
)

// Param is a keyframe field that either overrides the value or reuses the
// value in effect at the previous keyframe.
type Param[T any] struct {
	value    T
	override bool
}

// Override returns a Param setting the field to v.
func Override[T any](v T) Param[T] { return Param[T]{value: v, override: true} }

// Reuse returns a Param that inherits the field from the previous keyframe.
func Reuse[T any]() Param[T] { return Param[T]{} }

// Get returns the overriding value and true, or the zero value and false for Reuse.
func (p Param[T]) Get() (T, bool) { return p.value, p.override }

// IsOverride reports whether p sets a new value.
func (p Param[T]) IsOverride() bool { return p.override }

// RotationKind tells how a [Rotation] is resolved.
type RotationKind uint8

const (
	// RotationAbsolute is a fixed orientation.
	RotationAbsolute RotationKind = iota
	// RotationLookAt orients the camera toward a target from its current position.
	RotationLookAt
)

// Rotation is a camera orientation, either absolute or looking at a target.
type Rotation struct {
	Kind   RotationKind
	Quat   Quat
	Target ms3.Vec
}

// Absolute returns a fixed orientation.
func Absolute(q Quat) Rotation { return Rotation{Kind: RotationAbsolute, Quat: q} }

// LookAt returns an orientation aiming at target.
func LookAt(target ms3.Vec) Rotation { return Rotation{Kind: RotationLookAt, Target: target} }

// worldUp is the up reference for look-at orientations.
var worldUp = ms3.Vec{Y: 1}

// ToQuat resolves r for a camera placed at pos.
func (r Rotation) ToQuat(pos ms3.Vec) Quat {
	if r.Kind == RotationLookAt {
		return LookAtLH(ms3.Sub(r.Target, pos), worldUp)
	}
	return r.Quat
}

// Keyframe sets camera position and orientation at time T. Fields left as
// Reuse keep the value of the previous keyframe. Marker names the marker,
// if any, whose anchor was added to the position and look_at target.
type Keyframe struct {
	T      float32
	Marker string
	Pos    Param[ms3.Vec]
	Rot    Param[Rotation]
}

// defaultRotation is used when no keyframe up to the sampled one sets a rotation.
func defaultRotation() Rotation { return Absolute(IdentityQuat()) }
