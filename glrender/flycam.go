package glrender

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/sdfwalk/camera"
)

const maxPitch = math32.Pi/2 - 0.01

// FlyCamera is a free camera steered by yaw about the world Y axis and pitch
// about the camera's X axis. The zero value sits at the origin looking down +Z.
type FlyCamera struct {
	Pos ms3.Vec
	// Yaw and Pitch are in radians. Positive yaw turns right and positive pitch looks down.
	Yaw   float32
	Pitch float32
}

// Rotation returns the camera orientation.
func (fc *FlyCamera) Rotation() camera.Quat {
	yaw := ms3.Rotation(fc.Yaw, ms3.Vec{Y: 1})
	pitch := ms3.Rotation(fc.Pitch, ms3.Vec{X: 1})
	return yaw.Mul(pitch)
}

// Turn adds to yaw and pitch, keeping pitch short of straight up or down.
func (fc *FlyCamera) Turn(dyaw, dpitch float32) {
	fc.Yaw = math32.Mod(fc.Yaw+dyaw, 2*math32.Pi)
	fc.Pitch = ms1.Clamp(fc.Pitch+dpitch, -maxPitch, maxPitch)
}

// Move translates the camera forward and right along its own axes and up along world Y.
func (fc *FlyCamera) Move(forward, right, up float32) {
	rot := fc.Rotation()
	fw := rot.Rotate(ms3.Vec{Z: 1})
	rt := rot.Rotate(ms3.Vec{X: 1})
	fc.Pos = ms3.Add(fc.Pos, ms3.Scale(forward, fw))
	fc.Pos = ms3.Add(fc.Pos, ms3.Scale(right, rt))
	fc.Pos.Y += up
}

// SetPose places the camera at pos looking where rot looks. Roll is discarded.
func (fc *FlyCamera) SetPose(pos ms3.Vec, rot camera.Quat) {
	fw := rot.Rotate(ms3.Vec{Z: 1})
	fc.Pos = pos
	fc.Yaw = math32.Atan2(fw.X, fw.Z)
	fc.Pitch = ms1.Clamp(math32.Asin(ms1.Clamp(-fw.Y, -1, 1)), -maxPitch, maxPitch)
}
