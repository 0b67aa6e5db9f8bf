// Package glrender turns compiled scenes into pixels, either on the GPU through
// an OpenGL window or on the CPU through a sphere tracer that follows the same
// camera and shading conventions as the GLSL footer.
package glrender

import (
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
)

const (
	// DefaultFOV is the vertical field of view in radians used when none is configured.
	DefaultFOV = math32.Pi / 2
	// DefaultMaxSteps is the raymarch step limit, same as the footer's MAX_STEPS.
	DefaultMaxSteps = 256
	// DefaultMaxDist is the distance past which a ray is a miss, same as the footer's MAX_DIST.
	DefaultMaxDist = 200
)

// DefaultLight is the light direction uploaded to the light uniform.
var DefaultLight = ms3.Vec{X: 1, Y: -1, Z: 1}

// rayDir returns the world space direction of the ray through the normalized
// device coordinate (u,v) for a camera with rotation matrix rot.
func rayDir(rot ms3.Mat3, u, v, aspect, tanf float32) ms3.Vec {
	return ms3.Unit(ms3.MulMatVec(rot, ms3.Vec{X: u * aspect * tanf, Y: v * tanf, Z: 1}))
}

func background(rd ms3.Vec) ms3.Vec {
	a := ms1.Clamp(rd.Y*0.5+0.5, 0, 1)
	return ms3.InterpElem(ms3.Vec{X: 0.55, Y: 0.6, Z: 0.65}, ms3.Vec{X: 0.2, Y: 0.35, Z: 0.6}, ms3.Vec{X: a, Y: a, Z: a})
}

// lambert shades a surface color with ambient and diffuse terms.
// lightDir points towards the light and must be unit length.
func lambert(col, normal, lightDir ms3.Vec) ms3.Vec {
	diffuse := math32.Max(ms3.Dot(ms3.Unit(normal), lightDir), 0)
	return ms3.Scale(0.15+0.85*diffuse, col)
}

// toRGBA gamma corrects c and converts it to 8 bit color.
func toRGBA(c ms3.Vec) color.RGBA {
	return color.RGBA{R: channel(c.X), G: channel(c.Y), B: channel(c.Z), A: 255}
}

func channel(v float32) uint8 {
	if !(v > 0) {
		return 0 // Also catches NaN.
	}
	v = ms1.Clamp(math32.Pow(v, 0.4545), 0, 1)
	return uint8(v*255 + 0.5)
}
