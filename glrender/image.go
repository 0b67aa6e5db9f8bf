package glrender

import (
	"errors"
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfwalk/camera"
	"github.com/soypat/sdfwalk/gleval"
)

// SetImage is an image that can be drawn on pixel by pixel, such as [*image.RGBA].
type SetImage = interface {
	image.Image
	Set(x, y int, c color.Color)
}

// ImageConfig configures an [ImageRenderer]. Zero values select the defaults.
type ImageConfig struct {
	// FOV is the vertical field of view in radians.
	FOV float32
	// Light is the direction light travels in.
	Light    ms3.Vec
	MaxSteps int
	MaxDist  float32
}

type rayState uint8

const (
	rayMarching rayState = iota
	rayHit
	rayMiss
)

// ImageRenderer sphere traces a [gleval.ColorSDF3] into an image on the CPU.
// It renders one image row per batch of SDF evaluations.
type ImageRenderer struct {
	cfg      ImageConfig
	lightDir ms3.Vec
	vp       gleval.VecPool
	// Per pixel state of the row being rendered.
	dir   []ms3.Vec
	t     []float32
	state []rayState
	// Evaluation buffers, indexed by active ray.
	active  []int
	pos     []ms3.Vec
	col     []ms3.Vec
	normals []ms3.Vec
	dist    []float32
}

// NewImageRenderer returns an [ImageRenderer] ready to render.
func NewImageRenderer(cfg ImageConfig) (*ImageRenderer, error) {
	if cfg.FOV == 0 {
		cfg.FOV = DefaultFOV
	}
	if cfg.Light == (ms3.Vec{}) {
		cfg.Light = DefaultLight
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.MaxDist == 0 {
		cfg.MaxDist = DefaultMaxDist
	}
	switch {
	case cfg.FOV < 0 || cfg.FOV >= math32.Pi:
		return nil, errors.New("field of view must be in range (0, pi)")
	case cfg.MaxSteps < 0:
		return nil, errors.New("negative step limit")
	case cfg.MaxDist < 0:
		return nil, errors.New("negative max distance")
	}
	return &ImageRenderer{
		cfg:      cfg,
		lightDir: ms3.Unit(ms3.Scale(-1, cfg.Light)),
	}, nil
}

// Render draws sdf as seen from a camera at camPos with orientation camRot.
// The camera looks down its +Z axis with +Y up.
func (ir *ImageRenderer) Render(sdf gleval.ColorSDF3, img SetImage, camPos ms3.Vec, camRot camera.Quat) error {
	if sdf == nil {
		return errors.New("nil SDF")
	}
	bb := img.Bounds()
	w, h := bb.Dx(), bb.Dy()
	if w <= 0 || h <= 0 {
		return errors.New("empty image")
	}
	ir.grow(w)
	rot := camRot.Unit().RotationMat3()
	aspect := float32(w) / float32(h)
	tanf := math32.Tan(ir.cfg.FOV / 2)
	for j := 0; j < h; j++ {
		v := 1 - 2*(float32(j)+0.5)/float32(h)
		for i := 0; i < w; i++ {
			u := 2*(float32(i)+0.5)/float32(w) - 1
			ir.dir[i] = rayDir(rot, u, v, aspect, tanf)
		}
		err := ir.renderRow(sdf, camPos, w)
		if err != nil {
			return err
		}
		for i := 0; i < w; i++ {
			img.Set(bb.Min.X+i, bb.Min.Y+j, toRGBA(ir.col[i]))
		}
	}
	return nil
}

// renderRow traces the first n rays in ir.dir and leaves the shaded linear
// color of each ray in ir.col.
func (ir *ImageRenderer) renderRow(sdf gleval.ColorSDF3, ro ms3.Vec, n int) error {
	err := ir.trace(sdf, ro, n)
	if err != nil {
		return err
	}
	// Gather hits so surface color and normals are evaluated in one batch each.
	hits := ir.active[:0]
	for i := 0; i < n; i++ {
		if ir.state[i] == rayHit {
			hits = append(hits, i)
		}
	}
	colors := ir.col[:n]
	if len(hits) > 0 {
		pos := ir.pos[:len(hits)]
		for k, i := range hits {
			pos[k] = ms3.Add(ro, ms3.Scale(ir.t[i], ir.dir[i]))
		}
		normals := ir.normals[:len(hits)]
		err = gleval.NormalsCentralDiff(sdf, pos, normals, 1e-3, &ir.vp)
		if err != nil {
			return err
		}
		// Hit colors are staged at the end of the color buffer, past the row.
		hitCol := ir.col[n : n+len(hits)]
		err = sdf.EvaluateColor(pos, hitCol, ir.dist[:len(hits)], &ir.vp)
		if err != nil {
			return err
		}
		for k, i := range hits {
			colors[i] = lambert(hitCol[k], normals[k], ir.lightDir)
		}
	}
	for i := 0; i < n; i++ {
		if ir.state[i] != rayHit {
			colors[i] = background(ir.dir[i])
		}
	}
	return nil
}

// trace sphere traces the first n rays from ro, compacting the set of rays
// still marching after every evaluation.
func (ir *ImageRenderer) trace(sdf gleval.SDF3, ro ms3.Vec, n int) error {
	active := ir.active[:0]
	for i := 0; i < n; i++ {
		ir.t[i] = 0
		ir.state[i] = rayMarching
		active = append(active, i)
	}
	maxDist := ir.cfg.MaxDist
	for step := 0; step < ir.cfg.MaxSteps && len(active) > 0; step++ {
		pos, dist := ir.pos[:len(active)], ir.dist[:len(active)]
		for k, i := range active {
			pos[k] = ms3.Add(ro, ms3.Scale(ir.t[i], ir.dir[i]))
		}
		err := sdf.Evaluate(pos, dist, &ir.vp)
		if err != nil {
			return err
		}
		next := active[:0]
		for k, i := range active {
			d, t := dist[k], ir.t[i]
			if d < math32.Max(0.0005*t, 0.0001) {
				ir.state[i] = rayHit
				continue
			}
			t += d
			if !(t < maxDist) {
				ir.state[i] = rayMiss
				continue
			}
			ir.t[i] = t
			next = append(next, i)
		}
		active = next
	}
	for _, i := range active {
		ir.state[i] = rayMiss
	}
	return nil
}

func (ir *ImageRenderer) grow(w int) {
	if len(ir.dir) >= w {
		return
	}
	ir.dir = make([]ms3.Vec, w)
	ir.t = make([]float32, w)
	ir.state = make([]rayState, w)
	ir.active = make([]int, 0, w)
	ir.pos = make([]ms3.Vec, w)
	ir.col = make([]ms3.Vec, 2*w)
	ir.normals = make([]ms3.Vec, w)
	ir.dist = make([]float32, w)
}
