package sdfwalk

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/sdfwalk/gleval"
)

// ErrCPUUnsupported is returned by [SceneDesc.CPUSDF] for scenes using
// statements that only exist as GLSL, such as raw expressions, let bindings,
// conditionals and calls to user definitions.
var ErrCPUUnsupported = errors.New("not supported by CPU evaluation")

// cpuNode evaluates a subtree on the CPU. col is nil when the caller does not
// need colors, which is always the case for geometry subtrees.
type cpuNode interface {
	evaluate(pos, col []ms3.Vec, dist []float32, vp *gleval.VecPool) error
}

// CPUSDF returns an evaluator of the scene's opaque geometry that mirrors
// the generated map_geometry function. Every node is validated up front so
// evaluation never encounters unsupported statements.
func (sd *SceneDesc) CPUSDF() (gleval.ColorSDF3, error) {
	if sd.Opaque == nil {
		return nil, errors.New("scene has no opaque root")
	}
	root, err := buildCPU(sd.Opaque)
	if err != nil {
		return nil, err
	}
	return &cpuSDF{root: root}, nil
}

type cpuSDF struct {
	root cpuNode
}

// Evaluate implements [gleval.SDF3].
func (s *cpuSDF) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := gleval.CheckBuffers(pos, dist); err != nil {
		return err
	}
	vp, err := gleval.GetVecPool(userData)
	if err != nil {
		return err
	}
	return s.root.evaluate(pos, nil, dist, vp)
}

// EvaluateColor implements [gleval.ColorSDF3].
func (s *cpuSDF) EvaluateColor(pos, col []ms3.Vec, dist []float32, userData any) error {
	if err := gleval.CheckBuffers(pos, dist); err != nil {
		return err
	} else if len(col) != len(pos) {
		return errors.New("color and position buffer length mismatch")
	}
	vp, err := gleval.GetVecPool(userData)
	if err != nil {
		return err
	}
	return s.root.evaluate(pos, col, dist, vp)
}

func buildCPU(n Node) (cpuNode, error) {
	switch n := n.(type) {
	case *Fold:
		return buildCPUFold(n)
	case *Shape:
		if n.Sort() != SortOpaque {
			return nil, fmt.Errorf("%w: %s shape", ErrCPUUnsupported, n.Sort())
		}
		c, err := literalFloats(n.Color[:])
		if err != nil {
			return nil, err
		}
		child, err := buildCPU(n.Child)
		if err != nil {
			return nil, err
		}
		return &cpuShape{color: ms3.Vec{X: c[0], Y: c[1], Z: c[2]}, child: child}, nil
	case *Transform:
		return buildCPUTransform(n)
	case *Named:
		if n.Sort() != SortGeometry {
			return nil, fmt.Errorf("%w: %s used as %s", ErrCPUUnsupported, n.Name, n.Sort())
		}
		return buildCPUPrimitive(n)
	case *Raw:
		return nil, fmt.Errorf("%w: raw(%s)", ErrCPUUnsupported, n.Expr)
	}
	return nil, fmt.Errorf("%w: node %T", ErrCPUUnsupported, n)
}

func buildCPUFold(f *Fold) (cpuNode, error) {
	if len(f.Items) == 1 {
		return buildCPU(f.Items[0])
	}
	fold := &cpuFold{op: f.Op}
	if f.Op == OpSmoothUnion {
		k, err := literalFloats([]string{f.K})
		if err != nil {
			return nil, err
		}
		fold.k = k[0]
	}
	for _, item := range f.Items {
		node, err := buildCPU(item)
		if err != nil {
			return nil, err
		}
		fold.items = append(fold.items, node)
	}
	return fold, nil
}

var cpuRemaps = map[string]func(args []float32, p ms3.Vec) ms3.Vec{
	"at": func(a []float32, p ms3.Vec) ms3.Vec {
		return ms3.Sub(p, ms3.Vec{X: a[0], Y: a[1], Z: a[2]})
	},
	"rotate": func(a []float32, p ms3.Vec) ms3.Vec {
		const deg = math32.Pi / 180
		return rotX(-a[0]*deg, rotY(-a[1]*deg, rotZ(-a[2]*deg, p)))
	},
	"repeat": func(a []float32, p ms3.Vec) ms3.Vec {
		return ms3.Vec{X: repeat1(a[0], p.X), Y: repeat1(a[1], p.Y), Z: repeat1(a[2], p.Z)}
	},
	"mirror_x": func(_ []float32, p ms3.Vec) ms3.Vec { p.X = math32.Abs(p.X); return p },
	"mirror_y": func(_ []float32, p ms3.Vec) ms3.Vec { p.Y = math32.Abs(p.Y); return p },
	"mirror_z": func(_ []float32, p ms3.Vec) ms3.Vec { p.Z = math32.Abs(p.Z); return p },
	"elongate": func(a []float32, p ms3.Vec) ms3.Vec {
		return ms3.Vec{
			X: p.X - ms1.Clamp(p.X, -a[0], a[0]),
			Y: p.Y - ms1.Clamp(p.Y, -a[1], a[1]),
			Z: p.Z - ms1.Clamp(p.Z, -a[2], a[2]),
		}
	},
	"twist": func(a []float32, p ms3.Vec) ms3.Vec {
		s, c := math32.Sincos(a[0] * p.Y)
		return ms3.Vec{X: c*p.X - s*p.Z, Y: p.Y, Z: s*p.X + c*p.Z}
	},
	"bend": func(a []float32, p ms3.Vec) ms3.Vec {
		s, c := math32.Sincos(a[0] * p.X)
		return ms3.Vec{X: c*p.X - s*p.Y, Y: s*p.X + c*p.Y, Z: p.Z}
	},
}

func buildCPUTransform(t *Transform) (cpuNode, error) {
	child, err := buildCPU(t.Child)
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case TransformRemap:
		remap, ok := cpuRemaps[t.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrCPUUnsupported, t.Name)
		}
		args, err := literalFloats(t.Args)
		if err != nil {
			return nil, err
		}
		return &cpuRemap{args: args, remap: remap, child: child}, nil
	case TransformScale, TransformOnionize:
		args, err := literalFloats(t.Args)
		if err != nil {
			return nil, err
		}
		if t.Kind == TransformScale {
			if args[0] == 0 {
				return nil, errors.New("scale by zero")
			}
			return &cpuScale{k: args[0], child: child}, nil
		}
		return &cpuOnionize{t: args[0], child: child}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCPUUnsupported, t.Name)
}

func buildCPUPrimitive(n *Named) (cpuNode, error) {
	prim, ok := cpuPrimitives[n.Name]
	if !ok {
		return nil, fmt.Errorf("%w: primitive %s", ErrCPUUnsupported, n.Name)
	} else if len(n.Args) != prim.nargs {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArity, n.Name, prim.nargs, len(n.Args))
	}
	args, err := literalFloats(n.Args)
	if err != nil {
		return nil, err
	}
	return &cpuPrimitive{args: args, sdf: prim.sdf}, nil
}

// literalFloats parses numeric literal arguments as GLSL would read them.
func literalFloats(args []string) ([]float32, error) {
	out := make([]float32, len(args))
	for i, arg := range args {
		s := strings.TrimSpace(arg)
		// GLSL float suffix.
		s = strings.TrimSuffix(strings.TrimSuffix(s, "f"), "F")
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: non literal argument %q", ErrCPUUnsupported, arg)
		}
		out[i] = float32(v)
	}
	return out, nil
}

type primitiveSDF struct {
	nargs int
	sdf   func(a []float32, p ms3.Vec) float32
}

var cpuPrimitives = map[string]primitiveSDF{
	"sphere": {nargs: 1, sdf: func(a []float32, p ms3.Vec) float32 {
		return ms3.Norm(p) - a[0]
	}},
	"box": {nargs: 3, sdf: func(a []float32, p ms3.Vec) float32 {
		q := ms3.Sub(ms3.AbsElem(p), ms3.Scale(0.5, ms3.Vec{X: a[0], Y: a[1], Z: a[2]}))
		return ms3.Norm(ms3.MaxElem(q, ms3.Vec{})) + math32.Min(math32.Max(q.X, math32.Max(q.Y, q.Z)), 0)
	}},
	"torus": {nargs: 2, sdf: func(a []float32, p ms3.Vec) float32 {
		return math32.Hypot(math32.Hypot(p.X, p.Z)-a[0], p.Y) - a[1]
	}},
	"plane": {nargs: 1, sdf: func(a []float32, p ms3.Vec) float32 {
		return p.Y - a[0]
	}},
	"cylinder": {nargs: 2, sdf: func(a []float32, p ms3.Vec) float32 {
		dx := math32.Hypot(p.X, p.Z) - a[0]
		dy := math32.Abs(p.Y) - 0.5*a[1]
		return math32.Min(math32.Max(dx, dy), 0) + math32.Hypot(math32.Max(dx, 0), math32.Max(dy, 0))
	}},
	"capsule": {nargs: 2, sdf: func(a []float32, p ms3.Vec) float32 {
		h := 0.5 * a[1]
		p.Y -= ms1.Clamp(p.Y, -h, h)
		return ms3.Norm(p) - a[0]
	}},
}

type cpuPrimitive struct {
	args []float32
	sdf  func(a []float32, p ms3.Vec) float32
}

func (c *cpuPrimitive) evaluate(pos, col []ms3.Vec, dist []float32, vp *gleval.VecPool) error {
	for i, p := range pos {
		dist[i] = c.sdf(c.args, p)
	}
	for i := range col {
		col[i] = ms3.Vec{}
	}
	return nil
}

type cpuShape struct {
	color ms3.Vec
	child cpuNode
}

func (s *cpuShape) evaluate(pos, col []ms3.Vec, dist []float32, vp *gleval.VecPool) error {
	err := s.child.evaluate(pos, nil, dist, vp)
	if err != nil {
		return err
	}
	for i := range col {
		col[i] = s.color
	}
	return nil
}

type cpuFold struct {
	op    FoldOp
	k     float32
	items []cpuNode
}

func (f *cpuFold) evaluate(pos, col []ms3.Vec, dist []float32, vp *gleval.VecPool) error {
	if len(f.items) == 0 {
		d := math32.Inf(1)
		if f.op == OpIntersection {
			d = 0
		}
		for i := range dist {
			dist[i] = d
		}
		for i := range col {
			col[i] = ms3.Vec{}
		}
		return nil
	}
	err := f.items[0].evaluate(pos, col, dist, vp)
	if err != nil {
		return err
	}
	auxDist := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(auxDist)
	var auxCol []ms3.Vec
	if col != nil {
		auxCol = vp.V3.Acquire(len(col))
		defer vp.V3.Release(auxCol)
	}
	for _, item := range f.items[1:] {
		err = item.evaluate(pos, auxCol, auxDist, vp)
		if err != nil {
			return err
		}
		f.combine(col, dist, auxCol, auxDist)
	}
	return nil
}

// combine stores op(a, b) into a. Ties resolve to b as the GLSL combinators do.
func (f *cpuFold) combine(acol []ms3.Vec, adist []float32, bcol []ms3.Vec, bdist []float32) {
	for i, b := range bdist {
		a := adist[i]
		var useB bool
		switch f.op {
		case OpUnion:
			useB = !(a < b)
		case OpIntersection:
			useB = !(a > b)
		case OpDifference:
			if !(a > -b) {
				adist[i] = -b
				if acol != nil {
					acol[i] = bcol[i]
				}
			}
			continue
		case OpSmoothUnion:
			h := ms1.Clamp(0.5+0.5*(b-a)/f.k, 0, 1)
			adist[i] = ms1.Interp(b, a, h) - f.k*h*(1-h)
			if acol != nil {
				acol[i] = ms3.InterpElem(bcol[i], acol[i], ms3.Vec{X: h, Y: h, Z: h})
			}
			continue
		}
		if useB {
			adist[i] = b
			if acol != nil {
				acol[i] = bcol[i]
			}
		}
	}
}

type cpuRemap struct {
	args  []float32
	remap func(args []float32, p ms3.Vec) ms3.Vec
	child cpuNode
}

func (r *cpuRemap) evaluate(pos, col []ms3.Vec, dist []float32, vp *gleval.VecPool) error {
	local := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(local)
	for i, p := range pos {
		local[i] = r.remap(r.args, p)
	}
	return r.child.evaluate(local, col, dist, vp)
}

type cpuScale struct {
	k     float32
	child cpuNode
}

func (s *cpuScale) evaluate(pos, col []ms3.Vec, dist []float32, vp *gleval.VecPool) error {
	local := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(local)
	inv := 1 / s.k
	for i, p := range pos {
		local[i] = ms3.Scale(inv, p)
	}
	err := s.child.evaluate(local, col, dist, vp)
	if err != nil {
		return err
	}
	for i := range dist {
		dist[i] *= s.k
	}
	return nil
}

type cpuOnionize struct {
	t     float32
	child cpuNode
}

func (o *cpuOnionize) evaluate(pos, col []ms3.Vec, dist []float32, vp *gleval.VecPool) error {
	err := o.child.evaluate(pos, col, dist, vp)
	if err != nil {
		return err
	}
	for i, d := range dist {
		dist[i] = math32.Abs(d) - o.t
	}
	return nil
}

func rotX(a float32, p ms3.Vec) ms3.Vec {
	s, c := math32.Sincos(a)
	return ms3.Vec{X: p.X, Y: c*p.Y - s*p.Z, Z: s*p.Y + c*p.Z}
}

func rotY(a float32, p ms3.Vec) ms3.Vec {
	s, c := math32.Sincos(a)
	return ms3.Vec{X: c*p.X + s*p.Z, Y: p.Y, Z: -s*p.X + c*p.Z}
}

func rotZ(a float32, p ms3.Vec) ms3.Vec {
	s, c := math32.Sincos(a)
	return ms3.Vec{X: c*p.X - s*p.Y, Y: s*p.X + c*p.Y, Z: p.Z}
}

// repeat1 mirrors GLSL mod(p + 0.5c, c) - 0.5c for a single component.
func repeat1(c, p float32) float32 {
	x := p + 0.5*c
	return x - c*math32.Floor(x/c) - 0.5*c
}
