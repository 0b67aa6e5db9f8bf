package sdfwalk

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfwalk/gleval"
)

func evalScene(t *testing.T, src string, pos ...ms3.Vec) (col []ms3.Vec, dist []float32) {
	t.Helper()
	sdf, err := mustCompile(t, src).CPUSDF()
	if err != nil {
		t.Fatal(err)
	}
	var vp gleval.VecPool
	col = make([]ms3.Vec, len(pos))
	dist = make([]float32, len(pos))
	err = sdf.EvaluateColor(pos, col, dist, &vp)
	if err != nil {
		t.Fatal(err)
	}
	// Distances must not depend on whether colors are requested.
	distOnly := make([]float32, len(pos))
	err = sdf.Evaluate(pos, distOnly, &vp)
	if err != nil {
		t.Fatal(err)
	}
	for i := range dist {
		if dist[i] != distOnly[i] && !(math32.IsInf(dist[i], 1) && math32.IsInf(distOnly[i], 1)) {
			t.Errorf("Evaluate and EvaluateColor disagree at %v: %g != %g", pos[i], distOnly[i], dist[i])
		}
	}
	if err := vp.AssertAllReleased(); err != nil {
		t.Error(err)
	}
	return col, dist
}

func TestEndToEndSphere(t *testing.T) {
	col, dist := evalScene(t, "opaque(1, 0, 0) { sphere(1); }", ms3.Vec{}, ms3.Vec{X: 3})
	if dist[0] != -1 {
		t.Errorf("want distance -1 at origin, got %g", dist[0])
	}
	if col[0] != (ms3.Vec{X: 1}) {
		t.Errorf("want red at origin, got %v", col[0])
	}
	if dist[1] != 2 {
		t.Errorf("want distance 2, got %g", dist[1])
	}
}

func TestCPUColorSelection(t *testing.T) {
	const src = `
		opaque(1, 0, 0) sphere(1);
		opaque(0, 0, 1) at(3, 0, 0) sphere(1);`
	red, blue := ms3.Vec{X: 1}, ms3.Vec{Z: 1}
	col, dist := evalScene(t, src, ms3.Vec{}, ms3.Vec{X: 3}, ms3.Vec{X: 1.4}, ms3.Vec{X: 1.6})
	want := []ms3.Vec{red, blue, red, blue}
	for i := range want {
		if col[i] != want[i] {
			t.Errorf("point %d: want color %v, got %v", i, want[i], col[i])
		}
	}
	if dist[0] != -1 || dist[1] != -1 {
		t.Errorf("want -1 inside both spheres, got %v", dist[:2])
	}
	// Equidistant point resolves to the later item as csd_union does.
	col, _ = evalScene(t, src, ms3.Vec{X: 1.5})
	if col[0] != blue {
		t.Errorf("tie: want %v, got %v", blue, col[0])
	}
}

func TestCPUOperations(t *testing.T) {
	const tol = 1e-5
	for _, test := range []struct {
		src  string
		pos  ms3.Vec
		want float32
	}{
		{src: "opaque(1, 1, 1) scale(2) sphere(1);", pos: ms3.Vec{X: 3}, want: 1},
		{src: "opaque(1, 1, 1) onionize(0.1) sphere(1);", pos: ms3.Vec{}, want: 0.9},
		{src: "opaque(1, 1, 1) box(2, 4, 6);", pos: ms3.Vec{}, want: -1},
		{src: "opaque(1, 1, 1) box(2, 4, 6);", pos: ms3.Vec{X: 3}, want: 2},
		{src: "opaque(1, 1, 1) torus(2, 0.5);", pos: ms3.Vec{X: 2}, want: -0.5},
		{src: "opaque(1, 1, 1) plane(-1);", pos: ms3.Vec{Y: 1}, want: 2},
		{src: "opaque(1, 1, 1) cylinder(1, 2);", pos: ms3.Vec{Y: 3}, want: 2},
		{src: "opaque(1, 1, 1) capsule(1, 2);", pos: ms3.Vec{Y: 3}, want: 1},
		{src: "opaque(1, 1, 1) repeat(4, 4, 4) sphere(1);", pos: ms3.Vec{X: 8}, want: -1},
		{src: "opaque(1, 1, 1) mirror_x at(2, 0, 0) sphere(1);", pos: ms3.Vec{X: -2}, want: -1},
		{src: "opaque(1, 1, 1) elongate(2, 0, 0) sphere(1);", pos: ms3.Vec{X: 1.5}, want: -1},
		{src: "opaque(1, 1, 1) rotate(0, 0, 90) at(2, 0, 0) sphere(1);", pos: ms3.Vec{Y: 2}, want: -1},
		{src: "opaque(1, 1, 1) difference { sphere(2); sphere(1); }", pos: ms3.Vec{}, want: 1},
		{src: "opaque(1, 1, 1) intersection { sphere(2); at(1, 0, 0) sphere(2); }", pos: ms3.Vec{X: -1}, want: 0},
		{src: "opaque(1, 1, 1) smooth_union(0.5) { sphere(1); at(3, 0, 0) sphere(1); }", pos: ms3.Vec{}, want: -1},
		{src: "opaque(1, 1, 1) union;", pos: ms3.Vec{}, want: math32.Inf(1)},
	} {
		_, dist := evalScene(t, test.src, test.pos)
		got := dist[0]
		if math32.IsInf(test.want, 1) {
			if !math32.IsInf(got, 1) {
				t.Errorf("%s: want +Inf, got %g", test.src, got)
			}
			continue
		}
		if math32.Abs(got-test.want) > tol {
			t.Errorf("%s at %v: want %g, got %g", test.src, test.pos, test.want, got)
		}
	}
}

func TestCPUUnsupported(t *testing.T) {
	for _, src := range []string{
		"opaque(1, 0, 0) raw(length($) - 1.0);",
		"opaque(1, 0, 0) let(r, 1.0) sphere($r);",
		"opaque(1, 0, 0) cond(time > 1.0) sphere(1);",
		"opaque(1, 0, 0) advanced_repeat(2, 2, 2) sphere(0.5);",
		"opaque(1, 0, 0) mystery(1);",
		"opaque(1, 0, 0) sphere(time);",
		"define_opaque(red) opaque(1, 0, 0) sphere(1); red;",
	} {
		_, err := mustCompile(t, src).CPUSDF()
		if !errors.Is(err, ErrCPUUnsupported) {
			t.Errorf("%s: want ErrCPUUnsupported, got %v", src, err)
		}
	}
}
