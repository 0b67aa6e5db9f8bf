package glrender

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfwalk"
	"github.com/soypat/sdfwalk/camera"
)

func mustScene(t *testing.T, src string) *sdfwalk.SceneDesc {
	t.Helper()
	sd, err := sdfwalk.Compile([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	return sd
}

func TestRenderSphere(t *testing.T) {
	sdf, err := mustScene(t, "opaque(1, 0, 0) sphere(1);").CPUSDF()
	if err != nil {
		t.Fatal(err)
	}
	renderer, err := NewImageRenderer(ImageConfig{})
	if err != nil {
		t.Fatal(err)
	}
	const size = 32
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	err = renderer.Render(sdf, img, ms3.Vec{Z: -5}, camera.IdentityQuat())
	if err != nil {
		t.Fatal(err)
	}
	center := img.RGBAAt(size/2, size/2)
	if center.R < 150 || center.G != 0 || center.B != 0 {
		t.Errorf("want lit red at center, got %v", center)
	}
	for _, corner := range []image.Point{{0, 0}, {size - 1, 0}, {0, size - 1}, {size - 1, size - 1}} {
		c := img.RGBAAt(corner.X, corner.Y)
		if c.B <= c.R || c.G < 50 {
			t.Errorf("want background at %v, got %v", corner, c)
		}
	}
	if err := renderer.vp.AssertAllReleased(); err != nil {
		t.Error(err)
	}
}

func TestRenderEmptyScene(t *testing.T) {
	sdf, err := mustScene(t, "opaque(1, 0, 0) union;").CPUSDF()
	if err != nil {
		t.Fatal(err)
	}
	renderer, err := NewImageRenderer(ImageConfig{})
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	err = renderer.Render(sdf, img, ms3.Vec{}, camera.IdentityQuat())
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if c := img.RGBAAt(x, y); c.R >= c.B {
				t.Errorf("pixel (%d,%d): want background, got %v", x, y, c)
			}
		}
	}
}

func TestImageConfigValidation(t *testing.T) {
	for _, cfg := range []ImageConfig{
		{FOV: -1},
		{FOV: math32.Pi},
		{MaxSteps: -1},
		{MaxDist: -1},
	} {
		_, err := NewImageRenderer(cfg)
		if err == nil {
			t.Errorf("want error for %+v", cfg)
		}
	}
}

func TestRenderFramesCPU(t *testing.T) {
	sd := mustScene(t, `
		camera {
			keyframe(0) pos(0, 0, -5);
			keyframe(1, +) pos(0, 0, -6);
		}
		opaque(1, 0, 0) sphere(1);`)
	var times []float32
	cfg := OffscreenConfig{Scene: sd, Width: 8, Height: 6, FPS: 4, Silent: true}
	err := RenderFramesCPU(cfg, func(frame int, ft float32, img *image.RGBA) error {
		if frame != len(times) {
			t.Errorf("frame %d out of order", frame)
		}
		if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
			t.Errorf("bad frame size %v", img.Bounds())
		}
		times = append(times, ft)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{0, 0.25, 0.5, 0.75, 1}
	if len(times) != len(want) {
		t.Fatalf("want %d frames, got %d: %v", len(want), len(times), times)
	}
	for i := range want {
		if math32.Abs(times[i]-want[i]) > 1e-6 {
			t.Errorf("frame %d: want t=%g, got %g", i, want[i], times[i])
		}
	}

	stop := errors.New("stop")
	err = RenderFramesCPU(cfg, func(int, float32, *image.RGBA) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("want callback error, got %v", err)
	}
}

func TestRenderFramesCPUNoCamera(t *testing.T) {
	sd := mustScene(t, "opaque(0, 1, 0) sphere(1);")
	var frames int
	cfg := OffscreenConfig{Scene: sd, Width: 9, Height: 9, FPS: 30, Pos: ms3.Vec{Z: -4}, Silent: true}
	err := RenderFramesCPU(cfg, func(frame int, ft float32, img *image.RGBA) error {
		frames++
		if c := img.RGBAAt(4, 4); c.G < 150 || c.R != 0 {
			t.Errorf("want green at center, got %v", c)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if frames != 1 {
		t.Errorf("want a single frame without camera, got %d", frames)
	}
}

func TestRenderFramesCPUErrors(t *testing.T) {
	emit := func(int, float32, *image.RGBA) error { return nil }
	sd := mustScene(t, "opaque(1, 0, 0) sphere(1);")
	for _, cfg := range []OffscreenConfig{
		{Width: 4, Height: 4, FPS: 1},
		{Scene: sd, Width: 0, Height: 4, FPS: 1},
		{Scene: sd, Width: 4, Height: 4},
		{Scene: sd, Width: 4, Height: 4, FPS: 1, Duration: -1},
	} {
		if err := RenderFramesCPU(cfg, emit); err == nil {
			t.Errorf("want error for %+v", cfg)
		}
	}
	if err := RenderFramesCPU(OffscreenConfig{Scene: sd, Width: 4, Height: 4, FPS: 1}, nil); err == nil {
		t.Error("want error for nil callback")
	}
	raw := mustScene(t, "opaque(1, 0, 0) raw(length($) - 1.0);")
	err := RenderFramesCPU(OffscreenConfig{Scene: raw, Width: 4, Height: 4, FPS: 1, Silent: true}, emit)
	if !errors.Is(err, sdfwalk.ErrCPUUnsupported) {
		t.Errorf("want ErrCPUUnsupported, got %v", err)
	}
}

func TestWritePNGFrame(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	path, err := WritePNGFrame(dir, 7, img)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "frame_00007.png") {
		t.Errorf("unexpected frame path %q", path)
	}
	fp, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	decoded, err := png.Decode(fp)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := decoded.At(1, 1).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Errorf("pixel not preserved: %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestStamp(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 40))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	err := Stamp(img, Timecode(12, 0.4))
	if err != nil {
		t.Fatal(err)
	}
	var dark, bright int
	for y := 0; y < 20; y++ {
		for x := 0; x < 80; x++ {
			c := img.RGBAAt(x, y)
			switch {
			case c.R < 150:
				dark++
			case c.R > 200:
				bright++
			}
		}
	}
	if dark == 0 || bright == 0 {
		t.Errorf("want dark box with light text, got %d dark and %d bright pixels", dark, bright)
	}
	if c := img.RGBAAt(199, 39); c != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("stamp drew outside its box: %v", c)
	}
	if got := Timecode(12, 0.4); got != "#00012 t=0.400s" {
		t.Errorf("unexpected timecode %q", got)
	}
}

func TestFlyCamera(t *testing.T) {
	const tol = 1e-5
	near := func(a, b ms3.Vec) bool {
		return math32.Abs(a.X-b.X) < tol && math32.Abs(a.Y-b.Y) < tol && math32.Abs(a.Z-b.Z) < tol
	}
	var fc FlyCamera
	fc.Move(1, 0, 0)
	if !near(fc.Pos, ms3.Vec{Z: 1}) {
		t.Errorf("zero camera should move along +Z, got %v", fc.Pos)
	}
	fc.Turn(math32.Pi/2, 0)
	fc.Move(2, 0, 1)
	if !near(fc.Pos, ms3.Vec{X: 2, Y: 1, Z: 1}) {
		t.Errorf("after turning right want (2,1,1), got %v", fc.Pos)
	}
	fc.Turn(0, 10)
	if fc.Pitch != maxPitch {
		t.Errorf("pitch not clamped: %g", fc.Pitch)
	}

	var fromPose FlyCamera
	dir := ms3.Unit(ms3.Vec{X: 1, Y: -1, Z: 1})
	fromPose.SetPose(ms3.Vec{X: 3}, camera.LookAtLH(dir, ms3.Vec{Y: 1}))
	if got := fromPose.Rotation().Rotate(ms3.Vec{Z: 1}); !near(got, dir) {
		t.Errorf("SetPose: want forward %v, got %v", dir, got)
	}
	if fromPose.Pos != (ms3.Vec{X: 3}) {
		t.Errorf("SetPose: position not set: %v", fromPose.Pos)
	}
}
