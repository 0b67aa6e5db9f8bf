package glrender

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfwalk"
	"github.com/soypat/sdfwalk/camera"
	"github.com/soypat/sdfwalk/sceneload"
)

// ViewerConfig configures [RunViewer].
type ViewerConfig struct {
	// Loader provides the scene and is polled every frame for changes.
	Loader        *sceneload.Loader
	Width, Height int
	FOV           float32
	Light         ms3.Vec
	// FreeCamera starts in fly mode even if the scene declares a camera.
	// Pressing C toggles between the scene camera and the fly camera.
	FreeCamera bool
	// Lint logs [sdfwalk.SceneDesc.Lint] issues of every loaded scene.
	Lint   bool
	Silent bool
	// Context cancels the viewer loop when done. May be nil.
	Context context.Context
}

// OffscreenConfig configures [RenderOffscreen] and [RenderFramesCPU].
type OffscreenConfig struct {
	Scene         *sdfwalk.SceneDesc
	Width, Height int
	FPS           float32
	FOV           float32
	Light         ms3.Vec
	// Duration is the length of the rendered sequence in seconds.
	// Zero renders the scene camera's full timeline, or a single frame
	// when the scene has no camera.
	Duration float32
	// Pos and Rot are the camera pose used when the scene has no camera.
	// A zero Rot is the identity rotation.
	Pos    ms3.Vec
	Rot    camera.Quat
	Silent bool
}

// FrameFunc receives every rendered frame in order. img is reused between calls.
type FrameFunc func(frame int, t float32, img *image.RGBA) error

// RunViewer opens a window showing the loader's scene until it is closed.
// It requires cgo.
func RunViewer(cfg ViewerConfig) error {
	if cfg.Loader == nil {
		return errors.New("nil scene loader")
	}
	if err := cfg.defaults(); err != nil {
		return err
	}
	return runViewer(cfg)
}

// RenderOffscreen renders the scene on the GPU into a hidden window and
// passes each frame to emit. It requires cgo.
func RenderOffscreen(cfg OffscreenConfig, emit FrameFunc) error {
	if err := cfg.validate(emit); err != nil {
		return err
	}
	return renderOffscreen(cfg, emit)
}

// RenderFramesCPU is like [RenderOffscreen] but sphere traces the opaque
// geometry on the CPU. Scenes that [sdfwalk.SceneDesc.CPUSDF] cannot
// evaluate are rejected.
func RenderFramesCPU(cfg OffscreenConfig, emit FrameFunc) error {
	if err := cfg.validate(emit); err != nil {
		return err
	}
	log := cfg.logger()
	sdf, err := cfg.Scene.CPUSDF()
	if err != nil {
		return err
	}
	renderer, err := NewImageRenderer(ImageConfig{FOV: cfg.FOV, Light: cfg.Light})
	if err != nil {
		return err
	}
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	n := cfg.frameCount()
	for frame := 0; frame < n; frame++ {
		watch := stopwatch()
		t := float32(frame) / cfg.FPS
		pos, rot := cfg.poseAt(t)
		err = renderer.Render(sdf, img, pos, rot)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		log("rendered frame", frame+1, "of", n, "in", watch())
		err = emit(frame, t, img)
		if err != nil {
			return err
		}
	}
	return nil
}

func (cfg *ViewerConfig) defaults() error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("invalid window size")
	}
	if cfg.FOV == 0 {
		cfg.FOV = DefaultFOV
	}
	if cfg.Light == (ms3.Vec{}) {
		cfg.Light = DefaultLight
	}
	return nil
}

func (cfg *ViewerConfig) logger() func(args ...any) {
	return func(args ...any) {
		if !cfg.Silent {
			log.Println(args...)
		}
	}
}

func (cfg *OffscreenConfig) validate(emit FrameFunc) error {
	switch {
	case cfg.Scene == nil:
		return errors.New("nil scene")
	case emit == nil:
		return errors.New("nil frame callback")
	case cfg.Width <= 0 || cfg.Height <= 0:
		return errors.New("invalid frame size")
	case !(cfg.FPS > 0):
		return errors.New("frame rate must be positive")
	case cfg.Duration < 0:
		return errors.New("negative duration")
	}
	if cfg.FOV == 0 {
		cfg.FOV = DefaultFOV
	}
	if cfg.Light == (ms3.Vec{}) {
		cfg.Light = DefaultLight
	}
	if cfg.Rot == (camera.Quat{}) {
		cfg.Rot = camera.IdentityQuat()
	}
	return nil
}

func (cfg *OffscreenConfig) logger() func(args ...any) {
	return func(args ...any) {
		if !cfg.Silent {
			log.Println(args...)
		}
	}
}

// frameCount returns the number of frames needed to cover the duration,
// both ends included.
func (cfg *OffscreenConfig) frameCount() int {
	duration := cfg.Duration
	if duration == 0 && cfg.Scene.Camera != nil {
		duration = cfg.Scene.Camera.Duration()
	}
	return int(math32.Floor(duration*cfg.FPS+1e-3)) + 1
}

func (cfg *OffscreenConfig) poseAt(t float32) (ms3.Vec, camera.Quat) {
	if cfg.Scene.Camera != nil {
		return cfg.Scene.Camera.TransformAt(t)
	}
	return cfg.Pos, cfg.Rot
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
