//go:build !tinygo && cgo

package glrender

import (
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/sdfwalk"
	"github.com/soypat/sdfwalk/camera"
)

func init() {
	// GLFW event handling must run on the main thread.
	runtime.LockOSThread()
}

const (
	flySpeed        = 10 // world units per second.
	turnSensitivity = 0.005
	frameInterval   = time.Second / 60
)

func runViewer(cfg ViewerConfig) error {
	log := cfg.logger()
	window, term, err := startGLFW(cfg.Width, cfg.Height, "sdfwalk: "+cfg.Loader.Path(), true)
	if err != nil {
		return err
	}
	defer term()
	sd := cfg.Loader.Current()
	sp, err := newSceneProgram(sd)
	if err != nil {
		return err
	}
	defer func() { sp.delete() }()
	if cfg.Lint {
		logIssues(log, sd)
	}

	var (
		fly            FlyCamera
		useScene       = !cfg.FreeCamera
		pressed        = make(map[glfw.Key]bool)
		dragging       bool
		firstMouseMove bool
		lastX, lastY   float64
		start          = glfw.GetTime()
		prev           = start
	)
	pose := func(t float32) (ms3.Vec, camera.Quat) {
		if useScene && sd.Camera != nil {
			return sd.Camera.TransformAt(t)
		}
		return fly.Pos, fly.Rotation()
	}
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		switch action {
		case glfw.Press:
			pressed[key] = true
		case glfw.Release:
			delete(pressed, key)
		default:
			return
		}
		if action != glfw.Release {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyR:
			start = glfw.GetTime()
		case glfw.KeyC:
			if useScene {
				// Continue flying from wherever the scene camera is now.
				fly.SetPose(pose(float32(glfw.GetTime() - start)))
			}
			useScene = !useScene
		}
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		switch action {
		case glfw.Press:
			dragging = true
			firstMouseMove = true
			w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		case glfw.Release:
			dragging = false
			w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		}
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if !dragging {
			return
		}
		if firstMouseMove {
			lastX, lastY = xpos, ypos
			firstMouseMove = false
		}
		fly.Turn(float32(xpos-lastX)*turnSensitivity, float32(ypos-lastY)*turnSensitivity)
		lastX, lastY = xpos, ypos
	})

	axis := func(pos, neg glfw.Key) float32 {
		var v float32
		if pressed[pos] {
			v++
		}
		if pressed[neg] {
			v--
		}
		return v
	}
	ctx := cfg.Context
	for !window.ShouldClose() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		frameStart := time.Now()
		now := glfw.GetTime()
		t, delta := float32(now-start), float32(now-prev)
		prev = now

		replaced, err := cfg.Loader.Poll()
		if err != nil {
			log("reload failed, keeping previous scene:", err)
		} else if replaced {
			next := cfg.Loader.Current()
			nextProg, err := newSceneProgram(next)
			if err != nil {
				log("reload failed, keeping previous scene:", err)
			} else {
				sp.delete()
				sp, sd = nextProg, next
				log("reloaded", cfg.Loader.Path())
				if cfg.Lint {
					logIssues(log, sd)
				}
			}
		}
		if !useScene || sd.Camera == nil {
			step := delta * flySpeed
			fly.Move(axis(glfw.KeyW, glfw.KeyS)*step, axis(glfw.KeyD, glfw.KeyA)*step, axis(glfw.KeyE, glfw.KeyQ)*step)
		}

		width, height := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(width), int32(height))
		pos, rot := pose(t)
		sp.draw(frameUniforms{
			aspect: float32(width) / float32(max(height, 1)),
			fov:    cfg.FOV,
			time:   t,
			pos:    pos,
			rot:    rot,
			light:  cfg.Light,
		})
		window.SwapBuffers()
		glfw.PollEvents()
		if elapsed := time.Since(frameStart); elapsed < frameInterval {
			time.Sleep(frameInterval - elapsed)
		}
	}
	return nil
}

func renderOffscreen(cfg OffscreenConfig, emit FrameFunc) error {
	log := cfg.logger()
	_, term, err := startGLFW(cfg.Width, cfg.Height, "sdfwalk offscreen", false)
	if err != nil {
		return err
	}
	defer term()
	sp, err := newSceneProgram(cfg.Scene)
	if err != nil {
		return err
	}
	defer sp.delete()

	// Render into our own framebuffer so the output size does not depend on the window.
	var fbo, rbo uint32
	gl.GenFramebuffers(1, &fbo)
	defer gl.DeleteFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.GenRenderbuffers(1, &rbo)
	defer gl.DeleteRenderbuffers(1, &rbo)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rbo)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.RGBA8, int32(cfg.Width), int32(cfg.Height))
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.RENDERBUFFER, rbo)
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("incomplete framebuffer: 0x%x", status)
	}
	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)

	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	raw := make([]byte, len(img.Pix))
	n := cfg.frameCount()
	for frame := 0; frame < n; frame++ {
		watch := stopwatch()
		t := float32(frame) / cfg.FPS
		pos, rot := cfg.poseAt(t)
		sp.draw(frameUniforms{
			aspect: float32(cfg.Width) / float32(cfg.Height),
			fov:    cfg.FOV,
			time:   t,
			pos:    pos,
			rot:    rot,
			light:  cfg.Light,
		})
		gl.ReadPixels(0, 0, int32(cfg.Width), int32(cfg.Height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(raw))
		if err := glError(); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		// GL rows start at the bottom.
		stride := img.Stride
		for y := 0; y < cfg.Height; y++ {
			src := raw[(cfg.Height-1-y)*stride : (cfg.Height-y)*stride]
			copy(img.Pix[y*stride:], src)
		}
		log("rendered frame", frame+1, "of", n, "in", watch())
		err = emit(frame, t, img)
		if err != nil {
			return err
		}
	}
	return nil
}

type frameUniforms struct {
	aspect, fov, time float32
	pos, light        ms3.Vec
	rot               camera.Quat
}

// sceneProgram is a compiled scene and the locations of its uniforms.
// Uniforms the scene does not use are optimized out and have location -1,
// which GL ignores on upload.
type sceneProgram struct {
	prog                                     glgl.Program
	vao                                      uint32
	aspect, fov, cam, camPos, light, timeLoc int32
}

func newSceneProgram(sd *sdfwalk.SceneDesc) (*sceneProgram, error) {
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   sd.Vertex + "\x00",
		Fragment: sd.Fragment + "\x00",
	})
	if err != nil {
		return nil, fmt.Errorf("compiling scene shader: %w", err)
	}
	loc := func(name string) int32 {
		return gl.GetUniformLocation(prog.ID(), gl.Str(name+"\x00"))
	}
	sp := &sceneProgram{
		prog:    prog,
		aspect:  loc("aspect"),
		fov:     loc("fov"),
		cam:     loc("cam"),
		camPos:  loc("cam_pos"),
		light:   loc("light"),
		timeLoc: loc("time"),
	}
	// The vertex shader builds the quad from gl_VertexID so the VAO stays empty.
	gl.GenVertexArrays(1, &sp.vao)
	return sp, nil
}

func (sp *sceneProgram) draw(u frameUniforms) {
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	sp.prog.Bind()
	cam := camera.UniformMat4(u.rot)
	gl.Uniform1f(sp.aspect, u.aspect)
	gl.Uniform1f(sp.fov, u.fov)
	gl.UniformMatrix4fv(sp.cam, 1, false, &cam[0])
	gl.Uniform3f(sp.camPos, u.pos.X, u.pos.Y, u.pos.Z)
	gl.Uniform3f(sp.light, u.light.X, u.light.Y, u.light.Z)
	gl.Uniform1f(sp.timeLoc, u.time)
	gl.BindVertexArray(sp.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
}

func (sp *sceneProgram) delete() {
	gl.DeleteVertexArrays(1, &sp.vao)
	sp.prog.Delete()
}

func glError() error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("gl error 0x%x", code)
	}
	return nil
}

func logIssues(log func(args ...any), sd *sdfwalk.SceneDesc) {
	for _, issue := range sd.Lint() {
		log(issue)
	}
}

func startGLFW(width, height int, title string, visible bool) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	if !visible {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}
	window, err = glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
