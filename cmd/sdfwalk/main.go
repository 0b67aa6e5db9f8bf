// Command sdfwalk compiles a scene file to a raymarching shader and either
// explores it in a window, reloading the scene whenever the file changes,
// or renders the scene camera's trajectory to a sequence of PNG frames.
//
// Usage:
//
//	sdfwalk [options] <scene>
//
// Examples:
//
//	sdfwalk scene.sdf                         # Interactive viewer.
//	sdfwalk -offline -o out -stamp scene.sdf  # Frames out/frame_00000.png onwards.
//	sdfwalk -offline -cpu scene.sdf           # Same, without a GPU.
//	sdfwalk -lint scene.sdf
//
// In the viewer WASD moves, Q and E move down and up, dragging with the left
// mouse button looks around, C toggles the scene camera and R restarts time.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/chewxy/math32"
	"github.com/soypat/sdfwalk"
	"github.com/soypat/sdfwalk/glrender"
	"github.com/soypat/sdfwalk/sceneload"
)

func main() {
	log.SetFlags(log.Ltime)
	err := run(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	} else if err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	s, err := parseArgs(args, os.Stderr)
	if err != nil {
		return err
	}
	logf := func(format string, args ...any) {
		if !s.Silent {
			log.Printf(format, args...)
		}
	}
	if s.ConfigPath != "" {
		logf("using config %s", s.ConfigPath)
	}
	opts := sceneload.Options{
		Scene: sdfwalk.Options{DisableCamera: s.NoCamera},
	}
	switch {
	case s.Lint:
		return lintScene(s.Scene, opts)
	case s.Offline:
		return renderFrames(s, opts, logf)
	}
	loader, err := sceneload.NewLoader(s.Scene, opts)
	if err != nil {
		return err
	}
	return glrender.RunViewer(glrender.ViewerConfig{
		Loader:     loader,
		Width:      s.Width,
		Height:     s.Height,
		FOV:        degToRad(s.FOV),
		FreeCamera: s.NoCamera,
		Lint:       true,
		Silent:     s.Silent,
	})
}

func renderFrames(s settings, opts sceneload.Options, logf func(string, ...any)) error {
	sd, err := sceneload.Load(s.Scene, opts)
	if err != nil {
		return err
	}
	err = os.MkdirAll(s.Output, 0o755)
	if err != nil {
		return err
	}
	render := glrender.RenderOffscreen
	if s.CPU {
		render = glrender.RenderFramesCPU
	}
	var written int
	err = render(glrender.OffscreenConfig{
		Scene:    sd,
		Width:    s.Width,
		Height:   s.Height,
		FPS:      s.FPS,
		FOV:      degToRad(s.FOV),
		Duration: s.Duration,
		Silent:   s.Silent,
	}, func(frame int, t float32, img *image.RGBA) error {
		if s.Stamp {
			if err := glrender.Stamp(img, glrender.Timecode(frame, t)); err != nil {
				return err
			}
		}
		_, err := glrender.WritePNGFrame(s.Output, frame, img)
		written++
		return err
	})
	if err != nil {
		return err
	}
	logf("wrote %d frames to %s", written, s.Output)
	return nil
}

func lintScene(path string, opts sceneload.Options) error {
	sd, err := sceneload.Load(path, opts)
	if err != nil {
		return err
	}
	var errCount int
	for _, issue := range sd.Lint() {
		fmt.Println(issue)
		if issue.Level == sdfwalk.IssueError {
			errCount++
		}
	}
	if errCount > 0 {
		return fmt.Errorf("%s: %d lint errors", path, errCount)
	}
	return nil
}

func degToRad(deg float32) float32 {
	return deg * math32.Pi / 180
}
