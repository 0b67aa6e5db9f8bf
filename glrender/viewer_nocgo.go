//go:build tinygo || !cgo

package glrender

import "errors"

var errNoCGO = errors.New("require cgo for OpenGL rendering, use RenderFramesCPU instead")

func runViewer(cfg ViewerConfig) error {
	return errNoCGO
}

func renderOffscreen(cfg OffscreenConfig, emit FrameFunc) error {
	return errNoCGO
}
