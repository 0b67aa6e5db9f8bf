package glrender

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// FrameName returns the file name of the frame with the given index.
func FrameName(index int) string {
	return fmt.Sprintf("frame_%05d.png", index)
}

// WritePNGFrame encodes img as PNG into dir with the name given by [FrameName].
// It returns the path of the written file.
func WritePNGFrame(dir string, index int, img image.Image) (string, error) {
	path := filepath.Join(dir, FrameName(index))
	fp, err := os.Create(path)
	if err != nil {
		return "", err
	}
	err = png.Encode(fp, img)
	if err != nil {
		fp.Close()
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}
	return path, fp.Close()
}

// Timecode formats a time in seconds as a frame label.
func Timecode(frame int, seconds float32) string {
	return fmt.Sprintf("#%05d t=%.3fs", frame, seconds)
}

const stampSize = 14

var (
	stampOnce sync.Once
	stampFont *truetype.Font
	stampErr  error
)

// Stamp draws text over a dark box in the top left corner of img.
func Stamp(img draw.Image, text string) error {
	stampOnce.Do(func() {
		stampFont, stampErr = truetype.Parse(goregular.TTF)
	})
	if stampErr != nil {
		return stampErr
	}
	face := truetype.NewFace(stampFont, &truetype.Options{
		Size:    stampSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	defer face.Close()
	const pad = 4
	metrics := face.Metrics()
	width := font.MeasureString(face, text)
	bb := img.Bounds()
	box := image.Rect(0, 0, width.Ceil()+2*pad, (metrics.Ascent+metrics.Descent).Ceil()+2*pad).Add(bb.Min).Intersect(bb)
	draw.Draw(img, box, image.NewUniform(color.RGBA{A: 160}), image.Point{}, draw.Over)
	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(bb.Min.X+pad, bb.Min.Y+pad).Add(fixed.Point26_6{Y: metrics.Ascent}),
	}
	d.DrawString(text)
	return nil
}
