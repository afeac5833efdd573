package omniglot

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	// Side is the width and height images are resized to.
	Side = 28
	// NumPixels is the length of a flattened transformed image.
	NumPixels = Side * Side
)

func loadImage(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %s", path)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %s", path)
	}
	return transform(src), nil
}

// transform resizes to Side x Side grayscale and maps pixels into [0, 1] with
// ink as 1. Omniglot scans are dark glyphs on a white background.
func transform(src image.Image) []float32 {
	dst := image.NewGray(image.Rect(0, 0, Side, Side))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	px := make([]float32, NumPixels)
	for i, v := range dst.Pix {
		px[i] = 1 - float32(v)/255
	}
	return px
}
