// Package texture decodes image files into the RGBA pixels uploaded as mesh textures.
package texture

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxExtent bounds either side of an uploaded texture. Larger images are scaled down,
// keeping their aspect ratio.
const MaxExtent = 4096

// White is a single opaque white texel, used for meshes without a texture so the
// vertex color shows unmodified.
func White() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	return img
}

// Decode reads a PNG, JPEG, BMP or WebP image.
func Decode(r io.Reader) (*image.RGBA, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	if img.Bounds().Empty() {
		return nil, errors.Newf("%s image is empty", format)
	}
	return ToRGBA(img), nil
}

func Load(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open texture")
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return img, nil
}

// ToRGBA converts img to tightly packed RGBA anchored at the origin, scaling it down if
// it exceeds MaxExtent.
func ToRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	width, height := fit(bounds.Dx(), bounds.Dy())

	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) && width == bounds.Dx() && height == bounds.Dy() && rgba.Stride == 4*width {
		return rgba
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == bounds.Dx() && height == bounds.Dy() {
		xdraw.Draw(dst, dst.Bounds(), img, bounds.Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	}
	return dst
}

func fit(width, height int) (int, int) {
	if width <= MaxExtent && height <= MaxExtent {
		return width, height
	}
	if width >= height {
		return MaxExtent, max(1, height*MaxExtent/width)
	}
	return max(1, width*MaxExtent/height), MaxExtent
}
