package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Downsample scales an image to targetWidth pixels wide, preserving
// aspect ratio. Rendering once at the largest size and downsampling is
// much cheaper than rasterizing the page once per size.
func Downsample(img image.Image, targetWidth int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= targetWidth {
		return img
	}
	targetHeight := bounds.Dy() * targetWidth / bounds.Dx()
	if targetHeight < 1 {
		targetHeight = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// EncodeGIF serializes a page image in the format the viewer serves.
func EncodeGIF(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("failed to encode GIF: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG serializes an image losslessly for OCR input.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Region is a normalized rectangle on a page, with both axes in [0, 1]
// and the origin at the top left.
type Region struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// BlackOut paints opaque black rectangles over the given normalized
// regions of a rendered page.
func BlackOut(img image.Image, regions []Region) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	for _, r := range regions {
		box := image.Rect(
			bounds.Min.X+int(r.X1*w),
			bounds.Min.Y+int(r.Y1*h),
			bounds.Min.X+int(r.X2*w),
			bounds.Min.Y+int(r.Y2*h),
		).Intersect(bounds)
		draw.Draw(dst, box, image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
	return dst
}
