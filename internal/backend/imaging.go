// Package backend implements the resize backend on disintegration/imaging
// with the standard library codecs. Decode accepts jpeg, png, gif, bmp and
// webp input; output is jpeg or png.
package backend

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/imazen/lightresize/internal/geometry"
	"github.com/imazen/lightresize/internal/resize"
)

// Imaging is a resize.Backend backed by disintegration/imaging. It uses
// Lanczos resampling for every scale operation.
type Imaging struct {
	filter imaging.ResampleFilter
}

// New creates the imaging backend.
func New() *Imaging {
	return &Imaging{filter: imaging.Lanczos}
}

// nrgbaImage wraps the NRGBA pixel buffer every operation in this backend
// works on. Close drops the buffer so a use-after-close is caught instead of
// silently reading stale pixels.
type nrgbaImage struct {
	px *image.NRGBA
}

func (i *nrgbaImage) Size() geometry.Size {
	b := i.px.Bounds()
	return geometry.NewSize(b.Dx(), b.Dy())
}

func (i *nrgbaImage) Close() error {
	i.px = nil
	return nil
}

// Decode reads one image from r. The standard library decoders do not apply
// embedded color profiles, so applyICC has no effect here; it is part of the
// backend contract for implementations that can honor it.
func (b *Imaging) Decode(r io.Reader, applyICC bool) (resize.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &nrgbaImage{px: imaging.Clone(img)}, nil
}

// Render samples copyRegion from src, scales it to targetRegion's size and
// pastes it onto a canvas filled with background. A transparent background is
// flattened to white when the result is destined for jpeg, which cannot carry
// alpha.
func (b *Imaging) Render(src resize.Image, copyRegion geometry.Rect, canvasSize geometry.Size,
	targetRegion geometry.Rect, background color.NRGBA, hint resize.Format) (resize.Image, error) {

	n, err := b.pixels(src)
	if err != nil {
		return nil, err
	}

	if hint == resize.FormatJpeg && background.A == 0 {
		background = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}

	part := imaging.Crop(n, image.Rect(
		round(copyRegion.X),
		round(copyRegion.Y),
		round(copyRegion.X+copyRegion.Width),
		round(copyRegion.Y+copyRegion.Height),
	))
	if part.Bounds().Empty() {
		return nil, fmt.Errorf("copy region %+v is outside the source image", copyRegion)
	}

	tw, th := targetRegion.Size().IntWidth(), targetRegion.Size().IntHeight()
	scaled := part
	if part.Bounds().Dx() != tw || part.Bounds().Dy() != th {
		scaled = imaging.Resize(part, tw, th, b.filter)
	}

	canvas := imaging.New(canvasSize.IntWidth(), canvasSize.IntHeight(), background)
	out := imaging.Paste(canvas, scaled, image.Pt(round(targetRegion.X), round(targetRegion.Y)))
	return &nrgbaImage{px: out}, nil
}

// Encode serializes img. quality applies to jpeg only; png ignores it.
func (b *Imaging) Encode(img resize.Image, format resize.Format, quality int) ([]byte, error) {
	n, err := b.pixels(img)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case resize.FormatPng:
		if err := png.Encode(&buf, n); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, n, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func (b *Imaging) pixels(img resize.Image) (*image.NRGBA, error) {
	n, ok := img.(*nrgbaImage)
	if !ok {
		return nil, fmt.Errorf("image %T was not produced by this backend", img)
	}
	if n.px == nil {
		return nil, fmt.Errorf("image already closed")
	}
	return n.px, nil
}

func round(v float64) int {
	return int(math.Round(v))
}
