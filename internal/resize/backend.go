package resize

import (
	"image/color"
	"io"

	"github.com/imazen/lightresize/internal/geometry"
)

// Image is a decoded or rendered picture owned by the pipeline. Close
// releases its backing pixel storage; the pipeline guarantees it is called
// exactly once for every image it acquires, on every success and failure
// path.
type Image interface {
	Size() geometry.Size
	Close() error
}

// Backend performs the actual pixel work. The pipeline and layout engine are
// backend-independent: tests run against a deterministic fake, production
// uses the imaging-based implementation.
type Backend interface {
	// Decode reads one image from r. applyICC asks the backend to honor an
	// embedded color profile when it is able to.
	Decode(r io.Reader, applyICC bool) (Image, error)

	// Render samples copyRegion from src, scales it onto a canvas of
	// canvasSize at targetRegion using a high-quality resampling filter, and
	// composites any uncovered canvas area with background. hint names the
	// encoding the result is destined for so the backend can flatten alpha
	// for opaque formats.
	Render(src Image, copyRegion geometry.Rect, canvasSize geometry.Size,
		targetRegion geometry.Rect, background color.NRGBA, hint Format) (Image, error)

	// Encode serializes img. quality applies to lossy formats only.
	Encode(img Image, format Format, quality int) ([]byte, error)
}

// Consumer receives the rendered image at the end of a successful pipeline
// run. The image is only valid for the duration of the call; the pipeline
// closes it when the consumer returns.
type Consumer func(img Image) error
