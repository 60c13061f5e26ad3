package resize

import (
	"github.com/imazen/lightresize/internal/geometry"
)

// Layout is the geometry computed for one resize operation: which part of the
// source to sample, how large an output canvas to allocate, and where inside
// that canvas the sampled content lands. The area of the canvas outside
// TargetRegion is filled with the job's background color.
type Layout struct {
	CopyRegion   geometry.Rect
	CanvasSize   geometry.Size
	TargetRegion geometry.Rect
}

// ComputeLayout maps an original image size and a job descriptor to the
// geometry of the output. It is a pure function: no I/O, no state, identical
// inputs always produce identical outputs.
//
// Sizes are kept in floating point through every branch and rounded to whole
// pixels exactly once at the end, so successive fit-mode and scale-mode
// adjustments do not compound rounding error.
func ComputeLayout(original geometry.Size, job *Job) Layout {
	full := geometry.RectOf(original)
	copyRegion := full

	var target, canvas geometry.Size

	if job.Width == 0 && job.Height == 0 {
		target = original
		canvas = original
	} else {
		bounds := resolveBounds(original, job.Width, job.Height)

		switch job.Fit {
		case FitInside:
			target = geometry.ScaleInside(original, bounds)
			canvas = target
		case FitPad:
			canvas = bounds
			target = geometry.ScaleInside(original, canvas)
		case FitCrop:
			canvas = bounds
			target = bounds
			// Sample the largest centered sub-rectangle of the source whose
			// aspect ratio matches the requested bounds.
			copySize := geometry.ScaleInside(bounds, original).Round()
			copyRegion = geometry.CenterInside(copySize, full)
		default: // FitStretch and FitCarve distort freely.
			canvas = bounds
			target = bounds
		}

		// When the original already fits inside the computed target, honoring
		// the target would upscale. Unless upscaling is explicitly allowed,
		// fall back to the original content size; ScaleCanvas still keeps the
		// explicit pad/crop canvas.
		if job.Scale != ScaleBoth && original.FitsInside(target) {
			target = original
			copyRegion = full
			if job.Scale != ScaleCanvas {
				canvas = target
			}
		}
	}

	canvas = canvas.Round()
	target = target.Round()

	return Layout{
		CopyRegion:   copyRegion,
		CanvasSize:   canvas,
		TargetRegion: geometry.CenterInside(target, geometry.RectOf(canvas)),
	}
}

// resolveBounds turns the requested width/height pair into a concrete bounds
// size, deriving a missing dimension from the original aspect ratio. The
// ratio is computed from the unrounded original dimensions to avoid drift.
func resolveBounds(original geometry.Size, width, height int) geometry.Size {
	switch {
	case width > 0 && height > 0:
		return geometry.NewSize(width, height)
	case width > 0:
		return geometry.Size{
			Width:  float64(width),
			Height: float64(width) * original.Height / original.Width,
		}
	default:
		return geometry.Size{
			Width:  float64(height) * original.Width / original.Height,
			Height: float64(height),
		}
	}
}
