package resize

import (
	"fmt"
	"image/color"
)

// FitMode controls how a requested width/height pair is reconciled with the
// source image's aspect ratio.
type FitMode string

const (
	// FitInside scales the image to fit within the requested bounds,
	// preserving aspect ratio. The canvas shrinks to the scaled content.
	FitInside FitMode = "inside"
	// FitPad scales the image to fit within the requested bounds and centers
	// it on a canvas of exactly the requested size, filling the remainder
	// with the background color.
	FitPad FitMode = "pad"
	// FitCrop fills the requested bounds exactly, sampling the largest
	// centered sub-rectangle of the source that matches the target aspect
	// ratio.
	FitCrop FitMode = "crop"
	// FitStretch distorts the image to exactly the requested dimensions.
	FitStretch FitMode = "stretch"
	// FitCarve is accepted as an alias of FitStretch; no content-aware
	// resizing is performed.
	FitCarve FitMode = "carve"
)

// ScaleMode controls whether content and canvas may grow beyond the original
// pixel dimensions.
type ScaleMode string

const (
	// ScaleDown never enlarges content or canvas beyond the original size.
	ScaleDown ScaleMode = "down"
	// ScaleBoth permits upscaling of both content and canvas.
	ScaleBoth ScaleMode = "both"
	// ScaleCanvas keeps content at its original size but still honors an
	// explicit pad or crop canvas larger than the original.
	ScaleCanvas ScaleMode = "canvas"
)

// Format is the output encoding.
type Format string

const (
	FormatJpeg Format = "jpeg"
	FormatPng  Format = "png"
)

const (
	// DefaultQuality is used when a job does not specify a jpeg quality.
	DefaultQuality = 90
	minQuality     = 1
	maxQuality     = 100
)

// Job is an immutable description of one resize request. Width and Height of
// 0 mean "unconstrained on that axis"; when both are 0 the image passes
// through at its original size. Neither the layout engine nor the pipeline
// mutates a Job.
type Job struct {
	Width      int
	Height     int
	Fit        FitMode
	Scale      ScaleMode
	Background color.NRGBA
	Format     Format
	Quality    int
	IgnoreICC  bool
}

// NewJob creates a job constrained to the given dimensions with all other
// settings at their defaults. A negative dimension is rejected immediately.
func NewJob(width, height int) (*Job, error) {
	job := &Job{
		Width:   width,
		Height:  height,
		Fit:     FitInside,
		Scale:   ScaleDown,
		Format:  FormatJpeg,
		Quality: DefaultQuality,
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks the job's dimensions and modes and normalizes the quality
// into the encoder-accepted range. Zero-valued Fit, Scale, Format and Quality
// fields are filled with defaults so a literal Job{} is usable.
func (j *Job) Validate() error {
	if j.Width < 0 {
		return fmt.Errorf("%w: width must be positive, got %d", ErrValidation, j.Width)
	}
	if j.Height < 0 {
		return fmt.Errorf("%w: height must be positive, got %d", ErrValidation, j.Height)
	}

	if j.Fit == "" {
		j.Fit = FitInside
	}
	switch j.Fit {
	case FitInside, FitPad, FitCrop, FitStretch, FitCarve:
	default:
		return fmt.Errorf("%w: unknown fit mode %q", ErrValidation, j.Fit)
	}

	if j.Scale == "" {
		j.Scale = ScaleDown
	}
	switch j.Scale {
	case ScaleDown, ScaleBoth, ScaleCanvas:
	default:
		return fmt.Errorf("%w: unknown scale mode %q", ErrValidation, j.Scale)
	}

	if j.Format == "" {
		j.Format = FormatJpeg
	}
	switch j.Format {
	case FormatJpeg, FormatPng:
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrValidation, j.Format)
	}

	if j.Quality == 0 {
		j.Quality = DefaultQuality
	} else if j.Quality < minQuality {
		j.Quality = minQuality
	} else if j.Quality > maxQuality {
		j.Quality = maxQuality
	}

	return nil
}
