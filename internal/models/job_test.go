package models

import (
	"errors"
	"testing"

	"github.com/imazen/lightresize/internal/resize"
)

func TestNewJob(t *testing.T) {
	params := ResizeParams{Width: 800, Height: 600, Fit: "pad"}
	job := NewJob("original/abc/cat.jpg", "cat.jpg", "image/jpeg", 12345, params)

	if job.ID.String() == "" {
		t.Error("job ID should be set")
	}
	if job.Status != JobStatusPending {
		t.Errorf("Status = %q, want %q", job.Status, JobStatusPending)
	}
	if job.OriginalKey != "original/abc/cat.jpg" {
		t.Errorf("OriginalKey = %q", job.OriginalKey)
	}
	if job.Params != params {
		t.Errorf("Params = %+v, want %+v", job.Params, params)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestJob_MarshalUnmarshalParams(t *testing.T) {
	job := NewJob("k", "n", "image/png", 1, ResizeParams{
		Width:   320,
		Height:  200,
		Fit:     "crop",
		Scale:   "both",
		Format:  "png",
		Quality: 80,
	})

	if err := job.MarshalParams(); err != nil {
		t.Fatalf("MarshalParams() error = %v", err)
	}
	if job.ParamsJSON == "" {
		t.Fatal("ParamsJSON is empty")
	}

	restored := &Job{ParamsJSON: job.ParamsJSON}
	if err := restored.UnmarshalParams(); err != nil {
		t.Fatalf("UnmarshalParams() error = %v", err)
	}
	if restored.Params != job.Params {
		t.Errorf("round-tripped params = %+v, want %+v", restored.Params, job.Params)
	}
}

func TestJob_UnmarshalParams_Empty(t *testing.T) {
	job := &Job{ParamsJSON: ""}
	if err := job.UnmarshalParams(); err != nil {
		t.Fatalf("UnmarshalParams() error = %v", err)
	}
	if job.Params != (ResizeParams{}) {
		t.Errorf("Params = %+v, want zero value", job.Params)
	}
}

func TestResizeParams_ToJob(t *testing.T) {
	params := ResizeParams{Width: 640, Height: 480, Fit: "crop", Scale: "both", Format: "png", Quality: 75}
	job, err := params.ToJob()
	if err != nil {
		t.Fatalf("ToJob() error = %v", err)
	}

	if job.Width != 640 || job.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", job.Width, job.Height)
	}
	if job.Fit != resize.FitCrop {
		t.Errorf("Fit = %q, want crop", job.Fit)
	}
	if job.Scale != resize.ScaleBoth {
		t.Errorf("Scale = %q, want both", job.Scale)
	}
	if job.Format != resize.FormatPng {
		t.Errorf("Format = %q, want png", job.Format)
	}
}

func TestResizeParams_ToJob_Defaults(t *testing.T) {
	job, err := ResizeParams{Width: 100}.ToJob()
	if err != nil {
		t.Fatalf("ToJob() error = %v", err)
	}
	if job.Fit != resize.FitInside || job.Scale != resize.ScaleDown || job.Format != resize.FormatJpeg {
		t.Errorf("defaults not applied: %+v", job)
	}
	if job.Quality != resize.DefaultQuality {
		t.Errorf("Quality = %d, want default", job.Quality)
	}
}

func TestResizeParams_ToJob_Invalid(t *testing.T) {
	if _, err := (ResizeParams{Width: -1}).ToJob(); !errors.Is(err, resize.ErrValidation) {
		t.Errorf("ToJob() error = %v, want ErrValidation", err)
	}
	if _, err := (ResizeParams{Fit: "tile"}).ToJob(); !errors.Is(err, resize.ErrValidation) {
		t.Errorf("ToJob() error = %v, want ErrValidation", err)
	}
}
