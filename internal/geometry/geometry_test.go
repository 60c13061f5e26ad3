package geometry

import (
	"math"
	"testing"
)

func TestScaleInside_Landscape(t *testing.T) {
	got := ScaleInside(NewSize(100, 66), NewSize(12, 34))
	if got.Round() != (Size{Width: 12, Height: 8}) {
		t.Errorf("ScaleInside(100x66, 12x34) = %+v, want 12x8 after rounding", got)
	}
}

func TestScaleInside_PreservesAspectRatio(t *testing.T) {
	content := NewSize(400, 300)
	got := ScaleInside(content, NewSize(200, 200))

	wantRatio := content.Width / content.Height
	gotRatio := got.Width / got.Height
	if math.Abs(wantRatio-gotRatio) > 1e-9 {
		t.Errorf("aspect ratio = %f, want %f", gotRatio, wantRatio)
	}
	if got.Width != 200 || got.Height != 150 {
		t.Errorf("ScaleInside(400x300, 200x200) = %+v, want 200x150", got)
	}
}

func TestScaleInside_Upscales(t *testing.T) {
	got := ScaleInside(NewSize(10, 10), NewSize(50, 80))
	if got.Width != 50 || got.Height != 50 {
		t.Errorf("ScaleInside(10x10, 50x80) = %+v, want 50x50", got)
	}
}

func TestScaleInside_DegenerateContent(t *testing.T) {
	// Zero-sized content must not divide by zero.
	got := ScaleInside(Size{Width: 0, Height: 0}, NewSize(10, 10)).Round()
	if got.Width < 1 || got.Height < 1 {
		t.Errorf("degenerate content produced invalid size %+v", got)
	}
}

func TestScaleInside_DegenerateBounds(t *testing.T) {
	got := ScaleInside(NewSize(100, 100), Size{Width: 0, Height: 0}).Round()
	if got.Width != 1 || got.Height != 1 {
		t.Errorf("zero bounds = %+v, want 1x1 after rounding", got)
	}
}

func TestRound_FloorsToOne(t *testing.T) {
	got := (Size{Width: 0.2, Height: 0.49}).Round()
	if got.Width != 1 || got.Height != 1 {
		t.Errorf("Round(0.2x0.49) = %+v, want 1x1", got)
	}
}

func TestRound_NearestInteger(t *testing.T) {
	got := (Size{Width: 7.5, Height: 7.49}).Round()
	if got.Width != 8 || got.Height != 7 {
		t.Errorf("Round(7.5x7.49) = %+v, want 8x7", got)
	}
}

func TestFitsInside(t *testing.T) {
	if !NewSize(10, 10).FitsInside(NewSize(10, 10)) {
		t.Error("equal sizes should fit")
	}
	if !NewSize(5, 10).FitsInside(NewSize(10, 10)) {
		t.Error("smaller width should fit")
	}
	if NewSize(11, 10).FitsInside(NewSize(10, 10)) {
		t.Error("wider size should not fit")
	}
	if NewSize(10, 11).FitsInside(NewSize(10, 10)) {
		t.Error("taller size should not fit")
	}
}

func TestCenterInside(t *testing.T) {
	got := CenterInside(NewSize(50, 30), RectOf(NewSize(100, 100)))
	want := Rect{X: 25, Y: 35, Width: 50, Height: 30}
	if got != want {
		t.Errorf("CenterInside = %+v, want %+v", got, want)
	}
}

func TestCenterInside_LargerInner(t *testing.T) {
	got := CenterInside(NewSize(120, 100), RectOf(NewSize(100, 100)))
	if got.X != -10 || got.Y != 0 {
		t.Errorf("CenterInside with larger inner = %+v, want X=-10 Y=0", got)
	}
}

func TestCenterInside_OffsetOuter(t *testing.T) {
	got := CenterInside(NewSize(10, 10), Rect{X: 5, Y: 7, Width: 20, Height: 20})
	if got.X != 10 || got.Y != 12 {
		t.Errorf("CenterInside with offset outer = %+v, want X=10 Y=12", got)
	}
}

func TestRectOf(t *testing.T) {
	r := RectOf(NewSize(640, 480))
	if r.X != 0 || r.Y != 0 || r.Width != 640 || r.Height != 480 {
		t.Errorf("RectOf = %+v", r)
	}
}
