// Package geometry provides the size and rectangle math used by the resize
// layout engine. All values are floating-point so intermediate computations
// stay sub-pixel accurate; rounding to whole pixels happens exactly once, at
// the end of layout, via Round.
package geometry

import "math"

// Size is a width/height pair.
type Size struct {
	Width  float64
	Height float64
}

// NewSize creates a size from integer pixel dimensions.
func NewSize(width, height int) Size {
	return Size{Width: float64(width), Height: float64(height)}
}

// Round returns the size rounded to the nearest whole pixel, with each
// dimension floored to a minimum of 1 so a valid canvas can always be
// allocated.
func (s Size) Round() Size {
	w := math.Round(s.Width)
	h := math.Round(s.Height)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return Size{Width: w, Height: h}
}

// FitsInside reports whether both dimensions of s are less than or equal to
// the corresponding dimensions of bounds.
func (s Size) FitsInside(bounds Size) bool {
	return s.Width <= bounds.Width && s.Height <= bounds.Height
}

// IntWidth returns the width as an integer pixel count.
func (s Size) IntWidth() int {
	return int(math.Round(s.Width))
}

// IntHeight returns the height as an integer pixel count.
func (s Size) IntHeight() int {
	return int(math.Round(s.Height))
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// RectOf returns the rectangle covering s with its origin at (0, 0).
func RectOf(s Size) Rect {
	return Rect{X: 0, Y: 0, Width: s.Width, Height: s.Height}
}

// Size returns the rectangle's dimensions.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// ScaleInside returns the largest size with the same aspect ratio as content
// that fits within bounds on both axes. Degenerate content dimensions are
// treated as 1 to avoid division by zero.
func ScaleInside(content, bounds Size) Size {
	cw, ch := content.Width, content.Height
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}

	ratio := bounds.Width / cw
	if r := bounds.Height / ch; r < ratio {
		ratio = r
	}
	return Size{Width: cw * ratio, Height: ch * ratio}
}

// CenterInside returns a rectangle of size inner centered within outer. The
// offsets may be negative when inner is larger than outer.
func CenterInside(inner Size, outer Rect) Rect {
	return Rect{
		X:      outer.X + (outer.Width-inner.Width)/2,
		Y:      outer.Y + (outer.Height-inner.Height)/2,
		Width:  inner.Width,
		Height: inner.Height,
	}
}
