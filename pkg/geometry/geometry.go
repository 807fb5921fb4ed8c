// Package geometry converts resolution-independent bounding boxes, as
// estimated by a vision model in percentage space, into clamped pixel
// rectangles for a concrete screen size.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidEstimate indicates a percentage box whose fields fall outside
// the [0,1] contract, or a non-positive screen dimension.
var ErrInvalidEstimate = errors.New("geometry: invalid estimate")

// BoxPercent is a bounding box expressed as fractions of the screen
// dimensions. All fields are in [0,1]. It is produced by the vision
// estimator and never persisted; convert it with ToPixels before use.
type BoxPercent struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// BoxPixels is a bounding box in whole pixels, clamped to lie fully inside
// the screen it was derived from. Width and Height are always at least 1.
type BoxPixels struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Point is a pixel coordinate.
type Point struct {
	X int
	Y int
}

// Center returns the geometric center of the box.
func (b BoxPixels) Center() Point {
	return Point{X: b.Left + b.Width/2, Y: b.Top + b.Height/2}
}

// Rect returns the box as an image.Rectangle.
func (b BoxPixels) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Left+b.Width, b.Top+b.Height)
}

// ToPixels converts a percentage box to pixel space for the given screen
// size. Each field is scaled and rounded to the nearest integer, then
// clamped so the result is fully contained in the screen. A degenerate
// estimate (zero area after rounding) is coerced to a 1x1 box rather than
// propagated. The conversion is deterministic and idempotent: converting a
// box that is already clamped yields the same box.
func ToPixels(b BoxPercent, screenWidth, screenHeight int) (BoxPixels, error) {
	if screenWidth <= 0 || screenHeight <= 0 {
		return BoxPixels{}, fmt.Errorf("%w: screen size %dx%d", ErrInvalidEstimate, screenWidth, screenHeight)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"left", b.Left},
		{"top", b.Top},
		{"width", b.Width},
		{"height", b.Height},
	} {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			return BoxPixels{}, fmt.Errorf("%w: %s=%v outside [0,1]", ErrInvalidEstimate, f.name, f.value)
		}
	}

	left := int(math.Round(b.Left * float64(screenWidth)))
	top := int(math.Round(b.Top * float64(screenHeight)))
	width := int(math.Round(b.Width * float64(screenWidth)))
	height := int(math.Round(b.Height * float64(screenHeight)))

	left = clamp(left, 0, screenWidth-1)
	top = clamp(top, 0, screenHeight-1)
	width = clamp(width, 1, screenWidth-left)
	height = clamp(height, 1, screenHeight-top)

	return BoxPixels{Left: left, Top: top, Width: width, Height: height}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
