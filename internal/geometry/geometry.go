// Package geometry implements the resolution-independent coordinate model
// certificate templates are stored in. Element positions and widths live in
// canvas percent-space (0-100 on each axis) so a layout authored against one
// canvas size renders identically at any other.
package geometry

import "math"

// Bounds of the percent-space and of element styling attributes.
const (
	MinPercent = 0.0
	MaxPercent = 100.0

	MinWidthPercent = 10.0
	MaxWidthPercent = 100.0

	MinFontSizePx = 10
	MaxFontSizePx = 200
)

// Point is a position in canvas percent-space.
type Point struct {
	X float64
	Y float64
}

// ToPercent converts a pixel position on a canvas of the given size into
// percent-space. Each axis is clamped to [0,100] and rounded to two decimal
// places. A zero canvas dimension returns prev unchanged on that axis so
// interaction handlers never divide by zero mid-drag.
func ToPercent(pixelX, pixelY, canvasW, canvasH float64, prev Point) Point {
	p := prev
	if canvasW > 0 {
		p.X = round2(clamp(pixelX/canvasW*100, MinPercent, MaxPercent))
	}
	if canvasH > 0 {
		p.Y = round2(clamp(pixelY/canvasH*100, MinPercent, MaxPercent))
	}
	return p
}

// ToPixels converts a percent-space position back into pixels on a canvas of
// the given size. Inputs already bounded to [0,100] need no clamping.
func ToPixels(xPct, yPct, canvasW, canvasH float64) (pixelX, pixelY float64) {
	return xPct / 100 * canvasW, yPct / 100 * canvasH
}

// ResizeElement recomputes an element's width percent from a new pixel width
// and scales its font size by the same ratio, keeping text proportional to
// the element box. Both results are clamped to their valid ranges.
func ResizeElement(newWidthPx, canvasW, oldWidthPct float64, oldFontSizePx int) (newWidthPct float64, newFontSizePx int) {
	if canvasW <= 0 || oldWidthPct <= 0 {
		return oldWidthPct, oldFontSizePx
	}
	newWidthPct = round2(clamp(newWidthPx/canvasW*100, MinWidthPercent, MaxWidthPercent))
	widthRatio := newWidthPct / oldWidthPct
	scaled := int(math.Round(float64(oldFontSizePx) * widthRatio))
	newFontSizePx = ClampFontSize(scaled)
	return newWidthPct, newFontSizePx
}

// ClampPercent bounds a coordinate to [0,100] and rounds to two decimals.
func ClampPercent(v float64) float64 {
	return round2(clamp(v, MinPercent, MaxPercent))
}

// ClampWidthPercent bounds an element width to [10,100] and rounds to two
// decimals.
func ClampWidthPercent(v float64) float64 {
	return round2(clamp(v, MinWidthPercent, MaxWidthPercent))
}

// ClampFontSize bounds a font size to [10,200] px.
func ClampFontSize(v int) int {
	if v < MinFontSizePx {
		return MinFontSizePx
	}
	if v > MaxFontSizePx {
		return MaxFontSizePx
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
