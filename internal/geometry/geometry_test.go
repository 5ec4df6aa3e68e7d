package geometry

import (
	"math"
	"testing"
)

func TestToPercentClampsAndRounds(t *testing.T) {
	cases := []struct {
		name           string
		pixelX, pixelY float64
		canvasW        float64
		canvasH        float64
		wantX, wantY   float64
	}{
		{"inside", 200, 150, 1000, 600, 20, 25},
		{"negative pixels clamp to zero", -40, -1, 1000, 600, 0, 0},
		{"beyond canvas clamps to hundred", 1500, 900, 1000, 600, 100, 100},
		{"rounds to two decimals", 333, 333, 1000, 999, 33.3, 33.33},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToPercent(tc.pixelX, tc.pixelY, tc.canvasW, tc.canvasH, Point{})
			if got.X != tc.wantX || got.Y != tc.wantY {
				t.Fatalf("ToPercent = (%v, %v), want (%v, %v)", got.X, got.Y, tc.wantX, tc.wantY)
			}
		})
	}
}

func TestToPercentZeroCanvasKeepsPrevious(t *testing.T) {
	prev := Point{X: 42.5, Y: 13.37}

	got := ToPercent(500, 500, 0, 0, prev)
	if got != prev {
		t.Fatalf("zero canvas: got %+v, want %+v", got, prev)
	}

	// Only the zero axis keeps the previous value.
	got = ToPercent(500, 300, 1000, 0, prev)
	if got.X != 50 || got.Y != prev.Y {
		t.Fatalf("zero height: got %+v, want X=50 Y=%v", got, prev.Y)
	}
}

func TestRoundTripStability(t *testing.T) {
	canvases := []struct{ w, h float64 }{
		{1000, 600},
		{1123, 793},
		{333, 217},
		{1, 1},
	}
	percents := []float64{0, 0.01, 10, 33.33, 50, 66.67, 99.99, 100}

	for _, cv := range canvases {
		for _, p := range percents {
			px, py := ToPixels(p, p, cv.w, cv.h)
			got := ToPercent(px, py, cv.w, cv.h, Point{})
			if math.Abs(got.X-p) > 0.01 || math.Abs(got.Y-p) > 0.01 {
				t.Fatalf("round trip on %vx%v: %v -> (%v, %v)", cv.w, cv.h, p, got.X, got.Y)
			}
		}
	}
}

func TestToPercentIdempotent(t *testing.T) {
	first := ToPercent(421, 287, 1280, 720, Point{})
	px, py := ToPixels(first.X, first.Y, 1280, 720)
	second := ToPercent(px, py, 1280, 720, first)
	if first != second {
		t.Fatalf("repeated conversion drifted: %+v != %+v", first, second)
	}
}

func TestResizeElement(t *testing.T) {
	t.Run("unchanged ratio keeps font size", func(t *testing.T) {
		w, fs := ResizeElement(400, 1000, 40, 32)
		if w != 40 || fs != 32 {
			t.Fatalf("got width=%v font=%d, want 40/32", w, fs)
		}
	})

	t.Run("doubling width doubles font size", func(t *testing.T) {
		w, fs := ResizeElement(800, 1000, 40, 32)
		if w != 80 || fs != 64 {
			t.Fatalf("got width=%v font=%d, want 80/64", w, fs)
		}
	})

	t.Run("font size clamps at 200", func(t *testing.T) {
		_, fs := ResizeElement(1000, 1000, 10, 150)
		if fs != 200 {
			t.Fatalf("got font=%d, want 200", fs)
		}
	})

	t.Run("width clamps to minimum", func(t *testing.T) {
		w, fs := ResizeElement(10, 1000, 50, 40)
		if w != 10 {
			t.Fatalf("got width=%v, want 10", w)
		}
		if fs != 10 {
			t.Fatalf("got font=%d, want 10", fs)
		}
	})

	t.Run("zero canvas is a no-op", func(t *testing.T) {
		w, fs := ResizeElement(500, 0, 40, 32)
		if w != 40 || fs != 32 {
			t.Fatalf("got width=%v font=%d, want 40/32", w, fs)
		}
	})
}

func TestClampHelpers(t *testing.T) {
	if got := ClampPercent(150); got != 100 {
		t.Fatalf("ClampPercent(150) = %v", got)
	}
	if got := ClampPercent(-3); got != 0 {
		t.Fatalf("ClampPercent(-3) = %v", got)
	}
	if got := ClampWidthPercent(4); got != 10 {
		t.Fatalf("ClampWidthPercent(4) = %v", got)
	}
	if got := ClampFontSize(500); got != 200 {
		t.Fatalf("ClampFontSize(500) = %d", got)
	}
	if got := ClampFontSize(3); got != 10 {
		t.Fatalf("ClampFontSize(3) = %d", got)
	}
}
