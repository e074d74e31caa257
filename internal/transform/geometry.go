package transform

import (
	"image"
	"math"
)

// Rect is a crop region in pixel coordinates of the rotated surface.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width" validate:"gte=1"`
	Height int `json:"height" validate:"gte=1"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Rectangle converts to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Center returns the centre point of the rectangle.
func (r Rect) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// RotatedBounds returns the axis-aligned bounding box of a w×h raster
// rotated by deg degrees: w|cosθ|+h|sinθ| by w|sinθ|+h|cosθ|.
func RotatedBounds(w, h int, deg float64) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	theta := NormalizeDegrees(deg) * math.Pi / 180
	sin, cos := math.Abs(math.Sin(theta)), math.Abs(math.Cos(theta))
	fw, fh := float64(w), float64(h)
	nw := int(math.Round(fw*cos + fh*sin))
	nh := int(math.Round(fw*sin + fh*cos))
	return max(nw, 1), max(nh, 1)
}

// CenteredCrop returns the largest rectangle with the given aspect ratio
// (width / height) that fits a w×h surface, centred on it.
func CenteredCrop(w, h int, aspect float64) Rect {
	if w <= 0 || h <= 0 {
		return Rect{}
	}
	if aspect <= 0 {
		return Rect{Width: w, Height: h}
	}
	cw, ch := w, int(math.Round(float64(w)/aspect))
	if ch > h {
		ch = h
		cw = int(math.Round(float64(h) * aspect))
	}
	cw, ch = max(min(cw, w), 1), max(min(ch, h), 1)
	return Rect{X: (w - cw) / 2, Y: (h - ch) / 2, Width: cw, Height: ch}
}

// ScaleAround resizes r by factor around its centre and keeps the result
// inside a w×h surface.
func ScaleAround(r Rect, factor float64, w, h int) Rect {
	if factor <= 0 {
		return r
	}
	cx, cy := r.Center()
	nw := max(int(math.Round(float64(r.Width)*factor)), 1)
	nh := max(int(math.Round(float64(r.Height)*factor)), 1)
	return Fit(Rect{
		X:      int(math.Round(cx - float64(nw)/2)),
		Y:      int(math.Round(cy - float64(nh)/2)),
		Width:  nw,
		Height: nh,
	}, w, h)
}

// Fit shrinks and shifts r so that it lies inside a w×h surface.
func Fit(r Rect, w, h int) Rect {
	if w <= 0 || h <= 0 {
		return r
	}
	r.Width = max(min(r.Width, w), 1)
	r.Height = max(min(r.Height, h), 1)
	r.X = min(max(r.X, 0), w-r.Width)
	r.Y = min(max(r.Y, 0), h-r.Height)
	return r
}

// Recenter moves r so that it is centred on a w×h surface, shrinking it if needed.
func Recenter(r Rect, w, h int) Rect {
	r = Fit(r, w, h)
	r.X = (w - r.Width) / 2
	r.Y = (h - r.Height) / 2
	return r
}
