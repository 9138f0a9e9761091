// Package geom provides the document-space geometry shared by the canvas
// engine: points, rectangles and their conversion to pixel rectangles.
//
// Coordinates follow the usual raster convention: origin at the top-left,
// X increasing to the right and Y increasing downward.
package geom

import (
	"image"
	"math"
)

// Coord is a point in document pixel space.
type Coord struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns c translated by d.
func (c Coord) Add(d Coord) Coord {
	return Coord{X: c.X + d.X, Y: c.Y + d.Y}
}

// Sub returns c - d.
func (c Coord) Sub(d Coord) Coord {
	return Coord{X: c.X - d.X, Y: c.Y - d.Y}
}

// Round returns c with both components rounded to the nearest integer.
func (c Coord) Round() Coord {
	return Coord{X: math.Round(c.X), Y: math.Round(c.Y)}
}

// Floor returns c with both components floored.
func (c Coord) Floor() Coord {
	return Coord{X: math.Floor(c.X), Y: math.Floor(c.Y)}
}

// Rect is an axis-aligned rectangle in document pixel space.
// It is the unit of render regions and composite cache keys.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NewRect creates a rect from its origin and size.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// FromImage converts a pixel rectangle to a Rect.
func FromImage(r image.Rectangle) Rect {
	return Rect{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

// IsEmpty reports whether the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Origin returns the top-left corner.
func (r Rect) Origin() Coord {
	return Coord{X: r.X, Y: r.Y}
}

// Max returns the bottom-right corner.
func (r Rect) Max() Coord {
	return Coord{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Translate returns r moved by d.
func (r Rect) Translate(d Coord) Rect {
	r.X += d.X
	r.Y += d.Y
	return r
}

// Contains reports whether the point lies inside r (edges inclusive).
func (r Rect) Contains(p Coord) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Pixel returns the smallest pixel rectangle covering r.
func (r Rect) Pixel() image.Rectangle {
	if r.IsEmpty() {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)),
		int(math.Ceil(r.Y+r.Height)),
	)
}

// Intersect returns the largest rect contained by both r and s.
// The result is the zero Rect when they do not overlap.
func (r Rect) Intersect(s Rect) Rect {
	x0 := math.Max(r.X, s.X)
	y0 := math.Max(r.Y, s.Y)
	x1 := math.Min(r.X+r.Width, s.X+s.Width)
	y1 := math.Min(r.Y+r.Height, s.Y+s.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Union returns the smallest rect containing all non-empty rects.
// Empty rects are ignored; the union of nothing is the zero Rect.
func Union(rects ...Rect) Rect {
	var (
		out   Rect
		found bool
	)
	for _, r := range rects {
		if r.IsEmpty() {
			continue
		}
		if !found {
			out = r
			found = true
			continue
		}
		x0 := math.Min(out.X, r.X)
		y0 := math.Min(out.Y, r.Y)
		x1 := math.Max(out.X+out.Width, r.X+r.Width)
		y1 := math.Max(out.Y+out.Height, r.Y+r.Height)
		out = Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
	}
	return out
}

// Bounds returns the bounding rect of a flat [x0, y0, x1, y1, ...] point
// list, grown by pad on every side. An empty list yields the zero Rect.
func Bounds(points []float64, pad float64) Rect {
	if len(points) < 2 {
		return Rect{}
	}
	minX, minY := points[0], points[1]
	maxX, maxY := minX, minY
	for i := 2; i+1 < len(points); i += 2 {
		minX = math.Min(minX, points[i])
		maxX = math.Max(maxX, points[i])
		minY = math.Min(minY, points[i+1])
		maxY = math.Max(maxY, points[i+1])
	}
	return Rect{
		X:      minX - pad,
		Y:      minY - pad,
		Width:  maxX - minX + 2*pad,
		Height: maxY - minY + 2*pad,
	}
}
