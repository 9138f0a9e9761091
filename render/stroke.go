// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"
	"image/draw"
	"math"
	"slices"

	"github.com/gogpu/canvas/geom"
	"golang.org/x/image/vector"
)

// strokeCoverage rasterizes a round-capped, round-joined polyline into an
// alpha mask. dst is the target bitmap rectangle and off is the local
// coordinate of its top-left pixel. The mask spans the whole stroke, so
// every vertex lies inside the rasterizer; it is returned with its origin
// at zero together with the target rectangle it maps to. A nil mask means
// the stroke misses the target.
func strokeCoverage(points []float64, width float64, dst image.Rectangle, off geom.Coord) (*image.Alpha, image.Rectangle) {
	if len(points) < 2 || width <= 0 {
		return nil, image.Rectangle{}
	}
	hw := width / 2
	full := geom.Bounds(points, hw+1).Translate(geom.Coord{X: -off.X, Y: -off.Y}).Pixel()
	if full.Intersect(dst).Empty() {
		return nil, image.Rectangle{}
	}

	z := vector.NewRasterizer(full.Dx(), full.Dy())
	z.DrawOp = draw.Src
	// Shift from local coordinates into mask coordinates.
	dx := -off.X - float64(full.Min.X)
	dy := -off.Y - float64(full.Min.Y)

	for i := 0; i+1 < len(points); i += 2 {
		addDisc(z, points[i]+dx, points[i+1]+dy, hw)
	}
	for i := 0; i+3 < len(points); i += 2 {
		addSegment(z, points[i]+dx, points[i+1]+dy, points[i+2]+dx, points[i+3]+dy, hw)
	}

	mask := image.NewAlpha(image.Rect(0, 0, full.Dx(), full.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask, full
}

// clipMask clears every mask pixel outside clip. clip is in target pixel
// space and the mask maps to area.
func clipMask(mask *image.Alpha, area, clip image.Rectangle) {
	keep := clip.Intersect(area).Sub(area.Min)
	b := mask.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[(y-b.Min.Y)*mask.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			if !(image.Point{X: x, Y: y}).In(keep) {
				row[x-b.Min.X] = 0
			}
		}
	}
}

func addSegment(z *vector.Rasterizer, x0, y0, x1, y1, hw float64) {
	dx, dy := x1-x0, y1-y0
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*hw, dx/l*hw
	addPolygon(z, [][2]float64{
		{x0 + nx, y0 + ny},
		{x1 + nx, y1 + ny},
		{x1 - nx, y1 - ny},
		{x0 - nx, y0 - ny},
	})
}

func addDisc(z *vector.Rasterizer, cx, cy, r float64) {
	n := min(max(int(math.Ceil(r*2)), 12), 64)
	pts := make([][2]float64, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = [2]float64{cx + r*math.Cos(a), cy + r*math.Sin(a)}
	}
	addPolygon(z, pts)
}

// addPolygon adds a closed polygon with a fixed winding direction. The
// rasterizer sums signed coverage, so overlapping pieces of one stroke
// must all wind the same way or they cancel out.
func addPolygon(z *vector.Rasterizer, pts [][2]float64) {
	var area float64
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	if area > 0 {
		slices.Reverse(pts)
	}
	z.MoveTo(float32(pts[0][0]), float32(pts[0][1]))
	for _, p := range pts[1:] {
		z.LineTo(float32(p[0]), float32(p[1]))
	}
	z.ClosePath()
}
