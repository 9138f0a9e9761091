package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// MaxDimension bounds bitmap allocations. Requests above it are treated as
// an unrecoverable environment failure.
const MaxDimension = 1 << 15

// New allocates a transparent bitmap with bounds (0, 0)-(w, h).
// It panics on negative or oversized dimensions: a bitmap that cannot be
// allocated is a fatal condition, never retried.
func New(w, h int) *image.RGBA {
	if w < 0 || h < 0 || w > MaxDimension || h > MaxDimension {
		panic(fmt.Sprintf("raster: cannot allocate %dx%d bitmap", w, h))
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// Clone returns a deep copy of img rebased to the origin.
func Clone(img *image.RGBA) *image.RGBA {
	out := New(img.Rect.Dx(), img.Rect.Dy())
	draw.Draw(out, out.Rect, img, img.Rect.Min, draw.Src)
	return out
}

// DrawOver composites src onto dst with its top-left at p ("source-over").
func DrawOver(dst draw.Image, src image.Image, p image.Point) {
	r := image.Rectangle{Min: p, Max: p.Add(src.Bounds().Size())}
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Over)
}

// DrawOverOpacity is DrawOver with src scaled by a uniform opacity in
// [0, 1]. Opacity 1 is exactly DrawOver; opacity 0 draws nothing.
func DrawOverOpacity(dst draw.Image, src image.Image, p image.Point, opacity float64) {
	switch {
	case opacity >= 1:
		DrawOver(dst, src, p)
		return
	case opacity <= 0:
		return
	}
	r := image.Rectangle{Min: p, Max: p.Add(src.Bounds().Size())}
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, r, src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}

// DestinationOut removes coverage from dst wherever mask is set
// ("destination-out"): each pixel is scaled by 1 - mask alpha. Mask pixel
// (0, 0) lands on dst pixel p.
func DestinationOut(dst *image.RGBA, mask *image.Alpha, p image.Point) {
	r := mask.Rect.Sub(mask.Rect.Min).Add(p).Intersect(dst.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			ma := uint32(mask.AlphaAt(x-p.X+mask.Rect.Min.X, y-p.Y+mask.Rect.Min.Y).A)
			if ma == 0 {
				continue
			}
			keep := 255 - ma
			i := dst.PixOffset(x, y)
			px := dst.Pix[i : i+4 : i+4]
			px[0] = uint8(uint32(px[0]) * keep / 255)
			px[1] = uint8(uint32(px[1]) * keep / 255)
			px[2] = uint8(uint32(px[2]) * keep / 255)
			px[3] = uint8(uint32(px[3]) * keep / 255)
		}
	}
}

// PixelBounds returns the tight bounds of all pixels with alpha > 0, in
// img's coordinate space. It returns the empty rectangle if there are none.
func PixelBounds(img *image.RGBA) image.Rectangle {
	b := img.Rect
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			if row[(x-b.Min.X)*4+3] == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			maxY = y
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
