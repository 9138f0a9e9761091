package raster

import (
	"image"
	"image/color"
)

// Fill styles understood by ApplyFill.
const (
	StyleSolid      = "solid"
	StyleGrid       = "grid"
	StyleCrosshatch = "crosshatch"
	StyleDiagonal   = "diagonal"
	StyleHorizontal = "horizontal"
	StyleVertical   = "vertical"
)

// patternSpacing is the distance in document pixels between pattern lines.
const patternSpacing = 8

// PatternCovers reports whether the pattern for style paints document pixel
// (x, y). Unknown styles behave as solid.
func PatternCovers(style string, x, y int) bool {
	switch style {
	case StyleGrid:
		return mod(x, patternSpacing) == 0 || mod(y, patternSpacing) == 0
	case StyleCrosshatch:
		return mod(x+y, patternSpacing) == 0 || mod(x-y, patternSpacing) == 0
	case StyleDiagonal:
		return mod(x+y, patternSpacing) == 0
	case StyleHorizontal:
		return mod(y, patternSpacing) == 0
	case StyleVertical:
		return mod(x, patternSpacing) == 0
	default:
		return true
	}
}

// ApplyFill repaints img in place with c wherever img has coverage
// ("source-in"): the fill keeps each pixel's alpha as a mask, so
// overlapping shapes never stack opacity. origin is the document position
// of img's top-left pixel and anchors the pattern.
func ApplyFill(img *image.RGBA, style string, c color.NRGBA, origin image.Point) {
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			a := uint32(img.Pix[i+3])
			if a == 0 {
				continue
			}
			docX := x - b.Min.X + origin.X
			docY := y - b.Min.Y + origin.Y
			if !PatternCovers(style, docX, docY) {
				img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
				continue
			}
			fa := a * uint32(c.A) / 255
			img.Pix[i+0] = uint8(uint32(c.R) * fa / 255)
			img.Pix[i+1] = uint8(uint32(c.G) * fa / 255)
			img.Pix[i+2] = uint8(uint32(c.B) * fa / 255)
			img.Pix[i+3] = uint8(fa)
		}
	}
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
