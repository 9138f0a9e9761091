package raster

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/adjust"
)

// LightnessToAlpha caps each pixel's alpha at its HSL lightness, so dark
// regions become transparent. Control layers use it to overlay a control
// image on the layers below.
func LightnessToAlpha(img image.Image) *image.RGBA {
	return adjust.Apply(img, func(c color.RGBA) color.RGBA {
		lo := min(c.R, c.G, c.B)
		hi := max(c.R, c.G, c.B)
		l := uint8((uint16(lo) + uint16(hi)) / 2)
		if l >= c.A {
			return c
		}
		// Premultiplied channels must not exceed alpha.
		return color.RGBA{R: min(c.R, l), G: min(c.G, l), B: min(c.B, l), A: l}
	})
}
