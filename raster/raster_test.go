package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(w, h int, c color.RGBA) *image.RGBA {
	img := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestClassify(t *testing.T) {
	opaque := color.RGBA{R: 10, A: 255}

	partial := New(4, 4)
	partial.SetRGBA(3, 3, opaque)

	alpha := image.NewAlpha(image.Rect(0, 0, 2, 2))
	alpha.SetAlpha(0, 0, color.Alpha{A: 1})

	gray := image.NewGray(image.Rect(0, 0, 2, 2))

	tests := []struct {
		name string
		img  image.Image
		want Transparency
	}{
		{"empty bitmap", New(0, 0), FullyTransparent},
		{"transparent", New(4, 4), FullyTransparent},
		{"opaque", filled(4, 4, opaque), Opaque},
		{"one pixel set", partial, PartiallyTransparent},
		{"faint alpha counts as coverage", filled(2, 2, color.RGBA{A: 1}), Opaque},
		{"alpha image", alpha, PartiallyTransparent},
		{"generic image", gray, Opaque},
		{"sub image", partial.SubImage(image.Rect(0, 0, 2, 2)), FullyTransparent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.img))
		})
	}
}

func TestTransparencyString(t *testing.T) {
	assert.Equal(t, "FULLY_TRANSPARENT", FullyTransparent.String())
	assert.Equal(t, "PARTIALLY_TRANSPARENT", PartiallyTransparent.String())
	assert.Equal(t, "OPAQUE", Opaque.String())
	assert.Equal(t, "UNKNOWN", Transparency(9).String())
}

func TestNewPanicsOnOversizedBitmap(t *testing.T) {
	assert.Panics(t, func() { New(-1, 4) })
	assert.Panics(t, func() { New(MaxDimension+1, 1) })
	assert.NotPanics(t, func() { New(0, 0) })
}

func TestCloneRebasesToOrigin(t *testing.T) {
	src := filled(4, 4, color.RGBA{G: 200, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)

	out := Clone(sub)
	assert.Equal(t, image.Rect(0, 0, 2, 2), out.Rect)
	assert.Equal(t, color.RGBA{G: 200, A: 255}, out.RGBAAt(0, 0))

	out.SetRGBA(0, 0, color.RGBA{})
	assert.Equal(t, uint8(255), src.RGBAAt(2, 2).A, "clone must not share pixels")
}

func TestDrawOverOpacity(t *testing.T) {
	src := filled(2, 2, color.RGBA{R: 255, A: 255})

	full := New(4, 4)
	DrawOverOpacity(full, src, image.Pt(1, 1), 1)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, full.RGBAAt(1, 1))
	assert.Zero(t, full.RGBAAt(0, 0).A)

	none := New(4, 4)
	DrawOverOpacity(none, src, image.Pt(0, 0), 0)
	assert.Equal(t, FullyTransparent, Classify(none))

	half := New(2, 2)
	DrawOverOpacity(half, src, image.Pt(0, 0), 0.5)
	assert.InDelta(t, 128, int(half.RGBAAt(0, 0).A), 1)
}

func TestDestinationOut(t *testing.T) {
	dst := filled(4, 4, color.RGBA{B: 255, A: 255})
	mask := image.NewAlpha(image.Rect(0, 0, 2, 2))
	mask.SetAlpha(0, 0, color.Alpha{A: 255})
	mask.SetAlpha(1, 0, color.Alpha{A: 128})

	DestinationOut(dst, mask, image.Pt(2, 2))
	assert.Zero(t, dst.RGBAAt(2, 2).A)
	assert.InDelta(t, 127, int(dst.RGBAAt(3, 2).A), 1)
	assert.Equal(t, uint8(255), dst.RGBAAt(2, 3).A)
	assert.Equal(t, uint8(255), dst.RGBAAt(0, 0).A)

	// Masks hanging off the edge are clipped.
	assert.NotPanics(t, func() { DestinationOut(dst, mask, image.Pt(3, 3)) })
	assert.Zero(t, dst.RGBAAt(3, 3).A)
}

func TestPixelBounds(t *testing.T) {
	img := New(8, 8)
	assert.True(t, PixelBounds(img).Empty())

	img.SetRGBA(2, 3, color.RGBA{A: 1})
	img.SetRGBA(5, 1, color.RGBA{A: 255})
	assert.Equal(t, image.Rect(2, 1, 6, 4), PixelBounds(img))

	sub := img.SubImage(image.Rect(4, 0, 8, 8)).(*image.RGBA)
	assert.Equal(t, image.Rect(5, 1, 6, 2), PixelBounds(sub))
}

func TestPatternCovers(t *testing.T) {
	tests := []struct {
		style string
		x, y  int
		want  bool
	}{
		{StyleSolid, 3, 5, true},
		{"unknown", 3, 5, true},
		{StyleGrid, 8, 3, true},
		{StyleGrid, 3, 16, true},
		{StyleGrid, 3, 5, false},
		{StyleHorizontal, 3, -8, true},
		{StyleHorizontal, 3, 7, false},
		{StyleVertical, -16, 1, true},
		{StyleVertical, 1, 0, false},
		{StyleDiagonal, 3, 5, true},
		{StyleDiagonal, 3, 4, false},
		{StyleCrosshatch, 5, 5, true},
		{StyleCrosshatch, 1, 2, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PatternCovers(tt.style, tt.x, tt.y), "%s (%d,%d)", tt.style, tt.x, tt.y)
	}
}

func TestApplyFill(t *testing.T) {
	img := filled(8, 8, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetRGBA(0, 1, color.RGBA{})

	ApplyFill(img, StyleHorizontal, color.NRGBA{R: 255, A: 255}, image.Pt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(3, 0))
	assert.Zero(t, img.RGBAAt(3, 1).A, "off-pattern pixels are cleared")
	assert.Zero(t, img.RGBAAt(0, 1).A)

	// The pattern is anchored at the document origin.
	shifted := filled(1, 1, color.RGBA{A: 255})
	ApplyFill(shifted, StyleHorizontal, color.NRGBA{G: 255, A: 255}, image.Pt(0, 8))
	assert.Equal(t, uint8(255), shifted.RGBAAt(0, 0).G)

	// Coverage is kept as a mask, so partial alpha stays partial.
	soft := filled(1, 1, color.RGBA{A: 128})
	ApplyFill(soft, StyleSolid, color.NRGBA{B: 255, A: 255}, image.Pt(0, 0))
	assert.Equal(t, color.RGBA{B: 128, A: 128}, soft.RGBAAt(0, 0))
}

func TestLightnessToAlpha(t *testing.T) {
	img := New(3, 1)
	img.SetRGBA(0, 0, color.RGBA{A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetRGBA(2, 0, color.RGBA{R: 255, A: 255})

	out := LightnessToAlpha(img)
	assert.Zero(t, out.RGBAAt(0, 0).A, "black becomes transparent")
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.RGBAAt(1, 0))
	red := out.RGBAAt(2, 0)
	assert.Equal(t, uint8(127), red.A)
	assert.LessOrEqual(t, red.R, red.A)
}

func TestEncodeDecodePNG(t *testing.T) {
	src := New(3, 2)
	src.SetRGBA(1, 1, color.RGBA{R: 40, G: 80, B: 120, A: 255})

	data, err := EncodePNG(src)
	require.NoError(t, err)
	out, format, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, src.Rect, out.Rect)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestDecodeJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, filled(4, 4, color.RGBA{R: 200, G: 200, B: 200, A: 255}), nil))

	out, format, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Rect)
	assert.Equal(t, Opaque, Classify(out))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode([]byte("not an image"))
	assert.Error(t, err)
}
