package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	"image/png"

	"github.com/anthonynsimon/bild/clone"
	_ "golang.org/x/image/bmp"  // register BMP decoding
	_ "golang.org/x/image/tiff" // register TIFF decoding
	_ "golang.org/x/image/webp" // register WebP decoding
)

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("raster: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes PNG, JPEG, GIF, BMP, TIFF or WebP data into an RGBA bitmap
// anchored at the origin. It also returns the format name.
func Decode(data []byte) (*image.RGBA, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("raster: decode: %w", err)
	}
	rgba := clone.AsRGBA(img)
	if rgba.Rect.Min != (image.Point{}) {
		rgba = Clone(rgba)
	}
	return rgba, format, nil
}
