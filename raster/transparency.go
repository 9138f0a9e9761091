package raster

import "image"

// Transparency classifies the alpha channel of a bitmap.
type Transparency uint8

const (
	// FullyTransparent means every pixel has alpha 0.
	FullyTransparent Transparency = iota
	// PartiallyTransparent means at least one pixel has alpha 0 and at
	// least one has alpha > 0.
	PartiallyTransparent
	// Opaque means every pixel has alpha > 0.
	Opaque
)

func (t Transparency) String() string {
	switch t {
	case FullyTransparent:
		return "FULLY_TRANSPARENT"
	case PartiallyTransparent:
		return "PARTIALLY_TRANSPARENT"
	case Opaque:
		return "OPAQUE"
	default:
		return "UNKNOWN"
	}
}

// Classify scans the alpha channel of img. The scan stops as soon as both a
// zero and a non-zero alpha have been seen. An image with no pixels is
// FullyTransparent.
func Classify(img image.Image) Transparency {
	var sawZero, sawNonZero bool

	switch m := img.(type) {
	case *image.RGBA:
		sawZero, sawNonZero = scanAlpha(m.Pix, m.Stride, m.Rect, 4, 3)
	case *image.NRGBA:
		sawZero, sawNonZero = scanAlpha(m.Pix, m.Stride, m.Rect, 4, 3)
	case *image.Alpha:
		sawZero, sawNonZero = scanAlpha(m.Pix, m.Stride, m.Rect, 1, 0)
	default:
		b := img.Bounds()
	generic:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if _, _, _, a := img.At(x, y).RGBA(); a == 0 {
					sawZero = true
				} else {
					sawNonZero = true
				}
				if sawZero && sawNonZero {
					break generic
				}
			}
		}
	}

	switch {
	case sawZero && sawNonZero:
		return PartiallyTransparent
	case sawNonZero:
		return Opaque
	default:
		return FullyTransparent
	}
}

// scanAlpha walks the alpha byte of every pixel in r, bpp bytes per pixel
// with the alpha at offset off.
func scanAlpha(pix []uint8, stride int, r image.Rectangle, bpp, off int) (sawZero, sawNonZero bool) {
	w := r.Dx()
	for y := 0; y < r.Dy(); y++ {
		row := pix[y*stride : y*stride+w*bpp]
		for i := off; i < len(row); i += bpp {
			if row[i] == 0 {
				sawZero = true
			} else {
				sawNonZero = true
			}
			if sawZero && sawNonZero {
				return
			}
		}
	}
	return
}
