// Package raster holds the pixel-level utilities of the canvas engine:
// transparency classification, bitmap allocation and compositing helpers,
// PNG encoding, multi-format decoding, mask fills and pixel filters.
//
// Bitmaps are *image.RGBA (premultiplied alpha), matching how the engine
// composites with image/draw.
package raster
