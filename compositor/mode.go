package compositor

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/raster"
	"github.com/gogpu/canvas/state"
	"github.com/gogpu/canvas/structhash"
)

// GenerationMode is the kind of generation the bbox content calls for.
type GenerationMode string

// Generation modes.
const (
	Txt2Img  GenerationMode = "txt2img"
	Img2Img  GenerationMode = "img2img"
	Inpaint  GenerationMode = "inpaint"
	Outpaint GenerationMode = "outpaint"
)

// ModeFor maps the transparency of the raster and mask composites to a
// generation mode. An empty bbox generates from scratch; a partly empty
// one is extended; a full one is redrawn where masked, or entirely when
// nothing is masked.
func ModeFor(rasterT, maskT raster.Transparency) GenerationMode {
	switch rasterT {
	case raster.FullyTransparent:
		return Txt2Img
	case raster.PartiallyTransparent:
		return Outpaint
	}
	if maskT == raster.FullyTransparent {
		return Img2Img
	}
	return Inpaint
}

type modeInput struct {
	Rect                     geom.Rect      `json:"rect"`
	CompositeInpaintMaskHash structhash.Key `json:"compositeInpaintMaskHash"`
	CompositeRasterLayerHash structhash.Key `json:"compositeRasterLayerHash"`
}

// GenerationMode returns the generation mode for the current bbox.
func (c *Compositor) GenerationMode() (GenerationMode, error) {
	rect := c.src.Bbox()
	rasterHash, err := c.Hash(state.KindRasterLayer, rect)
	if err != nil {
		return "", err
	}
	maskHash, err := c.Hash(state.KindInpaintMask, rect)
	if err != nil {
		return "", err
	}
	hash, err := structhash.Of(modeInput{Rect: rect, CompositeInpaintMaskHash: maskHash, CompositeRasterLayerHash: rasterHash})
	if err != nil {
		return "", fmt.Errorf("compositor: hash generation mode: %w", err)
	}
	if mode, ok := c.caches.Modes.Get(hash); ok {
		c.log.Debug("using cached generation mode", slog.String("mode", string(mode)))
		return mode, nil
	}

	rasterImg, err := c.RasterLayerCanvas(rect)
	if err != nil {
		return "", err
	}
	maskImg, err := c.InpaintMaskCanvas(rect)
	if err != nil {
		return "", err
	}
	rasterT, maskT := raster.Classify(rasterImg), raster.Classify(maskImg)
	mode := ModeFor(rasterT, maskT)
	c.log.Debug("computed generation mode",
		slog.String("raster", rasterT.String()),
		slog.String("mask", maskT.String()),
		slog.String("mode", string(mode)))

	if c.pending(state.KindRasterLayer) || c.pending(state.KindInpaintMask) {
		return mode, nil
	}
	c.caches.Modes.Set(hash, mode)
	return mode, nil
}

func (c *Compositor) pending(kind state.Kind) bool {
	for _, a := range c.adapters(kind) {
		if a.IsPending() {
			return true
		}
	}
	return false
}
