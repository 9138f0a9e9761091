// Package compositor flattens the enabled entities of one kind into a
// single bitmap and derives the generation mode from the composites.
//
// Every result is cached under the structural hash of its inputs: the
// region and the hashable state of each included entity. A cache entry is
// never invalidated explicitly; once any input changes its key is simply
// not asked for again, and the bounded caches evict it in time.
package compositor

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/canvas/assets"
	"github.com/gogpu/canvas/entity"
	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/internal/cache"
	"github.com/gogpu/canvas/internal/logx"
	"github.com/gogpu/canvas/raster"
	"github.com/gogpu/canvas/state"
	"github.com/gogpu/canvas/structhash"
)

// Source gives the compositor access to the document and the adapters.
type Source interface {
	// EntityIDs returns the ids of kind in draw order.
	EntityIDs(kind state.Kind) []string
	// EntityAdapter returns the adapter of id.
	EntityAdapter(kind state.Kind, id string) (*entity.Adapter, bool)
	// Bbox returns the generation bbox.
	Bbox() geom.Rect
	// AutoAddBoardID returns the board gallery saves go to.
	AutoAddBoardID() string
}

// Caches are the result caches. They may be shared between compositors.
type Caches struct {
	Canvases *cache.LRU[structhash.Key, *image.RGBA]
	Names    *cache.LRU[structhash.Key, string]
	Modes    *cache.LRU[structhash.Key, GenerationMode]
}

// NewCaches creates caches holding up to capacity entries each.
func NewCaches(capacity int) *Caches {
	return &Caches{
		Canvases: cache.New[structhash.Key, *image.RGBA](capacity),
		Names:    cache.New[structhash.Key, string](capacity),
		Modes:    cache.New[structhash.Key, GenerationMode](capacity),
	}
}

// Compositor builds composites. It is confined to the owner goroutine.
type Compositor struct {
	src    Source
	assets assets.Store
	caches *Caches
	log    *slog.Logger
	draws  int
}

// New creates a compositor.
func New(src Source, store assets.Store, caches *Caches, logger *slog.Logger) *Compositor {
	if caches == nil {
		caches = NewCaches(cache.DefaultCapacity)
	}
	c := &Compositor{src: src, assets: store, caches: caches, log: logx.OrNop(logger)}
	c.log.Debug("creating compositor module")
	return c
}

// Draws returns how many composites were drawn rather than served from
// the cache.
func (c *Compositor) Draws() int { return c.draws }

// Caches returns the result caches.
func (c *Compositor) Caches() *Caches { return c.caches }

func compositeKind(kind state.Kind) error {
	if kind != state.KindRasterLayer && kind != state.KindInpaintMask {
		return fmt.Errorf("compositor: %w: %s", state.ErrInvalidKind, kind)
	}
	return nil
}

// EntityIDs returns the ids of the enabled entities of kind that have
// objects, in draw order.
func (c *Compositor) EntityIDs(kind state.Kind) []string {
	var ids []string
	for _, id := range c.src.EntityIDs(kind) {
		a, ok := c.src.EntityAdapter(kind, id)
		if !ok {
			c.log.Warn("adapter not found", slog.String("kind", string(kind)), slog.String("id", id))
			continue
		}
		if s := a.State(); s.Enabled() && len(s.Base().Objects) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Compositor) adapters(kind state.Kind) []*entity.Adapter {
	ids := c.EntityIDs(kind)
	out := make([]*entity.Adapter, 0, len(ids))
	for _, id := range ids {
		if a, ok := c.src.EntityAdapter(kind, id); ok {
			out = append(out, a)
		}
	}
	return out
}

type compositeInput struct {
	Extra         compositeExtra `json:"extra"`
	AdapterHashes []any          `json:"adapterHashes"`
}

type compositeExtra struct {
	Rect geom.Rect `json:"rect"`
}

// Hash returns the cache key of the composite of kind over rect.
func (c *Compositor) Hash(kind state.Kind, rect geom.Rect) (structhash.Key, error) {
	adapters := c.adapters(kind)
	in := compositeInput{Extra: compositeExtra{Rect: rect}, AdapterHashes: make([]any, 0, len(adapters))}
	for _, a := range adapters {
		in.AdapterHashes = append(in.AdapterHashes, a.HashableState())
	}
	k, err := structhash.Of(in)
	if err != nil {
		return 0, fmt.Errorf("compositor: hash %s composite: %w", kind, err)
	}
	return k, nil
}

// Canvas returns the composite of kind over rect. The bitmap is shared
// with the cache and must not be modified.
func (c *Compositor) Canvas(kind state.Kind, rect geom.Rect) (*image.RGBA, error) {
	if err := compositeKind(kind); err != nil {
		return nil, err
	}
	hash, err := c.Hash(kind, rect)
	if err != nil {
		return nil, err
	}
	log := c.log.With(slog.String("kind", string(kind)), slog.Any("rect", rect))
	if img, ok := c.caches.Canvases.Get(hash); ok {
		log.Debug("using cached composite canvas")
		return img, nil
	}

	log.Debug("building composite canvas")
	c.draws++
	px := rect.Pixel()
	out := raster.New(px.Dx(), px.Dy())
	pending := false
	for _, a := range c.adapters(kind) {
		raster.DrawOver(out, a.Canvas(rect), image.Point{})
		pending = pending || a.IsPending()
	}
	if pending {
		log.Debug("not caching composite with pending image loads")
		return out, nil
	}
	c.caches.Canvases.Set(hash, out)
	return out, nil
}

// RasterLayerCanvas returns the composite of the raster layers.
func (c *Compositor) RasterLayerCanvas(rect geom.Rect) (*image.RGBA, error) {
	return c.Canvas(state.KindRasterLayer, rect)
}

// InpaintMaskCanvas returns the composite of the inpaint masks.
func (c *Compositor) InpaintMaskCanvas(rect geom.Rect) (*image.RGBA, error) {
	return c.Canvas(state.KindInpaintMask, rect)
}

func uploadName(kind state.Kind) string {
	if kind == state.KindInpaintMask {
		return "composite-inpaint-mask.png"
	}
	return "composite-raster-layer.png"
}

// RasterizeAndUpload uploads the composite of kind over rect. Saved to the
// gallery, it lands on the auto-add board; otherwise it is intermediate.
func (c *Compositor) RasterizeAndUpload(ctx context.Context, kind state.Kind, rect geom.Rect, saveToGallery bool) (assets.Descriptor, error) {
	if c.assets == nil {
		return assets.Descriptor{}, fmt.Errorf("compositor: no asset store")
	}
	img, err := c.Canvas(kind, rect)
	if err != nil {
		return assets.Descriptor{}, err
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return assets.Descriptor{}, fmt.Errorf("compositor: encode %s composite: %w", kind, err)
	}
	u := assets.Upload{
		Data:           data,
		Filename:       uploadName(kind),
		Category:       assets.CategoryGeneral,
		IsIntermediate: !saveToGallery,
	}
	if saveToGallery {
		u.BoardID = c.src.AutoAddBoardID()
	}
	return c.assets.Upload(ctx, u)
}

// Image returns the uploaded composite of kind over rect, uploading it
// when no earlier upload of the same input still exists.
func (c *Compositor) Image(ctx context.Context, kind state.Kind, rect geom.Rect) (assets.Descriptor, error) {
	if err := compositeKind(kind); err != nil {
		return assets.Descriptor{}, err
	}
	if c.assets == nil {
		return assets.Descriptor{}, fmt.Errorf("compositor: no asset store")
	}
	hash, err := c.Hash(kind, rect)
	if err != nil {
		return assets.Descriptor{}, err
	}
	log := c.log.With(slog.String("kind", string(kind)), slog.Any("rect", rect))
	if name, ok := c.caches.Names.Get(hash); ok {
		desc, err := c.assets.Get(ctx, name)
		if err == nil {
			log.Debug("using cached composite image", slog.String("image", name))
			return desc, nil
		}
		if !assets.IsNotFound(err) {
			log.Warn("failed to re-validate cached composite image", slog.String("image", name), slog.Any("error", err))
		}
	}

	desc, err := c.RasterizeAndUpload(ctx, kind, rect, false)
	if err != nil {
		return assets.Descriptor{}, err
	}
	c.caches.Names.Set(hash, desc.Name)
	return desc, nil
}

// RasterLayerImage returns the uploaded raster layer composite.
func (c *Compositor) RasterLayerImage(ctx context.Context, rect geom.Rect) (assets.Descriptor, error) {
	return c.Image(ctx, state.KindRasterLayer, rect)
}

// InpaintMaskImage returns the uploaded inpaint mask composite.
func (c *Compositor) InpaintMaskImage(ctx context.Context, rect geom.Rect) (assets.Descriptor, error) {
	return c.Image(ctx, state.KindInpaintMask, rect)
}
