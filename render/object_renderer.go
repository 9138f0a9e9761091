// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gogpu/canvas/assets"
	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/internal/cache"
	"github.com/gogpu/canvas/internal/debounce"
	"github.com/gogpu/canvas/internal/logx"
	"github.com/gogpu/canvas/internal/task"
	"github.com/gogpu/canvas/raster"
	"github.com/gogpu/canvas/state"
	"github.com/gogpu/canvas/structhash"
)

// DefaultPreviewDelay is the quiet period before the preview is refreshed.
const DefaultPreviewDelay = 300 * time.Millisecond

// Host is the entity an ObjectRenderer draws for.
type Host interface {
	EntityID() string
	// Objects returns the entity's objects in draw order.
	Objects() []state.Object
	// Position returns the document position of the entity's local origin.
	Position() geom.Coord
	// HashableState returns the entity state that determines its pixels.
	HashableState() any
	// CommitRasterized records a rasterization result in the document.
	CommitRasterized(img *state.ImageObject, pos geom.Coord, replace bool) error
	// PushObject appends o to the entity's objects in the document.
	PushObject(o state.Object) error
}

// Env holds the collaborators shared by all renderers of a canvas.
type Env struct {
	Assets assets.Store
	Loader assets.Loader
	// Names maps rasterization hashes to uploaded asset names.
	Names *cache.LRU[structhash.Key, string]
	// Tasks receives asynchronous image loads. When nil, images load
	// synchronously.
	Tasks        *task.Queue
	Logger       *slog.Logger
	PreviewDelay time.Duration
}

// Preview is the tight crop of an entity's rendered objects.
type Preview struct {
	Image *image.RGBA
	// Rect is the crop in document space at the time of rendering.
	Rect geom.Rect
}

// groupCache is an immutable rendering of all visible objects.
type groupCache struct {
	img *image.RGBA
	// origin is the local coordinate of img's top-left pixel.
	origin image.Point
	pos    geom.Coord
}

// RasterizeOptions configure ObjectRenderer.Rasterize.
type RasterizeOptions struct {
	// Rect is the document region to rasterize.
	Rect geom.Rect
	// ReplaceObjects replaces the entity's objects with the result.
	ReplaceObjects bool
	// Background, if set, is painted under the objects.
	Background *state.Color
}

// ObjectRenderer keeps one renderer per object of an entity and a cached
// bitmap of the whole group. It is confined to the owner goroutine; only
// the preview refresh runs elsewhere, on immutable snapshots.
type ObjectRenderer struct {
	host Host
	env  *Env
	log  *slog.Logger

	renderers map[string]objectRenderer
	order     []string
	buffer    objectRenderer

	cache   atomic.Pointer[groupCache]
	preview atomic.Pointer[Preview]
	refresh *debounce.Debouncer

	destroyed bool
}

// NewObjectRenderer creates the renderer for host. path is the module path
// of the owner, used to tag log records.
func NewObjectRenderer(host Host, env *Env, path ...string) *ObjectRenderer {
	if env == nil {
		env = &Env{}
	}
	delay := env.PreviewDelay
	if delay <= 0 {
		delay = DefaultPreviewDelay
	}
	r := &ObjectRenderer{
		host:      host,
		env:       env,
		log:       logx.For(env.Logger, append(slices.Clip(path), "object_renderer")...),
		renderers: make(map[string]objectRenderer),
	}
	r.refresh = debounce.New(delay, r.updatePreview)
	r.log.Debug("creating module")
	return r
}

// Render reconciles the renderers with the host's objects. It reports
// whether anything was drawn differently.
func (r *ObjectRenderer) Render() bool {
	if r.destroyed {
		return false
	}
	objects := r.host.Objects()
	didRender := false

	present := make(map[string]struct{}, len(objects))
	for _, o := range objects {
		present[o.ObjectID()] = struct{}{}
	}
	for id, or := range r.renderers {
		if _, ok := present[id]; ok {
			continue
		}
		or.destroy()
		delete(r.renderers, id)
		didRender = true
	}

	order := make([]string, 0, len(objects))
	for _, o := range objects {
		id := o.ObjectID()
		or, ok := r.renderers[id]
		if !ok {
			or = newObjectRenderer(o, r.env, r.log, r.imageLoaded)
			r.renderers[id] = or
		}
		if or.update(o, !ok) {
			didRender = true
		}
		order = append(order, id)
	}
	if !slices.Equal(order, r.order) {
		didRender = true
	}
	r.order = order

	r.syncCache(didRender)
	return didRender
}

func (r *ObjectRenderer) imageLoaded() {
	if !r.destroyed {
		r.syncCache(true)
	}
}

// syncCache rebuilds the group bitmap when forced or not yet built, and
// drops it when there is nothing to draw.
func (r *ObjectRenderer) syncCache(force bool) {
	if len(r.renderers) == 0 {
		r.log.Debug("clearing object group cache")
		r.cache.Store(nil)
		r.preview.Store(nil)
		r.refresh.Cancel()
		return
	}
	if !force && r.cache.Load() != nil {
		return
	}
	r.log.Debug("caching object group")
	area := r.localBounds().Pixel()
	img := raster.New(area.Dx(), area.Dy())
	r.drawObjects(img, geom.Coord{X: float64(area.Min.X), Y: float64(area.Min.Y)})
	r.cache.Store(&groupCache{img: img, origin: area.Min, pos: r.host.Position()})
	r.refresh.Trigger()
}

// localBounds is the union of the visible objects' vector bounds.
func (r *ObjectRenderer) localBounds() geom.Rect {
	rects := make([]geom.Rect, 0, len(r.order))
	for _, id := range r.order {
		if or := r.renderers[id]; or.visible() {
			rects = append(rects, or.bounds())
		}
	}
	return geom.Union(rects...)
}

func (r *ObjectRenderer) drawObjects(dst *image.RGBA, off geom.Coord) {
	for _, id := range r.order {
		if or := r.renderers[id]; or.visible() {
			or.draw(dst, off)
		}
	}
}

func (r *ObjectRenderer) updatePreview() {
	c := r.cache.Load()
	if c == nil {
		return
	}
	tight := raster.PixelBounds(c.img)
	if tight.Empty() {
		r.preview.Store(&Preview{Image: raster.New(0, 0)})
		return
	}
	crop := raster.Clone(c.img.SubImage(tight).(*image.RGBA))
	rect := geom.FromImage(tight.Add(c.origin)).Translate(c.pos)
	r.preview.Store(&Preview{Image: crop, Rect: rect})
}

// Preview returns the last published preview. It may lag behind Render by
// the preview delay.
func (r *ObjectRenderer) Preview() (*Preview, bool) {
	p := r.preview.Load()
	return p, p != nil
}

// FlushPreview publishes a pending preview refresh immediately.
func (r *ObjectRenderer) FlushPreview() bool {
	return r.refresh.Flush()
}

// HideObjects hides every object except the listed ones.
func (r *ObjectRenderer) HideObjects(except ...string) {
	r.setVisible(false, except)
}

// ShowObjects shows every object except the listed ones.
func (r *ObjectRenderer) ShowObjects(except ...string) {
	r.setVisible(true, except)
}

func (r *ObjectRenderer) setVisible(v bool, except []string) {
	for id, or := range r.renderers {
		if !slices.Contains(except, id) {
			or.setVisible(v)
		}
	}
	r.syncCache(true)
}

// NeedsPixelBbox reports whether the vector bounds may over-count: erased
// strokes, clipped strokes and images can leave transparent regions.
func (r *ObjectRenderer) NeedsPixelBbox() bool {
	for _, or := range r.renderers {
		switch o := or.object().(type) {
		case *state.EraserLine, *state.ImageObject:
			return true
		case *state.BrushLine:
			if o.Clip != nil {
				return true
			}
		}
	}
	return false
}

// HasObjects reports whether there is anything to draw, the buffer
// included.
func (r *ObjectRenderer) HasObjects() bool {
	return len(r.renderers) > 0 || r.buffer != nil
}

// Loading reports whether an image load is in flight.
func (r *ObjectRenderer) Loading() bool {
	for _, or := range r.renderers {
		if ir, ok := or.(*imageRenderer); ok && ir.loading {
			return true
		}
	}
	return false
}

// Len returns the number of object renderers.
func (r *ObjectRenderer) Len() int { return len(r.renderers) }

// IDs returns the object ids in draw order.
func (r *ObjectRenderer) IDs() []string { return slices.Clone(r.order) }

// ContentRect returns the document rect covered by the visible objects'
// vector bounds.
func (r *ObjectRenderer) ContentRect() geom.Rect {
	b := r.localBounds()
	if b.IsEmpty() {
		return geom.Rect{}
	}
	return b.Translate(r.host.Position())
}

// PixelRect returns the document rect of the non-transparent pixels of
// the visible objects.
func (r *ObjectRenderer) PixelRect() geom.Rect {
	r.syncCache(false)
	c := r.cache.Load()
	if c == nil {
		return geom.Rect{}
	}
	tight := raster.PixelBounds(c.img)
	if tight.Empty() {
		return geom.Rect{}
	}
	return geom.FromImage(tight.Add(c.origin)).Translate(r.host.Position())
}

// Canvas renders the visible objects, without the buffer, into a bitmap
// covering rect in document space.
func (r *ObjectRenderer) Canvas(rect geom.Rect) *image.RGBA {
	px := rect.Pixel()
	out := raster.New(px.Dx(), px.Dy())
	off := geom.Coord{X: float64(px.Min.X), Y: float64(px.Min.Y)}.Sub(r.host.Position())

	r.syncCache(false)
	if c := r.cache.Load(); c != nil && isIntegral(off) {
		at := c.origin.Sub(image.Pt(int(off.X), int(off.Y)))
		draw.Draw(out, c.img.Rect.Add(at), c.img, image.Point{}, draw.Src)
		return out
	}
	r.drawObjects(out, off)
	return out
}

func isIntegral(c geom.Coord) bool {
	return c.X == math.Trunc(c.X) && c.Y == math.Trunc(c.Y)
}

// SetBuffer starts drawing o as the in-progress object.
func (r *ObjectRenderer) SetBuffer(o state.Object) {
	if r.buffer != nil {
		r.buffer.destroy()
	}
	r.buffer = newObjectRenderer(o, r.env, r.log, nil)
	r.buffer.update(o, true)
}

// Buffer returns the in-progress object.
func (r *ObjectRenderer) Buffer() (state.Object, bool) {
	if r.buffer == nil {
		return nil, false
	}
	return r.buffer.object(), true
}

// BufferCanvas renders the in-progress object into a bitmap covering rect.
func (r *ObjectRenderer) BufferCanvas(rect geom.Rect) *image.RGBA {
	px := rect.Pixel()
	out := raster.New(px.Dx(), px.Dy())
	if r.buffer != nil {
		off := geom.Coord{X: float64(px.Min.X), Y: float64(px.Min.Y)}.Sub(r.host.Position())
		r.buffer.draw(out, off)
	}
	return out
}

// ClearBuffer drops the in-progress object.
func (r *ObjectRenderer) ClearBuffer() {
	if r.buffer != nil {
		r.buffer.destroy()
		r.buffer = nil
	}
}

// CommitBuffer moves the in-progress object into the group. With push the
// object is also appended to the entity in the document.
func (r *ObjectRenderer) CommitBuffer(push bool) error {
	if r.buffer == nil {
		return nil
	}
	b := r.buffer
	r.buffer = nil
	id := b.object().ObjectID()
	if old, ok := r.renderers[id]; ok {
		old.destroy()
	} else {
		r.order = append(slices.Clip(r.order), id)
	}
	if ir, ok := b.(*imageRenderer); ok {
		ir.onLoad = r.imageLoaded
	}
	r.renderers[id] = b
	r.syncCache(true)
	if push {
		return r.host.PushObject(b.object())
	}
	return nil
}

// Rasterize renders rect, uploads it and records the result. A previous
// upload of identical input is reused after checking it still exists.
func (r *ObjectRenderer) Rasterize(ctx context.Context, opts RasterizeOptions) (assets.Descriptor, error) {
	if r.env.Assets == nil {
		return assets.Descriptor{}, fmt.Errorf("render: rasterize %s: no asset store", r.host.EntityID())
	}
	hash, err := structhash.Of(struct {
		State any          `json:"state"`
		Rect  geom.Rect    `json:"rect"`
		Bg    *state.Color `json:"bg"`
	}{r.host.HashableState(), opts.Rect, opts.Background})
	if err != nil {
		return assets.Descriptor{}, fmt.Errorf("render: rasterize %s: %w", r.host.EntityID(), err)
	}

	if r.env.Names != nil {
		if name, ok := r.env.Names.Get(hash); ok {
			desc, err := r.env.Assets.Get(ctx, name)
			if err == nil {
				r.log.Debug("using cached rasterized image", slog.String("image", name))
				return desc, nil
			}
			r.log.Debug("cached rasterized image is gone", slog.String("image", name), slog.Any("error", err))
		}
	}

	img := r.Canvas(opts.Rect)
	if opts.Background != nil {
		bg := raster.New(img.Rect.Dx(), img.Rect.Dy())
		draw.Draw(bg, bg.Rect, image.NewUniform(opts.Background.NRGBA()), image.Point{}, draw.Src)
		raster.DrawOver(bg, img, image.Point{})
		img = bg
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return assets.Descriptor{}, fmt.Errorf("render: rasterize %s: %w", r.host.EntityID(), err)
	}
	desc, err := r.env.Assets.Upload(ctx, assets.Upload{
		Data:           data,
		Filename:       r.host.EntityID() + "_rasterized.png",
		Category:       assets.CategoryOther,
		IsIntermediate: true,
	})
	if err != nil {
		return assets.Descriptor{}, err
	}

	obj := state.NewImageObject(state.ImageRef{Name: desc.Name, Width: desc.Width, Height: desc.Height})
	if opts.ReplaceObjects {
		ir := &imageRenderer{env: r.env, log: r.log.With(slog.String("object", obj.ID))}
		ir.seed(obj, img)
		r.ClearBuffer()
		r.buffer = ir
		if err := r.CommitBuffer(false); err != nil {
			return assets.Descriptor{}, err
		}
	}
	pos := opts.Rect.Origin().Round()
	if err := r.host.CommitRasterized(obj, pos, opts.ReplaceObjects); err != nil {
		return assets.Descriptor{}, err
	}
	if r.env.Names != nil {
		r.env.Names.Set(hash, desc.Name)
	}
	return desc, nil
}

// Destroy releases all renderers and stops the preview refresh.
func (r *ObjectRenderer) Destroy() {
	if r.destroyed {
		return
	}
	r.log.Debug("destroying module")
	r.destroyed = true
	r.refresh.Stop()
	for _, or := range r.renderers {
		or.destroy()
	}
	clear(r.renderers)
	r.order = nil
	r.ClearBuffer()
	r.cache.Store(nil)
	r.preview.Store(nil)
}
