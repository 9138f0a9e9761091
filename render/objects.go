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

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/raster"
	"github.com/gogpu/canvas/state"
)

// objectRenderer draws one object of an entity. Coordinates are local to
// the entity: the entity position is applied by the caller through off,
// the local coordinate of the destination's top-left pixel.
type objectRenderer interface {
	objectType() state.ObjectType
	object() state.Object
	// update adopts o. It reports whether the drawn pixels may have changed.
	update(o state.Object, force bool) bool
	draw(dst *image.RGBA, off geom.Coord)
	bounds() geom.Rect
	visible() bool
	setVisible(v bool)
	destroy()
}

type visibility struct{ hidden bool }

func (v *visibility) visible() bool      { return !v.hidden }
func (v *visibility) setVisible(ok bool) { v.hidden = !ok }

// newObjectRenderer returns the renderer for o's type.
func newObjectRenderer(o state.Object, env *Env, log *slog.Logger, onLoad func()) objectRenderer {
	switch o := o.(type) {
	case *state.BrushLine:
		return &brushRenderer{}
	case *state.EraserLine:
		return &eraserRenderer{}
	case *state.RectShape:
		return &rectRenderer{}
	case *state.ImageObject:
		return &imageRenderer{env: env, log: log.With(slog.String("object", o.ID)), onLoad: onLoad}
	default:
		panic(fmt.Sprintf("render: unknown object type %T", o))
	}
}

// mustBe asserts that the renderer and the object agree on the type tag.
func mustBe(r objectRenderer, o state.Object) {
	if r.objectType() != o.Type() {
		panic(fmt.Sprintf("render: %s renderer cannot draw %s object %q", r.objectType(), o.Type(), o.ObjectID()))
	}
}

type brushRenderer struct {
	visibility
	obj *state.BrushLine
}

func (r *brushRenderer) objectType() state.ObjectType { return state.TypeBrushLine }
func (r *brushRenderer) object() state.Object         { return r.obj }

func (r *brushRenderer) update(o state.Object, force bool) bool {
	mustBe(r, o)
	next := o.(*state.BrushLine)
	if !force && next == r.obj {
		return false
	}
	r.obj = next
	return true
}

func (r *brushRenderer) draw(dst *image.RGBA, off geom.Coord) {
	mask, area := strokeCoverage(r.obj.Points, r.obj.StrokeWidth, dst.Rect, off)
	if mask == nil {
		return
	}
	if r.obj.Clip != nil {
		clipMask(mask, area, r.obj.Clip.Translate(geom.Coord{X: -off.X, Y: -off.Y}).Pixel())
	}
	src := image.NewUniform(r.obj.Color.NRGBA())
	draw.DrawMask(dst, area, src, image.Point{}, mask, image.Point{}, draw.Over)
}

func (r *brushRenderer) bounds() geom.Rect {
	b := geom.Bounds(r.obj.Points, r.obj.StrokeWidth/2)
	if r.obj.Clip != nil {
		b = b.Intersect(*r.obj.Clip)
	}
	return b
}

func (r *brushRenderer) destroy() {}

type eraserRenderer struct {
	visibility
	obj *state.EraserLine
}

func (r *eraserRenderer) objectType() state.ObjectType { return state.TypeEraserLine }
func (r *eraserRenderer) object() state.Object         { return r.obj }

func (r *eraserRenderer) update(o state.Object, force bool) bool {
	mustBe(r, o)
	next := o.(*state.EraserLine)
	if !force && next == r.obj {
		return false
	}
	r.obj = next
	return true
}

func (r *eraserRenderer) draw(dst *image.RGBA, off geom.Coord) {
	mask, area := strokeCoverage(r.obj.Points, r.obj.StrokeWidth, dst.Rect, off)
	if mask == nil {
		return
	}
	if r.obj.Clip != nil {
		clipMask(mask, area, r.obj.Clip.Translate(geom.Coord{X: -off.X, Y: -off.Y}).Pixel())
	}
	raster.DestinationOut(dst, mask, area.Min)
}

func (r *eraserRenderer) bounds() geom.Rect {
	b := geom.Bounds(r.obj.Points, r.obj.StrokeWidth/2)
	if r.obj.Clip != nil {
		b = b.Intersect(*r.obj.Clip)
	}
	return b
}

func (r *eraserRenderer) destroy() {}

type rectRenderer struct {
	visibility
	obj *state.RectShape
}

func (r *rectRenderer) objectType() state.ObjectType { return state.TypeRect }
func (r *rectRenderer) object() state.Object         { return r.obj }

func (r *rectRenderer) update(o state.Object, force bool) bool {
	mustBe(r, o)
	next := o.(*state.RectShape)
	if !force && next == r.obj {
		return false
	}
	r.obj = next
	return true
}

func (r *rectRenderer) draw(dst *image.RGBA, off geom.Coord) {
	area := r.obj.Rect.Translate(geom.Coord{X: -off.X, Y: -off.Y}).Pixel()
	draw.Draw(dst, area, image.NewUniform(r.obj.Color.NRGBA()), image.Point{}, draw.Over)
}

func (r *rectRenderer) bounds() geom.Rect { return r.obj.Rect }

func (r *rectRenderer) destroy() {}

// imageRenderer draws a stored image at the local origin, scaled to the
// declared dimensions. The bitmap is loaded asynchronously; until it
// arrives, or after the load failed, the renderer draws nothing.
type imageRenderer struct {
	visibility
	env    *Env
	log    *slog.Logger
	onLoad func()

	obj  *state.ImageObject
	name string
	// src is the decoded bitmap; img is src scaled to the declared size.
	src     *image.RGBA
	img     *image.RGBA
	loading bool
	errored bool
	// token identifies the current load; completions of older loads are
	// dropped.
	token     uint64
	destroyed bool
}

func (r *imageRenderer) objectType() state.ObjectType { return state.TypeImage }
func (r *imageRenderer) object() state.Object         { return r.obj }

func (r *imageRenderer) update(o state.Object, force bool) bool {
	mustBe(r, o)
	next := o.(*state.ImageObject)
	if !force && next == r.obj {
		return false
	}
	prev := r.obj
	r.obj = next
	if force || r.name != next.Image.Name {
		r.load()
		return true
	}
	if prev != nil && prev.Image != next.Image && r.src != nil {
		r.img = fit(r.src, next.Image.Width, next.Image.Height)
		return true
	}
	return false
}

// seed installs an already decoded bitmap, skipping the load.
func (r *imageRenderer) seed(o *state.ImageObject, img *image.RGBA) {
	r.token++
	r.obj = o
	r.name = o.Image.Name
	r.src = img
	r.img = fit(img, o.Image.Width, o.Image.Height)
	r.loading = false
	r.errored = false
}

func (r *imageRenderer) load() {
	r.token++
	tok := r.token
	ref := r.obj.Image
	r.name = ref.Name
	r.loading = true
	r.errored = false

	if r.env.Loader == nil {
		r.finish(tok, nil, nil, fmt.Errorf("render: no image loader for %s", ref.Name))
		return
	}
	if r.env.Tasks == nil {
		img, err := r.env.Loader.Load(context.Background(), ref.Name)
		r.finish(tok, img, fit(img, ref.Width, ref.Height), err)
		return
	}
	r.env.Tasks.Go(context.Background(), func(ctx context.Context) func() {
		img, err := r.env.Loader.Load(ctx, ref.Name)
		scaled := fit(img, ref.Width, ref.Height)
		return func() { r.finish(tok, img, scaled, err) }
	})
}

func (r *imageRenderer) finish(tok uint64, src, img *image.RGBA, err error) {
	if r.destroyed || tok != r.token {
		return
	}
	r.loading = false
	if err != nil {
		r.log.Warn("failed to load image", slog.String("image", r.name), slog.Any("error", err))
		r.errored = true
		r.src, r.img = nil, nil
	} else {
		r.src, r.img = src, img
		// The declared size may have changed while loading.
		if w, h := r.obj.Image.Width, r.obj.Image.Height; w > 0 && h > 0 && (img.Rect.Dx() != w || img.Rect.Dy() != h) {
			r.img = fit(src, w, h)
		}
	}
	if r.onLoad != nil {
		r.onLoad()
	}
}

func (r *imageRenderer) draw(dst *image.RGBA, off geom.Coord) {
	if r.img == nil {
		return
	}
	p := image.Pt(int(math.Round(-off.X)), int(math.Round(-off.Y)))
	raster.DrawOver(dst, r.img, p)
}

func (r *imageRenderer) bounds() geom.Rect {
	return geom.NewRect(0, 0, float64(r.obj.Image.Width), float64(r.obj.Image.Height))
}

func (r *imageRenderer) destroy() {
	r.destroyed = true
	r.src, r.img = nil, nil
}

// fit scales img to w x h. Non-positive or matching sizes return img as is.
func fit(img *image.RGBA, w, h int) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	if w <= 0 || h <= 0 || (b.Dx() == w && b.Dy() == h) {
		return img
	}
	out := raster.New(w, h)
	xdraw.ApproxBiLinear.Scale(out, out.Rect, img, b, xdraw.Src, nil)
	return out
}
