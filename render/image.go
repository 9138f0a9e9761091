// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"
	"log/slog"

	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/internal/logx"
	"github.com/gogpu/canvas/state"
)

// Image renders a single stored image outside of any entity, scaled to
// the declared dimensions of its object.
type Image struct {
	r *imageRenderer
}

// NewImage creates a renderer for obj and starts loading it. onLoad, if
// set, runs on the owner goroutine once a load finishes.
func NewImage(obj *state.ImageObject, env *Env, logger *slog.Logger, onLoad func()) *Image {
	if env == nil {
		env = &Env{}
	}
	r := newObjectRenderer(obj, env, logx.OrNop(logger), onLoad).(*imageRenderer)
	r.update(obj, true)
	return &Image{r: r}
}

// Update adopts obj. A new image name starts a new load; new dimensions
// rescale the loaded bitmap. force reloads unconditionally.
func (i *Image) Update(obj *state.ImageObject, force bool) bool {
	return i.r.update(obj, force)
}

// Object returns the current image object.
func (i *Image) Object() *state.ImageObject { return i.r.obj }

// Loading reports whether a load is in flight.
func (i *Image) Loading() bool { return i.r.loading }

// Errored reports whether the last load failed.
func (i *Image) Errored() bool { return i.r.errored }

// Visible reports the visibility flag.
func (i *Image) Visible() bool { return i.r.visible() }

// SetVisible sets the visibility flag.
func (i *Image) SetVisible(v bool) { i.r.setVisible(v) }

// Bounds returns the declared rect in local coordinates.
func (i *Image) Bounds() geom.Rect { return i.r.bounds() }

// Draw paints the image into dst, whose top-left pixel is at local
// coordinate off. Hidden images draw nothing.
func (i *Image) Draw(dst *image.RGBA, off geom.Coord) {
	if !i.r.visible() {
		return
	}
	i.r.draw(dst, off)
}

// Destroy drops the bitmap and ignores pending loads.
func (i *Image) Destroy() { i.r.destroy() }
