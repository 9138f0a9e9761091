package entity

import (
	"github.com/gogpu/canvas/geom"
)

// Transformer tracks the document rect occupied by an entity.
//
// The rect comes from the vector bounds of the objects unless the
// renderer reports that they may over-count, in which case the rendered
// pixels are scanned. The result is kept until the objects or the position
// change.
type Transformer struct {
	a     *Adapter
	rect  geom.Rect
	valid bool
	scans int
}

func newTransformer(a *Adapter) *Transformer {
	return &Transformer{a: a}
}

// Invalidate schedules a recalculation on the next Rect call.
func (t *Transformer) Invalidate() {
	t.valid = false
}

// Rect returns the entity's rect in document space, the zero Rect when the
// entity draws nothing.
func (t *Transformer) Rect() geom.Rect {
	if t.valid {
		return t.rect
	}
	r := t.a.renderer
	switch {
	case !r.HasObjects():
		t.rect = geom.Rect{}
	case r.NeedsPixelBbox():
		t.scans++
		t.rect = r.PixelRect()
	default:
		t.rect = r.ContentRect()
	}
	// Image loads land after the objects changed; keep recalculating until
	// the pixels settle.
	t.valid = !r.Loading()
	return t.rect
}

// PixelScans returns how many times the rendered pixels were scanned.
func (t *Transformer) PixelScans() int { return t.scans }
