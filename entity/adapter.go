// Package entity reconciles one drawable entity of the document into its
// rendered form.
//
// An Adapter receives successive snapshots of its entity and performs the
// smallest set of updates: every tracked field that changed by identity
// runs exactly one update routine. The adapter owns the entity's object
// renderer and transformer and answers the pixel queries of the
// compositor.
package entity

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/internal/logx"
	"github.com/gogpu/canvas/raster"
	"github.com/gogpu/canvas/render"
	"github.com/gogpu/canvas/state"
)

// Dispatcher applies document changes. *state.Store implements it.
type Dispatcher interface {
	Dispatch(a state.Action) error
}

// Counters records how often each update routine ran.
type Counters struct {
	Initialize         int
	Enabled            int
	Locked             int
	Objects            int
	Position           int
	Opacity            int
	Fill               int
	TransparencyEffect int
	OverlaySize        int
}

// Options configure an Adapter.
type Options struct {
	Env        *render.Env
	Dispatcher Dispatcher
	Logger     *slog.Logger
	// Path is the module path of the owner.
	Path []string
	// Overlay returns the document region the mask overlay must cover,
	// usually the visible part of the stage.
	Overlay func() geom.Rect
}

// Adapter is the rendered form of one drawable entity.
type Adapter struct {
	id   string
	kind state.Kind
	cur  state.Drawable
	log  *slog.Logger
	opts Options

	renderer    *render.ObjectRenderer
	transformer *Transformer

	// Display attributes, maintained by the update routines.
	visible            bool
	listening          bool
	position           geom.Coord
	opacity            float64
	hidden             bool
	fill               state.Fill
	transparencyEffect bool
	overlay            geom.Rect

	counters    Counters
	initialized bool
	destroyed   bool
}

// New creates the adapter of e. It draws nothing until the first Sync.
func New(e state.Drawable, opts Options) *Adapter {
	path := append(append([]string(nil), opts.Path...), fmt.Sprintf("%s_adapter:%s", e.Kind(), e.EntityID()))
	a := &Adapter{
		id:   e.EntityID(),
		kind: e.Kind(),
		cur:  e,
		opts: opts,
		log:  logx.For(opts.Logger, path...),
	}
	env := opts.Env
	if env == nil {
		env = &render.Env{}
	}
	a.renderer = render.NewObjectRenderer(a, env, path...)
	a.transformer = newTransformer(a)
	a.log.Debug("creating module")
	return a
}

// ID returns the entity id.
func (a *Adapter) ID() string { return a.id }

// Kind returns the entity kind.
func (a *Adapter) Kind() state.Kind { return a.kind }

// State returns the last synced snapshot.
func (a *Adapter) State() state.Drawable { return a.cur }

// Renderer returns the object renderer.
func (a *Adapter) Renderer() *render.ObjectRenderer { return a.renderer }

// Transformer returns the transformer.
func (a *Adapter) Transformer() *Transformer { return a.transformer }

// Counters returns the update routine counts.
func (a *Adapter) Counters() Counters { return a.counters }

// Destroyed reports whether the adapter was destroyed.
func (a *Adapter) Destroyed() bool { return a.destroyed }

// Sync brings the adapter up to date with cur. prev is the snapshot of the
// previous call, nil on the first one. A nil cur destroys the adapter.
func (a *Adapter) Sync(cur, prev state.Drawable) {
	if a.destroyed {
		return
	}
	if cur == nil {
		a.Destroy()
		return
	}
	if cur.EntityID() != a.id || cur.Kind() != a.kind {
		panic(fmt.Sprintf("entity: adapter %s:%s cannot sync %s:%s", a.kind, a.id, cur.Kind(), cur.EntityID()))
	}
	a.cur = cur
	if !a.initialized || prev == nil {
		a.initialize()
		return
	}
	if prev == cur {
		return
	}

	c, p := cur.Base(), prev.Base()
	if c.IsEnabled != p.IsEnabled {
		a.syncEnabled()
	}
	if c.IsLocked != p.IsLocked {
		a.syncLocked()
	}
	if !state.SameObjects(c.Objects, p.Objects) {
		a.syncObjects()
	}
	if c.Position != p.Position {
		a.syncPosition()
	}
	if c.Opacity != p.Opacity {
		a.syncOpacity()
	}
	cf, cok := state.FillOf(cur)
	pf, pok := state.FillOf(prev)
	if cok && (!pok || cf != pf) {
		a.syncFill()
	}
	if transparencyEffect(cur) != transparencyEffect(prev) {
		a.syncTransparencyEffect()
	}
}

func (a *Adapter) initialize() {
	a.log.Debug("initializing module")
	a.counters.Initialize++
	a.syncEnabled()
	a.syncLocked()
	a.syncObjects()
	a.syncPosition()
	a.syncOpacity()
	if a.kind.IsMask() {
		a.syncFill()
		a.syncOverlaySize()
	}
	if a.kind == state.KindControlLayer {
		a.syncTransparencyEffect()
	}
	a.initialized = true
}

func (a *Adapter) syncEnabled() {
	a.counters.Enabled++
	a.visible = a.cur.Enabled()
}

func (a *Adapter) syncLocked() {
	a.counters.Locked++
	a.listening = !a.cur.Base().IsLocked
}

func (a *Adapter) syncObjects() {
	a.counters.Objects++
	if a.renderer.Render() {
		a.transformer.Invalidate()
	}
}

func (a *Adapter) syncPosition() {
	a.counters.Position++
	a.position = a.cur.Base().Position
	a.transformer.Invalidate()
}

func (a *Adapter) syncOpacity() {
	a.counters.Opacity++
	a.opacity = a.cur.Base().Opacity
	if a.hidden {
		a.opacity = 0
	}
}

func (a *Adapter) syncFill() {
	a.counters.Fill++
	a.fill, _ = state.FillOf(a.cur)
}

func (a *Adapter) syncTransparencyEffect() {
	a.counters.TransparencyEffect++
	a.transparencyEffect = transparencyEffect(a.cur)
}

func (a *Adapter) syncOverlaySize() {
	a.counters.OverlaySize++
	if a.opts.Overlay != nil {
		a.overlay = a.opts.Overlay()
	}
}

// SetHidden applies the hidden flag of the entity's whole collection. The
// entity keeps its opacity in the document but is displayed at zero.
func (a *Adapter) SetHidden(hidden bool) {
	if a.destroyed || hidden == a.hidden {
		return
	}
	a.hidden = hidden
	if a.initialized {
		a.syncOpacity()
	}
}

// ResizeOverlay re-reads the overlay region after a viewport change.
func (a *Adapter) ResizeOverlay() {
	if !a.destroyed && a.initialized && a.kind.IsMask() {
		a.syncOverlaySize()
	}
}

func transparencyEffect(e state.Drawable) bool {
	if cl, ok := e.(*state.ControlLayer); ok {
		return cl.WithTransparencyEffect
	}
	return false
}

// Attrs are the display attributes of the entity.
type Attrs struct {
	Visible   bool
	Listening bool
	Position  geom.Coord
	// Opacity is the effective opacity, zero while the collection is
	// hidden.
	Opacity            float64
	Fill               state.Fill
	TransparencyEffect bool
	Overlay            geom.Rect
}

// Attrs returns the current display attributes.
func (a *Adapter) Attrs() Attrs {
	return Attrs{
		Visible:            a.visible,
		Listening:          a.listening,
		Position:           a.position,
		Opacity:            a.opacity,
		Fill:               a.fill,
		TransparencyEffect: a.transparencyEffect,
		Overlay:            a.overlay,
	}
}

// IsPending reports whether asynchronous work may still change the
// entity's pixels.
func (a *Adapter) IsPending() bool {
	return a.renderer.Loading()
}

// HasObjects reports whether the entity draws anything.
func (a *Adapter) HasObjects() bool {
	return a.renderer.HasObjects()
}

// Canvas renders the entity's objects into a bitmap covering rect. Mask
// kinds always render at full opacity so the result carries coverage
// only; the other kinds apply their document opacity.
func (a *Adapter) Canvas(rect geom.Rect) *image.RGBA {
	img := a.renderer.Canvas(rect)
	switch a.cur.(type) {
	case *state.InpaintMask, *state.RegionalGuidance:
		return img
	case *state.ControlLayer:
		if a.transparencyEffect {
			img = raster.LightnessToAlpha(img)
		}
	case *state.RasterLayer:
	default:
		panic(fmt.Sprintf("entity: unknown drawable %T", a.cur))
	}
	return withOpacity(img, a.cur.Base().Opacity)
}

// DisplayCanvas renders the entity the way it is shown on screen: with
// the buffer, the mask fill and the effective opacity.
func (a *Adapter) DisplayCanvas(rect geom.Rect) *image.RGBA {
	px := rect.Pixel()
	if !a.visible || a.opacity <= 0 {
		return raster.New(px.Dx(), px.Dy())
	}
	img := a.renderer.Canvas(rect)
	raster.DrawOver(img, a.renderer.BufferCanvas(rect), image.Point{})
	if a.transparencyEffect {
		img = raster.LightnessToAlpha(img)
	}
	if a.kind.IsMask() {
		raster.ApplyFill(img, a.fill.Style, a.fill.Color.NRGBA(), px.Min)
		if !a.overlay.IsEmpty() {
			inside := img.SubImage(a.overlay.Pixel().Sub(px.Min))
			clipped := raster.New(img.Rect.Dx(), img.Rect.Dy())
			raster.DrawOver(clipped, inside, inside.Bounds().Min)
			img = clipped
		}
	}
	return withOpacity(img, a.opacity)
}

func withOpacity(img *image.RGBA, opacity float64) *image.RGBA {
	if opacity >= 1 {
		return img
	}
	out := raster.New(img.Rect.Dx(), img.Rect.Dy())
	raster.DrawOverOpacity(out, img, image.Point{}, opacity)
	return out
}

// HashableState returns the entity state that determines its composite
// pixels. Names and lock state never affect pixels; for masks neither do
// the fill and the opacity, which only style the on-screen display.
func (a *Adapter) HashableState() any {
	switch e := a.cur.(type) {
	case *state.RasterLayer:
		return hashable{ID: e.ID, Kind: e.Kind(), IsEnabled: e.IsEnabled, Opacity: &e.Opacity, Position: e.Position, Objects: e.Objects}
	case *state.ControlLayer:
		fx := e.WithTransparencyEffect
		return hashable{ID: e.ID, Kind: e.Kind(), IsEnabled: e.IsEnabled, Opacity: &e.Opacity, Position: e.Position, Objects: e.Objects, WithTransparencyEffect: &fx}
	case *state.InpaintMask:
		return hashable{ID: e.ID, Kind: e.Kind(), IsEnabled: e.IsEnabled, Position: e.Position, Objects: e.Objects}
	case *state.RegionalGuidance:
		return hashable{ID: e.ID, Kind: e.Kind(), IsEnabled: e.IsEnabled, Position: e.Position, Objects: e.Objects}
	default:
		panic(fmt.Sprintf("entity: unknown drawable %T", a.cur))
	}
}

type hashable struct {
	ID                     string         `json:"id"`
	Kind                   state.Kind     `json:"type"`
	IsEnabled              bool           `json:"isEnabled"`
	Opacity                *float64       `json:"opacity,omitempty"`
	Position               geom.Coord     `json:"position"`
	Objects                []state.Object `json:"objects"`
	WithTransparencyEffect *bool          `json:"withTransparencyEffect,omitempty"`
}

// EntityID implements render.Host.
func (a *Adapter) EntityID() string { return a.id }

// Objects implements render.Host.
func (a *Adapter) Objects() []state.Object { return a.cur.Base().Objects }

// Position implements render.Host.
func (a *Adapter) Position() geom.Coord { return a.cur.Base().Position }

// CommitRasterized implements render.Host.
func (a *Adapter) CommitRasterized(img *state.ImageObject, pos geom.Coord, replace bool) error {
	if a.opts.Dispatcher == nil {
		return nil
	}
	return a.opts.Dispatcher.Dispatch(state.RasterizeEntity{ID: a.id, Image: img, Position: pos, ReplaceObjects: replace})
}

// PushObject implements render.Host.
func (a *Adapter) PushObject(o state.Object) error {
	if a.opts.Dispatcher == nil {
		return nil
	}
	return a.opts.Dispatcher.Dispatch(state.AddObject{ID: a.id, Object: o})
}

// Destroy releases the renderer. It is safe to call more than once.
func (a *Adapter) Destroy() {
	if a.destroyed {
		return
	}
	a.log.Debug("destroying module")
	a.destroyed = true
	a.renderer.Destroy()
}
