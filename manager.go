package canvas

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/canvas/assets"
	"github.com/gogpu/canvas/compositor"
	"github.com/gogpu/canvas/entity"
	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/internal/logx"
	"github.com/gogpu/canvas/internal/task"
	"github.com/gogpu/canvas/raster"
	"github.com/gogpu/canvas/render"
	"github.com/gogpu/canvas/scene"
	"github.com/gogpu/canvas/stage"
	"github.com/gogpu/canvas/staging"
	"github.com/gogpu/canvas/state"
)

// ErrDestroyed is returned by the operations of a destroyed Manager.
var ErrDestroyed = errors.New("canvas: manager destroyed")

var (
	_ compositor.Source = (*Manager)(nil)
	_ stage.Content     = (*Manager)(nil)
)

// StagingKey is the scene key of the staging area node.
const StagingKey = "staging_area"

// Manager renders a canvas document. It keeps one adapter per drawable
// entity in step with the store, owns the viewport, the compositor and the
// staging area, and maintains the scene tree describing the display order.
//
// A Manager is confined to the goroutine that created it, the one that
// dispatches to the store. It is not safe for concurrent use.
type Manager struct {
	cfg    Config
	log    *slog.Logger
	store  *state.Store
	assets assets.Store
	tasks  *task.Queue
	env    *render.Env

	stage      *stage.Stage
	compositor *compositor.Compositor
	staging    *staging.Area
	arena      *scene.Arena
	desc       []scene.Desc

	adapters map[state.Kind]map[string]*entity.Adapter
	current  *state.State

	unsubscribe []func()
	destroyed   bool
}

// New creates a manager for store and renders its current document.
func New(store *state.Store, opts ...Option) (*Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = state.NewStore(nil)
	}
	base := o.logger
	if base == nil {
		base = Logger()
	}
	loader := o.loader
	if loader == nil {
		if f, ok := o.assets.(assets.Fetcher); ok {
			loader = assets.NewLoader(f)
		}
	}

	m := &Manager{
		cfg:      o.cfg,
		log:      logx.For(base, "manager"),
		store:    store,
		assets:   o.assets,
		arena:    scene.NewArena(),
		adapters: make(map[state.Kind]map[string]*entity.Adapter),
	}
	caches := compositor.NewCaches(o.cfg.CacheCapacity)
	m.env = &render.Env{
		Assets:       o.assets,
		Loader:       loader,
		Names:        caches.Names,
		Logger:       base,
		PreviewDelay: o.cfg.PreviewDelay(),
	}
	if o.cfg.AsyncImageLoads {
		m.tasks = task.New()
		m.env.Tasks = m.tasks
	}
	m.log.Debug("creating module")

	m.stage = stage.New(o.cfg.Stage, m, logx.For(base, "manager", "stage"))
	m.compositor = compositor.New(m, o.assets, caches, logx.For(base, "manager", "compositor"))
	m.staging = staging.New(m.env, logx.For(base, "manager", "staging_area"))

	m.unsubscribe = append(m.unsubscribe,
		m.stage.Subscribe(m.onStageChange),
		store.Subscribe(m.sync),
	)
	m.sync(store.State(), nil)
	return m, nil
}

// Config returns the manager configuration.
func (m *Manager) Config() Config { return m.cfg }

// Store returns the document store.
func (m *Manager) Store() *state.Store { return m.store }

// State returns the last rendered document.
func (m *Manager) State() *state.State { return m.current }

// Stage returns the viewport.
func (m *Manager) Stage() *stage.Stage { return m.stage }

// Compositor returns the compositor.
func (m *Manager) Compositor() *compositor.Compositor { return m.compositor }

// StagingArea returns the staging area.
func (m *Manager) StagingArea() *staging.Area { return m.staging }

// Scene returns the scene tree.
func (m *Manager) Scene() *scene.Arena { return m.arena }

// Destroyed reports whether Destroy was called.
func (m *Manager) Destroyed() bool { return m.destroyed }

// sync brings every module up to date with next.
func (m *Manager) sync(next, prev *state.State) {
	if m.destroyed {
		return
	}
	m.current = next
	for _, kind := range state.DrawOrder {
		m.syncKind(kind, next, prev)
	}
	m.staging.Render(next)
	if prev != nil && !prev.Staging.IsStaging && next.Staging.IsStaging {
		m.staging.StagingStarted()
	}
	m.syncScene()
}

func (m *Manager) syncKind(kind state.Kind, next, prev *state.State) {
	adapters := m.adapters[kind]
	if adapters == nil {
		adapters = make(map[string]*entity.Adapter)
		m.adapters[kind] = adapters
	}
	hidden := next.IsHidden(kind)
	hiddenChanged := prev != nil && prev.IsHidden(kind) != hidden

	entities := next.Collection(kind).Entities
	live := make(map[string]bool, len(entities))
	for _, e := range entities {
		d, ok := e.(state.Drawable)
		if !ok {
			continue
		}
		id := d.EntityID()
		live[id] = true
		a, exists := adapters[id]
		if !exists {
			a = entity.New(d, entity.Options{
				Env:        m.env,
				Dispatcher: m.store,
				Logger:     m.env.Logger,
				Path:       []string{"manager"},
				Overlay:    m.stage.VisibleRect,
			})
			adapters[id] = a
			a.SetHidden(hidden)
			a.Sync(d, nil)
			continue
		}
		a.Sync(d, drawable(prev, kind, id))
		if hiddenChanged {
			a.SetHidden(hidden)
		}
	}
	for id, a := range adapters {
		if live[id] {
			continue
		}
		a.Sync(nil, a.State())
		delete(adapters, id)
	}
}

// drawable returns the entity id of kind in s, nil when absent.
func drawable(s *state.State, kind state.Kind, id string) state.Drawable {
	if s == nil {
		return nil
	}
	c := s.Collection(kind)
	i := c.Index(id)
	if i < 0 {
		return nil
	}
	d, _ := c.Entities[i].(state.Drawable)
	return d
}

// syncScene rebuilds the scene description and applies the difference.
func (m *Manager) syncScene() {
	var desc []scene.Desc
	for _, kind := range state.DrawOrder {
		for _, e := range m.current.Collection(kind).Entities {
			a, ok := m.adapters[kind][e.EntityID()]
			if !ok {
				continue
			}
			attrs := a.Attrs()
			desc = append(desc, scene.Desc{Key: e.EntityID(), Attrs: scene.Attrs{
				Position: attrs.Position,
				Opacity:  attrs.Opacity,
				Visible:  attrs.Visible,
			}})
		}
	}
	desc = append(desc, scene.Desc{Key: StagingKey, Attrs: scene.Attrs{
		Position: m.staging.Position(),
		Opacity:  1,
		Visible:  m.staging.Visible(),
	}})
	ops := scene.Diff("", m.desc, desc)
	if err := m.arena.Apply(ops); err != nil {
		panic(fmt.Sprintf("canvas: scene out of sync: %v", err))
	}
	m.desc = desc
}

func (m *Manager) onStageChange(stage.Attrs) {
	if m.destroyed {
		return
	}
	for _, kind := range state.DrawOrder {
		if !kind.IsMask() {
			continue
		}
		for _, a := range m.adapters[kind] {
			a.ResizeOverlay()
		}
	}
}

// SetStagedImageShown shows or hides the staged image.
func (m *Manager) SetStagedImageShown(show bool) {
	if m.destroyed {
		return
	}
	m.staging.SetShow(show)
	m.syncScene()
}

// ToggleStagedImageShown flips the visibility of the staged image.
func (m *Manager) ToggleStagedImageShown() {
	m.SetStagedImageShown(!m.staging.Show())
}

// Adapter returns the adapter of the drawable entity id.
func (m *Manager) Adapter(id string) (*entity.Adapter, bool) {
	for _, kind := range state.DrawOrder {
		if a, ok := m.adapters[kind][id]; ok {
			return a, true
		}
	}
	return nil, false
}

// EntityAdapter returns the adapter of entity id within kind.
func (m *Manager) EntityAdapter(kind state.Kind, id string) (*entity.Adapter, bool) {
	a, ok := m.adapters[kind][id]
	return a, ok
}

// Adapters returns the adapters of kind in draw order.
func (m *Manager) Adapters(kind state.Kind) []*entity.Adapter {
	if m.current == nil {
		return nil
	}
	var out []*entity.Adapter
	for _, e := range m.current.Collection(kind).Entities {
		if a, ok := m.adapters[kind][e.EntityID()]; ok {
			out = append(out, a)
		}
	}
	return out
}

// EntityIDs returns the ids of kind in draw order.
func (m *Manager) EntityIDs(kind state.Kind) []string {
	if m.current == nil {
		return nil
	}
	c := m.current.Collection(kind)
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Entities))
	for _, e := range c.Entities {
		ids = append(ids, e.EntityID())
	}
	return ids
}

// Bbox returns the generation bbox.
func (m *Manager) Bbox() geom.Rect { return m.current.Bbox.Rect }

// BboxRect returns the generation bbox.
func (m *Manager) BboxRect() geom.Rect { return m.Bbox() }

// AutoAddBoardID returns the board gallery saves go to.
func (m *Manager) AutoAddBoardID() string { return m.current.AutoAddBoardID }

// VisibleRect returns the union of the rects of the enabled entities that
// draw something.
func (m *Manager) VisibleRect() geom.Rect {
	var rects []geom.Rect
	for _, kind := range state.DrawOrder {
		for _, a := range m.Adapters(kind) {
			if !a.State().Enabled() || !a.HasObjects() {
				continue
			}
			if r := a.Transformer().Rect(); !r.IsEmpty() {
				rects = append(rects, r)
			}
		}
	}
	return geom.Union(rects...)
}

// FitLayersToStage fits the visible content into the viewport.
func (m *Manager) FitLayersToStage() { m.stage.FitLayersToStage() }

// FitBboxToStage fits the bbox into the viewport.
func (m *Manager) FitBboxToStage() { m.stage.FitBboxToStage() }

// Settle applies the completions of pending image loads until none are
// left or ctx is done.
func (m *Manager) Settle(ctx context.Context) error {
	if m.destroyed {
		return ErrDestroyed
	}
	if m.tasks == nil {
		return nil
	}
	return m.tasks.Settle(ctx)
}

// Flush applies the completions that are ready without waiting.
func (m *Manager) Flush() int {
	if m.destroyed || m.tasks == nil {
		return 0
	}
	return m.tasks.Flush()
}

// ready settles pending loads so that composites are final.
func (m *Manager) ready(ctx context.Context) error {
	if m.destroyed {
		return ErrDestroyed
	}
	return m.Settle(ctx)
}

// RasterLayerCanvas returns the composite of the raster layers over rect.
// The bitmap is shared with the cache and must not be modified.
func (m *Manager) RasterLayerCanvas(ctx context.Context, rect geom.Rect) (*image.RGBA, error) {
	if err := m.ready(ctx); err != nil {
		return nil, err
	}
	return m.compositor.RasterLayerCanvas(rect)
}

// InpaintMaskCanvas returns the composite of the inpaint masks over rect.
// The bitmap is shared with the cache and must not be modified.
func (m *Manager) InpaintMaskCanvas(ctx context.Context, rect geom.Rect) (*image.RGBA, error) {
	if err := m.ready(ctx); err != nil {
		return nil, err
	}
	return m.compositor.InpaintMaskCanvas(rect)
}

// CompositeRasterLayerImage returns the uploaded raster layer composite.
func (m *Manager) CompositeRasterLayerImage(ctx context.Context, rect geom.Rect) (assets.Descriptor, error) {
	if err := m.ready(ctx); err != nil {
		return assets.Descriptor{}, err
	}
	return m.compositor.RasterLayerImage(ctx, rect)
}

// CompositeInpaintMaskImage returns the uploaded inpaint mask composite.
func (m *Manager) CompositeInpaintMaskImage(ctx context.Context, rect geom.Rect) (assets.Descriptor, error) {
	if err := m.ready(ctx); err != nil {
		return assets.Descriptor{}, err
	}
	return m.compositor.InpaintMaskImage(ctx, rect)
}

// RasterizeAndUpload uploads the composite of kind over rect.
func (m *Manager) RasterizeAndUpload(ctx context.Context, kind state.Kind, rect geom.Rect, saveToGallery bool) (assets.Descriptor, error) {
	if err := m.ready(ctx); err != nil {
		return assets.Descriptor{}, err
	}
	return m.compositor.RasterizeAndUpload(ctx, kind, rect, saveToGallery)
}

// GenerationMode returns the generation mode for the bbox.
func (m *Manager) GenerationMode(ctx context.Context) (compositor.GenerationMode, error) {
	if err := m.ready(ctx); err != nil {
		return "", err
	}
	return m.compositor.GenerationMode()
}

// RasterizeEntity rasterizes the objects of entity id over opts.Rect and
// uploads the result.
func (m *Manager) RasterizeEntity(ctx context.Context, id string, opts render.RasterizeOptions) (assets.Descriptor, error) {
	if err := m.ready(ctx); err != nil {
		return assets.Descriptor{}, err
	}
	a, ok := m.Adapter(id)
	if !ok {
		return assets.Descriptor{}, fmt.Errorf("canvas: rasterize %s: %w", id, state.ErrEntityNotFound)
	}
	return a.Renderer().Rasterize(ctx, opts)
}

// ValidateReferenceImages clears the image of every reference image whose
// asset no longer exists. It returns the ids that were cleared.
func (m *Manager) ValidateReferenceImages(ctx context.Context) ([]string, error) {
	if m.destroyed {
		return nil, ErrDestroyed
	}
	if m.assets == nil {
		return nil, nil
	}
	var cleared []string
	for _, e := range m.current.ReferenceImages.Entities {
		ref, ok := e.(*state.ReferenceImage)
		if !ok || ref.Image == nil {
			continue
		}
		_, err := m.assets.Get(ctx, ref.Image.Name)
		if err == nil {
			continue
		}
		if !assets.IsNotFound(err) {
			return cleared, fmt.Errorf("canvas: validate reference image %s: %w", ref.ID, err)
		}
		m.log.Warn("reference image is gone", slog.String("id", ref.ID), slog.String("image", ref.Image.Name))
		if err := m.store.Dispatch(state.SetReferenceImage{ID: ref.ID}); err != nil {
			return cleared, err
		}
		cleared = append(cleared, ref.ID)
	}
	return cleared, nil
}

// DisplayCanvas draws the scene over rect the way it is shown on screen:
// every entity with its fill and effective opacity, then the staged
// image.
func (m *Manager) DisplayCanvas(rect geom.Rect) *image.RGBA {
	px := rect.Pixel()
	out := raster.New(px.Dx(), px.Dy())
	if m.destroyed {
		return out
	}
	for _, key := range m.arena.ChildKeys("") {
		h, _ := m.arena.Lookup(key)
		n, _ := m.arena.Node(h)
		if !n.Attrs.Visible {
			continue
		}
		if key == StagingKey {
			raster.DrawOver(out, m.staging.Canvas(rect), image.Point{})
			continue
		}
		if a, ok := m.Adapter(key); ok {
			raster.DrawOver(out, a.DisplayCanvas(rect), image.Point{})
		}
	}
	return out
}

// Destroy releases every module. The store is left untouched.
func (m *Manager) Destroy() {
	if m.destroyed {
		return
	}
	m.log.Debug("destroying module")
	m.destroyed = true
	for _, unsubscribe := range m.unsubscribe {
		unsubscribe()
	}
	for _, adapters := range m.adapters {
		for _, a := range adapters {
			a.Destroy()
		}
	}
	clear(m.adapters)
	m.staging.Destroy()
	m.stage.Destroy()
	if m.tasks != nil {
		m.tasks.Close()
	}
}
