// Package stage owns the viewport transform of the canvas: the screen
// position of the document origin and a uniform scale.
package stage

import (
	"log/slog"
	"math"
	"sync"

	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/internal/logx"
)

// Config holds the viewport limits.
type Config struct {
	// MinScale is the furthest zoomed-out scale.
	MinScale float64 `toml:"min_scale"`
	// MaxScale is the furthest zoomed-in scale.
	MaxScale float64 `toml:"max_scale"`
	// ScaleFactor is raised to the wheel delta to get the zoom multiplier.
	ScaleFactor float64 `toml:"scale_factor"`
	// FitPadding is the screen padding, in pixels, kept around fitted
	// content.
	FitPadding float64 `toml:"fit_padding"`
}

// DefaultConfig returns the default viewport limits.
func DefaultConfig() Config {
	return Config{MinScale: 0.1, MaxScale: 20, ScaleFactor: 0.999, FitPadding: 20}
}

// Attrs are the published viewport attributes. X and Y are the screen
// position of the document origin.
type Attrs struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// Content is what the stage fits into view.
type Content interface {
	// VisibleRect returns the union of the rects of all enabled entities
	// that draw something.
	VisibleRect() geom.Rect
	// BboxRect returns the generation bbox.
	BboxRect() geom.Rect
}

// WheelEvent is a wheel notification from the host.
type WheelEvent struct {
	DeltaY float64
	Ctrl   bool
	Meta   bool
	// Pointer is the screen position of the cursor, if known.
	Pointer    geom.Coord
	HasPointer bool
}

// Stage is the viewport. It is confined to the owner goroutine; listeners
// run synchronously on every change.
type Stage struct {
	cfg     Config
	content Content
	log     *slog.Logger

	// x, y and scale are the live transform; attrs is what was last
	// published, with the position floored where required.
	x, y, scale   float64
	width, height float64
	attrs         Attrs

	mu        sync.Mutex
	listeners map[int]func(Attrs)
	nextID    int
}

// New creates a stage of zero size at scale 1.
func New(cfg Config, content Content, logger *slog.Logger) *Stage {
	s := &Stage{
		cfg:       cfg,
		content:   content,
		log:       logx.OrNop(logger),
		scale:     1,
		listeners: make(map[int]func(Attrs)),
	}
	s.attrs = Attrs{Scale: 1}
	s.log.Debug("creating module")
	return s
}

// Config returns the stage configuration.
func (s *Stage) Config() Config { return s.cfg }

// Attrs returns the published viewport attributes.
func (s *Stage) Attrs() Attrs { return s.attrs }

// Scale returns the current scale.
func (s *Stage) Scale() float64 { return s.scale }

// Position returns the live screen position of the document origin.
func (s *Stage) Position() geom.Coord { return geom.Coord{X: s.x, Y: s.y} }

// Size returns the viewport size in screen pixels.
func (s *Stage) Size() (width, height float64) { return s.width, s.height }

// Subscribe registers fn for viewport changes.
func (s *Stage) Subscribe(fn func(Attrs)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Stage) publish(a Attrs) {
	s.attrs = a
	s.mu.Lock()
	fns := make([]func(Attrs), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(a)
	}
}

// Resize applies a new container size. Zero sizes are ignored. When the
// stage had no size before, the content is fitted, since it is about to
// be seen for the first time.
func (s *Stage) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	fit := s.width == 0 || s.height == 0
	s.width, s.height = width, height
	s.publish(Attrs{X: s.x, Y: s.y, Width: width, Height: height, Scale: s.scale})
	if fit {
		s.FitLayersToStage()
	}
}

// ConstrainScale rounds scale to two decimals and clamps it to the
// configured range.
func (s *Stage) ConstrainScale(scale float64) float64 {
	r := math.Round(scale*100) / 100
	return math.Min(math.Max(r, s.cfg.MinScale), s.cfg.MaxScale)
}

// FitRect centers rect in the viewport with the configured padding. The
// scale never exceeds 1: content is zoomed out to fit, never in.
func (s *Stage) FitRect(rect geom.Rect) {
	if s.width == 0 || s.height == 0 || rect.IsEmpty() {
		return
	}
	pad := s.cfg.FitPadding
	availW := s.width - pad*2
	availH := s.height - pad*2
	scale := s.ConstrainScale(math.Min(math.Min(availW/rect.Width, availH/rect.Height), 1))
	s.x = -rect.X*scale + pad + (availW-rect.Width*scale)/2
	s.y = -rect.Y*scale + pad + (availH-rect.Height*scale)/2
	s.scale = scale
	s.log.Debug("fitting rect", slog.Any("rect", rect), slog.Float64("scale", scale))
	s.publish(Attrs{X: s.x, Y: s.y, Width: s.width, Height: s.height, Scale: scale})
}

// FitBboxToStage fits the generation bbox.
func (s *Stage) FitBboxToStage() {
	if s.content == nil {
		return
	}
	s.FitRect(s.content.BboxRect())
}

// FitLayersToStage fits the visible content, or the bbox when nothing is
// drawn.
func (s *Stage) FitLayersToStage() {
	if s.content == nil {
		return
	}
	r := s.content.VisibleRect()
	if r.IsEmpty() {
		s.FitBboxToStage()
		return
	}
	s.FitRect(r)
}

// Center returns the document point at the center of the viewport.
func (s *Stage) Center() geom.Coord {
	return geom.Coord{X: (s.width/2 - s.x) / s.scale, Y: (s.height/2 - s.y) / s.scale}
}

// ScreenCenter returns the center of the viewport in screen pixels.
func (s *Stage) ScreenCenter() geom.Coord {
	return geom.Coord{X: s.width / 2, Y: s.height / 2}
}

// SetScale zooms to scale keeping the document point under center, a
// screen position, in place.
func (s *Stage) SetScale(scale float64, center geom.Coord) {
	next := s.ConstrainScale(scale)
	dx := (center.X - s.x) / s.scale
	dy := (center.Y - s.y) / s.scale
	s.x = center.X - dx*next
	s.y = center.Y - dy*next
	s.scale = next
	s.publish(Attrs{X: math.Floor(s.x), Y: math.Floor(s.y), Width: s.width, Height: s.height, Scale: next})
}

// OnWheel zooms exponentially around the pointer. Wheel events with a
// control or meta modifier belong to the host and are ignored.
func (s *Stage) OnWheel(e WheelEvent) {
	if e.Ctrl || e.Meta || !e.HasPointer {
		return
	}
	s.SetScale(s.scale*math.Pow(s.cfg.ScaleFactor, e.DeltaY), e.Pointer)
}

// OnDragMove moves the viewport while it is dragged.
func (s *Stage) OnDragMove(pos geom.Coord) {
	s.drag(pos)
}

// OnDragEnd finishes a drag at pos.
func (s *Stage) OnDragEnd(pos geom.Coord) {
	s.drag(pos)
}

// drag floors the position so the document is never drawn on fractional
// pixels.
func (s *Stage) drag(pos geom.Coord) {
	p := pos.Floor()
	s.x, s.y = p.X, p.Y
	s.publish(Attrs{X: p.X, Y: p.Y, Width: s.width, Height: s.height, Scale: s.scale})
}

// ScaledPixels converts screen pixels to document pixels.
func (s *Stage) ScaledPixels(pixels float64) float64 {
	return pixels / s.scale
}

// VisibleRect returns the document region shown in the viewport.
func (s *Stage) VisibleRect() geom.Rect {
	return geom.NewRect(-s.x/s.scale, -s.y/s.scale, s.width/s.scale, s.height/s.scale)
}

// Destroy drops all listeners.
func (s *Stage) Destroy() {
	s.log.Debug("destroying module")
	s.mu.Lock()
	clear(s.listeners)
	s.mu.Unlock()
}
