// Package staging shows the candidate results of a generation batch on top
// of the document, one selected image at a time.
package staging

import (
	"image"
	"log/slog"

	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/internal/logx"
	"github.com/gogpu/canvas/raster"
	"github.com/gogpu/canvas/render"
	"github.com/gogpu/canvas/state"
)

// ImageID is the object id of the staged image renderer.
const ImageID = "staging-area-image"

// Area renders the selected staged image at the bbox origin. It is
// confined to the owner goroutine.
type Area struct {
	env *render.Env
	log *slog.Logger

	last     *state.State
	position geom.Coord
	image    *render.Image
	selected *state.StagedImage
	show     bool

	renders   int
	destroyed bool
}

// New creates an empty staging area that shows staged images.
func New(env *render.Env, logger *slog.Logger) *Area {
	if env == nil {
		env = &render.Env{}
	}
	a := &Area{env: env, log: logx.OrNop(logger), show: true}
	a.log.Debug("creating module")
	return a
}

// Render lays out the staging area for s.
func (a *Area) Render(s *state.State) {
	if a.destroyed || s == nil {
		return
	}
	a.last = s
	a.render()
}

func (a *Area) render() {
	s := a.last
	if s == nil {
		return
	}
	a.renders++
	bbox := s.Bbox.Rect
	a.position = bbox.Origin()

	sel, ok := s.Staging.Selected()
	if !ok {
		a.selected = nil
		if a.image != nil {
			a.image.SetVisible(false)
		}
		return
	}
	// The offset only applies when the image is accepted.
	a.selected = &sel

	if a.image == nil {
		// Sized to the bbox until the real dimensions are known.
		obj := &state.ImageObject{ID: ImageID, Image: state.ImageRef{
			Name:   sel.Image.Name,
			Width:  int(bbox.Width),
			Height: int(bbox.Height),
		}}
		a.log.Debug("creating staged image", slog.String("image", sel.Image.Name))
		a.image = render.NewImage(obj, a.env, a.log, a.imageLoaded)
	} else if a.image.Object().Image.Name != sel.Image.Name {
		a.image.Update(&state.ImageObject{ID: ImageID, Image: sel.Image}, false)
	}
	if !a.image.Loading() && !a.image.Errored() && a.image.Object().Image != sel.Image {
		a.image.Update(&state.ImageObject{ID: ImageID, Image: sel.Image}, false)
	}
	a.image.SetVisible(a.show)
}

func (a *Area) imageLoaded() {
	// A synchronous load finishes inside NewImage; render resumes itself.
	if a.destroyed || a.image == nil {
		return
	}
	a.render()
}

// Show reports whether the staged image is shown.
func (a *Area) Show() bool { return a.show }

// SetShow shows or hides the staged image.
func (a *Area) SetShow(show bool) {
	if a.show == show {
		return
	}
	a.show = show
	a.render()
}

// ToggleShow flips the show flag.
func (a *Area) ToggleShow() { a.SetShow(!a.show) }

// StagingStarted is called when a new batch starts. The staged image is
// shown again even if the user hid it during the previous batch.
func (a *Area) StagingStarted() {
	a.show = true
	a.render()
}

// Selected returns the selected staged image.
func (a *Area) Selected() (state.StagedImage, bool) {
	if a.selected == nil {
		return state.StagedImage{}, false
	}
	return *a.selected, true
}

// Position returns the document position of the staged image.
func (a *Area) Position() geom.Coord { return a.position }

// Visible reports whether a staged image is currently drawn.
func (a *Area) Visible() bool {
	return a.image != nil && a.selected != nil && a.image.Visible()
}

// Image returns the staged image renderer, nil before the first selection.
func (a *Area) Image() *render.Image { return a.image }

// Renders returns how many times the area was laid out.
func (a *Area) Renders() int { return a.renders }

// Canvas draws the visible staged image into a bitmap covering rect.
func (a *Area) Canvas(rect geom.Rect) *image.RGBA {
	px := rect.Pixel()
	out := raster.New(px.Dx(), px.Dy())
	if !a.Visible() {
		return out
	}
	off := geom.Coord{X: float64(px.Min.X), Y: float64(px.Min.Y)}.Sub(a.position)
	a.image.Draw(out, off)
	return out
}

// Destroy releases the staged image.
func (a *Area) Destroy() {
	if a.destroyed {
		return
	}
	a.log.Debug("destroying module")
	a.destroyed = true
	if a.image != nil {
		a.image.Destroy()
	}
}
