package staging

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/canvas/assets"
	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/internal/task"
	"github.com/gogpu/canvas/raster"
	"github.com/gogpu/canvas/render"
	"github.com/gogpu/canvas/state"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var green = color.RGBA{G: 255, A: 255}

func loader(sizes map[string]image.Point) assets.Loader {
	return assets.LoaderFunc(func(_ context.Context, name string) (*image.RGBA, error) {
		sz, ok := sizes[name]
		if !ok {
			return nil, assets.ErrNotFound
		}
		return solid(sz.X, sz.Y, green), nil
	})
}

func staged(bbox geom.Rect, images ...state.StagedImage) *state.State {
	s := state.New()
	s.Bbox.Rect = bbox
	s.Staging = state.Staging{Images: images, IsStaging: len(images) > 0}
	return s
}

func ref(name string, w, h int) state.StagedImage {
	return state.StagedImage{Image: state.ImageRef{Name: name, Width: w, Height: h}}
}

func TestRenderWithoutSelection(t *testing.T) {
	a := New(nil, nil)
	defer a.Destroy()
	a.Render(staged(geom.NewRect(10, 20, 8, 8)))
	assert.Nil(t, a.Image())
	assert.False(t, a.Visible())
	assert.Equal(t, geom.Coord{X: 10, Y: 20}, a.Position())
	_, ok := a.Selected()
	assert.False(t, ok)
}

func TestSelectedImageResizesOnceLoaded(t *testing.T) {
	q := task.New()
	defer q.Close()
	env := &render.Env{Loader: loader(map[string]image.Point{"a.png": {4, 2}}), Tasks: q}
	a := New(env, nil)
	defer a.Destroy()

	a.Render(staged(geom.NewRect(10, 20, 8, 8), ref("a.png", 4, 2)))
	require.NotNil(t, a.Image())
	assert.True(t, a.Image().Loading())
	assert.Equal(t, geom.NewRect(0, 0, 8, 8), a.Image().Bounds(), "sized to the bbox while loading")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Settle(ctx))

	assert.False(t, a.Image().Loading())
	assert.Equal(t, geom.NewRect(0, 0, 4, 2), a.Image().Bounds(), "real dimensions after load")
	img := a.Canvas(geom.NewRect(10, 20, 8, 8))
	assert.Equal(t, green, img.RGBAAt(3, 1))
	assert.Zero(t, img.RGBAAt(5, 1).A)
	assert.Zero(t, img.RGBAAt(0, 3).A)
}

func TestImageShownAtBboxOriginIgnoringOffset(t *testing.T) {
	env := &render.Env{Loader: loader(map[string]image.Point{"a.png": {2, 2}})}
	a := New(env, nil)
	defer a.Destroy()

	img := ref("a.png", 2, 2)
	img.Offset = geom.Coord{X: 3, Y: 1}
	a.Render(staged(geom.NewRect(10, 20, 8, 8), img))
	assert.Equal(t, geom.Coord{X: 10, Y: 20}, a.Position())
	out := a.Canvas(geom.NewRect(10, 20, 8, 8))
	assert.Equal(t, green, out.RGBAAt(1, 1))
	assert.Zero(t, out.RGBAAt(3, 1).A, "the offset only applies on accept")
}

func TestShowFlag(t *testing.T) {
	env := &render.Env{Loader: loader(map[string]image.Point{"a.png": {8, 8}})}
	a := New(env, nil)
	defer a.Destroy()
	s := staged(geom.NewRect(0, 0, 8, 8), ref("a.png", 8, 8))
	a.Render(s)
	require.True(t, a.Visible())

	a.ToggleShow()
	assert.False(t, a.Show())
	assert.False(t, a.Visible())
	assert.Equal(t, raster.FullyTransparent, raster.Classify(a.Canvas(geom.NewRect(0, 0, 8, 8))))

	a.Render(s)
	assert.False(t, a.Visible(), "re-rendering keeps the flag")

	a.StagingStarted()
	assert.True(t, a.Show())
	assert.True(t, a.Visible())
}

func TestSelectionChangeReloads(t *testing.T) {
	env := &render.Env{Loader: loader(map[string]image.Point{"a.png": {8, 8}, "b.png": {4, 4}})}
	a := New(env, nil)
	defer a.Destroy()
	s := staged(geom.NewRect(0, 0, 8, 8), ref("a.png", 8, 8), ref("b.png", 4, 4))
	a.Render(s)
	first := a.Image()

	next := *s
	next.Staging.SelectedIndex = 1
	a.Render(&next)
	assert.Same(t, first, a.Image(), "the renderer is reused")
	assert.Equal(t, "b.png", a.Image().Object().Image.Name)
	assert.Equal(t, geom.NewRect(0, 0, 4, 4), a.Image().Bounds())
	sel, ok := a.Selected()
	require.True(t, ok)
	assert.Equal(t, "b.png", sel.Image.Name)

	cleared := *s
	cleared.Staging = state.Staging{}
	a.Render(&cleared)
	assert.False(t, a.Visible())
}

func TestErroredImageKeepsBboxSize(t *testing.T) {
	env := &render.Env{Loader: assets.LoaderFunc(func(context.Context, string) (*image.RGBA, error) {
		return nil, errors.New("gone")
	})}
	a := New(env, nil)
	defer a.Destroy()
	a.Render(staged(geom.NewRect(0, 0, 8, 8), ref("a.png", 2, 2)))
	require.True(t, a.Image().Errored())
	assert.Equal(t, geom.NewRect(0, 0, 8, 8), a.Image().Bounds())
	assert.Equal(t, raster.FullyTransparent, raster.Classify(a.Canvas(geom.NewRect(0, 0, 8, 8))))
}
