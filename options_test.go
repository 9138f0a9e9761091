package canvas

import (
	"context"
	"image"
	"log/slog"
	"testing"

	"github.com/gogpu/canvas/assets"
	"github.com/gogpu/canvas/state"
)

// TestDefaultOptions tests that a Manager without options uses the
// default configuration and no asset store.
func TestDefaultOptions(t *testing.T) {
	m, err := New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer m.Destroy()

	if m.Config().CacheCapacity != DefaultConfig().CacheCapacity {
		t.Errorf("CacheCapacity = %d, want %d", m.Config().CacheCapacity, DefaultConfig().CacheCapacity)
	}
	if m.Store() == nil {
		t.Error("Store() is nil, expected an empty store")
	}
}

// TestWithConfig tests that the given configuration replaces the default.
func TestWithConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheCapacity = 4
	cfg.AsyncImageLoads = false

	m, err := New(nil, WithConfig(cfg))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer m.Destroy()

	if got := m.Config(); got.CacheCapacity != 4 || got.AsyncImageLoads {
		t.Errorf("Config() = %+v, want capacity 4 and sync loads", got)
	}
}

// TestWithLoader tests that an explicit loader takes precedence over the
// asset store.
func TestWithLoader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AsyncImageLoads = false

	var loads []string
	loader := assets.LoaderFunc(func(_ context.Context, name string) (*image.RGBA, error) {
		loads = append(loads, name)
		return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
	})

	doc := state.New()
	doc.RasterLayers.Entities = append(doc.RasterLayers.Entities, &state.RasterLayer{Layer: state.Layer{
		ID:        "layer",
		IsEnabled: true,
		Opacity:   1,
		Objects: []state.Object{&state.ImageObject{
			ID:    "img",
			Image: state.ImageRef{Name: "a.png", Width: 2, Height: 2},
		}},
	}})

	m, err := New(state.NewStore(doc),
		WithConfig(cfg),
		WithAssetStore(assets.NewMemory()),
		WithLoader(loader),
		WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer m.Destroy()

	if len(loads) != 1 || loads[0] != "a.png" {
		t.Errorf("loads = %v, want [a.png]", loads)
	}
}

// TestOptionsApplyInOrder tests that later options override earlier ones.
func TestOptionsApplyInOrder(t *testing.T) {
	first, second := DefaultConfig(), DefaultConfig()
	first.CacheCapacity = 1
	second.CacheCapacity = 2

	o := defaultOptions()
	for _, opt := range []Option{WithConfig(first), WithConfig(second)} {
		opt(&o)
	}
	if o.cfg.CacheCapacity != 2 {
		t.Errorf("CacheCapacity = %d, want 2", o.cfg.CacheCapacity)
	}
}
