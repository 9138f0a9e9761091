package canvas

import (
	"log/slog"

	"github.com/gogpu/canvas/assets"
)

// Option configures a Manager during creation.
//
// Example:
//
//	store := assets.NewMemory()
//	m, err := canvas.New(state.NewStore(nil),
//	    canvas.WithAssetStore(store),
//	    canvas.WithLoader(assets.NewLoader(store)))
type Option func(*options)

type options struct {
	cfg    Config
	logger *slog.Logger
	assets assets.Store
	loader assets.Loader
}

func defaultOptions() options {
	return options{cfg: DefaultConfig()}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithLogger sets the logger of the manager and all its modules. Without
// it the package-wide Logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithAssetStore sets the store rasterized images are uploaded to.
func WithAssetStore(s assets.Store) Option {
	return func(o *options) {
		o.assets = s
	}
}

// WithLoader sets the loader image objects are drawn from. When the asset
// store also implements assets.Fetcher and no loader is given, a loader
// over the store is used.
func WithLoader(l assets.Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}
