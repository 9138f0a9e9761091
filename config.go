package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/canvas/internal/cache"
	"github.com/gogpu/canvas/render"
	"github.com/gogpu/canvas/stage"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("canvas: invalid config")

// Config holds the engine settings.
//
// Example file:
//
//	cache_capacity = 512
//	preview_delay_ms = 300
//	log_level = "warn"
//
//	[stage]
//	min_scale = 0.1
//	max_scale = 20
//
//	[log_levels]
//	"manager.compositor" = "debug"
type Config struct {
	Stage stage.Config `toml:"stage"`
	// CacheCapacity bounds each result cache, in entries.
	CacheCapacity int `toml:"cache_capacity"`
	// PreviewDelayMS is the debounce delay of entity previews.
	PreviewDelayMS int `toml:"preview_delay_ms"`
	// AsyncImageLoads loads images on background goroutines. Completions
	// are applied by Settle.
	AsyncImageLoads bool `toml:"async_image_loads"`
	// LogLevel is the minimum level for modules without an entry in
	// LogLevels.
	LogLevel string `toml:"log_level"`
	// LogLevels maps module path prefixes to minimum levels.
	LogLevels map[string]string `toml:"log_levels"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Stage:           stage.DefaultConfig(),
		CacheCapacity:   cache.DefaultCapacity,
		PreviewDelayMS:  int(render.DefaultPreviewDelay / time.Millisecond),
		AsyncImageLoads: true,
		LogLevel:        "info",
	}
}

// LoadConfig reads a TOML file over the defaults. A leading ~ in path is
// expanded. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	p, err := homedir.Expand(path)
	if err != nil {
		return cfg, fmt.Errorf("canvas: expand config path: %w", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return cfg, fmt.Errorf("canvas: read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("canvas: parse config %s: %w", p, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	s := c.Stage
	switch {
	case s.MinScale <= 0:
		return fmt.Errorf("%w: stage.min_scale must be positive", ErrInvalidConfig)
	case s.MaxScale < s.MinScale:
		return fmt.Errorf("%w: stage.max_scale below stage.min_scale", ErrInvalidConfig)
	case s.ScaleFactor <= 0 || s.ScaleFactor >= 1:
		return fmt.Errorf("%w: stage.scale_factor must be in (0, 1)", ErrInvalidConfig)
	case s.FitPadding < 0:
		return fmt.Errorf("%w: stage.fit_padding must not be negative", ErrInvalidConfig)
	case c.CacheCapacity < 0:
		return fmt.Errorf("%w: cache_capacity must not be negative", ErrInvalidConfig)
	case c.PreviewDelayMS < 0:
		return fmt.Errorf("%w: preview_delay_ms must not be negative", ErrInvalidConfig)
	}
	if _, _, err := c.Levels(); err != nil {
		return err
	}
	return nil
}

// PreviewDelay returns PreviewDelayMS as a duration.
func (c Config) PreviewDelay() time.Duration {
	return time.Duration(c.PreviewDelayMS) * time.Millisecond
}

// Levels parses LogLevel and LogLevels.
func (c Config) Levels() (fallback slog.Level, levels map[string]slog.Level, err error) {
	fallback = slog.LevelInfo
	if c.LogLevel != "" {
		if err := fallback.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return 0, nil, fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
		}
	}
	levels = make(map[string]slog.Level, len(c.LogLevels))
	for path, name := range c.LogLevels {
		var l slog.Level
		if err := l.UnmarshalText([]byte(name)); err != nil {
			return 0, nil, fmt.Errorf("%w: log_levels.%s: %v", ErrInvalidConfig, path, err)
		}
		levels[path] = l
	}
	return fallback, levels, nil
}
