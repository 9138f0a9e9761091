// Package assets defines the asset store the canvas engine uploads
// rasterized images to, and provides in-memory and directory-backed
// implementations plus an image loader on top of them.
//
// The HTTP client talking to a generation server is not part of this
// module; it implements Store and Fetcher like the stores here do.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/canvas/raster"
	"github.com/h2non/filetype"
)

// ErrNotFound is returned by Get and Fetch for unknown asset names.
var ErrNotFound = errors.New("assets: not found")

// ErrNotImage is returned when uploaded bytes are not a supported image.
var ErrNotImage = errors.New("assets: not an image")

// Category classifies uploaded images.
type Category string

// Categories used by the canvas engine.
const (
	CategoryGeneral Category = "general"
	CategoryOther   Category = "other"
)

// Descriptor describes a stored image.
type Descriptor struct {
	Name           string   `json:"image_name" yaml:"image_name"`
	Width          int      `json:"width" yaml:"width"`
	Height         int      `json:"height" yaml:"height"`
	Category       Category `json:"image_category" yaml:"image_category"`
	IsIntermediate bool     `json:"is_intermediate" yaml:"is_intermediate"`
	BoardID        string   `json:"board_id,omitempty" yaml:"board_id,omitempty"`
}

// Upload is an image to store.
type Upload struct {
	Data           []byte
	Filename       string
	Category       Category
	IsIntermediate bool
	// BoardID is optional.
	BoardID string
}

// Store uploads images and looks up their metadata.
type Store interface {
	Upload(ctx context.Context, u Upload) (Descriptor, error)
	// Get returns ErrNotFound (possibly wrapped) when the asset is gone.
	Get(ctx context.Context, name string) (Descriptor, error)
}

// Fetcher returns the encoded bytes of a stored image.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// Loader loads a stored image into a bitmap.
type Loader interface {
	Load(ctx context.Context, name string) (*image.RGBA, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, name string) (*image.RGBA, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, name string) (*image.RGBA, error) {
	return f(ctx, name)
}

// NewLoader returns a Loader decoding images fetched from f.
func NewLoader(f Fetcher) Loader {
	return LoaderFunc(func(ctx context.Context, name string) (*image.RGBA, error) {
		data, err := f.Fetch(ctx, name)
		if err != nil {
			return nil, err
		}
		img, _, err := raster.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("assets: load %s: %w", name, err)
		}
		return img, nil
	})
}

// Validate checks that data holds a supported image and returns its
// dimensions and file extension.
func Validate(data []byte) (width, height int, ext string, err error) {
	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return 0, 0, "", ErrNotImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return cfg.Width, cfg.Height, kind.Extension, nil
}

// IsNotFound reports whether err means the asset does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
