package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// metaExt is the suffix of the sidecar file holding a descriptor.
const metaExt = ".meta.yaml"

// Dir stores images as files in a directory, each with a YAML sidecar
// holding its descriptor.
type Dir struct {
	root string
}

// NewDir opens (creating if needed) a directory store. A leading "~" is
// expanded to the home directory.
func NewDir(root string) (*Dir, error) {
	expanded, err := homedir.Expand(root)
	if err != nil {
		return nil, fmt.Errorf("assets: expand %s: %w", root, err)
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("assets: create %s: %w", expanded, err)
	}
	return &Dir{root: expanded}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// Upload writes the image and its descriptor.
func (d *Dir) Upload(ctx context.Context, u Upload) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}
	w, h, ext, err := Validate(u.Data)
	if err != nil {
		return Descriptor{}, fmt.Errorf("assets: upload %s: %w", u.Filename, err)
	}
	desc := Descriptor{
		Name:           assetName(u.Filename, ext),
		Width:          w,
		Height:         h,
		Category:       u.Category,
		IsIntermediate: u.IsIntermediate,
		BoardID:        u.BoardID,
	}
	if err := os.WriteFile(d.path(desc.Name), u.Data, 0o644); err != nil {
		return Descriptor{}, fmt.Errorf("assets: write %s: %w", desc.Name, err)
	}
	meta, err := yaml.Marshal(&desc)
	if err != nil {
		return Descriptor{}, fmt.Errorf("assets: encode descriptor: %w", err)
	}
	if err := os.WriteFile(d.path(desc.Name)+metaExt, meta, 0o644); err != nil {
		return Descriptor{}, fmt.Errorf("assets: write %s: %w", desc.Name, err)
	}
	return desc, nil
}

// Get reads an image descriptor. Images dropped into the directory by hand
// have no sidecar; their descriptor is derived from the image header.
func (d *Dir) Get(ctx context.Context, name string) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}
	p := d.path(name)
	if _, err := os.Stat(p); err != nil {
		return Descriptor{}, notFoundErr(name, err)
	}

	meta, err := os.ReadFile(p + metaExt)
	switch {
	case err == nil:
		var desc Descriptor
		if err := yaml.Unmarshal(meta, &desc); err != nil {
			return Descriptor{}, fmt.Errorf("assets: decode descriptor %s: %w", name, err)
		}
		return desc, nil
	case errors.Is(err, fs.ErrNotExist):
		data, err := os.ReadFile(p)
		if err != nil {
			return Descriptor{}, notFoundErr(name, err)
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: %s: %v", ErrNotImage, name, err)
		}
		return Descriptor{Name: name, Width: cfg.Width, Height: cfg.Height, Category: CategoryGeneral}, nil
	default:
		return Descriptor{}, fmt.Errorf("assets: read descriptor %s: %w", name, err)
	}
}

// Fetch reads the image bytes.
func (d *Dir) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path(name))
	if err != nil {
		return nil, notFoundErr(name, err)
	}
	return data, nil
}

func (d *Dir) path(name string) string {
	// Names never address anything outside the root.
	return filepath.Join(d.root, filepath.Base(strings.TrimSpace(name)))
}

func notFoundErr(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("assets: %s: %w", name, err)
}
