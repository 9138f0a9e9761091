package assets

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store and Fetcher. It counts calls and can be
// told to fail, which makes it the test double of choice for the engine.
type Memory struct {
	mu     sync.Mutex
	assets map[string]memoryAsset

	uploads int
	gets    int
	fetches int

	// UploadErr, when set, is returned by every Upload.
	UploadErr error
	// GetErr, when set, is returned by every Get.
	GetErr error
}

type memoryAsset struct {
	desc Descriptor
	data []byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{assets: make(map[string]memoryAsset)}
}

// Upload stores u under a fresh name that keeps the upload's base name.
func (m *Memory) Upload(ctx context.Context, u Upload) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}
	m.mu.Lock()
	m.uploads++
	uploadErr := m.UploadErr
	m.mu.Unlock()
	if uploadErr != nil {
		return Descriptor{}, uploadErr
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
	data := append([]byte(nil), u.Data...)

	m.mu.Lock()
	m.assets[desc.Name] = memoryAsset{desc: desc, data: data}
	m.mu.Unlock()
	return desc, nil
}

// Get returns the descriptor of a stored image.
func (m *Memory) Get(ctx context.Context, name string) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++
	if m.GetErr != nil {
		return Descriptor{}, m.GetErr
	}
	a, ok := m.assets[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return a.desc, nil
}

// Fetch returns the bytes of a stored image.
func (m *Memory) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetches++
	a, ok := m.assets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return a.data, nil
}

// Put stores data under an explicit name, bypassing upload accounting.
func (m *Memory) Put(name string, data []byte) (Descriptor, error) {
	w, h, _, err := Validate(data)
	if err != nil {
		return Descriptor{}, err
	}
	desc := Descriptor{Name: name, Width: w, Height: h, Category: CategoryGeneral}
	m.mu.Lock()
	m.assets[name] = memoryAsset{desc: desc, data: append([]byte(nil), data...)}
	m.mu.Unlock()
	return desc, nil
}

// Delete removes an image, as a server evicting it would.
func (m *Memory) Delete(name string) {
	m.mu.Lock()
	delete(m.assets, name)
	m.mu.Unlock()
}

// Len returns the number of stored images.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets)
}

// Uploads returns the number of Upload calls.
func (m *Memory) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

// Gets returns the number of Get calls.
func (m *Memory) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Fetches returns the number of Fetch calls.
func (m *Memory) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// assetName derives a unique name such as "composite-raster-layer_<uuid>.png".
func assetName(filename, ext string) string {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return base + "_" + uuid.NewString() + "." + ext
}
