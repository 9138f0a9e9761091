package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/canvas/assets"
	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/raster"
)

const halfDoc = `
bbox:
  rect: {x: 0, y: 0, width: 8, height: 8}
rasterLayers:
  entities:
    - id: layer
      objects:
        - type: rect
          id: r
          rect: {x: 0, y: 0, width: 4, height: 8}
          color: {r: 255, g: 255, b: 255, a: 1}
`

const fullDoc = `
bbox:
  rect: {x: 0, y: 0, width: 8, height: 8}
rasterLayers:
  entities:
    - id: layer
      objects:
        - type: rect
          id: r
          rect: {x: 0, y: 0, width: 8, height: 8}
          color: {r: 255, g: 255, b: 255, a: 1}
inpaintMasks:
  entities:
    - id: mask
      objects:
        - type: rect
          id: m
          rect: {x: 2, y: 2, width: 2, height: 2}
          color: {r: 255, g: 255, b: 255, a: 1}
`

func writeDoc(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestModeCommand(t *testing.T) {
	doc := writeDoc(t, t.TempDir(), halfDoc)
	out, err := run(t, "mode", doc)
	require.NoError(t, err)
	assert.Equal(t, "mode: outpaint\nraster: PARTIALLY_TRANSPARENT\nmask: FULLY_TRANSPARENT\n", out)
}

func TestModeCommandErrors(t *testing.T) {
	_, err := run(t, "mode", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = run(t, "mode")
	assert.Error(t, err, "a document is required")

	doc := writeDoc(t, t.TempDir(), halfDoc)
	_, err = run(t, "--log-level", "loud", "mode", doc)
	assert.Error(t, err)
}

func TestComposeCommand(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, fullDoc)
	target := filepath.Join(dir, "mask.png")

	out, err := run(t, "compose", doc, "--kind", "mask", "--rect", "0,0,4,4", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "(4x4)")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	img, format, err := raster.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, raster.PartiallyTransparent, raster.Classify(img))
	assert.Zero(t, img.RGBAAt(1, 1).A)
	assert.Equal(t, uint8(255), img.RGBAAt(3, 3).A)

	_, err = run(t, "compose", doc, "--kind", "control")
	assert.Error(t, err)
}

func TestRasterizeCommand(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, fullDoc)
	store := filepath.Join(dir, "assets")

	_, err := run(t, "rasterize", doc)
	assert.Error(t, err, "--assets is required")

	out, err := run(t, "--assets", store, "rasterize", doc)
	require.NoError(t, err)
	var descs map[string]assets.Descriptor
	require.NoError(t, yaml.Unmarshal([]byte(out), &descs))
	require.Len(t, descs, 2)
	assert.True(t, strings.HasPrefix(descs["raster_layer"].Name, "composite-raster-layer"))
	assert.True(t, strings.HasPrefix(descs["inpaint_mask"].Name, "composite-inpaint-mask"))
	assert.True(t, descs["raster_layer"].IsIntermediate)

	dirStore, err := assets.NewDir(store)
	require.NoError(t, err)
	got, err := dirStore.Get(context.Background(), descs["inpaint_mask"].Name)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Width)
}

func TestDocumentPathExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	writeDoc(t, home, halfDoc)

	doc, err := loadDocument("~/doc.yaml")
	require.NoError(t, err)
	assert.Len(t, doc.RasterLayers.Entities, 1)

	out, err := run(t, "mode", "~/doc.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "mode: outpaint")
}

func TestParseRect(t *testing.T) {
	r, err := parseRect("1, 2.5,3,4")
	require.NoError(t, err)
	assert.Equal(t, geom.NewRect(1, 2.5, 3, 4), r)

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "0,0,0,4"} {
		_, err := parseRect(bad)
		assert.Error(t, err, bad)
	}
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchReportsChanges(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, halfDoc)
	g := &globals{}
	cmd := newWatchCmd(g)
	var out syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})

	s, err := g.open(cmd, doc)
	require.NoError(t, err)
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watch(ctx, s, doc, &out, &bytes.Buffer{}) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "mode: outpaint")
	}, 5*time.Second, 10*time.Millisecond)

	writeDoc(t, dir, fullDoc)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "mode: inpaint")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
