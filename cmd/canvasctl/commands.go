package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/canvas"
	"github.com/gogpu/canvas/assets"
	"github.com/gogpu/canvas/geom"
	"github.com/gogpu/canvas/raster"
	"github.com/gogpu/canvas/state"
)

func newModeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mode DOC",
		Short: "Print the generation mode of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()
			return report(cmd.Context(), s.manager, cmd.OutOrStdout())
		},
	}
}

// report prints the generation mode and the transparency of both
// composites over the bbox.
func report(ctx context.Context, m *canvas.Manager, out io.Writer) error {
	mode, err := m.GenerationMode(ctx)
	if err != nil {
		return err
	}
	bbox := m.Bbox()
	rasterImg, err := m.RasterLayerCanvas(ctx, bbox)
	if err != nil {
		return err
	}
	maskImg, err := m.InpaintMaskCanvas(ctx, bbox)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "mode: %s\nraster: %s\nmask: %s\n",
		mode, raster.Classify(rasterImg), raster.Classify(maskImg))
	return err
}

func newComposeCmd(g *globals) *cobra.Command {
	var (
		kind    string
		out     string
		rectArg string
	)
	cmd := &cobra.Command{
		Use:   "compose DOC",
		Short: "Write the raster layer or inpaint mask composite as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			s, err := g.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			rect := s.manager.Bbox()
			if rectArg != "" {
				if rect, err = parseRect(rectArg); err != nil {
					return err
				}
			}
			composite, err := compose(cmd.Context(), s.manager, k, rect)
			if err != nil {
				return err
			}
			data, err := raster.EncodePNG(composite)
			if err != nil {
				return err
			}
			path, err := homedir.Expand(out)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d)\n", path, composite.Rect.Dx(), composite.Rect.Dy())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "kind", "raster", "composite to write: raster or mask")
	f.StringVarP(&out, "out", "o", "composite.png", "output file")
	f.StringVar(&rectArg, "rect", "", "region as x,y,w,h (default: the bbox)")
	return cmd
}

func compose(ctx context.Context, m *canvas.Manager, kind state.Kind, rect geom.Rect) (*image.RGBA, error) {
	if kind == state.KindInpaintMask {
		return m.InpaintMaskCanvas(ctx, rect)
	}
	return m.RasterLayerCanvas(ctx, rect)
}

func parseKind(s string) (state.Kind, error) {
	switch s {
	case "raster", string(state.KindRasterLayer):
		return state.KindRasterLayer, nil
	case "mask", string(state.KindInpaintMask):
		return state.KindInpaintMask, nil
	default:
		return "", fmt.Errorf("unknown composite kind %q (want raster or mask)", s)
	}
}

// parseRect parses "x,y,w,h".
func parseRect(s string) (geom.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geom.Rect{}, fmt.Errorf("rect %q: want x,y,w,h", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Rect{}, fmt.Errorf("rect %q: %w", s, err)
		}
		v[i] = f
	}
	if v[2] <= 0 || v[3] <= 0 {
		return geom.Rect{}, fmt.Errorf("rect %q: width and height must be positive", s)
	}
	return geom.NewRect(v[0], v[1], v[2], v[3]), nil
}

func newRasterizeCmd(g *globals) *cobra.Command {
	var gallery bool
	cmd := &cobra.Command{
		Use:   "rasterize DOC",
		Short: "Upload both composites into the --assets directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.assetsDir == "" {
				return errors.New("rasterize needs --assets")
			}
			s, err := g.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			bbox := s.manager.Bbox()
			out := map[string]assets.Descriptor{}
			for _, kind := range []state.Kind{state.KindRasterLayer, state.KindInpaintMask} {
				desc, err := s.manager.RasterizeAndUpload(ctx, kind, bbox, gallery)
				if err != nil {
					return err
				}
				out[string(kind)] = desc
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&gallery, "gallery", false, "save to the gallery instead of as intermediates")
	return cmd
}

func newWatchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "watch DOC",
		Short: "Print the generation mode whenever the document changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()
			return watch(cmd.Context(), s, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// watch reports on the document, then again after every change until ctx
// is done. Reloads go through the same store, so unchanged entities keep
// their adapters and composites stay cached.
func watch(ctx context.Context, s *session, path string, out, errOut io.Writer) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// Editors replace files on save; watch the directory.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	if err := report(ctx, s.manager, out); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			doc, err := loadDocument(abs)
			if err != nil {
				// Usually a save in progress; the next event brings the rest.
				fmt.Fprintf(errOut, "reload: %v\n", err)
				continue
			}
			s.store.Replace(doc)
			fmt.Fprintf(out, "--- %s\n", filepath.Base(abs))
			if err := report(ctx, s.manager, out); err != nil {
				return err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
