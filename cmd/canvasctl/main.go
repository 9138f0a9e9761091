// Command canvasctl inspects canvas documents: it prints the generation
// mode, writes composites and uploads them into a directory asset store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/gogpu/canvas"
	"github.com/gogpu/canvas/assets"
	"github.com/gogpu/canvas/state"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	assetsDir  string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "canvasctl",
		Short:        "Inspect and composite canvas documents",
		SilenceUsage: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&g.configPath, "config", "", "TOML config file")
	f.StringVar(&g.logLevel, "log-level", "", "minimum log level (debug, info, warn, error)")
	f.StringVar(&g.assetsDir, "assets", "", "directory asset store images are read from and uploaded to")

	root.AddCommand(
		newModeCmd(g),
		newComposeCmd(g),
		newRasterizeCmd(g),
		newWatchCmd(g),
	)
	return root
}

// config loads the config file, if any, and applies the flag overrides.
func (g *globals) config() (canvas.Config, error) {
	cfg := canvas.DefaultConfig()
	if g.configPath != "" {
		var err error
		if cfg, err = canvas.LoadConfig(g.configPath); err != nil {
			return cfg, err
		}
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// session is a manager over one document.
type session struct {
	cfg     canvas.Config
	store   *state.Store
	manager *canvas.Manager
	assets  *assets.Dir
}

func (g *globals) open(cmd *cobra.Command, docPath string) (*session, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	fallback, levels, err := cfg.Levels()
	if err != nil {
		return nil, err
	}
	logger := canvas.NewPathLogger(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}), fallback, levels)

	doc, err := loadDocument(docPath)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, store: state.NewStore(doc)}
	opts := []canvas.Option{canvas.WithConfig(cfg), canvas.WithLogger(logger)}
	if g.assetsDir != "" {
		if s.assets, err = assets.NewDir(g.assetsDir); err != nil {
			return nil, err
		}
		opts = append(opts, canvas.WithAssetStore(s.assets))
	}
	if s.manager, err = canvas.New(s.store, opts...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) close() {
	s.manager.Destroy()
}

func loadDocument(path string) (*state.State, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	doc, err := state.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}
