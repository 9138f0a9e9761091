// Package logx holds the slog plumbing shared by the canvas packages:
// a discard logger, module path loggers, and a handler that applies
// minimum levels per module path prefix.
package logx

import (
	"context"
	"log/slog"
	"strings"
)

// PathKey is the attribute carrying a module's path, e.g.
// "manager.compositor".
const PathKey = "path"

// nopHandler discards every record. Enabled returns false so callers skip
// message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Nop returns a logger that silently discards all output.
func Nop() *slog.Logger { return slog.New(nopHandler{}) }

// OrNop returns l, or a discard logger when l is nil.
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// JoinPath joins module path segments.
func JoinPath(path ...string) string {
	return strings.Join(path, ".")
}

// For returns a child of base tagged with the joined module path.
func For(base *slog.Logger, path ...string) *slog.Logger {
	return OrNop(base).With(slog.String(PathKey, JoinPath(path...)))
}

// PathHandler wraps a handler and filters records by the module path the
// logger was created with. The longest configured prefix of the path
// decides the minimum level; paths without a match use the fallback.
type PathHandler struct {
	inner    slog.Handler
	levels   map[string]slog.Level
	fallback slog.Level
	path     string
}

// NewPathHandler creates a PathHandler. levels maps path prefixes
// ("manager", "manager.compositor") to minimum levels.
func NewPathHandler(inner slog.Handler, fallback slog.Level, levels map[string]slog.Level) *PathHandler {
	copied := make(map[string]slog.Level, len(levels))
	for k, v := range levels {
		copied[k] = v
	}
	return &PathHandler{inner: inner, levels: copied, fallback: fallback}
}

// Level returns the minimum level applied to path.
func (h *PathHandler) Level(path string) slog.Level {
	best := -1
	level := h.fallback
	for prefix, l := range h.levels {
		if !hasPathPrefix(path, prefix) {
			continue
		}
		if len(prefix) > best {
			best = len(prefix)
			level = l
		}
	}
	return level
}

func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '.'
}

func (h *PathHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.Level(h.path) && h.inner.Enabled(ctx, level)
}

func (h *PathHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *PathHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		if a.Key == PathKey {
			next.path = a.Value.String()
		}
	}
	next.inner = h.inner.WithAttrs(attrs)
	return &next
}

func (h *PathHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.inner = h.inner.WithGroup(name)
	return &next
}
