package canvas

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/canvas/internal/logx"
)

// loggerPtr stores the package-wide logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(logx.Nop())
}

// SetLogger configures the logger used by managers created without
// WithLogger. By default the engine produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by the engine:
//   - [slog.LevelDebug]: module lifecycle, cache hits and misses
//   - [slog.LevelWarn]: missing adapters, failed image loads
//
// Every record carries a "path" attribute naming the module that logged
// it, e.g. "manager.compositor". Use [NewPathLogger] to filter per module.
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(logx.OrNop(l))
}

// Logger returns the package-wide logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// NewPathLogger wraps h so that each module path prefix in levels gets its
// own minimum level. Paths matching no prefix use fallback.
func NewPathLogger(h slog.Handler, fallback slog.Level, levels map[string]slog.Level) *slog.Logger {
	return slog.New(logx.NewPathHandler(h, fallback, levels))
}
