// Package appctx carries the explicitly-passed application context that
// replaces the source's module-level singletons (logger, bus client,
// cache client): a single struct threaded through constructors instead
// of package-level state.
package appctx

import (
	"context"
	"log/slog"

	"github.com/warehouseops/pipeline/pkg/cache"
)

// AppContext bundles the process-wide collaborators every component
// constructor accepts explicitly, instead of reaching for globals.
type AppContext struct {
	Logger   *slog.Logger
	Cache    cache.Cache // L2 shared cache; nil when not configured
	Shutdown func(context.Context) error
}

// New builds an AppContext from already-initialized collaborators.
// Cache may be nil: components fall back to L1-only / deterministic
// stand-ins per §9.
func New(logger *slog.Logger, sharedCache cache.Cache, shutdown func(context.Context) error) *AppContext {
	return &AppContext{Logger: logger, Cache: sharedCache, Shutdown: shutdown}
}
