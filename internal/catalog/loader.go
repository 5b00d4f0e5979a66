package catalog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Loader holds the current catalog of a directory and swaps it atomically
// on Reload. Readers never block.
type Loader struct {
	dir     string
	opts    Options
	current atomic.Pointer[Catalog]
	reloads atomic.Int64

	mu        sync.Mutex
	listeners []func(*Catalog)
	logger    *slog.Logger
}

func NewLoader(dir string, opts Options) *Loader {
	return &Loader{
		dir:    dir,
		opts:   opts,
		logger: slog.Default().With("component", "catalog-loader"),
	}
}

func (l *Loader) Dir() string { return l.dir }

// Current returns the last successfully loaded catalog.
func (l *Loader) Current() (*Catalog, error) {
	c := l.current.Load()
	if c == nil {
		return nil, apperrors.ErrCatalogNotLoaded
	}
	return c, nil
}

// Set installs c as the current catalog and notifies listeners.
func (l *Loader) Set(c *Catalog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current.Store(c)
	l.reloads.Add(1)
	for _, fn := range l.listeners {
		fn(c)
	}
}

// OnReload registers fn to run after every successful load. Listeners run
// serially under the loader's lock.
func (l *Loader) OnReload(fn func(*Catalog)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Reload parses the directory again. On failure the previous catalog stays
// in place.
func (l *Loader) Reload(ctx context.Context) (*Catalog, error) {
	start := time.Now()
	c, err := Load(ctx, l.dir, l.opts)
	if err != nil {
		l.logger.Error("catalog reload failed",
			"dir", l.dir,
			"error", err,
		)
		return nil, err
	}
	l.Set(c)
	l.logger.Info("catalog reloaded",
		"dir", l.dir,
		"generation", l.reloads.Load(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return c, nil
}

// Generation counts successful loads.
func (l *Loader) Generation() int64 { return l.reloads.Load() }
