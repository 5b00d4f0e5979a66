// Package executor owns the live lookup index. A reload builds a new index
// off to the side and swaps it in atomically; readers never see a partial
// catalog.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/lookup"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type state struct {
	cat *catalog.Catalog
	idx *lookup.Index
}

type Executor struct {
	opts       lookup.Options
	current    atomic.Pointer[state]
	generation atomic.Int64
	// closeGrace delays closing a replaced index so in-flight lookups finish.
	closeGrace time.Duration
	wg         sync.WaitGroup
	logger     *slog.Logger
}

func New(opts lookup.Options, closeGrace time.Duration) *Executor {
	return &Executor{
		opts:       opts,
		closeGrace: closeGrace,
		logger:     slog.Default().With("component", "lookup-executor"),
	}
}

// Swap indexes cat and makes it the live catalog.
func (e *Executor) Swap(cat *catalog.Catalog) error {
	idx, err := lookup.New(cat, e.opts)
	if err != nil {
		return fmt.Errorf("indexing catalog: %w", err)
	}
	old := e.current.Swap(&state{cat: cat, idx: idx})
	gen := e.generation.Add(1)
	if old != nil {
		e.retire(old.idx)
	}
	e.logger.Info("catalog swapped in",
		"generation", gen,
		"sections", len(cat.Sections()),
		"files", len(cat.AllFiles()),
	)
	return nil
}

func (e *Executor) retire(idx *lookup.Index) {
	if e.closeGrace <= 0 {
		idx.Close()
		return
	}
	e.wg.Add(1)
	time.AfterFunc(e.closeGrace, func() {
		defer e.wg.Done()
		if err := idx.Close(); err != nil {
			e.logger.Warn("closing retired index failed", "error", err)
		}
	})
}

func (e *Executor) load() (*state, error) {
	s := e.current.Load()
	if s == nil {
		return nil, apperrors.New(apperrors.ErrCatalogNotLoaded, http.StatusServiceUnavailable, "no catalog loaded yet")
	}
	return s, nil
}

// Catalog returns the live catalog.
func (e *Executor) Catalog() (*catalog.Catalog, error) {
	s, err := e.load()
	if err != nil {
		return nil, err
	}
	return s.cat, nil
}

// Index returns the live index.
func (e *Executor) Index() (*lookup.Index, error) {
	s, err := e.load()
	if err != nil {
		return nil, err
	}
	return s.idx, nil
}

func (e *Executor) Generation() int64 { return e.generation.Load() }

// Execute runs q against the live index.
func (e *Executor) Execute(ctx context.Context, q lookup.Query) (lookup.Result, error) {
	if err := ctx.Err(); err != nil {
		return lookup.Result{}, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	idx, err := e.Index()
	if err != nil {
		return lookup.Result{}, err
	}
	return idx.Lookup(q)
}

// Close closes the live index and waits for retired ones.
func (e *Executor) Close() error {
	e.wg.Wait()
	if s := e.current.Swap(nil); s != nil {
		return s.idx.Close()
	}
	return nil
}
