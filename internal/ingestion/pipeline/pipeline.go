// Package pipeline compiles announced docsets: it loads and validates the
// generated search directory, writes a snapshot, saves the catalog to
// PostgreSQL, uploads the rendered files to the object store and announces
// the result on index-complete.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searchdata"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// CatalogSaver is implemented by *store.CatalogStore.
type CatalogSaver interface {
	SaveDocset(ctx context.Context, name, version string, cat *catalog.Catalog) error
}

// SitePublisher is implemented by *publish.Publisher.
type SitePublisher interface {
	Publish(ctx context.Context, docset, version string, cat *catalog.Catalog) (publish.Manifest, error)
}

type Config struct {
	SnapshotDir string
	Codec       snapshot.Codec
	Load        catalog.Options
	Strict      bool
}

// Deps are the optional collaborators of a Pipeline. Nil members skip
// their stage.
type Deps struct {
	Store     CatalogSaver
	Site      SitePublisher
	Notifier  kafka.Publisher
	Jobs      publisher.JobStore
	Analytics analytics.Sink
	Metrics   *metrics.Metrics
	Tracer    *tracing.Tracer
}

type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func New(cfg Config, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default().With("component", "index-pipeline"),
	}
}

// SnapshotPath is where the snapshot of docset@version is written.
func (p *Pipeline) SnapshotPath(docset, version string) string {
	return filepath.Join(p.cfg.SnapshotDir, docset, version+".dsx")
}

// Process runs every stage for ev and returns the event it announced.
func (p *Pipeline) Process(ctx context.Context, ev ingestion.DocsetPublished) (ingestion.IndexComplete, error) {
	ctx, span := p.deps.Tracer.Start(ctx, "index-docset")
	defer span.End()
	span.SetAttr("docset", ev.Docset)
	span.SetAttr("version", ev.Version)
	span.SetAttr("job_id", ev.JobID)

	var cat *catalog.Catalog
	err := stage(ctx, "load", func(ctx context.Context) error {
		var err error
		cat, err = catalog.Load(ctx, ev.Dir, p.cfg.Load)
		return err
	})
	if err == nil {
		err = stage(ctx, "validate", func(context.Context) error {
			if vs := cat.Validate(p.cfg.Strict); len(vs) > 0 {
				return &catalog.ValidationError{Violations: vs}
			}
			return nil
		})
	}
	path := p.SnapshotPath(ev.Docset, ev.Version)
	if err == nil {
		err = stage(ctx, "snapshot", func(context.Context) error {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("creating snapshot directory: %w", err)
			}
			_, err := snapshot.Write(path, cat, p.cfg.Codec)
			return err
		})
	}
	if err == nil {
		g, gctx := errgroup.WithContext(ctx)
		if p.deps.Store != nil {
			g.Go(func() error {
				return stage(gctx, "store", func(ctx context.Context) error {
					return p.deps.Store.SaveDocset(ctx, ev.Docset, ev.Version, cat)
				})
			})
		}
		if p.deps.Site != nil {
			g.Go(func() error {
				return stage(gctx, "publish", func(ctx context.Context) error {
					_, err := p.deps.Site.Publish(ctx, ev.Docset, ev.Version, cat)
					return err
				})
			})
		}
		err = g.Wait()
	}
	if err != nil {
		span.Fail(err)
		return ingestion.IndexComplete{}, err
	}

	stats := cat.Stats()
	done := ingestion.IndexComplete{
		JobID:       ev.JobID,
		Docset:      ev.Docset,
		Version:     ev.Version,
		Snapshot:    path,
		Files:       stats.Files,
		Entries:     stats.Entries,
		Matches:     stats.Matches,
		CompletedAt: time.Now().UTC(),
	}
	if p.deps.Notifier != nil {
		err = stage(ctx, "notify", func(ctx context.Context) error {
			return p.deps.Notifier.Publish(ctx, kafka.Event{Key: ev.Docset, Value: done})
		})
		if err != nil {
			span.Fail(err)
			return ingestion.IndexComplete{}, fmt.Errorf("announcing index-complete: %w", err)
		}
	}
	span.SetAttr("entries", stats.Entries)
	return done, nil
}

func stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracing.StartChild(ctx, name)
	defer span.End()
	err := fn(ctx)
	span.Fail(err)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Handle processes ev and records the outcome on the job, in metrics and
// in analytics.
func (p *Pipeline) Handle(ctx context.Context, ev ingestion.DocsetPublished) error {
	start := time.Now()
	done, err := p.Process(ctx, ev)
	elapsed := time.Since(start)

	status, jobStatus, detail := "ok", ingestion.JobIndexed, ""
	switch {
	case err != nil && Permanent(err):
		status, jobStatus, detail = "failed", ingestion.JobFailed, err.Error()
		p.logger.Error("docset indexing failed",
			"job_id", ev.JobID,
			"docset", ev.Docset,
			"version", ev.Version,
			"error", err,
		)
	case err != nil:
		// The message stays uncommitted and is redelivered.
		status, jobStatus, detail = "retrying", ingestion.JobPending, "retrying: "+err.Error()
		p.logger.Warn("docset indexing will be retried",
			"job_id", ev.JobID,
			"docset", ev.Docset,
			"version", ev.Version,
			"error", err,
		)
	default:
		p.logger.Info("docset indexed",
			"job_id", ev.JobID,
			"docset", ev.Docset,
			"version", ev.Version,
			"entries", done.Entries,
			"snapshot", done.Snapshot,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	if p.deps.Jobs != nil && ev.JobID != "" {
		if markErr := p.deps.Jobs.Mark(ctx, ev.JobID, jobStatus, detail); markErr != nil {
			p.logger.Error("failed to update job status",
				"job_id", ev.JobID,
				"status", jobStatus,
				"error", markErr,
			)
		}
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.DocsetsIndexedTotal.WithLabelValues(status).Inc()
	}
	if p.deps.Analytics != nil {
		p.deps.Analytics.Track(analytics.IndexEvent{
			Type:       analytics.EventDocsetIndexed,
			Docset:     ev.Docset,
			Version:    ev.Version,
			Files:      done.Files,
			Entries:    done.Entries,
			DurationMs: elapsed.Milliseconds(),
			Status:     status,
			Timestamp:  time.Now().UTC(),
		})
	}
	return err
}

// HandleMessage adapts Handle to the docset-published consumer. Failures
// that a redelivery cannot fix are logged and committed.
func (p *Pipeline) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		ev, err := kafka.DecodeJSON[ingestion.DocsetPublished](value)
		if err != nil {
			p.logger.Error("failed to decode docset event",
				"key", string(key),
				"error", err,
			)
			return nil
		}
		if err := p.Handle(ctx, ev); err != nil && !Permanent(err) {
			return err
		}
		return nil
	}
}

// Permanent reports whether err comes from the docset itself rather than
// from a dependency.
func Permanent(err error) bool {
	for _, target := range []error{
		apperrors.ErrInvalidSearchData,
		apperrors.ErrInvalidInput,
		searchdata.ErrSyntax,
		searchdata.ErrEmptyTable,
		searchdata.ErrMalformedID,
		fs.ErrNotExist,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
