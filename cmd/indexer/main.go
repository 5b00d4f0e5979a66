// Command indexer compiles announced docsets.
//
// POST /api/v1/docsets records an index job and publishes it on the
// docset-published topic. The consumer side of the same service loads the
// referenced search directory, writes a snapshot, stores the catalog in
// PostgreSQL, uploads the rendered files to the object store and announces
// the snapshot on index-complete for the searchers.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/pipeline"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		slog.Error("indexer requires kafka.enabled")
		os.Exit(1)
	}
	codec, err := snapshot.ParseCodec(cfg.Snapshot.Codec)
	if err != nil {
		slog.Error("invalid snapshot codec", "error", err)
		os.Exit(1)
	}
	slog.Info("starting indexer service",
		"port", cfg.Server.Port,
		"snapshot_dir", cfg.Snapshot.Dir,
		"codec", codec,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker(2 * time.Second)
	deps := pipeline.Deps{
		Metrics: m,
		Tracer:  tracing.New(cfg.Tracing),
	}

	var jobs publisher.JobStore = publisher.NewMemoryJobs()
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		catalogStore := store.NewCatalogStore(db)
		pgJobs := publisher.NewPostgresJobs(db)
		for _, ensure := range []func(context.Context) error{catalogStore.EnsureSchema, pgJobs.EnsureSchema} {
			if err := ensure(ctx); err != nil {
				slog.Error("failed to prepare schema", "error", err)
				os.Exit(1)
			}
		}
		deps.Store = catalogStore
		jobs = pgJobs
		checker.Register("postgres", health.Ping(db.Ping))
		slog.Info("catalog store enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}
	deps.Jobs = jobs

	if cfg.ObjectStore.Enabled {
		site, err := publish.NewMinio(cfg.ObjectStore)
		if err != nil {
			slog.Error("failed to create object store client", "error", err)
			os.Exit(1)
		}
		if err := site.EnsureBucket(ctx); err != nil {
			slog.Error("object store unavailable", "bucket", cfg.ObjectStore.Bucket, "error", err)
			os.Exit(1)
		}
		deps.Site = site
		checker.RegisterOptional("object_store", health.Ping(site.EnsureBucket))
		slog.Info("site publishing enabled", "endpoint", cfg.ObjectStore.Endpoint, "bucket", cfg.ObjectStore.Bucket)
	}

	notifier := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer notifier.Close()
	deps.Notifier = notifier

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 1000, 50, 5*time.Second)
	collector.Start(ctx)
	defer collector.Close()
	deps.Analytics = collector

	pipe := pipeline.New(pipeline.Config{
		SnapshotDir: cfg.Snapshot.Dir,
		Codec:       codec,
		Load:        catalog.Options{MaxParallel: cfg.Catalog.MaxParallel},
		Strict:      cfg.Catalog.ValidateOnLoad,
	}, deps)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocsetPublished, "", pipe.HandleMessage())
	defer consumer.Close()
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("docset consumer stopped", "error", err)
		}
	}()
	slog.Info("indexer consuming",
		"topic", cfg.Kafka.Topics.DocsetPublished,
		"group", cfg.Kafka.ConsumerGroup,
	)

	announcer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocsetPublished)
	defer announcer.Close()

	mux := http.NewServeMux()
	handler.New(publisher.New(jobs, announcer)).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	checker.Mount(mux)

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("indexer service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-consumerDone
	slog.Info("indexer service stopped")
}
