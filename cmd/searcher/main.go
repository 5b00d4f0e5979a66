// Command searcher serves lookups over a Doxygen search directory.
//
// It loads the generated search/*.js files into memory, answers prefix,
// exact, substring and full-text lookups on GET /api/v1/search, re-renders
// the original files on GET /search/{file}, and swaps in new catalogs when
// the directory changes, on POST /api/v1/reload, or when the indexer
// announces a snapshot on the index-complete topic.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// indexGrace keeps a replaced index open for lookups already running on it.
const indexGrace = 5 * time.Second

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"catalog_dir", cfg.Catalog.Dir,
		"docset", cfg.Catalog.Docset,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	exec := executor.New(lookup.Options{Fulltext: cfg.Lookup.EnableFulltext}, indexGrace)
	defer exec.Close()

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, lookup caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, resilience.CircuitBreakerConfig{
				FailureThreshold:    5,
				ResetTimeout:        30 * time.Second,
				HalfOpenMaxRequests: 1,
				OnStateChange: func(name string, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			slog.Info("lookup cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	loader := catalog.NewLoader(cfg.Catalog.Dir, catalog.Options{
		MaxParallel:    cfg.Catalog.MaxParallel,
		ValidateOnLoad: cfg.Catalog.ValidateOnLoad,
	})
	loader.OnReload(func(c *catalog.Catalog) {
		if err := exec.Swap(c); err != nil {
			m.CatalogReloadsTotal.WithLabelValues("failed").Inc()
			slog.Error("installing catalog failed", "error", err)
			return
		}
		m.CatalogReloadsTotal.WithLabelValues("ok").Inc()
		m.CatalogLoadedAt.SetToCurrentTime()
		for section, st := range c.Stats().PerSection {
			m.CatalogEntries.WithLabelValues(section).Set(float64(st.Entries))
		}
		if queryCache != nil {
			if err := queryCache.Invalidate(context.Background()); err != nil {
				slog.Warn("cache invalidation after reload failed", "error", err)
			}
		}
	})

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, stored docsets disabled", "error", err)
		} else {
			defer db.Close()
		}
	}

	if _, err := loader.Reload(ctx); err != nil {
		slog.Warn("initial catalog load failed", "dir", cfg.Catalog.Dir, "error", err)
		if db != nil && cfg.Catalog.Docset != "" {
			cat, version, err := store.NewCatalogStore(db).LoadDocset(ctx, cfg.Catalog.Docset, "")
			if err != nil {
				slog.Warn("no stored docset to fall back to", "docset", cfg.Catalog.Docset, "error", err)
			} else {
				loader.Set(cat)
				slog.Info("catalog restored from postgres", "docset", cfg.Catalog.Docset, "version", version)
			}
		}
	}

	if cfg.Catalog.Watch {
		watcher := catalog.NewWatcher(loader, cfg.Catalog.WatchDebounce)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("catalog watcher stopped", "error", err)
			}
		}()
	}

	aggregator := analytics.NewAggregator()
	sink := analytics.Sink(aggregator)
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		sink = analytics.Tee(aggregator, collector)
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

		// Every replica must see every snapshot, so each joins its own group.
		host, _ := os.Hostname()
		group := fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, host)
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, group,
			ingestion.HandleIndexComplete(cfg.Catalog.Docset, loader.Set))
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index-complete consumer stopped", "error", err)
			}
		}()
		slog.Info("listening for snapshots", "topic", cfg.Kafka.Topics.IndexComplete, "group", group)
	}

	checker := health.NewChecker(2 * time.Second)
	checker.Register("catalog", func(context.Context) health.ComponentHealth {
		cat, err := exec.Catalog()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		st := cat.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d entries in %d files", st.Entries, st.Files),
		}
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", health.Ping(redisClient.Ping))
	}
	if db != nil {
		checker.RegisterOptional("postgres", health.Ping(db.Ping))
	}

	h := handler.New(exec, queryCache, sink, loader, m, handler.Options{
		DefaultMode:  lookup.Mode(cfg.Lookup.DefaultMode),
		DefaultLimit: cfg.Lookup.DefaultLimit,
		MaxResults:   cfg.Lookup.MaxResults,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	analytics.NewHandler(aggregator).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	checker.Mount(mux)

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig()),
		middleware.Metrics(m),
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		go limiter.RunSweeper(ctx, time.Minute)
		mws = append(mws, middleware.RateLimit(limiter, m))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
