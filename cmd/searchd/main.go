package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/ftsql/ftsql/internal/index"
	"github.com/ftsql/ftsql/internal/index/segment"
	"github.com/ftsql/ftsql/internal/index/tombstone"
	"github.com/ftsql/ftsql/internal/mirror"
	"github.com/ftsql/ftsql/internal/query"
	"github.com/ftsql/ftsql/internal/query/cache"
	"github.com/ftsql/ftsql/internal/searchd/handler"
	"github.com/ftsql/ftsql/internal/tokenize"
	"github.com/ftsql/ftsql/pkg/config"
	"github.com/ftsql/ftsql/pkg/health"
	"github.com/ftsql/ftsql/pkg/kafka"
	"github.com/ftsql/ftsql/pkg/logger"
	"github.com/ftsql/ftsql/pkg/metrics"
	"github.com/ftsql/ftsql/pkg/middleware"
	"github.com/ftsql/ftsql/pkg/postgres"
	pkgredis "github.com/ftsql/ftsql/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	source, closeSource, err := openSource(cfg.Index)
	if err != nil {
		slog.Error("failed to open posting source", "error", err)
		os.Exit(1)
	}
	defer closeSource()
	slog.Info("posting source ready",
		"data_dir", cfg.Index.DataDir,
		"total_docs", source.TotalDocuments(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var onTombstone func()
	if m != nil {
		onTombstone = m.TombstonesTotal.Inc
	}
	deletions := tombstone.NewFilter(onTombstone)
	tombstoneConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentTombstone, deletions.Handler())
	go func() {
		if err := tombstoneConsumer.Start(ctx); err != nil {
			slog.Error("tombstone consumer error", "error", err)
		}
	}()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis, m)
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	opts := []query.Option{
		query.WithDeletionFilter(deletions),
	}
	if m != nil {
		opts = append(opts, query.WithMetrics(m))
	}

	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("mirror unavailable, LIKE verification disabled", "error", err)
	} else {
		defer pgClient.Close()
		opts = append(opts, query.WithMirror(mirror.New(pgClient, m), cfg.Mirror, nil))
		slog.Info("mirror adapter ready", "table", cfg.Mirror.Table)
	}

	tok := tokenize.NewPort(tokenize.New(cfg.Search.DefaultRank))
	exec := query.NewExecutor(source, tok, cfg.Search, opts...)

	tombstoneProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentTombstone)
	defer tombstoneProducer.Close()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if source.TotalDocuments() > 0 {
			return health.ComponentHealth{Status: health.StatusUp}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "empty index"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("mirror", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(exec, queryCache, tombstoneProducer, cfg.Search, m)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.DeleteDocument)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.QueryTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
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

// openSource opens the newest segment file in the data directory, falling
// back to an empty in-memory source when none exist yet.
func openSource(cfg config.IndexConfig) (index.Source, func(), error) {
	pattern := filepath.Join(cfg.DataDir, "seg_*.ftsg")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		slog.Warn("no segment files found, serving empty index", "data_dir", cfg.DataDir)
		empty := index.NewMemorySource(nil, 0, false)
		return empty, func() {}, nil
	}
	sort.Strings(paths)
	newest := paths[len(paths)-1]
	reader, err := segment.OpenReader(newest)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("segment opened", "path", newest, "terms", reader.Terms())
	return reader, func() { reader.Close() }, nil
}
