package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/vodmark/internal/bridge"
	"github.com/MrSnakeDoc/vodmark/internal/config"
	"github.com/MrSnakeDoc/vodmark/internal/httpserver"
	"github.com/MrSnakeDoc/vodmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/metadata"
	"github.com/MrSnakeDoc/vodmark/internal/metrics"
	"github.com/MrSnakeDoc/vodmark/internal/redis"
	"github.com/MrSnakeDoc/vodmark/internal/resolver"
	"github.com/MrSnakeDoc/vodmark/internal/scheduler"
	"github.com/MrSnakeDoc/vodmark/internal/session"
	"github.com/MrSnakeDoc/vodmark/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/vodmark/internal/store/redis"
	"github.com/MrSnakeDoc/vodmark/internal/store/sqlite"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
	"github.com/MrSnakeDoc/vodmark/internal/utils"
	"github.com/MrSnakeDoc/vodmark/internal/version"
)

// backend is a timestamp backend that can report its health.
type backend interface {
	timestamps.Backend
	Ping(ctx context.Context) error
}

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	closer      io.Closer // sqlite database, nil otherwise
	sessions    *session.Manager
	bridge      *bridge.Bridge
	importer    *scheduler.Importer
	exporter    *scheduler.Exporter
	sweeper     *scheduler.Sweeper
	gc          *scheduler.GarbageCollector
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	m := metrics.New()

	a := &App{cfg: cfg, logger: loggerClient}

	store, cache, err := a.openStore(context.Background())
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.Store, err)
		os.Exit(1)
	}
	loggerClient.Info("store initialized successfully", logger.String("store", cfg.Store))

	svc := timestamps.NewService(store, m)

	metaOpts := metadata.Options{
		BaseURL: cfg.MetadataURL,
		Timeout: cfg.MetadataTimeout,
	}
	if cache != nil {
		metaOpts.Cache = cache
		metaOpts.CacheTTL = cfg.MetadataCacheTTL
	}
	meta := metadata.NewClient(metaOpts, loggerClient)
	res := resolver.New(meta, cfg.PlatformHosts, loggerClient, m)

	a.sessions = session.NewManager(context.Background(), svc, res.Resolve, session.Options{
		Debounce:     cfg.NavDebounce,
		Recorder:     m,
		StaleCounter: m,
	}, loggerClient)

	a.bridge = bridge.New(a.sessions, bridge.Options{
		OriginHosts: cfg.PlatformHosts,
		Metrics:     m,
	}, loggerClient)

	a.gc = scheduler.NewGarbageCollector(a.sessions, loggerClient, cfg.SessionGC, cfg.SessionIdleTTL)
	a.sweeper = scheduler.NewSweeper(svc, store, m, loggerClient, cfg.SweepInterval)

	var importTrigger chan struct{}
	if cfg.ImportFile != "" {
		loggerClient.Info("import file configured, initializing archive importer",
			logger.String("file", cfg.ImportFile))
		importTrigger = make(chan struct{}, 1)
		a.importer = scheduler.NewImporter(cfg.ImportFile, svc, m, loggerClient, cfg.ImportInterval, importTrigger)
	}

	var exportTrigger chan struct{}
	if cfg.ExportFile != "" {
		loggerClient.Info("export file configured, initializing archive exporter",
			logger.String("file", cfg.ExportFile))
		exportTrigger = make(chan struct{}, 1)
		a.exporter = scheduler.NewExporter(cfg.ExportFile, svc, loggerClient, cfg.ExportInterval, exportTrigger)
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedHosts:  cfg.AllowedHosts,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		RateBurst:     cfg.RateBurst,
		RatePerMin:    cfg.RatePerMin,
		Sessions:      a.sessions,
		Bridge:        a.bridge,
		Store:         store,
		Bookmarks:     svc,
		StoreName:     cfg.Store,
		Metrics:       m,
		ExportTrigger: exportTrigger,
		ImportTrigger: importTrigger,
		ImportFile:    cfg.ImportFile,
	}

	a.server = httpserver.New(cfg, loggerClient, d)
	return a
}

// openStore builds the configured backend. The returned cache is non-nil
// only for the redis store.
func (a *App) openStore(ctx context.Context) (backend, metadata.Cache, error) {
	cfg := a.cfg

	switch cfg.Store {
	case config.StoreRedis:
		// Initialize Redis early - fail fast if unavailable
		a.logger.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, a.logger)
		if err != nil {
			return nil, nil, err
		}
		a.redisClient = client
		s := redisstore.NewStore(client, cfg.RedisTxRetries)
		if cfg.FlushMetaCache {
			if err := s.FlushCache(ctx); err != nil {
				a.logger.Warn("failed to flush metadata cache", logger.Error(err))
			} else {
				a.logger.Info("metadata cache flushed")
			}
		}
		return s, s, nil

	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.closer = s
		return s, nil, nil

	default:
		a.logger.Warn("memory store selected, bookmarks are lost on restart")
		return memory.NewStore(), nil, nil
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting vodmark v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sweep before anything reads the store
	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start store sweeper: %w", err)
	}
	a.logger.Info("store sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval))

	if a.importer != nil {
		if err := a.importer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start archive importer: %w", err)
		}
		a.logger.Info("archive importer started",
			logger.Duration("interval", a.cfg.ImportInterval))
	}

	if a.exporter != nil {
		if err := a.exporter.Start(ctx); err != nil {
			return fmt.Errorf("failed to start archive exporter: %w", err)
		}
		a.logger.Info("archive exporter started",
			logger.Duration("interval", a.cfg.ExportInterval))
	}

	if err := a.gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}
	a.logger.Info("session garbage collector started",
		logger.Duration("interval", a.cfg.SessionGC))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.shutdownBackground()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.shutdownBackground()

	// Final snapshot so the export file reflects the last writes
	if a.exporter != nil {
		if _, err := a.exporter.Export(shutdownCtx); err != nil {
			a.logger.Warn("final archive export failed", logger.Error(err))
		}
	}

	a.closeStore()

	a.logger.Info("✅ vodmark stopped cleanly")
	return nil
}

func (a *App) shutdownBackground() {
	a.bridge.Close()
	a.sessions.Close()

	a.gc.Stop()
	a.sweeper.Stop()
	if a.importer != nil {
		a.importer.Stop()
	}
	if a.exporter != nil {
		a.exporter.Stop()
	}
}

func (a *App) closeStore() {
	if a.closer != nil {
		utils.MustClose(a.closer, a.cfg.Store, a.logger)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
}
