package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/fslongjin/billsync/internal/auth"
	"github.com/fslongjin/billsync/internal/billapi"
	"github.com/fslongjin/billsync/internal/clock"
	"github.com/fslongjin/billsync/internal/config"
	"github.com/fslongjin/billsync/internal/handler"
	"github.com/fslongjin/billsync/internal/lifecycle"
	"github.com/fslongjin/billsync/internal/logx"
	"github.com/fslongjin/billsync/internal/metrics"
	"github.com/fslongjin/billsync/internal/security"
	"github.com/fslongjin/billsync/internal/service"
	"github.com/fslongjin/billsync/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides BILLSYNC_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closeLogger, err := logx.Init(logx.NewConfig("billsync-server", logx.Settings{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.FileMaxSizeMB,
		MaxBackups: cfg.Log.FileMaxBackup,
		MaxAgeDays: cfg.Log.FileMaxAgeDay,
	}))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if err := closeLogger(); err != nil {
			slog.Error("failed to close logger", "error", err)
		}
	}()

	stdLog := slog.NewLogLogger(logger.Handler(), slog.LevelInfo)
	log.SetFlags(0)
	log.SetOutput(stdLog.Writer())

	dbPath := filepath.Join(cfg.DataDir, "billsync.db")
	if err := store.InitDB(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.CloseDB()

	tokenSecret := cfg.TokenKey
	if tokenSecret == "" {
		tokenSecret, err = security.LoadOrCreateKeyFile(filepath.Join(cfg.DataDir, "token.key"))
		if err != nil {
			log.Fatalf("Failed to load token key: %v", err)
		}
	}
	cipher, err := security.NewTokenCipher(tokenSecret, "")
	if err != nil {
		log.Fatalf("Failed to create token cipher: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewSyncMetrics(registry)

	// Stores
	billStore := store.NewBillStore()
	historyStore := store.NewSyncHistoryStore()
	autoSyncStore := store.NewAutoSyncStore()
	tokenStore := store.NewTokenStore(cipher)

	apiClient := billapi.NewClient(tokenStore, billapi.Options{
		BaseURL:        cfg.Remote.URL,
		PageSize:       cfg.Remote.PageSize,
		RequestTimeout: cfg.Remote.RequestTimeout,
		MaxAttempts:    cfg.Remote.MaxAttempts,
		RetryDelay:     cfg.Remote.RetryDelay,
		MinPageDelay:   cfg.Remote.MinPageDelay,
		MaxPageDelay:   cfg.Remote.MaxPageDelay,
	})

	// Services
	syncSvc := service.NewSyncService(apiClient, billStore, historyStore, service.SyncOptions{
		PageSize: cfg.Remote.PageSize,
		Location: time.Local,
		Metrics:  syncMetrics,
	})
	autoSyncSvc := service.NewAutoSyncService(syncSvc, autoSyncStore, clock.Real(), syncMetrics, time.Local)
	historySvc := service.NewHistoryService(historyStore, clock.Real(), cfg.History.RetentionDays)
	billSvc := service.NewBillService(billStore, clock.Real(), time.Local)
	tokenSvc := service.NewTokenService(apiClient, tokenStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background runs and progress streams outlive requests but not the process.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	autoSyncSvc.Start(runCtx, cfg.AutoSync.CheckInterval)
	historySvc.StartCleanup(runCtx, cfg.History.CleanupInterval)
	slog.Info("background jobs started",
		"component", "server",
		"autosync_interval", cfg.AutoSync.CheckInterval.String(),
		"history_cleanup_interval", cfg.History.CleanupInterval.String(),
		"history_retention_days", cfg.History.RetentionDays,
	)

	drainState := lifecycle.NewDrainer()

	// Handlers
	syncHandler := handler.NewSyncHandler(runCtx, syncSvc, historySvc, drainState)
	billHandler := handler.NewBillHandler(billSvc)
	autoSyncHandler := handler.NewAutoSyncHandler(autoSyncSvc)
	tokenHandler := handler.NewTokenHandler(tokenSvc)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logx.RequestIDMiddleware())
	r.Use(logx.AccessLogMiddleware("api_http", "/health", "/readyz", "/metrics"))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "Upgrade", "Connection", "Sec-WebSocket-Key", "Sec-WebSocket-Version", "Sec-WebSocket-Extensions", "Sec-WebSocket-Protocol"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(drainState.Middleware("/health", "/readyz"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if drainState.Draining() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "draining"})
			return
		}
		if err := store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		version, err := store.SchemaVersion(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "schema unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "schemaVersion": version})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	api.Use(auth.APIKeyMiddleware(cfg.APIKey))
	syncHandler.RegisterRoutes(api)
	billHandler.RegisterRoutes(api)
	autoSyncHandler.RegisterRoutes(api)
	tokenHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// Incremental syncs run inline and may walk many pages.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("api server starting", "component", "http_server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down api server", "component", "http_server")

		drainState.Begin()
		autoSyncSvc.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Ends progress streams and cancels a background full sync.
		cancelRuns()
		if werr := drainState.WaitStreams(shutdownCtx); werr != nil {
			slog.Warn("api drained with timeout", "component", "http_server", "open_streams", drainState.OpenStreams())
		}
		syncSvc.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "component", "http_server", "error", err)
		os.Exit(1)
	}
	slog.Info("api server stopped", "component", "http_server")
}
