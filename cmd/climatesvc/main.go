package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tmarchal/climatekit/internal/cache"
	"github.com/tmarchal/climatekit/internal/circuitbreaker"
	"github.com/tmarchal/climatekit/internal/config"
	"github.com/tmarchal/climatekit/internal/era5"
	"github.com/tmarchal/climatekit/internal/gdd"
	"github.com/tmarchal/climatekit/internal/httpapi"
	"github.com/tmarchal/climatekit/internal/lifecycle"
	"github.com/tmarchal/climatekit/internal/observability"
	"github.com/tmarchal/climatekit/internal/openmeteo"
	"github.com/tmarchal/climatekit/internal/parquet"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	archiveClient, err := openmeteo.NewClientWithRetry(
		cfg.ArchiveAPIURL,
		cfg.ArchiveAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("archive client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "archive_api",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("archive_api", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("archive_api", float64(to))
			},
		})
		archiveClient.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("archive_api", 0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}
	gddService := gdd.NewService(archiveClient, cacheSvc, cfg.CacheTTL)

	store, err := era5.NewStore(cfg.StoreURL, cfg.StoreTimeout)
	if err != nil {
		logger.Fatal("era5 store", zap.Error(err))
	}
	openCtx, openCancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	if err := store.Open(openCtx); err != nil {
		// A store that is merely unreachable should not block startup; the
		// other endpoints do not depend on it.
		if errors.Is(err, era5.ErrStoreUnavailable) {
			logger.Warn("era5 store unreachable at startup", zap.Error(err))
		} else {
			logger.Fatal("era5 store metadata", zap.Error(err))
		}
	}
	openCancel()

	table := parquet.DefaultTable()
	if cfg.PeriodTablePath != "" {
		table, err = parquet.LoadTable(cfg.PeriodTablePath)
		if err != nil {
			logger.Fatal("period table", zap.Error(err))
		}
		logger.Info("period table loaded", zap.String("path", cfg.PeriodTablePath), zap.String("version", table.Version))
	}
	generator := parquet.NewGenerator(cfg.ParquetBaseURL, table)

	healthConfig := &httpapi.HealthConfig{StartTime: time.Now()}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httpapi.NewHandler(
		gddService,
		archiveClient,
		store,
		cfg.StoreVariable,
		generator,
		cfg.DefaultBaseTemp,
		healthConfig,
		logger,
	)

	router := mux.NewRouter()
	router.Use(httpapi.CorrelationIDMiddleware(logger))
	router.Use(httpapi.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	dataRouter := router.NewRoute().Subrouter()
	dataRouter.Use(httpapi.RateLimitMiddleware(limiter))
	dataRouter.Use(httpapi.TimeoutMiddleware(cfg.RequestTimeout))
	dataRouter.HandleFunc("/gdd", handler.GetGDD).Methods("GET")
	dataRouter.HandleFunc("/parquet-urls", handler.GetParquetURLs).Methods("GET")
	dataRouter.HandleFunc("/era5/summary", handler.GetERA5Summary).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
