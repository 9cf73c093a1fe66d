package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mverbeek/windmask-monitor/internal/cache"
	"github.com/mverbeek/windmask-monitor/internal/client"
	"github.com/mverbeek/windmask-monitor/internal/config"
	httphandler "github.com/mverbeek/windmask-monitor/internal/http"
	"github.com/mverbeek/windmask-monitor/internal/observability"
	"github.com/mverbeek/windmask-monitor/internal/poller"
	"github.com/mverbeek/windmask-monitor/internal/service"
	"github.com/mverbeek/windmask-monitor/internal/views"
)

func main() {
	_ = godotenv.Load()

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

	if err := views.LoadTemplates(); err != nil {
		logger.Fatal("templates", zap.Error(err))
	}

	edrClient, err := client.NewEDRClient(cfg.EDRToken, cfg.EDRBaseURL, cfg.EDRTimeout)
	if err != nil {
		logger.Fatal("edr client", zap.Error(err))
	}

	var observationCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		observationCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		observationCache = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	windService, err := service.NewWindStatusService(edrClient, observationCache, cfg.CacheTTL, cfg.Stations)
	if err != nil {
		logger.Fatal("wind status service", zap.Error(err))
	}

	var cachePing func() error
	if memcacheCloser != nil {
		cachePing = memcacheCloser.Ping
	}
	handler := httphandler.NewHandler(windService, edrClient, logger, cfg.DefaultLookbackHours, cfg.DefaultRefreshSeconds, cachePing)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	var backgroundPoller *poller.Poller
	if cfg.PollEnabled {
		stationIDs := make([]string, 0, len(cfg.Stations))
		for _, st := range cfg.Stations {
			stationIDs = append(stationIDs, st.ID)
		}
		backgroundPoller = poller.New(windService, stationIDs, cfg.DefaultLookbackHours, cfg.EDRTimeout, logger)
		if err := backgroundPoller.Start(cfg.PollInterval); err != nil {
			logger.Fatal("poller", zap.Error(err))
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	dashboard := httphandler.RateLimitMiddleware(limiter)(
		httphandler.TimeoutMiddleware(cfg.RequestTimeout)(http.HandlerFunc(handler.Dashboard)))
	router.Handle("/", dashboard).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/status/{station}", handler.GetStatus).Methods("GET")

	corsOpts := cors.Options{AllowedMethods: []string{"GET"}}
	if len(cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = cfg.AllowedOrigins
	}
	rootHandler := cors.New(corsOpts).Handler(router)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      rootHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
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
	if backgroundPoller != nil {
		backgroundPoller.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
