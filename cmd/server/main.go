package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "github.com/tpa/backend/docs"
	appservice "github.com/tpa/backend/internal/application/transferpricing"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	"github.com/tpa/backend/internal/infrastructure/cache"
	"github.com/tpa/backend/internal/infrastructure/config"
	"github.com/tpa/backend/internal/infrastructure/logger"
	"github.com/tpa/backend/internal/infrastructure/persistence"
	"github.com/tpa/backend/internal/infrastructure/storage"
	"github.com/tpa/backend/internal/infrastructure/strategy"
	"github.com/tpa/backend/internal/infrastructure/telemetry"
	"github.com/tpa/backend/internal/interfaces/http/handler"
	"github.com/tpa/backend/internal/interfaces/http/middleware"
	"github.com/tpa/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			TPA Engine API
//	@version		1.0
//	@description	Transfer-pricing adjustment engine: rule affectation, adjustment solving and fiscal aggregation.

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Fields: map[string]string{"env": cfg.App.Env, "version": cfg.App.Version},
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log := logsProvider.Bridge(baseLog, logger.ParseLevel(cfg.Telemetry.LogsLevel))
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting TPA engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.ProfilingServerAddress,
		ApplicationName:     cfg.Telemetry.ServiceName,
		BasicAuthUser:       cfg.Telemetry.ProfilingAuthUser,
		BasicAuthPassword:   cfg.Telemetry.ProfilingAuthPassword,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	var engineMetrics *telemetry.EngineMetrics
	if cfg.Telemetry.PrometheusEnabled {
		engineMetrics = telemetry.NewEngineMetrics(nil)
	}

	// Optional exchange-rate store
	var (
		rateRepo currency.RateRepository
		system   = handler.NewSystemHandler(cfg.App.Name, cfg.App.Version)
	)
	if cfg.Database.Enabled() {
		db, err := persistence.NewDatabase(&cfg.Database, log,
			persistence.WithLogLevel(cfg.Log.Level),
			persistence.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
		if cfg.Telemetry.DBTraceEnabled {
			tracing := telemetry.DefaultDBTracingConfig()
			tracing.Enabled = true
			tracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
			if cfg.Telemetry.DBSlowQueryThresh > 0 {
				tracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
			}
			if err := telemetry.NewDBTracingPlugin(tracing, log).Register(db.DB); err != nil {
				log.Fatal("Failed to register database tracing", zap.Error(err))
			}
		}
		system.WithCheck("database", db).WithPool(db)
		rateRepo = persistence.NewGormExchangeRateRepository(db.DB)
		log.Info("Exchange-rate store connected")

		if cfg.Redis.Enabled() {
			client, err := cache.NewRedisClient(ctx, cfg.Redis)
			if err != nil {
				log.Fatal("Failed to connect to Redis", zap.Error(err))
			}
			defer client.Close()
			system.WithCheck("redis", handler.PingFunc(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}))
			rateRepo = cache.NewRateTableCache(rateRepo, client, cfg.Rates.CacheTTL, log)
			log.Info("Rate table cache enabled", zap.Duration("ttl", cfg.Rates.CacheTTL))
		}
	} else {
		log.Info("No database configured, computations use the rates sent with each request")
	}

	// Engine
	registry, err := strategy.NewRegistryWithDefaults()
	if err != nil {
		log.Fatal("Failed to register method strategies", zap.Error(err))
	}
	policy, err := cfg.Convergence.Policy()
	if err != nil {
		log.Fatal("Invalid convergence policy", zap.Error(err))
	}
	service, err := appservice.NewComputationService(registry, policy, engineMetrics)
	if err != nil {
		log.Fatal("Failed to create computation service", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go limiter.Run(ctx)
	}

	engine, r := router.NewEngine(router.EngineOptions{
		HTTP:        cfg.HTTP,
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     tracerProvider.IsEnabled(),
		Profiling:   profiler.IsEnabled(),
		Meter:       meterProvider,
		Limiter:     limiter,
		Logger:      log,
	})

	base := valueobject.NormalizeCurrency(cfg.Rates.Base)
	var rateSource handler.RateSource
	if rateRepo != nil {
		rateSource = rateRepo
	}
	tpaHandler := handler.NewTPAHandler(service, rateSource, base)
	if cfg.Storage.Enabled() {
		archive, err := storage.NewRunArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to configure run archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare run archive bucket", zap.Error(err))
		}
		tpaHandler.WithArchive(archive)
		system.WithCheck("storage", archive)
		log.Info("Run archive enabled", zap.String("bucket", archive.Bucket()))
	}
	methodHandler := handler.NewMethodHandler(registry)

	tpaRoutes := router.NewDomainGroup("tpa", "/tpa")
	tpaRoutes.POST("/parse-data", tpaHandler.ParseData)
	tpaRoutes.POST("/parse-rules", tpaHandler.ParseRules)
	tpaRoutes.POST("/affectation", tpaHandler.Affectation)
	tpaRoutes.POST("/computation", tpaHandler.Computation)
	tpaRoutes.GET("/methods", methodHandler.List)
	tpaRoutes.GET("/runs/:id", tpaHandler.Run)
	r.Register(tpaRoutes)

	if rateRepo != nil {
		rateHandler := handler.NewRateHandler(rateRepo, base)
		rateRoutes := router.NewDomainGroup("rates", "/rates")
		rateRoutes.POST("", rateHandler.Save)
		rateRoutes.GET("/latest", rateHandler.Latest)
		r.Register(rateRoutes)
	}
	for _, rt := range r.Setup() {
		log.Debug("Route registered", zap.String("method", rt.Method), zap.String("path", rt.Path))
	}

	engine.GET("/health", system.Health)
	if cfg.Telemetry.PrometheusEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	engine.GET("/swagger/*any",
		middleware.DocsAccess(middleware.DocsConfig{Enabled: cfg.Swagger.Enabled, AllowedIPs: cfg.Swagger.AllowedIPs}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Log provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
