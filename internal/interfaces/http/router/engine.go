package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tpa/backend/internal/infrastructure/config"
	"github.com/tpa/backend/internal/infrastructure/logger"
	"github.com/tpa/backend/internal/infrastructure/telemetry"
	"github.com/tpa/backend/internal/interfaces/http/dto"
	"github.com/tpa/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// EngineOptions carries what the engine middleware needs
type EngineOptions struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Tracing     bool
	Profiling   bool
	Meter       *telemetry.MeterProvider
	// Limiter enables per-client rate limiting on the API routes
	Limiter *middleware.RateLimiter
	Logger  *zap.Logger
}

// NewEngine builds a gin engine with the middleware chain shared by every
// route. API routes added through the returned Router also get the body
// limit, the rate limit and the request timeout.
func NewEngine(opts EngineOptions) (*gin.Engine, *Router) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(opts.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
			log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
			_ = engine.SetTrustedProxies(nil)
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = opts.HTTP.CORSAllowOrigins
	if len(opts.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = opts.HTTP.CORSAllowMethods
	}
	if len(opts.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = opts.HTTP.CORSAllowHeaders
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(opts.ServiceName, opts.Tracing),
		middleware.SpanAnnotator(),
		middleware.HTTPMetrics(opts.Meter, log),
		middleware.Profiling(opts.Profiling, "/health", "/metrics"),
		middleware.Secure(),
		middleware.CORS(cors),
	)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})

	api := []gin.HandlerFunc{}
	if opts.HTTP.MaxBodySize > 0 {
		api = append(api, middleware.BodyLimit(opts.HTTP.MaxBodySize))
	}
	if opts.Limiter != nil {
		api = append(api, middleware.RateLimit(opts.Limiter))
	}
	if opts.HTTP.RequestTimeout > 0 {
		api = append(api, middleware.Timeout(opts.HTTP.RequestTimeout))
	}

	return engine, NewRouter(engine, WithMiddleware(api...))
}
