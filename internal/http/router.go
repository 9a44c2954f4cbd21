// Package httpapi wires the HTTP transport (Gin) to the application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting, then
// mounts the REST routes and the websocket endpoint.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/avoren/go-messenger-backend/internal/config"
	"github.com/avoren/go-messenger-backend/internal/http/handlers"
	"github.com/avoren/go-messenger-backend/internal/http/middleware"
	"github.com/avoren/go-messenger-backend/internal/presence"
	"github.com/avoren/go-messenger-backend/internal/repo"
	"github.com/avoren/go-messenger-backend/internal/services"
	"github.com/avoren/go-messenger-backend/internal/ws"
)

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. ContextLogger: request-scoped logger for handlers and services
//  4. RedactingLogger: structured access logs with PII scrubbing
//  5. Recovery: capture panics after logging is in place
//  6. Body size limiter
//  7. Gzip (skipping the websocket and metrics endpoints)
//  8. Metrics
//  9. Idempotency validator (before rate limiting to allow replay bypass)
//  10. Rate limiter (per user/IP)
//  11. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, state *repo.RedisState, registry *presence.Registry, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Request-scoped logger, reachable via log.Ctx in the services
	r.Use(middleware.ContextLogger())

	// 4) Structured access logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Response compression; hijacked and streaming endpoints excluded
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	// 8) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 9) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(state.ClaimIdempotencyKey, cfg.IdempotencyTTL))

	// 10) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 11) CORS posture (allow all when no origins configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, "not_found", "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← db/state/registry
	accounts := services.NewAccountService(db, cfg.BcryptCost)
	chats := services.NewChatService(accounts, state)
	messages := services.NewMessageService(accounts, state, registry, cfg.MaxMessageRunes)

	auth := handlers.NewAuthHandler(accounts)
	chat := handlers.NewChatHandler(chats)
	msg := handlers.NewMessageHandler(messages)
	keys := handlers.NewKeyHandler(messages)
	wsh := ws.NewHandler(cfg.WS, registry, accounts, messages, chats, cfg.CORS.AllowedOrigins)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Accounts
		api.POST("/register", auth.Register)
		api.POST("/login", auth.Login)
		api.GET("/search/users", auth.Search)

		// Chat overview
		api.GET("/chats", chat.GetOverview)
		api.POST("/chats", chat.AddChat)
		api.DELETE("/chats", chat.RemoveChat)
		api.POST("/chats/read", chat.MarkRead)

		// Messages
		api.GET("/messages/:room", msg.History)
		api.POST("/messages", msg.Send)

		// Public keys
		api.POST("/public-key", keys.SetKey)
		api.GET("/public-key/:username", keys.GetKey)
	}

	// Websocket sessions (outside the API base path, like /health and /metrics)
	r.GET("/ws", wsh.Serve)
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Oversized bodies error on first read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
