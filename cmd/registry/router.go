package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/keyregistry/internal/health"
	"github.com/jmerrifield20/keyregistry/internal/identity"
	"github.com/jmerrifield20/keyregistry/internal/keys"
	"github.com/jmerrifield20/keyregistry/internal/registry/handler"
	"go.uber.org/zap"
)

type routerConfig struct {
	backend        *backend
	tokens         *identity.TokenIssuer
	challenges     *identity.ChallengeStore
	adminHash      string
	corsOrigins    []string
	rateLimitRPS   int
	healthInterval time.Duration
}

// newRouter wires the registry, credential, auth and ledger handlers into a
// Gin engine with the standard middleware chain.
func newRouter(ctx context.Context, cfg routerConfig, logger *zap.Logger) *gin.Engine {
	audit := handler.InstrumentLedger(cfg.backend.ledger)

	registry := keys.NewRegistry(cfg.backend.store, cfg.backend.authority, logger)
	registry.SetLedger(audit)
	registry.SetMetrics(handler.RecordKeyWrite)

	keyHandler := handler.NewKeyHandler(registry, cfg.tokens, logger)
	credHandler := handler.NewCredentialHandler(cfg.backend.authority, cfg.tokens, cfg.adminHash, logger)
	credHandler.SetLedger(audit)
	authHandler := handler.NewAuthHandler(cfg.challenges, cfg.tokens, logger)
	ledgerHandler := handler.NewLedgerHandler(audit, logger)

	checker := health.New(map[string]health.ProbeFunc{
		"storage": cfg.backend.ping,
		"ledger":  cfg.backend.ledger.Verify,
	}, health.Config{CheckInterval: cfg.healthInterval}, logger)
	checker.SetMetricsRecord(handler.RecordProbe)
	checker.SetDegraded(handler.RecordProbeDegraded)
	checker.CheckAll(ctx)
	go checker.Start(ctx)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", identity.AdminSecretHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.corsOrigins),
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if cfg.rateLimitRPS > 0 {
		router.Use(handler.RateLimiter(ctx, cfg.rateLimitRPS, cfg.rateLimitRPS*2))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		report := checker.Report()
		if report.Status != "ok" {
			c.JSON(http.StatusServiceUnavailable, report)
			return
		}
		c.JSON(http.StatusOK, report)
	})
	router.GET("/metrics", handler.MetricsHandler())
	router.GET("/.well-known/jwks.json", identity.JWKSHandler(cfg.tokens))

	v1 := router.Group("/api/v1")
	keyHandler.Register(v1)
	credHandler.Register(v1)
	authHandler.Register(v1)
	ledgerHandler.Register(v1)

	return router
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
