package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"practice-trading-engine/config"
	"practice-trading-engine/internal/auth"
	"practice-trading-engine/internal/database"
	"practice-trading-engine/internal/events"
	"practice-trading-engine/internal/logging"
	"practice-trading-engine/internal/scenario"
	"practice-trading-engine/internal/vault"
)

// ==================== RATE LIMITER ====================

// RateLimiter provides simple in-memory rate limiting per client and path.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a rate limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks whether a request from the given key is permitted.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	times := rl.requests[key]
	valid := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// RateLimitMiddleware returns a gin middleware enforcing the limiter keyed
// by client IP and request path.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + c.FullPath()
		if !rl.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded, please slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ==================== SERVER ====================

// Server is the HTTP API server for the practice engine.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	repo        *database.Repository
	cache       *database.ScenarioCache
	generator   *scenario.Generator
	authService *auth.Service
	eventBus    *events.EventBus
	vaultClient *vault.Client
	log         zerolog.Logger

	generateLimiter *RateLimiter
}

// NewServer creates the API server. repo and authService may be nil when the
// database or authentication is disabled; affected routes degrade gracefully.
func NewServer(cfg *config.Config, repo *database.Repository, cache *database.ScenarioCache,
	generator *scenario.Generator, authService *auth.Service, eventBus *events.EventBus,
	vaultClient *vault.Client, logger zerolog.Logger) *Server {

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:             cfg,
		repo:            repo,
		cache:           cache,
		generator:       generator,
		authService:     authService,
		eventBus:        eventBus,
		vaultClient:     vaultClient,
		log:             logging.Component(logger, "api"),
		generateLimiter: NewRateLimiter(30, time.Minute),
	}

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(s.traceMiddleware())

	corsConfig := cors.DefaultConfig()
	if cfg.ServerConfig.AllowedOrigins != "" {
		corsConfig.AllowOrigins = []string{cfg.ServerConfig.AllowedOrigins}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	s.router.Use(cors.New(corsConfig))

	s.setupRoutes()

	InitWebSocket(eventBus, s.log)

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")

	// Authentication routes are always registered; handlers reject when the
	// auth service is not configured.
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
	}

	api := v1.Group("")
	if s.authService != nil {
		api.Use(auth.OptionalMiddleware(s.authService.GetJWTManager()))
	}

	analysis := api.Group("/analysis")
	{
		analysis.POST("/indicators", s.handleAnalyzeIndicators)
		analysis.POST("/levels", s.handleAnalyzeLevels)
		analysis.POST("/patience", s.handleAnalyzePatience)
	}

	scenarios := api.Group("/scenarios")
	{
		scenarios.POST("", RateLimitMiddleware(s.generateLimiter), s.handleGenerateScenario)
		scenarios.GET("", s.handleListScenarios)
		scenarios.GET("/:id", s.handleGetScenario)
		scenarios.POST("/:id/attempts", s.handleSubmitAttempt)
	}

	if s.authService != nil {
		protected := v1.Group("")
		protected.Use(auth.Middleware(s.authService.GetJWTManager()))
		protected.GET("/auth/me", s.handleGetMe)
		protected.GET("/attempts", s.handleListAttempts)
		protected.GET("/attempts/stats", s.handleAttemptStats)

		admin := v1.Group("/admin")
		admin.Use(auth.Middleware(s.authService.GetJWTManager()), auth.RequireAdmin())
		admin.PUT("/narrative-keys/:provider", s.handleSetNarrativeKey)
		admin.DELETE("/narrative-keys/:provider", s.handleDeleteNarrativeKey)
	}
}

// traceMiddleware attaches a trace ID and a trace-scoped logger to every
// request and echoes the ID back to the caller.
func (s *Server) traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _ := logging.WithTraceContext(c.Request.Context(), s.log)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", logging.TraceID(ctx))
		c.Next()
	}
}

// Start begins listening for HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ServerConfig.Host, s.cfg.ServerConfig.Port)

	readTimeout := time.Duration(s.cfg.ServerConfig.ReadTimeout) * time.Second
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := time.Duration(s.cfg.ServerConfig.WriteTimeout) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("API server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("API server shutting down")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ==================== HEALTH ====================

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	checks := gin.H{}

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.HealthCheck(ctx); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "disabled"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

// requestLog returns the trace-scoped logger for a request. Outside a traced
// context (tests driving handlers directly) it falls back to the server log.
func (s *Server) requestLog(c *gin.Context) *zerolog.Logger {
	if l := logging.FromContext(c.Request.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}

// ==================== RESPONSE HELPERS ====================

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"success": false,
		"error":   message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
