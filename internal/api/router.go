// Package api wires together all HTTP routes for the wandertale backend.
//
// Route grouping philosophy:
//   - /api/v1/auth/* and /api/v1/legacy/* are public. Login must work without
//     a session, and the legacy template mode deliberately requires no account.
//   - Everything under /api/v1 that touches a user's data (profile, API key,
//     stories, photos) sits behind the session middleware.
//   - /api/v1/photos/files/* serves archived photo bytes when the local
//     storage backend is configured with serve_directly. It is session-scoped
//     like the rest of the photo routes; a caller can only read paths that
//     match their own photo rows.
package api

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/wandertale/wandertale/internal/api/accounts"
	"github.com/wandertale/wandertale/internal/api/legacy"
	"github.com/wandertale/wandertale/internal/api/stories"
	"github.com/wandertale/wandertale/internal/auth"
	"github.com/wandertale/wandertale/internal/auth/oidc"
	"github.com/wandertale/wandertale/internal/config"
	"github.com/wandertale/wandertale/internal/crypto"
	"github.com/wandertale/wandertale/internal/db/repositories"
	"github.com/wandertale/wandertale/internal/gemini"
	"github.com/wandertale/wandertale/internal/middleware"
	"github.com/wandertale/wandertale/internal/narrative"
	"github.com/wandertale/wandertale/internal/services"
	"github.com/wandertale/wandertale/internal/storage"

	// Import storage backends to register them
	_ "github.com/wandertale/wandertale/internal/storage/local"
	_ "github.com/wandertale/wandertale/internal/storage/s3"
)

// Version is the reported service version. Overridden at build time via
// -ldflags "-X github.com/wandertale/wandertale/internal/api.Version=...".
var Version = "0.1.0"

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) is responsible for calling Shutdown()
// when the process receives a termination signal.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
	redisClient  *redis.Client
}

// Shutdown stops all background goroutines and closes shared connections.
// It should be called after the HTTP server has been shut down so that
// in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize storage backend
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	log.Printf("Initialized storage backend: %s", cfg.Storage.DefaultBackend)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	photoRepo := repositories.NewPhotoRepository(db)

	// Initialize the credential cipher from the configured key material
	cipher, err := newCipher(&cfg.Vault)
	if err != nil {
		log.Fatalf("Failed to initialize credential cipher: %v", err)
	}

	// Initialize the session token authenticator
	tokens, err := auth.NewTokenAuthenticator([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("Failed to initialize token authenticator: %v", err)
	}

	accountService := services.NewAccountService(userRepo, cipher, tokens)

	// Initialize the OIDC provider if federated login is enabled
	var oidcProvider *oidc.OIDCProvider
	if cfg.Auth.OIDC.Enabled {
		oidcProvider, err = oidc.NewOIDCProvider(&cfg.Auth.OIDC)
		if err != nil {
			log.Fatalf("Failed to initialize OIDC provider: %v", err)
		}
		log.Printf("Federated login enabled (issuer: %s)", cfg.Auth.OIDC.IssuerURL)
	}

	modelClient := gemini.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.Model, cfg.Gemini.Timeout)

	accountHandlers := accounts.NewHandlers(accountService, oidcProvider, cfg.Server.GetPublicURL())
	storyHandlers := stories.NewHandlers(
		accountService, modelClient, photoRepo,
		storageBackend, cfg.Storage.DefaultBackend, cfg.Gemini.MaxImageBytes,
	)
	legacyHandlers := legacy.NewHandlers(narrative.NewGenerator())

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	// The combined deployment serves the SPA shell too, which needs a CSP
	// that lets the story view render archived photos.
	headerProfile := middleware.APISecurityHeadersConfig()
	if cfg.Server.StaticDir != "" {
		headerProfile = middleware.AppSecurityHeadersConfig()
	}
	router.Use(middleware.SecurityHeadersMiddleware(headerProfile))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes storage backend probe)
	router.GET("/ready", readinessHandler(db, storageBackend))

	// API version
	router.GET("/version", versionHandler())

	// Initialize rate limiters
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	uploadRateLimiter := middleware.NewRateLimiter(middleware.UploadRateLimitConfig())

	bg := &BackgroundServices{
		rateLimiters: []*middleware.RateLimiter{authRateLimiter, generalRateLimiter, uploadRateLimiter},
	}

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (no auth required, but rate limited).
		// When a Redis address is configured the login endpoints get a second,
		// Redis-backed limiter so brute-force counting survives restarts and
		// is shared across replicas.
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		if addr := cfg.Security.RateLimiting.RedisAddr; addr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: cfg.Security.RateLimiting.RedisPassword,
			})
			bg.redisClient = client
			redisLimiter := middleware.NewRedisRateLimiter(
				client,
				cfg.Security.RateLimiting.RequestsPerMinute,
				cfg.Security.RateLimiting.Burst,
			)
			authGroup.Use(redisLimiter.Middleware())
			log.Printf("Redis rate limiter enabled for auth endpoints (%s)", addr)
		}
		{
			authGroup.POST("/register", accountHandlers.Register)
			authGroup.POST("/login", accountHandlers.Login)
			authGroup.GET("/oauth/login", accountHandlers.OAuthLogin)
			authGroup.GET("/oauth/callback", accountHandlers.OAuthCallback)
		}

		// Public legacy endpoints (stateless template mode, no account needed)
		legacyGroup := apiV1.Group("/legacy")
		legacyGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			legacyGroup.GET("/gallery", legacyHandlers.Gallery)
			legacyGroup.POST("/segment", legacyHandlers.Segment)
		}

		// Authenticated-only endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.SessionAuthMiddleware(tokens))
		authenticatedGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			authenticatedGroup.GET("/user/me", accountHandlers.Me)
			authenticatedGroup.PUT("/user/key", accountHandlers.SetKey)

			// Photo analysis carries multipart image bodies; throttle it harder
			// than plain JSON traffic.
			authenticatedGroup.POST("/stories/analyze",
				middleware.RateLimitMiddleware(uploadRateLimiter), storyHandlers.Analyze)
			authenticatedGroup.POST("/stories/generate", storyHandlers.Generate)

			authenticatedGroup.GET("/photos", storyHandlers.ListPhotos)
			authenticatedGroup.GET("/photos/:id/url", storyHandlers.PhotoURL)
			authenticatedGroup.DELETE("/photos/:id", storyHandlers.DeletePhoto)

			// Direct file serving for local storage with ServeDirectly
			// enabled. Owner-scoped: the path must match one of the caller's
			// archived photos.
			authenticatedGroup.GET("/photos/files/*filepath", storyHandlers.ServeFile)
		}
	}

	// Serve the built frontend, when configured, with an index.html fallback
	// for client-side routes.
	if cfg.Server.StaticDir != "" {
		registerStatic(router, cfg.Server.StaticDir)
	}

	return router, bg
}

// newCipher builds the credential cipher from either a raw 32-byte key or a
// passphrase-derived one, depending on which the config provides. The salt is
// configured hex-encoded and must decode to at least 16 bytes.
func newCipher(cfg *config.VaultConfig) (*crypto.CredentialCipher, error) {
	if cfg.EncryptionKey != "" {
		return crypto.NewCredentialCipher([]byte(cfg.EncryptionKey))
	}
	salt, err := hex.DecodeString(cfg.Salt)
	if err != nil {
		return nil, fmt.Errorf("vault.salt is not valid hex: %w", err)
	}
	return crypto.DeriveCredentialCipher(cfg.Passphrase, salt, cfg.Iterations)
}

// registerStatic serves the compiled frontend bundle. Unknown non-API paths
// fall back to index.html so the SPA router can handle them.
func registerStatic(router *gin.Engine, dir string) {
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		requested := filepath.Join(dir, filepath.Clean("/"+c.Request.URL.Path))
		if info, err := os.Stat(requested); err == nil && !info.IsDir() {
			c.File(requested)
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also checks the storage backend so
// that a Kubernetes readiness gate fails when uploads/downloads would error.
func readinessHandler(db *sql.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Check storage backend — probe with a known-absent sentinel path.
		// Exists() exercises authentication and network connectivity without
		// creating any state.
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.Any("request_id", requestID),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
