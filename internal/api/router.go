// Package api wires together all HTTP routes for the clubroom backend.
//
// Route grouping:
//   - /health, /ready, /version and the API docs are public.
//   - /api/club/* requires a verified caller. When auth.allow_identity_fallback is
//     enabled the group switches to optional auth so handlers can fall back to a
//     client-supplied profile_id.
//   - /files/* serves thumbnails for the local storage backend only.
//
// The docs page at /api-docs/ uses a nonce-based Content Security Policy because
// the CDN-loaded Swagger UI bundle needs inline scripts.
package api

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clubroom/clubroom/internal/api/clubs"
	"github.com/clubroom/clubroom/internal/api/docs"
	"github.com/clubroom/clubroom/internal/config"
	"github.com/clubroom/clubroom/internal/middleware"
	"github.com/clubroom/clubroom/internal/notify"
	"github.com/clubroom/clubroom/internal/storage"
	"github.com/clubroom/clubroom/internal/storage/local"
)

const version = "0.1.0"

// BackgroundServices holds resources that must be released during graceful
// shutdown. The caller (cmd/server) calls Shutdown after the HTTP server has
// drained in-flight requests.
type BackgroundServices struct {
	limiter middleware.Limiter
}

// Shutdown releases the rate limiter and its backing connection, if any.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.limiter != nil {
		if err := bg.limiter.Close(); err != nil {
			slog.Warn("failed to close rate limiter", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. notifier may be nil when
// invitation emails are disabled.
func NewRouter(cfg *config.Config, db *sql.DB, storageBackend storage.Storage, notifier *notify.Notifier) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()
	bg := &BackgroundServices{}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, storageBackend))
	router.GET("/version", versionHandler())

	router.GET("/api-docs/index.html", swaggerUIHandler)
	router.GET("/api-docs/", swaggerUIHandler)
	router.GET("/api-docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/api-docs/")
	})
	router.GET("/openapi.json", openAPIHandler(cfg.ApiDocs))

	if ls, ok := storageBackend.(*local.LocalStorage); ok {
		files := router.Group(local.FilesRoute)
		files.Use(middleware.SecurityHeadersMiddleware(middleware.FilesSecurityHeadersConfig()))
		files.GET("/*filepath", serveFileHandler(ls.BasePath()))
	}

	club := router.Group("/api/club")
	if cfg.Auth.AllowIdentityFallback {
		slog.Warn("identity fallback enabled: /api/club accepts client-supplied profile_id")
		club.Use(middleware.OptionalAuthMiddleware())
	} else {
		club.Use(middleware.AuthMiddleware())
	}
	if cfg.Security.RateLimiting.Enabled {
		limiter, err := middleware.NewLimiter(cfg.Security.RateLimiting)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		bg.limiter = limiter
		club.Use(middleware.RateLimitMiddleware(limiter))
	}

	clubHandlers := clubs.NewClubHandlers(cfg, db, storageBackend, notifier)
	clubHandlers.RegisterRoutes(club, middleware.ThumbnailUploadMiddleware(cfg.Uploads.MaxThumbnailBytes))

	return router, bg, nil
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
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

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and the thumbnail storage backend.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike /health, it also probes the storage backend so a readiness gate fails
// when club creation would be unable to store thumbnails.
func readinessHandler(db *sql.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// A known-absent key exercises credentials and connectivity without writing.
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

// @Summary      API version
// @Description  Returns the server and API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     version,
			"api_version": "v1",
		})
	}
}

// openAPIHandler serves the assembled OpenAPI document with the configured metadata.
func openAPIHandler(meta config.ApiDocsConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := docs.JSON(meta)
		if err != nil {
			slog.Error("failed to build API docs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build API docs"})
			return
		}
		c.Header("Access-Control-Allow-Origin", "*")
		c.Data(http.StatusOK, "application/json", out)
	}
}

func swaggerUIHandler(c *gin.Context) {
	nb := make([]byte, 16)
	if _, err := rand.Read(nb); err != nil {
		c.String(http.StatusInternalServerError, "failed to generate nonce")
		return
	}
	nonce := base64.StdEncoding.EncodeToString(nb)

	c.Header("X-Frame-Options", "SAMEORIGIN")
	c.Header("Content-Security-Policy", fmt.Sprintf(
		"default-src 'self' https:; script-src 'self' 'nonce-%s' https:; style-src 'self' 'nonce-%s' https:; img-src 'self' data: https:; font-src 'self' https:; connect-src 'self' https:",
		nonce, nonce,
	))

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
	<head>
		<title>clubroom API</title>
		<meta charset="utf-8"/>
		<meta name="viewport" content="width=device-width, initial-scale=1">
		<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/swagger-ui/4.15.5/swagger-ui.min.css">
		<style nonce="%s">
			html { box-sizing: border-box; overflow-y: scroll; }
			*, *:before, *:after { box-sizing: inherit; }
			body { margin: 0; }
		</style>
	</head>

	<body>
		<div id="swagger-ui"></div>

		<script src="https://cdnjs.cloudflare.com/ajax/libs/swagger-ui/4.15.5/swagger-ui-bundle.min.js" crossorigin></script>
		<script src="https://cdnjs.cloudflare.com/ajax/libs/swagger-ui/4.15.5/swagger-ui-standalone-preset.min.js" crossorigin></script>
		<script nonce="%s">
		window.onload = function() {
			window.ui = SwaggerUIBundle({
				url: "/openapi.json",
				dom_id: '#swagger-ui',
				deepLinking: true,
				presets: [
					SwaggerUIBundle.presets.apis,
					SwaggerUIBundle.SwaggerUIStandalonePreset
				],
				layout: "BaseLayout",
				docExpansion: "list"
			})
		}
	</script>
	</body>
</html>`, nonce, nonce)

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// serveFileHandler serves objects written by the local storage backend.
func serveFileHandler(basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("filepath"), "/")
		full := filepath.Join(basePath, filepath.FromSlash(key))
		rel, err := filepath.Rel(basePath, full)
		if key == "" || err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		if strings.HasPrefix(filepath.Base(full), ".") {
			// temporary upload files
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		if info, err := os.Stat(full); err != nil || info.IsDir() {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.File(full)
	}
}

// LoggerMiddleware emits one structured slog record per request. The output format
// (json or text) follows the handler installed by telemetry.SetupLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", redactQuery(query)),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", middleware.RequestID(c)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// redactQuery drops search terms from logged queries; emails are personal data.
func redactQuery(query string) string {
	if !strings.Contains(query, "email=") {
		return query
	}
	parts := strings.Split(query, "&")
	for i, p := range parts {
		if strings.HasPrefix(p, "email=") {
			parts[i] = "email=REDACTED"
		}
	}
	return strings.Join(parts, "&")
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

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
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
