package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/allisson/covert/internal/config"
)

// corsMethods are the methods /v1/sys accepts.
var corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// createCORSMiddleware returns nil when CORS is disabled or no origin survives parsing.
// The API is meant for operators and services, so CORS is off by default.
func createCORSMiddleware(cfg *config.Config, logger *slog.Logger) gin.HandlerFunc {
	if !cfg.CORSEnabled {
		return nil
	}

	origins := parseOrigins(cfg.CORSAllowOrigins)
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no origins configured, CORS will not be applied")
		return nil
	}

	logger.Info("CORS enabled", slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     corsMethods,
		AllowHeaders:     []string{"Authorization", "Content-Type", TokenHeader},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// parseOrigins splits a comma-separated origin list, dropping blanks and trailing slashes.
func parseOrigins(originsStr string) []string {
	var origins []string
	for part := range strings.SplitSeq(originsStr, ",") {
		origin := strings.TrimSuffix(strings.TrimSpace(part), "/")
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
