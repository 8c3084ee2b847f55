package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nordcrm/pipeline-api/internal/config"
	"github.com/nordcrm/pipeline-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func corsHandler(cfg *config.CORSConfig, environment string) http.Handler {
	return middleware.CORS(cfg, environment, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS(t *testing.T) {
	baseCfg := func() *config.CORSConfig {
		return &config.CORSConfig{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}
	}

	t.Run("explicit origin is allowed", func(t *testing.T) {
		cfg := baseCfg()
		cfg.AllowedOrigins = []string{"https://app.nordcrm.io"}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		req.Header.Set("Origin", "https://app.nordcrm.io")

		rec := httptest.NewRecorder()
		corsHandler(cfg, "production").ServeHTTP(rec, req)

		assert.Equal(t, "https://app.nordcrm.io", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin is rejected", func(t *testing.T) {
		cfg := baseCfg()
		cfg.AllowedOrigins = []string{"https://app.nordcrm.io"}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		req.Header.Set("Origin", "https://evil.example.com")

		rec := httptest.NewRecorder()
		corsHandler(cfg, "production").ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard reflects any origin", func(t *testing.T) {
		cfg := baseCfg()
		cfg.AllowedOrigins = []string{"*"}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		req.Header.Set("Origin", "https://anything.example.com")

		rec := httptest.NewRecorder()
		corsHandler(cfg, "development").ServeHTTP(rec, req)

		assert.Equal(t, "https://anything.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origins configured denies in production", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		req.Header.Set("Origin", "https://app.nordcrm.io")

		rec := httptest.NewRecorder()
		corsHandler(baseCfg(), "production").ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origins configured allows in development", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		req.Header.Set("Origin", "http://localhost:3000")

		rec := httptest.NewRecorder()
		corsHandler(baseCfg(), "development").ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight answers allowed methods", func(t *testing.T) {
		cfg := baseCfg()
		cfg.AllowedOrigins = []string{"https://app.nordcrm.io"}

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/deals", nil)
		req.Header.Set("Origin", "https://app.nordcrm.io")
		req.Header.Set("Access-Control-Request-Method", "POST")

		rec := httptest.NewRecorder()
		corsHandler(cfg, "production").ServeHTTP(rec, req)

		assert.Equal(t, "https://app.nordcrm.io", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})
}
