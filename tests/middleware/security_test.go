package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nordcrm/pipeline-api/internal/config"
	"github.com/nordcrm/pipeline-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
)

func runSecurityRequest(cfg *config.SecurityConfig) *httptest.ResponseRecorder {
	handler := middleware.SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil))
	return rec
}

func TestSecurityHeaders(t *testing.T) {
	t.Run("all headers enabled", func(t *testing.T) {
		rec := runSecurityRequest(&config.SecurityConfig{
			EnableHSTS:            true,
			HSTSMaxAge:            31536000,
			HSTSIncludeSubdomains: true,
			ContentSecurityPolicy: "default-src 'self'",
			FrameOptions:          "DENY",
			ContentTypeNosniff:    true,
			ReferrerPolicy:        "strict-origin-when-cross-origin",
		})

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))
		assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
		assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("HSTS without subdomains", func(t *testing.T) {
		rec := runSecurityRequest(&config.SecurityConfig{
			EnableHSTS: true,
			HSTSMaxAge: 86400,
		})

		assert.Equal(t, "max-age=86400", rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("everything disabled leaves headers unset", func(t *testing.T) {
		rec := runSecurityRequest(&config.SecurityConfig{})

		assert.Empty(t, rec.Header().Get("X-Content-Type-Options"))
		assert.Empty(t, rec.Header().Get("X-Frame-Options"))
		assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
		assert.Empty(t, rec.Header().Get("Referrer-Policy"))
		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	})
}
