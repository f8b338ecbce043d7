package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airexposure/airexposure/internal/api/middleware"
)

// hit sends one GET from addr, optionally with a bearer token.
func hit(h http.Handler, path, addr, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = addr
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_PerClientBudget(t *testing.T) {
	limiters := map[string]func(middleware.RateLimitConfig) func(http.Handler) http.Handler{
		"by ip":       middleware.RateLimitByIP,
		"by operator": middleware.RateLimitByOperator,
	}

	for name, limit := range limiters {
		t.Run(name, func(t *testing.T) {
			handler := limit(middleware.RateLimitConfig{RequestLimit: 3, WindowLength: time.Minute})(okHandler())

			for i := 0; i < 3; i++ {
				assert.Equal(t, http.StatusOK, hit(handler, "/v1/pollution-data", "10.0.0.1:5000", "").Code, "request %d", i+1)
			}

			rec := hit(handler, "/v1/pollution-data", "10.0.0.1:5000", "")
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))

			assert.Equal(t, http.StatusOK, hit(handler, "/v1/pollution-data", "10.0.0.2:5000", "").Code)
		})
	}
}

func TestRateLimitByOperator_KeysByOperator(t *testing.T) {
	jwtService := createTestJWTService(t)
	token, _, err := jwtService.IssueOperatorToken("ops-1")
	require.NoError(t, err)

	handler := middleware.Auth(jwtService)(
		middleware.RateLimitByOperator(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute})(okHandler()),
	)

	assert.Equal(t, http.StatusOK, hit(handler, "/v1/admin/flags", "198.51.100.1:1000", token).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "/v1/admin/flags", "198.51.100.2:1000", token).Code)
}

func TestRateLimit_ProblemResponse(t *testing.T) {
	handler := middleware.RequestID(
		middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 30 * time.Second})(okHandler()),
	)

	require.Equal(t, http.StatusOK, hit(handler, "/v1/region-boundary", "203.0.113.1:12345", "").Code)
	rec := hit(handler, "/v1/region-boundary", "203.0.113.1:12345", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	body := rec.Body.String()
	assert.Contains(t, body, "too-many-requests")
	assert.Contains(t, body, "Rate limit exceeded")
	assert.Contains(t, body, "/v1/region-boundary")
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	tests := []struct {
		name string
		cfg  middleware.RateLimitConfig
		want int
	}{
		{"analysis", middleware.AnalysisRateLimit, 30},
		{"standard", middleware.StandardRateLimit, 100},
		{"admin", middleware.AdminRateLimit, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.RequestLimit)
			assert.Equal(t, time.Minute, tt.cfg.WindowLength)
		})
	}
}
