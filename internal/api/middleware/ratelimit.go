package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/airexposure/airexposure/internal/api/models"
)

// RateLimitConfig is a fixed request budget per window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Budgets per endpoint class.
var (
	// AnalysisRateLimit guards pollution-data, which runs the full pipeline.
	AnalysisRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit guards cheap lookups.
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}

	// AdminRateLimit guards operator endpoints.
	AdminRateLimit = RateLimitConfig{RequestLimit: 20, WindowLength: time.Minute}
)

// RateLimitByIP keys the budget on the client IP (see chi's RealIP).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return cfg.limiter(httprate.KeyByRealIP)
}

// RateLimitByOperator keys the budget on the authenticated operator, or on
// the client IP when there is none. Mount it after Auth.
func RateLimitByOperator(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return cfg.limiter(func(r *http.Request) (string, error) {
		if subject := GetOperator(r.Context()); subject != "" {
			return "operator:" + subject, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func (c RateLimitConfig) limiter(key httprate.KeyFunc) func(http.Handler) http.Handler {
	// httprate does not expose the reset time; one window is an upper bound.
	retryAfter := strconv.Itoa(int(c.WindowLength.Seconds()))

	return httprate.Limit(c.RequestLimit, c.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.").
				WithInstance(r.URL.Path).
				Write(w)
		}),
	)
}
