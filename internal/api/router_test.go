package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airexposure/airexposure/internal/api"
	"github.com/airexposure/airexposure/internal/api/handler"
	"github.com/airexposure/airexposure/internal/api/models"
	"github.com/airexposure/airexposure/internal/auth"
	"github.com/airexposure/airexposure/internal/exposure"
	"github.com/airexposure/airexposure/internal/featureflags"
	"github.com/airexposure/airexposure/internal/forecast"
	"github.com/airexposure/airexposure/internal/insight"
	"github.com/airexposure/airexposure/internal/provider/resilience"
	"github.com/airexposure/airexposure/internal/region"
	"github.com/airexposure/airexposure/internal/riskzone"
	"github.com/airexposure/airexposure/internal/satellite"
	"github.com/airexposure/airexposure/internal/weather"
)

const testSigningKey = "test-secret-key-for-testing-only"

func testJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{SigningKey: testSigningKey, Issuer: "airexposure"})
	require.NoError(t, err)
	return svc
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zerolog.New(io.Discard)

	catalog, err := region.DefaultCatalog("")
	require.NoError(t, err)

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     logger,
	})

	analyzer, err := exposure.NewService(exposure.Config{}, exposure.Dependencies{
		Regions:      catalog,
		Pollutants:   satellite.NewService(satellite.DefaultConfig(), nil, nil, flags, logger),
		Weather:      weather.NewService(weather.ServiceConfig{Seed: 42, Logger: logger}),
		Forecaster:   forecast.NewService(nil, nil, logger),
		Insights:     insight.NewService(nil, logger),
		Zones:        riskzone.NewClassifier(riskzone.DefaultConfig(), catalog, logger),
		Capabilities: flags,
	}, logger)
	require.NoError(t, err)

	return api.NewRouter(api.RouterConfig{
		Version:        "test",
		BuildTime:      "2024-01-01T00:00:00Z",
		Logger:         logger,
		DefaultRegion:  "Nagpur",
		Exposure:       analyzer,
		Boundaries:     region.NewBoundaries(catalog, nil, logger),
		Flags:          flags,
		Registry:       resilience.NewRegistry(),
		Readiness:      map[string]handler.Check{},
		TokenValidator: testJWTService(t),
	})
}

// addAuthHeader adds a valid operator Bearer token to the request.
func addAuthHeader(t *testing.T, req *http.Request) {
	t.Helper()
	token, _, err := testJWTService(t).IssueOperatorToken("ops@airexposure")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SystemStatus_RequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Empty(t, status.DisabledFeatures)
}

func TestRouter_PollutionData(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/pollution-data?region=delhi&start_date=2023-01-01&end_date=2023-01-10", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var report map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "Delhi", report["region"])
	assert.Len(t, report["pollutionLevels"], 10)
	assert.NotNil(t, report["summary"])
	assert.NotEmpty(t, report["riskZones"])
}

func TestRouter_PollutionData_ValidationError(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/pollution-data?start_date=01-01-2023", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.Equal(t, "/v1/pollution-data", problem.Instance)
	assert.NotEmpty(t, problem.TraceID)
}

func TestRouter_RegionBoundary(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/region-boundary", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "FeatureCollection")

	req = httptest.NewRequest(http.MethodGet, "/v1/region-boundary?region=London", http.NoBody)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null\n", w.Body.String())
}

func TestRouter_FeatureFlags(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/feature-flags", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body := `{"updates":[{"key":"enable_weather_correlation","value":false}],"reason":"test"}`
	req = httptest.NewRequest(http.MethodPut, "/v1/admin/feature-flags", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// The analysis now skips weather correlation.
	req = httptest.NewRequest(http.MethodGet, "/v1/pollution-data?region=Nagpur&start_date=2023-01-01&end_date=2023-01-10", http.NoBody)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var report map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	summary, ok := report["summary"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, summary, "weather_correlation")
	assert.Equal(t, "empty", report["enrichments"].(map[string]any)["weather_correlation"])

	req = httptest.NewRequest(http.MethodPost, "/v1/admin/feature-flags/invalidate", http.NoBody)
	addAuthHeader(t, req)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_FeatureFlags_RejectsNonJSON(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/admin/feature-flags", strings.NewReader("key=value"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	addAuthHeader(t, req)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/unknown", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
