package openweathermap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airexposure/airexposure/internal/provider/resilience"
	"github.com/airexposure/airexposure/internal/weather"
	"github.com/airexposure/airexposure/internal/weather/openweathermap"
)

func newClient(url string) *openweathermap.Client {
	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		HTTPClient: resilience.NewClient(resilience.SupplierClientConfig("owm-test", time.Second, nil)),
	})
}

func TestClient_Current(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "21.145800", r.URL.Query().Get("lat"))
		assert.Equal(t, "79.088200", r.URL.Query().Get("lon"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		response := map[string]interface{}{
			"coord": map[string]float64{"lat": 21.1458, "lon": 79.0882},
			"weather": []map[string]interface{}{
				{"id": 721, "main": "Haze", "description": "haze"},
			},
			"main": map[string]float64{
				"temp":     31.2,
				"pressure": 1008,
				"humidity": 40,
			},
			"wind": map[string]float64{"speed": 2.5},
			"dt":   1700000000,
			"name": "Nagpur",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	obs, err := newClient(server.URL).Current(context.Background(), 21.1458, 79.0882)
	require.NoError(t, err)
	require.NotNil(t, obs)

	assert.Equal(t, 31.2, obs.Temperature)
	assert.Equal(t, 40.0, obs.Humidity)
	assert.Equal(t, 1008.0, obs.Pressure)
	assert.Equal(t, 2.5, obs.WindSpeed)
	assert.InDelta(t, 9.0, obs.WindSpeedKMH(), 1e-9)
	assert.Equal(t, weather.ConditionHaze, obs.Condition)
	assert.Equal(t, "haze", obs.Description)
	assert.Equal(t, int64(1700000000), obs.ObservedAt.Unix())
}

func TestClient_Current_NoConditions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"main":{"temp":10}}`))
	}))
	defer server.Close()

	obs, err := newClient(server.URL).Current(context.Background(), 51.5, -0.12)
	require.NoError(t, err)
	assert.Equal(t, weather.ConditionUnknown, obs.Condition)
}

func TestClient_Current_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			obs, err := newClient(server.URL).Current(context.Background(), 21.1458, 79.0882)
			assert.Error(t, err)
			assert.Nil(t, obs)
		})
	}
}

func TestClient_Current_Conditions(t *testing.T) {
	tests := []struct {
		main string
		want weather.Condition
	}{
		{"Clear", weather.ConditionClear},
		{"Rain", weather.ConditionRain},
		{"Smoke", weather.ConditionHaze},
		{"Dust", weather.ConditionHaze},
		{"Fog", weather.ConditionFog},
		{"Volcano", weather.ConditionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.main, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"weather": []map[string]string{{"main": tt.main, "description": "x"}},
				})
			}))
			defer server.Close()

			obs, err := newClient(server.URL).Current(context.Background(), 28.61, 77.21)
			require.NoError(t, err)
			assert.Equal(t, tt.want, obs.Condition)
		})
	}
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, openweathermap.ProviderName, newClient("").Name())
}
