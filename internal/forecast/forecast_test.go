package forecast_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/aqi"
	"github.com/airexposure/airexposure/internal/featureflags"
	"github.com/airexposure/airexposure/internal/forecast"
	"github.com/airexposure/airexposure/internal/provider/resilience"
)

func series(no2, pm25 []float64) []analysis.DailyRecord {
	start := analysis.NewDate(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC))
	out := make([]analysis.DailyRecord, len(no2))
	for i := range no2 {
		out[i] = analysis.DailyRecord{
			Date:           start.AddDays(i),
			NO2:            no2[i],
			PM25:           pm25[i],
			PollutionIndex: aqi.PollutionIndex(no2[i], pm25[i]),
		}
	}
	return out
}

type flags map[string]bool

func (f flags) IsEnabled(_ context.Context, key string) bool { return f[key] }

// seasonalServer answers with a constant forecast of the requested length.
func seasonalServer(t *testing.T, value float64, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Series            []map[string]any `json:"series"`
			Periods           int              `json:"periods"`
			DailySeasonality  bool             `json:"daily_seasonality"`
			YearlySeasonality bool             `json:"yearly_seasonality"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.DailySeasonality)
		assert.False(t, req.YearlySeasonality)

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		points := make([]map[string]any, req.Periods)
		for i := range points {
			points[i] = map[string]any{"ds": "", "y": value}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"forecast": points})
	}))
	t.Cleanup(server.Close)
	return server
}

func newSeasonal(url string, checker forecast.FlagChecker) *forecast.Seasonal {
	client := resilience.NewClient(resilience.SupplierClientConfig("seasonal-test", time.Second, nil))
	return forecast.NewSeasonal(forecast.SeasonalConfig{URL: url}, client, checker)
}

func TestLinear_Extrapolates(t *testing.T) {
	days, err := forecast.NewLinear().Forecast(context.Background(),
		series([]float64{10, 12, 14, 16}, []float64{30, 29, 28, 27}), 3)
	require.NoError(t, err)

	require.Len(t, days, 3)
	wantNO2 := []float64{18, 20, 22}
	wantPM := []float64{26, 25, 24}
	for i, d := range days {
		assert.InDelta(t, wantNO2[i], d.NO2, 1e-9)
		assert.InDelta(t, wantPM[i], d.PM25, 1e-9)
		assert.InDelta(t, aqi.PollutionIndex(d.NO2, d.PM25), d.PollutionIndex, 1e-12)
		assert.True(t, d.IsForecast)
	}
	assert.Equal(t, "2023-03-05", days[0].Date.String())
	assert.Equal(t, "2023-03-07", days[2].Date.String())
}

func TestLinear_ClampsToZero(t *testing.T) {
	days, err := forecast.NewLinear().Forecast(context.Background(),
		series([]float64{30, 20, 10}, []float64{9, 6, 3}), 4)
	require.NoError(t, err)

	for _, d := range days {
		assert.GreaterOrEqual(t, d.NO2, 0.0)
		assert.GreaterOrEqual(t, d.PM25, 0.0)
	}
	assert.Equal(t, 0.0, days[3].NO2)
	assert.Equal(t, 0.0, days[3].PollutionIndex)
}

func TestLinear_InsufficientHistory(t *testing.T) {
	_, err := forecast.NewLinear().Forecast(context.Background(), series([]float64{1, 2}, []float64{1, 2}), 7)
	assert.ErrorIs(t, err, forecast.ErrInsufficientHistory)
}

func TestService_Forecast(t *testing.T) {
	ok := seasonalServer(t, 42, http.StatusOK)
	broken := seasonalServer(t, 0, http.StatusInternalServerError)
	enabled := flags{featureflags.FlagEnableAdvancedForecast: true}

	tests := []struct {
		name       string
		advanced   forecast.Estimator
		days       int
		horizon    int
		wantStatus analysis.Status
		wantMethod string
		wantLen    int
	}{
		{
			name:       "too short",
			advanced:   newSeasonal(ok.URL, enabled),
			days:       2,
			horizon:    7,
			wantStatus: analysis.StatusEmpty,
			wantLen:    0,
		},
		{
			name:       "short for advanced uses linear",
			advanced:   newSeasonal(ok.URL, enabled),
			days:       4,
			horizon:    7,
			wantStatus: analysis.StatusSuccess,
			wantMethod: forecast.MethodLinear,
			wantLen:    7,
		},
		{
			name:       "advanced available",
			advanced:   newSeasonal(ok.URL, enabled),
			days:       6,
			horizon:    3,
			wantStatus: analysis.StatusSuccess,
			wantMethod: forecast.MethodSeasonal,
			wantLen:    3,
		},
		{
			name:       "advanced disabled by flag",
			advanced:   newSeasonal(ok.URL, flags{}),
			days:       6,
			horizon:    3,
			wantStatus: analysis.StatusSuccess,
			wantMethod: forecast.MethodLinear,
			wantLen:    3,
		},
		{
			name:       "advanced not configured",
			advanced:   newSeasonal("", enabled),
			days:       6,
			horizon:    3,
			wantStatus: analysis.StatusSuccess,
			wantMethod: forecast.MethodLinear,
			wantLen:    3,
		},
		{
			name:       "advanced failure degrades",
			advanced:   newSeasonal(broken.URL, enabled),
			days:       6,
			horizon:    3,
			wantStatus: analysis.StatusDegraded,
			wantMethod: forecast.MethodLinear,
			wantLen:    3,
		},
		{
			name:       "default horizon",
			days:       5,
			horizon:    0,
			wantStatus: analysis.StatusSuccess,
			wantMethod: forecast.MethodLinear,
			wantLen:    forecast.DefaultHorizon,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			no2 := make([]float64, tt.days)
			pm25 := make([]float64, tt.days)
			for i := range no2 {
				no2[i] = 30 + float64(i)
				pm25[i] = 20 + float64(i%2)
			}
			svc := forecast.NewService(tt.advanced, nil, zerolog.Nop())

			result := svc.Forecast(context.Background(), series(no2, pm25), tt.horizon)

			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantMethod, result.Method)
			assert.Len(t, result.Days, tt.wantLen)
			assert.NotNil(t, result.Days)
		})
	}
}

func TestSeasonal_ValuesComeFromModel(t *testing.T) {
	server := seasonalServer(t, 42, http.StatusOK)
	est := newSeasonal(server.URL, nil)

	days, err := est.Forecast(context.Background(),
		series([]float64{1, 2, 3, 4, 5}, []float64{5, 4, 3, 2, 1}), 2)
	require.NoError(t, err)

	require.Len(t, days, 2)
	for _, d := range days {
		assert.Equal(t, 42.0, d.NO2)
		assert.Equal(t, 42.0, d.PM25)
		assert.InDelta(t, aqi.PollutionIndex(42, 42), d.PollutionIndex, 1e-12)
		assert.True(t, d.IsForecast)
	}
	assert.Equal(t, "2023-03-06", days[0].Date.String())
}

func TestSeasonal_WrongLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"forecast":[{"ds":"2023-03-06","y":1}]}`))
	}))
	defer server.Close()

	_, err := newSeasonal(server.URL, nil).Forecast(context.Background(),
		series([]float64{1, 2, 3, 4, 5}, []float64{5, 4, 3, 2, 1}), 3)
	assert.ErrorIs(t, err, forecast.ErrInvalidResponse)
}

func TestSeasonal_NegativeValuesClamped(t *testing.T) {
	server := seasonalServer(t, -5, http.StatusOK)

	days, err := newSeasonal(server.URL, nil).Forecast(context.Background(),
		series([]float64{1, 2, 3, 4, 5}, []float64{5, 4, 3, 2, 1}), 2)
	require.NoError(t, err)
	for _, d := range days {
		assert.Equal(t, 0.0, d.NO2)
		assert.Equal(t, 0.0, d.PM25)
	}
}
