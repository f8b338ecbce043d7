// Package openweathermap reads current conditions from the OpenWeatherMap
// API for the weather service.
package openweathermap

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/provider/resilience"
	"github.com/airexposure/airexposure/internal/weather"
)

const (
	// ProviderName is the supplier name used for the breaker and registry.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the version 2.5 API root.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// conditions maps OpenWeatherMap "main" groups onto weather conditions.
// Particulate and wind events all read as haze for exposure purposes.
var conditions = map[string]weather.Condition{
	"Clear":        weather.ConditionClear,
	"Clouds":       weather.ConditionClouds,
	"Rain":         weather.ConditionRain,
	"Drizzle":      weather.ConditionDrizzle,
	"Thunderstorm": weather.ConditionThunderstorm,
	"Snow":         weather.ConditionSnow,
	"Mist":         weather.ConditionMist,
	"Fog":          weather.ConditionFog,
	"Haze":         weather.ConditionHaze,
	"Smoke":        weather.ConditionHaze,
	"Dust":         weather.ConditionHaze,
	"Sand":         weather.ConditionHaze,
	"Ash":          weather.ConditionHaze,
	"Squall":       weather.ConditionHaze,
	"Tornado":      weather.ConditionHaze,
}

// ClientConfig configures a Client. APIKey is required.
type ClientConfig struct {
	APIKey  string
	BaseURL string

	// HTTPClient defaults to a supplier client with a 10 second timeout.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client implements weather.CurrentProvider.
type Client struct {
	cfg  ClientConfig
	http *resilience.Client
}

// NewClient creates a client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.SupplierClientConfig(ProviderName, 10*time.Second, nil))
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Name returns ProviderName.
func (c *Client) Name() string { return ProviderName }

// Current returns the latest observation nearest to lat/lon, in metric
// units.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*weather.Observation, error) {
	query := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', 6, 64)},
		"appid": {c.cfg.APIKey},
		"units": {"metric"},
	}

	var body currentResponse
	if err := c.http.GetJSON(ctx, c.cfg.BaseURL+"/weather?"+query.Encode(), &body); err != nil {
		return nil, fmt.Errorf("fetching current weather: %w", err)
	}

	obs := body.observation(time.Now())
	c.cfg.Logger.Debug().
		Str("station", body.Name).
		Float64("temperature", obs.Temperature).
		Str("condition", string(obs.Condition)).
		Msg("fetched current weather")
	return obs, nil
}

type currentResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}

func (r *currentResponse) observation(fetched time.Time) *weather.Observation {
	obs := &weather.Observation{
		Lat:         r.Coord.Lat,
		Lon:         r.Coord.Lon,
		Temperature: r.Main.Temp,
		Humidity:    r.Main.Humidity,
		WindSpeed:   r.Wind.Speed,
		Pressure:    r.Main.Pressure,
		Condition:   weather.ConditionUnknown,
		ObservedAt:  time.Unix(r.Dt, 0),
		FetchedAt:   fetched,
	}
	if len(r.Weather) > 0 {
		if cond, ok := conditions[r.Weather[0].Main]; ok {
			obs.Condition = cond
		}
		obs.Description = r.Weather[0].Description
	}
	return obs
}
