// Package featureflags holds the runtime capability flags that switch the
// optional enrichment steps on and off.
package featureflags

import (
	"errors"
	"fmt"
	"time"
)

// Capability flag keys.
const (
	// FlagEnableAdvancedForecast lets the seasonal estimator run when it is
	// configured.
	FlagEnableAdvancedForecast = "enable_advanced_forecast"

	// FlagEnableAIInsights lets the language-model insight path run when a
	// key is configured.
	FlagEnableAIInsights = "enable_ai_insights"

	// FlagEnableMultivariateAnomalies enables the isolation-forest detector.
	FlagEnableMultivariateAnomalies = "enable_multivariate_anomalies"

	// FlagEnableWeatherCorrelation enables the weather correlator.
	FlagEnableWeatherCorrelation = "enable_weather_correlation"

	// FlagEnableLiveEventFeed lets the NO2 supplier adjust values for
	// natural events reported by EONET.
	FlagEnableLiveEventFeed = "enable_live_event_feed"

	// FlagForecastHorizonDays is the number of days forecast per report.
	FlagForecastHorizonDays = "forecast_horizon_days"
)

// DefaultForecastHorizon is the forecast horizon when no flag overrides it.
const DefaultForecastHorizon = 7

var (
	// ErrUnknownFlag is returned for updates naming no capability flag.
	ErrUnknownFlag = errors.New("unknown flag")

	// ErrInvalidValue is returned for updates whose value has the wrong type.
	ErrInvalidValue = errors.New("invalid flag value")
)

var booleanFlags = []string{
	FlagEnableAdvancedForecast,
	FlagEnableAIInsights,
	FlagEnableMultivariateAnomalies,
	FlagEnableWeatherCorrelation,
	FlagEnableLiveEventFeed,
}

// Flag is a capability flag and its current value. Values are JSON
// scalars: booleans for switches, numbers for the horizon.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FlagList represents a list of feature flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate sets one flag.
type FlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// FlagUpdateRequest is the body of a flag update. Reason is logged.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// Validate checks that u names a known flag and carries a value of its type:
// a positive whole number for the horizon, a boolean otherwise.
func (u FlagUpdate) Validate() error {
	if u.Key == FlagForecastHorizonDays {
		n, ok := u.Value.(float64)
		if !ok || n < 1 || n != float64(int(n)) {
			return fmt.Errorf("%w: must be a positive whole number", ErrInvalidValue)
		}
		return nil
	}
	for _, key := range booleanFlags {
		if key != u.Key {
			continue
		}
		if _, ok := u.Value.(bool); !ok {
			return fmt.Errorf("%w: must be a boolean", ErrInvalidValue)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownFlag, u.Key)
}

// BoolValue returns the flag as a boolean, or defaultValue when the flag is
// nil or holds something else. Numbers are true when non-zero.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return defaultValue
	}
}

// IntValue returns the flag as an integer, or defaultValue when the flag is
// nil or not a number.
func (f *Flag) IntValue(defaultValue int) int {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// DefaultFlags returns the default capability flags: every enrichment on
// and a seven day forecast horizon.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	flags := make(map[string]*Flag, len(booleanFlags)+1)
	for _, key := range booleanFlags {
		flags[key] = &Flag{Key: key, Value: true, UpdatedAt: now}
	}
	flags[FlagForecastHorizonDays] = &Flag{
		Key:       FlagForecastHorizonDays,
		Value:     float64(DefaultForecastHorizon),
		UpdatedAt: now,
	}
	return flags
}

func (f *Flag) clone() *Flag {
	c := *f
	return &c
}
