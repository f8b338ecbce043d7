// Package weather supplies daily weather for a region and correlates it with
// pollutant levels.
package weather

import (
	"errors"
	"time"

	"github.com/airexposure/airexposure/internal/analysis"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Day is the weather of one calendar day.
type Day struct {
	Date          analysis.Date `json:"date"`
	Temperature   float64       `json:"temperature"`   // °C
	Humidity      float64       `json:"humidity"`      // %
	WindSpeed     float64       `json:"wind_speed"`    // km/h
	Precipitation float64       `json:"precipitation"` // mm
	Pressure      float64       `json:"pressure"`      // hPa
	Location      string        `json:"location"`
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
}

// Observation is a current-conditions reading from a live provider.
type Observation struct {
	Lat         float64
	Lon         float64
	Temperature float64 // °C
	Humidity    float64 // %
	WindSpeed   float64 // m/s, as reported upstream
	Pressure    float64 // hPa
	Condition   Condition
	Description string
	ObservedAt  time.Time
	FetchedAt   time.Time
}

// WindSpeedKMH converts the observed wind speed to km/h.
func (o *Observation) WindSpeedKMH() float64 {
	return o.WindSpeed * 3.6
}

// Condition groups upstream weather codes into the handful of states the
// correlator and reports care about. Smoke and dust fold into haze.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)

// Obscured reports whether the condition reduces visibility through
// suspended particles or droplets.
func (c Condition) Obscured() bool {
	switch c {
	case ConditionMist, ConditionFog, ConditionHaze:
		return true
	}
	return false
}
