// Package satellite supplies the raw pollutant series of a region: NO2 in
// the shape of Sentinel-5P retrievals and PM2.5 in the shape of MODIS
// aerosol products. Series are synthesised from weekly patterns and
// anchored on live feeds when those are reachable.
package satellite

import (
	"context"
	"errors"
	"time"

	"github.com/airexposure/airexposure/internal/region"
)

// Event categories that move pollutant levels.
const (
	CategoryWildfires  = "Wildfires"
	CategoryDustHaze   = "Dust and Haze"
	CategoryVolcanoes  = "Volcanoes"
	CategoryAirQuality = "Air Quality"
)

// ErrNoReading is returned when a feed has no usable PM2.5 value.
var ErrNoReading = errors.New("no pm2.5 reading")

// Event is a natural event near which NO2 is raised.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Date      time.Time `json:"date"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// EventSource lists recent open events.
type EventSource interface {
	Events(ctx context.Context) ([]Event, error)
}

// PM25Source reads the current PM2.5 level of a region.
type PM25Source interface {
	PM25(ctx context.Context, r region.Region) (float64, error)
}

// FlagChecker reports whether a capability flag is on.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}

// Config holds the synthesis parameters.
type Config struct {
	// SyntheticDays is the length of a generated series (default: 10).
	SyntheticDays int

	// DefaultPM25 anchors the PM2.5 series when no live reading is
	// available (default: 70).
	DefaultPM25 float64

	// EventRadiusKM is how far an event reaches (default: 500).
	EventRadiusKM float64

	// EventWindowDays is how many days around an event are affected
	// (default: 5).
	EventWindowDays int
}

// DefaultConfig returns the default synthesis parameters.
func DefaultConfig() Config {
	return Config{
		SyntheticDays:   10,
		DefaultPM25:     70,
		EventRadiusKM:   500,
		EventWindowDays: 5,
	}
}

// eventWeight is the NO2 added per unit of impact for each category.
func eventWeight(category string) (float64, bool) {
	switch category {
	case CategoryWildfires:
		return 15, true
	case CategoryDustHaze, CategoryAirQuality:
		return 10, true
	case CategoryVolcanoes:
		return 20, true
	default:
		return 0, false
	}
}
