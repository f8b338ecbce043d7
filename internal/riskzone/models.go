// Package riskzone clusters a daily exposure series into high, medium and
// low risk zones and estimates the population living in each.
package riskzone

// Level is the risk tier of a zone.
type Level string

// Risk tiers.
const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelUnknown Level = "unknown"
)

// Zone is one plotted risk zone.
type Zone struct {
	Latitude                    float64  `json:"latitude"`
	Longitude                   float64  `json:"longitude"`
	PollutionIndex              float64  `json:"pollution_index"`
	RiskLevel                   Level    `json:"risk_level"`
	Location                    string   `json:"location"`
	EstimatedAffectedPopulation int      `json:"estimated_affected_population"`
	AQI                         *float64 `json:"aqi,omitempty"`
	HealthRisk                  *float64 `json:"health_risk,omitempty"`
}

// PopulationSource resolves the population of a named location.
type PopulationSource interface {
	Population(location string) (int, bool)
}

// riskShare is the share of the population living in each tier.
var riskShare = map[Level]float64{
	LevelHigh:    0.15,
	LevelMedium:  0.30,
	LevelLow:     0.40,
	LevelUnknown: 0.05,
}

const (
	otherShare = 0.01

	// zonesPerTier is the divisor applied to every tier's share. The
	// degenerate path emits 3, 4 and 5 zones per tier, so tiers other than
	// high over- or under-count slightly.
	zonesPerTier = 3
)

// variation spreads same-tier zones apart; variant is the zone's position
// within its tier.
func variation(variant int) float64 {
	v := 0.7 + 0.1*float64(variant)
	if v < 0.5 {
		return 0.5
	}
	if v > 1.5 {
		return 1.5
	}
	return v
}

func share(level Level) float64 {
	if s, ok := riskShare[level]; ok {
		return s
	}
	return otherShare
}

// EstimatePopulation returns floor(population × share × variation / 3).
func EstimatePopulation(population int, level Level, variant int) int {
	if population <= 0 {
		return 0
	}
	return int(float64(population) * share(level) * variation(variant) / zonesPerTier)
}
