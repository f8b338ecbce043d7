package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/airexposure/airexposure/internal/analysis"
)

// NO2 and PM2.5 commentary tiers in µg/m³.
const (
	no2Guideline  = 40
	no2High       = 60
	pm25Guideline = 25
	pm25High      = 35
)

// Rules writes a five-part narrative: introduction, NO2 commentary, PM2.5
// commentary, joint trend and exposure advice.
type Rules struct{}

// NewRules creates the rule-based generator.
func NewRules() *Rules { return &Rules{} }

// Name implements Generator.
func (*Rules) Name() string { return SourceRules }

// Available implements Generator; rules are always available.
func (*Rules) Available(context.Context) bool { return true }

// Generate implements Generator. It never fails.
func (r *Rules) Generate(_ context.Context, in Input) (string, error) {
	return r.Text(in), nil
}

// Text returns the narrative for in.
func (*Rules) Text(in Input) string {
	location := in.Location
	if location == "" {
		location = "the selected region"
	}
	s := in.Summary
	if s == nil {
		return fmt.Sprintf("No pollution data is available for %s in the requested period.", location)
	}

	parts := []string{
		introduction(location, in.Days, s),
		no2Commentary(s.AvgNO2),
		pm25Commentary(s.AvgPM25),
		trendCommentary(s.Trend),
		exposureAdvice(s),
	}
	return strings.Join(parts, " ")
}

func introduction(location string, days int, s *analysis.Summary) string {
	return fmt.Sprintf(
		"Air quality in %s was analysed over %d days, with average NO2 of %.1f µg/m³ (peak %.1f) and average PM2.5 of %.1f µg/m³ (peak %.1f).",
		location, days, s.AvgNO2, s.MaxNO2, s.AvgPM25, s.MaxPM25)
}

func no2Commentary(avg float64) string {
	switch {
	case avg <= no2Guideline:
		return "NO2 levels are within the WHO guideline of 40 µg/m³, indicating moderate traffic and combustion emissions."
	case avg <= no2High:
		return "NO2 levels exceed the WHO guideline of 40 µg/m³, pointing to elevated traffic and industrial emissions."
	default:
		return "NO2 levels are far above the WHO guideline of 40 µg/m³, consistent with heavy traffic congestion or intense industrial activity."
	}
}

func pm25Commentary(avg float64) string {
	switch {
	case avg <= pm25Guideline:
		return "PM2.5 concentrations are within the WHO guideline of 25 µg/m³."
	case avg <= pm25High:
		return "PM2.5 concentrations exceed the WHO guideline of 25 µg/m³ and may affect sensitive groups."
	default:
		return "PM2.5 concentrations are well above the WHO guideline of 25 µg/m³, a level associated with respiratory and cardiovascular harm."
	}
}

func trendCommentary(trends map[string]analysis.TrendResult) string {
	no2Up := trends[analysis.TrendKeyNO2].Direction == analysis.DirectionIncreasing
	pm25Up := trends[analysis.TrendKeyPM25].Direction == analysis.DirectionIncreasing

	switch {
	case no2Up && pm25Up:
		return "Both NO2 and PM2.5 are trending upward, so air quality is worsening over the period."
	case no2Up:
		return "NO2 is trending upward while PM2.5 is not, suggesting growing traffic or combustion sources."
	case pm25Up:
		return "PM2.5 is trending upward while NO2 is not, suggesting dust, construction or biomass burning."
	default:
		return "Neither pollutant is trending upward, so air quality is stable or improving."
	}
}

func exposureAdvice(s *analysis.Summary) string {
	if s.DaysExceedingWHONO2 == 0 && s.DaysExceedingWHOPM == 0 {
		return "No day exceeded WHO guidelines, so exposure risk for the general population is low."
	}
	return fmt.Sprintf(
		"WHO guidelines were exceeded on %d days for NO2 and %d days for PM2.5; children, older adults and people with respiratory conditions should limit prolonged outdoor activity on such days.",
		s.DaysExceedingWHONO2, s.DaysExceedingWHOPM)
}
