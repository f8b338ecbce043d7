package weather

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/airexposure/airexposure/internal/analysis"
)

// Weather factors.
const (
	FactorTemperature   = "temperature"
	FactorHumidity      = "humidity"
	FactorWindSpeed     = "wind_speed"
	FactorPrecipitation = "precipitation"
	FactorPressure      = "pressure"
)

// Pollution factors.
const (
	PollutantNO2  = "no2_level"
	PollutantPM25 = "pm25_level"
)

// Correlation strengths and directions.
const (
	StrengthStrong   = "strongly"
	StrengthModerate = "moderately"

	DirectionPositive = "positively"
	DirectionNegative = "negatively"
)

const (
	explainThreshold = 0.3
	strongThreshold  = 0.6
)

// Explanation describes one notable weather/pollutant correlation.
type Explanation struct {
	Correlation     string  `json:"correlation"`
	WeatherFactor   string  `json:"weather_factor"`
	PollutionFactor string  `json:"pollution_factor"`
	Value           float64 `json:"value"`
	Strength        string  `json:"strength"`
	Direction       string  `json:"direction"`
	Explanation     string  `json:"explanation"`
}

// CorrelationResult holds every pair's coefficient and the explanations of
// the notable ones.
type CorrelationResult struct {
	Correlations map[string]float64 `json:"correlations"`
	Explanations []Explanation      `json:"explanations"`
	JoinedDays   int                `json:"joined_days"`
}

var weatherFactors = []struct {
	name  string
	value func(Day) float64
}{
	{FactorTemperature, func(d Day) float64 { return d.Temperature }},
	{FactorHumidity, func(d Day) float64 { return d.Humidity }},
	{FactorWindSpeed, func(d Day) float64 { return d.WindSpeed }},
	{FactorPrecipitation, func(d Day) float64 { return d.Precipitation }},
	{FactorPressure, func(d Day) float64 { return d.Pressure }},
}

var pollutionFactors = []struct {
	name  string
	value func(analysis.DailyRecord) float64
}{
	{PollutantNO2, func(r analysis.DailyRecord) float64 { return r.NO2 }},
	{PollutantPM25, func(r analysis.DailyRecord) float64 { return r.PM25 }},
}

// Correlate joins weather days and the daily series by date and computes
// the Pearson coefficient of every weather/pollutant pair. It returns nil
// when no date is shared.
func Correlate(days []Day, series []analysis.DailyRecord) *CorrelationResult {
	byDate := make(map[string]Day, len(days))
	for _, d := range days {
		if _, ok := byDate[d.Date.String()]; !ok {
			byDate[d.Date.String()] = d
		}
	}

	var joinedWeather []Day
	var joinedSeries []analysis.DailyRecord
	for _, r := range series {
		if d, ok := byDate[r.Date.String()]; ok {
			joinedWeather = append(joinedWeather, d)
			joinedSeries = append(joinedSeries, r)
		}
	}
	if len(joinedSeries) == 0 {
		return nil
	}

	result := &CorrelationResult{
		Correlations: make(map[string]float64, len(weatherFactors)*len(pollutionFactors)),
		Explanations: []Explanation{},
		JoinedDays:   len(joinedSeries),
	}

	for _, w := range weatherFactors {
		x := make([]float64, len(joinedWeather))
		for i, d := range joinedWeather {
			x[i] = w.value(d)
		}
		for _, p := range pollutionFactors {
			y := make([]float64, len(joinedSeries))
			for i, r := range joinedSeries {
				y[i] = p.value(r)
			}

			key := w.name + "_" + p.name
			r := pearson(x, y)
			result.Correlations[key] = r

			if math.Abs(r) >= explainThreshold {
				result.Explanations = append(result.Explanations, explain(key, w.name, p.name, r))
			}
		}
	}
	return result
}

// pearson returns 0 when either side has zero variance.
func pearson(x, y []float64) float64 {
	if len(x) < 2 || constant(x) || constant(y) {
		return 0
	}
	r, err := stats.Correlation(x, y)
	if err != nil || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func explain(key, weatherFactor, pollutionFactor string, r float64) Explanation {
	strength := StrengthModerate
	if math.Abs(r) > strongThreshold {
		strength = StrengthStrong
	}
	direction := DirectionNegative
	positive := r > 0
	if positive {
		direction = DirectionPositive
	}

	return Explanation{
		Correlation:     key,
		WeatherFactor:   weatherFactor,
		PollutionFactor: pollutionFactor,
		Value:           r,
		Strength:        strength,
		Direction:       direction,
		Explanation:     fmt.Sprintf(template(weatherFactor, positive), pollutantLabel(pollutionFactor)),
	}
}

func pollutantLabel(factor string) string {
	if factor == PollutantNO2 {
		return "NO2"
	}
	return "PM2.5"
}

// template returns the sentence for a factor; %s is the pollutant label.
func template(factor string, positive bool) string {
	switch factor {
	case FactorTemperature:
		if positive {
			return "Higher temperatures are associated with increased %s levels, possibly due to increased photochemical reactions forming secondary pollutants or higher energy consumption."
		}
		return "Lower temperatures are associated with increased %s levels, potentially due to increased heating/burning activities or temperature inversions trapping pollutants near the ground."
	case FactorHumidity:
		if positive {
			return "Higher humidity is associated with increased %s levels. This may be due to humid conditions slowing the dispersion of pollutants or facilitating secondary pollutant formation."
		}
		return "Lower humidity is associated with increased %s levels. Dry air may promote dust suspension and particulate matter accumulation in the atmosphere."
	case FactorWindSpeed:
		if positive {
			return "Higher wind speeds correlate with increased %s levels, which is unusual and might suggest transport of pollutants from upwind sources."
		}
		return "Lower wind speeds correlate with increased %s levels, likely due to reduced dispersion and ventilation of pollutants in stagnant air conditions."
	case FactorPrecipitation:
		if positive {
			return "Higher precipitation is associated with increased %s levels, which is unusual and might indicate measurement interference or other complex factors."
		}
		return "Lower precipitation is associated with increased %s levels, as rainfall typically washes out pollutants from the air ('wet deposition')."
	default:
		if positive {
			return "Higher atmospheric pressure is associated with increased %s levels, potentially indicating stable air conditions that trap pollutants."
		}
		return "Lower atmospheric pressure is associated with increased %s levels, which might be related to changing weather systems bringing in polluted air masses."
	}
}
