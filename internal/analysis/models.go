// Package analysis turns raw pollutant samples into a daily exposure series
// and derives the statistics attached to it: WHO exceedance counts,
// z-score and multivariate anomalies, and linear trends.
package analysis

import (
	"errors"
	"math"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// Date is a calendar date serialised as YYYY-MM-DD.
type Date time.Time

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date(t), nil
}

// Time returns the underlying time at midnight UTC.
func (d Date) Time() time.Time { return time.Time(d) }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string { return time.Time(d).Format(DateLayout) }

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date { return Date(time.Time(d).AddDate(0, 0, n)) }

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return time.Time(d).Before(time.Time(other)) }

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Sample is one time-stamped reading from a pollutant supplier. A NO2-only
// source leaves PM25 at zero and vice versa.
type Sample struct {
	Timestamp       time.Time `json:"timestamp"`
	NO2             float64   `json:"no2_value"`
	PM25            float64   `json:"pm25_value"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Location        string    `json:"location"`
	EventInfluenced bool      `json:"event_influenced,omitempty"`
}

// DailyRecord is the per-day aggregate of joined samples.
type DailyRecord struct {
	Date           Date    `json:"date"`
	NO2            float64 `json:"no2_level"`
	PM25           float64 `json:"pm25_level"`
	PollutionIndex float64 `json:"pollution_index"`
	AQI            float64 `json:"aqi"`
	HealthRisk     float64 `json:"health_risk"`
	IsAnomaly      bool    `json:"is_anomaly"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Location       string  `json:"location"`
}

// Trend directions.
const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
	DirectionStable     = "stable"
)

// Trend map keys.
const (
	TrendKeyNO2  = "no2_trend"
	TrendKeyPM25 = "pm25_trend"
)

// TrendResult is the OLS fit of one pollutant against day index.
type TrendResult struct {
	Slope         float64 `json:"slope"`
	RSquared      float64 `json:"r_squared"`
	PValue        float64 `json:"p_value"`
	IsSignificant bool    `json:"is_significant"`
	Direction     string  `json:"direction"`
}

// Summary holds series-level statistics.
type Summary struct {
	AvgNO2              float64                `json:"avg_no2"`
	AvgPM25             float64                `json:"avg_pm25"`
	MaxNO2              float64                `json:"max_no2"`
	MaxPM25             float64                `json:"max_pm25"`
	DaysExceedingWHONO2 int                    `json:"days_exceeding_who_no2"`
	DaysExceedingWHOPM  int                    `json:"days_exceeding_who_pm25"`
	Trend               map[string]TrendResult `json:"trend"`
}

// Result is the output of Analyze. Summary is nil when the series is empty.
type Result struct {
	Series  []DailyRecord `json:"series"`
	Summary *Summary      `json:"summary"`
}

// Location returns the location of the series, or "" when empty.
func (r Result) Location() string {
	if len(r.Series) == 0 {
		return ""
	}
	return r.Series[0].Location
}

// Status is the outcome of an enrichment step.
type Status string

const (
	// StatusSuccess means the preferred path produced a result.
	StatusSuccess Status = "success"
	// StatusDegraded means a fallback path produced the result.
	StatusDegraded Status = "degraded"
	// StatusEmpty means there was not enough data to produce anything.
	StatusEmpty Status = "empty"
)

// Finite replaces NaN and ±Inf with 0 so values always serialise.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// NO2Values returns the NO2 column of a series.
func NO2Values(series []DailyRecord) []float64 {
	out := make([]float64, len(series))
	for i, r := range series {
		out[i] = r.NO2
	}
	return out
}

// PM25Values returns the PM2.5 column of a series.
func PM25Values(series []DailyRecord) []float64 {
	out := make([]float64, len(series))
	for i, r := range series {
		out[i] = r.PM25
	}
	return out
}
