// Package aqi provides the air-quality metric calculators: EPA AQI
// sub-indices, the composite pollution index and the health-risk index.
package aqi

// WHO guideline concentrations in µg/m³, used as normalisation denominators.
const (
	WHONO2  = 40.0
	WHOPM25 = 25.0
)

// Breakpoint is one segment of a piecewise-linear AQI table.
// Concentrations are in µg/m³.
type Breakpoint struct {
	ConcLow  float64
	ConcHigh float64
	IndexLow float64
	IndexHi  float64
}

// Each segment starts at the previous segment's upper bound so the
// transform is continuous across boundaries.
var (
	pm25Breakpoints = []Breakpoint{
		{ConcLow: 0, ConcHigh: 12, IndexLow: 0, IndexHi: 50},
		{ConcLow: 12, ConcHigh: 35.4, IndexLow: 50, IndexHi: 100},
		{ConcLow: 35.4, ConcHigh: 55.4, IndexLow: 100, IndexHi: 150},
		{ConcLow: 55.4, ConcHigh: 150.4, IndexLow: 150, IndexHi: 200},
		{ConcLow: 150.4, ConcHigh: 250.4, IndexLow: 200, IndexHi: 300},
		{ConcLow: 250.4, ConcHigh: 500, IndexLow: 300, IndexHi: 500},
	}

	no2Breakpoints = []Breakpoint{
		{ConcLow: 0, ConcHigh: 53, IndexLow: 0, IndexHi: 50},
		{ConcLow: 53, ConcHigh: 100, IndexLow: 50, IndexHi: 100},
		{ConcLow: 100, ConcHigh: 360, IndexLow: 100, IndexHi: 150},
		{ConcLow: 360, ConcHigh: 649, IndexLow: 150, IndexHi: 200},
		{ConcLow: 649, ConcHigh: 1249, IndexLow: 200, IndexHi: 300},
		{ConcLow: 1249, ConcHigh: 2049, IndexLow: 300, IndexHi: 500},
	}
)

// PM25Breakpoints returns a copy of the PM2.5 breakpoint table.
func PM25Breakpoints() []Breakpoint {
	return append([]Breakpoint(nil), pm25Breakpoints...)
}

// NO2Breakpoints returns a copy of the NO2 breakpoint table.
func NO2Breakpoints() []Breakpoint {
	return append([]Breakpoint(nil), no2Breakpoints...)
}

// PM25ToAQI converts a PM2.5 concentration to its AQI sub-index.
// Values above the last breakpoint extrapolate past 500.
func PM25ToAQI(concentration float64) float64 {
	return interpolate(pm25Breakpoints, concentration)
}

// NO2ToAQI converts an NO2 concentration to its AQI sub-index.
func NO2ToAQI(concentration float64) float64 {
	return interpolate(no2Breakpoints, concentration)
}

// Composite returns the larger of the two sub-indices.
func Composite(no2, pm25 float64) float64 {
	return max(NO2ToAQI(no2), PM25ToAQI(pm25))
}

// PollutionIndex is the equal-weight average of NO2 and PM2.5 normalised
// against their WHO guidelines. It is exactly 1 at the guideline values.
func PollutionIndex(no2, pm25 float64) float64 {
	return 0.5*no2/WHONO2 + 0.5*pm25/WHOPM25
}

// HealthRisk weights PM2.5 at 0.6 and NO2 at 0.4 and scales by 10.
func HealthRisk(no2, pm25 float64) float64 {
	return (0.4*no2/WHONO2 + 0.6*pm25/WHOPM25) * 10
}

// ExceedsWHONO2 reports whether a concentration is above the NO2 guideline.
func ExceedsWHONO2(no2 float64) bool { return no2 > WHONO2 }

// ExceedsWHOPM25 reports whether a concentration is above the PM2.5 guideline.
func ExceedsWHOPM25(pm25 float64) bool { return pm25 > WHOPM25 }

func interpolate(table []Breakpoint, c float64) float64 {
	seg := table[len(table)-1]
	for _, bp := range table {
		if c <= bp.ConcHigh {
			seg = bp
			break
		}
	}
	return (seg.IndexHi-seg.IndexLow)/(seg.ConcHigh-seg.ConcLow)*(c-seg.ConcLow) + seg.IndexLow
}
