package satellite

import (
	"math"
	"time"

	"github.com/airexposure/airexposure/internal/analysis"
	"github.com/airexposure/airexposure/internal/region"
)

// Weekly multipliers, Monday first.
var (
	no2Weekly  = [7]float64{1.2, 1.3, 1.4, 1.3, 1.2, 0.8, 0.7}
	pm25Weekly = [7]float64{1.2, 1.3, 1.4, 1.3, 1.2, 0.9, 0.8}
)

const no2Base = 30

// seriesDates returns up to n consecutive dates from start, clipped to end.
func seriesDates(start, end analysis.Date, n int) []analysis.Date {
	dates := make([]analysis.Date, 0, n)
	for i := 0; i < n; i++ {
		d := start.AddDays(i)
		if end.Before(d) {
			break
		}
		dates = append(dates, d)
	}
	return dates
}

// mondayIndex maps a weekday to 0 for Monday through 6 for Sunday.
func mondayIndex(d analysis.Date) int {
	return (int(d.Time().Weekday()) + 6) % 7
}

// baseNO2 is the event-free NO2 level of the i-th day.
func baseNO2(d analysis.Date, i int) float64 {
	return math.RoundToEven(no2Base*no2Weekly[mondayIndex(d)] + float64(i%3)*5)
}

// pm25Level is the PM2.5 level of the i-th day around base.
func pm25Level(d analysis.Date, i int, base float64) float64 {
	variation := float64((i%3)*3 - (i%2)*2)
	return math.RoundToEven(base*pm25Weekly[mondayIndex(d)] + variation)
}

// eventImpact returns the NO2 added to date d by event e and whether d lies
// within the event's reach at all.
func (c Config) eventImpact(d analysis.Date, r region.Region, e Event) (float64, bool) {
	weight, ok := eventWeight(e.Category)
	if !ok {
		return 0, false
	}
	distance := haversineKM(r.Latitude, r.Longitude, e.Latitude, e.Longitude)
	if distance >= c.EventRadiusKM {
		return 0, false
	}
	daysDiff := dayDistance(d.Time(), e.Date)
	if daysDiff >= c.EventWindowDays {
		return 0, false
	}

	impact := float64(c.EventWindowDays-daysDiff) * (c.EventRadiusKM - distance) / c.EventRadiusKM
	return math.Trunc(impact * weight), true
}

// dayDistance is the absolute number of whole days between a and b,
// flooring the signed difference first.
func dayDistance(a, b time.Time) int {
	days := int(math.Floor(a.Sub(b).Hours() / 24))
	if days < 0 {
		return -days
	}
	return days
}
