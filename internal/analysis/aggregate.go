package analysis

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/airexposure/airexposure/internal/aqi"
)

// joinedRow is one NO2 sample matched with one PM2.5 sample.
type joinedRow struct {
	timestamp      time.Time
	no2            float64
	pm25           float64
	pollutionIndex float64
	aqi            float64
	healthRisk     float64
	exceedsNO2     float64
	exceedsPM25    float64
	lat            float64
	lon            float64
	location       string
}

// join matches samples on exact timestamp equality. Unmatched samples on
// either side are dropped. Duplicate timestamps yield every pairing, in the
// order of the NO2 collection. Coordinates and location come from the NO2
// side.
func join(no2, pm25 []Sample) []joinedRow {
	byTime := make(map[int64][]Sample, len(pm25))
	for _, s := range pm25 {
		key := s.Timestamp.UnixNano()
		byTime[key] = append(byTime[key], s)
	}

	var rows []joinedRow
	for _, left := range no2 {
		for _, right := range byTime[left.Timestamp.UnixNano()] {
			rows = append(rows, newJoinedRow(left, right))
		}
	}
	return rows
}

func newJoinedRow(left, right Sample) joinedRow {
	row := joinedRow{
		timestamp:      left.Timestamp,
		no2:            left.NO2,
		pm25:           right.PM25,
		pollutionIndex: aqi.PollutionIndex(left.NO2, right.PM25),
		aqi:            aqi.Composite(left.NO2, right.PM25),
		healthRisk:     aqi.HealthRisk(left.NO2, right.PM25),
		lat:            left.Latitude,
		lon:            left.Longitude,
		location:       left.Location,
	}
	if aqi.ExceedsWHONO2(row.no2) {
		row.exceedsNO2 = 1
	}
	if aqi.ExceedsWHOPM25(row.pm25) {
		row.exceedsPM25 = 1
	}
	return row
}

// dailyGroup accumulates the numeric columns of one calendar day.
type dailyGroup struct {
	date    Date
	no2     []float64
	pm25    []float64
	index   []float64
	aqi     []float64
	risk    []float64
	lat     []float64
	lon     []float64
	overNO2 []float64
	overPM  []float64
}

func (g *dailyGroup) add(r joinedRow) {
	g.no2 = append(g.no2, r.no2)
	g.pm25 = append(g.pm25, r.pm25)
	g.index = append(g.index, r.pollutionIndex)
	g.aqi = append(g.aqi, r.aqi)
	g.risk = append(g.risk, r.healthRisk)
	g.lat = append(g.lat, r.lat)
	g.lon = append(g.lon, r.lon)
	g.overNO2 = append(g.overNO2, r.exceedsNO2)
	g.overPM = append(g.overPM, r.exceedsPM25)
}

// daily is a DailyRecord plus the mean exceedance indicators of its day.
type daily struct {
	record      DailyRecord
	exceedsNO2  float64
	exceedsPM25 float64
}

// Aggregate joins the two sample collections and reduces them to one
// record per calendar day, ordered by date. It returns nil when the join is
// empty.
func Aggregate(no2, pm25 []Sample) []DailyRecord {
	days := aggregate(no2, pm25)
	if len(days) == 0 {
		return nil
	}
	out := make([]DailyRecord, len(days))
	for i, d := range days {
		out[i] = d.record
	}
	return out
}

func aggregate(no2, pm25 []Sample) []daily {
	rows := join(no2, pm25)
	if len(rows) == 0 {
		return nil
	}
	location := rows[0].location

	groups := make(map[Date]*dailyGroup)
	for _, r := range rows {
		day := NewDate(r.timestamp)
		g, ok := groups[day]
		if !ok {
			g = &dailyGroup{date: day}
			groups[day] = g
		}
		g.add(r)
	}

	out := make([]daily, 0, len(groups))
	for _, g := range groups {
		out = append(out, daily{
			record: DailyRecord{
				Date:           g.date,
				NO2:            Finite(mean(g.no2)),
				PM25:           Finite(mean(g.pm25)),
				PollutionIndex: Finite(mean(g.index)),
				AQI:            Finite(mean(g.aqi)),
				HealthRisk:     Finite(mean(g.risk)),
				Latitude:       Finite(mean(g.lat)),
				Longitude:      Finite(mean(g.lon)),
				Location:       location,
			},
			exceedsNO2:  mean(g.overNO2),
			exceedsPM25: mean(g.overPM),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].record.Date.Before(out[j].record.Date)
	})
	return out
}

// summarize computes the series-level statistics. Exceedance day counts are
// the integer part of the summed daily exceedance means.
func summarize(days []daily) *Summary {
	if len(days) == 0 {
		return nil
	}
	no2 := make([]float64, len(days))
	pm25 := make([]float64, len(days))
	var overNO2, overPM float64
	for i, d := range days {
		no2[i] = d.record.NO2
		pm25[i] = d.record.PM25
		overNO2 += d.exceedsNO2
		overPM += d.exceedsPM25
	}
	return &Summary{
		AvgNO2:              Finite(mean(no2)),
		AvgPM25:             Finite(mean(pm25)),
		MaxNO2:              floats.Max(no2),
		MaxPM25:             floats.Max(pm25),
		DaysExceedingWHONO2: int(math.Floor(overNO2)),
		DaysExceedingWHOPM:  int(math.Floor(overPM)),
		Trend:               map[string]TrendResult{},
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values) / float64(len(values))
}
