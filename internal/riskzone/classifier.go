package riskzone

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/analysis"
)

// Config holds classifier parameters.
type Config struct {
	// Seed makes clustering and synthesis reproducible.
	// Default: 42
	Seed int64

	// Restarts is the number of k-means++ initialisations.
	// Default: 10
	Restarts int

	// DefaultPopulation is used for locations the source does not know.
	// Default: 1000000
	DefaultPopulation int

	// Fallback centre for synthetic zones when the series is empty.
	DefaultLocation  string
	DefaultLatitude  float64
	DefaultLongitude float64
}

// DefaultConfig returns a configuration centred on Nagpur.
func DefaultConfig() Config {
	return Config{
		Seed:              42,
		Restarts:          10,
		DefaultPopulation: 1_000_000,
		DefaultLocation:   "Nagpur",
		DefaultLatitude:   21.1458,
		DefaultLongitude:  79.0882,
	}
}

const clusters = 3

// tier describes how zones of one risk level are synthesised.
type tier struct {
	level  Level
	points int
	radius float64
	base   float64
}

var tiers = [clusters]tier{
	{level: LevelHigh, points: 3, radius: 0.02, base: 2.5},
	{level: LevelMedium, points: 4, radius: 0.04, base: 1.5},
	{level: LevelLow, points: 5, radius: 0.06, base: 0.8},
}

const (
	angleJitter  = 0.2
	radiusJitter = 0.005
	indexJitter  = 0.15
	baseJitter   = 0.10
)

// Classifier assigns risk tiers to a daily series.
type Classifier struct {
	cfg         Config
	populations PopulationSource
	logger      zerolog.Logger
}

// NewClassifier creates a classifier. populations may be nil.
func NewClassifier(cfg Config, populations PopulationSource, logger zerolog.Logger) *Classifier {
	def := DefaultConfig()
	if cfg.Restarts <= 0 {
		cfg.Restarts = def.Restarts
	}
	if cfg.DefaultPopulation <= 0 {
		cfg.DefaultPopulation = def.DefaultPopulation
	}
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = def.DefaultLocation
		cfg.DefaultLatitude = def.DefaultLatitude
		cfg.DefaultLongitude = def.DefaultLongitude
	}
	return &Classifier{
		cfg:         cfg,
		populations: populations,
		logger:      logger.With().Str("component", "riskzone").Logger(),
	}
}

// Classify clusters the series into risk zones. It never fails: short
// series get synthetic zones and series sharing one coordinate get a
// synthetic radial spread around it.
func (c *Classifier) Classify(series []analysis.DailyRecord) []Zone {
	rng := rand.New(rand.NewSource(c.cfg.Seed))

	if len(series) < clusters {
		c.logger.Debug().Int("points", len(series)).Msg("too few points for clustering, synthesising zones")
		return c.synthetic(series, rng)
	}

	points := make([][]float64, len(series))
	for i, r := range series {
		points[i] = []float64{r.PollutionIndex, r.Latitude, r.Longitude}
	}
	result := kmeans(points, clusters, c.cfg.Restarts, rng)
	levels, means := rankClusters(series, result)

	if sameCoordinates(series) {
		c.logger.Debug().Int("points", len(series)).Msg("all points share one coordinate, spreading zones radially")
		return c.radial(series, result.labels, levels, means, rng)
	}

	location := series[0].Location
	population := c.population(location)
	variants := make(map[Level]int)
	zones := make([]Zone, len(series))
	for i, r := range series {
		level := levels[result.labels[i]]
		aqi, risk := r.AQI, r.HealthRisk
		zones[i] = Zone{
			Latitude:                    r.Latitude,
			Longitude:                   r.Longitude,
			PollutionIndex:              r.PollutionIndex,
			RiskLevel:                   level,
			Location:                    location,
			EstimatedAffectedPopulation: EstimatePopulation(population, level, variants[level]),
			AQI:                         &aqi,
			HealthRisk:                  &risk,
		}
		variants[level]++
	}
	return zones
}

// rankClusters orders clusters by mean pollution index, highest first.
// Equal means keep the lower cluster index first. A cluster with no members
// is ranked by its centroid.
func rankClusters(series []analysis.DailyRecord, result clustering) ([clusters]Level, [clusters]float64) {
	var sums [clusters]float64
	var counts [clusters]int
	for i, label := range result.labels {
		sums[label] += series[i].PollutionIndex
		counts[label]++
	}
	var means [clusters]float64
	for k := range means {
		if counts[k] == 0 {
			means[k] = result.centroids[k][0]
			continue
		}
		means[k] = sums[k] / float64(counts[k])
	}

	order := []int{0, 1, 2}
	sort.SliceStable(order, func(i, j int) bool {
		return means[order[i]] > means[order[j]]
	})
	order = emptyInMiddle(order, counts)

	var levels [clusters]Level
	for rank, k := range order {
		levels[k] = tiers[rank].level
	}
	return levels, means
}

// emptyInMiddle moves empty clusters between the highest and lowest
// occupied ones. Two distinct feature vectors then always map to the high
// and low tiers, whichever duplicate centroid the seeding produced.
func emptyInMiddle(order []int, counts [clusters]int) []int {
	var occupied, empty []int
	for _, k := range order {
		if counts[k] == 0 {
			empty = append(empty, k)
		} else {
			occupied = append(occupied, k)
		}
	}
	if len(occupied) < 2 || len(empty) == 0 {
		return order
	}
	out := append([]int{occupied[0]}, empty...)
	return append(out, occupied[1:]...)
}

// radial spreads each tier's zones on a circle around the shared
// coordinate with jittered angle, radius and pollution index.
func (c *Classifier) radial(series []analysis.DailyRecord, labels []int, levels [clusters]Level, means [clusters]float64, rng *rand.Rand) []Zone {
	lat, lon := centre(series)
	location := series[0].Location
	population := c.population(location)

	var zones []Zone
	for _, t := range tiers {
		k := clusterFor(levels, t.level)
		aqi, risk := memberMeans(series, labels, k)
		for j := 0; j < t.points; j++ {
			angle := 2*math.Pi*float64(j)/float64(t.points) + jitter(rng, angleJitter)
			r := t.radius + jitter(rng, radiusJitter)
			index := means[k] * (1 + jitter(rng, indexJitter))
			zoneAQI, zoneRisk := aqi, risk
			zones = append(zones, Zone{
				Latitude:                    lat + r*math.Cos(angle),
				Longitude:                   lon + r*math.Sin(angle),
				PollutionIndex:              analysis.Finite(index),
				RiskLevel:                   t.level,
				Location:                    location,
				EstimatedAffectedPopulation: EstimatePopulation(population, t.level, j),
				AQI:                         &zoneAQI,
				HealthRisk:                  &zoneRisk,
			})
		}
	}
	return zones
}

// synthetic builds fixed-base zones for series too short to cluster.
func (c *Classifier) synthetic(series []analysis.DailyRecord, rng *rand.Rand) []Zone {
	lat, lon := c.cfg.DefaultLatitude, c.cfg.DefaultLongitude
	location := c.cfg.DefaultLocation
	if len(series) > 0 {
		lat, lon = centre(series)
		location = series[0].Location
	}
	population := c.population(location)

	// tier sizes for short series are one fewer than the radial spread
	var zones []Zone
	for _, t := range tiers {
		for j := 0; j < t.points-1; j++ {
			angle := 2*math.Pi*float64(j)/float64(t.points-1) + jitter(rng, angleJitter)
			r := t.radius + jitter(rng, radiusJitter)
			zones = append(zones, Zone{
				Latitude:                    lat + r*math.Cos(angle),
				Longitude:                   lon + r*math.Sin(angle),
				PollutionIndex:              t.base * (1 + jitter(rng, baseJitter)),
				RiskLevel:                   t.level,
				Location:                    location,
				EstimatedAffectedPopulation: EstimatePopulation(population, t.level, j),
			})
		}
	}
	return zones
}

func (c *Classifier) population(location string) int {
	if c.populations != nil {
		if p, ok := c.populations.Population(location); ok {
			return p
		}
	}
	return c.cfg.DefaultPopulation
}

func clusterFor(levels [clusters]Level, level Level) int {
	for k, l := range levels {
		if l == level {
			return k
		}
	}
	return 0
}

// memberMeans averages aqi and health risk over the members of cluster k.
// An empty cluster averages the whole series.
func memberMeans(series []analysis.DailyRecord, labels []int, k int) (float64, float64) {
	var aqi, risk float64
	var n int
	for i, label := range labels {
		if label == k {
			aqi += series[i].AQI
			risk += series[i].HealthRisk
			n++
		}
	}
	if n == 0 {
		for _, r := range series {
			aqi += r.AQI
			risk += r.HealthRisk
		}
		n = len(series)
	}
	return aqi / float64(n), risk / float64(n)
}

func sameCoordinates(series []analysis.DailyRecord) bool {
	for _, r := range series[1:] {
		if r.Latitude != series[0].Latitude || r.Longitude != series[0].Longitude {
			return false
		}
	}
	return true
}

func centre(series []analysis.DailyRecord) (float64, float64) {
	var lat, lon float64
	for _, r := range series {
		lat += r.Latitude
		lon += r.Longitude
	}
	n := float64(len(series))
	return lat / n, lon / n
}

// jitter draws uniformly from [-amplitude, amplitude).
func jitter(rng *rand.Rand, amplitude float64) float64 {
	return (rng.Float64()*2 - 1) * amplitude
}
