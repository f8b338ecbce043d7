// Package outlier provides an isolation-forest scorer for small
// multivariate samples.
package outlier

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// eulerGamma is the Euler–Mascheroni constant used in the harmonic-number
// approximation.
const eulerGamma = 0.5772156649

// Config holds isolation forest parameters.
type Config struct {
	// Trees is the number of isolation trees.
	// Default: 100
	Trees int

	// SampleSize is the number of points drawn for each tree.
	// Default: min(256, len(data))
	SampleSize int

	// Contamination is the expected share of outliers in (0, 0.5].
	// Default: 0.1
	Contamination float64

	// Seed makes tree construction reproducible.
	Seed int64
}

// DefaultConfig returns the default forest configuration.
func DefaultConfig() Config {
	return Config{
		Trees:         100,
		SampleSize:    256,
		Contamination: 0.1,
		Seed:          42,
	}
}

type node struct {
	feature int
	split   float64
	left    *node
	right   *node
	size    int
	leaf    bool
}

// Forest is a fitted isolation forest.
type Forest struct {
	cfg        Config
	trees      []*node
	sampleSize int
	maxDepth   int
	rng        *rand.Rand
}

// Fit builds a forest over points. Every point must have the same number of
// features.
func Fit(points [][]float64, cfg Config) *Forest {
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.Contamination <= 0 || cfg.Contamination > 0.5 {
		cfg.Contamination = 0.1
	}
	sampleSize := cfg.SampleSize
	if sampleSize <= 0 || sampleSize > len(points) {
		sampleSize = len(points)
	}

	f := &Forest{
		cfg:        cfg,
		sampleSize: sampleSize,
		maxDepth:   int(math.Ceil(math.Log2(math.Max(float64(sampleSize), 2)))),
		rng:        rand.New(rand.NewSource(cfg.Seed)),
	}
	if len(points) == 0 {
		return f
	}
	for i := 0; i < cfg.Trees; i++ {
		f.trees = append(f.trees, f.build(f.sample(points), 0))
	}
	return f
}

// Score returns the anomaly score of a point in [0, 1]; higher is more
// anomalous and 0.5 is typical.
func (f *Forest) Score(point []float64) float64 {
	if len(f.trees) == 0 {
		return 0.5
	}
	total := 0.0
	for _, t := range f.trees {
		total += pathLength(t, point, 0)
	}
	c := averagePathLength(f.sampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -(total/float64(len(f.trees)))/c)
}

// Scores scores every point.
func (f *Forest) Scores(points [][]float64) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = f.Score(p)
	}
	return out
}

// Outliers returns, per point, whether its score lies strictly above the
// (1 - contamination) quantile of all scores.
func (f *Forest) Outliers(points [][]float64) ([]bool, []float64) {
	scores := f.Scores(points)
	flags := make([]bool, len(points))
	if len(scores) == 0 {
		return flags, scores
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(1-f.cfg.Contamination, stat.LinInterp, sorted, nil)
	for i, s := range scores {
		flags[i] = s > threshold
	}
	return flags, scores
}

func (f *Forest) sample(points [][]float64) [][]float64 {
	shuffled := append([][]float64(nil), points...)
	f.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:f.sampleSize]
}

func (f *Forest) build(points [][]float64, depth int) *node {
	if len(points) <= 1 || depth >= f.maxDepth || identical(points) {
		return &node{size: len(points), leaf: true}
	}

	feature := f.rng.Intn(len(points[0]))
	lo, hi := featureRange(points, feature)
	if lo == hi {
		return &node{size: len(points), leaf: true}
	}
	split := lo + f.rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, p := range points {
		if p[feature] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &node{size: len(points), leaf: true}
	}

	return &node{
		feature: feature,
		split:   split,
		left:    f.build(left, depth+1),
		right:   f.build(right, depth+1),
		size:    len(points),
	}
}

func pathLength(n *node, point []float64, depth int) float64 {
	if n.leaf {
		return float64(depth) + averagePathLength(n.size)
	}
	if point[n.feature] < n.split {
		return pathLength(n.left, point, depth+1)
	}
	return pathLength(n.right, point, depth+1)
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST
// search over n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	harmonic := math.Log(float64(n-1)) + eulerGamma
	return 2*harmonic - 2*float64(n-1)/float64(n)
}

func identical(points [][]float64) bool {
	for _, p := range points[1:] {
		for j := range p {
			if math.Abs(p[j]-points[0][j]) > 1e-12 {
				return false
			}
		}
	}
	return true
}

func featureRange(points [][]float64, feature int) (float64, float64) {
	lo, hi := points[0][feature], points[0][feature]
	for _, p := range points[1:] {
		lo = math.Min(lo, p[feature])
		hi = math.Max(hi, p[feature])
	}
	return lo, hi
}
