package riskzone

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const maxIterations = 300

// clustering is the outcome of one k-means run.
type clustering struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

// kmeans runs Lloyd's algorithm restarts times with k-means++ seeding and
// keeps the run with the lowest inertia.
func kmeans(points [][]float64, k, restarts int, rng *rand.Rand) clustering {
	best := clustering{inertia: math.Inf(1)}
	for r := 0; r < restarts; r++ {
		c := lloyd(points, seedCentroids(points, k, rng))
		if c.inertia < best.inertia {
			best = c
		}
	}
	return best
}

// seedCentroids picks k starting centroids with probability proportional to
// the squared distance from the nearest centroid already chosen.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(len(points))]))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		for i, p := range points {
			_, d := nearest(p, centroids)
			dist[i] = d
		}
		total := floats.Sum(dist)
		if total == 0 {
			centroids = append(centroids, clone(points[rng.Intn(len(points))]))
			continue
		}
		target := rng.Float64() * total
		chosen := len(points) - 1
		for i, d := range dist {
			target -= d
			if target < 0 {
				chosen = i
				break
			}
		}
		centroids = append(centroids, clone(points[chosen]))
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64) clustering {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}
	dims := len(points[0])

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			label, _ := nearest(p, centroids)
			if label != labels[i] {
				labels[i] = label
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, len(centroids))
		counts := make([]int, len(centroids))
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, p := range points {
			floats.Add(sums[labels[i]], p)
			counts[labels[i]]++
		}
		for c := range centroids {
			// an empty cluster keeps its previous centroid
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centroids[c] = sums[c]
		}
	}

	var inertia float64
	for i, p := range points {
		d := floats.Distance(p, centroids[labels[i]], 2)
		inertia += d * d
	}
	return clustering{labels: labels, centroids: centroids, inertia: inertia}
}

// nearest returns the index of the closest centroid and the squared
// distance to it. Ties go to the lowest index.
func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		d := floats.Distance(p, centroid, 2)
		if d*d < bestDist {
			best, bestDist = c, d*d
		}
	}
	return best, bestDist
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
