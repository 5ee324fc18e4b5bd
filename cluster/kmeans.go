package cluster

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// NumClusters partitions the herd into four attention groups.
	NumClusters = 4
	// MinClusterCattle is the smallest herd clustering will accept.
	MinClusterCattle = 10

	clusterSeed    = 42
	kmeansRestarts = 10
	kmeansMaxIter  = 100
)

// StandardScaler centers each feature on its mean and divides by its
// standard deviation. Constant features keep scale 1 so they pass through
// unchanged.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func fitScaler(X [][]float64) *StandardScaler {
	dims := len(X[0])
	s := &StandardScaler{
		Mean:  make([]float64, dims),
		Scale: make([]float64, dims),
	}
	col := make([]float64, len(X))
	for d := 0; d < dims; d++ {
		for i, row := range X {
			col[i] = row[d]
		}
		s.Mean[d] = stat.Mean(col, nil)
		// Population deviation, matching how the clusters were originally
		// scaled.
		sd := math.Sqrt(stat.PopVariance(col, nil))
		if sd == 0 {
			sd = 1
		}
		s.Scale[d] = sd
	}
	return s
}

func (s *StandardScaler) transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for d := range x {
		out[d] = (x[d] - s.Mean[d]) / s.Scale[d]
	}
	return out
}

func (s *StandardScaler) transformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		out[i] = s.transform(x)
	}
	return out
}

// KMeans is a fitted Lloyd clustering. Fitting restarts from several
// random initializations and keeps the partition with the lowest inertia;
// the fixed seed makes repeated fits identical.
type KMeans struct {
	Centroids [][]float64
}

func fitKMeans(X [][]float64, k int) *KMeans {
	rng := rand.New(rand.NewSource(clusterSeed))

	best := &KMeans{}
	bestInertia := math.Inf(1)
	for restart := 0; restart < kmeansRestarts; restart++ {
		centroids := lloyd(X, k, rng)
		inertia := totalInertia(X, centroids)
		if inertia < bestInertia {
			bestInertia = inertia
			best.Centroids = centroids
		}
	}
	return best
}

func lloyd(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	dims := len(X[0])

	// Distinct random points seed the centroids.
	perm := rng.Perm(len(X))
	centroids := make([][]float64, k)
	for c := 0; c < k; c++ {
		centroids[c] = append([]float64(nil), X[perm[c]]...)
	}

	assign := make([]int, len(X))
	for iter := 0; iter < kmeansMaxIter; iter++ {
		moved := iter == 0
		for i, x := range X {
			c := nearest(x, centroids)
			if c != assign[i] {
				moved = true
			}
			assign[i] = c
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, x := range X {
			floats.Add(sums[assign[i]], x)
			counts[assign[i]]++
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Re-seed an emptied cluster on a random point.
				centroids[c] = append([]float64(nil), X[rng.Intn(len(X))]...)
				moved = true
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centroids[c] = sums[c]
		}

		if !moved {
			break
		}
	}
	return centroids
}

// Predict returns the index of the nearest centroid.
func (m *KMeans) Predict(x []float64) int {
	return nearest(x, m.Centroids)
}

func nearest(x []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(x, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func totalInertia(X [][]float64, centroids [][]float64) float64 {
	var sum float64
	for _, x := range X {
		sum += sqDist(x, centroids[nearest(x, centroids)])
	}
	return sum
}
