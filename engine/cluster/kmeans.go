package cluster

import (
	"math"
	"math/rand"
)

const (
	maxLloydIterations = 50
	convergenceEpsilon = 1e-4
)

// seedKMeansPlusPlus chooses k initial centroids from unit vectors by
// weighted sampling proportional to squared cosine distance from the
// nearest already-chosen centroid (spec §4.D step 3).
func seedKMeansPlusPlus(rng *rand.Rand, vectors [][]float32, k int) [][]float32 {
	n := len(vectors)
	centroids := make([][]float32, 0, k)

	first := vectors[rng.Intn(n)]
	centroids = append(centroids, cloneVec(first))

	distSq := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := 1 - float64(dot(v, nearest(v, centroids)))
			if d < 0 {
				d = 0
			}
			distSq[i] = d * d
			total += distSq[i]
		}
		if total == 0 {
			// All points coincide with a chosen centroid; fall back to
			// uniform sampling so we still reach k centroids.
			centroids = append(centroids, cloneVec(vectors[rng.Intn(n)]))
			continue
		}
		target := rng.Float64() * total
		var cum float64
		chosen := n - 1
		for i, d := range distSq {
			cum += d
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, cloneVec(vectors[chosen]))
	}
	return centroids
}

func nearest(v []float32, centroids [][]float32) []float32 {
	best := centroids[0]
	bestSim := dot(v, centroids[0])
	for _, c := range centroids[1:] {
		if s := dot(v, c); s > bestSim {
			bestSim = s
			best = c
		}
	}
	return best
}

// lloydResult is the outcome of running Lloyd's algorithm to (near)
// convergence: final unit centroids and the 0-based cluster index for
// every input vector.
type lloydResult struct {
	centroids [][]float32
	assignment []int
}

// runLloyd iterates assignment/update until no member changes cluster,
// the mean centroid shift drops below convergenceEpsilon, or
// maxLloydIterations is reached (spec §4.D step 4), re-seeding any
// cluster that goes empty from the farthest point in the largest cluster
// (step 5).
func runLloyd(rng *rand.Rand, vectors [][]float32, initial [][]float32) lloydResult {
	k := len(initial)
	n := len(vectors)
	centroids := cloneAll(initial)
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}

	for iter := 0; iter < maxLloydIterations; iter++ {
		changed := false
		newAssignment := make([]int, n)
		for i, v := range vectors {
			best := 0
			bestSim := dot(v, centroids[0])
			for c := 1; c < k; c++ {
				if s := dot(v, centroids[c]); s > bestSim {
					bestSim = s
					best = c
				}
			}
			newAssignment[i] = best
			if newAssignment[i] != assignment[i] {
				changed = true
			}
		}
		assignment = newAssignment

		newCentroids := recomputeCentroids(vectors, assignment, k)
		newCentroids = reseedEmptyClusters(rng, vectors, assignment, newCentroids)

		shift := meanShift(centroids, newCentroids)
		centroids = newCentroids
		if !changed || shift < convergenceEpsilon {
			break
		}
	}

	return lloydResult{centroids: centroids, assignment: assignment}
}

func recomputeCentroids(vectors [][]float32, assignment []int, k int) [][]float32 {
	dim := len(vectors[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assignment[i]
		counts[c]++
		for d, x := range v {
			sums[c][d] += float64(x)
		}
	}

	centroids := make([][]float32, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			centroids[c] = nil // filled by reseedEmptyClusters
			continue
		}
		mean := make([]float32, dim)
		for d := range mean {
			mean[d] = float32(sums[c][d] / float64(counts[c]))
		}
		centroids[c] = unitOrZero(mean)
	}
	return centroids
}

// reseedEmptyClusters replaces any nil centroid (an empty cluster) with
// the farthest point from its centroid in the current largest cluster,
// per spec §4.D step 5.
func reseedEmptyClusters(rng *rand.Rand, vectors [][]float32, assignment []int, centroids [][]float32) [][]float32 {
	for c, centroid := range centroids {
		if centroid != nil {
			continue
		}
		largest := largestCluster(assignment, len(centroids))
		farthest := farthestPoint(vectors, assignment, largest, centroids[largest])
		if farthest < 0 {
			centroids[c] = cloneVec(vectors[rng.Intn(len(vectors))])
			continue
		}
		centroids[c] = cloneVec(vectors[farthest])
	}
	return centroids
}

func largestCluster(assignment []int, k int) int {
	counts := make([]int, k)
	for _, c := range assignment {
		counts[c]++
	}
	best := 0
	for c := 1; c < k; c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

func farthestPoint(vectors [][]float32, assignment []int, cluster int, centroid []float32) int {
	if centroid == nil {
		return -1
	}
	worst := -1
	worstSim := math.Inf(1)
	for i, v := range vectors {
		if assignment[i] != cluster {
			continue
		}
		sim := float64(dot(v, centroid))
		if sim < worstSim {
			worstSim = sim
			worst = i
		}
	}
	return worst
}

func meanShift(a, b [][]float32) float64 {
	var total float64
	n := 0
	for i := range a {
		if a[i] == nil || b[i] == nil {
			continue
		}
		total += 1 - float64(dot(a[i], b[i]))
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func cloneAll(vs [][]float32) [][]float32 {
	out := make([][]float32, len(vs))
	for i, v := range vs {
		out[i] = cloneVec(v)
	}
	return out
}

func unitOrZero(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-12 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
