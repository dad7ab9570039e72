package vector

import (
	"cmp"
	"fmt"
	"math"
	"strings"
)

// Metric names the distance used to compare embeddings. Switching metrics
// changes ranking, so a metric is fixed once an index is built.
type Metric string

const (
	// Cosine ranks by direction: distance = 1 - cos(a, b), in [0, 2].
	Cosine Metric = "cosine"
	// Euclidean ranks by straight-line distance ||a - b||.
	Euclidean Metric = "euclidean"
)

// ParseMetric resolves a configured metric name. Empty defaults to Cosine.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cos", "cosine":
		return Cosine, nil
	case "l2", "euclidean":
		return Euclidean, nil
	}
	return "", fmt.Errorf("vector: unsupported metric %q", s)
}

func (m Metric) String() string { return string(m) }

// Distance returns the metric distance between a and b. Both vectors must
// have the same length. Under cosine a zero vector is at distance 1 from any
// non-zero vector and 0 from another zero vector.
func (m Metric) Distance(a, b []float32) float64 {
	if m == Euclidean {
		return l2(a, b)
	}
	return cosineDistance(a, Magnitude(a), b, Magnitude(b))
}

// DistanceWithMagnitude is Distance with precomputed magnitudes, used by
// scans that cache stored magnitudes.
func (m Metric) DistanceWithMagnitude(a []float32, am float64, b []float32, bm float64) float64 {
	if m == Euclidean {
		return l2(a, b)
	}
	return cosineDistance(a, am, b, bm)
}

// cosineDistance puts a zero vector at distance 0 from another zero vector
// and at distance 1 from everything else.
func cosineDistance(a []float32, am float64, b []float32, bm float64) float64 {
	switch {
	case am == 0 && bm == 0:
		return 0
	case am == 0 || bm == 0:
		return 1
	}
	return clampCosineDistance(1 - Dot(a, b)/(am*bm))
}

// CompareDistance orders distances ascending with NaN after every number.
func CompareDistance(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmp.Compare(a, b)
}

// Similarity maps a distance onto [0, 1], higher is more similar. Identical
// vectors score 1 under both metrics.
func (m Metric) Similarity(distance float64) float64 {
	if m == Euclidean {
		return 1 / (1 + distance)
	}
	return 1 - distance/2
}

func clampCosineDistance(d float64) float64 {
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}

// Dot accumulates in float64 so results do not depend on summation width.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func Magnitude(v []float32) float64 { return math.Sqrt(Dot(v, v)) }

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Normalize returns an L2-normalised copy of v. A zero vector is returned
// unchanged (as a copy).
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := Magnitude(v)
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
