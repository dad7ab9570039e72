package covertree

import "github.com/viant/vec/search"

// distance is the Euclidean distance between two points. Callers wanting
// cosine ranking insert L2-normalised vectors.
func distance(p1, p2 *Point) float32 {
	return search.Float32s(p1.Vector).EuclideanDistance(p2.Vector)
}
