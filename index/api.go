package index

import "github.com/viant/imagespider/vector"

// Index is a kNN strategy over a fixed set of (id, embedding) pairs. It is
// built once and is read-only afterwards, so Query is safe for concurrent
// use.
type Index interface {
	// Build constructs the index from the given ids and vectors. ids and
	// vectors must have the same length and all vectors the same dimension.
	Build(ids []string, vectors [][]float32) error

	// Query returns up to k ids with their metric distances, ordered by
	// ascending distance. Equal distances keep build order.
	Query(query []float32, k int) (ids []string, distances []float64, err error)

	// Len returns the number of indexed vectors.
	Len() int

	// Metric returns the metric distances are computed with.
	Metric() vector.Metric

	// MarshalBinary serializes the index into a byte slice.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary reconstructs the index from a serialized byte slice.
	UnmarshalBinary(data []byte) error
}
