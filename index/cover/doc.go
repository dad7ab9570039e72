// Package cover implements a kNN index backed by a cover tree.
//
// Vectors are inserted into internal/covertree under Euclidean distance.
// For the cosine metric they are L2-normalised first, which makes Euclidean
// ranking identical to cosine ranking while keeping the triangle inequality
// the radius pruning depends on. Candidates are re-scored with the
// configured metric before they are returned.
package cover
