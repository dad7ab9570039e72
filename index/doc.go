// Package index answers k-nearest-neighbour queries over an embedding
// store.
//
// Two strategies implement Index: bruteforce (exact scan, the reference)
// and cover (cover tree with radius pruning, sub-linear on large
// collections). Similarity binds a strategy to a store version, tracks
// staleness and turns raw distances into ranked QueryResults.
package index
