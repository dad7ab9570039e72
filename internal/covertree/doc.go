// Package covertree implements a cover tree over float32 points for exact
// kNN search under a true metric. It is adapted from github.com/viant/gds
// tree/cover: insertion follows the level-based cover invariant, and
// queries run best-first with per-node subtree radii as lower bounds.
//
// Radii are computed once by Freeze; after that the tree is read-only and
// safe for concurrent queries.
package covertree
