// Package vector holds the numeric helpers shared by the store, the
// similarity indexes and the catalog:
//   - Metric: the fixed distance metric (cosine or euclidean) and its score
//   - L2 normalisation and magnitude
//   - Embedding encoding (little-endian float32 BLOB)
package vector
