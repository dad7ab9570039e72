// Package catalog persists an embedding collection so it can be reused
// without re-running the extractor.
//
// A catalog is a SQLite database (modernc.org/sqlite, pure Go) holding a
// metadata table with the model id, dimension and metric, and an entries
// table of (seq, id, path, vector). Load refuses a catalog written by a
// different model or with a different dimension.
//
// Snapshots are the portable alternative: a single file with the magic
// "ISNP", a JSON header and a zstd-compressed payload in the brute-force
// index layout.
package catalog
