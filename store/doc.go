// Package store provides the embedding store: an ordered, append-only
// collection of (identifier, embedding) entries that backs index
// construction and embedding reuse at query time.
//
// Entries are ordered by a sequence number. Callers that insert from
// several goroutines reserve sequence numbers up front (Reserve) and insert
// with AddAt, so the order reflects submission rather than completion.
package store
