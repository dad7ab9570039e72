// Package engine orchestrates image similarity search: it decodes and
// embeds a collection on a bounded worker pool, keeps the embeddings in an
// ordered store, maintains a similarity index over them and answers
// find-similar requests by identifier or by path.
//
// Every path gets a sequence number when it is submitted, so the store
// order and therefore tie-breaking in results match the order of the input
// list whatever the worker count.
package engine
