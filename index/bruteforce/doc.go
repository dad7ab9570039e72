// Package bruteforce provides the exact vector index: every query scans all
// vectors and keeps the k closest in a bounded max-heap. It is the default
// for small and medium collections and the reference the cover index is
// tested against. It supports a compact binary format for persistence.
package bruteforce
