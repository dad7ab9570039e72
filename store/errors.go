package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an identifier is not in the store.
	ErrNotFound = errors.New("store: identifier not found")

	// ErrDimensionMismatch matches every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("store: dimension mismatch")

	// ErrDuplicateIdentifier matches every *DuplicateIdentifierError.
	ErrDuplicateIdentifier = errors.New("store: duplicate identifier")

	// ErrEmptyEmbedding is returned when adding a zero-length vector.
	ErrEmptyEmbedding = errors.New("store: empty embedding")

	// ErrNonFinite matches every *NonFiniteError.
	ErrNonFinite = errors.New("store: non-finite embedding")
)

// DimensionMismatchError reports an embedding whose dimension differs from
// the store's established dimension.
type DimensionMismatchError struct {
	ID       string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("store: dimension mismatch for %q: expected %d, got %d", e.ID, e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// DuplicateIdentifierError reports an Add for an identifier that is already
// stored.
type DuplicateIdentifierError struct {
	ID  string
	Seq uint64
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("store: identifier %q already stored at sequence %d", e.ID, e.Seq)
}

func (e *DuplicateIdentifierError) Is(target error) bool { return target == ErrDuplicateIdentifier }

// NonFiniteError reports an embedding holding NaN or an infinity.
type NonFiniteError struct {
	ID    string
	Index int
	Value float32
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("store: non-finite embedding for %q: component %d is %v", e.ID, e.Index, e.Value)
}

func (e *NonFiniteError) Is(target error) bool { return target == ErrNonFinite }
