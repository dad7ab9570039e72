package store

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/google/btree"
)

// Entry is one stored embedding. Seq defines its position relative to the
// other entries; Vector must be treated as read-only.
type Entry struct {
	Seq    uint64
	ID     string
	Vector []float32
}

type idItem struct {
	id  string
	seq uint64
}

func lessID(a, b idItem) bool { return a.id < b.id }

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	dim     int
	entries []Entry // sorted by Seq
	byID    *btree.BTreeG[idItem]
	next    uint64
	version uint64
}

// New creates a store for embeddings of the given dimension. A dimension of
// 0 is established by the first insertion.
func New(dim int) *Store {
	return &Store{
		dim:  dim,
		byID: btree.NewG[idItem](16, lessID),
	}
}

// Reserve hands out n consecutive sequence numbers and returns the first.
func (s *Store) Reserve(n int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.next
	s.next += uint64(n)
	return base
}

// Add appends an embedding under the next free sequence number.
func (s *Store) Add(id string, vec []float32) (uint64, error) {
	seq := s.Reserve(1)
	return seq, s.AddAt(seq, id, vec)
}

// AddAt inserts an embedding at a sequence number obtained from Reserve.
// It fails with *DimensionMismatchError, *DuplicateIdentifierError or
// *NonFiniteError and leaves the store unchanged in that case.
func (s *Store) AddAt(seq uint64, id string, vec []float32) error {
	if err := checkVector(id, vec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(seq, id, vec)
}

// insert requires s.mu held for writing.
func (s *Store) insert(seq uint64, id string, vec []float32) error {
	if err := s.checkDimension(id, vec); err != nil {
		return err
	}
	if existing, ok := s.byID.Get(idItem{id: id}); ok {
		return &DuplicateIdentifierError{ID: id, Seq: existing.seq}
	}
	pos, found := s.search(seq)
	if found {
		return fmt.Errorf("store: sequence %d already used by %q", seq, s.entries[pos].ID)
	}
	if s.dim == 0 {
		s.dim = len(vec)
	}
	s.entries = slices.Insert(s.entries, pos, Entry{Seq: seq, ID: id, Vector: slices.Clone(vec)})
	s.byID.ReplaceOrInsert(idItem{id: id, seq: seq})
	if seq >= s.next {
		s.next = seq + 1
	}
	s.version++
	return nil
}

// Replace swaps the embedding stored under id, keeping its sequence number.
// An absent id is appended as by Add. Either way every index built before
// the call becomes stale.
func (s *Store) Replace(id string, vec []float32) error {
	if err := checkVector(id, vec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.byID.Get(idItem{id: id})
	if !ok {
		seq := s.next
		s.next++
		return s.insert(seq, id, vec)
	}
	if err := s.checkDimension(id, vec); err != nil {
		return err
	}
	pos, _ := s.search(item.seq)
	s.entries[pos].Vector = slices.Clone(vec)
	s.version++
	return nil
}

func checkVector(id string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyEmbedding, id)
	}
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return &NonFiniteError{ID: id, Index: i, Value: v}
		}
	}
	return nil
}

func (s *Store) checkDimension(id string, vec []float32) error {
	if s.dim != 0 && len(vec) != s.dim {
		return &DimensionMismatchError{ID: id, Expected: s.dim, Actual: len(vec)}
	}
	return nil
}

func (s *Store) search(seq uint64) (int, bool) {
	return slices.BinarySearchFunc(s.entries, seq, func(e Entry, target uint64) int {
		return cmp.Compare(e.Seq, target)
	})
}

// Get returns a copy of the embedding stored under id.
func (s *Store) Get(id string) ([]float32, error) {
	e, err := s.Entry(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.Vector), nil
}

// Entry returns the entry stored under id.
func (s *Store) Entry(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.byID.Get(idItem{id: id})
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	pos, _ := s.search(item.seq)
	return s.entries[pos], nil
}

// Contains reports whether id is stored.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID.Has(idItem{id: id})
}

// All returns the entries ordered by sequence number.
func (s *Store) All() []Entry {
	entries, _ := s.Snapshot()
	return entries
}

// Snapshot returns the entries ordered by sequence number together with the
// store version they reflect.
func (s *Store) Snapshot() ([]Entry, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries), s.version
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dimension returns the established dimension, or 0 before the first
// insertion into a store created with New(0).
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
