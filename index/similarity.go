package index

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/viant/imagespider/index/bruteforce"
	"github.com/viant/imagespider/index/cover"
	"github.com/viant/imagespider/store"
	"github.com/viant/imagespider/vector"
)

var (
	// ErrInvalidK is returned for a non-positive neighbour count.
	ErrInvalidK = errors.New("index: k must be positive")

	// ErrStaleIndex is returned under StaleFail when the store changed after
	// the index was built.
	ErrStaleIndex = errors.New("index: stale index")
)

// Strategy selects the kNN implementation.
type Strategy string

const (
	StrategyExact Strategy = "exact"
	StrategyCover Strategy = "cover"
	StrategyAuto  Strategy = "auto"
)

// DefaultAutoThreshold is the collection size from which auto picks cover.
const DefaultAutoThreshold = 20000

// minCoverDimension keeps low-dimensional collections on the exact scan.
const minCoverDimension = 16

// ParseStrategy resolves a configured strategy. Empty defaults to auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyExact, "brute", "bruteforce":
		return StrategyExact, nil
	case StrategyCover:
		return StrategyCover, nil
	}
	return "", fmt.Errorf("index: unsupported strategy %q", s)
}

// ResolveStrategy turns auto into a concrete strategy for n vectors of
// dimension dim.
func ResolveStrategy(s Strategy, n, dim, threshold int) Strategy {
	switch s {
	case StrategyExact, StrategyCover:
		return s
	}
	if threshold <= 0 {
		threshold = DefaultAutoThreshold
	}
	if n >= threshold && dim >= minCoverDimension {
		return StrategyCover
	}
	return StrategyExact
}

// StalePolicy decides what a query does once the store has moved on.
type StalePolicy string

const (
	StaleRebuild StalePolicy = "rebuild"
	StaleFail    StalePolicy = "fail"
)

// ParseStalePolicy resolves a configured policy. Empty defaults to rebuild.
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch StalePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StaleRebuild:
		return StaleRebuild, nil
	case StaleFail:
		return StaleFail, nil
	}
	return "", fmt.Errorf("index: unsupported stale policy %q", s)
}

// Options configure a Similarity index.
type Options struct {
	Metric        vector.Metric
	Strategy      Strategy
	AutoThreshold int
	CoverBase     float64
	StalePolicy   StalePolicy
}

func (o Options) withDefaults() Options {
	if o.Metric == "" {
		o.Metric = vector.Cosine
	}
	if o.Strategy == "" {
		o.Strategy = StrategyAuto
	}
	if o.AutoThreshold <= 0 {
		o.AutoThreshold = DefaultAutoThreshold
	}
	if o.StalePolicy == "" {
		o.StalePolicy = StaleRebuild
	}
	return o
}

// built is one immutable index generation.
type built struct {
	idx      Index
	strategy Strategy
	seqs     map[string]uint64
	dim      int
	version  uint64
	// gen counts builds, starting at 1.
	gen uint64
}

// Similarity binds a kNN strategy to a store. Queries are safe for
// concurrent use; Rebuild swaps the generation atomically.
type Similarity struct {
	store   *store.Store
	opts    Options
	current atomic.Pointer[built]
	mu      sync.Mutex
}

// Build snapshots the store and builds an index over it.
func Build(s *store.Store, opts Options) (*Similarity, error) {
	if s == nil {
		return nil, errors.New("index: nil store")
	}
	sim := &Similarity{store: s, opts: opts.withDefaults()}
	if err := sim.Rebuild(); err != nil {
		return nil, err
	}
	return sim, nil
}

// Rebuild builds a new generation from the current store snapshot and swaps
// it in.
func (s *Similarity) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuild()
}

// rebuildIfStale rebuilds unless another caller already caught up with the
// store while this one waited for the lock.
func (s *Similarity) rebuildIfStale() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.IsStale() {
		return nil
	}
	return s.rebuild()
}

// rebuild requires s.mu held.
func (s *Similarity) rebuild() error {
	entries, version := s.store.Snapshot()
	ids := make([]string, len(entries))
	vecs := make([][]float32, len(entries))
	seqs := make(map[string]uint64, len(entries))
	for i, e := range entries {
		ids[i], vecs[i] = e.ID, e.Vector
		seqs[e.ID] = e.Seq
	}
	dim := s.store.Dimension()
	strategy := ResolveStrategy(s.opts.Strategy, len(entries), dim, s.opts.AutoThreshold)
	idx := s.newIndex(strategy)
	if err := idx.Build(ids, vecs); err != nil {
		return fmt.Errorf("index: build %s: %w", strategy, err)
	}
	var gen uint64 = 1
	if prev := s.current.Load(); prev != nil {
		gen = prev.gen + 1
	}
	s.current.Store(&built{idx: idx, strategy: strategy, seqs: seqs, dim: dim, version: version, gen: gen})
	return nil
}

func (s *Similarity) newIndex(strategy Strategy) Index {
	if strategy == StrategyCover {
		return cover.New(cover.WithMetric(s.opts.Metric), cover.WithBase(s.opts.CoverBase))
	}
	return bruteforce.New(s.opts.Metric)
}

// Metric returns the metric the index ranks by.
func (s *Similarity) Metric() vector.Metric { return s.opts.Metric }

// Strategy returns the concrete strategy of the current generation.
func (s *Similarity) Strategy() Strategy { return s.current.Load().strategy }

// Options returns the resolved options.
func (s *Similarity) Options() Options { return s.opts }

// Len returns the number of indexed embeddings.
func (s *Similarity) Len() int { return s.current.Load().idx.Len() }

// Version returns the store version the current generation was built from.
func (s *Similarity) Version() uint64 { return s.current.Load().version }

// IsStale reports whether the store changed since the last build.
func (s *Similarity) IsStale() bool {
	return s.current.Load().version != s.store.Version()
}

// Query returns up to k neighbours of vec. A stale index is rebuilt first
// under StaleRebuild and rejected with ErrStaleIndex under StaleFail.
func (s *Similarity) Query(vec []float32, k int) (*QueryResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if s.IsStale() {
		if s.opts.StalePolicy == StaleFail {
			return nil, ErrStaleIndex
		}
		if err := s.rebuildIfStale(); err != nil {
			return nil, err
		}
	}
	b := s.current.Load()
	result := &QueryResult{Metric: s.opts.Metric, Strategy: b.strategy, Matches: []Match{}}
	if b.idx.Len() == 0 {
		return result, nil
	}
	if len(vec) != b.dim {
		return nil, &store.DimensionMismatchError{ID: "query", Expected: b.dim, Actual: len(vec)}
	}
	ids, dists, err := b.idx.Query(vec, k)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		result.Matches = append(result.Matches, Match{
			ID:         id,
			Seq:        b.seqs[id],
			Distance:   dists[i],
			Similarity: s.opts.Metric.Similarity(dists[i]),
		})
	}
	return result, nil
}
