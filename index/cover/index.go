package cover

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/viant/imagespider/index/bruteforce"
	"github.com/viant/imagespider/internal/covertree"
	"github.com/viant/imagespider/vector"
)

const magic = "COV1"

// DefaultBase is the level base used when none is configured.
const DefaultBase = 1.3

// Option configures an Index.
type Option func(*Index)

// WithBase sets the cover tree level base. Values <= 1 are ignored.
func WithBase(base float64) Option {
	return func(i *Index) {
		if base > 1 {
			i.base = base
		}
	}
}

// WithMetric sets the ranking metric.
func WithMetric(metric vector.Metric) Option {
	return func(i *Index) { i.metric = metric }
}

// Index is a cover-tree kNN index. It is immutable after Build.
type Index struct {
	metric vector.Metric
	base   float64
	ids    []string
	vecs   [][]float32
	mags   []float64
	dim    int
	tree   *covertree.Tree
	// zeros holds the positions of zero-magnitude vectors, kept out of the
	// tree under cosine.
	zeros []int
}

// New creates an empty index.
func New(opts ...Option) *Index {
	i := &Index{metric: vector.Cosine, base: DefaultBase}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Metric returns the ranking metric.
func (i *Index) Metric() vector.Metric {
	if i.metric == "" {
		return vector.Cosine
	}
	return i.metric
}

// Base returns the tree level base.
func (i *Index) Base() float64 {
	if i.base <= 1 {
		return DefaultBase
	}
	return i.base
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

// Build inserts every vector into a fresh tree and computes its radii.
func (i *Index) Build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("cover: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(vectors) > math.MaxInt32 {
		return fmt.Errorf("cover: too many vectors: %d", len(vectors))
	}
	tree := covertree.New(float32(i.Base()))
	if len(vectors) == 0 {
		i.ids, i.vecs, i.mags, i.dim, i.zeros = nil, nil, nil, 0, nil
		tree.Freeze()
		i.tree = tree
		return nil
	}
	dim := len(vectors[0])
	mags := make([]float64, len(vectors))
	for j, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("cover: inconsistent vector dims %d vs %d", len(v), dim)
		}
		mags[j] = vector.Magnitude(v)
	}
	cosine := i.Metric() == vector.Cosine
	var zeros []int
	for j, v := range vectors {
		if cosine {
			if mags[j] == 0 {
				zeros = append(zeros, j)
				continue
			}
			v = vector.Normalize(v)
		}
		tree.Insert(covertree.NewPoint(int32(j), v))
	}
	tree.Freeze()

	i.ids = slices.Clone(ids)
	i.vecs = slices.Clone(vectors)
	i.mags = mags
	i.dim = dim
	i.tree = tree
	i.zeros = zeros
	return nil
}

// Query returns up to k ids ordered by ascending metric distance, ties by
// build order.
func (i *Index) Query(query []float32, k int) ([]string, []float64, error) {
	if len(i.vecs) == 0 || k <= 0 {
		return nil, nil, nil
	}
	if len(query) != i.dim {
		return nil, nil, fmt.Errorf("cover: query dim %d != index dim %d", len(query), i.dim)
	}
	if k > len(i.vecs) {
		k = len(i.vecs)
	}
	metric := i.Metric()
	qm := vector.Magnitude(query)
	var positions []int
	if metric == vector.Cosine && qm == 0 {
		// A zero query is at distance 0 from stored zero vectors and 1 from
		// the rest, so every position is scored.
		positions = make([]int, len(i.vecs))
		for j := range positions {
			positions[j] = j
		}
	} else {
		target := query
		if metric == vector.Cosine {
			target = vector.Normalize(query)
		}
		for _, n := range i.tree.KNearestNeighbors(covertree.NewPoint(-1, target), k) {
			positions = append(positions, int(n.Point.Pos))
		}
		positions = append(positions, i.zeros...)
	}

	type scored struct {
		pos  int
		dist float64
	}
	results := make([]scored, 0, len(positions))
	for _, pos := range positions {
		results = append(results, scored{pos: pos, dist: metric.DistanceWithMagnitude(query, qm, i.vecs[pos], i.mags[pos])})
	}
	slices.SortFunc(results, func(a, b scored) int {
		if c := vector.CompareDistance(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})
	if len(results) > k {
		results = results[:k]
	}
	ids := make([]string, len(results))
	dists := make([]float64, len(results))
	for n, r := range results {
		ids[n] = i.ids[r.pos]
		dists[n] = r.dist
	}
	return ids, dists, nil
}

// MarshalBinary stores: "COV1", base(float64), metricLen(uint32), metric,
// then the brute-force payload. The tree is rebuilt on load.
func (i *Index) MarshalBinary() ([]byte, error) {
	metric := string(i.Metric())
	out := make([]byte, 0, len(magic)+12+len(metric))
	out = append(out, magic...)
	out = binary.LittleEndian.AppendUint64(out, math.Float64bits(i.Base()))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(metric)))
	out = append(out, metric...)
	return append(out, bruteforce.Encode(i.ids, i.vecs)...), nil
}

// UnmarshalBinary restores the index and rebuilds its tree.
func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < len(magic)+12 || string(data[:len(magic)]) != magic {
		return errors.New("cover: invalid data")
	}
	off := len(magic)
	base := math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	mlen := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if off+mlen > len(data) {
		return errors.New("cover: truncated metric")
	}
	metric, err := vector.ParseMetric(string(data[off : off+mlen]))
	if err != nil {
		return fmt.Errorf("cover: %w", err)
	}
	off += mlen
	ids, vecs, err := bruteforce.Decode(data[off:])
	if err != nil {
		return err
	}
	i.base = base
	i.metric = metric
	return i.Build(ids, vecs)
}
