package bruteforce

import (
	"container/heap"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/viant/imagespider/vector"
)

// Index is an exact kNN index. The zero value uses the cosine metric.
type Index struct {
	metric vector.Metric
	ids    []string
	vecs   [][]float32
	dim    int
	mags   []float64
}

// New creates an empty index using the given metric.
func New(metric vector.Metric) *Index {
	return &Index{metric: metric}
}

// Metric returns the metric used for ranking.
func (i *Index) Metric() vector.Metric {
	if i.metric == "" {
		return vector.Cosine
	}
	return i.metric
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

// Build loads ids and vectors and precomputes magnitudes.
func (i *Index) Build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("bruteforce: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		i.ids, i.vecs, i.mags, i.dim = nil, nil, nil, 0
		return nil
	}
	dim := len(vectors[0])
	for j := range vectors {
		if len(vectors[j]) != dim {
			return fmt.Errorf("bruteforce: inconsistent vector dims %d vs %d", len(vectors[j]), dim)
		}
	}
	mags := make([]float64, len(vectors))
	for j := range vectors {
		mags[j] = vector.Magnitude(vectors[j])
	}
	i.ids = slices.Clone(ids)
	i.vecs = slices.Clone(vectors)
	i.dim = dim
	i.mags = mags
	return nil
}

// Query returns the k closest ids. k is clamped to the index size.
func (i *Index) Query(query []float32, k int) ([]string, []float64, error) {
	if len(i.vecs) == 0 || k <= 0 {
		return nil, nil, nil
	}
	if len(query) != i.dim {
		return nil, nil, fmt.Errorf("bruteforce: query dim %d != index dim %d", len(query), i.dim)
	}
	if k > len(i.vecs) {
		k = len(i.vecs)
	}
	metric := i.Metric()
	qm := vector.Magnitude(query)
	h := make(candidates, 0, k)
	for j := range i.vecs {
		c := candidate{pos: j, dist: metric.DistanceWithMagnitude(query, qm, i.vecs[j], i.mags[j])}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if c.before(h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	ordered := make([]candidate, len(h))
	for n := len(ordered) - 1; n >= 0; n-- {
		ordered[n] = heap.Pop(&h).(candidate)
	}
	outIDs := make([]string, len(ordered))
	outDists := make([]float64, len(ordered))
	for n, c := range ordered {
		outIDs[n] = i.ids[c.pos]
		outDists[n] = c.dist
	}
	return outIDs, outDists, nil
}

type candidate struct {
	pos  int
	dist float64
}

// before reports whether c ranks ahead of o: smaller distance first, NaN
// last, then earlier position.
func (c candidate) before(o candidate) bool {
	if d := vector.CompareDistance(c.dist, o.dist); d != 0 {
		return d < 0
	}
	return c.pos < o.pos
}

// candidates is a max-heap whose root is the worst kept candidate.
type candidates []candidate

func (h candidates) Len() int            { return len(h) }
func (h candidates) Less(a, b int) bool  { return h[b].before(h[a]) }
func (h candidates) Swap(a, b int)       { h[a], h[b] = h[b], h[a] }
func (h *candidates) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidates) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// MarshalBinary stores: dim(uint32), n(uint32), then for each item:
// idLen(uint32), id bytes, vec(float32[dim]).
func (i *Index) MarshalBinary() ([]byte, error) {
	return Encode(i.ids, i.vecs), nil
}

// UnmarshalBinary restores the index from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	ids, vecs, err := Decode(data)
	if err != nil {
		return err
	}
	return i.Build(ids, vecs)
}

// Encode writes ids and vectors in the brute-force binary layout.
func Encode(ids []string, vecs [][]float32) []byte {
	dim := 0
	if len(vecs) > 0 {
		dim = len(vecs[0])
	}
	size := 8
	for _, id := range ids {
		size += 4 + len(id) + 4*dim
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(ids)))
	for idx, id := range ids {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(id)))
		out = append(out, id...)
		for _, v := range vecs[idx] {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out
}

// Decode parses the brute-force binary layout.
func Decode(data []byte) ([]string, [][]float32, error) {
	if len(data) < 8 {
		return nil, nil, errors.New("bruteforce: invalid data")
	}
	off := 0
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(data[off : off+4]); off += 4; return v }
	dim := int(getU32())
	n := int(getU32())
	if n > (len(data)-8)/4 {
		return nil, nil, errors.New("bruteforce: truncated")
	}
	ids := make([]string, n)
	vecs := make([][]float32, n)
	for idx := 0; idx < n; idx++ {
		if off+4 > len(data) {
			return nil, nil, errors.New("bruteforce: truncated")
		}
		idlen := int(getU32())
		if off+idlen > len(data) {
			return nil, nil, errors.New("bruteforce: truncated id")
		}
		ids[idx] = string(data[off : off+idlen])
		off += idlen
		if off+4*dim > len(data) {
			return nil, nil, errors.New("bruteforce: truncated vec")
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(getU32())
		}
		vecs[idx] = vec
	}
	return ids, vecs, nil
}
