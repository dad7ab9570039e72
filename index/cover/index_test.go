package cover

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/imagespider/index/bruteforce"
	"github.com/viant/imagespider/vector"
)

func randomCollection(seed int64, n, dim int) ([]string, [][]float32) {
	r := rand.New(rand.NewSource(seed))
	ids := make([]string, n)
	vecs := make([][]float32, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("img-%04d.png", i)
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()
		}
		vecs[i] = v
	}
	return ids, vecs
}

func TestIndex_AgreesWithBruteForce(t *testing.T) {
	for _, metric := range []vector.Metric{vector.Cosine, vector.Euclidean} {
		t.Run(string(metric), func(t *testing.T) {
			ids, vecs := randomCollection(42, 400, 16)
			exact := bruteforce.New(metric)
			require.NoError(t, exact.Build(ids, vecs))
			tree := New(WithMetric(metric))
			require.NoError(t, tree.Build(ids, vecs))

			_, queries := randomCollection(99, 25, 16)
			for _, q := range queries {
				wantIDs, wantDists, err := exact.Query(q, 10)
				require.NoError(t, err)
				gotIDs, gotDists, err := tree.Query(q, 10)
				require.NoError(t, err)
				assert.Equal(t, wantIDs, gotIDs)
				require.Len(t, gotDists, len(wantDists))
				for i := range wantDists {
					assert.InDelta(t, wantDists[i], gotDists[i], 1e-9)
				}
			}
		})
	}
}

func TestIndex_SelfMatch(t *testing.T) {
	ids, vecs := randomCollection(3, 120, 24)
	idx := New()
	require.NoError(t, idx.Build(ids, vecs))
	for i, v := range vecs {
		got, dists, err := idx.Query(v, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ids[i], got[0])
		assert.InDelta(t, 0, dists[0], 1e-6)
	}
}

func TestIndex_EdgeCases(t *testing.T) {
	idx := New(WithBase(2))
	assert.Equal(t, 2.0, idx.Base())
	require.NoError(t, idx.Build(nil, nil))
	got, _, err := idx.Query([]float32{1, 2}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, idx.Build([]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))
	got, _, err = idx.Query([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, _, err = idx.Query([]float32{1, 0, 0}, 1)
	assert.Error(t, err)

	assert.Error(t, idx.Build([]string{"a"}, nil))
	assert.Error(t, idx.Build([]string{"a", "b"}, [][]float32{{1}, {1, 2}}))
}

func TestIndex_DuplicateVectorsKeepBuildOrder(t *testing.T) {
	idx := New(WithMetric(vector.Euclidean))
	require.NoError(t, idx.Build(
		[]string{"first", "second", "third"},
		[][]float32{{1, 1}, {1, 1}, {5, 5}},
	))
	got, _, err := idx.Query([]float32{1, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestIndex_BinaryRoundTrip(t *testing.T) {
	ids, vecs := randomCollection(5, 50, 8)
	idx := New(WithMetric(vector.Euclidean), WithBase(1.7))
	require.NoError(t, idx.Build(ids, vecs))
	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, vector.Euclidean, restored.Metric())
	assert.Equal(t, 1.7, restored.Base())
	assert.Equal(t, idx.Len(), restored.Len())

	want, _, err := idx.Query(vecs[7], 5)
	require.NoError(t, err)
	got, _, err := restored.Query(vecs[7], 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, restored.UnmarshalBinary([]byte("nope")))
}

func TestIndex_ZeroVectors(t *testing.T) {
	idx := New(WithMetric(vector.Cosine))
	ids := []string{"a", "zero", "b", "zero2"}
	vecs := [][]float32{{1, 0}, {0, 0}, {0.9, 0.1}, {0, 0}}
	require.NoError(t, idx.Build(ids, vecs))

	got, dists, err := idx.Query([]float32{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"zero", "zero2", "a"}, got)
	assert.Equal(t, []float64{0, 0, 1}, dists)

	got, _, err = idx.Query([]float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "zero", "zero2"}, got)

	got, _, err = idx.Query([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)

	want := bruteforce.New(vector.Cosine)
	require.NoError(t, want.Build(ids, vecs))
	for _, q := range vecs {
		wantIDs, _, err := want.Query(q, 4)
		require.NoError(t, err)
		gotIDs, _, err := idx.Query(q, 4)
		require.NoError(t, err)
		assert.Equal(t, wantIDs, gotIDs, fmt.Sprint(q))
	}
}
