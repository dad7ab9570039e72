package covertree

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPoints(r *rand.Rand, n, dim int) []*Point {
	points := make([]*Point, n)
	for i := range points {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		points[i] = NewPoint(int32(i), v)
	}
	return points
}

func bruteKNN(points []*Point, q *Point, k int) []int32 {
	type pd struct {
		pos  int32
		dist float64
	}
	all := make([]pd, len(points))
	for i, p := range points {
		var s float64
		for j := range p.Vector {
			d := float64(p.Vector[j]) - float64(q.Vector[j])
			s += d * d
		}
		all[i] = pd{pos: p.Pos, dist: math.Sqrt(s)}
	}
	sort.Slice(all, func(a, b int) bool { return all[a].dist < all[b].dist })
	out := make([]int32, k)
	for i := range out {
		out[i] = all[i].pos
	}
	return out
}

func TestTree_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	points := randomPoints(r, 500, 8)
	tree := New(1.3)
	for _, p := range points {
		tree.Insert(p)
	}
	tree.Freeze()
	require.Equal(t, 500, tree.Len())

	for _, q := range randomPoints(r, 20, 8) {
		got := tree.KNearestNeighbors(q, 5)
		require.Len(t, got, 5)
		want := bruteKNN(points, q, 5)
		for i := range got {
			assert.Equal(t, want[i], got[i].Point.Pos)
			if i > 0 {
				assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
			}
		}
	}
}

func TestTree_SelfQueryAndSmallK(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	points := randomPoints(r, 64, 4)
	tree := New(0)
	assert.Equal(t, float32(1.3), tree.Base())
	for _, p := range points {
		tree.Insert(p)
	}
	tree.Freeze()

	for _, p := range points {
		got := tree.KNearestNeighbors(p, 1)
		require.Len(t, got, 1)
		assert.Equal(t, p.Pos, got[0].Point.Pos)
		assert.InDelta(t, 0, got[0].Distance, 1e-5)
	}
}

func TestTree_EmptyAndDuplicates(t *testing.T) {
	tree := New(1.3)
	tree.Freeze()
	assert.Empty(t, tree.KNearestNeighbors(NewPoint(0, []float32{1, 1}), 3))

	for i := range 10 {
		tree.Insert(NewPoint(int32(i), []float32{1, 1}))
	}
	tree.Freeze()
	got := tree.KNearestNeighbors(NewPoint(-1, []float32{1, 1}), 3)
	require.Len(t, got, 3)
	assert.Equal(t, []int32{0, 1, 2}, []int32{got[0].Point.Pos, got[1].Point.Pos, got[2].Point.Pos})
}
