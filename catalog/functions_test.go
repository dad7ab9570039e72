package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/imagespider/vector"
)

func TestDistanceFunctions(t *testing.T) {
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	blob := func(v ...float32) []byte {
		b, err := vector.EncodeEmbedding(v)
		require.NoError(t, err)
		return b
	}
	var d float64
	require.NoError(t, c.DB().QueryRow(`SELECT img_cosine_distance(?, ?)`, blob(1, 0), blob(0, 1)).Scan(&d))
	assert.InDelta(t, 1, d, 1e-9)
	require.NoError(t, c.DB().QueryRow(`SELECT img_cosine_distance(?, ?)`, blob(1, 0), blob(2, 0)).Scan(&d))
	assert.InDelta(t, 0, d, 1e-9)
	require.NoError(t, c.DB().QueryRow(`SELECT img_l2_distance(?, ?)`, blob(0, 0), blob(3, 4)).Scan(&d))
	assert.InDelta(t, 5, d, 1e-9)

	err = c.DB().QueryRow(`SELECT img_l2_distance(?, ?)`, blob(0, 0), blob(3)).Scan(&d)
	assert.Error(t, err)
}

func TestCatalog_Nearest(t *testing.T) {
	ctx := context.Background()
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Save(ctx, sampleHeader(), sampleEntries()))

	got, err := c.Nearest(ctx, []float32{0.4, 0.5, 0.6}, vector.Cosine, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.png", got[0].ID)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
	assert.Equal(t, "b.png", got[1].ID)

	got, err = c.Nearest(ctx, []float32{-1, 0, 1}, vector.Euclidean, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sub/c.jpg", got[0].ID)
	assert.Equal(t, uint64(3), got[0].Seq)

	_, err = c.Nearest(ctx, []float32{1, 0, 0}, vector.Cosine, 0)
	assert.Error(t, err)
}
