package catalog

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/imagespider/store"
	"github.com/viant/imagespider/vector"
)

func sampleEntries() []Entry {
	return []Entry{
		{Seq: 0, ID: "b.png", Path: "/photos/b.png", Vector: []float32{0.1, 0.2, 0.3}},
		{Seq: 1, ID: "a.png", Path: "/photos/a.png", Vector: []float32{0.4, 0.5, 0.6}},
		{Seq: 3, ID: "sub/c.jpg", Path: "/photos/sub/c.jpg", Vector: []float32{-1, 0, 1}},
	}
}

func sampleHeader() Header {
	return Header{
		Model:     "thumbnail-g8",
		Dimension: 3,
		Metric:    vector.Cosine,
		Root:      "/photos",
		SavedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCatalog_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Save(ctx, sampleHeader(), sampleEntries()))
	h, entries, err := c.Load(ctx, Expect{Model: "thumbnail-g8", Dimension: 3})
	require.NoError(t, err)
	assert.Equal(t, sampleHeader(), h)
	assert.Equal(t, sampleEntries(), entries)
}

func TestCatalog_SaveReplacesContent(t *testing.T) {
	ctx := context.Background()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Save(ctx, sampleHeader(), sampleEntries()))
	h := sampleHeader()
	h.Metric = vector.Euclidean
	require.NoError(t, c.Save(ctx, h, sampleEntries()[:1]))

	got, entries, err := c.Load(ctx, Expect{})
	require.NoError(t, err)
	assert.Equal(t, vector.Euclidean, got.Metric)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.png", entries[0].ID)
}

func TestCatalog_Mismatch(t *testing.T) {
	ctx := context.Background()
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Save(ctx, sampleHeader(), sampleEntries()))

	_, _, err = c.Load(ctx, Expect{Model: "vgg19"})
	var modelErr *ModelMismatchError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, "thumbnail-g8", modelErr.Stored)
	assert.Equal(t, "vgg19", modelErr.Expected)

	_, _, err = c.Load(ctx, Expect{Model: "thumbnail-g8", Dimension: 256})
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, _, err = c.Load(ctx, Expect{Model: "thumbnail-g8", Metric: vector.Euclidean})
	var metricErr *MetricMismatchError
	assert.ErrorAs(t, err, &metricErr)
}

func TestCatalog_EmptyAndInvalid(t *testing.T) {
	ctx := context.Background()
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	_, _, err = c.Load(ctx, Expect{})
	assert.ErrorIs(t, err, ErrEmpty)

	bad := sampleEntries()
	bad[1].Vector = []float32{1}
	err = c.Save(ctx, sampleHeader(), bad)
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
	_, err = c.ReadHeader(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, sampleHeader(), sampleEntries()))
	assert.Equal(t, "ISNP", buf.String()[:4])

	h, entries, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleHeader(), h)
	assert.Equal(t, sampleEntries(), entries)
}

func TestSnapshot_Invalid(t *testing.T) {
	_, _, err := ReadSnapshot(bytes.NewReader([]byte("nope")))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
	_, _, err = ReadSnapshot(bytes.NewReader([]byte("XXXX\x00\x00\x00\x00")))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, sampleHeader(), sampleEntries()))
	truncated := buf.Bytes()[:buf.Len()-5]
	_, _, err = ReadSnapshot(bytes.NewReader(truncated))
	assert.Error(t, err)

	bad := sampleEntries()
	bad[0].Vector = nil
	assert.Error(t, WriteSnapshot(&bytes.Buffer{}, sampleHeader(), bad))
}
