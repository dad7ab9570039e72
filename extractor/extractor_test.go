package extractor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/imagespider/imaging"
	"github.com/viant/imagespider/internal/testutil"
	"github.com/viant/imagespider/vector"
)

func decodeFixture(t *testing.T, size int, name string, p testutil.Pattern) *imaging.Image {
	t.Helper()
	path := testutil.WriteImage(t, t.TempDir(), name, p, 50, 40)
	img, err := imaging.NewDecoder(imaging.Options{Size: size}).Decode(path)
	require.NoError(t, err)
	return img
}

func TestThumbnail_Shape(t *testing.T) {
	th := NewThumbnail(0)
	assert.Equal(t, DefaultGrid*DefaultGrid*4, th.Dimension())
	assert.Equal(t, "thumbnail-g8", th.Model())
	assert.Equal(t, DeviceCPU, DeviceOf(th))

	img := decodeFixture(t, th.InputSize(), "a.png", testutil.Gradient(testutil.Red, testutil.Blue))
	vec, err := th.Embed(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, vec, th.Dimension())
	assert.InDelta(t, 1, vector.Magnitude(vec), 1e-5)
}

func TestThumbnail_Deterministic(t *testing.T) {
	th := NewThumbnail(4)
	img := decodeFixture(t, th.InputSize(), "c.png", testutil.Checker(testutil.White, testutil.Black, 5))
	a, err := th.Embed(context.Background(), img)
	require.NoError(t, err)
	b, err := th.Embed(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestThumbnail_BatchMatchesSingle(t *testing.T) {
	th := NewThumbnail(4)
	imgs := []*imaging.Image{
		decodeFixture(t, th.InputSize(), "r.png", testutil.Solid(testutil.Red)),
		decodeFixture(t, th.InputSize(), "g.png", testutil.Gradient(testutil.Green, testutil.Blue)),
		decodeFixture(t, th.InputSize(), "k.png", testutil.Checker(testutil.White, testutil.Black, 3)),
	}
	batch, err := th.EmbedBatch(context.Background(), imgs)
	require.NoError(t, err)
	require.Len(t, batch, len(imgs))
	for i, img := range imgs {
		single, err := th.Embed(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestThumbnail_SeparatesContent(t *testing.T) {
	th := NewThumbnail(4)
	red := decodeFixture(t, th.InputSize(), "red.png", testutil.Solid(testutil.Red))
	red2 := decodeFixture(t, th.InputSize(), "red2.jpg", testutil.Solid(testutil.Red))
	blue := decodeFixture(t, th.InputSize(), "blue.png", testutil.Solid(testutil.Blue))
	vr, err := th.Embed(context.Background(), red)
	require.NoError(t, err)
	vr2, err := th.Embed(context.Background(), red2)
	require.NoError(t, err)
	vb, err := th.Embed(context.Background(), blue)
	require.NoError(t, err)
	assert.Less(t, vector.Cosine.Distance(vr, vr2), vector.Cosine.Distance(vr, vb))
}

func TestThumbnail_Errors(t *testing.T) {
	th := NewThumbnail(4)
	wrong := decodeFixture(t, th.InputSize()+1, "w.png", testutil.Solid(testutil.Red))
	_, err := th.Embed(context.Background(), wrong)
	assert.Error(t, err)
	_, err = th.Embed(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := decodeFixture(t, th.InputSize(), "ok.png", testutil.Solid(testutil.Red))
	_, err = th.Embed(ctx, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseDevice(t *testing.T) {
	testCases := []struct {
		in     string
		expect Device
		err    bool
	}{
		{in: "", expect: DeviceAuto},
		{in: "CPU", expect: DeviceCPU},
		{in: "gpu", expect: DeviceAccelerator},
		{in: "accelerator", expect: DeviceAccelerator},
		{in: "tpu", err: true},
	}
	for _, tc := range testCases {
		got, err := ParseDevice(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.expect, got)
	}
}

func TestNew(t *testing.T) {
	e, err := New(Config{Grid: 2})
	require.NoError(t, err)
	assert.IsType(t, &Thumbnail{}, e)
	assert.Equal(t, 16, e.Dimension())

	_, err = New(Config{Model: "vgg19"})
	assert.Error(t, err)

	_, err = New(Config{Model: "vgg19", Weights: filepath.Join(t.TempDir(), "missing.onnx")})
	assert.Error(t, err)
}
