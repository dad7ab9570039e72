package imaging

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/imagespider/internal/testutil"
)

func TestAccepts(t *testing.T) {
	testCases := []struct {
		path   string
		expect bool
	}{
		{"a.png", true},
		{"dir/B.JPG", true},
		{"c.jpeg", true},
		{"d.Gif", true},
		{"e.bmp", true},
		{"f.tiff", false},
		{"noext", false},
		{"g.png.txt", false},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expect, Accepts(tc.path))
		})
	}
}

func TestDecoder_DecodeFormats(t *testing.T) {
	dir := t.TempDir()
	dec := NewDecoder(Options{Size: 32})
	for _, name := range []string{"a.png", "b.jpg", "c.gif", "d.bmp"} {
		t.Run(name, func(t *testing.T) {
			path := testutil.WriteImage(t, dir, name, testutil.Solid(testutil.Red), 40, 20)
			img, err := dec.Decode(path)
			require.NoError(t, err)
			assert.Equal(t, 40, img.Width)
			assert.Equal(t, 20, img.Height)
			assert.Equal(t, 32, img.Size)
			require.Len(t, img.Pix, 3*32*32)
			// red channel well above mean, blue well below
			assert.Greater(t, img.At(0, 16, 16), float32(1))
			assert.Less(t, img.At(2, 16, 16), float32(0))
		})
	}
}

func TestDecoder_Normalisation(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteImage(t, dir, "white.png", testutil.Solid(testutil.White), 8, 8)
	img, err := NewDecoder(Options{Size: 4}).Decode(path)
	require.NoError(t, err)
	for c := 0; c < 3; c++ {
		want := (1 - ImageNetMean[c]) / ImageNetStd[c]
		for _, v := range img.Plane(c) {
			assert.InDelta(t, want, v, 1e-5)
		}
	}
}

func TestDecoder_Deterministic(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteImage(t, dir, "g.png", testutil.Gradient(testutil.Red, testutil.Blue), 97, 61)
	dec := NewDecoder(DefaultOptions())
	a, err := dec.Decode(path)
	require.NoError(t, err)
	b, err := dec.Decode(path)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)
	assert.Equal(t, DefaultSize, a.Size)
}

func TestDecoder_Failures(t *testing.T) {
	dir := t.TempDir()
	empty := testutil.WriteFile(t, dir, "empty.png", nil)
	corrupt := testutil.WriteFile(t, dir, "corrupt.jpg", []byte("definitely not a jpeg"))
	text := testutil.WriteFile(t, dir, "notes.txt", []byte("hello"))

	testCases := []struct {
		name   string
		path   string
		reason string
	}{
		{name: "empty", path: empty, reason: ReasonEmpty},
		{name: "unsupported", path: text, reason: ReasonUnsupported},
		{name: "missing", path: filepath.Join(dir, "missing.png"), reason: "no such file or directory"},
		{name: "corrupt", path: corrupt, reason: "decode: "},
	}
	dec := NewDecoder(Options{})
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := dec.Decode(tc.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)
			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tc.path, decErr.Path)
			assert.Contains(t, decErr.Reason, tc.reason)
		})
	}
}
