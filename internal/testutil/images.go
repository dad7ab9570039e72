// Package testutil writes image fixtures for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// Pattern paints pixel (x, y) of a w×h image.
type Pattern func(x, y, w, h int) color.RGBA

// Solid paints every pixel with c.
func Solid(c color.RGBA) Pattern {
	return func(int, int, int, int) color.RGBA { return c }
}

// Gradient blends from c0 on the left edge to c1 on the right.
func Gradient(c0, c1 color.RGBA) Pattern {
	return func(x, _, w, _ int) color.RGBA {
		t := float64(x) / float64(max(w-1, 1))
		mix := func(a, b uint8) uint8 { return uint8(float64(a)*(1-t) + float64(b)*t) }
		return color.RGBA{R: mix(c0.R, c1.R), G: mix(c0.G, c1.G), B: mix(c0.B, c1.B), A: 255}
	}
}

// Checker alternates c0 and c1 in square cells of the given side.
func Checker(c0, c1 color.RGBA, cell int) Pattern {
	return func(x, y, _, _ int) color.RGBA {
		if (x/cell+y/cell)%2 == 0 {
			return c0
		}
		return c1
	}
}

// Render draws p onto a new w×h image.
func Render(p Pattern, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, p(x, y, w, h))
		}
	}
	return img
}

// WriteImage encodes p at w×h into dir/name, choosing the codec from the
// extension, and returns the full path.
func WriteImage(t testing.TB, dir, name string, p Pattern, w, h int) string {
	t.Helper()
	img := Render(p, w, h)
	var buf bytes.Buffer
	var err error
	switch filepath.Ext(name) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case ".gif":
		err = gif.Encode(&buf, img, nil)
	case ".bmp":
		err = bmp.Encode(&buf, img)
	default:
		err = png.Encode(&buf, img)
	}
	require.NoError(t, err)
	return WriteFile(t, dir, name, buf.Bytes())
}

// WriteFile writes raw bytes into dir/name, creating parent folders.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// Common fixture colours.
var (
	Red   = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	Green = color.RGBA{R: 30, G: 200, B: 40, A: 255}
	Blue  = color.RGBA{R: 20, G: 40, B: 210, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Black = color.RGBA{A: 255}
)
