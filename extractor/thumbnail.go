package extractor

import (
	"context"
	"fmt"
	"math"

	"github.com/viant/imagespider/imaging"
	"github.com/viant/imagespider/vector"
)

// DefaultGrid is the Thumbnail grid side when none is configured.
const DefaultGrid = 8

// Thumbnail describes an image by a Grid×Grid layout of cells, each
// contributing its mean R, G and B and its mean luminance gradient
// magnitude. The vector is L2-normalised, so D = 4·Grid².
type Thumbnail struct {
	grid int
	size int
}

// NewThumbnail creates a descriptor. grid <= 0 uses DefaultGrid.
func NewThumbnail(grid int) *Thumbnail {
	if grid <= 0 {
		grid = DefaultGrid
	}
	return &Thumbnail{grid: grid, size: grid * 8}
}

func (t *Thumbnail) Model() string  { return fmt.Sprintf("%s-g%d", ModelThumbnail, t.grid) }
func (t *Thumbnail) Dimension() int { return 4 * t.grid * t.grid }
func (t *Thumbnail) InputSize() int { return t.size }
func (t *Thumbnail) Device() Device { return DeviceCPU }

// Embed computes the descriptor of img.
func (t *Thumbnail) Embed(ctx context.Context, img *imaging.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkImage(img, t.size); err != nil {
		return nil, err
	}
	g, s := t.grid, t.size
	cells := g * g
	out := make([]float32, 4*cells)
	lum := luminance(img)
	for gy := 0; gy < g; gy++ {
		y0, y1 := gy*s/g, (gy+1)*s/g
		for gx := 0; gx < g; gx++ {
			x0, x1 := gx*s/g, (gx+1)*s/g
			cell := gy*g + gx
			var sums [3]float64
			var grad float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					for c := 0; c < 3; c++ {
						sums[c] += float64(img.At(c, y, x))
					}
					grad += gradient(lum, s, x, y)
				}
			}
			n := float64((y1 - y0) * (x1 - x0))
			for c := 0; c < 3; c++ {
				out[c*cells+cell] = float32(sums[c] / n)
			}
			out[3*cells+cell] = float32(grad / n)
		}
	}
	return vector.Normalize(out), nil
}

// EmbedBatch embeds each image in order.
func (t *Thumbnail) EmbedBatch(ctx context.Context, imgs []*imaging.Image) ([][]float32, error) {
	return embedEach(ctx, t, imgs)
}

func luminance(img *imaging.Image) []float64 {
	r, g, b := img.Plane(0), img.Plane(1), img.Plane(2)
	out := make([]float64, len(r))
	for i := range out {
		out[i] = 0.299*float64(r[i]) + 0.587*float64(g[i]) + 0.114*float64(b[i])
	}
	return out
}

// gradient is the forward-difference gradient magnitude at (x, y), zero
// past the right and bottom edges.
func gradient(lum []float64, size, x, y int) float64 {
	at := lum[y*size+x]
	var dx, dy float64
	if x+1 < size {
		dx = lum[y*size+x+1] - at
	}
	if y+1 < size {
		dy = lum[(y+1)*size+x] - at
	}
	return math.Hypot(dx, dy)
}
