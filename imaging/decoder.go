package imaging

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Extensions lists the recognised file extensions, lower case with dot.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp"}

// DefaultSize is the input resolution of the common ImageNet CNNs.
const DefaultSize = 224

// ImageNet channel statistics.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Options configure preprocessing.
type Options struct {
	Size int
	Mean [3]float32
	Std  [3]float32
}

// DefaultOptions returns 224×224 ImageNet preprocessing.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Mean: ImageNetMean, Std: ImageNetStd}
}

// Image is a decoded, resampled and normalised image.
type Image struct {
	Path string
	// Width and Height are the source dimensions before resampling.
	Width  int
	Height int
	// Size is the side of the resampled square.
	Size int
	// Pix holds 3·Size·Size values, channel-major.
	Pix []float32
}

// At returns the normalised value of channel c at row y, column x.
func (i *Image) At(c, y, x int) float32 {
	return i.Pix[c*i.Size*i.Size+y*i.Size+x]
}

// Plane returns the Size·Size values of channel c.
func (i *Image) Plane(c int) []float32 {
	n := i.Size * i.Size
	return i.Pix[c*n : (c+1)*n]
}

// Accepts reports whether path carries a recognised image extension.
func Accepts(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// Decoder is stateless and safe for concurrent use.
type Decoder struct {
	opts Options
}

// NewDecoder creates a decoder. Zero fields in opts take their defaults.
func NewDecoder(opts Options) *Decoder {
	def := DefaultOptions()
	if opts.Size <= 0 {
		opts.Size = def.Size
	}
	if opts.Std == [3]float32{} {
		opts.Std = def.Std
		if opts.Mean == [3]float32{} {
			opts.Mean = def.Mean
		}
	}
	return &Decoder{opts: opts}
}

// Options returns the effective preprocessing options.
func (d *Decoder) Options() Options { return d.opts }

// Decode reads path and returns its normalised tensor. Every failure is a
// *DecodeError.
func (d *Decoder) Decode(path string) (*Image, error) {
	if !Accepts(path) {
		return nil, &DecodeError{Path: path, Reason: ReasonUnsupported}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Reason: osReason(err), Err: err}
	}
	if info.IsDir() {
		return nil, &DecodeError{Path: path, Reason: ReasonDirectory}
	}
	if info.Size() == 0 {
		return nil, &DecodeError{Path: path, Reason: ReasonEmpty}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Reason: osReason(err), Err: err}
	}
	defer f.Close()

	src, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, &DecodeError{Path: path, Reason: fmt.Sprintf("decode: %v", err), Err: err}
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, &DecodeError{Path: path, Reason: "decode: zero-sized image"}
	}
	return &Image{
		Path:   path,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Size:   d.opts.Size,
		Pix:    d.tensor(src),
	}, nil
}

// tensor resamples src to Size×Size and normalises it channel-major.
func (d *Decoder) tensor(src image.Image) []float32 {
	size := d.opts.Size
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	plane := size * size
	pix := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+3]
			for c := 0; c < 3; c++ {
				v := float32(px[c]) / 255
				pix[c*plane+y*size+x] = (v - d.opts.Mean[c]) / d.opts.Std[c]
			}
		}
	}
	return pix
}

func osReason(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err.Error()
	}
	return err.Error()
}
