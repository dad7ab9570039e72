package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/imagespider/imaging"
)

// Extractor computes embeddings. Implementations are deterministic: the same
// image always yields the same vector, and EmbedBatch equals Embed applied
// in order.
type Extractor interface {
	// Model identifies the model and its parameters. Embeddings from
	// different models must never share a store.
	Model() string
	// Dimension is the embedding length.
	Dimension() int
	// InputSize is the square image side the extractor expects.
	InputSize() int
	Embed(ctx context.Context, img *imaging.Image) ([]float32, error)
	EmbedBatch(ctx context.Context, imgs []*imaging.Image) ([][]float32, error)
}

// Device selects where inference runs.
type Device string

const (
	DeviceAuto        Device = "auto"
	DeviceCPU         Device = "cpu"
	DeviceAccelerator Device = "accelerator"
)

// ErrDeviceUnavailable is returned when the accelerator was required but
// could not be initialised.
var ErrDeviceUnavailable = errors.New("extractor: device unavailable")

// ParseDevice resolves a configured device name. Empty defaults to auto.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DeviceAuto, nil
	case "cpu":
		return DeviceCPU, nil
	case "accelerator", "gpu", "cuda":
		return DeviceAccelerator, nil
	}
	return "", fmt.Errorf("extractor: unsupported device %q", s)
}

// DeviceReporter is implemented by extractors that know where they run.
type DeviceReporter interface {
	Device() Device
}

// DeviceOf reports the device an extractor runs on, cpu when unknown.
func DeviceOf(e Extractor) Device {
	if r, ok := e.(DeviceReporter); ok {
		return r.Device()
	}
	return DeviceCPU
}

// ModelThumbnail selects the built-in descriptor.
const ModelThumbnail = "thumbnail"

// Config selects and parameterises an extractor.
type Config struct {
	// Model is "thumbnail" or the name of an ONNX model such as "vgg19".
	Model string
	// Weights is the .onnx file, required for ONNX models.
	Weights string
	Device  Device
	// Grid is the Thumbnail cell grid side.
	Grid int
	ONNX ONNXOptions
}

// New builds the extractor described by cfg.
func New(cfg Config) (Extractor, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" || strings.EqualFold(model, ModelThumbnail) {
		return NewThumbnail(cfg.Grid), nil
	}
	if cfg.Weights == "" {
		return nil, fmt.Errorf("extractor: model %q requires weights", model)
	}
	return NewONNX(model, cfg.Weights, cfg.Device, cfg.ONNX)
}

func checkImage(img *imaging.Image, size int) error {
	if img == nil {
		return errors.New("extractor: nil image")
	}
	if img.Size != size || len(img.Pix) != 3*size*size {
		return fmt.Errorf("extractor: %s: input is %dx%d, want %dx%d", img.Path, img.Size, img.Size, size, size)
	}
	return nil
}

// embedEach is the EmbedBatch of extractors without native batching.
func embedEach(ctx context.Context, e Extractor, imgs []*imaging.Image) ([][]float32, error) {
	out := make([][]float32, len(imgs))
	for i, img := range imgs {
		vec, err := e.Embed(ctx, img)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
