package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/imagespider/imaging"
)

// fullOptions name every tensor so NewONNX does not inspect the model file.
var fullOptions = ONNXOptions{InputName: "input", OutputName: "features", Dimension: 512}

func weightsFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("not a real model"), 0o644))
	return path
}

func TestNewONNX_MissingWeights(t *testing.T) {
	_, err := NewONNX("vgg19", filepath.Join(t.TempDir(), "missing.onnx"), DeviceAuto, fullOptions)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewONNX_Configuration(t *testing.T) {
	weights := weightsFile(t)

	e, err := NewONNX("vgg19", weights, "", fullOptions)
	require.NoError(t, err)
	assert.Equal(t, "vgg19", e.Model())
	assert.Equal(t, 512, e.Dimension())
	assert.Equal(t, imaging.DefaultSize, e.InputSize())
	assert.Equal(t, DeviceAuto, e.Device(), "requested device is reported before loading")
	assert.NoError(t, e.Close())

	opts := fullOptions
	opts.InputSize = 299
	e, err = NewONNX("inception", weights, DeviceCPU, opts)
	require.NoError(t, err)
	assert.Equal(t, 299, e.InputSize())
	assert.Equal(t, DeviceCPU, DeviceOf(e))

	ext, err := New(Config{Model: "vgg19", Weights: weights, Device: DeviceAccelerator, ONNX: fullOptions})
	require.NoError(t, err)
	require.IsType(t, &ONNX{}, ext)
	assert.Equal(t, DeviceAccelerator, DeviceOf(ext))
}

func TestONNX_EmbedRejectsBeforeLoading(t *testing.T) {
	e, err := NewONNX("vgg19", weightsFile(t), DeviceCPU, fullOptions)
	require.NoError(t, err)

	testCases := []struct {
		name string
		img  *imaging.Image
	}{
		{name: "nil image", img: nil},
		{name: "wrong size", img: &imaging.Image{Path: "small.png", Size: 8, Pix: make([]float32, 3*8*8)}},
		{name: "short pixels", img: &imaging.Image{Path: "cut.png", Size: imaging.DefaultSize, Pix: make([]float32, 10)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Embed(context.Background(), tc.img)
			assert.Error(t, err)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Embed(ctx, &imaging.Image{Size: imaging.DefaultSize, Pix: make([]float32, 3*imaging.DefaultSize*imaging.DefaultSize)})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = e.EmbedBatch(context.Background(), []*imaging.Image{nil})
	assert.Error(t, err)
	assert.Equal(t, DeviceCPU, e.Device())
}

func TestOpenOnDevice(t *testing.T) {
	errOpen := errors.New("no provider")
	testCases := []struct {
		name           string
		want           Device
		acceleratorErr error
		cpuErr         error
		device         Device
		errIs          error
		tried          []bool
	}{
		{name: "auto uses accelerator", want: DeviceAuto, device: DeviceAccelerator, tried: []bool{true}},
		{name: "auto falls back to cpu", want: DeviceAuto, acceleratorErr: errOpen, device: DeviceCPU, tried: []bool{true, false}},
		{name: "cpu never tries accelerator", want: DeviceCPU, device: DeviceCPU, tried: []bool{false}},
		{name: "required accelerator unavailable", want: DeviceAccelerator, acceleratorErr: errOpen, errIs: ErrDeviceUnavailable, tried: []bool{true}},
		{name: "cpu failure", want: DeviceCPU, cpuErr: errOpen, errIs: errOpen, tried: []bool{false}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var tried []bool
			session, device, err := openOnDevice(tc.want, func(accelerator bool) (string, error) {
				tried = append(tried, accelerator)
				if accelerator {
					return "gpu-session", tc.acceleratorErr
				}
				return "cpu-session", tc.cpuErr
			})
			assert.Equal(t, tc.tried, tried)
			if tc.errIs != nil {
				require.ErrorIs(t, err, tc.errIs)
				assert.Empty(t, session)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.device, device)
			assert.Equal(t, map[Device]string{DeviceAccelerator: "gpu-session", DeviceCPU: "cpu-session"}[tc.device], session)
		})
	}
}

func TestParseDevice_RequiredAcceleratorMapsToUnavailable(t *testing.T) {
	for _, name := range []string{"gpu", "cuda", "accelerator"} {
		want, err := ParseDevice(name)
		require.NoError(t, err)
		_, _, err = openOnDevice(want, func(bool) (int, error) { return 0, errors.New("cuda missing") })
		assert.ErrorIs(t, err, ErrDeviceUnavailable, name)
	}
}
