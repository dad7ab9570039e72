package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/viant/imagespider/imaging"
)

// ONNXOptions tune the ONNX Runtime extractor. Zero values are discovered
// from the model file or defaulted.
type ONNXOptions struct {
	// LibraryPath points at the onnxruntime shared library.
	LibraryPath string
	InputName   string
	OutputName  string
	// InputSize is the square input side, 224 when the model does not say.
	InputSize int
	// Dimension is the embedding length, taken from the output shape when 0.
	Dimension int
	// Threads bounds intra-op parallelism, 0 lets the runtime decide.
	Threads int
}

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment initialises the process-wide runtime exactly once.
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// ONNX runs a pretrained network exported to ONNX. The session is created
// on first use and shared; inference on it is serialised.
type ONNX struct {
	model   string
	weights string
	want    Device
	opts    ONNXOptions

	loadOnce sync.Once
	loadErr  error

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	device  Device
}

// NewONNX validates the configuration and returns an extractor whose
// session loads lazily. Shape information is read from the model file when
// the options leave it unset.
func NewONNX(model, weights string, device Device, opts ONNXOptions) (*ONNX, error) {
	if _, err := os.Stat(weights); err != nil {
		return nil, fmt.Errorf("extractor: weights: %w", err)
	}
	if device == "" {
		device = DeviceAuto
	}
	if opts.InputSize <= 0 {
		opts.InputSize = imaging.DefaultSize
	}
	e := &ONNX{model: model, weights: weights, want: device, opts: opts}
	if opts.InputName == "" || opts.OutputName == "" || opts.Dimension <= 0 {
		if err := e.discover(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// discover fills tensor names and the embedding dimension from the model.
func (e *ONNX) discover() error {
	if err := initEnvironment(e.opts.LibraryPath); err != nil {
		return fmt.Errorf("extractor: onnxruntime: %w", err)
	}
	inputs, outputs, err := ort.GetInputOutputInfo(e.weights)
	if err != nil {
		return fmt.Errorf("extractor: inspect %s: %w", e.weights, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("extractor: %s has no inputs or outputs", e.weights)
	}
	if e.opts.InputName == "" {
		e.opts.InputName = inputs[0].Name
	}
	if e.opts.OutputName == "" {
		e.opts.OutputName = outputs[0].Name
	}
	if e.opts.Dimension <= 0 {
		dims := outputs[0].Dimensions
		if len(dims) == 0 || dims[len(dims)-1] <= 0 {
			return fmt.Errorf("extractor: %s: output %q has no static width", e.weights, outputs[0].Name)
		}
		e.opts.Dimension = int(dims[len(dims)-1])
	}
	return nil
}

func (e *ONNX) Model() string  { return e.model }
func (e *ONNX) Dimension() int { return e.opts.Dimension }
func (e *ONNX) InputSize() int { return e.opts.InputSize }

// Device reports the device the session runs on, or the requested device
// before the session is loaded.
func (e *ONNX) Device() Device {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.device == "" {
		return e.want
	}
	return e.device
}

// Load creates the session. It is called implicitly by Embed.
func (e *ONNX) Load() error {
	e.loadOnce.Do(func() { e.loadErr = e.load() })
	return e.loadErr
}

func (e *ONNX) load() error {
	if err := initEnvironment(e.opts.LibraryPath); err != nil {
		return fmt.Errorf("extractor: onnxruntime: %w", err)
	}
	size := int64(e.opts.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return fmt.Errorf("extractor: input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.opts.Dimension)))
	if err != nil {
		input.Destroy()
		return fmt.Errorf("extractor: output tensor: %w", err)
	}

	session, device, err := openOnDevice(e.want, func(accelerator bool) (*ort.AdvancedSession, error) {
		return e.newSession(input, output, accelerator)
	})
	if err != nil {
		input.Destroy()
		output.Destroy()
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("extractor: session %s: %w", e.weights, err)
	}

	e.mu.Lock()
	e.session, e.input, e.output, e.device = session, input, output, device
	e.mu.Unlock()
	return nil
}

// openOnDevice opens a session on the accelerator unless want is cpu,
// falling back to the cpu under auto. A required accelerator that fails to
// open yields ErrDeviceUnavailable.
func openOnDevice[S any](want Device, open func(accelerator bool) (S, error)) (S, Device, error) {
	var zero S
	if want != DeviceCPU {
		session, err := open(true)
		if err == nil {
			return session, DeviceAccelerator, nil
		}
		if want == DeviceAccelerator {
			return zero, "", fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
	}
	session, err := open(false)
	if err != nil {
		return zero, "", err
	}
	return session, DeviceCPU, nil
}

func (e *ONNX) newSession(input, output ort.Value, accelerator bool) (*ort.AdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()
	if e.opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(e.opts.Threads); err != nil {
			return nil, err
		}
	}
	if accelerator {
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, err
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return nil, err
		}
	}
	return ort.NewAdvancedSession(e.weights,
		[]string{e.opts.InputName}, []string{e.opts.OutputName},
		[]ort.Value{input}, []ort.Value{output}, options)
}

// Embed runs one forward pass.
func (e *ONNX) Embed(ctx context.Context, img *imaging.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkImage(img, e.opts.InputSize); err != nil {
		return nil, err
	}
	if err := e.Load(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("extractor: session closed")
	}
	copy(e.input.GetData(), img.Pix)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("extractor: %s: inference: %w", img.Path, err)
	}
	out := make([]float32, e.opts.Dimension)
	copy(out, e.output.GetData())
	return out, nil
}

// EmbedBatch embeds each image in order.
func (e *ONNX) EmbedBatch(ctx context.Context, imgs []*imaging.Image) ([][]float32, error) {
	return embedEach(ctx, e, imgs)
}

// Close releases the session and its tensors. The process-wide environment
// stays initialised.
func (e *ONNX) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	if e.session != nil {
		errs = append(errs, e.session.Destroy())
		e.session = nil
	}
	if e.input != nil {
		errs = append(errs, e.input.Destroy())
		e.input = nil
	}
	if e.output != nil {
		errs = append(errs, e.output.Destroy())
		e.output = nil
	}
	return errors.Join(errs...)
}
