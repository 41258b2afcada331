package providers

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

var environmentMu sync.Mutex

// initEnvironment loads the onnxruntime shared library once per process.
func initEnvironment(libPath string) error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s (set %s to override)", libPath, LibraryPathEnv)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// ONNXBackend runs a model with ONNX Runtime on preallocated, session-bound tensors.
type ONNXBackend struct {
	mu          sync.Mutex
	session     *ort.AdvancedSession
	inputF32    *ort.Tensor[float32]
	inputU8     *ort.Tensor[uint8]
	output      *ort.Tensor[float32]
	outputShape []int
	spec        inference.InputSpec
	closed      bool
}

// NewONNXBackend loads an ONNX model.
//
// The input element type (float32 or quantized uint8), layout and size, and the output shape are
// read from the model. Run calls are serialized because the bound tensors are shared.
//
// Order of operations:
//  1. Environment setup: loads the native runtime once per process.
//  2. Model inspection: reads input/output names, types and shapes.
//  3. Tensor allocation: fixed-shape buffers bound to the session.
//  4. Session options: threading, graph optimization and execution provider.
//  5. Session creation, followed by optional warmup runs.
//
// Arguments:
//   - cfg: The backend configuration.
//
// Returns:
//   - *ONNXBackend: The loaded backend.
//   - error: An error if any step fails. Native resources are released on failure.
func NewONNXBackend(cfg Config) (*ONNXBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model file not accessible")
	}

	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading model inputs and outputs")
	}
	in, err := selectInfo(inputs, cfg.InputName, "input")
	if err != nil {
		return nil, err
	}
	out, err := selectInfo(outputs, cfg.OutputName, "output")
	if err != nil {
		return nil, err
	}

	spec, outputShape, err := inferSpec(in, out, cfg)
	if err != nil {
		return nil, err
	}

	b := &ONNXBackend{spec: spec, outputShape: outputShape}
	if err := b.open(cfg, in.Name, out.Name); err != nil {
		b.destroy()
		return nil, err
	}

	for i := 0; i < cfg.Warmup; i++ {
		if err := b.session.Run(); err != nil {
			b.destroy()
			return nil, errors.Wrap(err, "warmup inference failed")
		}
	}

	return b, nil
}

// open allocates the bound tensors and creates the session.
func (b *ONNXBackend) open(cfg Config, inputName, outputName string) error {
	size := int64(b.spec.Size)
	inputShape := ort.NewShape(1, 3, size, size)
	if b.spec.Layout == preprocess.ChannelOrderHWC {
		inputShape = ort.NewShape(1, size, size, 3)
	}

	var input ort.Value
	var err error
	if b.spec.ElementType == preprocess.ElementUint8 {
		b.inputU8, err = ort.NewEmptyTensor[uint8](inputShape)
		input = b.inputU8
	} else {
		b.inputF32, err = ort.NewEmptyTensor[float32](inputShape)
		input = b.inputF32
	}
	if err != nil {
		return errors.Wrap(err, "error creating input tensor")
	}

	dims := make([]int64, len(b.outputShape))
	for i, d := range b.outputShape {
		dims[i] = int64(d)
	}
	b.output, err = ort.NewEmptyTensor[float32](ort.NewShape(dims...))
	if err != nil {
		return errors.Wrap(err, "error creating output tensor")
	}

	options, err := OptimizedSessionOptions(cfg)
	if err != nil {
		return err
	}
	defer options.Destroy()

	b.session, err = ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{input},
		[]ort.Value{b.output},
		options,
	)
	if err != nil {
		return errors.Wrap(err, "error creating ORT session")
	}
	return nil
}

// Run copies the tensor into the bound input, runs the session and copies the output out.
func (b *ONNXBackend) Run(ctx context.Context, input *preprocess.Tensor) (*postprocess.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.spec.Matches(input); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, inference.ErrClosed
	}

	if b.inputU8 != nil {
		copy(b.inputU8.GetData(), input.Uint8)
	} else {
		copy(b.inputF32.GetData(), input.Float32)
	}

	if err := b.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	data := make([]float32, len(b.output.GetData()))
	copy(data, b.output.GetData())

	return postprocess.NewOutput(data, b.outputShape...)
}

// InputSpec returns the input spec read from the model.
func (b *ONNXBackend) InputSpec() inference.InputSpec {
	return b.spec
}

// Close releases the session and tensors.
func (b *ONNXBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.destroy()
}

func (b *ONNXBackend) destroy() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if b.session != nil {
		keep(b.session.Destroy())
		b.session = nil
	}
	if b.inputF32 != nil {
		keep(b.inputF32.Destroy())
		b.inputF32 = nil
	}
	if b.inputU8 != nil {
		keep(b.inputU8.Destroy())
		b.inputU8 = nil
	}
	if b.output != nil {
		keep(b.output.Destroy())
		b.output = nil
	}

	if first != nil {
		return errors.Wrap(first, "error destroying ORT session")
	}
	return nil
}

// selectInfo returns the named tensor info, or the first one when name is empty.
func selectInfo(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, errors.Errorf("model has no %s", kind)
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, errors.Errorf("model has no %s named %q", kind, name)
}

// inferSpec derives the input spec and static output shape from the model metadata.
func inferSpec(in, out ort.InputOutputInfo, cfg Config) (inference.InputSpec, []int, error) {
	spec := inference.InputSpec{NormalizedBoxes: cfg.NormalizedBoxes}

	switch in.DataType {
	case ort.TensorElementDataTypeFloat:
		spec.ElementType = preprocess.ElementFloat32
	case ort.TensorElementDataTypeUint8:
		spec.ElementType = preprocess.ElementUint8
	default:
		return spec, nil, errors.Errorf("unsupported input element type %v", in.DataType)
	}

	dims := in.Dimensions
	if len(dims) != 4 {
		return spec, nil, errors.Errorf("expected 4D input, got %dD", len(dims))
	}
	var h, w int64
	switch {
	case dims[1] == 3:
		spec.Layout = preprocess.ChannelOrderCHW
		h, w = dims[2], dims[3]
	case dims[3] == 3:
		spec.Layout = preprocess.ChannelOrderHWC
		h, w = dims[1], dims[2]
	default:
		return spec, nil, errors.Errorf("cannot find a 3 channel axis in input shape %v", []int64(dims))
	}
	switch {
	case h <= 0 && w <= 0:
		spec.Size = cfg.InputSize
	case h != w:
		return spec, nil, errors.Errorf("expected a square input, got %dx%d", w, h)
	default:
		spec.Size = int(h)
	}

	outDims := out.Dimensions
	if len(outDims) == 3 && outDims[0] <= 0 {
		outDims = append([]int64{1}, outDims[1:]...)
	}
	if len(outDims) < 2 || len(outDims) > 3 {
		return spec, nil, errors.Errorf("expected [1, C+4, N] output, got %v", []int64(out.Dimensions))
	}
	shape := make([]int, len(outDims))
	for i, d := range outDims {
		if d <= 0 {
			return spec, nil, errors.Errorf("dynamic output shape %v is not supported", []int64(out.Dimensions))
		}
		shape[i] = int(d)
	}
	spec.NumClasses = shape[len(shape)-2] - 4
	if spec.NumClasses <= 0 {
		return spec, nil, errors.Errorf("output shape %v has no class rows", shape)
	}

	return spec, shape, nil
}
