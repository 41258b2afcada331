//go:build tflite

package providers

import (
	"context"
	"sync"

	"github.com/mattn/go-tflite"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// TFLiteBackend runs a TensorFlow Lite export of the detector. TFLite models take NHWC input.
type TFLiteBackend struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	spec        inference.InputSpec
	outputShape []int
	closed      bool
}

// NewTFLiteBackend loads a .tflite model and allocates its tensors.
//
// Arguments:
//   - cfg: The backend configuration. NumThreads sets the interpreter threads.
//
// Returns:
//   - *TFLiteBackend: The loaded backend.
//   - error: An error if the model cannot be loaded or has an unexpected shape.
func NewTFLiteBackend(cfg Config) (*TFLiteBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &TFLiteBackend{}
	b.model = tflite.NewModelFromFile(cfg.ModelPath)
	if b.model == nil {
		return nil, errors.Errorf("cannot load model %s", cfg.ModelPath)
	}

	b.options = tflite.NewInterpreterOptions()
	if cfg.NumThreads > 0 {
		b.options.SetNumThread(cfg.NumThreads)
	}

	b.interpreter = tflite.NewInterpreter(b.model, b.options)
	if b.interpreter == nil {
		b.destroy()
		return nil, errors.New("cannot create interpreter")
	}
	if status := b.interpreter.AllocateTensors(); status != tflite.OK {
		b.destroy()
		return nil, errors.Errorf("allocate tensors failed: %v", status)
	}

	if err := b.inspect(cfg); err != nil {
		b.destroy()
		return nil, err
	}

	for i := 0; i < cfg.Warmup; i++ {
		if status := b.interpreter.Invoke(); status != tflite.OK {
			b.destroy()
			return nil, errors.Errorf("warmup invoke failed: %v", status)
		}
	}

	return b, nil
}

// inspect reads the input spec and output shape from the allocated tensors.
func (b *TFLiteBackend) inspect(cfg Config) error {
	input := b.interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Dim(3) != 3 {
		return errors.New("expected a [1, H, W, 3] input tensor")
	}
	if input.Dim(1) != input.Dim(2) {
		return errors.Errorf("expected a square input, got %dx%d", input.Dim(2), input.Dim(1))
	}

	b.spec = inference.InputSpec{
		Size:            input.Dim(1),
		Layout:          preprocess.ChannelOrderHWC,
		NormalizedBoxes: cfg.NormalizedBoxes,
	}
	switch input.Type() {
	case tflite.Float32:
		b.spec.ElementType = preprocess.ElementFloat32
	case tflite.UInt8:
		b.spec.ElementType = preprocess.ElementUint8
	default:
		return errors.Errorf("unsupported input type %v", input.Type())
	}

	output := b.interpreter.GetOutputTensor(0)
	if output == nil || output.NumDims() < 2 || output.NumDims() > 3 {
		return errors.New("expected a [1, C+4, N] output tensor")
	}
	b.outputShape = make([]int, output.NumDims())
	for i := range b.outputShape {
		b.outputShape[i] = output.Dim(i)
	}
	b.spec.NumClasses = b.outputShape[len(b.outputShape)-2] - 4

	return nil
}

// Run copies the tensor into the interpreter input, invokes it and dequantizes the output.
func (b *TFLiteBackend) Run(ctx context.Context, input *preprocess.Tensor) (*postprocess.Output, error) {
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

	in := b.interpreter.GetInputTensor(0)
	if b.spec.ElementType == preprocess.ElementUint8 {
		copy(in.UInt8s(), input.Uint8)
	} else {
		copy(in.Float32s(), input.Float32)
	}

	if status := b.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Errorf("invoke failed: %v", status)
	}

	out := b.interpreter.GetOutputTensor(0)
	var data []float32
	switch out.Type() {
	case tflite.UInt8:
		q := out.QuantizationParams()
		raw := out.UInt8s()
		data = make([]float32, len(raw))
		for i, v := range raw {
			data[i] = float32((float64(v) - float64(q.ZeroPoint)) * q.Scale)
		}
	case tflite.Float32:
		raw := out.Float32s()
		data = make([]float32, len(raw))
		copy(data, raw)
	default:
		return nil, errors.Errorf("unsupported output type %v", out.Type())
	}

	return postprocess.NewOutput(data, b.outputShape...)
}

// InputSpec returns the input spec read from the model.
func (b *TFLiteBackend) InputSpec() inference.InputSpec {
	return b.spec
}

// Close releases the interpreter and model.
func (b *TFLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.destroy()
	return nil
}

func (b *TFLiteBackend) destroy() {
	if b.interpreter != nil {
		b.interpreter.Delete()
		b.interpreter = nil
	}
	if b.options != nil {
		b.options.Delete()
		b.options = nil
	}
	if b.model != nil {
		b.model.Delete()
		b.model = nil
	}
}
