//go:build gocv

package providers

import (
	"context"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// OpenCVBackend runs an ONNX model through the OpenCV DNN module.
type OpenCVBackend struct {
	mu     sync.Mutex
	net    gocv.Net
	spec   inference.InputSpec
	output string
	closed bool
}

// NewOpenCVBackend reads the model with gocv.ReadNet. OpenCV does not expose model metadata, so
// the input is assumed to be NCHW float32 of cfg.InputSize.
func NewOpenCVBackend(cfg Config) (*OpenCVBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, errors.Errorf("cannot read network from %s", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "cannot set DNN backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "cannot set DNN target")
	}

	return &OpenCVBackend{
		net:    net,
		output: cfg.OutputName,
		spec: inference.InputSpec{
			Size:            cfg.InputSize,
			Layout:          preprocess.ChannelOrderCHW,
			ElementType:     preprocess.ElementFloat32,
			NormalizedBoxes: cfg.NormalizedBoxes,
		},
	}, nil
}

// Run wraps the tensor in a blob, forwards the network and copies the output.
func (b *OpenCVBackend) Run(ctx context.Context, input *preprocess.Tensor) (*postprocess.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.spec.Matches(input); err != nil {
		return nil, err
	}

	sizes := make([]int, len(input.Shape))
	for i, d := range input.Shape {
		sizes[i] = int(d)
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&input.Float32[0])), len(input.Float32)*4)

	blob, err := gocv.NewMatWithSizesFromBytes(sizes, gocv.MatTypeCV32F, raw)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create input blob")
	}
	defer blob.Close()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, inference.ErrClosed
	}

	b.net.SetInput(blob, "")
	out := b.net.Forward(b.output)
	defer out.Close()

	values, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read network output")
	}
	data := make([]float32, len(values))
	copy(data, values)

	return postprocess.NewOutput(data, out.Size()...)
}

// InputSpec returns the configured input spec.
func (b *OpenCVBackend) InputSpec() inference.InputSpec {
	return b.spec
}

// Close releases the network.
func (b *OpenCVBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.net.Close()
}
