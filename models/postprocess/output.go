// Package postprocess - Decoding of raw detection tensors into tile detections.
package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrShapeMismatch is returned when a raw output tensor does not have the expected shape.
var ErrShapeMismatch = errors.New("shape mismatch")

// Output is a raw YOLOv8 detection head output of shape [numClasses+4, numAnchors], optionally
// with a leading batch dimension of 1.
type Output struct {
	dense *tensor.Dense
}

// NewOutput wraps a flat float32 buffer with its shape. The buffer is not copied.
//
// Arguments:
//   - data: The row-major output values.
//   - shape: The tensor shape, e.g. 1, 38, 8400.
//
// Returns:
//   - *Output: The wrapped tensor.
//   - error: ErrShapeMismatch if the shape is empty, has non-positive dimensions, or does not
//     match len(data).
//
// @example
//
//	out, err := postprocess.NewOutput(values, 1, 38, 8400)
func NewOutput(data []float32, shape ...int) (*Output, error) {
	if len(shape) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "output shape is empty")
	}

	size := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, errors.Wrapf(ErrShapeMismatch, "output shape %v has a non-positive dimension", shape)
		}
		size *= d
	}
	if size != len(data) {
		return nil, errors.Wrapf(ErrShapeMismatch, "output shape %v needs %d values, got %d", shape, size, len(data))
	}

	return &Output{
		dense: tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)),
	}, nil
}

// Shape returns a copy of the tensor shape.
func (o *Output) Shape() []int {
	return o.dense.Shape().Clone()
}

// Data returns the backing row-major buffer.
func (o *Output) Data() []float32 {
	return o.dense.Data().([]float32)
}

// Dense returns the underlying gorgonia tensor.
func (o *Output) Dense() *tensor.Dense {
	return o.dense
}

// matrix returns the row and anchor counts of the [rows, anchors] view.
func (o *Output) matrix() (rows, anchors int, err error) {
	shape := o.dense.Shape()
	switch {
	case len(shape) == 2:
		return shape[0], shape[1], nil
	case len(shape) == 3 && shape[0] == 1:
		return shape[1], shape[2], nil
	default:
		return 0, 0, errors.Wrapf(ErrShapeMismatch, "expected [C+4, N] or [1, C+4, N], got %v", []int(shape))
	}
}
