// Package inference - Inference backend contract, lazy loading, pooling and profiling.
package inference

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

var (
	// ErrClosed is returned by backends, lazy loaders and pools after Close.
	ErrClosed = errors.New("backend closed")
	// ErrAcquireTimeout is returned when no pooled backend became free in time.
	ErrAcquireTimeout = errors.New("timeout waiting for available backend")
)

// Backend runs a detection network on a prepared input tensor.
//
// Implementations must be safe for concurrent use. Backends that wrap a runtime session which
// cannot run concurrently serialize Run internally.
type Backend interface {
	// Run executes the network and returns the raw detection head output.
	Run(ctx context.Context, input *preprocess.Tensor) (*postprocess.Output, error)
	// InputSpec describes the tensor the network expects.
	InputSpec() InputSpec
	// Close releases the runtime resources.
	Close() error
}

// InputSpec describes a network input and output convention.
type InputSpec struct {
	// Size is the side of the square input.
	Size int `json:"size" yaml:"size"`
	// Layout is NCHW or NHWC.
	Layout preprocess.ChannelOrder `json:"layout" yaml:"layout"`
	// ElementType is float32 or uint8.
	ElementType preprocess.ElementType `json:"element_type" yaml:"element_type"`
	// NumClasses is the class count read from the output shape, 0 when unknown.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// NormalizedBoxes reports box outputs in [0, 1] relative to Size.
	NormalizedBoxes bool `json:"normalized_boxes" yaml:"normalized_boxes"`
}

// Matches reports whether a tensor has the shape and element type s describes.
func (s InputSpec) Matches(t *preprocess.Tensor) error {
	if t == nil {
		return errors.Wrap(preprocess.ErrInvalidInput, "input tensor is nil")
	}
	if t.Layout != s.Layout || t.ElementType != s.ElementType {
		return errors.Wrapf(preprocess.ErrInvalidInput, "input is %s %s, model expects %s %s",
			t.Layout, t.ElementType, s.Layout, s.ElementType)
	}

	var want []int64
	if s.Layout == preprocess.ChannelOrderHWC {
		want = []int64{1, int64(s.Size), int64(s.Size), 3}
	} else {
		want = []int64{1, 3, int64(s.Size), int64(s.Size)}
	}
	if len(t.Shape) != len(want) {
		return errors.Wrapf(preprocess.ErrInvalidInput, "input shape %v, model expects %v", t.Shape, want)
	}
	for i := range want {
		if t.Shape[i] != want[i] {
			return errors.Wrapf(preprocess.ErrInvalidInput, "input shape %v, model expects %v", t.Shape, want)
		}
	}
	return nil
}
