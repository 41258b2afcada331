//go:build !tflite

package providers

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/inference"
)

// NewTFLiteBackend reports that TensorFlow Lite support requires the tflite build tag.
func NewTFLiteBackend(cfg Config) (inference.Backend, error) {
	return nil, errors.Wrap(ErrEngineUnavailable, "rebuild with -tags tflite")
}
