//go:build !gocv

package providers

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/inference"
)

// NewOpenCVBackend reports that OpenCV DNN support requires the gocv build tag.
func NewOpenCVBackend(cfg Config) (inference.Backend, error) {
	return nil, errors.Wrap(ErrEngineUnavailable, "rebuild with -tags gocv")
}
