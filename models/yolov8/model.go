// Package yolov8 - YOLOv8 tile detection model.
package yolov8

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/models/model"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
)

// YOLOv8 is the instance of the YOLOv8 model.
type YOLOv8 struct {
	options      model.BaseModel
	preprocessor *preprocess.Preprocessor
	args         model.NewModelArgs
}

// NewModel creates a new model.
//
// Arguments:
//   - args: The arguments for creating a new model. NumClasses and Preprocess.InputSize are
//     required.
//
// Returns:
//   - *YOLOv8: The model.
//   - error: An error if the arguments are incomplete.
func NewModel(args model.NewModelArgs) (*YOLOv8, error) {
	if args.NumClasses <= 0 {
		return nil, errors.Errorf("NewModel requires a positive class count, got %d", args.NumClasses)
	}
	if args.Preprocess.InputSize <= 0 {
		return nil, errors.Errorf("NewModel requires a positive input size, got %d", args.Preprocess.InputSize)
	}
	if args.Options.IoUThreshold < 0 || args.Options.IoUThreshold > 1 {
		return nil, errors.Errorf("IoU threshold must be in [0, 1], got %v", args.Options.IoUThreshold)
	}
	if args.Options.ConfidenceThreshold < 0 || args.Options.ConfidenceThreshold > 1 {
		return nil, errors.Errorf("confidence threshold must be in [0, 1], got %v", args.Options.ConfidenceThreshold)
	}
	if args.Family == "" {
		args.Family = model.ModelFamilyYOLO
	}
	args.Options.InputSize = args.Preprocess.InputSize

	return &YOLOv8{
		options: model.BaseModel{
			Name:       model.ModelNameYOLOv8,
			Family:     args.Family,
			Path:       args.Path,
			InputSize:  args.Preprocess.InputSize,
			NumClasses: args.NumClasses,
		},
		preprocessor: preprocess.NewPreprocessor(args.Preprocess),
		args:         args,
	}, nil
}

// Options returns the options for the YOLOv8 model.
func (m *YOLOv8) Options() model.BaseModel {
	return m.options
}

// Preprocessor returns the preprocessor configured for the model.
func (m *YOLOv8) Preprocessor() *preprocess.Preprocessor {
	return m.preprocessor
}

// PreProcess letterboxes a photo into the model input tensor.
func (m *YOLOv8) PreProcess(img image.Image) (*preprocess.Result, error) {
	return m.preprocessor.Preprocess(img)
}
