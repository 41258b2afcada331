package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/models/model"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
	"github.com/nvr-ai/go-mahjong/models/yolov8"
)

// NewModel creates a new detection model instance based on the specified model name.
//
// Arguments:
//   - args: Configuration parameters specifying the model type and its pipeline settings.
//
// Returns:
//   - model.Model: A configured model instance.
//   - error: An error if the model name is unsupported or the arguments are invalid.
//
// @example
//
//	m, err := models.NewModel(models.DefaultTileModelArgs("models/mahjong.onnx"))
func NewModel(args model.NewModelArgs) (model.Model, error) {
	switch args.Name {
	case model.ModelNameYOLOv8, "":
		m, err := yolov8.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Errorf("unsupported model name: %s", args.Name)
	}
}

// DefaultTileModelArgs returns the arguments of the shipped tile detector: YOLOv8 with a 640
// input, the 34 tile classes and the standard thresholds.
func DefaultTileModelArgs(path string) model.NewModelArgs {
	return model.NewModelArgs{
		Name:       model.ModelNameYOLOv8,
		Family:     model.ModelFamilyYOLO,
		Path:       path,
		NumClasses: MahjongTiles.Len(),
		Preprocess: preprocess.GetYOLOv8Config(640),
		Options:    postprocess.DefaultOptions(),
	}
}
