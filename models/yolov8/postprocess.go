package yolov8

import (
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// PostProcess decodes the YOLOv8 output into detections in original image coordinates.
//
// Arguments:
//   - output: The raw [C+4, N] output of the network.
//   - info: The letterbox transform returned by PreProcess.
//
// Returns:
//   - A slice of detections ordered left to right.
//   - An error wrapping postprocess.ErrShapeMismatch for unexpected output shapes.
func (m *YOLOv8) PostProcess(output *postprocess.Output, info preprocess.PaddingInfo) ([]postprocess.Detection, error) {
	return postprocess.Postprocess(output, info, m.options.NumClasses, m.args.Options)
}
