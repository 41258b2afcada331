package postprocess

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/images"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
)

// Options controls decoding and suppression.
type Options struct {
	// ConfidenceThreshold discards anchors whose best class score is below it.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// IoUThreshold suppresses boxes overlapping a better box of the same class by more than it.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ClassAgnostic suppresses overlapping boxes regardless of class.
	ClassAgnostic bool `json:"class_agnostic" yaml:"class_agnostic"`
	// NormalizedBoxes marks box rows in [0, 1] relative to InputSize.
	NormalizedBoxes bool `json:"normalized_boxes" yaml:"normalized_boxes"`
	// InputSize is the model input side, required with NormalizedBoxes.
	InputSize int `json:"input_size" yaml:"input_size"`
	// MaxDetections keeps only the best N detections. Zero means unlimited.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
}

// DefaultOptions returns the standard YOLOv8 thresholds.
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: 0.25,
		IoUThreshold:        0.45,
	}
}

type candidate struct {
	Detection
	anchor int
}

// Postprocess decodes a YOLOv8 output tensor into detections in original image coordinates.
//
// For every anchor the best-scoring class is selected (ties go to the lowest class id). Anchors
// below the confidence threshold are dropped, the remaining center-form boxes are converted to
// corners and mapped back through the letterbox transform, greedy NMS runs per class, and the
// survivors are ordered left-to-right by X1 (ties keep anchor order).
//
// Arguments:
//   - raw: The network output, [numClasses+4, N] or [1, numClasses+4, N].
//   - info: The letterbox transform used to build the model input.
//   - numClasses: The number of classes in the catalog.
//   - opts: Thresholds and decoding options.
//
// Returns:
//   - []Detection: The detections, empty and non-nil when nothing survives.
//   - error: ErrShapeMismatch if the tensor does not match numClasses.
//
// @example
//
//	dets, err := postprocess.Postprocess(out, result.Padding, 34, postprocess.DefaultOptions())
func Postprocess(raw *Output, info preprocess.PaddingInfo, numClasses int, opts Options) ([]Detection, error) {
	if raw == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "output is nil")
	}
	if numClasses <= 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "class count must be positive, got %d", numClasses)
	}

	rows, anchors, err := raw.matrix()
	if err != nil {
		return nil, err
	}
	if rows != numClasses+4 {
		return nil, errors.Wrapf(ErrShapeMismatch, "expected %d rows for %d classes, got %d", numClasses+4, numClasses, rows)
	}

	boxScale := float32(1)
	if opts.NormalizedBoxes {
		if opts.InputSize <= 0 {
			return nil, errors.New("normalized boxes require a positive input size")
		}
		boxScale = float32(opts.InputSize)
	}

	data := raw.Data()
	at := func(row, anchor int) float32 { return data[row*anchors+anchor] }

	candidates := make([]candidate, 0, 64)
	for i := 0; i < anchors; i++ {
		classID := 0
		confidence := at(4, i)
		for c := 1; c < numClasses; c++ {
			if s := at(4+c, i); s > confidence {
				classID, confidence = c, s
			}
		}
		if math32.IsNaN(confidence) || confidence < opts.ConfidenceThreshold {
			continue
		}

		box := images.RectFromCenter(at(0, i)*boxScale, at(1, i)*boxScale, at(2, i)*boxScale, at(3, i)*boxScale)
		box = info.RectToOriginal(box)

		candidates = append(candidates, candidate{
			Detection: Detection{
				X1:         box.X1,
				Y1:         box.Y1,
				X2:         box.X2,
				Y2:         box.Y2,
				ClassID:    classID,
				Confidence: confidence,
			},
			anchor: i,
		})
	}

	if len(candidates) == 0 {
		return []Detection{}, nil
	}

	// Candidates are in anchor order, so a stable sort breaks confidence ties by anchor.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Confidence > candidates[b].Confidence
	})

	dets := make([]Detection, len(candidates))
	for i := range candidates {
		dets[i] = candidates[i].Detection
	}

	keep := greedyKeep(dets, NMSConfig{
		IoUThreshold: opts.IoUThreshold,
		ClassAware:   !opts.ClassAgnostic,
	})
	if opts.MaxDetections > 0 && len(keep) > opts.MaxDetections {
		keep = keep[:opts.MaxDetections]
	}

	kept := make([]candidate, 0, len(keep))
	for _, i := range keep {
		kept = append(kept, candidates[i])
	}

	sort.Slice(kept, func(a, b int) bool {
		if kept[a].X1 != kept[b].X1 {
			return kept[a].X1 < kept[b].X1
		}
		return kept[a].anchor < kept[b].anchor
	})

	out := make([]Detection, len(kept))
	for i := range kept {
		out[i] = kept[i].Detection
	}

	return out, nil
}
