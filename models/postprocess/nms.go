package postprocess

import (
	"github.com/nvr-ai/go-mahjong/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 // Overlap above which the lower-scored box is suppressed.
	ClassAware   bool    // If true, suppress only within same class.
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: NMS configuration.
//
// Returns:
//   - The kept detections in input order. If no detections are provided, returns nil.
func ApplyGreedyNMS(detections []Detection, config NMSConfig) []Detection {
	keep := greedyKeep(detections, config)
	if keep == nil {
		return nil
	}

	filtered := make([]Detection, 0, len(keep))
	for _, i := range keep {
		filtered = append(filtered, detections[i])
	}
	return filtered
}

// greedyKeep returns the indices of the detections that survive suppression.
func greedyKeep(detections []Detection, config NMSConfig) []int {
	n := len(detections)
	if n == 0 {
		return nil
	}

	keep := make([]int, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		keep = append(keep, i)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.ClassID != detections[j].ClassID {
				continue
			}

			if images.CalculateIoU(anchor.Box(), detections[j].Box()) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return keep
}
