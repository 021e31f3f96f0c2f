package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-dms/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap threshold for suppression. IoU strictly above it is an overlap.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// If true, a box whose center lies inside the other box also counts as overlapping.
	CenterContainment bool `json:"center_containment" yaml:"center_containment"`
	// If true, suppress only within the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// Overlaps reports whether two boxes describe the same object.
//
// The relation is symmetric: it holds when the IoU exceeds the threshold, or when
// the center of either box lies inside the other one.
//
// Arguments:
//   - a: The first box.
//   - b: The second box.
//   - iouThreshold: IoU threshold, exclusive.
//
// Returns:
//   - bool: True when the boxes overlap.
func Overlaps(a, b images.Rect, iouThreshold float32) bool {
	cfg := NMSConfig{IoUThreshold: iouThreshold, CenterContainment: true}
	return cfg.overlaps(a, b)
}

func (c *NMSConfig) overlaps(a, b images.Rect) bool {
	if images.CalculateIoU(a, b) > c.IoUThreshold {
		return true
	}
	return c.CenterContainment && (a.ContainsCenterOf(b) || b.ContainsCenterOf(a))
}

// ApplyGreedyNMS performs greedy Non-Maximum Suppression.
//
// Detections are visited in descending confidence order (ties keep their input order).
// Each surviving detection suppresses every later one that overlaps it. The input slice
// is not reordered or modified.
//
// Arguments:
//   - detections: The detections to filter, in any order.
//   - config: NMS configuration.
//
// Returns:
//   - []Detection: The survivors, sorted by descending confidence. Never nil.
//
// Example:
//
//	kept := ApplyGreedyNMS(dets, &NMSConfig{IoUThreshold: 0.45, CenterContainment: true})
func ApplyGreedyNMS(detections []Detection, config *NMSConfig) []Detection {
	n := len(detections)
	filtered := make([]Detection, 0, n)
	if n == 0 {
		return filtered
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return detections[order[a]].Confidence > detections[order[b]].Confidence
	})

	used := make([]bool, n)
	for i, idx := range order {
		if used[i] {
			continue
		}

		anchor := detections[idx]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			other := detections[order[j]]
			if config.ClassAware && anchor.Class != other.Class {
				continue
			}
			if config.overlaps(anchor.Box, other.Box) {
				used[j] = true
			}
		}
	}

	return filtered
}

// Suppress applies overlap-aware greedy NMS to detections that share a class.
//
// Arguments:
//   - detections: The detections of one class.
//   - iouThreshold: IoU threshold, exclusive.
//
// Returns:
//   - []Detection: The survivors, sorted by descending confidence.
func Suppress(detections []Detection, iouThreshold float32) []Detection {
	return ApplyGreedyNMS(detections, &NMSConfig{IoUThreshold: iouThreshold, CenterContainment: true})
}
