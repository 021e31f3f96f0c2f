// Package fusion - Merges the detections of several models into one per-class result.
package fusion

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-dms/models"
	"github.com/nvr-ai/go-dms/models/model"
	"github.com/nvr-ai/go-dms/models/postprocess"
)

// Config controls how detections are pooled and suppressed.
type Config struct {
	// IoUThreshold is the exclusive IoU above which two same-class boxes overlap.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ExcludedClasses are canonical classes dropped before grouping.
	ExcludedClasses []string `json:"excluded_classes" yaml:"excluded_classes"`
}

// DefaultConfig returns an IoU threshold of 0.45 with "Safe Driving" excluded.
func DefaultConfig() Config {
	return Config{
		IoUThreshold:    0.45,
		ExcludedClasses: []string{models.ClassSafeDriving},
	}
}

// Validate checks the threshold range.
func (c Config) Validate() error {
	if c.IoUThreshold < 0 || c.IoUThreshold >= 1 {
		return errors.Errorf("iou threshold %f out of range [0, 1)", c.IoUThreshold)
	}
	return nil
}

// FusedResult maps each canonical class to its surviving detections, sorted by
// descending confidence. Classes without survivors are absent.
type FusedResult map[string][]postprocess.Detection

// Classes returns the detected classes in lexical order.
func (r FusedResult) Classes() []string {
	classes := lo.Keys(r)
	sort.Strings(classes)
	return classes
}

// Counts returns the number of surviving detections per class.
func (r FusedResult) Counts() map[string]int {
	return lo.MapValues(r, func(dets []postprocess.Detection, _ string) int {
		return len(dets)
	})
}

// Len returns the total number of surviving detections.
func (r FusedResult) Len() int {
	return lo.SumBy(lo.Values(r), func(dets []postprocess.Detection) int {
		return len(dets)
	})
}

// Has reports whether class has at least one detection.
func (r FusedResult) Has(class string) bool {
	return len(r[class]) > 0
}

// SourceDetections are the decoded detections of one model before fusion.
type SourceDetections struct {
	Model      model.Name
	Detections []postprocess.Detection
}

// Stats summarize one fusion.
type Stats struct {
	// Pooled is the number of detections from all models.
	Pooled int
	// Excluded is the number dropped for having an excluded class.
	Excluded int
	// Kept is the number that survived suppression.
	Kept int
}

// Suppressed is the number of detections removed as duplicates.
func (s Stats) Suppressed() int {
	return s.Pooled - s.Excluded - s.Kept
}

// Result is the outcome of fusing one image.
type Result struct {
	Detections FusedResult
	// Sources hold each model's detections as given to Fuse, unmodified.
	Sources []SourceDetections
	Stats   Stats
}

// Engine fuses the detections of several models with a fixed configuration.
// It holds no per-call state and may be used concurrently.
type Engine struct {
	iou      float32
	excluded map[string]struct{}
	logger   *zap.Logger
}

// NewEngine creates a fusion engine.
//
// Arguments:
//   - cfg: The fusion configuration.
//   - logger: Receives per-class debug counts. Nil disables logging.
//
// Returns:
//   - *Engine: The engine.
//   - error: An error if the configuration is invalid.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid fusion config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		iou:      cfg.IoUThreshold,
		excluded: lo.SliceToMap(cfg.ExcludedClasses, func(c string) (string, struct{}) { return c, struct{}{} }),
		logger:   logger,
	}, nil
}

// Fuse pools the detections of all sources, drops excluded classes, groups the rest
// by canonical class and suppresses duplicates within each class.
//
// Arguments:
//   - sources: The per-model detections. They are not modified.
//
// Returns:
//   - Result: The fused detections, the sources and counters.
//
// Example:
//
//	res := engine.Fuse(
//		fusion.SourceDetections{Model: model.ModelNameObjects, Detections: objects},
//		fusion.SourceDetections{Model: model.ModelNameBehaviors, Detections: behaviors},
//	)
func (e *Engine) Fuse(sources ...SourceDetections) Result {
	pooled := lo.FlatMap(sources, func(s SourceDetections, _ int) []postprocess.Detection {
		return s.Detections
	})
	kept := lo.Filter(pooled, func(d postprocess.Detection, _ int) bool {
		_, excluded := e.excluded[d.Class]
		return !excluded
	})

	fused := make(FusedResult)
	for class, group := range lo.GroupBy(kept, func(d postprocess.Detection) string { return d.Class }) {
		survivors := postprocess.Suppress(group, e.iou)
		if len(survivors) == 0 {
			continue
		}
		fused[class] = survivors
		e.logger.Debug("fused class",
			zap.String("class", class),
			zap.Int("candidates", len(group)),
			zap.Int("kept", len(survivors)),
		)
	}

	return Result{
		Detections: fused,
		Sources:    sources,
		Stats: Stats{
			Pooled:   len(pooled),
			Excluded: len(pooled) - len(kept),
			Kept:     fused.Len(),
		},
	}
}

// Fuse merges two models' detections with the given exclusions and IoU threshold.
// It is shorthand for an Engine used once.
//
// Arguments:
//   - a: Detections of the first model.
//   - b: Detections of the second model.
//   - excluded: Canonical classes to drop.
//   - iouThreshold: The exclusive IoU threshold.
//
// Returns:
//   - FusedResult: The per-class survivors.
func Fuse(a, b []postprocess.Detection, excluded []string, iouThreshold float32) FusedResult {
	e := &Engine{
		iou:      iouThreshold,
		excluded: lo.SliceToMap(excluded, func(c string) (string, struct{}) { return c, struct{}{} }),
		logger:   zap.NewNop(),
	}
	return e.Fuse(SourceDetections{Detections: a}, SourceDetections{Detections: b}).Detections
}
