package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/nvr-ai/go-dms/fusion"
	"github.com/nvr-ai/go-dms/models/postprocess"
)

// BoxRecord is a detection flattened to plain values.
type BoxRecord struct {
	Class         string     `json:"class"`
	OriginalClass string     `json:"original_class"`
	Source        string     `json:"source"`
	Confidence    float32    `json:"confidence"`
	BBox          [4]float32 `json:"bbox"`
}

// ModelReport lists one model's detections before fusion.
type ModelReport struct {
	Model      string      `json:"model"`
	Detections []BoxRecord `json:"detections"`
}

// ImageReport is the outcome of one image. It only holds strings, numbers, arrays
// and objects so it can be serialized as is.
type ImageReport struct {
	ID              string                 `json:"id"`
	Image           string                 `json:"image"`
	Width           int                    `json:"width"`
	Height          int                    `json:"height"`
	DetectedClasses []string               `json:"detected_classes"`
	DetectionCounts map[string]int         `json:"detection_counts"`
	Detections      map[string][]BoxRecord `json:"detections"`
	Instructions    []Instruction          `json:"instructions"`
	Models          []ModelReport          `json:"models"`
	DurationMS      float64                `json:"duration_ms"`
	// Warnings hold non-fatal problems, such as a model output that could not be decoded.
	Warnings []string `json:"warnings,omitempty"`
	// Error is set when the image could not be processed at all.
	Error string `json:"error,omitempty"`
}

// Record flattens a detection.
func Record(d postprocess.Detection) BoxRecord {
	return BoxRecord{
		Class:         d.Class,
		OriginalClass: d.OriginalClass,
		Source:        d.Source.String(),
		Confidence:    d.Confidence,
		BBox:          [4]float32{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2},
	}
}

func records(dets []postprocess.Detection) []BoxRecord {
	return lo.Map(dets, func(d postprocess.Detection, _ int) BoxRecord { return Record(d) })
}

// New builds the report of a processed image.
//
// Arguments:
//   - image: The image name shown in the report.
//   - width: The image width in pixels.
//   - height: The image height in pixels.
//   - res: The fusion result of the image.
//   - elapsed: The processing time.
//
// Returns:
//   - ImageReport: The report.
func New(image string, width, height int, res fusion.Result, elapsed time.Duration) ImageReport {
	return ImageReport{
		ID:              uuid.NewString(),
		Image:           image,
		Width:           width,
		Height:          height,
		DetectedClasses: res.Detections.Classes(),
		DetectionCounts: res.Detections.Counts(),
		Detections: lo.MapValues(res.Detections, func(dets []postprocess.Detection, _ string) []BoxRecord {
			return records(dets)
		}),
		Instructions: Instructions(res.Detections),
		Models: lo.Map(res.Sources, func(s fusion.SourceDetections, _ int) ModelReport {
			return ModelReport{Model: s.Model.String(), Detections: records(s.Detections)}
		}),
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	}
}

// Failed builds the report of an image that could not be processed.
func Failed(image string, err error) ImageReport {
	return ImageReport{
		ID:              uuid.NewString(),
		Image:           image,
		DetectedClasses: []string{},
		DetectionCounts: map[string]int{},
		Detections:      map[string][]BoxRecord{},
		Instructions:    []Instruction{},
		Models:          []ModelReport{},
		Error:           err.Error(),
	}
}

// OK reports whether the image was processed.
func (r ImageReport) OK() bool {
	return r.Error == ""
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []ImageReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return errors.Wrap(err, "error encoding reports")
	}
	return nil
}
