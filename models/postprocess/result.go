// Package postprocess - Postprocessing of raw detector outputs.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-dms/images"
	"github.com/nvr-ai/go-dms/models/model"
)

// RawTensor is the raw output of one detector for one image.
//
// The layout is [1, 4+C, N]: coordinate c of candidate j is at Data[c*N+j] and the
// score of class k is at Data[(4+k)*N+j]. Decoding never modifies it.
type RawTensor struct {
	Data  []float32
	Shape []int64
}

// PreprocessInfo is the letterbox mapping from network input space back to
// original image pixels: original = (input - offset) / scale.
type PreprocessInfo struct {
	Scale   float32 `json:"scale" yaml:"scale"`
	OffsetX float32 `json:"offset_x" yaml:"offset_x"`
	OffsetY float32 `json:"offset_y" yaml:"offset_y"`
}

// Detection represents a single decoded detection.
//
// Detections are values: suppression and fusion filter them but never edit them.
type Detection struct {
	// The bounding box in original image pixel coordinates.
	Box images.Rect `json:"bbox"`
	// The confidence score of the detection, in (0, 1].
	Confidence float32 `json:"confidence"`
	// The canonical class the detection was unified onto.
	Class string `json:"class"`
	// The class name as emitted by the source model.
	OriginalClass string `json:"original_class"`
	// The model that produced the detection.
	Source model.Name `json:"source"`
}

func (d Detection) String() string {
	return fmt.Sprintf("%s/%s (%s, confidence %f): (%f, %f), (%f, %f)",
		d.Class, d.OriginalClass, d.Source, d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
}
