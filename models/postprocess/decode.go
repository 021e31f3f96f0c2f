package postprocess

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-dms/images"
	"github.com/nvr-ai/go-dms/models"
)

var (
	// ErrShapeMismatch is returned when a raw tensor does not have the [1, 4+C, N] layout
	// expected for the model's vocabulary.
	ErrShapeMismatch = errors.New("unexpected output tensor shape")
	// ErrInvalidPreprocess is returned when the letterbox mapping cannot be inverted.
	ErrInvalidPreprocess = errors.New("invalid preprocess info")
)

// CheckShape validates a raw tensor against a vocabulary of numClasses classes.
//
// Arguments:
//   - t: The raw tensor.
//   - numClasses: The number of classes in the model's vocabulary.
//
// Returns:
//   - int: The number of candidate detections N.
//   - error: ErrShapeMismatch wrapped with the offending dimensions.
func CheckShape(t RawTensor, numClasses int) (int, error) {
	if len(t.Shape) != 3 || t.Shape[0] != 1 {
		return 0, errors.Wrapf(ErrShapeMismatch, "got %v, want [1 %d N]", t.Shape, numClasses+4)
	}
	if t.Shape[1] != int64(numClasses+4) {
		return 0, errors.Wrapf(ErrShapeMismatch, "got %d channels, want %d", t.Shape[1], numClasses+4)
	}
	if t.Shape[2] < 0 {
		return 0, errors.Wrapf(ErrShapeMismatch, "negative candidate count %d", t.Shape[2])
	}
	// Bounding N by the data length keeps (4+C)*N from overflowing.
	if t.Shape[2] > int64(len(t.Data)) {
		return 0, errors.Wrapf(ErrShapeMismatch, "got %d values for shape %v", len(t.Data), t.Shape)
	}
	n := int(t.Shape[2])
	if len(t.Data) != (numClasses+4)*n {
		return 0, errors.Wrapf(ErrShapeMismatch, "got %d values for shape %v", len(t.Data), t.Shape)
	}
	return n, nil
}

// FromDense converts a float32 gorgonia tensor into a RawTensor without copying.
//
// Arguments:
//   - t: A dense tensor holding float32 values.
//
// Returns:
//   - RawTensor: A view over the tensor's backing data.
//   - error: ErrShapeMismatch if the tensor is nil or not float32.
func FromDense(t *tensor.Dense) (RawTensor, error) {
	if t == nil {
		return RawTensor{}, errors.Wrap(ErrShapeMismatch, "nil tensor")
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return RawTensor{}, errors.Wrapf(ErrShapeMismatch, "dtype %v, want float32", t.Dtype())
	}
	shape := t.Shape()
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	return RawTensor{Data: data, Shape: dims}, nil
}

// Decoder turns one model's raw output into detections. It is configured once per
// model and holds no per-call state, so one Decoder may serve concurrent images.
type Decoder struct {
	// Vocabulary is the model's class list; its Style is the detections' Source.
	Vocabulary *models.OutputClassSet
	// Unifier maps native class names onto canonical ones. Nil means identity.
	Unifier *models.UnificationMap
	// ConfidenceThreshold is exclusive: a candidate is kept only if its score is above it.
	ConfidenceThreshold float32
	// Logger receives decode diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// Decode converts a raw [1, 4+C, N] tensor into detections in image pixel space.
//
// For each candidate the highest-scoring class wins (the lowest index on ties). Candidates
// whose best score does not exceed the threshold, or is not positive, are skipped. Boxes are converted from
// center form to corners, mapped back through the letterbox, and clamped to the image.
// Duplicates are kept; suppression happens later.
//
// A malformed tensor is not fatal: the error is logged and returned together with an
// empty detection list so callers can carry on with other models and images.
//
// Arguments:
//   - t: The raw tensor produced by the model.
//   - prep: The letterbox mapping used to build the model input.
//   - imageWidth: The original image width in pixels.
//   - imageHeight: The original image height in pixels.
//
// Returns:
//   - []Detection: The decoded detections, never nil.
//   - error: ErrShapeMismatch or ErrInvalidPreprocess, wrapped.
func (d *Decoder) Decode(t RawTensor, prep PreprocessInfo, imageWidth, imageHeight int) ([]Detection, error) {
	detections := make([]Detection, 0)

	n, err := CheckShape(t, d.Vocabulary.Len())
	if err == nil && !(prep.Scale > 0) {
		err = errors.Wrapf(ErrInvalidPreprocess, "scale %f", prep.Scale)
	}
	if err != nil {
		d.logger().Warn("discarding model output",
			zap.Stringer("model", d.Vocabulary.Style),
			zap.Int64s("shape", t.Shape),
			zap.Error(err),
		)
		return detections, err
	}

	numClasses := d.Vocabulary.Len()
	width, height := float32(imageWidth), float32(imageHeight)

	for j := 0; j < n; j++ {
		maxScore := float32(0)
		maxIndex := 0
		for k := 0; k < numClasses; k++ {
			score := t.Data[(4+k)*n+j]
			if score > maxScore {
				maxScore = score
				maxIndex = k
			}
		}
		if maxScore <= 0 || !(maxScore > d.ConfidenceThreshold) {
			continue
		}

		cx := t.Data[j]
		cy := t.Data[n+j]
		w := t.Data[2*n+j]
		h := t.Data[3*n+j]

		box := images.Rect{
			X1: (cx - w/2 - prep.OffsetX) / prep.Scale,
			Y1: (cy - h/2 - prep.OffsetY) / prep.Scale,
			X2: (cx + w/2 - prep.OffsetX) / prep.Scale,
			Y2: (cy + h/2 - prep.OffsetY) / prep.Scale,
		}.Clamp(width, height)
		if box.Empty() {
			continue
		}

		original := d.Vocabulary.Classes[maxIndex].Name
		detections = append(detections, Detection{
			Box:           box,
			Confidence:    maxScore,
			Class:         d.Unifier.Unify(original, d.Vocabulary.Style),
			OriginalClass: original,
			Source:        d.Vocabulary.Style,
		})
	}

	return detections, nil
}

func (d *Decoder) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
