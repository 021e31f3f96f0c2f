// Package model - Identifiers and load arguments for the detection models.
package model

// Name is the unique identifier of a model. It is attached to every detection the
// model produces as its provenance.
type Name string

const (
	// ModelNameObjects is the detector trained on in-cabin objects (cigarette, phone, seatbelt...).
	ModelNameObjects Name = "dms-objects"
	// ModelNameBehaviors is the detector trained on driver states (drowsy, distracted, safe driving...).
	ModelNameBehaviors Name = "dms-behaviors"
)

// String returns the identifier as a plain string.
func (n Name) String() string {
	return string(n)
}

// NewModelArgs is the arguments for loading one detection model.
type NewModelArgs struct {
	// Name is the provenance identifier for the model's detections.
	Name Name `json:"name" yaml:"name"`
	// Path is the location of the ONNX file.
	Path string `json:"path" yaml:"path"`
	// Classes is the model's class vocabulary, ordered by score channel.
	Classes []string `json:"classes" yaml:"classes"`
	// Input is the name of the image input tensor.
	Input string `json:"input" yaml:"input"`
	// Output is the name of the raw detection output tensor.
	Output string `json:"output" yaml:"output"`
	// Anchors is the number of candidate detections the model emits per image.
	Anchors int `json:"anchors" yaml:"anchors"`
}
