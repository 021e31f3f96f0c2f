// Package config - Configuration of the detection pipeline.
package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-dms/fusion"
	"github.com/nvr-ai/go-dms/inference"
	"github.com/nvr-ai/go-dms/models"
	"github.com/nvr-ai/go-dms/models/model"
	"github.com/nvr-ai/go-dms/models/postprocess"
)

// Runtime configures the ONNX Runtime shared by all sessions.
type Runtime struct {
	// LibraryPath is the onnxruntime shared library.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// Backend is the execution provider.
	Backend inference.Backend `json:"backend" yaml:"backend"`
	// Threads is the intra-op thread count per session. Zero lets the runtime decide.
	Threads int `json:"threads" yaml:"threads"`
}

// Config is everything the pipeline needs, passed explicitly to each component.
type Config struct {
	// ConfidenceThreshold is exclusive; candidates at or below it are dropped.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// IoUThreshold is exclusive; same-class boxes above it are duplicates.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// InputSize is the side of the square network input.
	InputSize int `json:"input_size" yaml:"input_size"`
	// Concurrency bounds the number of images processed at once.
	Concurrency int `json:"concurrency" yaml:"concurrency"`
	// ExcludedClasses are canonical classes dropped before fusion.
	ExcludedClasses []string `json:"excluded_classes" yaml:"excluded_classes"`
	// Unification replaces the built-in class mapping when set.
	Unification map[string]string `json:"unification,omitempty" yaml:"unification,omitempty"`
	// ScopedUnification overrides the mapping for one model's vocabulary.
	ScopedUnification map[model.Name]map[string]string `json:"scoped_unification,omitempty" yaml:"scoped_unification,omitempty"`
	// Models are the two detectors whose outputs are fused.
	Models []model.NewModelArgs `json:"models" yaml:"models"`
	// Runtime configures ONNX Runtime.
	Runtime Runtime `json:"runtime" yaml:"runtime"`
}

// DefaultConfig returns the configuration of the stock two-model setup.
//
// Returns:
//   - Config: Thresholds 0.25 / 0.45, 640px input and both built-in vocabularies.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.25,
		IoUThreshold:        0.45,
		InputSize:           640,
		Concurrency:         4,
		ExcludedClasses:     []string{models.ClassSafeDriving},
		Models: []model.NewModelArgs{
			{
				Name:    model.ModelNameObjects,
				Path:    "models/dms-objects.onnx",
				Classes: append([]string(nil), models.ObjectClassNames...),
				Input:   "images",
				Output:  "output0",
				Anchors: 8400,
			},
			{
				Name:    model.ModelNameBehaviors,
				Path:    "models/dms-behaviors.onnx",
				Classes: append([]string(nil), models.BehaviorClassNames...),
				Input:   "images",
				Output:  "output0",
				Anchors: 8400,
			},
		},
		Runtime: Runtime{
			LibraryPath: "/usr/local/lib/libonnxruntime.so",
			Backend:     inference.BackendCPU,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - *Config: The configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %q", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks thresholds, sizes and the model list.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return errors.Errorf("confidence_threshold %f out of range [0, 1)", c.ConfidenceThreshold)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold >= 1 {
		return errors.Errorf("iou_threshold %f out of range [0, 1)", c.IoUThreshold)
	}
	if c.InputSize <= 0 {
		return errors.Errorf("input_size must be positive, got %d", c.InputSize)
	}
	if c.Concurrency <= 0 {
		return errors.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if len(c.Models) != 2 {
		return errors.Errorf("exactly two models are fused, got %d", len(c.Models))
	}

	seen := make(map[model.Name]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" {
			return errors.Errorf("models[%d]: name is required", i)
		}
		if seen[m.Name] {
			return errors.Errorf("models[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if len(m.Classes) == 0 {
			return errors.Errorf("model %q: classes are required", m.Name)
		}
	}
	for name := range c.ScopedUnification {
		if !seen[name] {
			return errors.Errorf("scoped_unification: unknown model %q", name)
		}
	}
	return nil
}

// Vocabularies returns the class sets of the configured models, in model order.
func (c *Config) Vocabularies() *models.ClassManager {
	sets := make([]*models.OutputClassSet, len(c.Models))
	for i, m := range c.Models {
		sets[i] = models.NewOutputClassSet(m.Name, m.Classes...)
	}
	return models.NewClassManager(sets...)
}

// UnificationMap returns the configured class mapping, or the built-in one when
// none is configured.
func (c *Config) UnificationMap() *models.UnificationMap {
	shared := c.Unification
	if shared == nil {
		shared = models.DefaultUnification
	}
	return models.NewUnificationMap(shared, c.ScopedUnification)
}

// Decoders builds one decoder per model sharing the unification map.
//
// Arguments:
//   - logger: Receives decode diagnostics. May be nil.
//
// Returns:
//   - map[model.Name]*postprocess.Decoder: Decoders keyed by model name.
func (c *Config) Decoders(logger *zap.Logger) map[model.Name]*postprocess.Decoder {
	unifier := c.UnificationMap()
	decoders := make(map[model.Name]*postprocess.Decoder, len(c.Models))
	for _, set := range c.Vocabularies().Sets() {
		decoders[set.Style] = &postprocess.Decoder{
			Vocabulary:          set,
			Unifier:             unifier,
			ConfidenceThreshold: c.ConfidenceThreshold,
			Logger:              logger,
		}
	}
	return decoders
}

// Fusion returns the fusion settings.
func (c *Config) Fusion() fusion.Config {
	return fusion.Config{
		IoUThreshold:    c.IoUThreshold,
		ExcludedClasses: c.ExcludedClasses,
	}
}

// SessionArgs returns the ONNX session arguments for one model.
func (c *Config) SessionArgs(m model.NewModelArgs) inference.SessionArgs {
	return inference.SessionArgs{
		ModelPath:  m.Path,
		InputName:  m.Input,
		OutputName: m.Output,
		InputSize:  c.InputSize,
		NumClasses: len(m.Classes),
		Anchors:    m.Anchors,
		Backend:    c.Runtime.Backend,
		Threads:    c.Runtime.Threads,
	}
}
