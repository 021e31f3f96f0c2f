package inference

import (
	"context"

	"github.com/nvr-ai/go-dms/models/postprocess"
)

// Engine defines the interface for ML inference engines.
//
// An engine takes a letterboxed CHW input and returns the model's raw output
// tensor. *Session is the ONNX Runtime implementation.
type Engine interface {
	Run(ctx context.Context, input []float32) (postprocess.RawTensor, error)
	Close() error
}

var _ Engine = (*Session)(nil)

// EngineFunc adapts a function to the Engine interface. Close is a no-op.
type EngineFunc func(ctx context.Context, input []float32) (postprocess.RawTensor, error)

// Run calls f.
func (f EngineFunc) Run(ctx context.Context, input []float32) (postprocess.RawTensor, error) {
	return f(ctx, input)
}

// Close does nothing.
func (f EngineFunc) Close() error {
	return nil
}
