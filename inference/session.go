// Package inference - Model input preparation and ONNX Runtime sessions.
package inference

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-dms/models/postprocess"
)

// Backend selects the ONNX Runtime execution provider of a session.
type Backend string

const (
	// BackendCPU runs on the default CPU provider.
	BackendCPU Backend = "cpu"
	// BackendCoreML runs on Apple's CoreML provider.
	BackendCoreML Backend = "coreml"
	// BackendCUDA runs on an NVIDIA GPU.
	BackendCUDA Backend = "cuda"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// InitializeRuntime loads the ONNX Runtime shared library. Only the first call has an
// effect; later calls return the first call's result.
//
// Arguments:
//   - libPath: Path to the onnxruntime shared library.
//
// Returns:
//   - error: An error if the library is missing or fails to initialize.
func InitializeRuntime(libPath string) error {
	runtimeOnce.Do(func() {
		if _, err := os.Stat(libPath); err != nil {
			runtimeErr = errors.Wrapf(err, "onnxruntime library not found at %q", libPath)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			runtimeErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return runtimeErr
}

// SessionArgs represents the arguments for creating a new detector session.
type SessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// The input node name, e.g. "images".
	InputName string
	// The output node name, e.g. "output0".
	OutputName string
	// The side of the square network input.
	InputSize int
	// The number of classes in the model's vocabulary.
	NumClasses int
	// The number of candidates N in the raw output.
	Anchors int
	// The execution provider. Empty means CPU.
	Backend Backend
	// Intra-op threads. Zero lets the runtime decide.
	Threads int
}

// Validate checks the arguments without touching the runtime.
func (a SessionArgs) Validate() error {
	switch {
	case a.ModelPath == "":
		return errors.New("model path is required")
	case a.InputName == "" || a.OutputName == "":
		return errors.New("input and output names are required")
	case a.InputSize <= 0:
		return errors.Errorf("invalid input size %d", a.InputSize)
	case a.NumClasses <= 0:
		return errors.Errorf("invalid class count %d", a.NumClasses)
	case a.Anchors <= 0:
		return errors.Errorf("invalid anchor count %d", a.Anchors)
	case a.Threads < 0:
		return errors.Errorf("invalid thread count %d", a.Threads)
	}
	switch a.Backend {
	case "", BackendCPU, BackendCoreML, BackendCUDA:
		return nil
	default:
		return errors.Errorf("unsupported backend %q", a.Backend)
	}
}

// InputShape is [1, 3, size, size].
func (a SessionArgs) InputShape() ort.Shape {
	return ort.NewShape(1, 3, int64(a.InputSize), int64(a.InputSize))
}

// OutputShape is [1, 4+C, N].
func (a SessionArgs) OutputShape() ort.Shape {
	return ort.NewShape(1, int64(4+a.NumClasses), int64(a.Anchors))
}

// Session is one ONNX model bound to preallocated input and output tensors.
// Run is serialized; a Session may be shared between goroutines.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewSession creates a session for one detector. InitializeRuntime must have been
// called first.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session. Close must be called to release native resources.
//   - error: An error if the arguments are invalid or the model fails to load.
func NewSession(args SessionArgs) (*Session, error) {
	if err := args.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session arguments")
	}
	if !ort.IsInitialized() {
		return nil, errors.New("onnxruntime is not initialized")
	}

	input, err := ort.NewEmptyTensor[float32](args.InputShape())
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](args.OutputShape())
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := sessionOptions(args)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "error creating ORT session for %q", args.ModelPath)
	}

	return &Session{session: session, input: input, output: output}, nil
}

func sessionOptions(args SessionArgs) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	fail := func(err error, msg string) (*ort.SessionOptions, error) {
		options.Destroy()
		return nil, errors.Wrap(err, msg)
	}

	if err := options.SetIntraOpNumThreads(args.Threads); err != nil {
		return fail(err, "error setting intra-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return fail(err, "error setting graph optimization level")
	}

	switch args.Backend {
	case BackendCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return fail(err, "error enabling CoreML")
		}
	case BackendCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fail(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return fail(err, "error enabling CUDA")
		}
	}
	return options, nil
}

// Run copies input into the bound tensor, executes the model and returns a copy of
// the raw output.
//
// Arguments:
//   - ctx: Checked before the model runs; a running model is not interrupted.
//   - input: CHW float32 data of length 3*size*size.
//
// Returns:
//   - postprocess.RawTensor: The raw [1, 4+C, N] output.
//   - error: An error if the input has the wrong length or the run fails.
func (s *Session) Run(ctx context.Context, input []float32) (postprocess.RawTensor, error) {
	if err := ctx.Err(); err != nil {
		return postprocess.RawTensor{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return postprocess.RawTensor{}, errors.New("session is closed")
	}
	dst := s.input.GetData()
	if len(input) != len(dst) {
		return postprocess.RawTensor{}, errors.Errorf("input holds %d floats, model needs %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return postprocess.RawTensor{}, errors.Wrap(err, "error running ORT session")
	}

	out := s.output.GetData()
	data := make([]float32, len(out))
	copy(data, out)
	return postprocess.RawTensor{Data: data, Shape: s.output.GetShape().Clone()}, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.session != nil {
		err = s.session.Destroy()
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	return errors.Wrap(err, "error destroying ORT session")
}
