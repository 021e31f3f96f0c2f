// Package detector - Runs both models on an image and fuses their detections.
package detector

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-dms/config"
	"github.com/nvr-ai/go-dms/fusion"
	"github.com/nvr-ai/go-dms/images"
	"github.com/nvr-ai/go-dms/inference"
	"github.com/nvr-ai/go-dms/models/model"
	"github.com/nvr-ai/go-dms/models/postprocess"
	"github.com/nvr-ai/go-dms/report"
	"github.com/nvr-ai/go-dms/util"
)

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// Detector holds one engine and decoder per model and the fusion engine.
// It is safe for concurrent use when its engines are.
type Detector struct {
	inputSize   int
	concurrency int
	order       []model.Name
	engines     map[model.Name]inference.Engine
	decoders    map[model.Name]*postprocess.Decoder
	fusion      *fusion.Engine
	logger      *zap.Logger
	metrics     *Metrics
}

// Result is the outcome of one image.
type Result struct {
	Fusion fusion.Result
	// DecodeErrors hold the models whose output was discarded.
	DecodeErrors []error
}

// New creates a detector.
//
// Arguments:
//   - cfg: The pipeline configuration. It is validated.
//   - engines: One engine per configured model, keyed by model name.
//   - opts: Options.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if the configuration is invalid or an engine is missing.
func New(cfg config.Config, engines map[model.Name]inference.Engine, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	d := &Detector{
		inputSize:   cfg.InputSize,
		concurrency: cfg.Concurrency,
		engines:     make(map[model.Name]inference.Engine, len(cfg.Models)),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, m := range cfg.Models {
		engine, ok := engines[m.Name]
		if !ok || engine == nil {
			return nil, errors.Errorf("no engine for model %q", m.Name)
		}
		d.engines[m.Name] = engine
		d.order = append(d.order, m.Name)
	}

	fe, err := fusion.NewEngine(cfg.Fusion(), d.logger)
	if err != nil {
		return nil, err
	}
	d.fusion = fe
	d.decoders = cfg.Decoders(d.logger)

	return d, nil
}

// FuseTensors decodes each model's raw output and fuses the detections. A model
// whose tensor is malformed contributes no detections; its error is returned in
// the result.
//
// Arguments:
//   - raws: The raw output of each model.
//   - prep: The letterbox mapping shared by both inputs.
//   - width: The original image width.
//   - height: The original image height.
//
// Returns:
//   - Result: The fused detections and any decode errors.
func (d *Detector) FuseTensors(raws map[model.Name]postprocess.RawTensor, prep postprocess.PreprocessInfo, width, height int) Result {
	var res Result
	sources := make([]fusion.SourceDetections, 0, len(d.order))

	for _, name := range d.order {
		dets, err := d.decoders[name].Decode(raws[name], prep, width, height)
		if err != nil {
			d.metrics.observeDecodeFailure(name.String())
			res.DecodeErrors = append(res.DecodeErrors, errors.Wrapf(err, "model %q", name))
		}
		sources = append(sources, fusion.SourceDetections{Model: name, Detections: dets})
	}

	res.Fusion = d.fusion.Fuse(sources...)
	d.metrics.observeFusion(res.Fusion.Detections.Counts(), res.Fusion.Stats.Suppressed())
	return res
}

// Process runs both models on an image and fuses their detections.
//
// Arguments:
//   - ctx: Cancels inference.
//   - img: The image in its original resolution.
//
// Returns:
//   - *Result: The fused detections.
//   - error: An error if preprocessing or an engine fails.
func (d *Detector) Process(ctx context.Context, img image.Image) (*Result, error) {
	lb, err := inference.Letterbox(img, d.inputSize)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}

	outputs := make([]postprocess.RawTensor, len(d.order))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range d.order {
		i, name := i, name
		g.Go(func() error {
			raw, err := d.engines[name].Run(gctx, lb.Data)
			if err != nil {
				return errors.Wrapf(err, "inference with model %q", name)
			}
			outputs[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raws := make(map[model.Name]postprocess.RawTensor, len(d.order))
	for i, name := range d.order {
		raws[name] = outputs[i]
	}

	bounds := img.Bounds()
	res := d.FuseTensors(raws, lb.Info, bounds.Dx(), bounds.Dy())
	return &res, nil
}

// ProcessImage decodes and processes one encoded image into a report. Failures are
// recorded on the report instead of being returned.
//
// Arguments:
//   - ctx: Cancels inference.
//   - name: The name shown in the report.
//   - data: The encoded image bytes.
//
// Returns:
//   - report.ImageReport: The report of the image.
func (d *Detector) ProcessImage(ctx context.Context, name string, data []byte) report.ImageReport {
	start := time.Now()
	log := d.logger.With(zap.String("image", name))

	fail := func(err error) report.ImageReport {
		d.metrics.observeImage(false, time.Since(start))
		log.Error("image failed", zap.Error(err))
		return report.Failed(name, err)
	}

	img, err := images.Decode(data)
	if err != nil {
		return fail(err)
	}
	res, err := d.Process(ctx, img.Pixels)
	if err != nil {
		return fail(err)
	}

	elapsed := time.Since(start)
	r := report.New(name, img.Width, img.Height, res.Fusion, elapsed)
	for _, derr := range res.DecodeErrors {
		r.Warnings = append(r.Warnings, derr.Error())
	}
	d.metrics.observeImage(true, elapsed)

	log.Info("image processed",
		zap.Strings("classes", r.DetectedClasses),
		zap.Int("pooled", res.Fusion.Stats.Pooled),
		zap.Int("kept", res.Fusion.Stats.Kept),
		zap.Duration("elapsed", elapsed),
	)
	return r
}

// ProcessBatch processes files concurrently, at most the configured concurrency at
// a time. Reports keep the order of files. A failing image does not stop the others.
//
// Arguments:
//   - ctx: Cancels the batch.
//   - files: The images to process.
//
// Returns:
//   - []report.ImageReport: One report per file. Files left unscheduled by a cancellation
//     get a failed report carrying the context error.
//   - error: The context error if the batch was cancelled.
func (d *Detector) ProcessBatch(ctx context.Context, files []util.ImageFile) ([]report.ImageReport, error) {
	reports := make([]report.ImageReport, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	scheduled := 0
	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		i, file := i, file
		g.Go(func() error {
			reports[i] = d.ProcessImage(gctx, file.Path, file.Data)
			return nil
		})
		scheduled++
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for _, file := range files[scheduled:] {
			d.metrics.observeImage(false, 0)
			reports[scheduled] = report.Failed(file.Path, err)
			scheduled++
		}
		return reports, errors.Wrap(err, "batch cancelled")
	}
	return reports, nil
}

// Close closes every engine.
func (d *Detector) Close() error {
	var first error
	for _, name := range d.order {
		if err := d.engines[name].Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "closing model %q", name)
		}
	}
	return first
}
