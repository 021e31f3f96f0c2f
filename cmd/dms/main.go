// Package main is the dms command: it runs the two detectors over images and
// prints a fused safety report per image.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-dms/config"
	"github.com/nvr-ai/go-dms/detector"
	"github.com/nvr-ai/go-dms/inference"
	"github.com/nvr-ai/go-dms/models/model"
	"github.com/nvr-ai/go-dms/report"
	"github.com/nvr-ai/go-dms/util"
)

const (
	flagConfig      = "config"
	flagLib         = "lib"
	flagConcurrency = "concurrency"
	flagOutput      = "output"
	flagLogLevel    = "log-level"
	flagMetricsAddr = "metrics-addr"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "dms",
		Usage: "detect driver distractions with two fused detectors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "run both models on images and print JSON reports",
				ArgsUsage: "<image|dir>...",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  flagConfig,
						Usage: "YAML configuration; defaults are used when unset",
					},
					&cli.PathFlag{
						Name:  flagLib,
						Usage: "onnxruntime shared library, overrides runtime.library_path",
					},
					&cli.IntFlag{
						Name:  flagConcurrency,
						Usage: "images processed at once, overrides concurrency",
					},
					&cli.PathFlag{
						Name:  flagOutput,
						Usage: "write the reports to a file instead of stdout",
					},
					&cli.StringFlag{
						Name:  flagMetricsAddr,
						Usage: "serve Prometheus metrics on this address while the batch runs, e.g. :9090",
					},
				},
				Action: detectAction,
			},
			{
				Name:   "classes",
				Usage:  "print the canonical classes and how each model's classes map onto them",
				Flags:  []cli.Flag{&cli.PathFlag{Name: flagConfig}},
				Action: classesAction,
			},
			{
				Name:   "config",
				Usage:  "print the effective configuration as YAML",
				Flags:  []cli.Flag{&cli.PathFlag{Name: flagConfig}},
				Action: configAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.String(flagLogLevel))
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.Path(flagConfig)
	if path == "" {
		cfg := config.DefaultConfig()
		return &cfg, nil
	}
	return config.Load(path)
}

func detectAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("no images given")
	}

	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if lib := c.Path(flagLib); lib != "" {
		cfg.Runtime.LibraryPath = lib
	}
	if n := c.Int(flagConcurrency); n > 0 {
		cfg.Concurrency = n
	}

	files, err := util.LoadImageFiles(c.Args().Slice()...)
	if err != nil {
		return err
	}
	logger.Info("loaded images", zap.Int("count", len(files)))

	if err := inference.InitializeRuntime(cfg.Runtime.LibraryPath); err != nil {
		return err
	}

	engines := make(map[model.Name]inference.Engine, len(cfg.Models))
	closeAll := func() {
		for _, e := range engines {
			e.Close() //nolint:errcheck
		}
	}
	for _, m := range cfg.Models {
		session, err := inference.NewSession(cfg.SessionArgs(m))
		if err != nil {
			closeAll()
			return errors.Wrapf(err, "model %q", m.Name)
		}
		engines[m.Name] = session
		logger.Info("loaded model", zap.Stringer("model", m.Name), zap.String("path", m.Path))
	}

	metrics := detector.NewMetrics()
	det, err := detector.New(*cfg, engines, detector.WithLogger(logger), detector.WithMetrics(metrics))
	if err != nil {
		closeAll()
		return err
	}
	defer det.Close() //nolint:errcheck

	if addr := c.String(flagMetricsAddr); addr != "" {
		bound, shutdown, err := serveMetrics(addr, metrics, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		logger.Info("serving metrics", zap.String("addr", bound.String()))
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := det.ProcessBatch(ctx, files)
	if err != nil {
		return err
	}

	if err := writeReports(os.Stdout, c.Path(flagOutput), reports); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if !r.OK() {
			failed++
		}
	}
	logger.Info("done", zap.Int("images", len(reports)), zap.Int("failed", failed))
	return nil
}

// writeReports writes the reports to path, or to stdout when path is empty.
func writeReports(stdout io.Writer, path string, reports []report.ImageReport) error {
	if path == "" {
		return report.WriteJSON(stdout, reports)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %q", path)
	}
	if err := report.WriteJSON(f, reports); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "error closing %q", path)
	}
	return nil
}

// serveMetrics serves the detector metrics on addr under /metrics until shutdown is called.
func serveMetrics(addr string, metrics *detector.Metrics, logger *zap.Logger) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error listening on %q", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx) //nolint:errcheck
	}
	return ln.Addr(), shutdown, nil
}

func classesAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	unifier := cfg.UnificationMap()
	sets := cfg.Vocabularies().Sets()

	w := c.App.Writer
	fmt.Fprintln(w, "canonical:", strings.Join(unifier.CanonicalClasses(sets...), ", "))
	for _, set := range sets {
		fmt.Fprintf(w, "%s:\n", set.Style)
		for _, class := range set.Classes {
			fmt.Fprintf(w, "  %d %s -> %s\n", class.Index, class.Name, unifier.Unify(class.Name, set.Style))
		}
	}
	return nil
}

func configAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "error encoding config")
	}
	return enc.Close()
}
