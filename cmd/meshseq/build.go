package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/internal/logger"
	"github.com/Faultbox/meshseq/internal/metrics"
	"github.com/Faultbox/meshseq/internal/output"
	"github.com/Faultbox/meshseq/internal/pipeline"
)

func cmdBuild(args []string) error {
	cfg, _, err := loadConfig("build", args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := pipeline.FromConfig(cfg)
	if err != nil {
		return err
	}

	rec := metrics.New()
	opts.Metrics = rec
	if cfg.Logging.Level != "error" {
		opts.Progress = func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rparsed %d/%d frames", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	ctx, stop := signalContext()
	defer stop()

	sink, err := output.Open(ctx, cfg.Output.Path, output.Options{
		S3Region:   cfg.Output.S3Region,
		S3Endpoint: cfg.Output.S3Endpoint,
	})
	if err != nil {
		return err
	}

	report, err := pipeline.Run(ctx, opts, sink)
	if err != nil {
		logger.Error("build failed", zap.String("kind", errs.Kind(err)), zap.Error(err))
		if merr := rec.WriteFile(cfg.Metrics.File); merr != nil {
			logger.Warn("failed to write metrics", zap.Error(merr))
		}
		return err
	}

	logger.Info("build complete",
		zap.Int("frames", report.Frames),
		zap.Int("sequences", report.Sequences),
		zap.Int("segments", report.Segments),
		zap.Int("dense_accessors", report.Accessors.Dense),
		zap.Int("sparse_accessors", report.Accessors.Sparse),
		zap.Strings("files", report.Files),
		zap.Int("bytes", report.Bytes))
	if err := rec.WriteFile(cfg.Metrics.File); err != nil {
		return &errs.IOError{Op: "write metrics", Path: cfg.Metrics.File, Err: err}
	}
	return nil
}
