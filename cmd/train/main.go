package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sarthakverma11/mlops-project-template/pkg/config"
	"github.com/sarthakverma11/mlops-project-template/pkg/ctxlog"
	"github.com/sarthakverma11/mlops-project-template/pkg/tracking"
	"github.com/sarthakverma11/mlops-project-template/pkg/trainer"
)

// main is the entrypoint for the training job.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *config.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		slog.Error("Training failed.", "error", err)
		os.Exit(1)
	}
}

// run parses args, opens the tracking run and trains the model. It returns
// a *config.ExitError for argument problems.
func run(outW io.Writer, args []string) (err error) {
	cfg, shouldExit, err := config.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := ctxlog.New(cfg.LogLevel, cfg.LogFormat, outW)
	slog.SetDefault(logger)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	store, err := tracking.Open(ctx, cfg.Tracking.URI)
	if err != nil {
		return err
	}
	defer store.Close()

	var trackRun *tracking.Run
	if cfg.Tracking.RunID != "" {
		// The surrounding workflow owns this run and ends it.
		if trackRun, err = store.ResumeRun(ctx, cfg.Tracking.RunID); err != nil {
			return err
		}
	} else {
		if trackRun, err = store.StartRun(ctx, cfg.Tracking.Experiment); err != nil {
			return err
		}
		defer func() {
			status := tracking.StatusFinished
			if err != nil {
				status = tracking.StatusFailed
			}
			if endErr := trackRun.End(context.WithoutCancel(ctx), status); endErr != nil && err == nil {
				err = endErr
			}
		}()
	}

	res, err := trainer.Run(ctx, cfg, trackRun)
	if err != nil {
		return err
	}

	logger.Info("Training complete.",
		"run_id", trackRun.ID(),
		"model", res.ModelPath,
		"plot", res.PlotPath,
		"trees", res.Trees,
		"r2", res.Metrics.R2,
	)
	return nil
}
