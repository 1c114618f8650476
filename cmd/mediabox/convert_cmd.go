package main

import (
	"context"
	"log/slog"
)

// runConvertCommand loads cfg.jobPath and runs the conversion it describes,
// optionally re-running every time the job file is replaced on disk
// (-job-watch), until ctx is canceled.
func runConvertCommand(ctx context.Context, logger *slog.Logger, cfg *cliConfig) error {
	if !cfg.jobWatch {
		job, err := loadJob(cfg.jobPath)
		if err != nil {
			return err
		}
		return runConvert(ctx, logger, job)
	}

	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()

	return watchJob(cfg.jobPath, stop, func(path string) {
		job, err := loadJob(path)
		if err != nil {
			logger.Error("invalid job file, skipping run", "path", path, "error", err)
			return
		}
		if err := runConvert(ctx, logger, job); err != nil {
			logger.Error("conversion failed", "path", path, "error", err)
			return
		}
		logger.Info("conversion complete", "path", path, "input", job.Input, "output", job.Output)
	})
}
