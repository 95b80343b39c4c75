package ingest

import (
	"context"
	"log/slog"
	"sync"
)

// Runner starts pipeline runs in the background on behalf of HTTP callers.
type Runner struct {
	pipeline *Pipeline
	ctx      context.Context
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewRunner binds background runs to ctx; cancelling it aborts them.
func NewRunner(ctx context.Context, p *Pipeline, logger *slog.Logger) *Runner {
	return &Runner{pipeline: p, ctx: ctx, logger: logger}
}

// Start validates path and takes the lock synchronously, then runs the
// pipeline in a goroutine. It returns the run ID.
func (r *Runner) Start(path string) (string, error) {
	if err := r.pipeline.opener.Validate(path); err != nil {
		return "", err
	}
	unlock, err := r.pipeline.lock.TryLock(r.ctx)
	if err != nil {
		return "", err
	}

	runID := newRunID()
	r.logger.Info("ingestion run accepted", "run_id", runID, "path", path)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unlock()
		// Failures are logged and counted inside run.
		_, _ = r.pipeline.run(r.ctx, runID, path)
	}()
	return runID, nil
}

// Wait blocks until every started run has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
