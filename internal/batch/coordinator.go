// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch fans a list of input files out to a worker pool and folds
// the outcomes into a Report in completion order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/docbatch/internal/pool"
	"github.com/pdiddy/docbatch/pkg/types"
)

var (
	// ErrEmptyBatch is returned when ProcessBatch receives no files.
	// Nothing is submitted and progress is never reported.
	ErrEmptyBatch = errors.New("empty batch: no files to process")

	// ErrPoolFault is returned alongside a complete Report when the pool
	// lost track of one or more jobs. Those files appear as failures.
	ErrPoolFault = errors.New("worker pool fault")
)

// Runner processes a single file. convert.Task implements it.
type Runner interface {
	Run(ctx context.Context, file types.InputFile) types.Outcome
}

// ProgressFunc is called after every completion with the number of files
// completed so far, the batch size and the outcome that just arrived.
type ProgressFunc func(completed, total int, latest types.Outcome)

// batchRun is the part of a pool.Run the coordinator drives.
type batchRun interface {
	Submit(name string, job pool.Job) (pool.Handle, error)
	AwaitAll() <-chan pool.Completion
}

// Coordinator runs batches. It is safe to run several batches
// concurrently on one Coordinator; they share the pool size but not
// their queues.
type Coordinator struct {
	workers   int
	start     func(ctx context.Context, capacity int) batchRun
	runner    Runner
	outputDir string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOutputDir records the output directory on every Report.
func WithOutputDir(dir string) Option {
	return func(c *Coordinator) { c.outputDir = dir }
}

// WithBatchTimeout bounds a whole batch. Files unfinished at the deadline
// are reported as timed out.
func WithBatchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns a Coordinator submitting one runner call per file to p.
func New(p *pool.Pool, runner Runner, opts ...Option) *Coordinator {
	c := &Coordinator{
		workers: p.Size(),
		start: func(ctx context.Context, capacity int) batchRun {
			return p.Start(ctx, capacity)
		},
		runner: runner,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessBatch converts every file and returns the Report. It blocks until
// each file has exactly one outcome. progress may be nil. Failed files are
// not retried; resubmit them in a new batch.
func (c *Coordinator) ProcessBatch(ctx context.Context, files []types.InputFile, progress ProgressFunc) (types.Report, error) {
	if len(files) == 0 {
		return types.Report{}, ErrEmptyBatch
	}

	batch := make([]types.InputFile, len(files))
	copy(batch, files)
	total := len(batch)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	id := c.newID()
	started := c.now()
	logger := c.logger.With(slog.String("batch_id", id))
	logger.Info("batch started", slog.Int("files", total), slog.Int("workers", c.workers))

	run := c.start(ctx, total)
	for _, f := range batch {
		if _, err := run.Submit(f.Name, func(ctx context.Context) types.Outcome {
			return c.runner.Run(ctx, f)
		}); err != nil {
			// Capacity equals the batch size, so this only happens if the
			// pool misbehaves; the file is accounted for below.
			logger.Error("submitting file", slog.String("file", f.Name), slog.String("error", err.Error()))
		}
	}

	outcomes := make([]types.Outcome, 0, total)
	resolved := make([]bool, total)
	for comp := range run.AwaitAll() {
		h := int(comp.Handle)
		if h < 0 || h >= total || resolved[h] {
			logger.Error("unexpected completion", slog.Int("handle", h))
			continue
		}
		resolved[h] = true
		outcomes = append(outcomes, comp.Outcome)

		if comp.Outcome.Succeeded() {
			logger.Debug("file converted",
				slog.String("file", comp.Outcome.Original),
				slog.String("output", comp.Outcome.Output),
				slog.Duration("took", comp.Outcome.Duration),
			)
		} else {
			logger.Warn("file failed",
				slog.String("file", comp.Outcome.Original),
				slog.String("error", comp.Outcome.Error),
			)
		}
		if progress != nil {
			progress(len(outcomes), total, comp.Outcome)
		}
	}

	var faultErr error
	if len(outcomes) < total {
		missing := total - len(outcomes)
		faultErr = fmt.Errorf("%w: %d of %d files never completed", ErrPoolFault, missing, total)
		for i, ok := range resolved {
			if ok {
				continue
			}
			o := types.Failure(batch[i].Name, "not processed: worker pool fault")
			outcomes = append(outcomes, o)
			if progress != nil {
				progress(len(outcomes), total, o)
			}
		}
	}

	report := types.NewReport(outcomes)
	report.BatchID = id
	report.OutputDir = c.outputDir
	report.StartedAt = started.UTC()
	report.FinishedAt = c.now().UTC()

	logger.Info("batch finished",
		slog.Int("total", report.Total),
		slog.Int("succeeded", report.SuccessCount),
		slog.Int("failed", report.FailureCount),
		slog.Duration("elapsed", report.Elapsed()),
	)
	return report, faultErr
}
