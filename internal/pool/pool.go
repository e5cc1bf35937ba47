// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pool runs jobs on a fixed number of goroutines and reports each
// job's outcome in the order jobs finish.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/docbatch/pkg/types"
)

var (
	// ErrRunFull is returned by Submit once a run holds as many jobs as
	// its capacity.
	ErrRunFull = errors.New("run is at capacity")

	// ErrRunClosed is returned by Submit after AwaitAll.
	ErrRunClosed = errors.New("run no longer accepts jobs")
)

// Job is one unit of work. It must report failures through the returned
// Outcome; a panic is contained by the pool and reported as a failure.
type Job func(ctx context.Context) types.Outcome

// Handle identifies a submitted job within its run, in submission order
// starting at zero.
type Handle int

// Completion pairs a finished job with its outcome.
type Completion struct {
	Handle  Handle
	Outcome types.Outcome
}

// Pool is a bounded-concurrency executor. Its size is fixed at creation.
type Pool struct {
	size   int
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger for the pool.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns a pool running at most size jobs at once. Sizes below one
// are raised to one.
func New(size int, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

type queued struct {
	handle Handle
	name   string
	job    Job
}

// Run is one batch of jobs on a pool. Its queue and goroutines live only
// until every submitted job has completed.
type Run struct {
	ctx     context.Context
	logger  *slog.Logger
	jobs    chan queued
	results chan Completion
	group   *errgroup.Group

	mu     sync.Mutex
	next   Handle
	closed bool
}

// Start launches the workers for a run accepting up to capacity jobs.
// Queued jobs that have not started when ctx ends are resolved as
// failures without running.
func (p *Pool) Start(ctx context.Context, capacity int) *Run {
	if capacity < 0 {
		capacity = 0
	}
	r := &Run{
		ctx:     ctx,
		logger:  p.logger,
		jobs:    make(chan queued, capacity),
		results: make(chan Completion, capacity),
		group:   new(errgroup.Group),
	}

	workers := p.size
	if capacity < workers {
		workers = max(capacity, 1)
	}
	for range workers {
		r.group.Go(func() error {
			for q := range r.jobs {
				r.results <- Completion{Handle: q.handle, Outcome: r.execute(q)}
			}
			return nil
		})
	}
	return r
}

// Submit enqueues job. name identifies the job in failures the pool
// reports on its behalf.
func (r *Run) Submit(name string, job Job) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRunClosed
	}
	if int(r.next) >= cap(r.jobs) {
		return 0, fmt.Errorf("%w (%d)", ErrRunFull, cap(r.jobs))
	}

	h := r.next
	r.next++
	r.jobs <- queued{handle: h, name: name, job: job}
	return h, nil
}

// Submitted returns the number of jobs accepted so far.
func (r *Run) Submitted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.next)
}

// AwaitAll stops accepting jobs and returns a channel yielding one
// Completion per submitted job as each finishes. The channel is closed
// after the last completion, by which point every worker has exited.
func (r *Run) AwaitAll() <-chan Completion {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
		go func() {
			_ = r.group.Wait()
			close(r.results)
		}()
	}
	r.mu.Unlock()
	return r.results
}

// execute runs one job, converting a panic into a failure.
func (r *Run) execute(q queued) (out types.Outcome) {
	if err := r.ctx.Err(); err != nil {
		return types.Failure(q.name, ctxMessage(err))
	}

	started := time.Now()
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("job panicked",
				slog.String("job", q.name),
				slog.Any("panic", v),
				slog.String("stack", string(debug.Stack())),
			)
			out = types.Failure(q.name, fmt.Sprintf("internal fault: %v", v))
			out.Duration = time.Since(started)
		}
	}()

	return q.job(r.ctx)
}

func ctxMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	return "canceled"
}
