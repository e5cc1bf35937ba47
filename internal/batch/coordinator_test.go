// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docbatch/internal/convert"
	"github.com/pdiddy/docbatch/internal/naming"
	"github.com/pdiddy/docbatch/internal/pool"
	"github.com/pdiddy/docbatch/pkg/types"
)

// selectiveConverter fails for names containing "bad" and echoes the
// name otherwise.
type selectiveConverter struct{}

func (selectiveConverter) Convert(_ context.Context, f types.InputFile) (string, error) {
	if strings.Contains(f.Name, "bad") {
		return "", errors.New("malformed document")
	}
	return "# " + f.Name + "\n", nil
}

// funcRunner adapts a function to Runner.
type funcRunner func(ctx context.Context, f types.InputFile) types.Outcome

func (r funcRunner) Run(ctx context.Context, f types.InputFile) types.Outcome { return r(ctx, f) }

// progressLog records progress callbacks.
type progressLog struct {
	mu    sync.Mutex
	calls [][2]int
	last  []types.Outcome
}

func (p *progressLog) record(completed, total int, latest types.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, [2]int{completed, total})
	p.last = append(p.last, latest)
}

func setup(t *testing.T, workers int) (*Coordinator, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "documents")
	names, err := naming.New(dir)
	require.NoError(t, err)
	task := convert.NewTask(selectiveConverter{}, names, "md")
	return New(pool.New(workers), task, WithOutputDir(dir)), dir
}

func inputs(names ...string) []types.InputFile {
	files := make([]types.InputFile, len(names))
	for i, n := range names {
		files[i] = types.InputFile{Name: n}
	}
	return files
}

func TestProcessBatch_EmptyBatch(t *testing.T) {
	c, dir := setup(t, 2)
	progress := &progressLog{}

	report, err := c.ProcessBatch(context.Background(), nil, progress.record)
	require.ErrorIs(t, err, ErrEmptyBatch)
	assert.Zero(t, report.Total)
	assert.Empty(t, progress.calls)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessBatch_Isolation(t *testing.T) {
	c, dir := setup(t, 4)
	files := inputs("a.pdf", "b.pdf", "bad.pdf", "c.pdf", "d.pdf")

	report, err := c.ProcessBatch(context.Background(), files, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 4, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	assert.Equal(t, report.Total, len(report.Successes)+len(report.Failures))
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "bad.pdf", report.Failures[0].Original)
	assert.Equal(t, "malformed document", report.Failures[0].Error)
	assert.True(t, report.HasFailures())
	assert.Equal(t, dir, report.OutputDir)
	assert.NotEmpty(t, report.BatchID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	for _, s := range report.Successes {
		data, err := os.ReadFile(filepath.Join(dir, s.Output))
		require.NoError(t, err)
		assert.Equal(t, "# "+s.Original+"\n", string(data), "output written before success is reported")
	}
}

func TestProcessBatch_ProgressMonotonic(t *testing.T) {
	c, _ := setup(t, 3)
	progress := &progressLog{}
	const n = 12

	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("file%02d.txt", i)
	}
	names[5] = "bad5.txt"

	report, err := c.ProcessBatch(context.Background(), inputs(names...), progress.record)
	require.NoError(t, err)

	require.Len(t, progress.calls, n)
	for i, call := range progress.calls {
		assert.Equal(t, i+1, call[0])
		assert.Equal(t, n, call[1])
	}
	assert.Equal(t, n, report.SuccessCount+report.FailureCount)
}

func TestProcessBatch_ConcurrentSameBaseName(t *testing.T) {
	c, dir := setup(t, 8)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.md"), []byte("pre-existing"), 0o644))

	files := make([]types.InputFile, 50)
	for i := range files {
		files[i] = types.InputFile{Name: fmt.Sprintf("upload%d/doc.pdf", i)}
	}

	report, err := c.ProcessBatch(context.Background(), files, nil)
	require.NoError(t, err)
	require.Equal(t, 50, report.SuccessCount)

	seen := make(map[string]bool)
	for _, s := range report.Successes {
		assert.False(t, seen[s.Output], "duplicate output name %s", s.Output)
		assert.NotEqual(t, "doc.md", s.Output, "must not collide with a pre-existing file")
		seen[s.Output] = true
	}

	data, err := os.ReadFile(filepath.Join(dir, "doc.md"))
	require.NoError(t, err)
	assert.Equal(t, "pre-existing", string(data))
}

func TestProcessBatch_RepeatedRunsSuffix(t *testing.T) {
	c, dir := setup(t, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.md"), []byte("v0"), 0o644))

	first, err := c.ProcessBatch(context.Background(), inputs("report.docx"), nil)
	require.NoError(t, err)
	assert.Equal(t, "report_1.md", first.Successes[0].Output)

	second, err := c.ProcessBatch(context.Background(), inputs("report.docx"), nil)
	require.NoError(t, err)
	assert.Equal(t, "report_2.md", second.Successes[0].Output)
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestProcessBatch_CompletionOrder(t *testing.T) {
	// The first file blocks until the second has been reported.
	reported := make(chan struct{})
	runner := funcRunner(func(ctx context.Context, f types.InputFile) types.Outcome {
		if f.Name == "slow.pdf" {
			<-reported
		}
		return types.Success(f.Name, f.BaseName()+".md")
	})

	var once sync.Once
	c := New(pool.New(2), runner)
	report, err := c.ProcessBatch(context.Background(), inputs("slow.pdf", "fast.pdf"), func(_, _ int, o types.Outcome) {
		if o.Original == "fast.pdf" {
			once.Do(func() { close(reported) })
		}
	})
	require.NoError(t, err)

	require.Len(t, report.Successes, 2)
	assert.Equal(t, "fast.pdf", report.Successes[0].Original)
	assert.Equal(t, "slow.pdf", report.Successes[1].Original)
}

func TestProcessBatch_BatchTimeout(t *testing.T) {
	runner := funcRunner(func(ctx context.Context, f types.InputFile) types.Outcome {
		if f.Name == "hang.pdf" {
			<-ctx.Done()
			return types.Failure(f.Name, convert.Message(ctx.Err()))
		}
		return types.Success(f.Name, f.BaseName()+".md")
	})

	c := New(pool.New(1), runner, WithBatchTimeout(30*time.Millisecond))
	report, err := c.ProcessBatch(context.Background(), inputs("hang.pdf", "queued1.pdf", "queued2.pdf"), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.FailureCount)
	for _, f := range report.Failures {
		assert.Equal(t, "timed out", f.Error, f.Original)
	}
}

func TestProcessBatch_DoesNotMutateInput(t *testing.T) {
	c, _ := setup(t, 2)
	files := inputs("x.txt", "y.txt")
	before := append([]types.InputFile(nil), files...)

	_, err := c.ProcessBatch(context.Background(), files, nil)
	require.NoError(t, err)
	assert.Equal(t, before, files)
}

func TestProcessBatch_FixedClockAndID(t *testing.T) {
	c, _ := setup(t, 1)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	c.now = func() time.Time { return at }
	c.newID = func() string { return "batch-1" }

	report, err := c.ProcessBatch(context.Background(), inputs("a.txt"), nil)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", report.BatchID)
	assert.Equal(t, time.UTC, report.StartedAt.Location())
	assert.True(t, report.StartedAt.Equal(at))
}

// lossyRun runs submitted jobs in order but never reports the job with
// handle drop.
type lossyRun struct {
	ctx  context.Context
	drop pool.Handle
	jobs []pool.Job
}

func (r *lossyRun) Submit(_ string, job pool.Job) (pool.Handle, error) {
	r.jobs = append(r.jobs, job)
	return pool.Handle(len(r.jobs) - 1), nil
}

func (r *lossyRun) AwaitAll() <-chan pool.Completion {
	out := make(chan pool.Completion, len(r.jobs))
	go func() {
		defer close(out)
		for i, job := range r.jobs {
			h := pool.Handle(i)
			if h == r.drop {
				continue
			}
			out <- pool.Completion{Handle: h, Outcome: job(r.ctx)}
		}
	}()
	return out
}

func TestProcessBatch_PoolFault(t *testing.T) {
	runner := funcRunner(func(_ context.Context, f types.InputFile) types.Outcome {
		return types.Success(f.Name, f.BaseName()+".md")
	})
	c := New(pool.New(2), runner)
	c.start = func(ctx context.Context, _ int) batchRun {
		return &lossyRun{ctx: ctx, drop: 1}
	}

	progress := &progressLog{}
	files := inputs("a.pdf", "lost.pdf", "c.pdf")
	report, err := c.ProcessBatch(context.Background(), files, progress.record)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPoolFault)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.SuccessCount)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "lost.pdf", report.Failures[0].Original)
	assert.Contains(t, report.Failures[0].Error, "worker pool fault")

	require.Len(t, progress.calls, 3)
	for i, call := range progress.calls {
		assert.Equal(t, i+1, call[0])
		assert.Equal(t, 3, call[1])
	}
	reachedTotal := 0
	for _, call := range progress.calls {
		if call[0] == 3 {
			reachedTotal++
		}
	}
	assert.Equal(t, 1, reachedTotal)
}
