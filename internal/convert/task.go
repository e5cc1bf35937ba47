// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docbatch/pkg/types"
)

// Namespace is the shared output directory as seen by a Task. Every write
// goes through a name obtained from Allocate.
type Namespace interface {
	Allocate(base, ext string) (string, error)
	Write(name string, data []byte) error
	Release(name string) error
}

// Task converts one input file and stores the result under a freshly
// allocated name. A Task holds no per-file state and may run many files
// concurrently.
type Task struct {
	converter   Converter
	names       Namespace
	ext         string
	frontmatter bool
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithFrontmatter prepends a YAML header to every output.
func WithFrontmatter(on bool) TaskOption {
	return func(t *Task) { t.frontmatter = on }
}

// WithTimeout bounds each conversion call. Zero disables the bound.
func WithTimeout(d time.Duration) TaskOption {
	return func(t *Task) {
		if d >= 0 {
			t.timeout = d
		}
	}
}

// WithTaskLogger sets the logger.
func WithTaskLogger(l *slog.Logger) TaskOption {
	return func(t *Task) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTask returns a Task writing outputs with extension ext (no dot).
func NewTask(c Converter, names Namespace, ext string, opts ...TaskOption) *Task {
	t := &Task{
		converter: c,
		names:     names,
		ext:       strings.TrimPrefix(ext, "."),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run processes file and always returns an Outcome. Errors from the
// converter, name allocation or the write become a Failure; so does a
// panic inside the converter. Cancellation is checked between steps;
// once a name is claimed the write runs to completion.
func (t *Task) Run(ctx context.Context, file types.InputFile) (out types.Outcome) {
	started := t.now()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("conversion panicked", slog.String("file", file.Name), slog.Any("panic", r))
			out = types.Failure(file.Name, fmt.Sprintf("internal fault: %v", r))
		}
		out.Duration = t.now().Sub(started)
	}()

	if err := ctx.Err(); err != nil {
		return types.Failure(file.Name, Message(err))
	}

	text, err := t.convert(ctx, file)
	if err != nil {
		t.logger.Debug("conversion failed", slog.String("file", file.Name), slog.String("error", err.Error()))
		return types.Failure(file.Name, Message(err))
	}

	if err := ctx.Err(); err != nil {
		return types.Failure(file.Name, Message(err))
	}

	content, err := t.render(file, text)
	if err != nil {
		return types.Failure(file.Name, Message(err))
	}

	name, err := t.names.Allocate(file.BaseName(), t.ext)
	if err != nil {
		return types.Failure(file.Name, Message(err))
	}

	if err := t.names.Write(name, content); err != nil {
		if relErr := t.names.Release(name); relErr != nil {
			t.logger.Warn("releasing output name", slog.String("name", name), slog.String("error", relErr.Error()))
		}
		return types.Failure(file.Name, Message(err))
	}

	t.logger.Debug("converted", slog.String("file", file.Name), slog.String("output", name))
	return types.Success(file.Name, name)
}

func (t *Task) convert(ctx context.Context, file types.InputFile) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.converter.Convert(ctx, file)
}

// frontmatter is the YAML header written ahead of converted text.
type frontmatter struct {
	Source      string `yaml:"source"`
	ConvertedAt string `yaml:"converted_at"`
}

func (t *Task) render(file types.InputFile, text string) ([]byte, error) {
	if !t.frontmatter {
		return []byte(text), nil
	}

	header, err := yaml.Marshal(frontmatter{
		Source:      file.Name,
		ConvertedAt: t.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(text)
	return []byte(b.String()), nil
}

// Message turns an error into the text recorded in a Failure.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return err.Error()
	}
}
