// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docbatch/internal/batch"
	"github.com/pdiddy/docbatch/internal/config"
	"github.com/pdiddy/docbatch/internal/container"
	"github.com/pdiddy/docbatch/internal/convert"
	"github.com/pdiddy/docbatch/internal/history"
	"github.com/pdiddy/docbatch/internal/naming"
	"github.com/pdiddy/docbatch/internal/pool"
	"github.com/pdiddy/docbatch/internal/report"
	"github.com/pdiddy/docbatch/internal/secrets"
	"github.com/pdiddy/docbatch/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files or directories...]",
	Short: "Convert a batch of documents to Markdown",
	Long: `Convert processes every named file concurrently and writes one output
file per input into the output directory. Directories are expanded to the
regular files they contain (not recursively). Output names never overwrite
existing files: a clash with report.md yields report_1.md, report_2.md and
so on.

Progress is printed to stderr as each file finishes and the report is
printed to stdout. The command exits non-zero when any file failed.`,
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringP("output-dir", "o", "", "output directory (default documents)")
	f.String("output-ext", "", "extension of produced files (default md)")
	f.IntP("workers", "w", 0, "number of concurrent conversions (0 = CPU count)")
	f.Bool("accelerated", false, "cap the derived worker count for accelerator-bound backends")
	f.StringP("backend", "b", "", "backend for non-native formats: native, markitdown or docling")
	f.Bool("frontmatter", false, "prepend a YAML header with the source name and conversion time")
	f.Duration("task-timeout", 0, "time limit for a single file")
	f.Duration("batch-timeout", 0, "time limit for the whole batch")
	f.String("docling-url", "", "docling-serve base URL")
	f.StringP("format", "f", "text", "report format: "+report.FormatNames())
	f.String("report-file", "", "also write the report to this file")
	f.Bool("no-history", false, "do not record this batch in the history database")

	bind := map[string]string{
		"output_dir":    "output-dir",
		"output_ext":    "output-ext",
		"workers":       "workers",
		"accelerated":   "accelerated",
		"backend":       "backend",
		"frontmatter":   "frontmatter",
		"task_timeout":  "task-timeout",
		"batch_timeout": "batch-timeout",
		"docling.url":   "docling-url",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	files, err := expandInputs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no files to process")
		return batch.ErrEmptyBatch
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	converter, err := buildConverter(ctx, cfg)
	if err != nil {
		return err
	}

	names, err := naming.New(cfg.OutputDir)
	if err != nil {
		return err
	}

	task := convert.NewTask(converter, names, cfg.OutputExt,
		convert.WithFrontmatter(cfg.Frontmatter),
		convert.WithTimeout(cfg.TaskTimeout),
		convert.WithTaskLogger(logger),
	)
	workers := config.ResolveWorkers(cfg, goruntime.NumCPU())
	coord := batch.New(pool.New(workers, pool.WithLogger(logger)), task,
		batch.WithLogger(logger),
		batch.WithOutputDir(cfg.OutputDir),
		batch.WithBatchTimeout(cfg.BatchTimeout),
	)

	rep, err := coord.ProcessBatch(ctx, files, progressPrinter(cmd.ErrOrStderr()))
	if errors.Is(err, batch.ErrEmptyBatch) {
		fmt.Fprintln(cmd.ErrOrStderr(), "no files to process")
		return err
	}
	faultErr := err

	if err := emitReport(cmd.OutOrStdout(), rep, format); err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("report-file"); path != "" {
		if err := writeReportFile(path, rep, format); err != nil {
			return err
		}
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		recordHistory(context.WithoutCancel(ctx), cfg.History.Path, rep)
	}

	if faultErr != nil {
		return faultErr
	}
	if rep.HasFailures() {
		return fmt.Errorf("%d of %d files failed", rep.FailureCount, rep.Total)
	}
	return nil
}

// expandInputs turns arguments into input files. Directories contribute
// their top-level regular files, sorted by name, skipping hidden files.
func expandInputs(args []string) ([]types.InputFile, error) {
	var files []types.InputFile
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading input %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, types.NewInputFile(arg))
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("reading input directory %s: %w", arg, err)
		}
		var paths []string
		for _, e := range entries {
			if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			paths = append(paths, filepath.Join(arg, e.Name()))
		}
		sort.Strings(paths)
		for _, p := range paths {
			files = append(files, types.NewInputFile(p))
		}
	}
	return files, nil
}

// buildConverter wires the native converter in front of the configured
// backend.
func buildConverter(ctx context.Context, cfg types.Config) (convert.Converter, error) {
	native := convert.NewNativeConverter()

	switch cfg.Backend {
	case types.BackendNative, "":
		return convert.NewRouter(native, nil), nil

	case types.BackendMarkitdown:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		m, err := convert.NewMarkitdownConverter(ctx, rt)
		if err != nil {
			return nil, err
		}
		logger.Debug("using markitdown backend", slog.String("runtime", rt.Name()))
		return convert.NewRouter(native, m), nil

	case types.BackendDocling:
		key := secretDefault(secrets.DoclingAPIKey, cfg.Docling.APIKey)
		d, err := convert.NewDoclingConverter(cfg.Docling, key)
		if err != nil {
			return nil, err
		}
		logger.Debug("using docling backend", slog.String("url", cfg.Docling.URL))
		return convert.NewRouter(native, d), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// progressPrinter reports each completion on its own line.
func progressPrinter(w io.Writer) batch.ProgressFunc {
	return func(completed, total int, latest types.Outcome) {
		if latest.Succeeded() {
			fmt.Fprintf(w, "[%d/%d] ok    %s → %s\n", completed, total, latest.Original, latest.Output)
			return
		}
		fmt.Fprintf(w, "[%d/%d] fail  %s: %s\n", completed, total, latest.Original, latest.Error)
	}
}

func emitReport(w io.Writer, rep types.Report, format report.Format) error {
	if err := report.Write(w, rep, format); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func writeReportFile(path string, rep types.Report, format report.Format) error {
	var buf bytes.Buffer
	if err := report.Write(&buf, rep, format); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing report file %s: %w", path, err)
	}
	return nil
}

// recordHistory saves rep. A history failure is logged, not returned: the
// conversions themselves have already happened.
func recordHistory(ctx context.Context, path string, rep types.Report) {
	store, err := history.Open(path)
	if err != nil {
		logger.Warn("opening history", slog.String("error", err.Error()))
		return
	}
	defer store.Close()

	if err := store.Save(ctx, rep); err != nil {
		logger.Warn("recording batch in history", slog.String("batch_id", rep.BatchID), slog.String("error", err.Error()))
	}
}
