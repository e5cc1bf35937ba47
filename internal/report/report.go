// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a batch Report for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docbatch/pkg/types"
)

// Format selects a rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatYAML}

// FormatNames returns the supported formats as a comma-separated list.
func FormatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// ParseFormat validates s. An empty string selects text.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown report format %q (want one of: %s)", s, FormatNames())
}

// Write renders r to w.
func Write(w io.Writer, r types.Report, format Format) error {
	switch format {
	case FormatText, "":
		return writeText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding report as JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding report as YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding report as YAML: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, r types.Report) error {
	var b strings.Builder

	b.WriteString("Processing report\n")
	if r.BatchID != "" {
		fmt.Fprintf(&b, "  Batch:      %s\n", r.BatchID)
	}
	if r.OutputDir != "" {
		fmt.Fprintf(&b, "  Output dir: %s\n", r.OutputDir)
	}
	fmt.Fprintf(&b, "  Total:      %d\n", r.Total)
	fmt.Fprintf(&b, "  Succeeded:  %d\n", r.SuccessCount)
	fmt.Fprintf(&b, "  Failed:     %d\n", r.FailureCount)
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "  Elapsed:    %s\n", r.Elapsed().Round(time.Millisecond))
	}

	if len(r.Successes) > 0 {
		b.WriteString("\nConverted files:\n")
		for _, s := range r.Successes {
			fmt.Fprintf(&b, "  - %s → %s\n", s.Original, s.Output)
		}
	}
	if len(r.Failures) > 0 {
		b.WriteString("\nFailed files:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  - %s: %s\n", f.Original, f.Error)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
