// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SuccessEntry is one converted file in a Report.
type SuccessEntry struct {
	Original string `json:"original" yaml:"original"`
	Output   string `json:"output" yaml:"output"`
}

// FailureEntry is one failed file in a Report.
type FailureEntry struct {
	Original string `json:"original" yaml:"original"`
	Error    string `json:"error" yaml:"error"`
}

// Report is the aggregated outcome of one batch. Entries keep the order in
// which tasks completed, not the order files were submitted.
type Report struct {
	BatchID    string    `json:"batch_id" yaml:"batch_id"`
	OutputDir  string    `json:"output_dir" yaml:"output_dir"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Total        int            `json:"total" yaml:"total"`
	SuccessCount int            `json:"success_count" yaml:"success_count"`
	FailureCount int            `json:"failure_count" yaml:"failure_count"`
	Successes    []SuccessEntry `json:"successes" yaml:"successes"`
	Failures     []FailureEntry `json:"failures" yaml:"failures"`
}

// NewReport partitions outcomes by status, preserving their order.
func NewReport(outcomes []Outcome) Report {
	r := Report{
		Total:     len(outcomes),
		Successes: make([]SuccessEntry, 0, len(outcomes)),
		Failures:  []FailureEntry{},
	}
	for _, o := range outcomes {
		if o.Succeeded() {
			r.Successes = append(r.Successes, SuccessEntry{Original: o.Original, Output: o.Output})
			continue
		}
		r.Failures = append(r.Failures, FailureEntry{Original: o.Original, Error: o.Error})
	}
	r.SuccessCount = len(r.Successes)
	r.FailureCount = len(r.Failures)
	return r
}

// HasFailures reports whether any file failed.
func (r Report) HasFailures() bool {
	return r.FailureCount > 0
}

// Elapsed returns the batch wall time.
func (r Report) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
