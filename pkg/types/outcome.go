// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// OutcomeStatus tags an Outcome as a success or a failure.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the result of processing one InputFile. Exactly one is
// produced per submitted file. Output is set only on success and Error
// only on failure.
type Outcome struct {
	Status   OutcomeStatus `json:"status" yaml:"status"`
	Original string        `json:"original" yaml:"original"`
	Output   string        `json:"output,omitempty" yaml:"output,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`

	// Duration is the wall time the task ran for. Zero for tasks that
	// never started.
	Duration time.Duration `json:"-" yaml:"-"`
}

// Success builds a succeeded Outcome.
func Success(original, output string) Outcome {
	return Outcome{Status: OutcomeSucceeded, Original: original, Output: output}
}

// Failure builds a failed Outcome.
func Failure(original, message string) Outcome {
	return Outcome{Status: OutcomeFailed, Original: original, Error: message}
}

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSucceeded
}
