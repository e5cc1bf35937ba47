// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewReport(t *testing.T) {
	outcomes := []Outcome{
		Success("b.pdf", "b.md"),
		Failure("x.pdf", "timed out"),
		Success("a.pdf", "a.md"),
		Failure("y.pdf", "unsupported"),
	}

	r := NewReport(outcomes)
	assert.Equal(t, 4, r.Total)
	assert.Equal(t, 2, r.SuccessCount)
	assert.Equal(t, 2, r.FailureCount)
	assert.Equal(t, []SuccessEntry{{"b.pdf", "b.md"}, {"a.pdf", "a.md"}}, r.Successes)
	assert.Equal(t, []FailureEntry{{"x.pdf", "timed out"}, {"y.pdf", "unsupported"}}, r.Failures)
	assert.True(t, r.HasFailures())
}

func TestNewReport_Empty(t *testing.T) {
	r := NewReport(nil)
	assert.Zero(t, r.Total)
	assert.NotNil(t, r.Successes)
	assert.NotNil(t, r.Failures)
	assert.False(t, r.HasFailures())
}

func TestReport_Elapsed(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := Report{StartedAt: start, FinishedAt: start.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, r.Elapsed())
}
