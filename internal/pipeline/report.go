// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// StageResult is the outcome of one stage of one run.
type StageResult struct {
	Stage   types.Stage   `json:"stage" yaml:"stage"`
	Err     error         `json:"-" yaml:"-"`
	Fatal   bool          `json:"fatal" yaml:"fatal"`
	Skipped bool          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// OK reports whether the stage ran without error.
func (s StageResult) OK() bool {
	return s.Err == nil
}

// RunReport describes one document run from input to persistence.
type RunReport struct {
	RunID      string
	Input      string
	Descriptor types.SourceDescriptor
	Record     *types.PaperRecord
	Digest     types.DigestDocument
	Blocks     []types.Block
	Truncated  bool
	Persisted  types.Persisted
	Stages     []StageResult
	Elapsed    time.Duration
}

// Err returns the error of the fatal stage that ended the run, or nil.
func (r *RunReport) Err() error {
	for _, s := range r.Stages {
		if s.Fatal && s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Failed reports whether a fatal stage ended the run.
func (r *RunReport) Failed() bool {
	return r.Err() != nil
}

// Stage returns the result recorded for stage, if any.
func (r *RunReport) Stage(stage types.Stage) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageResult{}, false
}

// Warnings returns the non-fatal stage errors.
func (r *RunReport) Warnings() []error {
	var errs []error
	for _, s := range r.Stages {
		if !s.Fatal && s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errs
}

func (r *RunReport) record(stage types.Stage, start time.Time, err error, fatal bool) {
	r.Stages = append(r.Stages, StageResult{
		Stage:   stage,
		Err:     err,
		Fatal:   fatal && err != nil,
		Elapsed: time.Since(start),
	})
}

func (r *RunReport) skip(stage types.Stage) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Skipped: true})
}

// title returns the record title, or the input when no record exists yet.
func (r *RunReport) title() string {
	if r.Record != nil {
		return r.Record.Title
	}
	return r.Input
}

// BatchSummary holds counts from a batch of runs.
type BatchSummary struct {
	Succeeded int
	Degraded  int
	Failed    int
}

// Total returns the number of runs.
func (s BatchSummary) Total() int {
	return s.Succeeded + s.Degraded + s.Failed
}

// HasFailures reports whether any run failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// Summarize counts reports and writes one status line per run to w.
func Summarize(reports []*RunReport, w io.Writer) BatchSummary {
	var summary BatchSummary
	for _, r := range reports {
		switch {
		case r.Failed():
			summary.Failed++
			fmt.Fprintf(w, "failed    %s: %v\n", r.Input, r.Err())
		case len(r.Warnings()) > 0:
			summary.Degraded++
			fmt.Fprintf(w, "degraded  %s -> %s (%s)\n", r.Input, r.title(), joinErrors(r.Warnings()))
		default:
			summary.Succeeded++
			fmt.Fprintf(w, "done      %s -> %s\n", r.Input, r.title())
		}
		if r.Persisted.RecordURL != "" {
			fmt.Fprintf(w, "          %s\n", r.Persisted.RecordURL)
		}
	}
	fmt.Fprintf(w, "\nsucceeded: %d, degraded: %d, failed: %d\n",
		summary.Succeeded, summary.Degraded, summary.Failed)
	return summary
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
