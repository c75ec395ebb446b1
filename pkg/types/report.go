// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourceStatus is the outcome of processing one source during a build.
type SourceStatus string

const (
	StatusIndexed SourceStatus = "indexed"
	StatusSkipped SourceStatus = "skipped"
	StatusFailed  SourceStatus = "failed"
)

// SourceResult records what happened to a single source.
type SourceResult struct {
	Source Source       `json:"source" yaml:"source"`
	Status SourceStatus `json:"status" yaml:"status"`

	// Reason explains a skip or failure. Empty for indexed sources.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// BuildReport holds the outcome of one index build.
type BuildReport struct {
	IndexPath  string    `json:"index_path" yaml:"index_path"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	// RootMissing is set when the source root did not exist; nothing was written.
	RootMissing bool `json:"root_missing,omitempty" yaml:"root_missing,omitempty"`

	Indexed int `json:"indexed" yaml:"indexed"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Failed  int `json:"failed" yaml:"failed"`

	Results []SourceResult `json:"results" yaml:"results"`
}

// Record appends a result and bumps the matching counter.
func (r *BuildReport) Record(src Source, status SourceStatus, reason string) {
	r.Results = append(r.Results, SourceResult{Source: src, Status: status, Reason: reason})
	switch status {
	case StatusIndexed:
		r.Indexed++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// Total returns the number of sources processed.
func (r BuildReport) Total() int {
	return r.Indexed + r.Skipped + r.Failed
}

// HasFailures reports whether any source failed.
func (r BuildReport) HasFailures() bool {
	return r.Failed > 0
}

// Duration returns how long the build took.
func (r BuildReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
