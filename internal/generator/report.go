package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
)

// ReportSchemaVersion is bumped whenever the JSON layout of BuildReport changes.
const ReportSchemaVersion = 1

// ReportFileName is the name of the persisted report in the data directory.
const ReportFileName = "build-report.json"

// Outcome is the final state of a build pass.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial" // some pages failed
	OutcomeAborted Outcome = "aborted"
	OutcomeSkipped Outcome = "skipped" // nothing changed since the last build
)

// Stage names used in issues, logs and metrics.
const (
	StageScan      = "scan"
	StageCheck     = "check"
	StageParse     = "parse"
	StageConstruct = "construct"
	StageRender    = "render"
	StageWrite     = "write"
	StageAssets    = "assets"
	StageMarker    = "marker"
)

// PageResult describes one written page.
type PageResult struct {
	Source      string `json:"source"`
	Output      string `json:"output"`
	Kind        string `json:"kind"`
	Bytes       int    `json:"bytes"`
	Compressed  bool   `json:"compressed"`
	Fingerprint string `json:"fingerprint"`
}

// Issue is a per-page failure or the error that aborted the pass.
type Issue struct {
	Path     string `json:"path,omitempty"`
	Stage    string `json:"stage"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

// BuildReport captures the result of one Update call.
type BuildReport struct {
	SchemaVersion  int                      `json:"schema_version"`
	BuildID        string                   `json:"build_id"`
	Start          time.Time                `json:"start"`
	End            time.Time                `json:"end"`
	Outcome        Outcome                  `json:"outcome"`
	Revision       string                   `json:"revision,omitempty"`
	LastBuild      time.Time                `json:"last_build"`
	Scanned        int                      `json:"scanned"`
	Pages          int                      `json:"pages"`
	Rendered       int                      `json:"rendered"`
	Failed         int                      `json:"failed"`
	Assets         int                      `json:"assets"`
	Results        []PageResult             `json:"results,omitempty"`
	Issues         []Issue                  `json:"issues,omitempty"`
	Error          string                   `json:"error,omitempty"`
	StageDurations map[string]time.Duration `json:"stage_durations,omitempty"`

	err error
}

func newReport(buildID string, start time.Time) *BuildReport {
	return &BuildReport{
		SchemaVersion:  ReportSchemaVersion,
		BuildID:        buildID,
		Start:          start,
		StageDurations: make(map[string]time.Duration),
	}
}

// Err returns the error that aborted the pass, if any.
func (r *BuildReport) Err() error { return r.err }

// Duration is the wall time of the pass.
func (r *BuildReport) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary returns a human-readable single-line summary.
func (r *BuildReport) Summary() string {
	return fmt.Sprintf("outcome=%s scanned=%d pages=%d rendered=%d failed=%d assets=%d duration=%s",
		r.Outcome, r.Scanned, r.Pages, r.Rendered, r.Failed, r.Assets, r.Duration().Truncate(time.Millisecond))
}

func (r *BuildReport) addIssue(path, stage string, err error) {
	issue := Issue{Path: path, Stage: stage, Message: err.Error()}
	if classified, ok := errors.AsClassified(err); ok {
		issue.Category = string(classified.Category())
		issue.Message = classified.Message()
		if cause := classified.Cause(); cause != nil {
			issue.Message += ": " + cause.Error()
		}
	}
	r.Issues = append(r.Issues, issue)
}

// fail records a failed page.
func (r *BuildReport) fail(path, stage string, err error) {
	r.Failed++
	r.addIssue(path, stage, err)
}

// abort records the error that ended the pass.
func (r *BuildReport) abort(path, stage string, err error) {
	if r.err == nil {
		r.err = err
		r.Error = err.Error()
	}
	if path == "" {
		if classified, ok := errors.AsClassified(err); ok {
			path = classified.Path()
		}
	}
	r.addIssue(path, stage, err)
	r.Outcome = OutcomeAborted
}

// finish sets the end time and derives the outcome.
func (r *BuildReport) finish(end time.Time) {
	r.End = end
	switch {
	case r.Outcome != "":
	case r.Failed > 0:
		r.Outcome = OutcomePartial
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Persist writes the report as JSON into dir, replacing the previous one
// atomically.
func (r *BuildReport) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("ensure report directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	path := filepath.Join(dir, ReportFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}
	return nil
}
