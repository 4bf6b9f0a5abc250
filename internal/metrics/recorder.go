package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultFatal   ResultLabel = "fatal"
)

// BuildOutcomeLabel is the final status of a build pass.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess BuildOutcomeLabel = "success"
	BuildOutcomePartial BuildOutcomeLabel = "partial"
	BuildOutcomeAborted BuildOutcomeLabel = "aborted"
	BuildOutcomeSkipped BuildOutcomeLabel = "skipped"
)

// Recorder defines observability hooks for build and stage metrics. All
// methods must be safe to call on the NoopRecorder so that metrics stay
// optional.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncPageRendered(kind string)
	IncStalenessCheck(stale bool)
	SetTrackedAssets(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)          {}
func (NoopRecorder) IncPageRendered(string)                     {}
func (NoopRecorder) IncStalenessCheck(bool)                     {}
func (NoopRecorder) SetTrackedAssets(int)                       {}
