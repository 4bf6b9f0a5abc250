package generator

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pagepress/internal/logfields"
	"git.home.luguber.info/inful/pagepress/internal/metrics"
	"git.home.luguber.info/inful/pagepress/internal/notify"
)

// BuildObserver receives callbacks around stage execution and the end of a
// pass.
type BuildObserver interface {
	OnStageComplete(stage string, d time.Duration, result metrics.ResultLabel)
	OnBuildComplete(ctx context.Context, report *BuildReport)
}

// recorderObserver adapts metrics.Recorder into a BuildObserver.
type recorderObserver struct{ rec metrics.Recorder }

func (r recorderObserver) OnStageComplete(stage string, d time.Duration, result metrics.ResultLabel) {
	r.rec.ObserveStageDuration(stage, d)
	r.rec.IncStageResult(stage, result)
}

func (r recorderObserver) OnBuildComplete(_ context.Context, report *BuildReport) {
	r.rec.ObserveBuildDuration(report.Duration())
	r.rec.IncBuildOutcome(metrics.BuildOutcomeLabel(report.Outcome))
}

// notifyObserver publishes a notification for every pass that was not
// skipped.
type notifyObserver struct{ pub notify.Publisher }

func (notifyObserver) OnStageComplete(string, time.Duration, metrics.ResultLabel) {}

func (n notifyObserver) OnBuildComplete(ctx context.Context, report *BuildReport) {
	if report.Outcome == OutcomeSkipped {
		return
	}
	if err := n.pub.Publish(ctx, Notification(report)); err != nil {
		slog.Warn("Failed to publish build notification",
			logfields.BuildID(report.BuildID),
			logfields.Error(err))
	}
}

// Notification converts a report into the published message.
func Notification(r *BuildReport) notify.BuildNotification {
	n := notify.BuildNotification{
		BuildID:  r.BuildID,
		Outcome:  string(r.Outcome),
		Started:  r.Start,
		Finished: r.End,
		Scanned:  r.Scanned,
		Pages:    r.Pages,
		Rendered: r.Rendered,
		Failed:   r.Failed,
		Assets:   r.Assets,
		Revision: r.Revision,
	}
	for _, issue := range r.Issues {
		if issue.Path != "" {
			n.Failures = append(n.Failures, issue.Path)
		}
	}
	return n
}
