package generator

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/pagepress/internal/eventstore"
	"git.home.luguber.info/inful/pagepress/internal/logfields"
)

// HistoryFileName is the build history database inside the data directory.
const HistoryFileName = "builds.db"

// historySize bounds the in-memory projection.
const historySize = 50

// BuildEvent is one recorded event of a pass.
type BuildEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// BuildDetail is the summary of one pass together with its events.
type BuildDetail struct {
	eventstore.BuildSummary
	Events []BuildEvent `json:"events"`
}

// history appends build events to the store and keeps the projection current.
// A nil *history records nothing.
type history struct {
	store      eventstore.Store
	projection *eventstore.BuildHistoryProjection
	// skipping collapses consecutive skipped passes into one event.
	skipping bool
}

func openHistory(ctx context.Context, dataDir string) (*history, error) {
	store, err := eventstore.NewSQLiteStore(filepath.Join(dataDir, HistoryFileName))
	if err != nil {
		return nil, err
	}
	return newHistory(ctx, store)
}

func newHistory(ctx context.Context, store eventstore.Store) (*history, error) {
	projection := eventstore.NewBuildHistoryProjection(store, historySize)
	if err := projection.Rebuild(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return &history{store: store, projection: projection}, nil
}

// record appends e. Failures are logged; history never fails a pass.
func (h *history) record(ctx context.Context, e eventstore.Event, err error) {
	if h == nil {
		return
	}
	if err == nil {
		err = h.store.Record(ctx, e)
	}
	if err != nil {
		slog.Warn("Failed to record build event", logfields.Error(err))
		return
	}
	h.projection.Apply(e)
}

func (h *history) started(ctx context.Context, r *BuildReport) {
	if h == nil {
		return
	}
	h.skipping = false
	e, err := eventstore.NewBuildStarted(r.BuildID, r.Scanned, r.Revision)
	h.record(ctx, e, err)
}

func (h *history) skipped(ctx context.Context, r *BuildReport) {
	if h == nil || h.skipping {
		return
	}
	h.skipping = true
	e, err := eventstore.NewBuildSkipped(r.BuildID, r.Scanned, r.LastBuild)
	h.record(ctx, e, err)
}

func (h *history) pageFailed(ctx context.Context, buildID string, issue Issue) {
	if h == nil {
		return
	}
	e, err := eventstore.NewPageFailed(buildID, issue.Path, issue.Stage, issue.Message)
	h.record(ctx, e, err)
}

func (h *history) assetsCopied(ctx context.Context, buildID string, n int) {
	if h == nil {
		return
	}
	e, err := eventstore.NewAssetsCopied(buildID, n)
	h.record(ctx, e, err)
}

func (h *history) completed(ctx context.Context, r *BuildReport) {
	if h == nil {
		return
	}
	e, err := eventstore.NewBuildCompleted(r.BuildID, eventstore.BuildCompleted{
		Outcome:    string(r.Outcome),
		Pages:      r.Pages,
		Rendered:   r.Rendered,
		Failed:     r.Failed,
		Assets:     r.Assets,
		DurationMS: r.Duration().Milliseconds(),
		Error:      r.Error,
	})
	h.record(ctx, e, err)
}

// Builds returns the recorded passes, newest first.
func (h *history) Builds() []eventstore.BuildSummary {
	if h == nil {
		return nil
	}
	return h.projection.GetHistory()
}

// Build returns the pass with the given id. ok is false when the pass is not
// part of the retained history.
func (h *history) Build(ctx context.Context, buildID string) (detail BuildDetail, ok bool, err error) {
	if h == nil {
		return BuildDetail{}, false, nil
	}
	summary, ok := h.projection.GetBuild(buildID)
	if !ok {
		return BuildDetail{}, false, nil
	}
	events, err := h.store.GetByBuildID(ctx, buildID)
	if err != nil {
		return BuildDetail{}, false, err
	}
	detail = BuildDetail{BuildSummary: summary, Events: make([]BuildEvent, 0, len(events))}
	for _, e := range events {
		detail.Events = append(detail.Events, BuildEvent{
			Type:      e.Type(),
			Timestamp: e.Timestamp(),
			Payload:   e.Payload(),
		})
	}
	return detail, true, nil
}

func (h *history) close() error {
	if h == nil {
		return nil
	}
	return h.store.Close()
}
