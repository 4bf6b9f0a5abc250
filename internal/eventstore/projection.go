// Package eventstore records the history of build passes in SQLite and
// projects it into per-build summaries.
package eventstore

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// Summary statuses. Completed builds carry the outcome of their
// BuildCompleted event instead.
const (
	StatusRunning = "running"
	StatusSkipped = "skipped"
)

// FailedPage is one page failure inside a build summary.
type FailedPage struct {
	Path  string `json:"path"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// BuildSummary is a read model summarizing a completed or in-progress build.
type BuildSummary struct {
	BuildID     string        `json:"build_id"`
	Status      string        `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Scanned     int           `json:"scanned"`
	Revision    string        `json:"revision,omitempty"`
	Pages       int           `json:"pages"`
	Rendered    int           `json:"rendered"`
	Assets      int           `json:"assets"`
	Failures    []FailedPage  `json:"failures,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// BuildHistoryProjection maintains an in-memory view of build history,
// reconstructed from events stored in the event store.
type BuildHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	builds  map[string]*BuildSummary // buildID -> summary
	history []*BuildSummary          // ordered by start time, newest first
	maxSize int
}

// NewBuildHistoryProjection creates a new projection backed by the given store.
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		history: make([]*BuildSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builds = make(map[string]*BuildSummary)
	p.history = make([]*BuildSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}

	slices.SortStableFunc(p.history, func(a, b *BuildSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneBuildsLocked()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *BuildHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *BuildHistoryProjection) applyEventLocked(event Event) {
	buildID := event.BuildID()
	if buildID == "" {
		return
	}

	summary, exists := p.builds[buildID]
	if !exists {
		summary = &BuildSummary{
			BuildID:   buildID,
			Status:    StatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.builds[buildID] = summary
	}

	switch event.Type() {
	case TypeBuildStarted:
		var payload BuildStarted
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Scanned = payload.Scanned
			summary.Revision = payload.Revision
		}
		summary.StartedAt = event.Timestamp()

	case TypeBuildSkipped:
		var payload BuildSkipped
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Scanned = payload.Scanned
		}
		p.completeLocked(summary, event.Timestamp(), StatusSkipped)

	case TypePageFailed:
		var payload PageFailed
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Failures = append(summary.Failures, FailedPage{
				Path: payload.Path, Stage: payload.Stage, Error: payload.Error,
			})
		}

	case TypeAssetsCopied:
		var payload AssetsCopied
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Assets = payload.Count
		}

	case TypeBuildCompleted:
		var payload BuildCompleted
		status := ""
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			status = payload.Outcome
			summary.Pages = payload.Pages
			summary.Rendered = payload.Rendered
			summary.Assets = payload.Assets
			summary.Error = payload.Error
		}
		p.completeLocked(summary, event.Timestamp(), status)
	}
}

func (p *BuildHistoryProjection) completeLocked(summary *BuildSummary, at time.Time, status string) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)
	if status != "" {
		summary.Status = status
	}
	p.addToHistoryLocked(summary)
}

// addToHistoryLocked adds a completed build to history if not already present.
func (p *BuildHistoryProjection) addToHistoryLocked(summary *BuildSummary) {
	for _, h := range p.history {
		if h.BuildID == summary.BuildID {
			return
		}
	}

	p.history = append([]*BuildSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneBuildsLocked()
}

// pruneBuildsLocked removes completed builds not present in the bounded history.
// Caller must hold p.mu (write lock).
func (p *BuildHistoryProjection) pruneBuildsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.BuildID] = struct{}{}
	}

	for id, summary := range p.builds {
		if summary.Status == StatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.builds, id)
		}
	}
}

// GetHistory returns the build history, newest first.
func (p *BuildHistoryProjection) GetHistory() []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]BuildSummary, 0, len(p.history))
	for _, h := range p.history {
		result = append(result, copySummary(h))
	}
	return result
}

// GetBuild returns the summary for a specific build.
func (p *BuildHistoryProjection) GetBuild(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.builds[buildID]
	if !exists {
		return BuildSummary{}, false
	}
	return copySummary(summary), true
}

func copySummary(s *BuildSummary) BuildSummary {
	cp := *s
	cp.Failures = slices.Clone(s.Failures)
	return cp
}
