package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
)

// Event type names.
const (
	TypeBuildStarted   = "BuildStarted"
	TypeBuildSkipped   = "BuildSkipped"
	TypePageFailed     = "PageFailed"
	TypeAssetsCopied   = "AssetsCopied"
	TypeBuildCompleted = "BuildCompleted"
)

// BuildStarted is emitted when the staleness gate decides to rebuild.
type BuildStarted struct {
	BaseEvent
	Scanned  int    `json:"scanned"`
	Revision string `json:"revision,omitempty"`
}

// NewBuildStarted creates a BuildStarted event.
func NewBuildStarted(buildID string, scanned int, revision string) (*BuildStarted, error) {
	e := &BuildStarted{Scanned: scanned, Revision: revision}
	base, err := newBase(buildID, TypeBuildStarted, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// BuildSkipped is emitted when no source file changed since the last build.
type BuildSkipped struct {
	BaseEvent
	Scanned   int       `json:"scanned"`
	LastBuild time.Time `json:"last_build"`
}

// NewBuildSkipped creates a BuildSkipped event.
func NewBuildSkipped(buildID string, scanned int, lastBuild time.Time) (*BuildSkipped, error) {
	e := &BuildSkipped{Scanned: scanned, LastBuild: lastBuild}
	base, err := newBase(buildID, TypeBuildSkipped, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// PageFailed is emitted for every page that could not be built.
type PageFailed struct {
	BaseEvent
	Path  string `json:"path"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// NewPageFailed creates a PageFailed event.
func NewPageFailed(buildID, path, stage, message string) (*PageFailed, error) {
	e := &PageFailed{Path: path, Stage: stage, Error: message}
	base, err := newBase(buildID, TypePageFailed, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// AssetsCopied is emitted after the tracked assets were copied.
type AssetsCopied struct {
	BaseEvent
	Count int `json:"count"`
}

// NewAssetsCopied creates an AssetsCopied event.
func NewAssetsCopied(buildID string, count int) (*AssetsCopied, error) {
	e := &AssetsCopied{Count: count}
	base, err := newBase(buildID, TypeAssetsCopied, e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return e, nil
}

// BuildCompleted closes every build that was started, whatever its outcome.
type BuildCompleted struct {
	BaseEvent
	Outcome    string `json:"outcome"`
	Pages      int    `json:"pages"`
	Rendered   int    `json:"rendered"`
	Failed     int    `json:"failed"`
	Assets     int    `json:"assets"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewBuildCompleted creates a BuildCompleted event.
func NewBuildCompleted(buildID string, c BuildCompleted) (*BuildCompleted, error) {
	e := c
	base, err := newBase(buildID, TypeBuildCompleted, &e)
	if err != nil {
		return nil, err
	}
	e.BaseEvent = base
	return &e, nil
}

// newBase marshals the typed fields of v as the payload. BaseEvent is
// excluded from JSON by its field tags.
func newBase(buildID, eventType string, v any) (BaseEvent, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return BaseEvent{}, errors.StoreError("failed to marshal event payload").
			WithCause(err).
			WithContext("build_id", buildID).
			WithContext("event_type", eventType).
			Build()
	}
	return BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}, nil
}
