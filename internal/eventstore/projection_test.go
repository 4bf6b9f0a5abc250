package eventstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func record(t *testing.T, store Store, e Event) {
	t.Helper()
	require.NoError(t, store.Record(t.Context(), e))
}

func TestEventPayloadsExcludeBaseFields(t *testing.T) {
	e, err := NewPageFailed(testBuildID, "blog/a.md", "parse", "boom")
	require.NoError(t, err)
	require.Equal(t, TypePageFailed, e.Type())
	require.False(t, e.Timestamp().IsZero())

	var data map[string]any
	require.NoError(t, json.Unmarshal(e.Payload(), &data))
	require.Equal(t, map[string]any{"path": "blog/a.md", "stage": "parse", "error": "boom"}, data)
}

func TestProjection_RebuildFromStore(t *testing.T) {
	store, err := NewSQLiteStore(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	start := time.Now().Add(-time.Minute).Truncate(time.Millisecond)

	started, err := NewBuildStarted("b1", 10, "abc123")
	require.NoError(t, err)
	started.EventTimestamp = start
	record(t, store, started)

	failed, err := NewPageFailed("b1", "bad.md", "parse", "no title")
	require.NoError(t, err)
	record(t, store, failed)

	copied, err := NewAssetsCopied("b1", 2)
	require.NoError(t, err)
	record(t, store, copied)

	done, err := NewBuildCompleted("b1", BuildCompleted{Outcome: "partial", Pages: 9, Rendered: 8, Failed: 1, Assets: 2})
	require.NoError(t, err)
	done.EventTimestamp = start.Add(2 * time.Second)
	record(t, store, done)

	skipped, err := NewBuildSkipped("b2", 10, start)
	require.NoError(t, err)
	skipped.EventTimestamp = start.Add(10 * time.Second)
	record(t, store, skipped)

	proj := NewBuildHistoryProjection(store, 10)
	require.NoError(t, proj.Rebuild(t.Context()))

	history := proj.GetHistory()
	require.Len(t, history, 2)
	require.Equal(t, "b2", history[0].BuildID)
	require.Equal(t, StatusSkipped, history[0].Status)

	b1 := history[1]
	require.Equal(t, "partial", b1.Status)
	require.Equal(t, 10, b1.Scanned)
	require.Equal(t, "abc123", b1.Revision)
	require.Equal(t, 8, b1.Rendered)
	require.Equal(t, 2, b1.Assets)
	require.Equal(t, 2*time.Second, b1.Duration)
	require.Equal(t, []FailedPage{{Path: "bad.md", Stage: "parse", Error: "no title"}}, b1.Failures)

	got, ok := proj.GetBuild("b1")
	require.True(t, ok)
	require.Equal(t, b1, got)
}

func TestProjection_ApplyAndBound(t *testing.T) {
	proj := NewBuildHistoryProjection(nil, 2)

	for _, id := range []string{"a", "b", "c"} {
		e, err := NewBuildCompleted(id, BuildCompleted{Outcome: "success"})
		require.NoError(t, err)
		proj.Apply(e)
	}

	history := proj.GetHistory()
	require.Len(t, history, 2)
	require.Equal(t, "c", history[0].BuildID)
	require.Equal(t, "b", history[1].BuildID)

	_, ok := proj.GetBuild("a")
	require.False(t, ok, "builds beyond the bound are pruned")

	running, err := NewBuildStarted("d", 1, "")
	require.NoError(t, err)
	proj.Apply(running)
	got, ok := proj.GetBuild("d")
	require.True(t, ok)
	require.Equal(t, StatusRunning, got.Status)
}
