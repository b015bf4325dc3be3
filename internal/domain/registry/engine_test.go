package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacadmin/internal/docstore"
	"pacadmin/internal/docstore/memory"
	"pacadmin/internal/domain/lock"
)

func doc(id string, data map[string]any) docstore.Document {
	return docstore.Document{ID: id, Data: data}
}

func newTestEngine(store docstore.Store, cfg Config) *Engine {
	locks := lock.NewManager(store, LockName, time.Minute)
	return New(cfg, store, locks, nil, nil)
}

func TestIngestRebuildsDerivedState(t *testing.T) {
	e := newTestEngine(memory.New(), Config{})

	e.Ingest([]docstore.Document{
		doc("A", map[string]any{"pacNo": "P1", "deleteViewId": "DEL-00001", "deletedAtTimestamp": int64(100)}),
		doc("B", map[string]any{"pacNo": "P2", "deleteViewId": "DEL-00001", "deletedAtTimestamp": int64(300)}),
		doc("C", map[string]any{"pacNo": "P3", "deleteViewId": "DEL-00003", "deletedAtTimestamp": int64(200)}),
		doc("D", map[string]any{"pacNo": "P4"}),
	})

	stats := e.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.DuplicateGroups)
	assert.Equal(t, "DEL-00001", stats.LastDeletedID, "record B has the greatest timestamp")
	assert.Equal(t, int64(300), stats.LastDeletedAt)

	dups := e.Duplicates()
	require.Len(t, dups, 1)
	assert.Equal(t, DuplicateGroup{DeleteViewID: "DEL-00001", Count: 2}, dups[0])

	// A second ingest fully replaces the previous state.
	e.Ingest([]docstore.Document{
		doc("C", map[string]any{"pacNo": "P3", "deleteViewId": "DEL-00003"}),
	})
	stats = e.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.DuplicateGroups)
	assert.Empty(t, e.Duplicates())
	assert.Empty(t, e.Queue())
}

func TestIngestToleratesMalformedRecords(t *testing.T) {
	e := newTestEngine(memory.New(), Config{})

	e.Ingest([]docstore.Document{
		doc("A", map[string]any{"deleteViewId": 42, "deletedAtTimestamp": "yesterday"}),
		doc("B", nil),
		doc("C", map[string]any{"pacNo": "P3", "deleteViewId": "DEL-00007"}),
	})

	stats := e.Stats()
	assert.Equal(t, 3, stats.Total, "malformed records still count, field parsing is per-field")
	assert.Equal(t, 0, stats.DuplicateGroups)
}

func TestDuplicatesFirstEncounterOrder(t *testing.T) {
	e := newTestEngine(memory.New(), Config{QuarantineRatio: 0.9})

	e.Ingest([]docstore.Document{
		doc("1", map[string]any{"deleteViewId": "DEL-00005"}),
		doc("2", map[string]any{"deleteViewId": "DEL-00002"}),
		doc("3", map[string]any{"deleteViewId": "DEL-00002"}),
		doc("4", map[string]any{"deleteViewId": "DEL-00005"}),
		doc("5", map[string]any{"deleteViewId": "DEL-00009"}),
		doc("6", map[string]any{"deleteViewId": "DEL-00009"}),
	})

	dups := e.Duplicates()
	require.Len(t, dups, 3)
	assert.Equal(t, "DEL-00005", dups[0].DeleteViewID)
	assert.Equal(t, "DEL-00002", dups[1].DeleteViewID)
	assert.Equal(t, "DEL-00009", dups[2].DeleteViewID)
}

func TestObserverReceivesStats(t *testing.T) {
	store := memory.New()
	locks := lock.NewManager(store, LockName, time.Minute)

	var got []Stats
	e := New(Config{}, store, locks, nil, func(s Stats) { got = append(got, s) })

	e.Ingest([]docstore.Document{
		doc("A", map[string]any{"deleteViewId": "DEL-00001"}),
	})

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Total)
	assert.Equal(t, 100, got[0].Health)
}

func TestStartSubscribesToStore(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, Collection, "A",
		map[string]any{"pacNo": "P1", "deleteViewId": "DEL-00001"}, false))

	e := newTestEngine(store, Config{})
	unsub, err := e.Start(ctx)
	require.NoError(t, err)
	defer unsub()

	assert.Equal(t, 1, e.Stats().Total, "initial snapshot delivered on subscribe")

	require.NoError(t, store.Set(ctx, Collection, "B",
		map[string]any{"pacNo": "P2", "deleteViewId": "DEL-00001"}, false))

	stats := e.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.DuplicateGroups)
}

func TestIntegrityClassification(t *testing.T) {
	e := newTestEngine(memory.New(), Config{})

	e.Ingest([]docstore.Document{
		doc("A", map[string]any{"pacNo": "P1", "deleteViewId": "DEL-123"}),
		doc("B", map[string]any{"pacNo": "P2"}),
		doc("C", map[string]any{"pacNo": "P3", "deleteViewId": "DEL-00007"}),
		doc("D", map[string]any{"pacNo": "P4", "deleteViewId": "DEL-00007"}),
	})

	rep := e.CheckIntegrity()
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 1, rep.MissingID)
	assert.Equal(t, 1, rep.InvalidFormat)
	assert.Equal(t, 1, rep.Duplicates)

	byType := make(map[IssueType]Issue)
	for _, issue := range rep.Issues {
		byType[issue.Type] = issue
	}

	invalid := byType[IssueInvalidFormat]
	assert.Equal(t, "DEL-123", invalid.Value)
	assert.Equal(t, SeverityWarning, invalid.Severity)

	missing := byType[IssueMissingID]
	assert.Equal(t, "B", missing.DocID)
	assert.Equal(t, SeverityCritical, missing.Severity)

	dup := byType[IssueDuplicateID]
	assert.Equal(t, "DEL-00007", dup.Value)
	assert.Equal(t, 2, dup.Count)
	assert.Equal(t, SeverityCritical, dup.Severity)
}

func TestIntegrityEmptySnapshot(t *testing.T) {
	e := newTestEngine(memory.New(), Config{})
	e.Ingest(nil)

	rep := e.CheckIntegrity()
	assert.Zero(t, rep.Total)
	assert.Empty(t, rep.Issues)
}

func TestPlannerKeepsFirstAndQueuesRest(t *testing.T) {
	e := newTestEngine(memory.New(), Config{QuarantineRatio: 0.9})

	e.Ingest([]docstore.Document{
		doc("A", map[string]any{"pacNo": "P1", "deleteViewId": "DEL-00001"}),
		doc("B", map[string]any{"pacNo": "P2", "deleteViewId": "DEL-00001"}),
		doc("C", map[string]any{"pacNo": "P3", "deleteViewId": "DEL-00001"}),
		doc("D", map[string]any{"pacNo": "P4", "deleteViewId": "DEL-00003"}),
	})

	queue := e.Queue()
	require.Len(t, queue, 2, "first record of the group keeps its ID")

	assert.Equal(t, "B", queue[0].DocID)
	assert.Equal(t, "DEL-00004", queue[0].NewID, "seeded past max observed suffix 3")
	assert.Equal(t, "C", queue[1].DocID)
	assert.Equal(t, "DEL-00005", queue[1].NewID)

	// Replaying the identical snapshot reproduces the same proposals.
	e.Ingest([]docstore.Document{
		doc("A", map[string]any{"pacNo": "P1", "deleteViewId": "DEL-00001"}),
		doc("B", map[string]any{"pacNo": "P2", "deleteViewId": "DEL-00001"}),
		doc("C", map[string]any{"pacNo": "P3", "deleteViewId": "DEL-00001"}),
		doc("D", map[string]any{"pacNo": "P4", "deleteViewId": "DEL-00003"}),
	})
	assert.Equal(t, queue, e.Queue())
}
