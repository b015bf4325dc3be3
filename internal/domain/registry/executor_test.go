package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore"
	"pacadmin/internal/docstore/memory"
	"pacadmin/internal/domain/lock"
)

func adminCtx(id string) context.Context {
	return actor.WithActor(context.Background(), &actor.Context{ActorID: id})
}

// flakyStore fails updates for one document to simulate a transient
// collaborator failure mid-batch.
type flakyStore struct {
	docstore.Store
	failDocID string
}

// panickyStore panics on update, simulating a crashing store client.
type panickyStore struct {
	docstore.Store
}

func (s *panickyStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	panic("store client crashed")
}

func (s *flakyStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if id == s.failDocID {
		return errors.New("simulated write failure")
	}
	return s.Store.Update(ctx, collection, id, fields)
}

func seed(t *testing.T, store docstore.Store, docs []docstore.Document) {
	t.Helper()
	for _, d := range docs {
		require.NoError(t, store.Set(context.Background(), Collection, d.ID, d.Data, false))
	}
}

func endToEndDocs() []docstore.Document {
	return []docstore.Document{
		doc("A", map[string]any{"pacNo": "P1", "deleteViewId": "DEL-00001"}),
		doc("B", map[string]any{"pacNo": "P2", "deleteViewId": "DEL-00001"}),
		doc("C", map[string]any{"pacNo": "P3", "deleteViewId": "DEL-00003"}),
		doc("D", map[string]any{"pacNo": "P4"}),
	}
}

func TestGlobalFixEndToEnd(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	e := newTestEngine(store, Config{QuarantineRatio: 0.5})
	ctx := adminCtx("alice")
	unsub, err := e.Start(ctx)
	require.NoError(t, err)
	defer unsub()

	dups := e.Duplicates()
	require.Len(t, dups, 1)
	assert.Equal(t, DuplicateGroup{DeleteViewID: "DEL-00001", Count: 2}, dups[0])

	rep := e.CheckIntegrity()
	assert.Equal(t, 1, rep.MissingID)
	assert.Equal(t, 1, rep.Duplicates)

	queue := e.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, Job{DocID: "B", PacNo: "P2", OldID: "DEL-00001", NewID: "DEL-00004"}, queue[0])

	report, err := e.FixAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fixed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	fixed, err := store.Get(ctx, Collection, "B")
	require.NoError(t, err)
	assert.Equal(t, "DEL-00004", fixed.String("deleteViewId"))
	assert.Equal(t, "DEL-00001", fixed.String("previousDeleteId"))
	assert.Equal(t, "global", fixed.String("fixMode"))
	assert.Equal(t, "alice", fixed.String("fixedBy"))

	compliance := fixed.Map("compliance")
	require.NotNil(t, compliance)
	assert.Equal(t, ComplianceReason, compliance["reason"])
	assert.Equal(t, "alice", compliance["authority"])
	assert.Equal(t, "2025.1", compliance["policyVersion"])
	assert.Equal(t, "IN", compliance["jurisdiction"])

	kept, err := store.Get(ctx, Collection, "A")
	require.NoError(t, err)
	assert.Equal(t, "DEL-00001", kept.String("deleteViewId"), "first record keeps its ID")
}

func TestLockReleasedWhenStorePanics(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	locks := lock.NewManager(store, LockName, time.Minute)
	e := New(Config{QuarantineRatio: 0.5}, &panickyStore{Store: store}, locks, nil, nil)
	ctx := adminCtx("alice")

	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)
	require.NotEmpty(t, e.Queue())

	require.Panics(t, func() {
		_, _ = e.FixAll(ctx, true)
	})

	_, fresh, err := locks.Holder(ctx)
	require.NoError(t, err)
	assert.False(t, fresh, "lock must be released when the batch dies")
}

func TestGlobalFixIdempotent(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	e := newTestEngine(store, Config{QuarantineRatio: 0.5})
	ctx := adminCtx("alice")
	unsub, err := e.Start(ctx)
	require.NoError(t, err)
	defer unsub()

	first, err := e.FixAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Fixed)

	// The fix write pushed a fresh snapshot; the rebuilt queue is empty and
	// the second pass performs zero additional writes.
	second, err := e.FixAll(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, second.Fixed)
	assert.Zero(t, second.Failed)
}

func TestPartialFailureIsolation(t *testing.T) {
	store := memory.New()
	seed(t, store, []docstore.Document{
		doc("A", map[string]any{"pacNo": "P1", "deleteViewId": "DEL-00001"}),
		doc("B", map[string]any{"pacNo": "P2", "deleteViewId": "DEL-00001"}),
		doc("C", map[string]any{"pacNo": "P3", "deleteViewId": "DEL-00001"}),
		doc("D", map[string]any{"pacNo": "P4", "deleteViewId": "DEL-00001"}),
	})

	flaky := &flakyStore{Store: store, failDocID: "C"}
	locks := lock.NewManager(store, LockName, time.Minute)
	e := New(Config{QuarantineRatio: 0.9}, flaky, locks, nil, nil)
	ctx := adminCtx("alice")

	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)
	require.Len(t, e.Queue(), 3)

	report, err := e.FixGroup(ctx, "DEL-00001", true)
	require.NoError(t, err, "one failed write must not abort the batch")
	assert.Equal(t, 2, report.Fixed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Skipped)

	// The failed record still carries its duplicate ID.
	unfixed, err := store.Get(ctx, Collection, "C")
	require.NoError(t, err)
	assert.Equal(t, "DEL-00001", unfixed.String("deleteViewId"))

	// The lock was released despite the mid-batch failure.
	_, fresh, err := locks.Holder(ctx)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestFixSingleRecord(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	e := newTestEngine(store, Config{QuarantineRatio: 0.5})
	ctx := adminCtx("alice")

	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)

	report, err := e.FixRecord(ctx, "B", true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fixed)
	assert.Equal(t, FixModeSingle, report.Mode)

	fixed, err := store.Get(ctx, Collection, "B")
	require.NoError(t, err)
	assert.Equal(t, "single", fixed.String("fixMode"))

	_, err = e.FixRecord(ctx, "unknown", true)
	assert.True(t, apperror.IsNotFound(err))
}

func TestFixGroupWithoutJobs(t *testing.T) {
	e := newTestEngine(memory.New(), Config{QuarantineRatio: 0.5})
	e.Ingest(nil)

	_, err := e.FixGroup(adminCtx("alice"), "DEL-00042", true)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeNoJobs))
}

func TestDryRunPreviewsWithoutWrites(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	cfg := Config{QuarantineRatio: 0.5, DryRun: true}
	e := newTestEngine(store, cfg)
	ctx := adminCtx("alice")

	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)

	report, err := e.FixAll(ctx, false)
	require.NoError(t, err, "dry run needs no confirmation")
	assert.True(t, report.DryRun)
	require.Len(t, report.Jobs, 1)
	assert.Equal(t, "DEL-00004", report.Jobs[0].NewID)

	untouched, err := store.Get(ctx, Collection, "B")
	require.NoError(t, err)
	assert.Equal(t, "DEL-00001", untouched.String("deleteViewId"))
}

func TestConfirmationRequired(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	e := newTestEngine(store, Config{QuarantineRatio: 0.5})
	ctx := adminCtx("alice")

	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)

	_, err = e.FixAll(ctx, false)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConfirmation))
}

func TestQuarantineRefusesRemediation(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	// Default threshold 0.15; one duplicate group in four records is 0.25.
	e := newTestEngine(store, Config{})
	ctx := adminCtx("alice")

	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)
	require.True(t, e.Quarantined())

	_, err = e.FixAll(ctx, true)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeQuarantined))

	_, err = e.FixRecord(ctx, "B", true)
	assert.True(t, apperror.IsCode(err, apperror.CodeQuarantined))
}

func TestFixInProgressFailsFast(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	e := newTestEngine(store, Config{QuarantineRatio: 0.5})
	ctx := adminCtx("alice")

	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)

	e.mu.Lock()
	e.fixInProgress = true
	e.mu.Unlock()

	_, err = e.FixAll(ctx, true)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeFixInProgress))
}

func TestLockContentionSurfacesHolder(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	locks := lock.NewManager(store, LockName, time.Minute)
	_, err := locks.Acquire(adminCtx("bob"))
	require.NoError(t, err)

	e := newTestEngine(store, Config{QuarantineRatio: 0.5})
	ctx := adminCtx("alice")

	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)

	_, err = e.FixAll(ctx, true)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeLockHeld, appErr.Code)
	assert.Equal(t, "bob", appErr.Details["held_by"])
}

func TestRollbackRestoresSnapshotValue(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	e := newTestEngine(store, Config{QuarantineRatio: 0.5})
	ctx := adminCtx("alice")

	// No live subscription: the cache stays on the pre-fix generation.
	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)

	_, err = e.FixRecord(ctx, "B", true)
	require.NoError(t, err)

	require.NoError(t, e.Rollback(ctx, "B"))

	restored, err := store.Get(ctx, Collection, "B")
	require.NoError(t, err)
	assert.Equal(t, "DEL-00001", restored.String("deleteViewId"))
	assert.Empty(t, restored.String("fixMode"), "provenance cleared")
	assert.Empty(t, restored.String("previousDeleteId"))
	assert.Nil(t, restored.Map("compliance"))
	assert.Equal(t, "alice", restored.String("rollbackBy"))
	assert.Equal(t, RollbackSource, restored.String("rollbackSource"))
}

func TestRollbackByBusinessKey(t *testing.T) {
	store := memory.New()
	seed(t, store, endToEndDocs())

	e := newTestEngine(store, Config{QuarantineRatio: 0.5})
	ctx := adminCtx("alice")

	docs, err := store.List(ctx, Collection)
	require.NoError(t, err)
	e.Ingest(docs)

	_, err = e.FixRecord(ctx, "B", true)
	require.NoError(t, err)

	require.NoError(t, e.Rollback(ctx, "P2"))

	restored, err := store.Get(ctx, Collection, "B")
	require.NoError(t, err)
	assert.Equal(t, "DEL-00001", restored.String("deleteViewId"))
}

func TestRollbackWithoutSnapshot(t *testing.T) {
	e := newTestEngine(memory.New(), Config{})
	e.Ingest(nil)

	err := e.Rollback(adminCtx("alice"), "missing")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeRollbackMissing))
}
