package pac

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/internal/core/deleteid"
	"pacadmin/internal/docstore/memory"
)

func newTestService(store *memory.Store) *Service {
	s := NewService(store, nil, nil, deleteid.DefaultFormat())
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func adminCtx() context.Context {
	return actor.WithActor(context.Background(), &actor.Context{ActorID: "alice", IP: "10.0.0.9"})
}

func seedEntry(t *testing.T, store *memory.Store, docID string, data map[string]any) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), Collection, docID, data, false))
}

func TestEditAmount(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := adminCtx()

	seedEntry(t, store, "p1", map[string]any{"pacNo": "PAC-77", "amount": float64(100)})

	err := s.EditAmount(ctx, "p1", decimal.NewFromInt(150), "mismatch correction")
	require.NoError(t, err)

	d, err := store.Get(ctx, Collection, "p1")
	require.NoError(t, err)

	amount, _ := d.Float("amount")
	prev, _ := d.Float("previousAmount")
	assert.Equal(t, float64(150), amount)
	assert.Equal(t, float64(100), prev)

	editCount, _ := d.Int64("editCount")
	assert.Equal(t, int64(1), editCount)
	assert.Equal(t, "alice", d.String("correctedBy"))
	assert.Equal(t, "10.0.0.9", d.String("correctedFromIp"))
	assert.Equal(t, "mismatch correction", d.String("correctionReason"))

	// A second edit bumps the count again.
	require.NoError(t, s.EditAmount(ctx, "p1", decimal.NewFromInt(175), "second pass"))
	d, err = store.Get(ctx, Collection, "p1")
	require.NoError(t, err)
	editCount, _ = d.Int64("editCount")
	assert.Equal(t, int64(2), editCount)
}

func TestEditAmountValidation(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := adminCtx()

	seedEntry(t, store, "p1", map[string]any{"pacNo": "PAC-77", "amount": float64(100)})

	err := s.EditAmount(ctx, "p1", decimal.Zero, "reason")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	err = s.EditAmount(ctx, "p1", decimal.NewFromInt(-5), "reason")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	err = s.EditAmount(ctx, "p1", decimal.NewFromInt(150), "")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	err = s.EditAmount(ctx, "p1", decimal.NewFromInt(100), "same amount")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	err = s.EditAmount(ctx, "missing", decimal.NewFromInt(10), "reason")
	assert.True(t, apperror.IsNotFound(err))
}

func TestArchiveMovesEntryAndAllocatesID(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := adminCtx()

	seedEntry(t, store, "p1", map[string]any{"pacNo": "PAC-77", "amount": float64(100)})

	deleteViewID, err := s.Archive(ctx, "p1", "wrong student")
	require.NoError(t, err)
	assert.Equal(t, "DEL-00001", deleteViewID)

	// Live entry removed, archive entry carries provenance.
	_, err = store.Get(ctx, Collection, "p1")
	assert.Error(t, err)

	archived, err := store.Get(ctx, ArchiveCollection, "p1")
	require.NoError(t, err)
	assert.Equal(t, "DEL-00001", archived.String("deleteViewId"))
	assert.Equal(t, "PAC-77", archived.String("pacNo"))
	assert.Equal(t, "alice", archived.String("deletedBy"))
	assert.Equal(t, "wrong student", archived.String("deleteReason"))
	assert.Equal(t, "single", archived.String("deleteType"))
	assert.Equal(t, "p1", archived.String("originalDocId"))
	ts, ok := archived.Int64("deletedAtTimestamp")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), ts)

	// A second archive continues the counter sequence.
	seedEntry(t, store, "p2", map[string]any{"pacNo": "PAC-78"})
	second, err := s.Archive(ctx, "p2", "duplicate entry")
	require.NoError(t, err)
	assert.Equal(t, "DEL-00002", second)
}

func TestArchiveValidation(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := adminCtx()

	_, err := s.Archive(ctx, "p1", "")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = s.Archive(ctx, "missing", "reason")
	assert.True(t, apperror.IsNotFound(err))
}

func TestAllocateDeleteViewIDResumesCounter(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := adminCtx()

	require.NoError(t, store.Set(ctx, CounterCollection, CounterDocID, map[string]any{"count": int64(41)}, false))

	id, err := s.AllocateDeleteViewID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DEL-00042", id)

	counter, err := store.Get(ctx, CounterCollection, CounterDocID)
	require.NoError(t, err)
	count, _ := counter.Int64("count")
	assert.Equal(t, int64(42), count)
}

func TestAllocateDeleteViewIDOverflow(t *testing.T) {
	store := memory.New()
	s := NewService(store, nil, nil, deleteid.NewFormat("DEL-", 2))
	ctx := adminCtx()

	require.NoError(t, store.Set(ctx, CounterCollection, CounterDocID, map[string]any{"count": int64(99)}, false))

	_, err := s.AllocateDeleteViewID(ctx)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeIDOverflow))
}

func TestLastCopiedPicksNewest(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := adminCtx()

	seedEntry(t, store, "p1", map[string]any{
		"pacNo": "PAC-11", "copied": true, "copiedAtTimestamp": int64(1000),
	})
	seedEntry(t, store, "p2", map[string]any{
		"pacNo": "PAC-22", "copied": true, "copiedAtTimestamp": int64(2000),
	})
	seedEntry(t, store, "p3", map[string]any{"pacNo": "PAC-33"})

	d, err := s.LastCopied(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PAC-22", d.String("pacNo"))
}

func TestLastCopiedEmpty(t *testing.T) {
	store := memory.New()
	s := newTestService(store)

	seedEntry(t, store, "p1", map[string]any{"pacNo": "PAC-11"})

	_, err := s.LastCopied(adminCtx())
	assert.True(t, apperror.IsNotFound(err))
}
