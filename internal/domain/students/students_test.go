package students

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore/memory"
)

func adminCtx() context.Context {
	return actor.WithActor(context.Background(), &actor.Context{ActorID: "alice", Role: "admin"})
}

func seedStudent(t *testing.T, store *memory.Store, id string, data map[string]any) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), Collection, id, data, false))
}

func TestNormalizeDOB(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{"iso timestamp", "2004-07-09T00:00:00Z", "09-07-2004", true},
		{"year first", "2004-07-09", "09-07-2004", true},
		{"day first unambiguous", "25-03-2003", "25-03-2003", true},
		{"month first unambiguous", "03-25-2003", "25-03-2003", true},
		{"ambiguous resolves day first", "05/04/2002", "05-04-2002", true},
		{"slash separated year first", "2002/04/05", "05-04-2002", true},
		{"empty", "", "", false},
		{"garbage", "not a date", "", false},
		{"two parts", "04-2002", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeDOB(tt.in)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsDMY(t *testing.T) {
	assert.True(t, IsDMY("09-07-2004"))
	assert.False(t, IsDMY("2004-07-09"))
	assert.False(t, IsDMY("9-7-2004"))
	assert.False(t, IsDMY(""))
}

func TestPreviewMatchesGenerate(t *testing.T) {
	store := memory.New()
	seedStudent(t, store, "s1", map[string]any{"name": "Asha", "studentUID": "000104"})
	seedStudent(t, store, "s2", map[string]any{"name": "Bikram"})
	seedStudent(t, store, "s3", map[string]any{"name": "Chitra"})

	s := NewService(store, nil, nil)
	ctx := adminCtx()

	preview, err := s.PreviewUIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"s2": "000105", "s3": "000106"}, preview)

	generated, err := s.GenerateUIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, generated)

	for docID, wantUID := range preview {
		d, err := store.Get(ctx, Collection, docID)
		require.NoError(t, err)
		assert.Equal(t, wantUID, d.String("studentUID"))
		_, hasStamp := d.Int64("uidGeneratedAt")
		assert.True(t, hasStamp)
	}
}

func TestGenerateNeverOverwrites(t *testing.T) {
	store := memory.New()
	seedStudent(t, store, "s1", map[string]any{"name": "Asha", "studentUID": "000007"})

	s := NewService(store, nil, nil)
	ctx := adminCtx()

	generated, err := s.GenerateUIDs(ctx)
	require.NoError(t, err)
	assert.Zero(t, generated)

	d, err := store.Get(ctx, Collection, "s1")
	require.NoError(t, err)
	assert.Equal(t, "000007", d.String("studentUID"))
}

func TestGenerateIgnoresMalformedUIDsForMax(t *testing.T) {
	store := memory.New()
	seedStudent(t, store, "s1", map[string]any{"studentUID": "999999999"})
	seedStudent(t, store, "s2", map[string]any{"name": "Bikram"})

	s := NewService(store, nil, nil)
	generated, err := s.GenerateUIDs(adminCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, generated)

	d, err := store.Get(context.Background(), Collection, "s2")
	require.NoError(t, err)
	assert.Equal(t, "000001", d.String("studentUID"))
}

func TestGenerateNormalizesDOBInSamePass(t *testing.T) {
	store := memory.New()
	seedStudent(t, store, "s1", map[string]any{"name": "Asha", "DOB": "2004-07-09"})

	s := NewService(store, nil, nil)
	_, err := s.GenerateUIDs(adminCtx())
	require.NoError(t, err)

	d, err := store.Get(context.Background(), Collection, "s1")
	require.NoError(t, err)
	assert.Equal(t, "09-07-2004", d.String("DOB_DMY"))
}

func TestNormalizeDOBsSkipsFormatted(t *testing.T) {
	store := memory.New()
	seedStudent(t, store, "s1", map[string]any{"DOB": "2004-07-09"})
	seedStudent(t, store, "s2", map[string]any{"DOB": "2001-01-02", "DOB_DMY": "02-01-2001"})
	seedStudent(t, store, "s3", map[string]any{"name": "no dob"})

	s := NewService(store, nil, nil)
	updated, err := s.NormalizeDOBs(adminCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	d, err := store.Get(context.Background(), Collection, "s1")
	require.NoError(t, err)
	assert.Equal(t, "09-07-2004", d.String("DOB_DMY"))
}

func TestTrashAndRestore(t *testing.T) {
	store := memory.New()
	seedStudent(t, store, "s1", map[string]any{"name": "Asha", "studentUID": "000104"})

	s := NewService(store, nil, nil)
	ctx := adminCtx()

	require.NoError(t, s.Trash(ctx, "s1"))

	_, err := store.Get(ctx, Collection, "s1")
	assert.Error(t, err, "live record is gone after trash")

	trashed, err := store.Get(ctx, TrashCollection, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", trashed.String("originalId"))
	assert.Equal(t, "alice", trashed.String("deletedBy"))

	require.NoError(t, s.Restore(ctx, "s1"))

	live, err := store.Get(ctx, Collection, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", live.String("name"))
	assert.Empty(t, live.String("deletedBy"))
	assert.Equal(t, "alice", live.String("restoredBy"))

	_, err = store.Get(ctx, TrashCollection, "s1")
	assert.Error(t, err)

	// Restoring twice fails cleanly.
	err = s.Restore(ctx, "s1")
	assert.True(t, apperror.IsNotFound(err))
}

func TestListSummariesNewestAdmissionFirst(t *testing.T) {
	store := memory.New()
	seedStudent(t, store, "s1", map[string]any{
		"studentName": "Asha", "course": "BSc", "DateofAdmission": "2023-06-01",
	})
	seedStudent(t, store, "s2", map[string]any{
		"name": "Bikram", "department": "BCA", "DateofAdmission": "2024-01-15",
		"DOB": "2004-07-09",
	})

	s := NewService(store, nil, nil)
	list, err := s.List(adminCtx())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "Bikram", list[0].Name)
	assert.Equal(t, "BCA", list[0].Department)
	assert.Equal(t, "09-07-2004", list[0].DOBFormatted)

	// Fallback field names still surface.
	assert.Equal(t, "Asha", list[1].Name)
	assert.Equal(t, "BSc", list[1].Department)
}
