package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore/memory"
	"pacadmin/internal/domain/pac"
	"pacadmin/internal/domain/students"
)

func TestExactIDWinsOverTokens(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, students.Collection, "000104", map[string]any{
		"name": "Asha",
	}, false))
	require.NoError(t, store.Set(ctx, students.Collection, "s2", map[string]any{
		"name":   "Bikram",
		"search": map[string]any{"tokens": []any{"000104"}},
	}, false))

	s := NewService(store, nil)
	results, err := s.Search(ctx, KindStudents, "000104")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Exact)
	assert.Equal(t, "Asha", results[0].Label)
}

func TestTokenSearchIsCaseInsensitive(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, pac.Collection, "p1", map[string]any{
		"pacNo":  "PAC-77",
		"search": map[string]any{"tokens": []any{"pac-77", "9876543210"}},
	}, false))
	require.NoError(t, store.Set(ctx, pac.Collection, "p2", map[string]any{
		"pacNo": "PAC-88",
	}, false))

	s := NewService(store, nil)
	results, err := s.Search(ctx, KindPac, "  PAC-77  ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ID)
	assert.False(t, results[0].Exact)
	assert.Equal(t, "PAC-77", results[0].Label)
}

func TestNoMatchesReturnsEmpty(t *testing.T) {
	s := NewService(memory.New(), nil)
	results, err := s.Search(context.Background(), KindStudents, "nobody")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchValidation(t *testing.T) {
	s := NewService(memory.New(), nil)

	_, err := s.Search(context.Background(), KindStudents, "   ")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = s.Search(context.Background(), Kind("ucl"), "key")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestLabelFallsBackToDocID(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, students.Collection, "anon", map[string]any{
		"search": map[string]any{"tokens": []any{"ghost"}},
	}, false))

	s := NewService(store, nil)
	results, err := s.Search(ctx, KindStudents, "ghost")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "anon", results[0].Label)
}
