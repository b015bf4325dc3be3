// Package query implements the dashboard's cross-collection search:
// exact document-ID lookup first, then an indexed token scan.
package query

import (
	"context"
	"errors"
	"strings"

	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/pac"
	"pacadmin/internal/domain/students"
	"pacadmin/internal/domain/templink"
	"pacadmin/pkg/logger"
)

// Kind selects the collection a search runs against.
type Kind string

const (
	KindStudents Kind = "students"
	KindPac      Kind = "pac"
	KindTemp     Kind = "temp"
)

// Result is one search hit. Exact-ID hits come back alone; token matches
// come back as a list.
type Result struct {
	Kind  Kind           `json:"kind"`
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Exact bool           `json:"exact"`
	Data  map[string]any `json:"data,omitempty"`
}

// Service runs searches over the admin collections.
type Service struct {
	store docstore.Store
	log   *logger.Logger
}

// NewService creates a query service.
func NewService(store docstore.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{store: store, log: log.WithComponent("query")}
}

// Search looks the key up in the collection for kind. The key is matched
// case-insensitively: first as an exact document ID, then against each
// document's search.tokens index. An empty result list is not an error.
func (s *Service) Search(ctx context.Context, kind Kind, key string) ([]Result, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return nil, apperror.NewValidation("search value is required")
	}

	collection, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}

	if d, err := s.store.Get(ctx, collection, key); err == nil {
		return []Result{{
			Kind:  kind,
			ID:    d.ID,
			Label: labelOf(d),
			Exact: true,
			Data:  d.Data,
		}}, nil
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return nil, apperror.NewStore(err)
	}

	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, apperror.NewStore(err)
	}

	var results []Result
	for _, d := range docs {
		if !hasToken(d, key) {
			continue
		}
		results = append(results, Result{
			Kind:  kind,
			ID:    d.ID,
			Label: labelOf(d),
			Data:  d.Data,
		})
	}
	return results, nil
}

func collectionFor(kind Kind) (string, error) {
	switch kind {
	case KindStudents:
		return students.Collection, nil
	case KindPac:
		return pac.Collection, nil
	case KindTemp:
		return templink.Collection, nil
	}
	return "", apperror.NewValidation("unknown search type").WithDetail("type", string(kind))
}

// hasToken checks the document's search.tokens index for the key.
func hasToken(d docstore.Document, key string) bool {
	search := d.Map("search")
	if search == nil {
		return false
	}
	tokens, ok := search["tokens"].([]any)
	if !ok {
		return false
	}
	for _, t := range tokens {
		if s, ok := t.(string); ok && strings.ToLower(s) == key {
			return true
		}
	}
	return false
}

func labelOf(d docstore.Document) string {
	for _, field := range []string{"name", "studentName", "pacNo", "phone", "studentUID"} {
		if v := d.String(field); v != "" {
			return v
		}
	}
	return d.ID
}
