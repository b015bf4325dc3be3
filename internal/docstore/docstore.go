// Package docstore defines the contract for the external document-store
// collaborator. Every persistence, query and real-time-update primitive the
// application uses rides on this interface; implementations live in the
// infrastructure layer.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Document is one stored document: a store-assigned identity plus an open
// field map. Business fields the application does not model are carried
// through untouched.
type Document struct {
	ID   string
	Data map[string]any
}

// Unsubscribe stops a snapshot subscription.
type Unsubscribe func()

// Tx provides document operations inside a transaction.
type Tx interface {
	Get(collection, id string) (Document, error)
	Set(collection, id string, data map[string]any)
	Update(collection, id string, fields map[string]any) error
}

// Store is the external document-store contract.
//
// Update treats a nil field value as a field deletion, mirroring the
// sentinel-delete semantics of document databases.
//
// Subscribe is push-based: the callback receives the full current record set
// of the collection on every change, in the store's iteration order. No
// partial-delta contract is assumed.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, collection string, fn func([]Document)) (Unsubscribe, error)
	Transact(ctx context.Context, fn func(tx Tx) error) error
}

// --- Field accessors (tolerant, for duck-typed documents) ---

// String returns a string field or "".
func (d Document) String(key string) string {
	if v, ok := d.Data[key].(string); ok {
		return v
	}
	return ""
}

// Int64 returns a numeric field as int64, accepting the numeric types JSON
// decoding and SDK clients produce.
func (d Document) Int64(key string) (int64, bool) {
	switch v := d.Data[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Float returns a numeric field as float64.
func (d Document) Float(key string) (float64, bool) {
	switch v := d.Data[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Bool returns a boolean field.
func (d Document) Bool(key string) bool {
	v, _ := d.Data[key].(bool)
	return v
}

// Map returns a nested map field or nil.
func (d Document) Map(key string) map[string]any {
	if v, ok := d.Data[key].(map[string]any); ok {
		return v
	}
	return nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	return Document{ID: d.ID, Data: CloneData(d.Data)}
}

// CloneData deep-copies a field map (one level of nested maps and slices,
// which covers the envelopes this system writes).
func CloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case map[string]any:
			out[k] = CloneData(t)
		case []any:
			s := make([]any, len(t))
			copy(s, t)
			out[k] = s
		default:
			out[k] = v
		}
	}
	return out
}
