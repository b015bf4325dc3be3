// Package memory provides an in-memory docstore.Store. It backs unit tests
// and local development; snapshot fan-out to subscribers is synchronous so
// tests stay deterministic.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pacadmin/internal/docstore"
)

type collection struct {
	docs  map[string]map[string]any
	order []string // insertion order; doubles as the store's iteration order
}

// Store is an in-memory document store.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	subscribers map[string][]*subscriber
}

type subscriber struct {
	fn     func([]docstore.Document)
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		subscribers: make(map[string][]*subscriber),
	}
}

var _ docstore.Store = (*Store)(nil)

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]map[string]any)}
		s.collections[name] = c
	}
	return c
}

// Get returns one document or docstore.ErrNotFound.
func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	data, ok := c.docs[id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{ID: id, Data: docstore.CloneData(data)}, nil
}

// List returns all documents in insertion order.
func (s *Store) List(_ context.Context, collection string) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(collection), nil
}

// Add stores a new document under a generated ID.
func (s *Store) Add(_ context.Context, collection string, data map[string]any) (string, error) {
	s.mu.Lock()
	id := uuid.New().String()
	c := s.coll(collection)
	c.docs[id] = docstore.CloneData(data)
	c.order = append(c.order, id)
	subs := s.notifyTargetsLocked(collection)
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()

	notify(subs, snap)
	return id, nil
}

// Set writes a document, creating it if absent. With merge, existing fields
// not named in data survive.
func (s *Store) Set(_ context.Context, collection, id string, data map[string]any, merge bool) error {
	s.mu.Lock()
	c := s.coll(collection)
	existing, ok := c.docs[id]
	if !ok {
		c.docs[id] = docstore.CloneData(data)
		c.order = append(c.order, id)
	} else if merge {
		for k, v := range docstore.CloneData(data) {
			existing[k] = v
		}
	} else {
		c.docs[id] = docstore.CloneData(data)
	}
	subs := s.notifyTargetsLocked(collection)
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// Update merges fields into an existing document; fails if it does not exist.
func (s *Store) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	c := s.coll(collection)
	existing, ok := c.docs[id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	for k, v := range docstore.CloneData(fields) {
		if v == nil {
			delete(existing, k)
			continue
		}
		existing[k] = v
	}
	subs := s.notifyTargetsLocked(collection)
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// Delete removes a document. Deleting an absent document is a no-op, matching
// the vendor SDK.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	c := s.coll(collection)
	if _, ok := c.docs[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(c.docs, id)
	for i, docID := range c.order {
		if docID == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	subs := s.notifyTargetsLocked(collection)
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()

	notify(subs, snap)
	return nil
}

// Subscribe registers fn and immediately delivers the current snapshot.
func (s *Store) Subscribe(_ context.Context, collection string, fn func([]docstore.Document)) (docstore.Unsubscribe, error) {
	s.mu.Lock()
	sub := &subscriber{fn: fn}
	s.subscribers[collection] = append(s.subscribers[collection], sub)
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()

	fn(snap)

	return func() {
		s.mu.Lock()
		sub.closed = true
		s.mu.Unlock()
	}, nil
}

// Transact runs fn with staged writes applied atomically on success.
func (s *Store) Transact(_ context.Context, fn func(tx docstore.Tx) error) error {
	s.mu.Lock()
	tx := &memTx{store: s}
	err := fn(tx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	touched := make(map[string]bool)
	for _, w := range tx.writes {
		c := s.coll(w.collection)
		existing, ok := c.docs[w.id]
		if !ok {
			c.docs[w.id] = docstore.CloneData(w.data)
			c.order = append(c.order, w.id)
		} else if w.merge {
			for k, v := range docstore.CloneData(w.data) {
				if v == nil {
					delete(existing, k)
					continue
				}
				existing[k] = v
			}
		} else {
			c.docs[w.id] = docstore.CloneData(w.data)
		}
		touched[w.collection] = true
	}

	type fanout struct {
		subs []*subscriber
		snap []docstore.Document
	}
	var fanouts []fanout
	for name := range touched {
		fanouts = append(fanouts, fanout{s.notifyTargetsLocked(name), s.snapshotLocked(name)})
	}
	s.mu.Unlock()

	for _, f := range fanouts {
		notify(f.subs, f.snap)
	}
	return nil
}

type write struct {
	collection string
	id         string
	data       map[string]any
	merge      bool
}

type memTx struct {
	store  *Store
	writes []write
}

func (t *memTx) Get(collection, id string) (docstore.Document, error) {
	c := t.store.coll(collection)
	data, ok := c.docs[id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{ID: id, Data: docstore.CloneData(data)}, nil
}

func (t *memTx) Set(collection, id string, data map[string]any) {
	t.writes = append(t.writes, write{collection, id, data, false})
}

func (t *memTx) Update(collection, id string, fields map[string]any) error {
	c := t.store.coll(collection)
	if _, ok := c.docs[id]; !ok {
		return docstore.ErrNotFound
	}
	t.writes = append(t.writes, write{collection, id, fields, true})
	return nil
}

func (s *Store) snapshotLocked(collection string) []docstore.Document {
	c := s.coll(collection)
	out := make([]docstore.Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, docstore.Document{ID: id, Data: docstore.CloneData(c.docs[id])})
	}
	return out
}

func (s *Store) notifyTargetsLocked(collection string) []*subscriber {
	var out []*subscriber
	for _, sub := range s.subscribers[collection] {
		if !sub.closed {
			out = append(out, sub)
		}
	}
	return out
}

func notify(subs []*subscriber, snap []docstore.Document) {
	for _, sub := range subs {
		sub.fn(snap)
	}
}
