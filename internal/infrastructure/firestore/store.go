// Package firestore adapts the Cloud Firestore client to the docstore
// contract.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pacadmin/internal/docstore"
	"pacadmin/pkg/logger"
)

var _ docstore.Store = (*Store)(nil)

// Store implements docstore.Store on Cloud Firestore.
type Store struct {
	client *firestore.Client
	log    *logger.Logger
}

// New creates a Firestore-backed store.
func New(ctx context.Context, projectID string, log *logger.Logger) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Store{client: client, log: log.WithComponent("firestore")}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return docstore.Document{}, docstore.ErrNotFound
		}
		return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return docstore.Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var docs []docstore.Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		docs = append(docs, docstore.Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, data, opts...); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return docstore.ErrNotFound
		}
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Subscribe streams collection snapshots. Every Firestore snapshot is
// flattened to the full document set before the callback runs.
func (s *Store) Subscribe(ctx context.Context, collection string, fn func([]docstore.Document)) (docstore.Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	snaps := s.client.Collection(collection).Snapshots(subCtx)

	go func() {
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if subCtx.Err() == nil {
					s.log.Errorw("snapshot stream ended", "collection", collection, "error", err)
				}
				return
			}

			docs := make([]docstore.Document, 0, snap.Size)
			iter := snap.Documents
			for {
				d, err := iter.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					s.log.Errorw("snapshot read failed", "collection", collection, "error", err)
					break
				}
				docs = append(docs, docstore.Document{ID: d.Ref.ID, Data: d.Data()})
			}
			fn(docs)
		}
	}()

	return docstore.Unsubscribe(cancel), nil
}

func (s *Store) Transact(ctx context.Context, fn func(tx docstore.Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(&fsTx{client: s.client, tx: tx})
	})
}

type fsTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *fsTx) Get(collection, id string) (docstore.Document, error) {
	snap, err := t.tx.Get(t.client.Collection(collection).Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return docstore.Document{}, docstore.ErrNotFound
		}
		return docstore.Document{}, err
	}
	return docstore.Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (t *fsTx) Set(collection, id string, data map[string]any) {
	// Transactions buffer writes; errors surface at commit.
	_ = t.tx.Set(t.client.Collection(collection).Doc(id), data)
}

func (t *fsTx) Update(collection, id string, fields map[string]any) error {
	return t.tx.Update(t.client.Collection(collection).Doc(id), toUpdates(fields))
}

// toUpdates converts a field map to Firestore updates. A nil value deletes
// the field, matching the docstore contract.
func toUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		if v == nil {
			updates = append(updates, firestore.Update{Path: k, Value: firestore.Delete})
			continue
		}
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates
}
