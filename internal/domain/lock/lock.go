// Package lock provides a cooperative, TTL-based advisory lock stored in the
// document store. It keeps well-behaved admin clients from racing each other
// during remediation; it does not prevent a non-cooperating writer from
// touching guarded records.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore"
	"pacadmin/pkg/logger"
)

const (
	// DefaultTTL is how long a lock is honored without refresh.
	DefaultTTL = 60 * time.Second

	collectionName = "system_locks"
)

// Manager manages one named advisory lock document.
type Manager struct {
	store docstore.Store
	name  string
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a lock manager for the named lock.
func NewManager(store docstore.Store, name string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store: store,
		name:  name,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Acquire takes the lock for the actor in ctx and returns an opaque token.
//
// A lock that is absent, past its TTL, or held by the same actor is treated
// as free and overwritten with a fresh acquisition. A fresh lock held by a
// different actor fails with LOCK_HELD naming the holder. The read-check-write
// runs inside one store transaction, so two racing acquirers cannot both
// observe the lock as free.
func (m *Manager) Acquire(ctx context.Context) (string, error) {
	holder := actor.ID(ctx)
	if holder == "" {
		holder = "admin"
	}

	token := uuid.New().String()
	err := m.store.Transact(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(collectionName, m.name)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}

		if err == nil {
			lockedAt, _ := doc.Int64("lockedAt")
			lockedBy := doc.String("lockedBy")
			current := doc.String("lockToken")
			age := m.now().UnixMilli() - lockedAt

			if current != "" && age < m.ttl.Milliseconds() && lockedBy != holder {
				return apperror.NewLockHeld(lockedBy)
			}
		}

		tx.Set(collectionName, m.name, map[string]any{
			"lockedAt":  m.now().UnixMilli(),
			"lockedBy":  holder,
			"lockToken": token,
		})
		return nil
	})
	if err != nil {
		if apperror.IsCode(err, apperror.CodeLockHeld) {
			return "", err
		}
		return "", apperror.NewStore(err)
	}
	return token, nil
}

// Release clears the lock if token still matches the stored acquisition.
//
// A mismatch means the caller's lock expired and another actor re-acquired
// it; releasing then would steal the new holder's lock, so the release is
// logged and dropped rather than applied or surfaced as an error.
func (m *Manager) Release(ctx context.Context, token string) error {
	doc, err := m.store.Get(ctx, collectionName, m.name)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperror.NewStore(err)
	}

	if doc.String("lockToken") != token {
		logger.Warn(ctx, "stale lock release ignored",
			"lock", m.name,
			"held_by", doc.String("lockedBy"),
		)
		return nil
	}

	fields := map[string]any{
		"releasedAt": m.now().UnixMilli(),
		"lockToken":  nil,
	}
	if err := m.store.Update(ctx, collectionName, m.name, fields); err != nil {
		return apperror.NewStore(err)
	}
	return nil
}

// Holder reports the current holder and whether the lock is fresh.
func (m *Manager) Holder(ctx context.Context) (string, bool, error) {
	doc, err := m.store.Get(ctx, collectionName, m.name)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperror.NewStore(err)
	}
	lockedAt, _ := doc.Int64("lockedAt")
	fresh := doc.String("lockToken") != "" &&
		m.now().UnixMilli()-lockedAt < m.ttl.Milliseconds()
	return doc.String("lockedBy"), fresh, nil
}
