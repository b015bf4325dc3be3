package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore"
	"pacadmin/internal/docstore/memory"
)

func ctxFor(actorID string) context.Context {
	return actor.WithActor(context.Background(), &actor.Context{ActorID: actorID})
}

func TestAcquireAndRelease(t *testing.T) {
	m := NewManager(memory.New(), "delete_fix", time.Minute)

	token, err := m.Acquire(ctxFor("alice"))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	holder, fresh, err := m.Holder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", holder)
	assert.True(t, fresh)

	require.NoError(t, m.Release(ctxFor("alice"), token))

	_, fresh, err = m.Holder(context.Background())
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestAcquireBusyNamesHolder(t *testing.T) {
	m := NewManager(memory.New(), "delete_fix", time.Minute)

	_, err := m.Acquire(ctxFor("alice"))
	require.NoError(t, err)

	_, err = m.Acquire(ctxFor("bob"))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeLockHeld, appErr.Code)
	assert.Equal(t, "alice", appErr.Details["held_by"])
}

func TestReacquireBySameActor(t *testing.T) {
	m := NewManager(memory.New(), "delete_fix", time.Minute)

	first, err := m.Acquire(ctxFor("alice"))
	require.NoError(t, err)

	second, err := m.Acquire(ctxFor("alice"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each acquisition issues a fresh token")
}

func TestExpiredLockIsFree(t *testing.T) {
	m := NewManager(memory.New(), "delete_fix", time.Minute)

	_, err := m.Acquire(ctxFor("alice"))
	require.NoError(t, err)

	// Jump past the TTL.
	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = m.Acquire(ctxFor("bob"))
	require.NoError(t, err)

	holder, fresh, err := m.Holder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", holder)
	assert.True(t, fresh)
}

// contendedStore lets a rival acquisition slip in just before the
// transaction under test runs.
type contendedStore struct {
	docstore.Store
	once  sync.Once
	rival func()
}

func (c *contendedStore) Transact(ctx context.Context, fn func(tx docstore.Tx) error) error {
	c.once.Do(c.rival)
	return c.Store.Transact(ctx, fn)
}

func TestAcquireRaceLosesToRival(t *testing.T) {
	inner := memory.New()
	rivalManager := NewManager(inner, "delete_fix", time.Minute)

	store := &contendedStore{Store: inner}
	store.rival = func() {
		_, err := rivalManager.Acquire(ctxFor("bob"))
		require.NoError(t, err)
	}

	m := NewManager(store, "delete_fix", time.Minute)

	// Bob's acquisition lands before Alice's transaction; Alice must see it.
	_, err := m.Acquire(ctxFor("alice"))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLockHeld))

	holder, fresh, err := m.Holder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", holder)
	assert.True(t, fresh)
}

func TestReleaseWithWrongTokenIsNoOp(t *testing.T) {
	m := NewManager(memory.New(), "delete_fix", time.Minute)

	_, err := m.Acquire(ctxFor("alice"))
	require.NoError(t, err)

	// Bob never acquired; his release must not clear Alice's lock.
	require.NoError(t, m.Release(ctxFor("bob"), "bogus-token"))

	holder, fresh, err := m.Holder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", holder)
	assert.True(t, fresh)
}

func TestReleaseAfterExpiryAndReacquire(t *testing.T) {
	m := NewManager(memory.New(), "delete_fix", time.Minute)

	aliceToken, err := m.Acquire(ctxFor("alice"))
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Acquire(ctxFor("bob"))
	require.NoError(t, err)

	// Alice's token is stale; releasing with it must not free Bob's lock.
	require.NoError(t, m.Release(ctxFor("alice"), aliceToken))

	holder, fresh, err := m.Holder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", holder)
	assert.True(t, fresh)
}
