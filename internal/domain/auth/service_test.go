package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore/memory"
)

func newTestService(store *memory.Store) *Service {
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	return NewService(store, nil, nil, jwtSvc, DefaultServiceConfig())
}

func TestRegisterAndLogin(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "Admin@Example.com", "correct-horse", "superadmin"))

	session, err := s.Login(ctx, Credentials{Email: "admin@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", session.TokenType)
	assert.Equal(t, "admin@example.com", session.Email)
	assert.Equal(t, "superadmin", session.Role)

	ac, err := s.jwtService.ValidateToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", ac.Email)
	assert.Equal(t, "superadmin", ac.Role)
	assert.NotEmpty(t, ac.SessionID)
}

func TestRegisterValidation(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := context.Background()

	assert.True(t, apperror.IsCode(s.Register(ctx, "", "password123", ""), apperror.CodeValidation))
	assert.True(t, apperror.IsCode(s.Register(ctx, "a@b.c", "short", ""), apperror.CodeValidation))

	require.NoError(t, s.Register(ctx, "a@b.c", "password123", ""))
	assert.True(t, apperror.IsCode(s.Register(ctx, "a@b.c", "password123", ""), apperror.CodeConflict))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "a@b.c", "password123", ""))

	_, err := s.Login(ctx, Credentials{Email: "a@b.c", Password: "wrong"})
	assert.True(t, apperror.IsCode(err, apperror.CodeUnauthorized))

	_, err = s.Login(ctx, Credentials{Email: "nobody@b.c", Password: "password123"})
	assert.True(t, apperror.IsCode(err, apperror.CodeUnauthorized))
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "a@b.c", "password123", ""))

	for i := 0; i < s.config.MaxLoginAttempts; i++ {
		_, err := s.Login(ctx, Credentials{Email: "a@b.c", Password: "wrong"})
		require.Error(t, err)
	}

	// Even the correct password is refused while locked.
	_, err := s.Login(ctx, Credentials{Email: "a@b.c", Password: "password123"})
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))

	// The lock expires.
	s.now = func() time.Time { return time.Now().Add(s.config.LockDuration + time.Minute) }
	session, err := s.Login(ctx, Credentials{Email: "a@b.c", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	store := memory.New()
	s := newTestService(store)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "a@b.c", "password123", ""))
	require.NoError(t, store.Update(ctx, Collection, "a@b.c", map[string]any{"isActive": false}))

	_, err := s.Login(ctx, Credentials{Email: "a@b.c", Password: "password123"})
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))
}
