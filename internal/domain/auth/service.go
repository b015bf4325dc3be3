package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/audit"
	"pacadmin/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts  int
	LockDuration      time.Duration
	PasswordMinLength int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:  5,
		LockDuration:      15 * time.Minute,
		PasswordMinLength: 8,
	}
}

// Service authenticates dashboard admins.
type Service struct {
	store      docstore.Store
	log        *logger.Logger
	audit      *audit.Service
	jwtService *JWTService
	config     ServiceConfig
	now        func() time.Time
}

// NewService creates a new auth service.
func NewService(store docstore.Store, log *logger.Logger, auditSvc *audit.Service, jwtService *JWTService, config ServiceConfig) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		store:      store,
		log:        log.WithComponent("auth"),
		audit:      auditSvc,
		jwtService: jwtService,
		config:     config,
		now:        time.Now,
	}
}

// Register creates a new admin account.
func (s *Service) Register(ctx context.Context, email, password, role string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperror.NewValidation("email is required")
	}
	if len(password) < s.config.PasswordMinLength {
		return apperror.NewValidation(fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength))
	}
	if role == "" {
		role = "admin"
	}

	if _, err := s.store.Get(ctx, Collection, email); err == nil {
		return apperror.NewConflict("account already exists")
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return apperror.NewStore(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hash password: %w", err))
	}

	err = s.store.Set(ctx, Collection, email, map[string]any{
		"email":        email,
		"passwordHash": string(hash),
		"role":         role,
		"isActive":     true,
		"createdAt":    s.now().UnixMilli(),
	}, false)
	if err != nil {
		return apperror.NewStore(err)
	}

	s.log.Infow("admin account created", "email", email, "role", role)
	return nil
}

// Login verifies credentials and issues an access token. Repeated failures
// lock the account temporarily.
func (s *Service) Login(ctx context.Context, creds Credentials) (Session, error) {
	email := normalizeEmail(creds.Email)

	d, err := s.store.Get(ctx, Collection, email)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Session{}, apperror.NewUnauthorized("invalid credentials")
		}
		return Session{}, apperror.NewStore(err)
	}
	user := userFromDocument(d)

	now := s.now()
	if !user.IsActive {
		return Session{}, apperror.NewForbidden("account is disabled")
	}
	if user.IsLocked(now) {
		return Session{}, apperror.NewForbidden("account is temporarily locked")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
		s.recordFailedLogin(ctx, email, user, now)
		return Session{}, apperror.NewUnauthorized("invalid credentials")
	}

	sessionID := "AS-" + uuid.NewString()
	token, expiresAt, err := s.jwtService.GenerateAccessToken(user.Email, user.Role, sessionID)
	if err != nil {
		return Session{}, apperror.NewInternal(err)
	}

	err = s.store.Update(ctx, Collection, email, map[string]any{
		"failedLoginAttempts": int64(0),
		"lockedUntil":         nil,
		"lastLoginAt":         now.UnixMilli(),
	})
	if err != nil {
		s.log.Warnw("record successful login failed", "error", err, "email", email)
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:   "ADMIN_LOGIN",
			Module:   "auth",
			TargetID: email,
		})
	}
	return Session{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Email:       user.Email,
		Role:        user.Role,
	}, nil
}

func (s *Service) recordFailedLogin(ctx context.Context, email string, user *AdminUser, now time.Time) {
	attempts := user.FailedLoginAttempts + 1
	fields := map[string]any{"failedLoginAttempts": attempts}
	if int(attempts) >= s.config.MaxLoginAttempts {
		fields["lockedUntil"] = now.Add(s.config.LockDuration).UnixMilli()
		s.log.Warnw("account locked after repeated failures", "email", email, "attempts", attempts)
	}
	if err := s.store.Update(ctx, Collection, email, fields); err != nil {
		s.log.Warnw("record failed login failed", "error", err, "email", email)
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:   "ADMIN_LOGIN",
			Module:   "auth",
			TargetID: email,
			Status:   audit.StatusFailed,
		})
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
