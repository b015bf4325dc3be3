// Package templink issues and polices short-lived, fingerprint-bound
// access tokens for the temp_links collection.
package templink

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/audit"
	"pacadmin/pkg/logger"
)

// Collection is the document store collection for temp links.
const Collection = "temp_links"

const (
	// DefaultTTL is the lifetime of a freshly issued link.
	DefaultTTL = 10 * time.Minute
	// RotationCooldown is the minimum age before a token rotates.
	RotationCooldown = 15 * time.Second

	MaxAccessCount     = 20
	MaxReloadCount     = 10
	MaxSuspiciousScore = 3

	auditModule = "templink"
)

// Status classifies a link for the monitor view.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusLocked  Status = "LOCKED"
)

// Link is the monitor-facing view of a temp link document.
type Link struct {
	Token           string `json:"token"`
	Status          Status `json:"status"`
	Fingerprint     string `json:"fingerprint"`
	CreatedAt       int64  `json:"createdAt"`
	ExpiresAt       int64  `json:"expiresAt"`
	AccessCount     int64  `json:"accessCount"`
	SuspiciousScore int64  `json:"suspiciousScore"`
	LastAccessAt    int64  `json:"lastAccessAt"`
	LastHeartbeatAt int64  `json:"lastHeartbeatAt"`
	Live            bool   `json:"live"`
}

// AccessResult reports the outcome of a validated access. Token may differ
// from the presented token when rotation occurred.
type AccessResult struct {
	Token       string `json:"token"`
	Rotated     bool   `json:"rotated"`
	AccessCount int64  `json:"accessCount"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// Service manages temp link issuance, validation and rotation.
type Service struct {
	store docstore.Store
	log   *logger.Logger
	audit *audit.Service
	ttl   time.Duration
	now   func() time.Time
}

// NewService creates a temp link service.
func NewService(store docstore.Store, log *logger.Logger, auditSvc *audit.Service) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		store: store,
		log:   log.WithComponent("templink"),
		audit: auditSvc,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
}

// Create issues a new token bound to the caller's fingerprint.
func (s *Service) Create(ctx context.Context, fingerprint string) (string, error) {
	if fingerprint == "" {
		return "", apperror.NewValidation("fingerprint is required")
	}

	token := newToken()
	now := s.now().UnixMilli()
	err := s.store.Set(ctx, Collection, token, map[string]any{
		"fingerprint":       fingerprint,
		"createdAt":         now,
		"expiresAt":         now + s.ttl.Milliseconds(),
		"lastTokenRotation": now,
		"accessCount":       int64(0),
		"suspiciousScore":   int64(0),
		"locked":            false,
	}, false)
	if err != nil {
		return "", apperror.NewStore(err)
	}

	s.log.Infow("temp link issued", "token_prefix", token[:12], "expires_at", now+s.ttl.Milliseconds())
	return token, nil
}

// Access validates a presented token and records the access. The token
// rotates once its rotation cooldown has passed; the old document is
// deleted and its state carried to the new token.
func (s *Service) Access(ctx context.Context, token, fingerprint string, reloadCount int64, clientInfo map[string]any) (AccessResult, error) {
	if reloadCount > MaxReloadCount {
		return AccessResult{}, apperror.NewForbidden("too many reloads")
	}

	d, err := s.store.Get(ctx, Collection, token)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return AccessResult{}, apperror.NewForbidden("invalid or expired link")
		}
		return AccessResult{}, apperror.NewStore(err)
	}

	now := s.now().UnixMilli()
	if d.Bool("locked") {
		return AccessResult{}, apperror.NewForbidden("access locked")
	}
	if exp, ok := d.Int64("expiresAt"); ok && now > exp {
		return AccessResult{}, apperror.NewForbidden("link expired")
	}
	if d.String("fingerprint") != fingerprint {
		return AccessResult{}, apperror.NewForbidden("token is bound to another client")
	}

	accessCount, _ := d.Int64("accessCount")
	if accessCount >= MaxAccessCount {
		return AccessResult{}, apperror.NewForbidden("access limit reached")
	}

	suspicious, _ := d.Int64("suspiciousScore")
	if reloadCount > MaxReloadCount/2 {
		suspicious++
	}
	if suspicious >= MaxSuspiciousScore {
		if err := s.store.Update(ctx, Collection, token, map[string]any{"locked": true}); err != nil {
			s.log.Warnw("lock after suspicious activity failed", "error", err)
		}
		s.auditSuspicious(ctx, token)
		return AccessResult{}, apperror.NewForbidden("suspicious activity detected")
	}

	accessCount++
	fields := map[string]any{
		"lastAccessAt":    now,
		"accessCount":     accessCount,
		"reloadCount":     reloadCount,
		"suspiciousScore": suspicious,
	}
	if clientInfo != nil {
		fields["lastClientInfo"] = clientInfo
	}
	if err := s.store.Update(ctx, Collection, token, fields); err != nil {
		return AccessResult{}, apperror.NewStore(err)
	}

	result := AccessResult{Token: token, AccessCount: accessCount}
	result.ExpiresAt, _ = d.Int64("expiresAt")

	lastRotation, _ := d.Int64("lastTokenRotation")
	if now-lastRotation < RotationCooldown.Milliseconds() {
		return result, nil
	}

	rotated, err := s.rotate(ctx, token)
	if err != nil {
		// The access itself succeeded; rotation failure is not fatal.
		s.log.Warnw("token rotation failed", "error", err)
		return result, nil
	}
	result.Token = rotated
	result.Rotated = true
	return result, nil
}

// rotate moves a link's state to a fresh token and deletes the old one.
func (s *Service) rotate(ctx context.Context, token string) (string, error) {
	current, err := s.store.Get(ctx, Collection, token)
	if err != nil {
		return "", err
	}

	next := newToken()
	data := docstore.CloneData(current.Data)
	data["lastTokenRotation"] = s.now().UnixMilli()

	if err := s.store.Set(ctx, Collection, next, data, false); err != nil {
		return "", err
	}
	if err := s.store.Delete(ctx, Collection, token); err != nil {
		return "", err
	}
	return next, nil
}

// Heartbeat marks the link as still in active use.
func (s *Service) Heartbeat(ctx context.Context, token string) error {
	err := s.store.Update(ctx, Collection, token, map[string]any{
		"lastHeartbeatAt": s.now().UnixMilli(),
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperror.NewNotFound("temp link", token[:min(12, len(token))])
		}
		return apperror.NewStore(err)
	}
	return nil
}

// Revoke locks a link so it can no longer be used.
func (s *Service) Revoke(ctx context.Context, token string) error {
	err := s.store.Update(ctx, Collection, token, map[string]any{
		"locked":    true,
		"revokedAt": s.now().UnixMilli(),
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperror.NewNotFound("temp link", token[:min(12, len(token))])
		}
		return apperror.NewStore(err)
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:   "TEMP_LINK_REVOKE",
			Module:   auditModule,
			TargetID: token[:min(12, len(token))],
			Severity: audit.SeverityHigh,
		})
	}
	return nil
}

// List returns all links for the monitor view, newest first.
func (s *Service) List(ctx context.Context) ([]Link, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return nil, apperror.NewStore(err)
	}

	now := s.now().UnixMilli()
	links := make([]Link, 0, len(docs))
	for _, d := range docs {
		links = append(links, linkFromDocument(d, now))
	}
	for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
		links[i], links[j] = links[j], links[i]
	}
	return links, nil
}

func (s *Service) auditSuspicious(ctx context.Context, token string) {
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, audit.Entry{
		Action:   "TEMP_LINK_SUSPICIOUS_LOCK",
		Module:   auditModule,
		TargetID: token[:min(12, len(token))],
		Severity: audit.SeverityCritical,
		Status:   audit.StatusFailed,
	})
}

func linkFromDocument(d docstore.Document, now int64) Link {
	l := Link{Token: d.ID, Fingerprint: d.String("fingerprint")}
	l.CreatedAt, _ = d.Int64("createdAt")
	l.ExpiresAt, _ = d.Int64("expiresAt")
	l.AccessCount, _ = d.Int64("accessCount")
	l.SuspiciousScore, _ = d.Int64("suspiciousScore")
	l.LastAccessAt, _ = d.Int64("lastAccessAt")
	l.LastHeartbeatAt, _ = d.Int64("lastHeartbeatAt")

	switch {
	case d.Bool("locked"):
		l.Status = StatusLocked
	case l.ExpiresAt > 0 && now > l.ExpiresAt:
		l.Status = StatusExpired
	default:
		l.Status = StatusActive
	}

	// A heartbeat within 45 seconds counts as a live session.
	l.Live = l.LastHeartbeatAt > 0 && now-l.LastHeartbeatAt < 45_000
	return l
}

func newToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
