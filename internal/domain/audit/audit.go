// Package audit records administrative actions to the admin_logs
// collection. Failures are swallowed after logging so an audit outage
// never blocks the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/docstore"
	"pacadmin/pkg/logger"
)

// Collection is the document store collection for audit entries.
const Collection = "admin_logs"

// Severity grades the operational impact of an audited action.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Status records whether the audited action succeeded.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// CompressionAlgo specifies the compression algorithm used for change snapshots.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// Entry is a single audit log record.
type Entry struct {
	Action      string   `json:"action"`
	Module      string   `json:"module"`
	TargetID    string   `json:"targetId"`
	Description string   `json:"description"`
	Before      any      `json:"before"`
	After       any      `json:"after"`
	Severity    Severity `json:"severity"`
	Status      Status   `json:"status"`
	DurationMs  int64    `json:"durationMs"`
}

// Service writes audit entries for administrative actions.
type Service struct {
	store   docstore.Store
	log     *logger.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	appVersion string
	build      string

	// change snapshots above this size are compressed
	compressThreshold int
}

// NewService creates an audit service writing to the given store.
func NewService(store docstore.Store, log *logger.Logger, appVersion, build string) (*Service, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if log == nil {
		log = logger.Default()
	}

	return &Service{
		store:             store,
		log:               log.WithComponent("audit"),
		encoder:           encoder,
		decoder:           decoder,
		appVersion:        appVersion,
		build:             build,
		compressThreshold: 10 * 1024,
	}, nil
}

// Log records an audit entry. Store failures are logged, not returned.
func (s *Service) Log(ctx context.Context, entry Entry) {
	if entry.Severity == "" {
		entry.Severity = SeverityMedium
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}
	if entry.TargetID == "" {
		entry.TargetID = "-"
	}

	performedBy := "admin"
	role := "admin"
	var sessionID, ip, device string
	if ac := actor.Get(ctx); ac != nil {
		if ac.ActorID != "" {
			performedBy = ac.ActorID
		}
		if ac.Role != "" {
			role = ac.Role
		}
		sessionID = ac.SessionID
		ip = ac.IP
		device = ac.Device
	}

	now := time.Now().UTC()
	data := map[string]any{
		"action":      entry.Action,
		"module":      entry.Module,
		"targetId":    entry.TargetID,
		"description": entry.Description,

		"severity":   string(entry.Severity),
		"status":     string(entry.Status),
		"durationMs": entry.DurationMs,

		"performedBy": performedBy,
		"role":        role,
		"sessionId":   sessionID,

		"ip":     ip,
		"device": device,

		"appVersion": s.appVersion,
		"build":      s.build,

		"createdAt":         now.UnixMilli(),
		"createdAtReadable": now.Format(time.RFC3339),
	}

	s.attachSnapshot(data, "before", entry.Before)
	s.attachSnapshot(data, "after", entry.After)

	if _, err := s.store.Add(ctx, Collection, data); err != nil {
		s.log.Errorw("audit log failed",
			"error", err,
			"action", entry.Action,
			"module", entry.Module,
			"target_id", entry.TargetID,
		)
	}
}

// LogChange is a convenience wrapper recording a before/after pair.
func (s *Service) LogChange(ctx context.Context, module, action, targetID string, before, after any) {
	s.Log(ctx, Entry{
		Action:   action,
		Module:   module,
		TargetID: targetID,
		Before:   before,
		After:    after,
	})
}

// attachSnapshot serializes a change snapshot, compressing it when large.
// Small snapshots are stored inline as-is.
func (s *Service) attachSnapshot(data map[string]any, key string, snapshot any) {
	if snapshot == nil {
		data[key] = nil
		return
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Warnw("audit snapshot marshal failed", "error", err, "field", key)
		data[key] = nil
		return
	}

	if len(raw) <= s.compressThreshold {
		data[key] = snapshot
		data[key+"Compression"] = string(CompressionNone)
		return
	}

	data[key] = s.encoder.EncodeAll(raw, nil)
	data[key+"Compression"] = string(CompressionZstd)
}

// DecodeSnapshot restores a change snapshot field from a stored entry.
func (s *Service) DecodeSnapshot(d docstore.Document, key string) (any, error) {
	raw, ok := d.Data[key]
	if !ok || raw == nil {
		return nil, nil
	}

	if CompressionAlgo(d.String(key+"Compression")) != CompressionZstd {
		return raw, nil
	}

	compressed, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("compressed snapshot %q has type %T", key, raw)
	}

	plain, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot %q: %w", key, err)
	}

	var out any
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", key, err)
	}
	return out, nil
}

// History returns the most recent audit entries, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]docstore.Document, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}

	// List preserves insertion order; reverse for newest-first.
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Diff calculates the field-level difference between two states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !equal(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}

func equal(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
