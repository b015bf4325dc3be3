package registry

import (
	"context"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/pkg/logger"
)

// RollbackSource marks where a restored delete-view ID came from.
const RollbackSource = "snapshot-cache"

// Rollback restores a record's delete-view ID to the value captured in the
// pre-remediation snapshot cache and clears all provenance written by the
// executor.
//
// The key may be either the store doc ID or the PAC business key. The cache
// is rebuilt every ingestion cycle, so rollback is only available for records
// captured within the current snapshot generation.
func (e *Engine) Rollback(ctx context.Context, key string) error {
	e.mu.Lock()
	snap, ok := e.snapshotCache[key]
	if !ok {
		for _, r := range e.snapshotCache {
			if r.PacNo != "" && r.PacNo == key {
				snap, ok = r, true
				break
			}
		}
	}
	e.mu.Unlock()

	if !ok {
		return apperror.NewRollbackUnavailable(key)
	}

	token, err := e.locks.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := e.locks.Release(ctx, token); relErr != nil {
			logger.Warn(ctx, "lock release failed", "error", relErr)
		}
	}()

	rolledBackBy := actor.ID(ctx)
	if rolledBackBy == "" {
		rolledBackBy = "admin"
	}

	var restored any
	if snap.DeleteViewID != "" {
		restored = snap.DeleteViewID
	}
	fields := map[string]any{
		"deleteViewId":          restored,
		"fixedAt":               nil,
		"fixedBy":               nil,
		"fixMode":               nil,
		"previousDeleteId":      nil,
		"deleteIdMeta":          nil,
		"compliance":            nil,
		"rollbackAt":            nowMillis(),
		"rollbackBy":            rolledBackBy,
		"rollbackSource":        RollbackSource,
		"rollbackPolicyVersion": e.cfg.PolicyVersion,
	}
	if err := e.store.Update(ctx, e.cfg.Collection, snap.DocID, fields); err != nil {
		return apperror.NewStore(err)
	}

	logger.Info(ctx, "fix rolled back",
		"doc_id", snap.DocID,
		"restored_id", snap.DeleteViewID,
	)
	return nil
}
