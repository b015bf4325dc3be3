// Package pac manages live PAC entries: amount corrections and the
// archive-safe delete flow feeding the delete registry.
package pac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/internal/core/deleteid"
	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/audit"
	"pacadmin/pkg/logger"
)

const (
	// Collection holds live PAC entries.
	Collection = "pac_entries"
	// ArchiveCollection receives archived entries on delete.
	ArchiveCollection = "delete_pac"
	// CounterCollection and CounterDocID locate the delete-view-ID counter.
	CounterCollection = "system_counters"
	CounterDocID      = "delete_counter"

	auditModule = "PAC"
)

// Service provides PAC entry administration.
type Service struct {
	store  docstore.Store
	log    *logger.Logger
	audit  *audit.Service
	format deleteid.Format
	now    func() time.Time
}

// NewService creates a PAC entry service.
func NewService(store docstore.Store, log *logger.Logger, auditSvc *audit.Service, format deleteid.Format) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		store:  store,
		log:    log.WithComponent("pac"),
		audit:  auditSvc,
		format: format,
		now:    time.Now,
	}
}

// Get returns a live PAC entry.
func (s *Service) Get(ctx context.Context, docID string) (docstore.Document, error) {
	d, err := s.store.Get(ctx, Collection, docID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.Document{}, apperror.NewNotFound("pac entry", docID)
		}
		return docstore.Document{}, apperror.NewStore(err)
	}
	return d, nil
}

// List returns all live PAC entries.
func (s *Service) List(ctx context.Context) ([]docstore.Document, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return nil, apperror.NewStore(err)
	}
	return docs, nil
}

// LastCopied returns the most recently copied PAC entry, or NotFound when
// no entry has been copied yet.
func (s *Service) LastCopied(ctx context.Context) (docstore.Document, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return docstore.Document{}, apperror.NewStore(err)
	}

	var latest docstore.Document
	var latestAt int64 = -1
	for _, d := range docs {
		if !d.Bool("copied") {
			continue
		}
		at, _ := d.Int64("copiedAtTimestamp")
		if at > latestAt {
			latest = d
			latestAt = at
		}
	}
	if latestAt < 0 {
		return docstore.Document{}, apperror.NewNotFound("copied pac entry", "latest")
	}
	return latest, nil
}

// EditAmount corrects a PAC entry's amount. The previous amount, the
// correction reason and the acting admin are recorded on the entry and an
// audit event is written.
func (s *Service) EditAmount(ctx context.Context, docID string, newAmount decimal.Decimal, reason string) error {
	if newAmount.LessThanOrEqual(decimal.Zero) {
		return apperror.NewValidation("amount must be positive")
	}
	if reason == "" {
		return apperror.NewValidation("correction reason is mandatory")
	}

	d, err := s.Get(ctx, docID)
	if err != nil {
		return err
	}

	oldAmount := amountOf(d)
	if newAmount.Equal(oldAmount) {
		return apperror.NewValidation("amount unchanged")
	}

	editCount, _ := d.Int64("editCount")
	now := s.now()
	started := now

	err = s.store.Update(ctx, Collection, docID, map[string]any{
		"amount":          newAmount.InexactFloat64(),
		"previousAmount":  oldAmount.InexactFloat64(),
		"correctedAmount": newAmount.InexactFloat64(),

		"editCount": editCount + 1,

		"correctedAt":   now.UnixMilli(),
		"correctedDate": now.Format("02/01/2006"),
		"correctedTime": now.Format("15:04:05"),

		"correctedBy":     actorLabel(ctx),
		"correctedFromIp": actorIP(ctx),

		"correctionReason": reason,
	})
	if err != nil {
		return apperror.NewStore(err)
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:      "PAC_AMOUNT_EDIT",
			Module:      auditModule,
			TargetID:    d.String("pacNo"),
			Description: "PAC amount corrected",
			Before:      map[string]any{"amount": oldAmount.String()},
			After:       map[string]any{"amount": newAmount.String()},
			Severity:    audit.SeverityHigh,
			DurationMs:  s.now().Sub(started).Milliseconds(),
		})
	}
	return nil
}

// Archive moves a live PAC entry to the archive collection with a freshly
// allocated delete-view ID, then removes the live document. Entries are
// never destroyed, only moved.
func (s *Service) Archive(ctx context.Context, docID, reason string) (string, error) {
	if reason == "" {
		return "", apperror.NewValidation("delete reason is mandatory")
	}

	d, err := s.Get(ctx, docID)
	if err != nil {
		return "", err
	}

	deleteViewID, err := s.AllocateDeleteViewID(ctx)
	if err != nil {
		return "", err
	}

	now := s.now()
	deleteCount, _ := d.Int64("deleteCount")

	archived := docstore.CloneData(d.Data)
	archived["deleteViewId"] = deleteViewID
	archived["deletedAt"] = now.Format("02/01/2006, 15:04:05")
	archived["deletedAtTimestamp"] = now.UnixMilli()
	archived["deletedDate"] = now.Format("02/01/2006")
	archived["deletedTime"] = now.Format("15:04:05")
	archived["deletedBy"] = actorLabel(ctx)
	archived["deletedFromIp"] = actorIP(ctx)
	archived["deleteReason"] = reason
	archived["deleteType"] = "single"
	archived["deleteCount"] = deleteCount + 1
	archived["originalDocId"] = docID

	if err := s.store.Set(ctx, ArchiveCollection, docID, archived, true); err != nil {
		return "", apperror.NewStore(err)
	}
	if err := s.store.Delete(ctx, Collection, docID); err != nil {
		// The archive copy exists; the live doc survived. Surface the
		// error so the operator retries rather than losing the entry.
		return "", apperror.NewStore(fmt.Errorf("remove live entry after archive: %w", err))
	}

	if s.audit != nil {
		target := d.String("pacNo")
		if target == "" {
			target = docID
		}
		s.audit.Log(ctx, audit.Entry{
			Action:      "PAC_DELETE",
			Module:      auditModule,
			TargetID:    target,
			Description: "PAC archived",
			After:       map[string]any{"deleteViewId": deleteViewID},
			Severity:    audit.SeverityCritical,
		})
	}

	s.log.Infow("pac entry archived", "doc_id", docID, "delete_view_id", deleteViewID)
	return deleteViewID, nil
}

// AllocateDeleteViewID atomically increments the delete counter and renders
// the next delete-view ID.
func (s *Service) AllocateDeleteViewID(ctx context.Context) (string, error) {
	var next int64
	err := s.store.Transact(ctx, func(tx docstore.Tx) error {
		next = 1
		counter, err := tx.Get(CounterCollection, CounterDocID)
		if err == nil {
			count, _ := counter.Int64("count")
			next = count + 1
		} else if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		tx.Set(CounterCollection, CounterDocID, map[string]any{"count": next})
		return nil
	})
	if err != nil {
		return "", apperror.NewStore(err)
	}

	if int(next) > s.format.Max() {
		return "", apperror.NewIDOverflow(int(next), s.format.Pad)
	}
	return s.format.Render(int(next)), nil
}

func amountOf(d docstore.Document) decimal.Decimal {
	switch v := d.Data["amount"].(type) {
	case string:
		if dec, err := decimal.NewFromString(v); err == nil {
			return dec
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	}
	return decimal.Zero
}

func actorLabel(ctx context.Context) string {
	if id := actor.ID(ctx); id != "" {
		return id
	}
	return "admin"
}

func actorIP(ctx context.Context) string {
	if a := actor.Get(ctx); a != nil && a.IP != "" {
		return a.IP
	}
	return "UNKNOWN"
}
