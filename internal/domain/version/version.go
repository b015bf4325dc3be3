// Package version manages the dashboard version document and its
// restore-safe history.
package version

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/audit"
	"pacadmin/pkg/logger"
)

const (
	// SystemCollection holds singleton system documents.
	SystemCollection = "system"
	// VersionDocID is the live version document inside SystemCollection.
	VersionDocID = "version"
	// HistoryCollection stores immutable version snapshots.
	HistoryCollection = "system_version_history"

	auditModule = "version"
)

// Info is the live version document.
type Info struct {
	Version      string `json:"version"`
	BuildNumber  int64  `json:"buildNumber"`
	BuildTime    int64  `json:"buildTime"`
	Env          string `json:"env"`
	RestoredFrom string `json:"restoredFrom,omitempty"`
}

// Next returns the next patch version label.
func (i Info) Next() string {
	return nextVersion(i.Version)
}

// Service provides atomic version updates, history and restore.
type Service struct {
	store docstore.Store
	log   *logger.Logger
	audit *audit.Service
	env   string
	now   func() time.Time
}

// NewService creates a version service for the given environment.
func NewService(store docstore.Store, log *logger.Logger, auditSvc *audit.Service, env string) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		store: store,
		log:   log.WithComponent("version"),
		audit: auditSvc,
		env:   env,
		now:   time.Now,
	}
}

// Ensure creates the live version document if it does not exist yet.
func (s *Service) Ensure(ctx context.Context) error {
	_, err := s.store.Get(ctx, SystemCollection, VersionDocID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return apperror.NewStore(err)
	}

	now := s.now().UnixMilli()
	err = s.store.Set(ctx, SystemCollection, VersionDocID, map[string]any{
		"version":     "1.0.0",
		"buildNumber": int64(1),
		"buildTime":   now,
		"env":         s.env,
		"createdAt":   now,
	}, false)
	if err != nil {
		return apperror.NewStore(err)
	}

	s.log.Infow("version document created", "version", "1.0.0", "env", s.env)
	return nil
}

// Current returns the live version document.
func (s *Service) Current(ctx context.Context) (Info, error) {
	d, err := s.store.Get(ctx, SystemCollection, VersionDocID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Info{}, apperror.NewNotFound("version", VersionDocID)
		}
		return Info{}, apperror.NewStore(err)
	}
	return infoFromDocument(d), nil
}

// Publish atomically snapshots the live version into history and bumps the
// patch version and build number.
func (s *Service) Publish(ctx context.Context, changelog []string) (Info, error) {
	if err := s.Ensure(ctx); err != nil {
		return Info{}, err
	}

	by := actorLabel(ctx)
	at := s.now().UnixMilli()
	var published Info

	err := s.store.Transact(ctx, func(tx docstore.Tx) error {
		live, err := tx.Get(SystemCollection, VersionDocID)
		if err != nil {
			return fmt.Errorf("load live version: %w", err)
		}
		info := infoFromDocument(live)

		tx.Set(HistoryCollection, historyID(info.Version, info.BuildNumber, at),
			historySnapshot(info, "UPDATE", changelog, by, at))

		published = Info{
			Version:     info.Next(),
			BuildNumber: info.BuildNumber + 1,
			BuildTime:   at,
			Env:         info.Env,
		}
		return tx.Update(SystemCollection, VersionDocID, map[string]any{
			"version":     published.Version,
			"buildNumber": published.BuildNumber,
			"buildTime":   published.BuildTime,
			"lastUpdate": map[string]any{
				"by": by,
				"at": at,
			},
		})
	})
	if err != nil {
		return Info{}, apperror.NewStore(err)
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:      "VERSION_UPDATE",
			Module:      auditModule,
			TargetID:    published.Version,
			Description: strings.Join(changelog, "; "),
		})
	}
	s.log.Infow("version published", "version", published.Version, "build", published.BuildNumber)
	return published, nil
}

// Restore sets the live version back to a history snapshot. The current live
// state is itself snapshotted first, so a restore is always reversible.
func (s *Service) Restore(ctx context.Context, historyDocID string) (Info, error) {
	if !canManage(ctx) {
		return Info{}, apperror.NewForbidden("version restore requires an admin role")
	}

	by := actorLabel(ctx)
	at := s.now().UnixMilli()
	var restored Info

	err := s.store.Transact(ctx, func(tx docstore.Tx) error {
		hist, err := tx.Get(HistoryCollection, historyDocID)
		if err != nil {
			return apperror.NewNotFound("version history", historyDocID)
		}
		if hist.Bool("deleted") {
			return apperror.NewBusinessRule("HISTORY_DELETED", "cannot restore a deleted history entry")
		}
		if hist.Bool("lockRestore") {
			return apperror.NewBusinessRule("RESTORE_LOCKED", "history entry is locked against restore")
		}

		live, err := tx.Get(SystemCollection, VersionDocID)
		if err != nil {
			return fmt.Errorf("load live version: %w", err)
		}
		info := infoFromDocument(live)

		tx.Set(HistoryCollection, historyID(info.Version, info.BuildNumber, at),
			historySnapshot(info, "RESTORE_BACKUP", nil, by, at))

		target := infoFromDocument(hist)
		restored = Info{
			Version:      target.Version,
			BuildNumber:  target.BuildNumber,
			BuildTime:    at,
			Env:          info.Env,
			RestoredFrom: historyDocID,
		}
		return tx.Update(SystemCollection, VersionDocID, map[string]any{
			"version":      restored.Version,
			"buildNumber":  restored.BuildNumber,
			"buildTime":    restored.BuildTime,
			"restoredFrom": historyDocID,
		})
	})
	if err != nil {
		if apperror.IsAppError(err) {
			return Info{}, err
		}
		return Info{}, apperror.NewStore(err)
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:   "VERSION_RESTORE",
			Module:   auditModule,
			TargetID: historyDocID,
			Severity: audit.SeverityHigh,
		})
	}
	s.log.Infow("version restored", "version", restored.Version, "from", historyDocID)
	return restored, nil
}

// DeleteHistory soft-deletes a history entry. The entry matching the live
// version cannot be deleted.
func (s *Service) DeleteHistory(ctx context.Context, historyDocID string) error {
	if !canManage(ctx) {
		return apperror.NewForbidden("version history delete requires an admin role")
	}

	hist, err := s.store.Get(ctx, HistoryCollection, historyDocID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperror.NewNotFound("version history", historyDocID)
		}
		return apperror.NewStore(err)
	}

	live, err := s.Current(ctx)
	if err != nil {
		return err
	}
	entry := infoFromDocument(hist)
	if entry.Version == live.Version && entry.BuildNumber == live.BuildNumber {
		return apperror.NewConflict("cannot delete the live version entry")
	}

	err = s.store.Update(ctx, HistoryCollection, historyDocID, map[string]any{
		"deleted":   true,
		"deletedAt": s.now().UnixMilli(),
		"deletedBy": actorLabel(ctx),
	})
	if err != nil {
		return apperror.NewStore(err)
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:   "VERSION_HISTORY_DELETE",
			Module:   auditModule,
			TargetID: historyDocID,
		})
	}
	return nil
}

// History returns non-deleted history entries, newest first.
func (s *Service) History(ctx context.Context) ([]docstore.Document, error) {
	docs, err := s.store.List(ctx, HistoryCollection)
	if err != nil {
		return nil, apperror.NewStore(err)
	}

	kept := docs[:0]
	for _, d := range docs {
		if !d.Bool("deleted") {
			kept = append(kept, d)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, _ := kept[i].Int64("savedAt")
		b, _ := kept[j].Int64("savedAt")
		if a != b {
			return a > b
		}
		// Publishes in the same millisecond tie on savedAt; the build
		// number is strictly increasing and breaks the tie.
		ab, _ := kept[i].Int64("buildNumber")
		bb, _ := kept[j].Int64("buildNumber")
		return ab > bb
	})
	return kept, nil
}

func historySnapshot(info Info, action string, changelog []string, by string, at int64) map[string]any {
	entries := make([]any, len(changelog))
	for i, c := range changelog {
		entries[i] = c
	}
	return map[string]any{
		"version":     info.Version,
		"buildNumber": info.BuildNumber,
		"buildTime":   info.BuildTime,
		"env":         info.Env,
		"action":      action,
		"changelog":   entries,
		"savedAt":     at,
		"savedBy":     by,
		"deleted":     false,
		"lockRestore": false,
	}
}

func infoFromDocument(d docstore.Document) Info {
	build, _ := d.Int64("buildNumber")
	buildTime, _ := d.Int64("buildTime")
	return Info{
		Version:      d.String("version"),
		BuildNumber:  build,
		BuildTime:    buildTime,
		Env:          d.String("env"),
		RestoredFrom: d.String("restoredFrom"),
	}
}

// nextVersion bumps the patch component, tolerating malformed labels.
func nextVersion(v string) string {
	if v == "" {
		v = "1.0.0"
	}
	parts := strings.Split(v, ".")
	nums := [3]int{1, 0, 0}
	for i := 0; i < 3 && i < len(parts); i++ {
		if n, err := strconv.Atoi(parts[i]); err == nil {
			nums[i] = n
		} else if i > 0 {
			nums[i] = 0
		}
	}
	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]+1)
}

func historyID(version string, build int64, at int64) string {
	return fmt.Sprintf("v%s__build_%d__%d", version, build, at)
}

func actorLabel(ctx context.Context) string {
	if id := actor.ID(ctx); id != "" {
		return id
	}
	return "admin"
}

func canManage(ctx context.Context) bool {
	return actor.HasRole(ctx, "admin") || actor.HasRole(ctx, "superadmin")
}
