// Package students manages institutional student records: listing, UID
// assignment, DOB normalization and the trash-safe delete flow. Records are
// never destroyed, only moved to the trash collection.
package students

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/audit"
	"pacadmin/pkg/logger"
)

const (
	// Collection holds live student records.
	Collection = "StudentsDetails"
	// TrashCollection receives deleted records for later restore.
	TrashCollection = "StudentsTrash"

	auditModule = "STUDENTS"

	// Volume thresholds for the monitor warnings.
	volumeWarn = 500
	volumeHigh = 1000
)

// Summary is the monitor-table projection of a student record.
type Summary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	UID          string `json:"studentUID,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Department   string `json:"department,omitempty"`
	CourseYear   string `json:"courseYear,omitempty"`
	DOB          string `json:"dob,omitempty"`
	DOBFormatted string `json:"dobFormatted,omitempty"`
	AdmittedOn   string `json:"admittedOn,omitempty"`
}

// Service provides student record administration.
type Service struct {
	store docstore.Store
	log   *logger.Logger
	audit *audit.Service
	now   func() time.Time
}

// NewService creates a student record service.
func NewService(store docstore.Store, log *logger.Logger, auditSvc *audit.Service) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		store: store,
		log:   log.WithComponent("students"),
		audit: auditSvc,
		now:   time.Now,
	}
}

// Get returns one full student record.
func (s *Service) Get(ctx context.Context, docID string) (docstore.Document, error) {
	d, err := s.store.Get(ctx, Collection, docID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return docstore.Document{}, apperror.NewNotFound("student", docID)
		}
		return docstore.Document{}, apperror.NewStore(err)
	}
	return d, nil
}

// List returns student summaries, most recent admission first. The volume
// warnings mirror the monitor thresholds.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return nil, apperror.NewStore(err)
	}

	switch total := len(docs); {
	case total > volumeHigh:
		s.log.Warnw("high student volume", "count", total)
	case total > volumeWarn:
		s.log.Warnw("student count crossed threshold", "count", total, "threshold", volumeWarn)
	}

	summaries := make([]Summary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, summarize(d))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].AdmittedOn > summaries[j].AdmittedOn
	})
	return summaries, nil
}

// Trash moves a student record to the trash collection with deletion
// markers, then removes the live document.
func (s *Service) Trash(ctx context.Context, docID string) error {
	d, err := s.Get(ctx, docID)
	if err != nil {
		return err
	}

	trashed := docstore.CloneData(d.Data)
	trashed["originalId"] = docID
	trashed["deletedAt"] = s.now().UnixMilli()
	trashed["deletedBy"] = actorLabel(ctx)

	if err := s.store.Set(ctx, TrashCollection, docID, trashed, true); err != nil {
		return apperror.NewStore(err)
	}
	if err := s.store.Delete(ctx, Collection, docID); err != nil {
		return apperror.NewStore(fmt.Errorf("remove live student after trash: %w", err))
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:      "STUDENT_TRASH",
			Module:      auditModule,
			TargetID:    targetOf(d, docID),
			Description: "student moved to trash",
			Severity:    audit.SeverityHigh,
		})
	}
	s.log.Infow("student moved to trash", "doc_id", docID)
	return nil
}

// Restore moves a trashed record back to the live collection, stripping
// the deletion markers.
func (s *Service) Restore(ctx context.Context, docID string) error {
	d, err := s.store.Get(ctx, TrashCollection, docID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperror.NewNotFound("trashed student", docID)
		}
		return apperror.NewStore(err)
	}

	restored := docstore.CloneData(d.Data)
	delete(restored, "originalId")
	delete(restored, "deletedAt")
	delete(restored, "deletedBy")
	restored["restoredAt"] = s.now().UnixMilli()
	restored["restoredBy"] = actorLabel(ctx)

	if err := s.store.Set(ctx, Collection, docID, restored, true); err != nil {
		return apperror.NewStore(err)
	}
	if err := s.store.Delete(ctx, TrashCollection, docID); err != nil {
		return apperror.NewStore(fmt.Errorf("remove trash copy after restore: %w", err))
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:      "STUDENT_RESTORE",
			Module:      auditModule,
			TargetID:    targetOf(d, docID),
			Description: "student restored from trash",
		})
	}
	s.log.Infow("student restored", "doc_id", docID)
	return nil
}

// ListTrash returns trashed student summaries, newest deletion first.
func (s *Service) ListTrash(ctx context.Context) ([]docstore.Document, error) {
	docs, err := s.store.List(ctx, TrashCollection)
	if err != nil {
		return nil, apperror.NewStore(err)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := docs[i].Int64("deletedAt")
		b, _ := docs[j].Int64("deletedAt")
		return a > b
	})
	return docs, nil
}

func summarize(d docstore.Document) Summary {
	name := d.String("name")
	if name == "" {
		name = d.String("studentName")
	}
	department := d.String("department")
	if department == "" {
		department = d.String("course")
	}
	dmy := d.String("DOB_DMY")
	if dmy == "" {
		dmy, _ = NormalizeDOB(d.String("DOB"))
	}
	return Summary{
		ID:           d.ID,
		Name:         name,
		UID:          d.String("studentUID"),
		Phone:        d.String("phone"),
		Department:   department,
		CourseYear:   d.String("CourseYear"),
		DOB:          d.String("DOB"),
		DOBFormatted: dmy,
		AdmittedOn:   d.String("DateofAdmission"),
	}
}

func targetOf(d docstore.Document, fallback string) string {
	if uid := d.String("studentUID"); uid != "" {
		return uid
	}
	return fallback
}

func actorLabel(ctx context.Context) string {
	if id := actor.ID(ctx); id != "" {
		return id
	}
	return "admin"
}
