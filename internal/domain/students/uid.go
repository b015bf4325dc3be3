package students

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"pacadmin/internal/core/apperror"
	"pacadmin/internal/docstore"
	"pacadmin/internal/domain/audit"
)

var uidPattern = regexp.MustCompile(`^\d{6}$`)

// FormatUID renders a numeric UID as a zero-padded 6-digit string.
func FormatUID(n int) string {
	return fmt.Sprintf("%06d", n)
}

// ValidUID reports whether the value is a well-formed student UID.
func ValidUID(uid string) bool {
	return uidPattern.MatchString(uid)
}

// PreviewUIDs returns the UID each student without one would receive,
// keyed by document ID. Nothing is written: the map is the same allocation
// GenerateUIDs would perform, so operators can inspect it first.
func (s *Service) PreviewUIDs(ctx context.Context) (map[string]string, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return nil, apperror.NewStore(err)
	}
	preview, _ := allocateUIDs(docs)
	return preview, nil
}

// GenerateUIDs assigns a fresh UID to every student missing one, counting
// up from the highest UID already present. Existing UIDs are never
// overwritten. Records whose DOB is not yet normalized get a DOB_DMY field
// in the same pass. Returns the number of students that received a UID.
func (s *Service) GenerateUIDs(ctx context.Context) (int, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return 0, apperror.NewStore(err)
	}

	assignments, order := allocateUIDs(docs)
	byID := make(map[string]docstore.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	now := s.now().UnixMilli()
	generated := 0
	for _, docID := range order {
		updates := map[string]any{
			"studentUID":     assignments[docID],
			"uidGeneratedAt": now,
		}

		d := byID[docID]
		if !IsDMY(d.String("DOB_DMY")) {
			if dmy, ok := NormalizeDOB(d.String("DOB")); ok {
				updates["DOB_DMY"] = dmy
				updates["dobUpdatedAt"] = now
			}
		}

		if err := s.store.Update(ctx, Collection, docID, updates); err != nil {
			// Partial progress stands; the next run resumes from the new max.
			return generated, apperror.NewStore(fmt.Errorf("assign uid to %s: %w", docID, err))
		}
		generated++
	}

	if s.audit != nil && generated > 0 {
		s.audit.Log(ctx, audit.Entry{
			Action:      "STUDENT_UID_GENERATE",
			Module:      auditModule,
			Description: fmt.Sprintf("%d student UIDs generated", generated),
			After:       map[string]any{"generated": generated},
		})
	}

	s.log.Infow("student uids generated", "count", generated)
	return generated, nil
}

// NormalizeDOBs rewrites every unformatted DOB to DD-MM-YYYY. Records that
// already carry a well-formed DOB_DMY are left alone. Returns the number of
// records updated.
func (s *Service) NormalizeDOBs(ctx context.Context) (int, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return 0, apperror.NewStore(err)
	}

	now := s.now().UnixMilli()
	updated := 0
	for _, d := range docs {
		if d.String("DOB") == "" || IsDMY(d.String("DOB_DMY")) {
			continue
		}
		dmy, ok := NormalizeDOB(d.String("DOB"))
		if !ok {
			continue
		}
		err := s.store.Update(ctx, Collection, d.ID, map[string]any{
			"DOB_DMY":      dmy,
			"dobUpdatedAt": now,
		})
		if err != nil {
			return updated, apperror.NewStore(fmt.Errorf("normalize dob for %s: %w", d.ID, err))
		}
		updated++
	}

	if s.audit != nil && updated > 0 {
		s.audit.Log(ctx, audit.Entry{
			Action:      "STUDENT_DOB_NORMALIZE",
			Module:      auditModule,
			Description: fmt.Sprintf("DOB normalized for %d students", updated),
			After:       map[string]any{"updated": updated},
		})
	}
	return updated, nil
}

// allocateUIDs plans UID assignments for students lacking one, starting
// past the maximum well-formed UID in the collection. The returned order is
// deterministic (document ID ascending) so preview and generate agree.
func allocateUIDs(docs []docstore.Document) (map[string]string, []string) {
	max := 0
	var missing []string
	for _, d := range docs {
		uid := d.String("studentUID")
		if uid == "" {
			missing = append(missing, d.ID)
			continue
		}
		if ValidUID(uid) {
			if n := atoi(uid); n > max {
				max = n
			}
		}
	}
	sort.Strings(missing)

	assignments := make(map[string]string, len(missing))
	counter := max
	for _, id := range missing {
		counter++
		assignments[id] = FormatUID(counter)
	}
	return assignments, missing
}
