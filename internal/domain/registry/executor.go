package registry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
	"pacadmin/pkg/logger"
)

var tracer = otel.Tracer("pacadmin/registry")

// FixRecord remediates one queued record.
func (e *Engine) FixRecord(ctx context.Context, docID string, confirm bool) (Report, error) {
	e.mu.Lock()
	job, ok := e.fixQueue[docID]
	e.mu.Unlock()
	if !ok {
		return Report{}, apperror.NewNotFound("remediation job", docID)
	}
	return e.run(ctx, FixModeSingle, []Job{job}, confirm)
}

// FixGroup remediates every queued record sharing one duplicated ID.
func (e *Engine) FixGroup(ctx context.Context, deleteViewID string, confirm bool) (Report, error) {
	e.mu.Lock()
	var jobs []Job
	for _, id := range e.queueOrder {
		if j := e.fixQueue[id]; j.OldID == deleteViewID {
			jobs = append(jobs, j)
		}
	}
	e.mu.Unlock()

	if len(jobs) == 0 {
		return Report{}, apperror.NewNoJobs(deleteViewID)
	}
	return e.run(ctx, FixModeBulk, jobs, confirm)
}

// FixAll remediates every queued job system-wide. An empty queue is a
// successful no-op rather than an error, which makes a repeated global pass
// idempotent.
func (e *Engine) FixAll(ctx context.Context, confirm bool) (Report, error) {
	e.mu.Lock()
	jobs := make([]Job, 0, len(e.queueOrder))
	for _, id := range e.queueOrder {
		jobs = append(jobs, e.fixQueue[id])
	}
	e.mu.Unlock()

	if len(jobs) == 0 {
		return Report{Mode: FixModeGlobal}, nil
	}
	return e.run(ctx, FixModeGlobal, jobs, confirm)
}

// run executes one remediation batch. The job list is captured by the caller
// before any store call, so a snapshot arriving mid-batch cannot swap the
// queue under the loop.
func (e *Engine) run(ctx context.Context, mode FixMode, jobs []Job, confirm bool) (Report, error) {
	e.mu.Lock()
	if e.stats.Quarantined {
		ratio := float64(e.stats.DuplicateGroups) / float64(max(e.stats.Total, 1))
		e.mu.Unlock()
		return Report{}, apperror.NewQuarantined(ratio)
	}
	if e.planErr != nil {
		err := e.planErr
		e.mu.Unlock()
		return Report{}, err
	}
	if e.cfg.DryRun {
		e.mu.Unlock()
		return Report{Mode: mode, DryRun: true, Jobs: jobs}, nil
	}
	if !confirm {
		e.mu.Unlock()
		return Report{}, apperror.NewConfirmationRequired(string(mode))
	}
	if e.fixInProgress {
		e.mu.Unlock()
		return Report{}, apperror.NewFixInProgress()
	}
	e.fixInProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.fixInProgress = false
		e.mu.Unlock()
	}()

	ctx, span := tracer.Start(ctx, "registry.remediate")
	defer span.End()
	span.SetAttributes(
		attribute.String("fix.mode", string(mode)),
		attribute.Int("fix.jobs", len(jobs)),
	)

	token, err := e.locks.Acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock acquisition failed")
		return Report{}, err
	}
	// Release even if a store implementation panics mid-batch, so a crash
	// does not hold the lock until the TTL runs out.
	defer func() {
		if relErr := e.locks.Release(ctx, token); relErr != nil {
			logger.Warn(ctx, "lock release failed", "error", relErr)
		}
	}()

	report := e.applyJobs(ctx, mode, jobs)

	span.SetAttributes(
		attribute.Int("fix.fixed", report.Fixed),
		attribute.Int("fix.skipped", report.Skipped),
		attribute.Int("fix.failed", report.Failed),
	)
	logger.Info(ctx, "remediation completed",
		"mode", mode,
		"fixed", report.Fixed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// applyJobs writes one job after another. A per-record write failure counts
// as failed and the batch continues: one bad record must not strand the rest.
func (e *Engine) applyJobs(ctx context.Context, mode FixMode, jobs []Job) Report {
	report := Report{Mode: mode}
	fixedBy := actor.ID(ctx)
	if fixedBy == "" {
		fixedBy = "admin"
	}

	for _, job := range jobs {
		if job.DocID == "" || e.alreadyApplied(job) {
			report.Skipped++
			continue
		}

		fields := map[string]any{
			"deleteViewId":     job.NewID,
			"fixedAt":          nowMillis(),
			"fixedBy":          fixedBy,
			"fixMode":          string(mode),
			"previousDeleteId": job.OldID,
			"deleteIdMeta": map[string]any{
				"version":  1,
				"previous": job.OldID,
			},
			"compliance": map[string]any{
				"reason":        ComplianceReason,
				"authority":     fixedBy,
				"policyVersion": e.cfg.PolicyVersion,
				"jurisdiction":  e.cfg.Jurisdiction,
			},
		}
		if err := e.store.Update(ctx, e.cfg.Collection, job.DocID, fields); err != nil {
			report.Failed++
			logger.Error(ctx, "fix write failed",
				"doc_id", job.DocID,
				"old_id", job.OldID,
				"new_id", job.NewID,
				"error", err,
			)
			continue
		}
		report.Fixed++
	}
	return report
}

// alreadyApplied re-validates a job against the current snapshot: a no-op
// (proposed ID already current, or record gone) is skipped, which is what
// makes re-running remediation after a partial failure safe.
func (e *Engine) alreadyApplied(job Job) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.snapshotCache[job.DocID]
	if !ok {
		return true
	}
	return rec.DeleteViewID == job.NewID
}
