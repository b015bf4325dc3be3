// Package registry provides the delete-ID reconciliation engine: it ingests
// live snapshots of the delete log, detects delete-view ID collisions, plans
// and executes remediation, and guards the whole process with a quarantine
// threshold and an advisory lock.
package registry

import (
	"time"

	"pacadmin/internal/docstore"
)

// Collection is the delete-log collection in the document store.
const Collection = "delete_pac"

// LockName is the advisory lock guarding remediation writes.
const LockName = "delete_fix"

// FixMode records which remediation entry point produced a fix.
type FixMode string

const (
	FixModeSingle FixMode = "single"
	FixModeBulk   FixMode = "bulk"
	FixModeGlobal FixMode = "global"
)

// ComplianceReason is stamped on every remediation write.
const ComplianceReason = "duplicate-resolution"

// Record is one archived deletion event.
//
// Only the fields reconciliation touches are typed; everything else the
// upstream delete flow wrote (amounts, references, device info) rides along
// in Extra and round-trips untouched.
type Record struct {
	// DocID is the store-assigned identity: stable, unique, immutable.
	DocID string

	// PacNo is the business key of the deleted entry. Not unique across
	// records: a PAC can be deleted, restored and deleted again.
	PacNo string

	// DeleteViewID is the human-facing identifier under reconciliation.
	DeleteViewID string

	// DeletedAtTimestamp is epoch millis of the deletion, 0 when absent.
	DeletedAtTimestamp int64

	// Remediation provenance, present only on fixed records.
	FixMode          string
	PreviousDeleteID string
	FixedBy          string
	FixedAt          int64

	// Extra carries all remaining document fields.
	Extra map[string]any
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// DeletedAt returns the deletion time, or zero time when unknown.
func (r Record) DeletedAt() time.Time {
	if r.DeletedAtTimestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.DeletedAtTimestamp)
}

// recordFromDocument parses a document field by field. Malformed fields are
// dropped, never fatal: one bad record must not abort ingestion of the rest.
func recordFromDocument(d docstore.Document) Record {
	r := Record{
		DocID:            d.ID,
		PacNo:            d.String("pacNo"),
		DeleteViewID:     d.String("deleteViewId"),
		FixMode:          d.String("fixMode"),
		PreviousDeleteID: d.String("previousDeleteId"),
		FixedBy:          d.String("fixedBy"),
		Extra:            make(map[string]any),
	}
	if ts, ok := d.Int64("deletedAtTimestamp"); ok {
		r.DeletedAtTimestamp = ts
	}
	if ts, ok := d.Int64("fixedAt"); ok {
		r.FixedAt = ts
	}

	for k, v := range d.Data {
		switch k {
		case "pacNo", "deleteViewId", "deletedAtTimestamp",
			"fixMode", "previousDeleteId", "fixedBy", "fixedAt":
		default:
			r.Extra[k] = v
		}
	}
	return r
}

// clone deep-copies a record for the snapshot cache.
func (r Record) clone() Record {
	c := r
	c.Extra = docstore.CloneData(r.Extra)
	return c
}

// Job is a planned (old ID → new ID) reassignment for one record. Jobs are
// keyed by DocID, not PacNo, to avoid aliasing when legacy records share a
// business key.
type Job struct {
	DocID string `json:"docId"`
	PacNo string `json:"pacNo"`
	OldID string `json:"oldId"`
	NewID string `json:"newId"`
}

// Report is the outcome of one remediation run. Silent partial success is
// disallowed: every run reports explicit counts.
type Report struct {
	Mode    FixMode `json:"mode"`
	DryRun  bool    `json:"dryRun"`
	Fixed   int     `json:"fixed"`
	Skipped int     `json:"skipped"`
	Failed  int     `json:"failed"`

	// Jobs is the would-be job list, populated on dry runs only.
	Jobs []Job `json:"jobs,omitempty"`
}

// Stats are the derived counters published to the presentation layer on
// every snapshot.
type Stats struct {
	Total           int    `json:"total"`
	DuplicateGroups int    `json:"duplicateGroups"`
	Health          int    `json:"health"`
	Quarantined     bool   `json:"quarantined"`
	LastDeletedID   string `json:"lastDeletedId,omitempty"`
	LastDeletedAt   int64  `json:"lastDeletedAt,omitempty"`
}

// DuplicateGroup is one delete-view ID shared by Count records.
type DuplicateGroup struct {
	DeleteViewID string `json:"deleteViewId"`
	Count        int    `json:"count"`
}

// Observer receives derived counters after every ingestion. Implementations
// must not call back into the engine synchronously.
type Observer func(Stats)
