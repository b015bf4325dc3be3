package dto

import "pacadmin/internal/domain/registry"

// RegistryStatusResponse reports the current registry state.
type RegistryStatusResponse struct {
	Stats     registry.Stats `json:"stats"`
	QueueSize int            `json:"queueSize"`
}

// DuplicateGroupResponse is one duplicate ID plus its member records.
type DuplicateGroupResponse struct {
	DeleteViewID string           `json:"deleteViewId"`
	Count        int              `json:"count"`
	Records      []RecordResponse `json:"records,omitempty"`
}

// RecordResponse is the API view of an archived delete record.
type RecordResponse struct {
	DocID              string `json:"docId"`
	PacNo              string `json:"pacNo"`
	DeleteViewID       string `json:"deleteViewId"`
	DeletedAtTimestamp int64  `json:"deletedAtTimestamp,omitempty"`
	FixMode            string `json:"fixMode,omitempty"`
	PreviousDeleteID   string `json:"previousDeleteId,omitempty"`
}

// FromRecord maps a registry record to its API view.
func FromRecord(r registry.Record) RecordResponse {
	return RecordResponse{
		DocID:              r.DocID,
		PacNo:              r.PacNo,
		DeleteViewID:       r.DeleteViewID,
		DeletedAtTimestamp: r.DeletedAtTimestamp,
		FixMode:            string(r.FixMode),
		PreviousDeleteID:   r.PreviousDeleteID,
	}
}

// FixRequest confirms a remediation run.
type FixRequest struct {
	Confirm bool `json:"confirm"`
}

// RollbackRequest identifies the record to roll back, by document ID or
// PAC number.
type RollbackRequest struct {
	Key string `json:"key" binding:"required"`
}
