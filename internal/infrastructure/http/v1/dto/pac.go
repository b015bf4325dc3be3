package dto

// EditAmountRequest corrects a PAC entry amount. Amount is a decimal
// string to avoid float drift in transit.
type EditAmountRequest struct {
	Amount string `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// ArchiveRequest archives (soft-deletes) a PAC entry.
type ArchiveRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ArchiveResponse returns the allocated delete-view ID.
type ArchiveResponse struct {
	DeleteViewID string `json:"deleteViewId"`
}
