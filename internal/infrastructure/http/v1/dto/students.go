package dto

// UIDPreviewResponse maps each student document missing a UID to the ID a
// generate run would assign.
type UIDPreviewResponse struct {
	Assignments map[string]string `json:"assignments"`
	Pending     int               `json:"pending"`
}

// BulkUpdateResponse reports how many records a bulk operation touched.
type BulkUpdateResponse struct {
	Updated int `json:"updated"`
}
