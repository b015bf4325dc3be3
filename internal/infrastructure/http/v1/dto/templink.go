package dto

// CreateTempLinkRequest issues a new temp link bound to a client
// fingerprint.
type CreateTempLinkRequest struct {
	Fingerprint string `json:"fingerprint" binding:"required"`
}

// CreateTempLinkResponse returns the issued token.
type CreateTempLinkResponse struct {
	Token string `json:"token"`
}

// AccessTempLinkRequest validates a presented token.
type AccessTempLinkRequest struct {
	Fingerprint string         `json:"fingerprint" binding:"required"`
	ReloadCount int64          `json:"reloadCount"`
	ClientInfo  map[string]any `json:"clientInfo,omitempty"`
}
