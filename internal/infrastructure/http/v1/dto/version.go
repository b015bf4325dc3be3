package dto

// PublishVersionRequest bumps the dashboard version.
type PublishVersionRequest struct {
	Changelog []string `json:"changelog"`
}
