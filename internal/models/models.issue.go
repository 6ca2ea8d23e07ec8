// FilePath: internal/models/models.issue.go
package models

import "time"

type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
)

// Issue is a repair issue shown to the user until the entry is fixed
type Issue struct {
	ID             string        `json:"id"`
	EntryID        string        `json:"entry_id"`
	TranslationKey string        `json:"translation_key"`
	Severity       IssueSeverity `json:"severity"`
	IsFixable      bool          `json:"is_fixable"`
	UpstreamStatus int           `json:"upstream_status,omitempty"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	CreatedAt      time.Time     `json:"created_at"`
}
