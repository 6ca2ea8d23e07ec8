// FilePath: internal/models/models.entry.go
package models

import "time"

// Entry is one configured Energy Tracker account
type Entry struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	APIToken  string    `json:"-" db:"api_token"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TokenPrefix is the part of the token that may appear in issue ids and logs
func (e *Entry) TokenPrefix() string {
	if len(e.APIToken) <= 8 {
		return e.APIToken
	}
	return e.APIToken[:8]
}

// EntryStatus is the runtime view of an entry
type EntryStatus struct {
	Entry             *Entry     `json:"entry"`
	Running           bool       `json:"running"`
	DeviceCount       int        `json:"device_count"`
	LastUpdateSuccess bool       `json:"last_update_success"`
	LastRefreshedAt   *time.Time `json:"last_refreshed_at,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
	// ReauthRequired is set while the last cycle failed on a rejected token
	ReauthRequired bool `json:"reauth_required"`
}
