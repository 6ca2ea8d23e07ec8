// FilePath: internal/models/models.homeassistant.go
package models

import "time"

const (
	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
)

// HAState is an entity state as served by Home Assistant's /api/states
type HAState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged *time.Time     `json:"last_changed,omitempty"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
}

// Timestamp returns last_updated, falling back to last_changed
func (s *HAState) Timestamp() (time.Time, bool) {
	if s.LastUpdated != nil && !s.LastUpdated.IsZero() {
		return *s.LastUpdated, true
	}
	if s.LastChanged != nil && !s.LastChanged.IsZero() {
		return *s.LastChanged, true
	}
	return time.Time{}, false
}

type SensorKind string

const (
	SensorDeviceStatus  SensorKind = "device_status"
	SensorLatestReading SensorKind = "latest_reading"
	SensorLastUpdated   SensorKind = "last_updated"
)

// SensorState is the flat state of one entity as pushed to Home Assistant
type SensorState struct {
	EntityID   string         `json:"entity_id"`
	UniqueID   string         `json:"unique_id"`
	DeviceID   string         `json:"device_id"`
	Kind       SensorKind     `json:"kind"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}
