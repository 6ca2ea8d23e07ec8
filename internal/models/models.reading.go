// FilePath: internal/models/models.reading.go
package models

import "time"

// Reading is the most recent meter reading of a device
type Reading struct {
	DeviceID string `json:"device_id"`
	// Value is nil when the API delivered something that is not a number.
	Value          *float64  `json:"value"`
	Unit           string    `json:"unit,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Note           *string   `json:"note,omitempty"`
	RolloverOffset *float64  `json:"rollover_offset,omitempty"`
	MeterID        string    `json:"meter_id,omitempty"`
	MeterNumber    string    `json:"meter_number,omitempty"`
}

// ReadingSubmission is a value sent to a device's meter-readings endpoint
type ReadingSubmission struct {
	DeviceID      string    `json:"device_id"`
	Value         float64   `json:"value"`
	Timestamp     time.Time `json:"timestamp"`
	AllowRounding bool      `json:"allow_rounding"`
}
