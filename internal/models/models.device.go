// FilePath: internal/models/models.device.go
package models

import (
	"strings"
	"time"
)

type MeterType string

const (
	MeterElectricity MeterType = "electricity"
	MeterGas         MeterType = "gas"
	MeterWater       MeterType = "water"
	MeterOther       MeterType = "other"
)

// ParseMeterType maps the API's meter type tag onto a known MeterType.
// Unknown or empty tags become MeterOther.
func ParseMeterType(s string) MeterType {
	switch MeterType(strings.ToLower(strings.TrimSpace(s))) {
	case MeterElectricity:
		return MeterElectricity
	case MeterGas:
		return MeterGas
	case MeterWater:
		return MeterWater
	default:
		return MeterOther
	}
}

// Device is a standard measuring device of an Energy Tracker account
type Device struct {
	ID            string     `json:"id" db:"id"`
	EntryID       string     `json:"entry_id,omitempty" db:"entry_id"`
	Name          string     `json:"name" db:"name"`
	MeterType     MeterType  `json:"meter_type" db:"meter_type"`
	MeterNumber   string     `json:"meter_number,omitempty" db:"meter_number"`
	FolderPath    string     `json:"folder_path,omitempty" db:"folder_path"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty" db:"last_updated_at"`
}

// Meter is the physical meter currently attached to a device
type Meter struct {
	ID     string `json:"id,omitempty"`
	Number string `json:"number,omitempty"`
	Unit   string `json:"unit,omitempty"`
	// DecimalPlaces is nil when the device does not define a precision.
	DecimalPlaces *int `json:"decimal_places,omitempty"`
}

// DeviceDetail is a Device together with its meter configuration
type DeviceDetail struct {
	Device
	Meter Meter `json:"meter"`
}
