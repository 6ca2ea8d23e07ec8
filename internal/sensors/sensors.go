// FilePath: internal/sensors/sensors.go
package sensors

import (
	"sort"
	"strconv"
	"time"

	"github.com/itsatony/etbridge/internal/models"
)

const (
	StatusActive     = "active"
	StatusNoReadings = "no_readings"

	Manufacturer     = "Energy Tracker"
	Model            = "Standard Measuring Device"
	ConfigurationURL = "https://www.energy-tracker.best-ios-apps.de"
	Attribution      = "Data provided by Energy Tracker"

	displayPrecision = 2
)

var kindTitles = map[models.SensorKind]string{
	models.SensorDeviceStatus:  "Device Status",
	models.SensorLatestReading: "Latest Reading",
	models.SensorLastUpdated:   "Last Updated",
}

var uniqueSuffixes = map[models.SensorKind]string{
	models.SensorDeviceStatus:  "_status",
	models.SensorLatestReading: "_latest_reading",
	models.SensorLastUpdated:   "_last_updated",
}

// UniqueID is the stable id of a device's sensor
func UniqueID(deviceID string, kind models.SensorKind) string {
	return deviceID + uniqueSuffixes[kind]
}

// Kinds lists the sensors created for every device, in creation order
func Kinds() []models.SensorKind {
	return []models.SensorKind{models.SensorDeviceStatus, models.SensorLatestReading, models.SensorLastUpdated}
}

// Build derives the sensor states of all devices in snap. Entity ids are
// taken from reg, which keeps them stable across refreshes.
func Build(snap *models.Snapshot, reg *EntityRegistry) []models.SensorState {
	assignIDs(snap, reg)
	states := make([]models.SensorState, 0, len(snap.Devices)*3)
	for _, ds := range snap.Ordered() {
		states = append(states,
			DeviceStatus(ds, reg),
			LatestReading(ds, reg),
			LastUpdated(ds, reg),
		)
	}
	return states
}

// assignIDs reserves entity ids in device id order, so colliding slugs get
// their _2, _3 suffixes by id rather than by display name.
func assignIDs(snap *models.Snapshot, reg *EntityRegistry) {
	if snap == nil {
		return
	}
	ids := make([]string, 0, len(snap.Devices))
	for id := range snap.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ds := snap.Devices[id]
		for _, kind := range Kinds() {
			reg.Assign(UniqueID(ds.Device.ID, kind), entityBase(ds.Device.Name, kind))
		}
	}
}

func entityBase(name string, kind models.SensorKind) string {
	return "sensor." + Slugify(name) + "_" + string(kind)
}

func base(ds models.DeviceState, kind models.SensorKind, reg *EntityRegistry) models.SensorState {
	uid := UniqueID(ds.Device.ID, kind)
	return models.SensorState{
		EntityID: reg.Assign(uid, entityBase(ds.Device.Name, kind)),
		UniqueID: uid,
		DeviceID: ds.Device.ID,
		Kind:     kind,
		Attributes: map[string]any{
			"friendly_name": ds.Device.Name + " " + kindTitles[kind],
			"attribution":   Attribution,
			"device": map[string]any{
				"identifiers":       []string{ds.Device.ID},
				"name":              ds.Device.Name,
				"manufacturer":      Manufacturer,
				"model":             Model,
				"configuration_url": ConfigurationURL,
			},
		},
	}
}

// DeviceStatus is "active" when the device has a reading, else "no_readings"
func DeviceStatus(ds models.DeviceState, reg *EntityRegistry) models.SensorState {
	s := base(ds, models.SensorDeviceStatus, reg)
	s.State = StatusNoReadings
	if ds.HasReading() {
		s.State = StatusActive
	}

	attrs := s.Attributes
	attrs["icon"] = "mdi:information"
	attrs["entity_category"] = "diagnostic"
	attrs["device_id"] = ds.Device.ID
	if ds.Device.FolderPath != "" {
		attrs["folder_path"] = ds.Device.FolderPath
	}
	if ds.Device.LastUpdatedAt != nil {
		attrs["last_updated_at"] = formatTime(*ds.Device.LastUpdatedAt)
	}
	if r := ds.LatestReading; r != nil {
		if r.MeterID != "" {
			attrs["meter_id"] = r.MeterID
		}
		if r.MeterNumber != "" {
			attrs["meter_number"] = r.MeterNumber
		}
	}
	if _, ok := attrs["meter_number"]; !ok && ds.Device.MeterNumber != "" {
		attrs["meter_number"] = ds.Device.MeterNumber
	}
	return s
}

// LatestReading carries the reading value, classed by the device's meter type
func LatestReading(ds models.DeviceState, reg *EntityRegistry) models.SensorState {
	s := base(ds, models.SensorLatestReading, reg)
	class := ClassFor(ds.Device.MeterType)

	attrs := s.Attributes
	attrs["state_class"] = class.StateClass
	attrs["suggested_display_precision"] = displayPrecision
	attrs["icon"] = class.Icon
	if class.DeviceClass != "" {
		attrs["device_class"] = class.DeviceClass
	}
	unit := class.Unit
	if r := ds.LatestReading; r != nil && r.Unit != "" {
		unit = r.Unit
	}
	if unit != "" {
		attrs["unit_of_measurement"] = unit
	}

	s.State = models.StateUnknown
	r := ds.LatestReading
	if r == nil {
		return s
	}
	if r.Value != nil {
		s.State = strconv.FormatFloat(*r.Value, 'f', -1, 64)
	}
	attrs["timestamp"] = formatTime(r.Timestamp)
	if r.RolloverOffset != nil {
		attrs["rollover_offset"] = *r.RolloverOffset
	}
	if r.Note != nil {
		attrs["note"] = *r.Note
	}
	return s
}

// LastUpdated is the reading's timestamp, falling back to the device's lastUpdatedAt
func LastUpdated(ds models.DeviceState, reg *EntityRegistry) models.SensorState {
	s := base(ds, models.SensorLastUpdated, reg)
	s.Attributes["device_class"] = DeviceClassTimestamp
	s.Attributes["entity_category"] = "diagnostic"
	s.Attributes["icon"] = "mdi:clock-outline"

	switch {
	case ds.LatestReading != nil && !ds.LatestReading.Timestamp.IsZero():
		s.State = formatTime(ds.LatestReading.Timestamp)
	case ds.Device.LastUpdatedAt != nil:
		s.State = formatTime(*ds.Device.LastUpdatedAt)
	default:
		s.State = models.StateUnknown
	}
	return s
}

// Unavailable returns copies of states with their state set to "unavailable"
func Unavailable(states []models.SensorState) []models.SensorState {
	out := make([]models.SensorState, len(states))
	for i, s := range states {
		s.State = models.StateUnavailable
		out[i] = s
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
