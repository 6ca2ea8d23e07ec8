package sensors

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

var (
	deviceTime  = time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)
	readingTime = time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
)

func snapshot() *models.Snapshot {
	return &models.Snapshot{
		EntryID: "entry-1",
		Devices: map[string]models.DeviceState{
			"dev-1": {
				Device: models.Device{ID: "dev-1", Name: "Main Meter", MeterType: models.MeterElectricity, FolderPath: "/Home/", LastUpdatedAt: &deviceTime},
				LatestReading: &models.Reading{
					DeviceID: "dev-1", Value: ptr(1234.56), Timestamp: readingTime,
					RolloverOffset: ptr(0.0), Note: ptr("manual"), MeterID: "meter-1", MeterNumber: "A-1",
				},
			},
			"dev-2": {
				Device: models.Device{ID: "dev-2", Name: "Gas", MeterType: models.MeterGas, LastUpdatedAt: &deviceTime},
			},
		},
	}
}

func find(states []models.SensorState, uid string) models.SensorState {
	for _, s := range states {
		if s.UniqueID == uid {
			return s
		}
	}
	return models.SensorState{}
}

func TestBuildCreatesThreeEntitiesPerDevice(t *testing.T) {
	states := Build(snapshot(), NewEntityRegistry())
	require.Len(t, states, 6)

	ids := map[string]bool{}
	for _, s := range states {
		ids[s.EntityID] = true
	}
	for _, id := range []string{
		"sensor.main_meter_device_status", "sensor.main_meter_latest_reading", "sensor.main_meter_last_updated",
		"sensor.gas_device_status", "sensor.gas_latest_reading", "sensor.gas_last_updated",
	} {
		assert.True(t, ids[id], id)
	}
}

func TestStatusIsExclusiveWithReading(t *testing.T) {
	states := Build(snapshot(), NewEntityRegistry())

	withReading := find(states, "dev-1_status")
	assert.Equal(t, StatusActive, withReading.State)
	assert.Equal(t, "meter-1", withReading.Attributes["meter_id"])
	assert.Equal(t, "A-1", withReading.Attributes["meter_number"])
	assert.Equal(t, "/Home/", withReading.Attributes["folder_path"])

	without := find(states, "dev-2_status")
	assert.Equal(t, StatusNoReadings, without.State)
	assert.NotContains(t, without.Attributes, "meter_id")
	assert.NotContains(t, without.Attributes, "folder_path")
	assert.Equal(t, "dev-2", without.Attributes["device_id"])
}

func TestLatestReadingClassAndAttributes(t *testing.T) {
	states := Build(snapshot(), NewEntityRegistry())

	power := find(states, "dev-1_latest_reading")
	assert.Equal(t, "1234.56", power.State)
	assert.Equal(t, DeviceClassEnergy, power.Attributes["device_class"])
	assert.Equal(t, "kWh", power.Attributes["unit_of_measurement"])
	assert.Equal(t, StateClassTotalIncreasing, power.Attributes["state_class"])
	assert.Equal(t, "manual", power.Attributes["note"])
	assert.Equal(t, 0.0, power.Attributes["rollover_offset"])
	assert.Equal(t, "2026-02-12T10:00:00Z", power.Attributes["timestamp"])

	gas := find(states, "dev-2_latest_reading")
	assert.Equal(t, models.StateUnknown, gas.State)
	assert.Equal(t, DeviceClassGas, gas.Attributes["device_class"])
	assert.Equal(t, "m³", gas.Attributes["unit_of_measurement"])
	assert.NotContains(t, gas.Attributes, "note")
	assert.NotContains(t, gas.Attributes, "rollover_offset")
	assert.NotContains(t, gas.Attributes, "timestamp")
}

func TestMeterClassTable(t *testing.T) {
	assert.Equal(t, DeviceClassWater, ClassFor(models.MeterWater).DeviceClass)
	other := ClassFor(models.MeterType("heat"))
	assert.Empty(t, other.DeviceClass)
	assert.Empty(t, other.Unit)
	assert.Equal(t, StateClassTotalIncreasing, other.StateClass)
}

func TestLastUpdatedFallsBackToDeviceTimestamp(t *testing.T) {
	states := Build(snapshot(), NewEntityRegistry())
	assert.Equal(t, "2026-02-12T10:00:00Z", find(states, "dev-1_last_updated").State)
	assert.Equal(t, "2026-02-12T09:00:00Z", find(states, "dev-2_last_updated").State)

	bare := &models.Snapshot{Devices: map[string]models.DeviceState{"x": {Device: models.Device{ID: "x", Name: "X"}}}}
	assert.Equal(t, models.StateUnknown, find(Build(bare, NewEntityRegistry()), "x_last_updated").State)
}

func TestDuplicateNamesGetSuffixes(t *testing.T) {
	snap := &models.Snapshot{Devices: map[string]models.DeviceState{
		"b": {Device: models.Device{ID: "b", Name: "Zähler"}},
		"a": {Device: models.Device{ID: "a", Name: "Zähler"}},
	}}
	reg := NewEntityRegistry()
	states := Build(snap, reg)
	assert.Equal(t, "sensor.zahler_latest_reading", find(states, "a_latest_reading").EntityID)
	assert.Equal(t, "sensor.zahler_latest_reading_2", find(states, "b_latest_reading").EntityID)

	// renaming keeps the assigned id
	snap.Devices["a"] = models.DeviceState{Device: models.Device{ID: "a", Name: "Renamed"}}
	assert.Equal(t, "sensor.zahler_latest_reading", find(Build(snap, reg), "a_latest_reading").EntityID)
}

func TestCollidingSlugsAreSuffixedByDeviceID(t *testing.T) {
	snap := &models.Snapshot{Devices: map[string]models.DeviceState{
		"a": {Device: models.Device{ID: "a", Name: "gas meter"}},
		"b": {Device: models.Device{ID: "b", Name: "Gas Meter"}},
	}}
	states := Build(snap, NewEntityRegistry())
	assert.Equal(t, "sensor.gas_meter_device_status", find(states, "a_device_status").EntityID)
	assert.Equal(t, "sensor.gas_meter_device_status_2", find(states, "b_device_status").EntityID)
	assert.Equal(t, "sensor.gas_meter_last_updated_2", find(states, "b_last_updated").EntityID)

	// output order stays by display name
	assert.Equal(t, "b", states[0].DeviceID)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "main_meter", Slugify("  Main Meter "))
	assert.Equal(t, "strom_keller_1", Slugify("Strom / Keller #1"))
	assert.Equal(t, "grosse_zahler", Slugify("Große Zähler"))
	assert.Equal(t, "energy_tracker", Slugify("!!!"))
}

type recordingWriter struct {
	mu      sync.Mutex
	set     map[string]models.SensorState
	deleted []string
	fail    bool
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{set: map[string]models.SensorState{}}
}

func (w *recordingWriter) SetState(_ context.Context, s models.SensorState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.NewUnavailableError("ha down", nil)
	}
	w.set[s.EntityID] = s
	return nil
}

func (w *recordingWriter) DeleteState(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deleted = append(w.deleted, id)
	delete(w.set, id)
	return nil
}

func TestPublisherMarksUnavailableOnFailure(t *testing.T) {
	w := newRecordingWriter()
	p := NewPublisher("entry-1", w, NewEntityRegistry(), time.Second)
	snap := snapshot()

	p.HandleUpdate(snap, nil)
	require.Len(t, w.set, 6)
	assert.Equal(t, "1234.56", w.set["sensor.main_meter_latest_reading"].State)

	p.HandleUpdate(snap, errors.NewUnavailableError("api down", nil))
	for id, s := range w.set {
		assert.Equal(t, models.StateUnavailable, s.State, id)
	}
	// attributes survive
	assert.Equal(t, "kWh", w.set["sensor.main_meter_latest_reading"].Attributes["unit_of_measurement"])
}

func TestPublisherFailureWithoutSnapshotPublishesNothing(t *testing.T) {
	w := newRecordingWriter()
	p := NewPublisher("entry-1", w, NewEntityRegistry(), time.Second)
	p.HandleUpdate(nil, errors.NewAuthError("nope", nil))
	assert.Empty(t, w.set)
}

func TestPublisherRemovesVanishedDevices(t *testing.T) {
	w := newRecordingWriter()
	reg := NewEntityRegistry()
	p := NewPublisher("entry-1", w, reg, time.Second)

	snap := snapshot()
	p.HandleUpdate(snap, nil)

	smaller := &models.Snapshot{Devices: map[string]models.DeviceState{"dev-1": snap.Devices["dev-1"]}}
	p.HandleUpdate(smaller, nil)

	assert.Len(t, w.set, 3)
	assert.ElementsMatch(t, []string{"sensor.gas_device_status", "sensor.gas_latest_reading", "sensor.gas_last_updated"}, w.deleted)
	_, ok := reg.Lookup("dev-2_status")
	assert.False(t, ok)

	p.RemoveAll(context.Background())
	assert.Empty(t, w.set)
	assert.Empty(t, p.States())
}

func TestPublisherKeepsGoingWhenHomeAssistantFails(t *testing.T) {
	w := newRecordingWriter()
	w.fail = true
	p := NewPublisher("entry-1", w, NewEntityRegistry(), time.Second)
	assert.Equal(t, 0, p.Publish(context.Background(), Build(snapshot(), NewEntityRegistry())))
	assert.Empty(t, p.States())
}
