// FilePath: internal/models/models.snapshot.go
package models

import (
	"sort"
	"time"
)

// DeviceState joins a device with its latest reading. LatestReading is nil
// when the device has no reading or its reading could not be fetched.
type DeviceState struct {
	Device        Device   `json:"device"`
	LatestReading *Reading `json:"latest_reading"`
}

// HasReading reports whether the device has a reading in this snapshot
func (d DeviceState) HasReading() bool {
	return d.LatestReading != nil
}

// Snapshot is one refresh cycle's consistent view of an account.
// It is built once and never modified afterwards.
type Snapshot struct {
	EntryID     string                 `json:"entry_id"`
	Devices     map[string]DeviceState `json:"devices"`
	RefreshedAt time.Time              `json:"refreshed_at"`
	// ReadingErrors maps device id to the error of its failed reading fetch.
	ReadingErrors map[string]string `json:"reading_errors,omitempty"`
}

// Ordered returns the device states sorted by name, then id
func (s *Snapshot) Ordered() []DeviceState {
	if s == nil {
		return nil
	}
	out := make([]DeviceState, 0, len(s.Devices))
	for _, d := range s.Devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Device.Name != out[j].Device.Name {
			return out[i].Device.Name < out[j].Device.Name
		}
		return out[i].Device.ID < out[j].Device.ID
	})
	return out
}

// DeviceList returns the snapshot's devices in Ordered order
func (s *Snapshot) DeviceList() []Device {
	states := s.Ordered()
	out := make([]Device, 0, len(states))
	for _, st := range states {
		out = append(out, st.Device)
	}
	return out
}
