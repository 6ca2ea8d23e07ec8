package energytracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itsatony/etbridge/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Raw response shapes of the public API.

type rawMeter struct {
	ID            string `json:"id"`
	Number        string `json:"number"`
	MeterNumber   string `json:"meterNumber"`
	Type          string `json:"type"`
	Unit          string `json:"unit"`
	DecimalPlaces *int   `json:"decimalPlaces"`
}

type rawDevice struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MeterType     string    `json:"meterType"`
	MeterNumber   string    `json:"meterNumber"`
	FolderPath    string    `json:"folderPath"`
	LastUpdatedAt *string   `json:"lastUpdatedAt"`
	Meter         *rawMeter `json:"meter"`
}

type rawReading struct {
	Timestamp      string          `json:"timestamp"`
	Value          json.RawMessage `json:"value"`
	Unit           string          `json:"unit"`
	RolloverOffset *float64        `json:"rolloverOffset"`
	Note           *string         `json:"note"`
	MeterID        string          `json:"meterId"`
	MeterNumber    string          `json:"meterNumber"`
}

type rawErrorBody struct {
	Message json.RawMessage `json:"message"`
}

type submitBody struct {
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// unwrapList accepts a bare JSON array or a {"data": [...]} envelope
func unwrapList(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	switch trimmed[0] {
	case '[':
		return trimmed, nil
	case '{':
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		data := bytes.TrimSpace(envelope.Data)
		if len(data) == 0 || data[0] != '[' {
			return nil, fmt.Errorf("envelope without data array")
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unexpected payload starting with %q", trimmed[0])
	}
}

// unwrapObject accepts a bare JSON object or a {"data": {...}} envelope
func unwrapObject(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
		ID   string          `json:"id"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	data := bytes.TrimSpace(envelope.Data)
	if envelope.ID == "" && len(data) > 0 && data[0] == '{' {
		return data, nil
	}
	return trimmed, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
}

func (d rawDevice) toModel() (models.Device, error) {
	if strings.TrimSpace(d.ID) == "" {
		return models.Device{}, fmt.Errorf("device without id")
	}
	device := models.Device{
		ID:          d.ID,
		Name:        d.Name,
		MeterType:   models.ParseMeterType(d.MeterType),
		MeterNumber: d.MeterNumber,
		FolderPath:  d.FolderPath,
	}
	if device.Name == "" {
		device.Name = d.ID
	}
	if d.Meter != nil {
		if d.MeterType == "" {
			device.MeterType = models.ParseMeterType(d.Meter.Type)
		}
		if device.MeterNumber == "" {
			device.MeterNumber = firstNonEmpty(d.Meter.Number, d.Meter.MeterNumber)
		}
	}
	if d.LastUpdatedAt != nil && *d.LastUpdatedAt != "" {
		ts, err := parseTime(*d.LastUpdatedAt)
		if err != nil {
			nuts.L.Warnf("[EnergyTracker] Device %s has an unparsable lastUpdatedAt %q", d.ID, *d.LastUpdatedAt)
		} else {
			device.LastUpdatedAt = &ts
		}
	}
	return device, nil
}

func (d rawDevice) toDetail() (*models.DeviceDetail, error) {
	device, err := d.toModel()
	if err != nil {
		return nil, err
	}
	detail := &models.DeviceDetail{Device: device}
	if d.Meter != nil {
		detail.Meter = models.Meter{
			ID:            d.Meter.ID,
			Number:        firstNonEmpty(d.Meter.Number, d.Meter.MeterNumber),
			Unit:          d.Meter.Unit,
			DecimalPlaces: d.Meter.DecimalPlaces,
		}
	}
	return detail, nil
}

func (r rawReading) toModel(deviceID string) (*models.Reading, error) {
	ts, err := parseTime(r.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("reading timestamp %q: %w", r.Timestamp, err)
	}
	reading := &models.Reading{
		DeviceID:       deviceID,
		Unit:           r.Unit,
		Timestamp:      ts,
		RolloverOffset: r.RolloverOffset,
		MeterID:        r.MeterID,
		MeterNumber:    r.MeterNumber,
	}
	if r.Note != nil && strings.TrimSpace(*r.Note) != "" {
		reading.Note = r.Note
	}
	if v, ok := parseValue(r.Value); ok {
		reading.Value = &v
	} else {
		nuts.L.Warnf("[EnergyTracker] Invalid reading value for device %s: %s", deviceID, string(r.Value))
	}
	return reading, nil
}

// parseValue accepts a JSON number or a numeric string
func parseValue(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseErrorMessage extracts "message" (a string or a list of strings)
func parseErrorMessage(body []byte) string {
	var parsed rawErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Message) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(parsed.Message, &single); err == nil {
		return single
	}
	var list []any
	if err := json.Unmarshal(parsed.Message, &list); err != nil {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		if item == nil {
			continue
		}
		s := fmt.Sprint(item)
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
