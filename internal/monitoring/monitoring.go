package monitoring

import (
	"context"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/itsatony/etbridge/internal/config"
	"github.com/itsatony/etbridge/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const (
	MeasurementReading = "meter_reading"
	MeasurementEvent   = "bridge_event"
)

// PointWriter is the blocking write API of the InfluxDB client
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Service provides monitoring functionality
type Service struct {
	writer  PointWriter
	client  influxdb2.Client
	timeout time.Duration

	mu     sync.Mutex
	counts map[string]int64
}

// NewService creates a new monitoring service. Influx export is only set up
// when enabled in the config.
func NewService(cfg config.MonitoringConfig) *Service {
	s := &Service{timeout: 5 * time.Second, counts: make(map[string]int64)}
	if cfg.Influx.Enabled {
		s.client = influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
		s.writer = s.client.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket)
		nuts.L.Infof("[Monitoring] Exporting readings to %s (bucket %s)", cfg.Influx.URL, cfg.Influx.Bucket)
	}
	return s
}

// NewServiceWithWriter creates a service exporting to an existing writer
func NewServiceWithWriter(writer PointWriter) *Service {
	return &Service{writer: writer, timeout: 5 * time.Second, counts: make(map[string]int64)}
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	ts := time.Now()

	s.mu.Lock()
	s.counts[eventName]++
	s.mu.Unlock()

	nuts.L.Infof("[Monitoring] Event %s recorded at %v with labels: %v", eventName, ts, labels)

	if s.writer == nil {
		return
	}
	tags := map[string]string{"event": eventName}
	for k, v := range labels {
		tags[k] = v
	}
	point := influxdb2.NewPoint(MeasurementEvent, tags, map[string]interface{}{"count": 1}, ts)
	s.write(point)
}

// EventCounts returns how often each event was recorded since start
func (s *Service) EventCounts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// RecordSnapshot exports the latest valid reading of every device. Devices
// without a reading or with an unparseable value are skipped.
func (s *Service) RecordSnapshot(snap *models.Snapshot) {
	if s.writer == nil || snap == nil {
		return
	}
	var points []*write.Point
	for _, state := range snap.Ordered() {
		r := state.LatestReading
		if r == nil || r.Value == nil {
			continue
		}
		fields := map[string]interface{}{"value": *r.Value}
		if r.RolloverOffset != nil {
			fields["rollover_offset"] = *r.RolloverOffset
		}
		tags := map[string]string{
			"entry_id":   snap.EntryID,
			"device_id":  state.Device.ID,
			"meter_type": string(state.Device.MeterType),
		}
		if r.Unit != "" {
			tags["unit"] = r.Unit
		}
		points = append(points, influxdb2.NewPoint(MeasurementReading, tags, fields, r.Timestamp))
	}
	if len(points) == 0 {
		return
	}
	s.write(points...)
}

func (s *Service) write(points ...*write.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		nuts.L.Warnf("[Monitoring] Failed to export %d point(s): %v", len(points), err)
	}
}

// Close flushes and closes the Influx client, if any
func (s *Service) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
