package bridge

import (
	"context"
	"time"

	"github.com/itsatony/etbridge/internal/coordinator"
	"github.com/itsatony/etbridge/internal/energytracker"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	"github.com/itsatony/etbridge/internal/sensors"
	nuts "github.com/vaudience/go-nuts"
)

// runtime is everything that runs for one loaded entry
type runtime struct {
	entry     *models.Entry
	client    *energytracker.Client
	coord     *coordinator.Coordinator
	publisher *sensors.Publisher
	cancel    context.CancelFunc
	done      chan struct{}
}

// LoadAll starts a runtime for every stored entry. Entities of the
// persisted devices are published as unavailable right away; the first
// refresh runs in the background.
func (s *Service) LoadAll(ctx context.Context) error {
	entries, err := s.Entries.List(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		devices, err := s.Devices.ListByEntry(ctx, entry.ID)
		if err != nil {
			nuts.L.Warnf("[Bridge] Could not load persisted devices of %s: %v", entry.ID, err)
		}
		rt := s.newRuntime(entry)
		s.seed(ctx, rt, devices)
		s.launch(rt, true)
	}
	nuts.L.Infof("[Bridge] Loaded %d entries", len(entries))
	return nil
}

// StopAll stops every runtime and marks its entities unavailable
func (s *Service) StopAll(ctx context.Context) {
	s.mu.Lock()
	runtimes := make([]*runtime, 0, len(s.runtimes))
	for id, rt := range s.runtimes {
		runtimes = append(runtimes, rt)
		delete(s.runtimes, id)
	}
	s.mu.Unlock()

	for _, rt := range runtimes {
		rt.stop()
		rt.publisher.Publish(ctx, sensors.Unavailable(rt.publisher.States()))
	}
}

func (s *Service) newRuntime(entry *models.Entry) *runtime {
	client := energytracker.NewClient(energytracker.Config{
		BaseURL: s.cfg.BaseURL,
		Token:   entry.APIToken,
		Timeout: s.cfg.RequestTimeout,
	})
	coord := coordinator.New(coordinator.Config{
		EntryID:              entry.ID,
		Interval:             s.cfg.ScanInterval,
		MaxConcurrentFetches: s.cfg.MaxConcurrentFetches,
	}, client)
	rt := &runtime{
		entry:     entry,
		client:    client,
		coord:     coord,
		publisher: sensors.NewPublisher(entry.ID, s.states, s.registry, s.PublishTimeout),
	}

	coord.OnUpdate(rt.publisher.HandleUpdate)
	coord.OnUpdate(s.persistDevices(entry.ID))
	coord.OnUpdate(s.watchAuth(entry))
	coord.OnUpdate(s.export(entry.ID))
	return rt
}

// seed publishes persisted devices as unavailable until the first refresh
func (s *Service) seed(ctx context.Context, rt *runtime, devices []models.Device) {
	if len(devices) == 0 {
		return
	}
	snap := &models.Snapshot{EntryID: rt.entry.ID, Devices: make(map[string]models.DeviceState, len(devices))}
	for _, d := range devices {
		snap.Devices[d.ID] = models.DeviceState{Device: d}
	}
	rt.coord.Seed(snap)
	rt.publisher.Publish(ctx, sensors.Unavailable(sensors.Build(snap, s.registry)))
}

// launch registers the runtime and starts its refresh loop. With
// refreshNow=false the caller already ran the first cycle.
func (s *Service) launch(rt *runtime, refreshNow bool) {
	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	rt.done = make(chan struct{})

	s.mu.Lock()
	s.runtimes[rt.entry.ID] = rt
	s.mu.Unlock()

	go func() {
		defer close(rt.done)
		if refreshNow {
			rt.coord.Run(ctx)
			return
		}
		rt.coord.Loop(ctx)
	}()
	nuts.L.Infof("[Bridge] Runtime for %s (%s) started", rt.entry.Name, rt.entry.ID)
}

// detach removes the runtime of an entry and waits for its loop to end
func (s *Service) detach(entryID string) *runtime {
	s.mu.Lock()
	rt := s.runtimes[entryID]
	delete(s.runtimes, entryID)
	s.mu.Unlock()
	if rt != nil {
		rt.stop()
	}
	return rt
}

func (rt *runtime) stop() {
	if rt.cancel == nil {
		return
	}
	rt.cancel()
	rt.coord.Close()
	select {
	case <-rt.done:
	case <-time.After(10 * time.Second):
		nuts.L.Warnf("[Bridge] Runtime for %s did not stop in time", rt.entry.ID)
	}
}

func (s *Service) persistDevices(entryID string) coordinator.Listener {
	return func(snap *models.Snapshot, err error) {
		if err != nil || snap == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.PublishTimeout)
		defer cancel()
		if err := s.Devices.ReplaceForEntry(ctx, entryID, snap.DeviceList()); err != nil {
			nuts.L.Errorf("[Bridge] Failed to persist devices of %s: %v", entryID, err)
		}
	}
}

// watchAuth opens a repair issue when a refresh fails because the token was rejected
func (s *Service) watchAuth(entry *models.Entry) coordinator.Listener {
	return func(_ *models.Snapshot, err error) {
		if err == nil || !errors.IsAuth(err) {
			return
		}
		status := 0
		if apiErr, ok := errors.As(err); ok {
			status = apiErr.UpstreamStatus
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.PublishTimeout)
		defer cancel()
		if ierr := s.Issues.RaiseAuthIssue(ctx, entry, status); ierr != nil {
			nuts.L.Errorf("[Bridge] Failed to raise repair issue for %s: %v", entry.ID, ierr)
		}
	}
}

func (s *Service) export(entryID string) coordinator.Listener {
	return func(snap *models.Snapshot, err error) {
		if s.Monitoring == nil {
			return
		}
		if err != nil {
			s.Monitoring.RecordEvent("refresh_failed", map[string]string{"entry_id": entryID})
			return
		}
		s.Monitoring.RecordSnapshot(snap)
	}
}
