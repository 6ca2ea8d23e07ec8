// FilePath: internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	nuts "github.com/vaudience/go-nuts"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DeviceSource is the part of the Energy Tracker client the coordinator needs
type DeviceSource interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	GetLatestReading(ctx context.Context, deviceID string) (*models.Reading, error)
}

// Listener is called after every refresh cycle. err is nil on success;
// on failure snap is the previous (possibly nil) snapshot.
type Listener func(snap *models.Snapshot, err error)

type Config struct {
	EntryID              string
	Interval             time.Duration
	MaxConcurrentFetches int
}

// Coordinator keeps the latest snapshot of one account up to date
type Coordinator struct {
	cfg    Config
	source DeviceSource

	snapshot atomic.Pointer[models.Snapshot]
	group    singleflight.Group

	// cycles run on life, never on a caller's context
	life   context.Context
	stop   context.CancelFunc
	cycles sync.WaitGroup

	mu          sync.RWMutex
	lastSuccess bool
	lastErr     error
	lastAttempt time.Time
	listeners   []Listener
}

func New(cfg Config, source DeviceSource) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.MaxConcurrentFetches < 1 {
		cfg.MaxConcurrentFetches = 1
	}
	life, stop := context.WithCancel(context.Background())
	return &Coordinator{cfg: cfg, source: source, life: life, stop: stop}
}

// ErrClosed is returned by Refresh once Close was called
var ErrClosed = errors.NewUnavailableError("coordinator closed", nil)

// Close aborts the cycle in flight and waits for it to return. Cycles
// aborted by Close do not notify listeners.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.stop()
	c.mu.Unlock()
	c.cycles.Wait()
}

// OnUpdate registers a listener. Listeners run in registration order.
func (c *Coordinator) OnUpdate(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Snapshot returns the last successful snapshot, or nil before the first success
func (c *Coordinator) Snapshot() *models.Snapshot {
	return c.snapshot.Load()
}

// Seed installs a snapshot without fetching, e.g. from persisted devices at startup
func (c *Coordinator) Seed(snap *models.Snapshot) {
	c.snapshot.CompareAndSwap(nil, snap)
}

func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Coordinator) LastAttempt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastAttempt
}

// Run refreshes immediately and then on every interval until ctx is done
func (c *Coordinator) Run(ctx context.Context) {
	c.refreshLogged(ctx)
	c.Loop(ctx)
}

// Loop refreshes on every interval until ctx is done, without an initial cycle
func (c *Coordinator) Loop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			nuts.L.Debugf("[Coordinator] %s stopped", c.cfg.EntryID)
			return
		case <-ticker.C:
			c.refreshLogged(ctx)
		}
	}
}

func (c *Coordinator) refreshLogged(ctx context.Context) {
	if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		nuts.L.Errorf("[Coordinator] %s refresh failed: %v", c.cfg.EntryID, err)
	}
}

// Refresh runs one cycle. Concurrent callers share the cycle in flight;
// a caller whose ctx ends stops waiting but the cycle completes for the others.
func (c *Coordinator) Refresh(ctx context.Context) (*models.Snapshot, error) {
	ch := c.group.DoChan("refresh", c.cycle)
	select {
	case res := <-ch:
		snap, _ := res.Val.(*models.Snapshot)
		return snap, res.Err
	case <-ctx.Done():
		return c.snapshot.Load(), ctx.Err()
	}
}

func (c *Coordinator) cycle() (any, error) {
	c.mu.Lock()
	if c.life.Err() != nil {
		c.mu.Unlock()
		return c.snapshot.Load(), ErrClosed
	}
	c.cycles.Add(1)
	c.mu.Unlock()
	defer c.cycles.Done()

	return c.refresh(c.life)
}

func (c *Coordinator) refresh(ctx context.Context) (*models.Snapshot, error) {
	nuts.L.Debugf("[Coordinator] %s starting data synchronization", c.cfg.EntryID)

	devices, err := c.source.ListDevices(ctx)
	if err != nil {
		return c.finish(nil, fmt.Errorf("error communicating with API: %w", err))
	}
	nuts.L.Infof("[Coordinator] %s synchronized %d devices", c.cfg.EntryID, len(devices))

	readings := make([]*models.Reading, len(devices))
	failures := make([]error, len(devices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrentFetches)
	for i, device := range devices {
		g.Go(func() error {
			reading, err := c.source.GetLatestReading(gctx, device.ID)
			if err != nil {
				// isolated: the device stays in the snapshot without a reading
				failures[i] = err
				return nil
			}
			readings[i] = reading
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return c.finish(nil, ctx.Err())
	}

	snap := &models.Snapshot{
		EntryID:     c.cfg.EntryID,
		Devices:     make(map[string]models.DeviceState, len(devices)),
		RefreshedAt: time.Now().UTC(),
	}
	for i, device := range devices {
		device.EntryID = c.cfg.EntryID
		snap.Devices[device.ID] = models.DeviceState{Device: device, LatestReading: readings[i]}
		if failures[i] != nil {
			nuts.L.Warnf("[Coordinator] Failed to fetch readings for device %s: %v", device.ID, failures[i])
			if snap.ReadingErrors == nil {
				snap.ReadingErrors = make(map[string]string)
			}
			snap.ReadingErrors[device.ID] = failures[i].Error()
		}
	}
	return c.finish(snap, nil)
}

func (c *Coordinator) finish(snap *models.Snapshot, err error) (*models.Snapshot, error) {
	if c.life.Err() != nil {
		return c.snapshot.Load(), ErrClosed
	}
	if err == nil {
		c.snapshot.Store(snap)
	} else {
		snap = c.snapshot.Load()
	}

	c.mu.Lock()
	c.lastAttempt = time.Now().UTC()
	c.lastSuccess = err == nil
	c.lastErr = err
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap, err)
	}
	if err != nil {
		return snap, err
	}
	nuts.L.Infof("[Coordinator] %s data synchronization completed successfully", c.cfg.EntryID)
	return snap, nil
}

// IsAuthFailure reports whether the last cycle failed because the token was rejected
func (c *Coordinator) IsAuthFailure() bool {
	return errors.IsAuth(c.LastError())
}
