package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu          sync.Mutex
	devices     []models.Device
	listErr     error
	readings    map[string]*models.Reading
	readingErrs map[string]error
	listCalls   atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	block       chan struct{}
	readingGate chan struct{}
}

func (f *fakeSource) ListDevices(ctx context.Context) ([]models.Device, error) {
	f.listCalls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Device(nil), f.devices...), nil
}

func (f *fakeSource) GetLatestReading(ctx context.Context, id string) (*models.Reading, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.readingGate != nil {
		select {
		case <-f.readingGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	time.Sleep(5 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readingErrs[id]; err != nil {
		return nil, err
	}
	return f.readings[id], nil
}

func value(v float64) *float64 { return &v }

func newSource() *fakeSource {
	return &fakeSource{
		devices: []models.Device{
			{ID: "dev-1", Name: "Main", MeterType: models.MeterElectricity},
			{ID: "dev-2", Name: "Gas", MeterType: models.MeterGas},
			{ID: "dev-3", Name: "Garden", MeterType: models.MeterWater},
		},
		readings: map[string]*models.Reading{
			"dev-1": {DeviceID: "dev-1", Value: value(1234.56), Timestamp: time.Now()},
			"dev-2": {DeviceID: "dev-2", Value: value(789.01), Timestamp: time.Now()},
		},
		readingErrs: map[string]error{},
	}
}

func TestRefreshBuildsSnapshot(t *testing.T) {
	src := newSource()
	c := New(Config{EntryID: "entry-1", MaxConcurrentFetches: 2}, src)

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Devices, 3)
	assert.True(t, c.LastUpdateSuccess())
	assert.Same(t, snap, c.Snapshot())

	// every device has either a reading or no_readings, never both, never dropped
	for id, st := range snap.Devices {
		assert.Equal(t, id, st.Device.ID)
		assert.Equal(t, "entry-1", st.Device.EntryID)
	}
	assert.True(t, snap.Devices["dev-1"].HasReading())
	assert.False(t, snap.Devices["dev-3"].HasReading())
}

func TestRefreshIsolatesReadingFailures(t *testing.T) {
	src := newSource()
	src.readingErrs["dev-2"] = errors.NewUnavailableError("boom", nil)
	c := New(Config{EntryID: "entry-1", MaxConcurrentFetches: 4}, src)

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Devices, 3)
	assert.InDelta(t, 1234.56, *snap.Devices["dev-1"].LatestReading.Value, 1e-9)
	assert.Nil(t, snap.Devices["dev-2"].LatestReading)
	assert.Contains(t, snap.ReadingErrors, "dev-2")
	assert.True(t, c.LastUpdateSuccess())
}

func TestRefreshListFailureKeepsPreviousSnapshot(t *testing.T) {
	src := newSource()
	c := New(Config{EntryID: "entry-1", MaxConcurrentFetches: 2}, src)

	first, err := c.Refresh(context.Background())
	require.NoError(t, err)

	var notified []error
	c.OnUpdate(func(snap *models.Snapshot, err error) {
		notified = append(notified, err)
		assert.Same(t, first, snap)
	})

	src.mu.Lock()
	src.listErr = errors.NewAuthError("auth failed", nil)
	src.mu.Unlock()

	snap, err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Same(t, first, snap)
	assert.Same(t, first, c.Snapshot())
	assert.False(t, c.LastUpdateSuccess())
	assert.True(t, c.IsAuthFailure())
	require.Len(t, notified, 1)
	assert.Error(t, notified[0])
}

func TestRefreshBoundsConcurrency(t *testing.T) {
	src := newSource()
	for i := 0; i < 10; i++ {
		id := "extra-" + string(rune('a'+i))
		src.devices = append(src.devices, models.Device{ID: id, Name: id})
	}
	c := New(Config{EntryID: "entry-1", MaxConcurrentFetches: 3}, src)

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, src.maxInFlight.Load(), int32(3))
}

func TestConcurrentRefreshesShareOneCycle(t *testing.T) {
	src := newSource()
	src.block = make(chan struct{})
	c := New(Config{EntryID: "entry-1", MaxConcurrentFetches: 2}, src)

	var wg sync.WaitGroup
	results := make([]*models.Snapshot, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.Refresh(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return src.listCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.block)
	wg.Wait()

	assert.Equal(t, int32(1), src.listCalls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestRunRefreshesImmediatelyAndStops(t *testing.T) {
	src := newSource()
	c := New(Config{EntryID: "entry-1", Interval: time.Hour, MaxConcurrentFetches: 2}, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.Snapshot() != nil }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSeedDoesNotOverrideFetchedSnapshot(t *testing.T) {
	src := newSource()
	c := New(Config{EntryID: "entry-1"}, src)
	seed := &models.Snapshot{EntryID: "entry-1", Devices: map[string]models.DeviceState{}}
	c.Seed(seed)
	assert.Same(t, seed, c.Snapshot())

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	c.Seed(&models.Snapshot{})
	assert.Same(t, snap, c.Snapshot())
}

func TestCancelledCallerDoesNotFailSharedCycle(t *testing.T) {
	src := newSource()
	src.readingGate = make(chan struct{})
	c := New(Config{EntryID: "entry-1", MaxConcurrentFetches: 3}, src)

	var mu sync.Mutex
	var notified []error
	c.OnUpdate(func(_ *models.Snapshot, err error) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, err)
	})

	reqCtx, cancel := context.WithCancel(context.Background())
	reqDone := make(chan error, 1)
	go func() {
		_, err := c.Refresh(reqCtx)
		reqDone <- err
	}()
	require.Eventually(t, func() bool { return src.listCalls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-reqDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	type result struct {
		snap *models.Snapshot
		err  error
	}
	loopDone := make(chan result, 1)
	go func() {
		snap, err := c.Refresh(context.Background())
		loopDone <- result{snap, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(src.readingGate)

	res := <-loopDone
	require.NoError(t, res.err)
	require.NotNil(t, res.snap)
	assert.Len(t, res.snap.Devices, 3)
	assert.Empty(t, res.snap.ReadingErrors)
	assert.Equal(t, int32(1), src.listCalls.Load())
	assert.True(t, c.LastUpdateSuccess())
	assert.Same(t, res.snap, c.Snapshot())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []error{nil}, notified)
}

func TestCloseAbortsCycleWithoutNotifying(t *testing.T) {
	src := newSource()
	src.readingGate = make(chan struct{})
	c := New(Config{EntryID: "entry-1", MaxConcurrentFetches: 3}, src)

	var calls atomic.Int32
	c.OnUpdate(func(*models.Snapshot, error) { calls.Add(1) })

	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return src.listCalls.Load() == 1 }, time.Second, time.Millisecond)

	c.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not abort the cycle")
	}
	assert.Zero(t, calls.Load())
	assert.False(t, c.LastUpdateSuccess())

	_, err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, int32(1), src.listCalls.Load())
}
