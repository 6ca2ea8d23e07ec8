package sensors

import (
	"context"
	"sync"
	"time"

	"github.com/itsatony/etbridge/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// StateWriter pushes entity states to Home Assistant
type StateWriter interface {
	SetState(ctx context.Context, s models.SensorState) error
	DeleteState(ctx context.Context, entityID string) error
}

// Publisher mirrors an entry's snapshots into Home Assistant entities
type Publisher struct {
	entryID string
	writer  StateWriter
	reg     *EntityRegistry
	timeout time.Duration

	mu      sync.Mutex
	current map[string]models.SensorState // by unique id
}

func NewPublisher(entryID string, writer StateWriter, reg *EntityRegistry, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Publisher{
		entryID: entryID,
		writer:  writer,
		reg:     reg,
		timeout: timeout,
		current: make(map[string]models.SensorState),
	}
}

// HandleUpdate is a coordinator listener. On success it publishes the new
// states and removes entities of vanished devices; on failure it publishes
// the last known entities as unavailable.
func (p *Publisher) HandleUpdate(snap *models.Snapshot, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err != nil {
		if snap == nil {
			return
		}
		p.Publish(ctx, Unavailable(Build(snap, p.reg)))
		return
	}
	p.Sync(ctx, Build(snap, p.reg))
}

// Sync publishes states and deletes previously published entities missing from them
func (p *Publisher) Sync(ctx context.Context, states []models.SensorState) {
	keep := make(map[string]bool, len(states))
	for _, s := range states {
		keep[s.UniqueID] = true
	}

	p.mu.Lock()
	var stale []models.SensorState
	for uid, s := range p.current {
		if !keep[uid] {
			stale = append(stale, s)
		}
	}
	p.mu.Unlock()

	for _, s := range stale {
		p.remove(ctx, s)
	}
	p.Publish(ctx, states)
}

// Publish pushes states to Home Assistant, logging failures per entity
func (p *Publisher) Publish(ctx context.Context, states []models.SensorState) int {
	published := 0
	for _, s := range states {
		if err := p.writer.SetState(ctx, s); err != nil {
			nuts.L.Warnf("[Publisher] %s failed to publish %s: %v", p.entryID, s.EntityID, err)
			continue
		}
		published++
		p.mu.Lock()
		p.current[s.UniqueID] = s
		p.mu.Unlock()
	}
	nuts.L.Debugf("[Publisher] %s published %d/%d states", p.entryID, published, len(states))
	return published
}

// States returns the last published states
func (p *Publisher) States() []models.SensorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.SensorState, 0, len(p.current))
	for _, s := range p.current {
		out = append(out, s)
	}
	return out
}

// RemoveAll deletes every published entity and releases its entity id
func (p *Publisher) RemoveAll(ctx context.Context) {
	for _, s := range p.States() {
		p.remove(ctx, s)
	}
}

func (p *Publisher) remove(ctx context.Context, s models.SensorState) {
	if err := p.writer.DeleteState(ctx, s.EntityID); err != nil {
		nuts.L.Warnf("[Publisher] %s failed to remove %s: %v", p.entryID, s.EntityID, err)
		return
	}
	p.mu.Lock()
	delete(p.current, s.UniqueID)
	p.mu.Unlock()
	p.reg.Release(s.UniqueID)
}
