package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/itsatony/etbridge/internal/cleanup"
	"github.com/itsatony/etbridge/internal/config"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
	"github.com/itsatony/etbridge/internal/monitoring"
	"github.com/itsatony/etbridge/internal/repository"
	"github.com/itsatony/etbridge/internal/sensors"
	"github.com/itsatony/etbridge/internal/submission"
)

// IssueStore raises and dismisses repair issues
type IssueStore interface {
	RaiseAuthIssue(ctx context.Context, entry *models.Entry, upstreamStatus int) error
	DismissEntry(ctx context.Context, entryID string) (int, error)
}

// Service contains all repositories, the per-entry runtimes and
// service-wide dependencies
type Service struct {
	Entries    repository.EntryRepository
	Devices    repository.DeviceRepository
	Issues     IssueStore
	Cleanup    *cleanup.CleanupService
	Monitoring *monitoring.Service

	cfg      config.EnergyTrackerConfig
	states   sensors.StateWriter
	registry *sensors.EntityRegistry
	// PublishTimeout bounds one round of Home Assistant state writes
	PublishTimeout time.Duration

	mu       sync.Mutex
	runtimes map[string]*runtime
}

// New creates a new Service instance
func New(
	cfg config.EnergyTrackerConfig,
	entries repository.EntryRepository,
	devices repository.DeviceRepository,
	issues IssueStore,
	states sensors.StateWriter,
	mon *monitoring.Service,
) *Service {
	svc := &Service{
		Entries:        entries,
		Devices:        devices,
		Issues:         issues,
		Monitoring:     mon,
		cfg:            cfg,
		states:         states,
		registry:       sensors.NewEntityRegistry(),
		PublishTimeout: 30 * time.Second,
		runtimes:       make(map[string]*runtime),
	}
	svc.Cleanup = cleanup.New(entries, devices, issues)
	return svc
}

// Validate checks if all required dependencies are initialized
func (s *Service) Validate() error {
	if s.Entries == nil {
		return ErrMissingRepository("entries")
	}
	if s.Devices == nil {
		return ErrMissingRepository("devices")
	}
	if s.Issues == nil {
		return ErrMissingRepository("issues")
	}
	if s.states == nil {
		return errors.NewInternalError("missing home assistant state writer", nil)
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}

func entryNotFound(id string) *errors.APIError {
	return errors.NewNotFoundError("entry not found", nil).
		WithKey("entry_not_found", map[string]string{"entry_id": id})
}

// Account resolves a running entry for the submission action
func (s *Service) Account(entryID string) (*submission.Account, error) {
	rt := s.runtime(entryID)
	if rt == nil {
		return nil, entryNotFound(entryID)
	}
	return &submission.Account{Entry: rt.entry, API: rt.client}, nil
}

func (s *Service) runtime(entryID string) *runtime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtimes[entryID]
}
