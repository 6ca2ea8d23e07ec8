package cleanup

import (
	"context"
	"fmt"

	"github.com/itsatony/etbridge/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

const (
	EventEntryDeleted    = "entry.deleted"
	EventDevicesDeleted  = "devices.deleted"
	EventIssuesDismissed = "issues.dismissed"
)

// IssueDismisser closes the repair issues of an entry
type IssueDismisser interface {
	DismissEntry(ctx context.Context, entryID string) (int, error)
}

// CleanupService coordinates deletion of an entry and everything stored for it
type CleanupService struct {
	entries repository.EntryRepository
	devices repository.DeviceRepository
	issues  IssueDismisser
	events  *nuts.EventEmitter
}

// New creates a new CleanupService
func New(
	entries repository.EntryRepository,
	devices repository.DeviceRepository,
	issues IssueDismisser,
) *CleanupService {
	return &CleanupService{
		entries: entries,
		devices: devices,
		issues:  issues,
		events:  nuts.NewEventEmitter(),
	}
}

// DeleteEntry deletes an entry, its persisted device list and its open issues
func (s *CleanupService) DeleteEntry(ctx context.Context, entryID string) error {
	// Start transaction
	tx, err := s.entries.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	if err := s.devices.DeleteByEntry(ctx, entryID, tx); err != nil {
		return fmt.Errorf("failed to delete devices: %w", err)
	}

	if err := s.entries.Delete(ctx, entryID, tx); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.events.Emit(EventDevicesDeleted, entryID)

	// Issues live outside the database; a failure here leaves stale issues
	// but the entry is gone either way.
	if s.issues != nil {
		if _, err := s.issues.DismissEntry(ctx, entryID); err != nil {
			nuts.L.Errorf("[Cleanup] Failed to dismiss issues of %s: %v", entryID, err)
		} else {
			s.events.Emit(EventIssuesDismissed, entryID)
		}
	}

	// Emit event after successful deletion
	s.events.Emit(EventEntryDeleted, entryID)
	return nil
}

// OnCleanup registers a callback for cleanup events
func (s *CleanupService) OnCleanup(event string, handler func(id string)) {
	s.events.On(event, nuts.NID("cleanup", 8), func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}
