// FilePath: internal/repository/repository.go
package repository

import (
	"context"

	"github.com/itsatony/etbridge/internal/database"
	"github.com/itsatony/etbridge/internal/models"
)

// EntryRepository persists configured accounts
type EntryRepository interface {
	database.Repository
	Create(ctx context.Context, entry *models.Entry) error
	Get(ctx context.Context, id string) (*models.Entry, error)
	GetByName(ctx context.Context, name string) (*models.Entry, error)
	GetByToken(ctx context.Context, token string) (*models.Entry, error)
	Update(ctx context.Context, entry *models.Entry) error
	Delete(ctx context.Context, id string, tx database.Transaction) error
	List(ctx context.Context) ([]*models.Entry, error)
}

// DeviceRepository persists the last known device list of every entry
type DeviceRepository interface {
	database.Repository
	ReplaceForEntry(ctx context.Context, entryID string, devices []models.Device) error
	ListByEntry(ctx context.Context, entryID string) ([]models.Device, error)
	DeleteByEntry(ctx context.Context, entryID string, tx database.Transaction) error
}
