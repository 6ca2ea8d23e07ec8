// FilePath: internal/repository/sqldb/sqldb.device.go
package sqldb

import (
	"context"

	"github.com/itsatony/etbridge/internal/database"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
)

type DeviceRepo struct {
	BaseRepo
}

func NewDeviceRepository(db database.DB) *DeviceRepo {
	return &DeviceRepo{BaseRepo: BaseRepo{db: db}}
}

// ReplaceForEntry swaps the stored device list of an entry in one transaction
func (r *DeviceRepo) ReplaceForEntry(ctx context.Context, entryID string, devices []models.Device) error {
	tx, err := r.db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM entry_devices WHERE entry_id = ?`), entryID); err != nil {
		return errors.NewDatabaseError("failed to clear devices", err)
	}

	insert := `
		INSERT INTO entry_devices (entry_id, id, name, meter_type, meter_number, folder_path, last_updated_at)
		VALUES (:entry_id, :id, :name, :meter_type, :meter_number, :folder_path, :last_updated_at)`
	for _, d := range devices {
		d.EntryID = entryID
		if _, err := tx.NamedExecContext(ctx, insert, d); err != nil {
			return errors.NewDatabaseError("failed to store device", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError("failed to commit transaction", err)
	}
	return nil
}

func (r *DeviceRepo) ListByEntry(ctx context.Context, entryID string) ([]models.Device, error) {
	devices := []models.Device{}
	query := r.rebind(`
		SELECT entry_id, id, name, meter_type, meter_number, folder_path, last_updated_at
		FROM entry_devices WHERE entry_id = ? ORDER BY name, id`)

	if err := r.db.GetDB().SelectContext(ctx, &devices, query, entryID); err != nil {
		return nil, errors.NewDatabaseError("failed to list devices", err)
	}
	return devices, nil
}

func (r *DeviceRepo) DeleteByEntry(ctx context.Context, entryID string, tx database.Transaction) error {
	if _, err := r.exec(ctx, tx, `DELETE FROM entry_devices WHERE entry_id = ?`, entryID); err != nil {
		return errors.NewDatabaseError("failed to delete devices", err)
	}
	return nil
}
