// FilePath: internal/repository/sqldb/sqldb.entry.go
package sqldb

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/itsatony/etbridge/internal/database"
	"github.com/itsatony/etbridge/internal/errors"
	"github.com/itsatony/etbridge/internal/models"
)

type EntryRepo struct {
	BaseRepo
}

func NewEntryRepository(db database.DB) *EntryRepo {
	return &EntryRepo{BaseRepo: BaseRepo{db: db}}
}

func (r *EntryRepo) Create(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (id, name, api_token, created_at, updated_at)
		VALUES (:id, :name, :api_token, :created_at, :updated_at)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, entry)
	if err != nil {
		return errors.NewDatabaseError("failed to create entry", err)
	}
	return nil
}

func (r *EntryRepo) Get(ctx context.Context, id string) (*models.Entry, error) {
	return r.getBy(ctx, "id", id)
}

func (r *EntryRepo) GetByName(ctx context.Context, name string) (*models.Entry, error) {
	return r.getBy(ctx, "name", name)
}

func (r *EntryRepo) GetByToken(ctx context.Context, token string) (*models.Entry, error) {
	return r.getBy(ctx, "api_token", token)
}

// column is always one of the literals above
func (r *EntryRepo) getBy(ctx context.Context, column, value string) (*models.Entry, error) {
	entry := &models.Entry{}
	query := r.rebind(`SELECT id, name, api_token, created_at, updated_at FROM entries WHERE ` + column + ` = ?`)

	err := r.db.GetDB().GetContext(ctx, entry, query, value)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("entry not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get entry", err)
	}
	return entry, nil
}

func (r *EntryRepo) Update(ctx context.Context, entry *models.Entry) error {
	query := `
		UPDATE entries SET
			name = :name,
			api_token = :api_token,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, entry)
	if err != nil {
		return errors.NewDatabaseError("failed to update entry", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("entry not found", nil)
	}
	return nil
}

func (r *EntryRepo) Delete(ctx context.Context, id string, tx database.Transaction) error {
	rows, err := r.exec(ctx, tx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete entry", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("entry not found", nil)
	}
	return nil
}

func (r *EntryRepo) List(ctx context.Context) ([]*models.Entry, error) {
	entries := []*models.Entry{}
	query := `SELECT id, name, api_token, created_at, updated_at FROM entries ORDER BY created_at, id`

	if err := r.db.GetDB().SelectContext(ctx, &entries, query); err != nil {
		return nil, errors.NewDatabaseError("failed to list entries", err)
	}
	return entries, nil
}
