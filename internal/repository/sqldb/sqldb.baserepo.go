package sqldb

import (
	"context"

	"github.com/itsatony/etbridge/internal/database"
	"github.com/itsatony/etbridge/internal/errors"
)

type BaseRepo struct {
	db database.DB
}

func (r *BaseRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := r.db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to begin transaction", err)
	}
	return tx, nil
}

func (r *BaseRepo) Commit(tx database.Transaction) error {
	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError("failed to commit transaction", err)
	}
	return nil
}

// exec runs query on tx when given, else directly on the database
func (r *BaseRepo) exec(ctx context.Context, tx database.Transaction, query string, args ...interface{}) (int64, error) {
	var (
		rows int64
		err  error
	)
	if tx != nil {
		res, execErr := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if execErr == nil {
			rows, err = res.RowsAffected()
		}
		err = firstErr(execErr, err)
	} else {
		db := r.db.GetDB()
		res, execErr := db.ExecContext(ctx, db.Rebind(query), args...)
		if execErr == nil {
			rows, err = res.RowsAffected()
		}
		err = firstErr(execErr, err)
	}
	return rows, err
}

func (r *BaseRepo) rebind(query string) string {
	return r.db.GetDB().Rebind(query)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
