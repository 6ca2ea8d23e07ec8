// FilePath: internal/database/database.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/itsatony/etbridge/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB is the connection handle shared by all repositories
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	GetDB() *sqlx.DB
	Driver() string
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

// Repository represents common repository operations
type Repository interface {
	BeginTx(ctx context.Context) (Transaction, error)
}

type sqlDB struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the configured driver and applies the schema
func Open(ctx context.Context, cfg config.DatabaseConfig) (DB, error) {
	var (
		db  DB
		err error
	)
	switch cfg.Driver {
	case DriverPostgres:
		db, err = NewPostgresDB(cfg.Postgres)
	case DriverSQLite:
		db, err = NewSQLiteDB(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.PostgresConfig) (DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to PostgreSQL: %w", err)
	}

	nuts.L.Infof("[PostgresDB] Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.DBName)
	return &sqlDB{db: db, driver: DriverPostgres}, nil
}

// NewSQLiteDB opens (and creates if needed) a SQLite database file
func NewSQLiteDB(cfg config.SQLiteConfig) (DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating sqlite directory: %w", err)
		}
	}

	db, err := sqlx.Connect(DriverSQLite, cfg.Path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("error opening SQLite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	nuts.L.Infof("[SQLiteDB] Opened %s", cfg.Path)
	return &sqlDB{db: db, driver: DriverSQLite}, nil
}

func (s *sqlDB) Close() error {
	return s.db.Close()
}

func (s *sqlDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlDB) GetDB() *sqlx.DB {
	return s.db
}

func (s *sqlDB) Driver() string {
	return s.driver
}
