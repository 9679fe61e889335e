package repomanager

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/migrations"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/systemlogs"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories whose calls
// are bounded by storeTimeout.
type PostgresRepositoryManager struct {
	storeTimeout time.Duration
}

// Accounts returns an accounts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db, m.storeTimeout)
}

// SystemLogs returns a systemlogs.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) SystemLogs(db dbx.DBTX) systemlogs.Repository {
	return systemlogs.NewPostgresRepository(db, m.storeTimeout)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

func NewPostgresRepositoryManager(storeTimeout time.Duration) RepositoryManager {
	return &PostgresRepositoryManager{storeTimeout: storeTimeout}
}

// OpenPostgres opens a pgx-backed *sql.DB and checks that it answers.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
