// Package repomanager vends the repositories of one storage backend and owns
// its schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/systemlogs"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	SystemLogs(db dbx.DBTX) systemlogs.Repository
}
