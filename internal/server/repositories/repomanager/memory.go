package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/systemlogs"
)

// MemoryRepositoryManager hands out process-local repositories. The db
// argument is ignored; every call returns the same instances.
type MemoryRepositoryManager struct {
	accounts   *accounts.MemoryRepository
	systemLogs *systemlogs.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		accounts:   accounts.NewMemoryRepository(),
		systemLogs: systemlogs.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Accounts(dbx.DBTX) accounts.Repository {
	return m.accounts
}

func (m *MemoryRepositoryManager) SystemLogs(dbx.DBTX) systemlogs.Repository {
	return m.systemLogs
}
