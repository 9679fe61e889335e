package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
)

// SystemLogService appends operation outcomes to the system log. Writing is
// best effort: a failed write is logged and otherwise ignored.
type SystemLogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewSystemLogService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *SystemLogService {
	return &SystemLogService{db: db, repomanager: m, logger: logger}
}

// Record stores entry, filling Status with failed when it is empty.
func (s *SystemLogService) Record(ctx context.Context, entry *models.SystemLog) {
	if entry.Status == "" {
		entry.Status = models.SystemLogFailed
	}
	if err := s.repomanager.SystemLogs(s.db).Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn(ctx, "system log write failed",
			"class_name", entry.ClassName,
			"function_name", entry.FunctionName,
			"error", err.Error())
	}
}
