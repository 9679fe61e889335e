package systemlogs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

type PostgresRepository struct {
	db      dbx.DBTX
	timeout time.Duration
}

func NewPostgresRepository(db dbx.DBTX, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout}
}

// Create appends entry and fills its ID and CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, entry *models.SystemLog) error {
	data := entry.Data
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode system log data: %w", err)
	}

	query := `
		INSERT INTO system_logs (class_name, function_name, slug, status, data)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING id, created_at
	`

	ctx, cancel := dbx.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.db.QueryRowContext(ctx, query,
		entry.ClassName, entry.FunctionName, entry.Slug, entry.Status, string(raw)).
		Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
