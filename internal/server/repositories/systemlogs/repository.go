// Package systemlogs persists operation outcome records.
package systemlogs

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entry *models.SystemLog) error
}
