package systemlogs

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/accounts/internal/server/models"
)

type MemoryRepository struct {
	mu      sync.Mutex
	entries []models.SystemLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, entry *models.SystemLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()

	stored := *entry
	stored.Data = maps.Clone(entry.Data)

	r.mu.Lock()
	r.entries = append(r.entries, stored)
	r.mu.Unlock()
	return nil
}

// Entries returns a snapshot of everything written so far, oldest first.
func (r *MemoryRepository) Entries() []models.SystemLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SystemLog, len(r.entries))
	copy(out, r.entries)
	return out
}
