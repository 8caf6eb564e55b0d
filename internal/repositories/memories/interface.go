// Package memories persists memory records.
//
// Repository is the storage port used by the memory service. SQLiteRepository
// keeps one row per memory; LocalRepository keeps the whole collection as a
// JSON array under a single kvstore key. The bridge client is a third
// implementation living in package bridge.
package memories

import (
	"context"

	"github.com/dmitrijs2005/almacen/internal/models"
)

// Repository describes storage operations for memories.
type Repository interface {
	// Save inserts m or replaces the stored record with the same ID.
	Save(ctx context.Context, m *models.Memory) error

	// Get returns the memory with id, or common.ErrNotFound.
	Get(ctx context.Context, id int64) (*models.Memory, error)

	// Delete removes the memory with id, or returns common.ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// List returns memories newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit, offset int) ([]models.Memory, error)

	// Count returns the number of stored memories.
	Count(ctx context.Context) (int, error)
}

// All returns every memory in r, newest first.
func All(ctx context.Context, r Repository) ([]models.Memory, error) {
	return r.List(ctx, 0, 0)
}
