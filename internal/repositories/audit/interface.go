// Package audit persists the append-only audit log.
//
// Implementations store entries exactly as given; sequence numbers and the
// hash chain are computed by the audit service.
package audit

import (
	"context"

	"github.com/dmitrijs2005/almacen/internal/models"
)

// Repository describes storage operations for audit entries.
type Repository interface {
	// Append stores e. Entries are never updated or removed.
	Append(ctx context.Context, e *models.AuditEntry) error

	// Last returns the entry with the highest sequence number, or nil when
	// the log is empty.
	Last(ctx context.Context) (*models.AuditEntry, error)

	// Query returns the entries matching f, newest first, and the total
	// number of matches before paging. limit <= 0 means no limit.
	Query(ctx context.Context, f models.AuditFilter, limit, offset int) ([]models.AuditEntry, int, error)

	// All returns the whole log in sequence order.
	All(ctx context.Context) ([]models.AuditEntry, error)
}
