// Package repomanager bundles the three repositories of one storage backend
// and adds the whole-dataset operations that span them.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/audit"
	"github.com/dmitrijs2005/almacen/internal/repositories/memories"
	"github.com/dmitrijs2005/almacen/internal/repositories/settings"
)

// RepositoryManager is the storage port of the services.
type RepositoryManager interface {
	// Name identifies the backend in logs.
	Name() string

	Memories() memories.Repository
	Audit() audit.Repository
	Settings() settings.Repository

	// ReplaceAll swaps every collection for the content of snap in one
	// atomic step: after an error the previous data is intact.
	ReplaceAll(ctx context.Context, snap *models.Snapshot) error

	// Ping checks that the backend is usable.
	Ping(ctx context.Context) error

	Close() error
}

// Snapshot reads every collection of m.
func Snapshot(ctx context.Context, m RepositoryManager) (*models.Snapshot, error) {
	ms, err := memories.All(ctx, m.Memories())
	if err != nil {
		return nil, err
	}
	entries, err := m.Audit().All(ctx)
	if err != nil {
		return nil, err
	}
	values, err := m.Settings().List(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{Memories: ms, AuditLog: entries, Settings: values}, nil
}
