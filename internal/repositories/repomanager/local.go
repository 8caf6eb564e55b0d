package repomanager

import (
	"context"

	"github.com/dmitrijs2005/almacen/internal/kvstore"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/audit"
	"github.com/dmitrijs2005/almacen/internal/repositories/memories"
	"github.com/dmitrijs2005/almacen/internal/repositories/settings"
)

// LocalRepositoryManager keeps every collection in a kvstore.Store.
type LocalRepositoryManager struct {
	store    *kvstore.Store
	memories *memories.LocalRepository
	audit    *audit.LocalRepository
	settings *settings.LocalRepository
}

// NewLocalRepositoryManager returns a manager over store.
func NewLocalRepositoryManager(store *kvstore.Store) *LocalRepositoryManager {
	return &LocalRepositoryManager{
		store:    store,
		memories: memories.NewLocalRepository(store),
		audit:    audit.NewLocalRepository(store),
		settings: settings.NewLocalRepository(store),
	}
}

// OpenLocal opens the store file at path with the given quota.
func OpenLocal(path string, quota int64) (*LocalRepositoryManager, error) {
	store, err := kvstore.Open(path, quota)
	if err != nil {
		return nil, err
	}
	return NewLocalRepositoryManager(store), nil
}

func (m *LocalRepositoryManager) Name() string { return "local" }

func (m *LocalRepositoryManager) Memories() memories.Repository { return m.memories }
func (m *LocalRepositoryManager) Audit() audit.Repository       { return m.audit }
func (m *LocalRepositoryManager) Settings() settings.Repository { return m.settings }

// ReplaceAll writes the three collection keys in one store update.
func (m *LocalRepositoryManager) ReplaceAll(_ context.Context, snap *models.Snapshot) error {
	ms, err := memories.EncodeLocal(snap.Memories)
	if err != nil {
		return err
	}
	entries, err := audit.EncodeLocal(snap.AuditLog)
	if err != nil {
		return err
	}
	values, err := settings.EncodeLocal(snap.Settings)
	if err != nil {
		return err
	}
	return m.store.SetItems(map[string]*string{
		memories.LocalKey: &ms,
		audit.LocalKey:    &entries,
		settings.LocalKey: &values,
	})
}

func (m *LocalRepositoryManager) Ping(context.Context) error { return nil }

func (m *LocalRepositoryManager) Close() error { return nil }
