package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/almacen/internal/dbx"
	"github.com/dmitrijs2005/almacen/internal/migrations"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/audit"
	"github.com/dmitrijs2005/almacen/internal/repositories/memories"
	"github.com/dmitrijs2005/almacen/internal/repositories/settings"
)

// SQLiteRepositoryManager vends SQLite-backed repositories over one *sql.DB.
type SQLiteRepositoryManager struct {
	db       *sql.DB
	memories *memories.SQLiteRepository
	audit    *audit.SQLiteRepository
	settings *settings.SQLiteRepository
}

// NewSQLiteRepositoryManager wraps an open database; migrations must already
// have run.
func NewSQLiteRepositoryManager(db *sql.DB) *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{
		db:       db,
		memories: memories.NewSQLiteRepository(db),
		audit:    audit.NewSQLiteRepository(db),
		settings: settings.NewSQLiteRepository(db),
	}
}

// OpenSQLite opens the database at path, migrates it and returns a manager
// that owns the connection.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepositoryManager, error) {
	db, err := dbx.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLiteRepositoryManager(db), nil
}

func (m *SQLiteRepositoryManager) Name() string { return "sqlite" }

func (m *SQLiteRepositoryManager) Memories() memories.Repository { return m.memories }
func (m *SQLiteRepositoryManager) Audit() audit.Repository       { return m.audit }
func (m *SQLiteRepositoryManager) Settings() settings.Repository { return m.settings }

// ReplaceAll clears and refills the three tables inside one transaction.
func (m *SQLiteRepositoryManager) ReplaceAll(ctx context.Context, snap *models.Snapshot) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mr := memories.NewSQLiteRepository(tx)
		ar := audit.NewSQLiteRepository(tx)
		sr := settings.NewSQLiteRepository(tx)

		if err := mr.Clear(ctx); err != nil {
			return err
		}
		if err := ar.Clear(ctx); err != nil {
			return err
		}
		if err := sr.Clear(ctx); err != nil {
			return err
		}

		for i := range snap.Memories {
			if err := mr.Save(ctx, &snap.Memories[i]); err != nil {
				return fmt.Errorf("restore memory %d: %w", snap.Memories[i].ID, err)
			}
		}
		for i := range snap.AuditLog {
			if err := ar.Append(ctx, &snap.AuditLog[i]); err != nil {
				return fmt.Errorf("restore audit entry %d: %w", snap.AuditLog[i].Seq, err)
			}
		}
		for k, v := range snap.Settings {
			if err := sr.Set(ctx, k, v); err != nil {
				return fmt.Errorf("restore setting %q: %w", k, err)
			}
		}
		return nil
	})
}

func (m *SQLiteRepositoryManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *SQLiteRepositoryManager) Close() error {
	return m.db.Close()
}
