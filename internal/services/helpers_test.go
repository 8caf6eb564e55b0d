package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/almacen/internal/dbx"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/migrations"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

const testKey = "Clave-Segura-1"

type testEnv struct {
	db       *sql.DB
	manager  *repomanager.SQLiteRepositoryManager
	audit    *AuditService
	config   *ConfigService
	session  *Session
	memories *MemoryService
}

func newTestEnv(t *testing.T, opts ...SessionOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := dbx.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(ctx, db))

	log := logging.NewNop()
	m := repomanager.NewSQLiteRepositoryManager(db)
	a := NewAuditService(m.Audit(), log)
	cfg := NewConfigService(m.Settings(), models.DefaultUserConfig())
	s := NewSession(m.Settings(), cfg, log, append([]SessionOption{WithSessionAudit(a)}, opts...)...)

	ms, err := NewMemoryService(m.Memories(), a, log, 100)
	require.NoError(t, err)
	t.Cleanup(ms.Close)

	return &testEnv{db: db, manager: m, audit: a, config: cfg, session: s, memories: ms}
}

func (e *testEnv) unlock(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.session.SetMasterKey(ctx, testKey))
	require.True(t, e.session.UnlockWithPassword(ctx, testKey))
}

func textMemory(title, text string, tags ...string) *models.Memory {
	return &models.Memory{
		Title:   title,
		Content: models.PlainContent{Text: text},
		Type:    models.MemoryTypeText,
		Tags:    tags,
	}
}

func auditActions(t *testing.T, a *AuditService) []string {
	t.Helper()
	entries, _, err := a.Query(context.Background(), models.AuditFilter{}, 0, 0)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].Action)
	}
	return out
}
