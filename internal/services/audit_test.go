package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_AppendBuildsChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.audit.Append(ctx, models.ActionKeySet, "session", nil)
	require.NoError(t, err)
	second, err := env.audit.Append(ctx, models.ActionMemoryCreate, "memory/1", map[string]any{"type": "text"},
		WithUserID("ana"), WithIPAddress("127.0.0.1"), WithUserAgent("almacen-cli"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Empty(t, first.PrevHash)
	assert.Equal(t, DefaultUserID, first.UserID)
	assert.JSONEq(t, `{}`, string(first.Details))

	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, first.Hash, second.PrevHash)
	assert.Equal(t, "ana", second.UserID)
	assert.Equal(t, "127.0.0.1", second.IPAddress)
	assert.Len(t, second.Hash, 64)

	require.NoError(t, env.audit.Verify(ctx))
}

func TestAuditService_AppendOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.audit.Append(ctx, models.ActionMemoryCreate, "memory", map[string]int{"n": i})
		require.NoError(t, err)
	}
	before, err := env.manager.Audit().All(ctx)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := env.audit.Append(ctx, models.ActionMemoryDelete, "memory", nil)
		require.NoError(t, err)
	}
	after, err := env.manager.Audit().All(ctx)
	require.NoError(t, err)

	require.Len(t, after, 5)
	assert.Equal(t, before, after[:3])
	require.NoError(t, env.audit.Verify(ctx))
}

func TestAuditService_VerifyDetectsTampering(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"edited action", `UPDATE audit_log SET action = 'memory.create' WHERE seq = 2`},
		{"edited details", `UPDATE audit_log SET details = '{"n":99}' WHERE seq = 2`},
		{"removed entry", `DELETE FROM audit_log WHERE seq = 2`},
		{"rewritten hash", `UPDATE audit_log SET hash = 'abc' WHERE seq = 3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				_, err := env.audit.Append(ctx, models.ActionKeySet, "session", map[string]int{"n": i})
				require.NoError(t, err)
			}

			_, err := env.db.ExecContext(ctx, tt.query)
			require.NoError(t, err)

			err = env.audit.Verify(ctx)
			require.ErrorIs(t, err, common.ErrTamperDetected)
			var chainErr *ChainError
			require.True(t, errors.As(err, &chainErr))
			assert.GreaterOrEqual(t, chainErr.Seq, int64(2))
		})
	}
}

func TestAuditService_Query(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	env.audit.now = func() time.Time { clock = clock.Add(time.Hour); return clock }

	_, err := env.audit.Append(ctx, models.ActionKeySet, "session", nil, WithUserID("ana"))
	require.NoError(t, err)
	_, err = env.audit.Append(ctx, models.ActionMemoryCreate, "memory/1", nil, WithUserID("ana"))
	require.NoError(t, err)
	_, err = env.audit.Append(ctx, models.ActionMemoryCreate, "memory/2", nil, WithUserID("luis"))
	require.NoError(t, err)

	entries, total, err := env.audit.Query(ctx, models.AuditFilter{Action: models.ActionMemoryCreate}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "memory/2", entries[0].Resource, "newest first")

	entries, total, err = env.audit.Query(ctx, models.AuditFilter{
		Action: models.ActionMemoryCreate, UserID: "ana",
	}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "memory/1", entries[0].Resource)

	_, total, err = env.audit.Query(ctx, models.AuditFilter{
		DateFrom: time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC),
	}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestAuditService_Export(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var empty bytes.Buffer
	require.NoError(t, env.audit.Export(ctx, &empty))
	assert.JSONEq(t, `[]`, empty.String())

	_, err := env.audit.Append(ctx, models.ActionBackupCreate, "backup/x", map[string]string{"note": "<ok>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, env.audit.Export(ctx, &buf))
	var entries []models.AuditEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionBackupCreate, entries[0].Action)
	assert.Contains(t, buf.String(), "\n  ")
}

func TestAuditService_ChainSurvivesLocalBackend(t *testing.T) {
	m, err := repomanager.OpenLocal(filepath.Join(t.TempDir(), "local.json"), 0)
	require.NoError(t, err)
	a := NewAuditService(m.Audit(), logging.NewNop())
	ctx := context.Background()

	_, err = a.Append(ctx, models.ActionMemoryCreate, "memory/1", map[string]string{"html": "<b>&</b>"})
	require.NoError(t, err)
	_, err = a.Append(ctx, models.ActionMemoryDelete, "memory/1", json.RawMessage(`{ "spaced" : true }`))
	require.NoError(t, err)

	require.NoError(t, a.Verify(ctx))
}
