package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/almacen/internal/dbx"
	"github.com/dmitrijs2005/almacen/internal/kvstore"
	"github.com/dmitrijs2005/almacen/internal/migrations"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 5, time.UTC)

func entry(seq int64, action, user string, at time.Duration) *models.AuditEntry {
	return &models.AuditEntry{
		ID:        fmt.Sprintf("id-%d", seq),
		Seq:       seq,
		Timestamp: t0.Add(at),
		Action:    action,
		Resource:  fmt.Sprintf("memory:%d", seq),
		UserID:    user,
		Details:   json.RawMessage(`{"n":1}`),
		PrevHash:  fmt.Sprintf("h%d", seq-1),
		Hash:      fmt.Sprintf("h%d", seq),
	}
}

func runContract(t *testing.T, repo Repository) {
	ctx := context.Background()

	last, err := repo.Last(ctx)
	require.NoError(t, err)
	require.Nil(t, last)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	require.NoError(t, repo.Append(ctx, entry(1, models.ActionMemoryCreate, "local", 0)))
	require.NoError(t, repo.Append(ctx, entry(2, models.ActionMemoryUpdate, "local", time.Hour)))
	require.NoError(t, repo.Append(ctx, entry(3, models.ActionMemoryCreate, "other", 2*time.Hour)))
	require.Error(t, repo.Append(ctx, entry(3, models.ActionMemoryDelete, "local", 3*time.Hour)))

	last, err = repo.Last(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(3), last.Seq)
	assert.True(t, t0.Add(2*time.Hour).Equal(last.Timestamp))
	assert.JSONEq(t, `{"n":1}`, string(last.Details))

	all, err = repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].Seq, all[1].Seq, all[2].Seq})

	got, total, err := repo.Query(ctx, models.AuditFilter{Action: models.ActionMemoryCreate}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].Seq, "newest first")

	got, total, err = repo.Query(ctx, models.AuditFilter{Action: models.ActionMemoryCreate, UserID: "local"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, int64(1), got[0].Seq)

	got, total, err = repo.Query(ctx, models.AuditFilter{DateFrom: t0.Add(time.Hour), DateTo: t0.Add(2 * time.Hour)}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total, "total ignores paging; bounds are inclusive")
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].Seq)

	got, total, err = repo.Query(ctx, models.AuditFilter{Action: "backup.create"}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, got)
}

func TestSQLiteRepository_Contract(t *testing.T) {
	ctx := context.Background()
	db, err := dbx.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(ctx, db))

	repo := NewSQLiteRepository(db)
	runContract(t, repo)

	require.NoError(t, repo.Clear(ctx))
	last, err := repo.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestLocalRepository_Contract(t *testing.T) {
	store, err := kvstore.Open("", 0)
	require.NoError(t, err)
	runContract(t, NewLocalRepository(store))
}

func TestSQLiteRepository_DriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("locked")
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(boom)
	require.ErrorIs(t, repo.Append(ctx, entry(1, "a", "u", 0)), boom)

	mock.ExpectQuery("ORDER BY seq DESC LIMIT 1").WillReturnError(boom)
	_, err = repo.Last(ctx)
	require.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT COUNT").WithArgs("memory.create").WillReturnError(boom)
	_, _, err = repo.Query(ctx, models.AuditFilter{Action: "memory.create"}, 0, 0)
	require.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(4))
	mock.ExpectQuery("ORDER BY seq DESC LIMIT").WillReturnError(boom)
	_, _, err = repo.Query(ctx, models.AuditFilter{}, 0, 0)
	require.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}
