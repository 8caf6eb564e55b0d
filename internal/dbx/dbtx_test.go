package dbx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE memories (id INTEGER PRIMARY KEY, title TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countMemories(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&n))
	return n
}

func insertMemory(ctx context.Context, tx DBTX, title string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO memories(title) VALUES (?)`, title)
	return err
}

func TestWithTx(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		fn      func(ctx context.Context, tx DBTX) error
		wantErr error
		want    int
	}{
		{
			name: "commit",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertMemory(ctx, tx, "uno"); err != nil {
					return err
				}
				return insertMemory(ctx, tx, "dos")
			},
			want: 2,
		},
		{
			name: "rollback on error",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertMemory(ctx, tx, "uno"); err != nil {
					return err
				}
				return boom
			},
			wantErr: boom,
		},
		{
			name: "rollback on failing statement",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertMemory(ctx, tx, "uno"); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, `INSERT INTO memories(title) VALUES (NULL)`)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupDB(t)
			err := WithTx(context.Background(), db, nil, tt.fn)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.want == 0:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, countMemories(t, db))
		})
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	require.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertMemory(ctx, tx, "uno"))
			panic("kaput")
		})
	})
	require.Equal(t, 0, countMemories(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()

	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "almacen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO kv VALUES ('a', 'b')`)
	require.NoError(t, err)

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk))
	require.Equal(t, 1, fk)
}

func TestOpenSQLite_Memory(t *testing.T) {
	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE x (id INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO x VALUES (1)`)
	require.NoError(t, err)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM x`).Scan(new(int)))
}

func TestOpenSQLite_BadPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	require.Error(t, err)
}
