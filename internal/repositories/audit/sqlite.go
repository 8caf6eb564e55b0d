package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/almacen/internal/dbx"
	"github.com/dmitrijs2005/almacen/internal/models"
)

// SQLiteRepository implements Repository over a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a SQLiteRepository bound to db.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = `seq, id, ts, action, resource, user_id, details, ip_address, user_agent, prev_hash, hash`

// Append inserts e. A duplicate sequence number or id is an error.
func (r *SQLiteRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	details := string(e.Details)
	if details == "" {
		details = "{}"
	}
	query := `INSERT INTO audit_log (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.Seq, e.ID, e.Timestamp.UnixNano(), e.Action, e.Resource, e.UserID, details,
		e.IPAddress, e.UserAgent, e.PrevHash, e.Hash)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Last returns the newest entry or nil.
func (r *SQLiteRepository) Last(ctx context.Context) (*models.AuditEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM audit_log ORDER BY seq DESC LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last audit entry: %w", err)
	}
	return e, nil
}

func where(f models.AuditFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, f.Action)
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if !f.DateFrom.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, f.DateFrom.UnixNano())
	}
	if !f.DateTo.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, f.DateTo.UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query filters with AND semantics, newest first.
func (r *SQLiteRepository) Query(ctx context.Context, f models.AuditFilter, limit, offset int) ([]models.AuditEntry, int, error) {
	cond, args := where(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + columns + ` FROM audit_log` + cond + ` ORDER BY seq DESC LIMIT ? OFFSET ?`
	entries, err := r.selectEntries(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// All returns every entry in sequence order.
func (r *SQLiteRepository) All(ctx context.Context) ([]models.AuditEntry, error) {
	return r.selectEntries(ctx, `SELECT `+columns+` FROM audit_log ORDER BY seq ASC`)
}

// Clear deletes the whole log. Only restore uses it, inside the transaction
// that writes the restored entries.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM audit_log`); err != nil {
		return fmt.Errorf("failed to clear audit log: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) selectEntries(ctx context.Context, query string, args ...any) ([]models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select audit entries: %w", err)
	}
	defer rows.Close()

	result := []models.AuditEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.AuditEntry, error) {
	var (
		e       models.AuditEntry
		ts      int64
		details string
	)
	if err := s.Scan(&e.Seq, &e.ID, &ts, &e.Action, &e.Resource, &e.UserID, &details,
		&e.IPAddress, &e.UserAgent, &e.PrevHash, &e.Hash); err != nil {
		return nil, err
	}
	e.Timestamp = time.Unix(0, ts).UTC()
	e.Details = []byte(details)
	return &e, nil
}
