package memories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/dbx"
	"github.com/dmitrijs2005/almacen/internal/models"
)

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a SQLiteRepository bound to db.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, title, content, is_encrypted, type, tags, file_path, media_urls,
	privacy_level, encryption_level, created_at, updated_at`

// Save upserts m by id.
func (r *SQLiteRepository) Save(ctx context.Context, m *models.Memory) error {
	row, err := toRow(m)
	if err != nil {
		return err
	}

	query := `INSERT INTO memories (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			is_encrypted = excluded.is_encrypted,
			type = excluded.type,
			tags = excluded.tags,
			file_path = excluded.file_path,
			media_urls = excluded.media_urls,
			privacy_level = excluded.privacy_level,
			encryption_level = excluded.encryption_level,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query,
		row.id, row.title, row.content, row.encrypted, row.typ, row.tags, row.filePath, row.mediaURLs,
		row.privacy, row.level, row.createdAt, row.updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert memory: %w", err)
	}
	return nil
}

// Get returns a single memory.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Memory, error) {
	query := `SELECT ` + selectColumns + ` FROM memories WHERE id = ?`
	m, err := scanMemory(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return m, nil
}

// Delete removes a memory; exactly one row must be affected.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("memory %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// List returns memories ordered by creation time, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit, offset int) ([]models.Memory, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + selectColumns + ` FROM memories
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select memories: %w", err)
	}
	defer rows.Close()

	result := []models.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns the number of rows.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return n, nil
}

// Clear deletes every memory. It is used by restore inside a transaction.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("failed to clear memories: %w", err)
	}
	return nil
}

type memoryRow struct {
	id        int64
	title     string
	content   string
	encrypted bool
	typ       string
	tags      string
	filePath  string
	mediaURLs string
	privacy   int
	level     string
	createdAt int64
	updatedAt int64
}

func toRow(m *models.Memory) (*memoryRow, error) {
	row := &memoryRow{
		id:        m.ID,
		title:     m.Title,
		typ:       string(m.Type),
		filePath:  m.FilePath,
		privacy:   m.PrivacyLevel,
		level:     string(m.EncryptionLevel),
		createdAt: m.CreatedAt.UnixNano(),
		updatedAt: m.UpdatedAt.UnixNano(),
	}
	if row.level == "" {
		row.level = string(models.EncryptionNone)
	}

	if env, ok := m.Envelope(); ok {
		b, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("encode envelope: %w", err)
		}
		row.content = string(b)
		row.encrypted = true
	} else {
		row.content, _ = m.Text()
	}

	tags, err := json.Marshal(nonNil(m.Tags))
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	urls, err := json.Marshal(nonNil(m.MediaURLs))
	if err != nil {
		return nil, fmt.Errorf("encode media urls: %w", err)
	}
	row.tags, row.mediaURLs = string(tags), string(urls)
	return row, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(s scanner) (*models.Memory, error) {
	var row memoryRow
	if err := s.Scan(&row.id, &row.title, &row.content, &row.encrypted, &row.typ, &row.tags,
		&row.filePath, &row.mediaURLs, &row.privacy, &row.level, &row.createdAt, &row.updatedAt); err != nil {
		return nil, err
	}

	m := &models.Memory{
		ID:              row.id,
		Title:           row.title,
		Type:            models.MemoryType(row.typ),
		FilePath:        row.filePath,
		PrivacyLevel:    row.privacy,
		EncryptionLevel: models.EncryptionLevel(row.level),
		CreatedAt:       time.Unix(0, row.createdAt).UTC(),
		UpdatedAt:       time.Unix(0, row.updatedAt).UTC(),
	}

	if row.encrypted {
		var env models.Envelope
		if err := json.Unmarshal([]byte(row.content), &env); err != nil {
			return nil, fmt.Errorf("memory %d: decode envelope: %w", row.id, err)
		}
		m.Content = models.SealedContent{Envelope: &env}
	} else {
		m.Content = models.PlainContent{Text: row.content}
	}

	if err := json.Unmarshal([]byte(row.tags), &m.Tags); err != nil {
		return nil, fmt.Errorf("memory %d: decode tags: %w", row.id, err)
	}
	if err := json.Unmarshal([]byte(row.mediaURLs), &m.MediaURLs); err != nil {
		return nil, fmt.Errorf("memory %d: decode media urls: %w", row.id, err)
	}
	if len(m.MediaURLs) == 0 {
		m.MediaURLs = nil
	}
	return m, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
