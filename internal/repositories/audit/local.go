package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/kvstore"
	"github.com/dmitrijs2005/almacen/internal/models"
)

// LocalKey is the kvstore key holding the audit log.
const LocalKey = "almacen.audit"

// LocalRepository implements Repository over a kvstore.Store.
type LocalRepository struct {
	store *kvstore.Store
}

// NewLocalRepository returns a LocalRepository bound to store.
func NewLocalRepository(store *kvstore.Store) *LocalRepository {
	return &LocalRepository{store: store}
}

// EncodeLocal renders entries in the form LocalRepository stores.
func EncodeLocal(entries []models.AuditEntry) (string, error) {
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode audit log: %w", err)
	}
	return string(b), nil
}

func decodeLocal(raw string, ok bool) ([]models.AuditEntry, error) {
	if !ok || raw == "" {
		return nil, nil
	}
	var entries []models.AuditEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("%w: decode audit log: %v", common.ErrStorage, err)
	}
	return entries, nil
}

// Append adds e at the end of the log.
func (r *LocalRepository) Append(_ context.Context, e *models.AuditEntry) error {
	return r.store.Update(LocalKey, func(old string, ok bool) (string, bool, error) {
		entries, err := decodeLocal(old, ok)
		if err != nil {
			return "", false, err
		}
		if n := len(entries); n > 0 && entries[n-1].Seq >= e.Seq {
			return "", false, fmt.Errorf("audit seq %d is not after %d", e.Seq, entries[n-1].Seq)
		}
		v, err := EncodeLocal(append(entries, *e))
		return v, true, err
	})
}

// Last returns the newest entry or nil.
func (r *LocalRepository) Last(_ context.Context) (*models.AuditEntry, error) {
	entries, err := decodeLocal(r.store.Get(LocalKey))
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[len(entries)-1], nil
}

// Query filters with AND semantics, newest first.
func (r *LocalRepository) Query(_ context.Context, f models.AuditFilter, limit, offset int) ([]models.AuditEntry, int, error) {
	entries, err := decodeLocal(r.store.Get(LocalKey))
	if err != nil {
		return nil, 0, err
	}
	matched := []models.AuditEntry{}
	for i := range entries {
		if f.Match(&entries[i]) {
			matched = append(matched, entries[i])
		}
	}
	slices.Reverse(matched)
	return common.Page(matched, limit, offset), len(matched), nil
}

// All returns every entry in sequence order.
func (r *LocalRepository) All(_ context.Context) ([]models.AuditEntry, error) {
	entries, err := decodeLocal(r.store.Get(LocalKey))
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return entries, nil
}
