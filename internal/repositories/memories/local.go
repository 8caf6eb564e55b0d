package memories

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/kvstore"
	"github.com/dmitrijs2005/almacen/internal/models"
)

// LocalKey is the kvstore key holding the memory collection.
const LocalKey = "almacen.memories"

// LocalRepository implements Repository over a kvstore.Store.
type LocalRepository struct {
	store *kvstore.Store
}

// NewLocalRepository returns a LocalRepository bound to store.
func NewLocalRepository(store *kvstore.Store) *LocalRepository {
	return &LocalRepository{store: store}
}

// EncodeLocal renders ms in the form LocalRepository stores.
func EncodeLocal(ms []models.Memory) (string, error) {
	if ms == nil {
		ms = []models.Memory{}
	}
	b, err := json.Marshal(ms)
	if err != nil {
		return "", fmt.Errorf("encode memories: %w", err)
	}
	return string(b), nil
}

func decodeLocal(raw string, ok bool) ([]models.Memory, error) {
	if !ok || raw == "" {
		return nil, nil
	}
	var ms []models.Memory
	if err := json.Unmarshal([]byte(raw), &ms); err != nil {
		return nil, fmt.Errorf("%w: decode memories: %v", common.ErrStorage, err)
	}
	return ms, nil
}

func (r *LocalRepository) load() ([]models.Memory, error) {
	return decodeLocal(r.store.Get(LocalKey))
}

// Save upserts m.
func (r *LocalRepository) Save(_ context.Context, m *models.Memory) error {
	return r.store.Update(LocalKey, func(old string, ok bool) (string, bool, error) {
		ms, err := decodeLocal(old, ok)
		if err != nil {
			return "", false, err
		}
		i := slices.IndexFunc(ms, func(x models.Memory) bool { return x.ID == m.ID })
		if i >= 0 {
			ms[i] = *m.Clone()
		} else {
			ms = append(ms, *m.Clone())
		}
		v, err := EncodeLocal(ms)
		return v, true, err
	})
}

// Get returns the memory with id.
func (r *LocalRepository) Get(_ context.Context, id int64) (*models.Memory, error) {
	ms, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range ms {
		if ms[i].ID == id {
			return &ms[i], nil
		}
	}
	return nil, fmt.Errorf("memory %d: %w", id, common.ErrNotFound)
}

// Delete removes the memory with id.
func (r *LocalRepository) Delete(_ context.Context, id int64) error {
	return r.store.Update(LocalKey, func(old string, ok bool) (string, bool, error) {
		ms, err := decodeLocal(old, ok)
		if err != nil {
			return "", false, err
		}
		n := len(ms)
		ms = slices.DeleteFunc(ms, func(x models.Memory) bool { return x.ID == id })
		if len(ms) == n {
			return "", false, fmt.Errorf("memory %d: %w", id, common.ErrNotFound)
		}
		v, err := EncodeLocal(ms)
		return v, true, err
	})
}

// List returns memories newest first.
func (r *LocalRepository) List(_ context.Context, limit, offset int) ([]models.Memory, error) {
	ms, err := r.load()
	if err != nil {
		return nil, err
	}
	SortNewestFirst(ms)
	return common.Page(ms, limit, offset), nil
}

// Count returns the number of stored memories.
func (r *LocalRepository) Count(_ context.Context) (int, error) {
	ms, err := r.load()
	if err != nil {
		return 0, err
	}
	return len(ms), nil
}

// SortNewestFirst orders ms by creation time descending, then by id.
func SortNewestFirst(ms []models.Memory) {
	slices.SortStableFunc(ms, func(a, b models.Memory) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
