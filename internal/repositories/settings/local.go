package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/kvstore"
)

// LocalKey is the kvstore key holding all settings as one JSON object.
const LocalKey = "almacen.settings"

// LocalRepository implements Repository over a kvstore.Store.
type LocalRepository struct {
	store *kvstore.Store
}

// NewLocalRepository returns a LocalRepository bound to store.
func NewLocalRepository(store *kvstore.Store) *LocalRepository {
	return &LocalRepository{store: store}
}

// EncodeLocal renders settings in the form LocalRepository stores.
func EncodeLocal(values map[string][]byte) (string, error) {
	if values == nil {
		values = map[string][]byte{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return string(b), nil
}

func decodeLocal(raw string, ok bool) (map[string][]byte, error) {
	values := map[string][]byte{}
	if !ok || raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("%w: decode settings: %v", common.ErrStorage, err)
	}
	return values, nil
}

func (r *LocalRepository) update(fn func(values map[string][]byte)) error {
	return r.store.Update(LocalKey, func(old string, ok bool) (string, bool, error) {
		values, err := decodeLocal(old, ok)
		if err != nil {
			return "", false, err
		}
		fn(values)
		v, err := EncodeLocal(values)
		return v, true, err
	})
}

func (r *LocalRepository) Get(_ context.Context, key string) ([]byte, error) {
	values, err := decodeLocal(r.store.Get(LocalKey))
	if err != nil {
		return nil, err
	}
	v, ok := values[key]
	if !ok {
		return nil, fmt.Errorf("setting %q: %w", key, common.ErrNotFound)
	}
	return v, nil
}

func (r *LocalRepository) Set(_ context.Context, key string, value []byte) error {
	return r.update(func(values map[string][]byte) {
		if value == nil {
			value = []byte{}
		}
		values[key] = value
	})
}

func (r *LocalRepository) Delete(_ context.Context, key string) error {
	return r.update(func(values map[string][]byte) {
		delete(values, key)
	})
}

func (r *LocalRepository) List(_ context.Context) (map[string][]byte, error) {
	values, err := decodeLocal(r.store.Get(LocalKey))
	if err != nil {
		return nil, err
	}
	return maps.Clone(values), nil
}

func (r *LocalRepository) Clear(_ context.Context) error {
	return r.store.Remove(LocalKey)
}
