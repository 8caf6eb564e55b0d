// Package settings persists small named values such as the user config and
// the master-key verifier.
package settings

import "context"

// Repository describes storage operations for settings.
type Repository interface {
	// Get returns the value under key, or common.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every setting.
	List(ctx context.Context) (map[string][]byte, error)

	// Clear removes every setting.
	Clear(ctx context.Context) error
}
