package backup

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/google/uuid"
)

// Destination stores backup artifacts together with their BackupInfo.
type Destination interface {
	// Name identifies the destination in logs and in BackupInfo.Location.
	Name() string
	// Put stores data under info.ID and sets info.Location.
	Put(ctx context.Context, info *models.BackupInfo, data []byte) error
	// Get returns the artifact with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) ([]byte, error)
	// List returns the stored backups, newest first.
	List(ctx context.Context) ([]models.BackupInfo, error)
	// Delete removes a backup, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// validID keeps ids usable as file names and object keys.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func sortNewestFirst(infos []models.BackupInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
}
