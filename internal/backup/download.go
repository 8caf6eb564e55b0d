package backup

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
)

// DownloadDestination hands each artifact to a writer once and keeps no
// registry, so it cannot list, fetch or delete backups.
type DownloadDestination struct {
	w io.Writer
}

var _ Destination = (*DownloadDestination)(nil)

func NewDownloadDestination(w io.Writer) *DownloadDestination {
	return &DownloadDestination{w: w}
}

func (d *DownloadDestination) Name() string { return "download" }

func (d *DownloadDestination) Put(_ context.Context, info *models.BackupInfo, data []byte) error {
	if _, err := d.w.Write(data); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	info.Location = "download:" + info.Name
	return nil
}

func (d *DownloadDestination) Get(context.Context, string) ([]byte, error) {
	return nil, common.ErrUnsupported
}

func (d *DownloadDestination) List(context.Context) ([]models.BackupInfo, error) {
	return nil, common.ErrUnsupported
}

func (d *DownloadDestination) Delete(context.Context, string) error {
	return common.ErrUnsupported
}
