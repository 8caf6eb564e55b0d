package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/filex"
	"github.com/dmitrijs2005/almacen/internal/models"
)

const (
	dataExt = ".bak"
	infoExt = ".json"
)

// DirDestination keeps backups as files in a local directory: <id>.bak holds
// the artifact and <id>.json its BackupInfo.
type DirDestination struct {
	dir string
}

var _ Destination = (*DirDestination)(nil)

func NewDirDestination(dir string) *DirDestination {
	return &DirDestination{dir: dir}
}

func (d *DirDestination) Name() string { return "dir" }

func (d *DirDestination) paths(id string) (string, string) {
	return filepath.Join(d.dir, id+dataExt), filepath.Join(d.dir, id+infoExt)
}

func (d *DirDestination) Put(_ context.Context, info *models.BackupInfo, data []byte) error {
	if !validID(info.ID) {
		return fmt.Errorf("invalid backup id %q", info.ID)
	}
	if _, err := filex.EnsureDir(d.dir); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}

	dataPath, infoPath := d.paths(info.ID)
	info.Location = dataPath

	if err := filex.WriteFileAtomic(dataPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	meta, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(infoPath, meta, 0o600); err != nil {
		_ = os.Remove(dataPath)
		return fmt.Errorf("failed to write backup info: %w", err)
	}
	return nil
}

func (d *DirDestination) Get(_ context.Context, id string) ([]byte, error) {
	if !validID(id) {
		return nil, common.ErrNotFound
	}
	dataPath, _ := d.paths(id)
	data, err := os.ReadFile(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	return data, nil
}

func (d *DirDestination) List(_ context.Context) ([]models.BackupInfo, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	infos := make([]models.BackupInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, infoExt) || !validID(strings.TrimSuffix(name, infoExt)) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(d.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read backup info: %w", err)
		}
		var info models.BackupInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			continue
		}
		infos = append(infos, info)
	}
	sortNewestFirst(infos)
	return infos, nil
}

func (d *DirDestination) Delete(_ context.Context, id string) error {
	if !validID(id) {
		return common.ErrNotFound
	}
	dataPath, infoPath := d.paths(id)
	if !filex.Exists(dataPath) && !filex.Exists(infoPath) {
		return common.ErrNotFound
	}
	for _, p := range []string{dataPath, infoPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete backup: %w", err)
		}
	}
	return nil
}
