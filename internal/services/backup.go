package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dmitrijs2005/almacen/internal/backup"
	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/filex"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/repomanager"
	"github.com/google/uuid"
)

// BackupOptions selects what a backup contains and how it is wrapped.
type BackupOptions struct {
	IncludeMedia bool
	Compress     bool
	Encrypt      bool
	// Password overrides the session key for the encrypted layer.
	Password string
	Level    models.EncryptionLevel
}

// PartialRestoreError is returned together with the result of a restore
// that committed but skipped invalid items.
type PartialRestoreError struct {
	Result *models.RestoreResult
}

func (e *PartialRestoreError) Error() string {
	return fmt.Sprintf("restore skipped %d items (memories %d, audit %d, settings %d)",
		e.Result.Skipped, e.Result.Memories.Skipped, e.Result.Audit.Skipped, e.Result.Settings.Skipped)
}

func (e *PartialRestoreError) Unwrap() error { return common.ErrPartialRestore }

// BackupService creates backups of the whole dataset and restores them.
type BackupService struct {
	manager  repomanager.RepositoryManager
	dest     backup.Destination
	keys     KeyRing
	memories *MemoryService
	audit    auditor
	log      logging.Logger
	mediaDir string
	onReset  []func(context.Context)
	now      func() time.Time
}

// BackupServiceOption configures a BackupService.
type BackupServiceOption func(*BackupService)

// WithMediaDir sets where media files from a restored archive are written.
func WithMediaDir(dir string) BackupServiceOption {
	return func(s *BackupService) { s.mediaDir = dir }
}

// WithBackupAudit records backup operations in the audit log.
func WithBackupAudit(a *AuditService) BackupServiceOption {
	return func(s *BackupService) {
		if a != nil {
			s.audit = a
		}
	}
}

// OnRestore registers fn to run after a restore committed.
func OnRestore(fn func(context.Context)) BackupServiceOption {
	return func(s *BackupService) { s.onReset = append(s.onReset, fn) }
}

// NewBackupService returns a service writing to dest. keys and memories may
// be nil.
func NewBackupService(manager repomanager.RepositoryManager, dest backup.Destination, keys KeyRing,
	memories *MemoryService, logger logging.Logger, opts ...BackupServiceOption) *BackupService {
	s := &BackupService{
		manager:  manager,
		dest:     dest,
		keys:     keys,
		memories: memories,
		log:      logger.With("module", "backup"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *BackupService) password(explicit string) string {
	if explicit != "" || s.keys == nil {
		return explicit
	}
	key, _ := s.keys.Key()
	return key
}

// Create snapshots every collection, packs it and stores it in the
// destination.
func (s *BackupService) Create(ctx context.Context, opts BackupOptions) (*models.BackupInfo, error) {
	var password string
	if opts.Encrypt {
		if password = s.password(opts.Password); password == "" {
			return nil, common.ErrMissingKey
		}
	}

	snap, err := repomanager.Snapshot(ctx, s.manager)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	now := s.now().UTC()
	bundle, err := backup.Encode(snap, now)
	if err != nil {
		return nil, err
	}

	archive := &backup.Archive{Bundle: bundle}
	if opts.IncludeMedia {
		archive.Media = s.collectMedia(ctx, snap.Memories)
	}

	data, err := backup.Pack(archive, backup.PackOptions{
		Compress: opts.Compress,
		Password: password,
		Level:    opts.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack backup: %w", err)
	}

	sum := sha256.Sum256(data)
	info := &models.BackupInfo{
		ID:            uuid.NewString(),
		Name:          "almacen-" + now.Format("20060102-150405") + ".bak",
		CreatedAt:     now,
		Size:          int64(len(data)),
		Status:        models.BackupCompleted,
		Checksum:      hex.EncodeToString(sum[:]),
		ItemCount:     len(snap.Memories),
		Encrypted:     opts.Encrypt,
		Compressed:    opts.Compress,
		IncludesMedia: len(archive.Media) > 0,
	}

	if err := s.dest.Put(ctx, info, data); err != nil {
		info.Status = models.BackupFailed
		s.log.Error(ctx, "backup failed", "destination", s.dest.Name(), "error", err)
		return info, err
	}

	s.record(ctx, models.ActionBackupCreate, info.ID, map[string]any{
		"destination": s.dest.Name(),
		"items":       info.ItemCount,
		"size":        info.Size,
		"encrypted":   info.Encrypted,
	})
	s.log.Info(ctx, "backup created", "id", info.ID, "items", info.ItemCount, "size", info.Size)
	return info, nil
}

func (s *BackupService) collectMedia(ctx context.Context, ms []models.Memory) []backup.MediaFile {
	var out []backup.MediaFile
	for _, m := range ms {
		if m.FilePath == "" {
			continue
		}
		data, err := os.ReadFile(m.FilePath)
		if err != nil {
			s.log.Warn(ctx, "media file skipped", "id", m.ID, "path", m.FilePath, "error", err)
			continue
		}
		out = append(out, backup.MediaFile{MemoryID: m.ID, Name: filepath.Base(m.FilePath), Data: data})
	}
	return out
}

// Restore fetches a backup from the destination and restores it.
func (s *BackupService) Restore(ctx context.Context, id, password string) (*models.RestoreResult, error) {
	data, err := s.dest.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.RestoreFrom(ctx, bytes.NewReader(data), password)
}

// RestoreFrom replaces the whole dataset with the backup read from r. Every
// collection is decoded and validated before anything is written; the
// replacement itself is atomic. Skipped items are reported through a
// *PartialRestoreError returned alongside the result.
func (s *BackupService) RestoreFrom(ctx context.Context, r io.Reader, password string) (*models.RestoreResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	archive, _, err := backup.Unpack(data, s.password(password))
	if err != nil {
		return nil, err
	}
	staged, err := backup.Decode(archive.Bundle)
	if err != nil {
		return nil, err
	}

	writes := s.stageMedia(staged, archive.Media)

	if err := s.manager.ReplaceAll(ctx, &staged.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to restore: %w", err)
	}
	if s.memories != nil {
		s.memories.Invalidate()
	}

	result := staged.Result
	for path, body := range writes {
		if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
			s.log.Warn(ctx, "media file not restored", "path", path, "error", err)
			continue
		}
		if err := filex.WriteFileAtomic(path, body, 0o600); err != nil {
			s.log.Warn(ctx, "media file not restored", "path", path, "error", err)
			continue
		}
		result.Media++
	}

	for _, fn := range s.onReset {
		fn(ctx)
	}

	s.record(ctx, models.ActionBackupRestore, "dataset", map[string]any{
		"restored": result.Restored,
		"skipped":  result.Skipped,
		"media":    result.Media,
	})
	s.log.Info(ctx, "backup restored", "restored", result.Restored, "skipped", result.Skipped)

	if result.Skipped > 0 {
		return &result, &PartialRestoreError{Result: &result}
	}
	return &result, nil
}

// stageMedia decides where restored media go. A memory whose file still
// exists keeps its path; otherwise it is pointed at the restored copy under
// the media dir.
func (s *BackupService) stageMedia(staged *backup.Staged, media []backup.MediaFile) map[string][]byte {
	writes := make(map[string][]byte)
	if s.mediaDir == "" || len(media) == 0 {
		return writes
	}

	index := make(map[int64]int, len(staged.Snapshot.Memories))
	for i, m := range staged.Snapshot.Memories {
		index[m.ID] = i
	}

	for _, f := range media {
		i, ok := index[f.MemoryID]
		if !ok {
			continue
		}
		m := &staged.Snapshot.Memories[i]
		if m.FilePath != "" && filex.Exists(m.FilePath) {
			continue
		}
		path := filepath.Join(s.mediaDir, strconv.FormatInt(f.MemoryID, 10), f.Name)
		m.FilePath = path
		writes[path] = f.Data
	}
	return writes
}

// List returns the backups known to the destination.
func (s *BackupService) List(ctx context.Context) ([]models.BackupInfo, error) {
	return s.dest.List(ctx)
}

// Delete removes a backup from the destination.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	if err := s.dest.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, models.ActionBackupDelete, id, nil)
	return nil
}

func (s *BackupService) record(ctx context.Context, action, resource string, details any) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Append(ctx, action, "backup/"+resource, details); err != nil {
		s.log.Error(ctx, "failed to append audit entry", "action", action, "error", err)
	}
}
