package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/almacen/internal/backup"
	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/config"
	"github.com/dmitrijs2005/almacen/internal/filex"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/services"
)

// downloadDir is where download backups are written.
var downloadDir = "."

func (a *App) Backup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	fs.SetOutput(a.out)
	media := fs.Bool("media", false, "include media files")
	compress := fs.Bool("compress", false, "gzip the backup")
	encrypt := fs.Bool("encrypt", false, "encrypt the backup with the master key")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	opts := services.BackupOptions{
		IncludeMedia: *media,
		Compress:     *compress,
		Encrypt:      *encrypt,
		Level:        a.session.EncryptionLevel(),
	}
	if opts.Encrypt && !a.session.IsUnlocked() {
		pw, err := getPassword(a.in, "Backup password", a.out)
		if err != nil {
			return err
		}
		opts.Password = pw
	}

	if a.backups != nil {
		info, err := a.backups.Create(ctx, opts)
		if err != nil {
			return err
		}
		a.printBackup(info)
		return nil
	}

	var buf bytes.Buffer
	info, err := a.backupService(backup.NewDownloadDestination(&buf)).Create(ctx, opts)
	if err != nil {
		return err
	}
	path := filepath.Join(downloadDir, info.Name)
	if err := filex.WriteFileAtomic(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	a.printBackup(info)
	fmt.Fprintf(a.out, "Saved to %s\n", path)
	return nil
}

func (a *App) printBackup(info *models.BackupInfo) {
	fmt.Fprintf(a.out, "%s\t%s\t%s\t%d items\t%d bytes\t%s\n",
		info.ID, info.CreatedAt.Local().Format(timeLayout), info.Name, info.ItemCount, info.Size, flags(info))
}

func flags(info *models.BackupInfo) string {
	var out []byte
	for _, f := range []struct {
		on bool
		c  byte
	}{{info.Encrypted, 'E'}, {info.Compressed, 'C'}, {info.IncludesMedia, 'M'}} {
		if f.on {
			out = append(out, f.c)
		} else {
			out = append(out, '-')
		}
	}
	return string(out)
}

func (a *App) Backups(ctx context.Context, _ []string) error {
	if a.backups == nil {
		return common.ErrUnsupported
	}
	list, err := a.backups.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No backups.")
		return nil
	}
	for i := range list {
		a.printBackup(&list[i])
	}
	return nil
}

// Restore accepts a backup id known to the destination or a path to a backup
// file.
func (a *App) Restore(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: restore <id|file>", common.ErrValidation)
	}
	target := args[0]

	var (
		svc  = a.backups
		read func(password string) (*models.RestoreResult, error)
	)
	switch {
	case filex.Exists(target):
		data, err := os.ReadFile(target)
		if err != nil {
			return err
		}
		if svc == nil {
			svc = a.backupService(backup.NewDownloadDestination(io.Discard))
		}
		read = func(pw string) (*models.RestoreResult, error) {
			return svc.RestoreFrom(ctx, bytes.NewReader(data), pw)
		}
	case svc != nil:
		read = func(pw string) (*models.RestoreResult, error) {
			return svc.Restore(ctx, target, pw)
		}
	case a.config.BackupDestination == config.BackupDownload:
		return fmt.Errorf("%s: %w", target, common.ErrNotFound)
	default:
		return common.ErrUnsupported
	}

	if !confirm(a.in, "Restoring replaces every memory, the audit log and settings. Continue?", a.out) {
		return nil
	}

	res, err := read("")
	if errors.Is(err, common.ErrMissingKey) || errors.Is(err, common.ErrDecryption) {
		pw, perr := getPassword(a.in, "Backup password", a.out)
		if perr != nil {
			return perr
		}
		res, err = read(pw)
	}

	var partial *services.PartialRestoreError
	switch {
	case errors.As(err, &partial):
		fmt.Fprintf(a.out, "Restored %d items, skipped %d invalid ones.\n", res.Restored, res.Skipped)
	case err != nil:
		return err
	default:
		fmt.Fprintf(a.out, "Restored %d items (%d memories, %d audit entries, %d media files).\n",
			res.Restored, res.Memories.Restored, res.Audit.Restored, res.Media)
	}
	fmt.Fprintln(a.out, "Session locked, run 'unlock' to continue.")
	return nil
}

func (a *App) RemoveBackup(ctx context.Context, args []string) error {
	if a.backups == nil {
		return common.ErrUnsupported
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: rmbackup <id>", common.ErrValidation)
	}
	if !confirm(a.in, fmt.Sprintf("Delete backup %s?", args[0]), a.out) {
		return nil
	}
	if err := a.backups.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Backup deleted.")
	return nil
}
