package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/almacen/internal/backup"
	"github.com/dmitrijs2005/almacen/internal/bridge"
	"github.com/dmitrijs2005/almacen/internal/config"
	"github.com/dmitrijs2005/almacen/internal/filex"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/netx"
	"github.com/dmitrijs2005/almacen/internal/repositories/repomanager"
)

// openBackend returns the repository manager selected by cfg.Storage. With
// "auto" the bridge is used when it answers a ping, the local store
// otherwise.
func openBackend(ctx context.Context, cfg *config.Client, logger logging.Logger) (repomanager.RepositoryManager, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		if _, err := filex.EnsureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
			return nil, err
		}
		return repomanager.OpenSQLite(ctx, cfg.DatabasePath)

	case config.StorageBridge:
		c, err := bridge.Dial(cfg.BridgeAddr, cfg.BridgeSecret, bridge.DefaultTokenValidity)
		if err != nil {
			return nil, err
		}
		return c, nil

	case config.StorageLocal:
		return openLocal(cfg)

	case config.StorageAuto:
		c, err := probeBridge(ctx, cfg)
		if err == nil {
			logger.Info(ctx, "using bridge storage", "address", cfg.BridgeAddr)
			return c, nil
		}
		logger.Warn(ctx, "bridge unavailable, falling back to local storage", "error", err)
		return openLocal(cfg)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func openLocal(cfg *config.Client) (repomanager.RepositoryManager, error) {
	if _, err := filex.EnsureDir(filepath.Dir(cfg.LocalStoragePath)); err != nil {
		return nil, err
	}
	return repomanager.OpenLocal(cfg.LocalStoragePath, cfg.LocalQuota)
}

func probeBridge(ctx context.Context, cfg *config.Client) (*bridge.Client, error) {
	if err := netx.Reachable(ctx, cfg.BridgeAddr, cfg.BridgeTimeout); err != nil {
		return nil, err
	}
	c, err := bridge.Dial(cfg.BridgeAddr, cfg.BridgeSecret, bridge.DefaultTokenValidity)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.BridgeTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// openDestination returns the backup destination selected by cfg. The
// download destination is built per backup, so nil is returned for it.
func openDestination(ctx context.Context, cfg *config.Client) (backup.Destination, error) {
	switch cfg.BackupDestination {
	case config.BackupDir:
		return backup.NewDirDestination(cfg.BackupDir), nil
	case config.BackupS3:
		client, err := backup.NewS3Client(ctx, backup.S3Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return backup.NewS3Destination(client, cfg.S3Bucket, cfg.S3Prefix), nil
	case config.BackupDownload:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown backup destination %q", cfg.BackupDestination)
	}
}
