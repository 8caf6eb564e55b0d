// Package cli implements the interactive almacen client: a REPL whose
// commands drive the session, memory, audit and backup services.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/almacen/internal/backup"
	"github.com/dmitrijs2005/almacen/internal/config"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/repomanager"
	"github.com/dmitrijs2005/almacen/internal/services"
)

// App wires the services of one client process.
type App struct {
	config   *config.Client
	logger   logging.Logger
	manager  repomanager.RepositoryManager
	session  *services.Session
	memories *services.MemoryService
	audit    *services.AuditService
	backups  *services.BackupService

	in  *bufio.Scanner
	out io.Writer
}

// NewApp opens the configured storage backend and builds the services.
func NewApp(ctx context.Context, cfg *config.Client, logger logging.Logger) (*App, error) {
	manager, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	dest, err := openDestination(ctx, cfg)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("backup init error: %w", err)
	}

	a, err := newApp(ctx, cfg, logger, manager, dest)
	if err != nil {
		_ = manager.Close()
		return nil, err
	}
	a.in = bufio.NewScanner(os.Stdin)
	a.out = os.Stdout
	return a, nil
}

// newApp builds the services on top of an open manager. dest may be nil when
// backups go to the download destination.
func newApp(ctx context.Context, cfg *config.Client, logger logging.Logger,
	manager repomanager.RepositoryManager, dest backup.Destination) (*App, error) {

	defaults := models.DefaultUserConfig()
	if level := models.EncryptionLevel(cfg.EncryptionLevel); level.Enabled() && level.Valid() {
		defaults.EncryptionLevel = level
	}
	defaults.SessionTimeout.Duration = cfg.SessionTimeout

	audit := services.NewAuditService(manager.Audit(), logger)
	userConfig := services.NewConfigService(manager.Settings(), defaults)
	session := services.NewSession(manager.Settings(), userConfig, logger, services.WithSessionAudit(audit))
	if err := session.Load(ctx); err != nil {
		logger.Warn(ctx, "user config not loaded, using defaults", "error", err)
	}

	memories, err := services.NewMemoryService(manager.Memories(), audit, logger, cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:   cfg,
		logger:   logger,
		manager:  manager,
		session:  session,
		memories: memories,
		audit:    audit,
	}
	if dest != nil {
		a.backups = a.backupService(dest)
	}
	return a, nil
}

func (a *App) backupService(dest backup.Destination) *services.BackupService {
	return services.NewBackupService(a.manager, dest, a.session, a.memories, a.logger,
		services.WithBackupAudit(a.audit),
		services.WithMediaDir(filepath.Join(a.config.DataDir, "media")),
		services.OnRestore(a.afterRestore))
}

// afterRestore reloads preferences and locks the session, since the restored
// dataset may carry a different key verifier.
func (a *App) afterRestore(ctx context.Context) {
	a.session.Lock()
	if err := a.session.Load(ctx); err != nil {
		a.logger.Warn(ctx, "user config not reloaded", "error", err)
	}
}

// Close releases the cache and the storage backend.
func (a *App) Close() error {
	a.session.Lock()
	a.memories.Close()
	return a.manager.Close()
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error(ctx, "close failed", "error", err)
		}
	}()

	a.logger.Info(ctx, "almacen started", "storage", a.manager.Name())
	printlnFn("Welcome to almacen (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.in)
}

func (a *App) status() string {
	state := "locked"
	if a.session.IsUnlocked() {
		state = "unlocked"
	}
	return fmt.Sprintf("(%s %s)", a.manager.Name(), state)
}

func (a *App) isUnlocked() bool {
	return a.session.IsUnlocked()
}
