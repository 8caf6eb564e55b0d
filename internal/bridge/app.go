package bridge

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dmitrijs2005/almacen/internal/config"
	"github.com/dmitrijs2005/almacen/internal/filex"
	"github.com/dmitrijs2005/almacen/internal/logging"
	"github.com/dmitrijs2005/almacen/internal/repositories/repomanager"
)

// App is the bridge process: a SQLite store served over gRPC.
type App struct {
	config  *config.Bridge
	logger  logging.Logger
	manager repomanager.RepositoryManager
}

// NewApp opens the bridge database and a JSON logger on stdout.
func NewApp(ctx context.Context, c *config.Bridge) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	if _, err := filex.EnsureDir(filepath.Dir(c.DatabasePath)); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	m, err := repomanager.OpenSQLite(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return newApp(c, logger, m), nil
}

func newApp(c *config.Bridge, logger logging.Logger, m repomanager.RepositoryManager) *App {
	return &App{config: c, logger: logger, manager: m}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) server() *Server {
	return NewServer(app.config.ListenAddr, app.logger, app.manager, app.config.Secret,
		WithMaxTokenLifetime(app.config.TokenValidity))
}

// Run serves until a termination signal arrives or ctx is cancelled, then
// closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	if err := app.server().Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "close database", "error", err)
	}
}
