package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/almacen/internal/buildinfo"
	"github.com/dmitrijs2005/almacen/internal/cli"
	"github.com/dmitrijs2005/almacen/internal/config"
	"github.com/dmitrijs2005/almacen/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadClient(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logging.NewConsole(os.Stderr, cfg.LogLevel))
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
