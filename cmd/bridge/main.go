package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/almacen/internal/bridge"
	"github.com/dmitrijs2005/almacen/internal/buildinfo"
	"github.com/dmitrijs2005/almacen/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadBridge(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := bridge.NewApp(context.Background(), cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(context.Background())

}
