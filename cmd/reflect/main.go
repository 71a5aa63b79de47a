package main

import (
	"context"
	"log"
	"os"

	"github.com/Benioh/reflection-journal/internal/cli"
	"github.com/Benioh/reflection-journal/internal/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}
}
