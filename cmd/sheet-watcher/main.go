package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sheetclean/internal/config"
	"sheetclean/internal/logger"
	"sheetclean/internal/pipeline"
	"sheetclean/internal/storage"
	"sheetclean/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(cfg.Validate())

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "sheet-watcher"})

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	processor, err := pipeline.NewProcessingService(db, cfg, log)
	must(err)

	svc := watcher.NewService(db, cfg, log, processor)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
