// The all-in-one server: in-memory session store, local temp staging and an
// in-process analysis runner in a single binary.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bodymetrics/internal/analyzer"
	"bodymetrics/internal/api"
	"bodymetrics/internal/config"
	"bodymetrics/internal/intake"
	"bodymetrics/internal/logger"
	"bodymetrics/internal/pipeline"
	"bodymetrics/internal/staging"
	"bodymetrics/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Require("BODYMETRICS_ANALYZER_URL"); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	st := store.NewMemoryStore()
	stager, err := staging.NewLocalStager(cfg.StagingDir, cfg.MaxFileSize)
	if err != nil {
		log.Fatalf("init staging: %v", err)
	}
	client := analyzer.NewClient(cfg.AnalyzerURL, cfg.AnalyzerTimeout)
	runner := pipeline.NewRunner(analyzer.NewPipeline(st, stager, client))
	runner.Start(ctx)

	ctrl := intake.NewController(st, stager, cfg)
	srv := api.New(cfg, st, ctrl, runner)
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
