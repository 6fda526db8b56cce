// The worker half of the split deployment: consumes analysis jobs from asynq
// and records the outcome in Postgres.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"bodymetrics/internal/analyzer"
	"bodymetrics/internal/config"
	"bodymetrics/internal/database"
	"bodymetrics/internal/logger"
	"bodymetrics/internal/staging"
	"bodymetrics/internal/store"
	"bodymetrics/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Require("BODYMETRICS_ANALYZER_URL", "BODYMETRICS_DATABASE_URL",
		"BODYMETRICS_REDIS_ADDR", "BODYMETRICS_S3_ENDPOINT"); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	st := store.NewPostgresStore(pool)

	stager, err := staging.NewS3Stager(cfg)
	if err != nil {
		log.Fatalf("init staging: %v", err)
	}
	if err := stager.EnsureBucket(ctx); err != nil {
		log.Fatalf("ensure bucket: %v", err)
	}

	client := analyzer.NewClient(cfg.AnalyzerURL, cfg.AnalyzerTimeout)
	processor := worker.NewProcessor(analyzer.NewPipeline(st, stager, client))

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
	})
	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(processor.Handler()); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
