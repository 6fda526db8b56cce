// The api half of the split deployment: Postgres session store, MinIO staging
// and asynq dispatch over Redis.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"bodymetrics/internal/api"
	"bodymetrics/internal/config"
	"bodymetrics/internal/database"
	"bodymetrics/internal/intake"
	"bodymetrics/internal/logger"
	"bodymetrics/internal/queue"
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
	if err := cfg.Require("BODYMETRICS_DATABASE_URL", "BODYMETRICS_REDIS_ADDR", "BODYMETRICS_S3_ENDPOINT"); err != nil {
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

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	ctrl := intake.NewController(st, stager, cfg)
	srv := api.New(cfg, st, ctrl, queue.NewEnqueuer(queueClient))
	if err := srv.Run(ctx); err != nil {
		log.Printf("api stopped: %v", err)
		os.Exit(1)
	}
}
