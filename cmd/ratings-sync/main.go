// Command ratings-sync uploads a queue of offline ratings to the ratings API.
//
// The queue is a JSON array of pending ratings. Successful uploads are marked
// synced and failed ones keep their retry bookkeeping, so the command can be
// run repeatedly (for example from cron) until the queue drains.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/ratings-api/internal/client"
	"github.com/Clark-Hu/ratings-api/internal/config"
	"github.com/Clark-Hu/ratings-api/internal/logging"
	"github.com/Clark-Hu/ratings-api/internal/syncer"
)

func main() {
	_ = config.LoadDotEnv()

	server := flag.String("server", envOr("RATINGS_API_URL", "http://localhost:5000"), "ratings API base URL")
	queuePath := flag.String("queue", envOr("RATINGS_QUEUE", "ratings-queue.json"), "path to the offline queue file")
	deviceID := flag.String("device-id", envOr("DEVICE_ID", ""), "value sent as X-Device-Id")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	maxRetries := flag.Int("max-retries", syncer.DefaultMaxRetries, "attempts before a rating is given up on")
	env := flag.String("env", envOr("APP_ENV", "production"), "logging profile: development or production")
	level := flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	logger, err := logging.New(*env, *level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := client.New(*server, client.Options{
		Timeout:  *timeout,
		DeviceID: *deviceID,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("init ratings client", zap.Error(err))
	}

	items, err := syncer.LoadQueue(*queuePath)
	if err != nil {
		logger.Fatal("load queue", zap.String("path", *queuePath), zap.Error(err))
	}
	if syncer.Pending(items) == 0 {
		logger.Info("nothing to sync", zap.String("path", *queuePath))
		return
	}

	s := syncer.New(api, syncer.Options{MaxRetries: *maxRetries, Logger: logger})
	summary, runErr := s.Run(ctx, items)

	// Progress made before an interrupt is still persisted.
	if err := syncer.SaveQueue(*queuePath, items); err != nil {
		logger.Fatal("save queue", zap.String("path", *queuePath), zap.Error(err))
	}

	logger.Info("queue saved",
		zap.String("path", *queuePath),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("pending", syncer.Pending(items)),
	)
	if runErr != nil {
		logger.Warn("sync interrupted", zap.Error(runErr))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
