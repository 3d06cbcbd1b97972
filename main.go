// Package main runs the Play Grade web client: a small server that renders
// the feed, talks to the Play Grade REST API, and keeps the session and
// filter state across restarts.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"playgrade-client/api"
	"playgrade-client/feed"
	"playgrade-client/server"
	"playgrade-client/session"
	"playgrade-client/storage"
)

func main() {
	ctx := context.Background()

	// Optional .env for local development; absence is fine.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded .env file")
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	apiURL := envOr("PLAYGRADE_API_URL", "http://127.0.0.1:5000")
	port := envOr("PORT", "8080")
	statePath := envOr("STATE_DB", "./playgrade.db")
	bucket := os.Getenv("STATE_BUCKET")

	store, err := openStateStore(ctx, bucket, statePath, logger)
	if err != nil {
		logger.Error("Failed to open state store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("Failed to close state store", "error", closeErr)
		}
	}()

	client := api.New(apiURL, nil, logger)
	sess := session.New(ctx, store, logger)
	logger.Info("Client configured", "api_url", apiURL, "signed_in", sess.Token() != "")

	srv := server.New(ctx, &server.Config{
		Browser:  client,
		Pub:      client,
		Accounts: client,
		Home:     feed.New(client, logger),
		Profile:  feed.New(client, logger),
		Session:  sess,
		State:    store,
		Logger:   logger,
	})

	if err := srv.ListenAndServe(port); err != nil {
		logger.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

// openStateStore picks the persistence backend: a Cloud Storage bucket when
// one is configured, else a local SQLite file.
func openStateStore(ctx context.Context, bucket, statePath string, logger *slog.Logger) (*storage.Store, error) {
	if bucket == "" {
		return storage.Open(statePath, logger)
	}

	client, err := gcs.NewClient(ctx, option.WithScopes(gcs.ScopeReadWrite))
	if err != nil {
		return nil, err
	}
	return storage.NewBucket(client, bucket, logger), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
