// Package storage persists small pieces of client state (the session token,
// the last-used filter set) so they survive restarts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	_ "modernc.org/sqlite" // sqlite driver
)

// ErrNotFound indicates the key has no persisted value.
var ErrNotFound = errors.New("storage: key not found")

// IsNotFound checks if an error indicates a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store handles client-state persistence. Exactly one backend is active:
// a local SQLite file, or a Cloud Storage bucket when one is configured.
type Store struct {
	db     *sql.DB
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// Open opens (and if needed creates) the SQLite-backed store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("Failed to close state database after error", "error", closeErr)
		}
		return nil, fmt.Errorf("create state schema: %w", err)
	}

	logger.Info("State store opened", "backend", "sqlite", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// NewBucket returns a store backed by a Cloud Storage bucket.
func NewBucket(client *storage.Client, bucket string, logger *slog.Logger) *Store {
	logger.Info("State store opened", "backend", "gcs", "bucket", bucket)
	return &Store{client: client, bucket: bucket, logger: logger}
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func objectName(key string) string {
	return "state-" + key + ".json"
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if s.db != nil {
		var value string
		err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("read state %q: %w", key, err)
		}
		return value, nil
	}

	// Cloud Storage with retry logic for reliability
	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(objectName(key)).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(ErrNotFound)
				}
				return fmt.Errorf("open state reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close state reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read state: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying state read after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load state after retries: %w", err)
	}

	return string(data), nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.db != nil {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("write state %q: %w", key, err)
		}
		s.logger.Debug("State saved", "key", key)
		return nil
	}

	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(objectName(key)).NewWriter(ctx)
			if _, writeErr := w.Write([]byte(value)); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write state: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close state writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying state write after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("save state after retries: %w", err)
	}

	s.logger.Debug("State saved", "key", key)
	return nil
}

// Delete removes the value stored under key. Deleting a missing key is not
// an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.db != nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete state %q: %w", key, err)
		}
		s.logger.Debug("State deleted", "key", key)
		return nil
	}

	err := retry.Do(
		func() error {
			if deleteErr := s.client.Bucket(s.bucket).Object(objectName(key)).Delete(ctx); deleteErr != nil {
				// Deletion is idempotent; a missing object is fine.
				if errors.Is(deleteErr, storage.ErrObjectNotExist) {
					return nil
				}
				return fmt.Errorf("delete state: %w", deleteErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying state delete after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("delete state after retries: %w", err)
	}

	s.logger.Debug("State deleted", "key", key)
	return nil
}
