// Package session holds the signed-in user's bearer token and the identity
// derived from it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"playgrade-client/pkg/playgrade"
)

// TokenKey is the fixed storage key the token persists under.
const TokenKey = "token"

// Storage persists the token between runs.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store is the session state shared by every page. It replaces the app-wide
// provider of the original client with an explicit object: callers receive
// it by reference and read the token through it.
type Store struct {
	mu      sync.RWMutex
	storage Storage
	logger  *slog.Logger
	token   string
	claims  *playgrade.Claims
}

// New creates a session store and restores any previously persisted token.
func New(ctx context.Context, storage Storage, logger *slog.Logger) *Store {
	s := &Store{storage: storage, logger: logger}

	tok, err := storage.Get(ctx, TokenKey)
	if err != nil {
		logger.Debug("No persisted session", "error", err)
		return s
	}

	s.token = tok
	s.claims = decodeClaims(tok, logger)
	if s.claims != nil {
		logger.Info("Session restored", "user_id", s.claims.UserID)
	}
	return s
}

// Token returns the current bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Current returns the identity decoded from the token, or nil when signed
// out or when the token payload could not be decoded.
func (s *Store) Current() *playgrade.Claims {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims
}

// SetToken stores a new token, persists it, and recomputes the derived
// identity. An empty token is equivalent to Clear.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}

	if err := s.storage.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.claims = decodeClaims(token, s.logger)
	claims := s.claims
	s.mu.Unlock()

	if claims != nil {
		s.logger.Info("Signed in", "user_id", claims.UserID, "is_admin", claims.IsAdmin)
	}
	return nil
}

// Clear signs the session out and removes the persisted token.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("clear persisted token: %w", err)
	}

	s.mu.Lock()
	s.token = ""
	s.claims = nil
	s.mu.Unlock()

	s.logger.Info("Signed out")
	return nil
}

// decodeClaims extracts user_id and is_admin from the token payload without
// verifying the signature. The server is the trust boundary; these claims
// only decide what the UI shows. A malformed token decodes to nil.
func decodeClaims(token string, logger *slog.Logger) *playgrade.Claims {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		logger.Warn("Failed to decode token payload", "error", err)
		return nil
	}

	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}

	userID, ok := payload["user_id"].(float64)
	if !ok {
		logger.Warn("Token payload missing user_id")
		return nil
	}

	isAdmin, _ := payload["is_admin"].(bool)

	return &playgrade.Claims{
		UserID:  int64(userID),
		IsAdmin: isAdmin,
	}
}
