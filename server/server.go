// Package server renders the Play Grade UI and translates browser form
// submissions into API calls.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"playgrade-client/api"
	"playgrade-client/feed"
	"playgrade-client/filters"
	"playgrade-client/pkg/playgrade"
	"playgrade-client/session"
)

//go:embed tmpl/*.tmpl
var templateFS embed.FS

// Templates.
var templates = template.Must(template.ParseFS(templateFS, "tmpl/*.tmpl"))

// filtersKey is the fixed storage key the filter state persists under.
const filtersKey = "filters"

// Browser is the read side of the API.
type Browser interface {
	PostWithReplies(ctx context.Context, postID int64, token string) (*playgrade.PostDetail, error)
	User(ctx context.Context, userID int64) (*playgrade.User, error)
	FollowStatus(ctx context.Context, userID int64, token string) (bool, error)
	BaseURL() string
}

// Publisher is the content mutation side of the API.
type Publisher interface {
	CreatePost(ctx context.Context, token, title, category, body string, image api.Upload) (int64, error)
	CreateReply(ctx context.Context, token string, postID int64, body string, image *api.Upload) error
	DeletePost(ctx context.Context, token string, postID int64) error
	DeleteReply(ctx context.Context, token string, replyID int64) error
	Like(ctx context.Context, token string, targetID int64, targetType string) error
	Unlike(ctx context.Context, token string, targetID int64, targetType string) error
}

// Accounts is the identity side of the API.
type Accounts interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, username, email, password string) error
	Follow(ctx context.Context, token string, userID int64) error
	Unfollow(ctx context.Context, token string, userID int64) error
	DeleteAccount(ctx context.Context, token string, userID int64) error
	UpdateUsername(ctx context.Context, token string, userID int64, username string) error
	UpdatePassword(ctx context.Context, token string, userID int64, password string) error
	UpdateProfilePicture(ctx context.Context, token string, userID int64, image api.Upload) error
}

// StateStore persists UI state between runs.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Server handles HTTP requests.
type Server struct {
	browser  Browser
	pub      Publisher
	accounts Accounts
	home     *feed.Controller
	profile  *feed.Controller
	sess     *session.Store
	state    StateStore
	logger   *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Browser  Browser
	Pub      Publisher
	Accounts Accounts
	Home     *feed.Controller
	Profile  *feed.Controller
	Session  *session.Store
	State    StateStore
	Logger   *slog.Logger
}

// New creates a new HTTP server handler and restores any persisted filter
// state into the home feed.
func New(ctx context.Context, cfg *Config) *Server {
	s := &Server{
		browser:  cfg.Browser,
		pub:      cfg.Pub,
		accounts: cfg.Accounts,
		home:     cfg.Home,
		profile:  cfg.Profile,
		sess:     cfg.Session,
		state:    cfg.State,
		logger:   cfg.Logger,
	}
	s.restoreFilters(ctx)
	return s
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleHome)
	r.Post("/filters", s.handleFilters)
	r.Get("/health", s.handleHealth)

	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Get("/register", s.handleRegisterPage)
	r.Post("/register", s.handleRegister)
	r.Post("/logout", s.handleLogout)

	r.Get("/post/{id}", s.handlePost)
	r.Post("/posts", s.handleCreatePost)
	r.Post("/post/{id}/delete", s.handleDeletePost)
	r.Post("/replies", s.handleCreateReply)
	r.Post("/reply/{id}/delete", s.handleDeleteReply)
	r.Post("/like", s.handleLike)
	r.Post("/unlike", s.handleUnlike)

	r.Get("/user/{id}", s.handleUser)
	r.Post("/follow", s.handleFollow)
	r.Post("/unfollow", s.handleUnfollow)

	r.Get("/account", s.handleAccount)
	r.Post("/account/username", s.handleUpdateUsername)
	r.Post("/account/password", s.handleUpdatePassword)
	r.Post("/account/picture", s.handleUpdatePicture)
	r.Post("/account/delete", s.handleDeleteAccount)

	return r
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe(port string) error {
	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "port", port)
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

// restoreFilters loads the persisted filter state, if any, into the home
// feed without fetching.
func (s *Server) restoreFilters(ctx context.Context) {
	raw, err := s.state.Get(ctx, filtersKey)
	if err != nil {
		s.logger.Debug("No persisted filters", "error", err)
		return
	}

	var f filters.State
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		s.logger.Warn("Failed to decode persisted filters", "error", err)
		return
	}

	s.home.RestoreFilters(filters.Apply(filters.Default(), f))
	s.logger.Info("Filter state restored")
}

// persistFilters writes the filter state for the next run. A write failure
// is logged, not surfaced: the in-memory state is already updated.
func (s *Server) persistFilters(ctx context.Context, f filters.State) {
	raw, err := json.Marshal(f)
	if err != nil {
		s.logger.Warn("Failed to encode filters", "error", err)
		return
	}
	if err := s.state.Set(ctx, filtersKey, string(raw)); err != nil {
		s.logger.Warn("Failed to persist filters", "error", err)
	}
}
