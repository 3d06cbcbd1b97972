package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"playgrade-client/api"
	"playgrade-client/pkg/playgrade"
)

// Rate limiter for auth endpoints (max 10 attempts per IP per hour).
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		clients: make(map[string][]time.Time),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Hour)

	timestamps := rl.clients[ip]
	var recent []time.Time
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= 10 {
		return false
	}

	recent = append(recent, now)
	rl.clients[ip] = recent
	return true
}

var authRateLimiter = newRateLimiter()

func clientIP(r *http.Request) string {
	// Check X-Forwarded-For header (reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

const flashCookie = "playgrade_flash"

func setFlash(w http.ResponseWriter, message string) {
	cookie := &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
}

// takeFlash reads the pending notice and clears it so it shows once.
func takeFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	message, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return message
}

// failure maps an API error to a user-facing notice and redirect. A 401
// means the persisted token is no longer honored: the session is cleared
// and the user is sent to sign in again.
func (s *Server) failure(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if errors.Is(err, api.ErrNotLoggedIn) {
		setFlash(w, "Please sign in first.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if api.IsUnauthorized(err) {
		s.logger.Info("Session rejected by API, signing out")
		if clearErr := s.sess.Clear(r.Context()); clearErr != nil {
			s.logger.Error("Failed to clear session", "error", clearErr)
		}
		setFlash(w, "Your session has expired. Please sign in again.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	var ve *api.ValidationError
	if errors.As(err, &ve) {
		setFlash(w, ve.Field+": "+ve.Reason)
		http.Redirect(w, r, fallback, http.StatusSeeOther)
		return
	}

	var ae *api.APIError
	if errors.As(err, &ae) && ae.Message != "" {
		setFlash(w, ae.Message)
		http.Redirect(w, r, fallback, http.StatusSeeOther)
		return
	}

	s.logger.Warn("Request against API failed", "error", err)
	setFlash(w, "Could not reach the server. Please try again.")
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}

// returnTo picks the redirect target after a mutation: the form's return
// field when it is a local path, else the fallback.
func returnTo(r *http.Request, fallback string) string {
	target := r.FormValue("return")
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	return target
}

// imageURL resolves a service-relative upload path against the API origin.
func (s *Server) imageURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.browser.BaseURL() + path
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to render template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusNotFound, "not_found.tmpl", map[string]any{
		"Viewer": s.sess.Current(),
		"Flash":  takeFlash(w, r),
	})
}

func (s *Server) viewer() *playgrade.Claims {
	return s.sess.Current()
}
