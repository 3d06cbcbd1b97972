package server

import (
	"net/http"
	"strings"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.viewer() != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "login.tmpl", map[string]any{
		"Viewer": s.viewer(),
		"Flash":  takeFlash(w, r),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	// Rate limiting by IP to slow credential stuffing
	ip := clientIP(r)
	if !authRateLimiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "ip", ip)
		http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")

	token, err := s.accounts.Login(r.Context(), email, password)
	if err != nil {
		s.logger.Warn("Login failed", "ip", ip, "error", err)
		s.failure(w, r, err, "/login")
		return
	}

	if err := s.sess.SetToken(r.Context(), token); err != nil {
		s.logger.Error("Failed to store session", "error", err)
		setFlash(w, "Signed in, but the session could not be saved.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if s.viewer() != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "register.tmpl", map[string]any{
		"Viewer": s.viewer(),
		"Flash":  takeFlash(w, r),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !authRateLimiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "ip", ip)
		http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")

	if err := s.accounts.Register(r.Context(), username, email, password); err != nil {
		s.failure(w, r, err, "/register")
		return
	}

	s.logger.Info("Account registered")
	setFlash(w, "Account created. Sign in to continue.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Clear(r.Context()); err != nil {
		s.logger.Error("Failed to clear session", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
