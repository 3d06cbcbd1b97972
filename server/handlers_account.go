package server

import (
	"net/http"
	"strings"

	"playgrade-client/pkg/playgrade"
)

// requireViewer returns the signed-in identity, redirecting to the login
// page when there is none.
func (s *Server) requireViewer(w http.ResponseWriter, r *http.Request) *playgrade.Claims {
	viewer := s.viewer()
	if viewer == nil {
		setFlash(w, "Please sign in first.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil
	}
	return viewer
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	viewer := s.requireViewer(w, r)
	if viewer == nil {
		return
	}

	user, err := s.browser.User(r.Context(), viewer.UserID)
	if err != nil {
		s.logger.Warn("Failed to load own profile", "user_id", viewer.UserID, "error", err)
		setFlash(w, "Could not load your account. Please try again.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.render(w, http.StatusOK, "account.tmpl", map[string]any{
		"Viewer":    viewer,
		"Flash":     takeFlash(w, r),
		"User":      user,
		"AvatarSrc": s.imageURL(user.ProfilePicture),
	})
}

func (s *Server) handleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	viewer := s.requireViewer(w, r)
	if viewer == nil {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	if err := s.accounts.UpdateUsername(r.Context(), s.sess.Token(), viewer.UserID, username); err != nil {
		s.failure(w, r, err, "/account")
		return
	}

	setFlash(w, "Username updated.")
	http.Redirect(w, r, "/account", http.StatusSeeOther)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	viewer := s.requireViewer(w, r)
	if viewer == nil {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if password != r.FormValue("confirm") {
		setFlash(w, "Passwords do not match.")
		http.Redirect(w, r, "/account", http.StatusSeeOther)
		return
	}

	if err := s.accounts.UpdatePassword(r.Context(), s.sess.Token(), viewer.UserID, password); err != nil {
		s.failure(w, r, err, "/account")
		return
	}

	setFlash(w, "Password updated.")
	http.Redirect(w, r, "/account", http.StatusSeeOther)
}

func (s *Server) handleUpdatePicture(w http.ResponseWriter, r *http.Request) {
	viewer := s.requireViewer(w, r)
	if viewer == nil {
		return
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	image, err := s.formImage(r, "image")
	if err != nil || image == nil {
		setFlash(w, "Choose an image to upload.")
		http.Redirect(w, r, "/account", http.StatusSeeOther)
		return
	}

	if err := s.accounts.UpdateProfilePicture(r.Context(), s.sess.Token(), viewer.UserID, *image); err != nil {
		s.failure(w, r, err, "/account")
		return
	}

	setFlash(w, "Profile picture updated.")
	http.Redirect(w, r, "/account", http.StatusSeeOther)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	viewer := s.requireViewer(w, r)
	if viewer == nil {
		return
	}

	if err := s.accounts.DeleteAccount(r.Context(), s.sess.Token(), viewer.UserID); err != nil {
		s.failure(w, r, err, "/account")
		return
	}

	s.logger.Info("Account deleted", "user_id", viewer.UserID)
	if err := s.sess.Clear(r.Context()); err != nil {
		s.logger.Error("Failed to clear session", "error", err)
	}
	setFlash(w, "Your account has been deleted.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
