package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"playgrade-client/api"
	"playgrade-client/feed"
)

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		s.renderNotFound(w, r)
		return
	}

	ctx := r.Context()
	user, err := s.browser.User(ctx, userID)
	if err != nil {
		if api.IsNotFound(err) {
			s.renderNotFound(w, r)
			return
		}
		s.logger.Warn("Failed to load user", "user_id", userID, "error", err)
		setFlash(w, "Could not load the profile. Please try again.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	token := s.sess.Token()
	viewer := s.viewer()

	// The follow state is a side lookup; when it fails the page still
	// renders, just without the toggle preset.
	following := false
	if token != "" && (viewer == nil || viewer.UserID != userID) {
		following, err = s.browser.FollowStatus(ctx, userID, token)
		if err != nil {
			s.logger.Warn("Failed to load follow status", "user_id", userID, "error", err)
		}
	}

	// Scope the profile feed to this user's posts.
	if page, pageErr := strconv.Atoi(r.URL.Query().Get("page")); pageErr == nil && page > 0 && s.profile.Snapshot().PosterID == userID {
		err = s.profile.SetPage(ctx, page, token)
	} else {
		err = s.profile.SetPosterID(ctx, userID, token)
	}
	if err != nil {
		s.logger.Warn("Profile feed fetch failed", "user_id", userID, "error", err)
	}

	view := s.profile.Snapshot()
	s.render(w, http.StatusOK, "user.tmpl", map[string]any{
		"Viewer":     viewer,
		"Flash":      takeFlash(w, r),
		"User":       user,
		"AvatarSrc":  s.imageURL(user.ProfilePicture),
		"IsSelf":     viewer != nil && viewer.UserID == userID,
		"Following":  following,
		"Posts":      s.postViews(view.Posts),
		"Empty":      view.State == feed.StateEmpty || view.State == feed.StateFailed,
		"Page":       view.Page,
		"TotalPages": view.TotalPages,
		"PrevPage":   view.Page - 1,
		"NextPage":   view.Page + 1,
		"HasPrev":    view.Page > 1,
		"HasNext":    view.Page < view.TotalPages,
	})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	s.handleFollowChange(w, r, true)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	s.handleFollowChange(w, r, false)
}

func (s *Server) handleFollowChange(w http.ResponseWriter, r *http.Request, follow bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	userID, err := strconv.ParseInt(r.FormValue("followee_id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}
	back := returnTo(r, fmt.Sprintf("/user/%d", userID))

	token := s.sess.Token()
	if follow {
		err = s.accounts.Follow(r.Context(), token, userID)
	} else {
		err = s.accounts.Unfollow(r.Context(), token, userID)
	}
	if err != nil {
		s.failure(w, r, err, back)
		return
	}

	http.Redirect(w, r, back, http.StatusSeeOther)
}
