package server

import (
	"net/http"
	"strconv"
	"time"

	"playgrade-client/api"
	"playgrade-client/feed"
	"playgrade-client/filters"
	"playgrade-client/pkg/playgrade"
)

// postView wraps a post with resolved URLs and display fields.
type postView struct {
	*playgrade.Post
	ImageSrc  string
	AvatarSrc string
	Created   string
	CanDelete bool
}

func (s *Server) postViews(posts []*playgrade.Post) []postView {
	viewer := s.viewer()
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, postView{
			Post:      p,
			ImageSrc:  s.imageURL(p.ImageURL),
			AvatarSrc: s.imageURL(p.ProfilePicture),
			Created:   displayTime(p.CreatedAt),
			CanDelete: viewer.CanModerate(p.PosterID),
		})
	}
	return views
}

// displayTime reformats an API timestamp for rendering; an unparseable
// value is shown as-is.
func displayTime(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format("Jan 2, 2006 15:04")
}

// categoryOption is one checkbox in the filter form.
type categoryOption struct {
	Label    string
	Selected bool
}

func categoryOptions(f filters.State) []categoryOption {
	opts := make([]categoryOption, 0, len(filters.Categories()))
	for _, c := range filters.Categories() {
		selected := false
		for _, sel := range f.Categories {
			if sel == c {
				selected = true
				break
			}
		}
		opts = append(opts, categoryOption{Label: c, Selected: selected})
	}
	return opts
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := s.sess.Token()

	var err error
	if page, pageErr := strconv.Atoi(r.URL.Query().Get("page")); pageErr == nil && page > 0 {
		err = s.home.SetPage(ctx, page, token)
	} else {
		err = s.home.Refresh(ctx, token)
	}
	if err != nil {
		s.logger.Warn("Home feed fetch failed", "error", err)
	}

	view := s.home.Snapshot()
	s.render(w, http.StatusOK, "home.tmpl", map[string]any{
		"Viewer":     s.viewer(),
		"Flash":      takeFlash(w, r),
		"Posts":      s.postViews(view.Posts),
		"Empty":      view.State == feed.StateEmpty || view.State == feed.StateFailed,
		"Page":       view.Page,
		"TotalPages": view.TotalPages,
		"PrevPage":   view.Page - 1,
		"NextPage":   view.Page + 1,
		"HasPrev":    view.Page > 1,
		"HasNext":    view.Page < view.TotalPages,
		"Categories": categoryOptions(view.Filters),
		"Filters":    view.Filters,
		"UserScopes": []string{filters.UsersAll, filters.UsersFollowed},
		"AgeRanges":  []string{filters.AgeToday, filters.AgeWeek, filters.AgeMonth, filters.AgeYear, filters.AgeAll},
		"SortOrders": []string{filters.SortNewest, filters.SortMostLiked, filters.SortMostComments},
	})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	upd := filters.State{
		Categories:  r.Form["categories"],
		Users:       r.FormValue("users"),
		AgeRange:    r.FormValue("ageRange"),
		SortBy:      r.FormValue("sortBy"),
		SearchQuery: r.FormValue("searchQuery"),
	}
	next := filters.Apply(s.home.Filters(), upd)
	s.persistFilters(r.Context(), next)

	if err := s.home.SetFilters(r.Context(), next, s.sess.Token()); err != nil {
		s.logger.Warn("Fetch after filter change failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.handleLikeChange(w, r, true)
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	s.handleLikeChange(w, r, false)
}

func (s *Server) handleLikeChange(w http.ResponseWriter, r *http.Request, like bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	targetID, err := strconv.ParseInt(r.FormValue("target_id"), 10, 64)
	if err != nil || targetID <= 0 {
		http.Error(w, "Invalid target", http.StatusBadRequest)
		return
	}
	targetType := r.FormValue("type")

	back := returnTo(r, "/")
	token := s.sess.Token()

	if like {
		err = s.pub.Like(r.Context(), token, targetID, targetType)
	} else {
		err = s.pub.Unlike(r.Context(), token, targetID, targetType)
	}
	if err != nil {
		s.failure(w, r, err, back)
		return
	}

	// Patch the cached lists so the feed reflects the change without a
	// refetch. Controllers that do not hold the post ignore the patch.
	if targetType == api.TargetPost {
		if like {
			s.home.ApplyLike(targetID)
			s.profile.ApplyLike(targetID)
		} else {
			s.home.ApplyUnlike(targetID)
			s.profile.ApplyUnlike(targetID)
		}
	}

	http.Redirect(w, r, back, http.StatusSeeOther)
}
