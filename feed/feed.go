// Package feed owns one view's post list: the current filters or target
// poster, the pagination cursor, and the loading lifecycle. Each page of
// the app gets its own controller; nothing is shared between them.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"playgrade-client/api"
	"playgrade-client/filters"
	"playgrade-client/pkg/playgrade"
)

// State is the controller's loading lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePopulated
	StateEmpty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePopulated:
		return "populated"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fetcher fetches one page of posts.
type Fetcher interface {
	Posts(ctx context.Context, q api.Query) (*playgrade.PostPage, error)
}

// Controller coordinates fetches for one feed view.
type Controller struct {
	mu      sync.Mutex
	fetcher Fetcher
	logger  *slog.Logger

	filterState filters.State
	posterID    int64
	page        int
	limit       int

	state      State
	posts      []*playgrade.Post
	totalPages int
	lastErr    error

	// gen identifies the newest issued fetch. A fetch whose generation no
	// longer matches at completion has been superseded and its result is
	// dropped: only the latest request may update state.
	gen uint64
}

// New creates an idle controller with default filters on page 1.
func New(fetcher Fetcher, logger *slog.Logger) *Controller {
	return &Controller{
		fetcher:     fetcher,
		logger:      logger,
		filterState: filters.Default(),
		page:        1,
		limit:       api.DefaultPageSize,
		totalPages:  1,
		state:       StateIdle,
	}
}

// View is a consistent snapshot of the controller for rendering.
type View struct {
	State      State
	Posts      []*playgrade.Post
	Page       int
	TotalPages int
	Filters    filters.State
	PosterID   int64
	Err        error
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	posts := make([]*playgrade.Post, len(c.posts))
	copy(posts, c.posts)

	return View{
		State:      c.state,
		Posts:      posts,
		Page:       c.page,
		TotalPages: c.totalPages,
		Filters:    c.filterState,
		PosterID:   c.posterID,
		Err:        c.lastErr,
	}
}

// Filters returns the controller's current filter state.
func (c *Controller) Filters() filters.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filterState
}

// RestoreFilters installs a previously persisted filter state without
// issuing a fetch. Meant for startup, before the first page render.
func (c *Controller) RestoreFilters(f filters.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filterState = f
}

// SetFilters replaces the filter state, resets the page to 1, and fetches.
func (c *Controller) SetFilters(ctx context.Context, f filters.State, token string) error {
	c.mu.Lock()
	c.filterState = f
	c.page = 1
	c.mu.Unlock()
	return c.Refresh(ctx, token)
}

// SetPosterID scopes the feed to one user's posts, resets the page to 1,
// and fetches. Generic filters are ignored while a poster is set.
func (c *Controller) SetPosterID(ctx context.Context, posterID int64, token string) error {
	c.mu.Lock()
	c.posterID = posterID
	c.page = 1
	c.mu.Unlock()
	return c.Refresh(ctx, token)
}

// SetPage moves to another page of the current query without resetting
// anything else.
func (c *Controller) SetPage(ctx context.Context, page int, token string) error {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()
	return c.Refresh(ctx, token)
}

// Refresh issues a fetch for the current query. If another fetch starts
// before this one resolves, this one's result is discarded: the guard is
// soft, the request itself is not aborted.
func (c *Controller) Refresh(ctx context.Context, token string) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = StateLoading
	q := api.Query{
		Token: token,
		Page:  c.page,
		Limit: c.limit,
	}
	if c.posterID > 0 {
		q.PosterID = c.posterID
	} else {
		f := c.filterState
		q.Filters = &f
	}
	c.mu.Unlock()

	page, err := c.fetcher.Posts(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug("Discarding stale fetch result", "generation", gen, "current", c.gen)
		return nil
	}

	if err != nil {
		c.logger.Warn("Feed fetch failed", "page", q.Page, "error", err)
		c.state = StateFailed
		c.posts = nil
		c.totalPages = 1
		c.lastErr = err
		return err
	}

	c.lastErr = nil
	c.totalPages = page.TotalPages
	if page.CurrentPage > 0 {
		c.page = page.CurrentPage
	}
	if len(page.Posts) == 0 {
		c.state = StateEmpty
		c.posts = nil
		return nil
	}

	c.state = StatePopulated
	c.posts = page.Posts
	c.logger.Debug("Feed updated", "posts", len(page.Posts), "page", c.page, "total_pages", c.totalPages)
	return nil
}

// ApplyLike patches a single post in place after a successful like call,
// so the list does not refetch.
func (c *Controller) ApplyLike(postID int64) {
	c.patch(postID, func(p *playgrade.Post) {
		if !p.Liked {
			p.Liked = true
			p.LikeCount++
		}
	})
}

// ApplyUnlike reverses ApplyLike for a successful unlike call.
func (c *Controller) ApplyUnlike(postID int64) {
	c.patch(postID, func(p *playgrade.Post) {
		if p.Liked {
			p.Liked = false
			p.LikeCount--
		}
	})
}

func (c *Controller) patch(postID int64, fn func(*playgrade.Post)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.posts {
		if p.PostID == postID {
			fn(p)
			return
		}
	}
}
