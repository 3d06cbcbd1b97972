package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"playgrade-client/api"
	"playgrade-client/filters"
	"playgrade-client/pkg/playgrade"
)

// fakeFetcher serves canned pages and can hold individual calls open until
// the test releases them, so overlapping fetches resolve in a chosen order.
type fakeFetcher struct {
	mu      sync.Mutex
	queries []api.Query
	pages   []*playgrade.PostPage
	errs    []error
	gates   []chan struct{}
}

func (f *fakeFetcher) Posts(_ context.Context, q api.Query) (*playgrade.PostPage, error) {
	f.mu.Lock()
	n := len(f.queries)
	f.queries = append(f.queries, q)
	var gate chan struct{}
	if n < len(f.gates) {
		gate = f.gates[n]
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	if n < len(f.pages) {
		return f.pages[n], nil
	}
	return &playgrade.PostPage{TotalPages: 1, CurrentPage: 1}, nil
}

func (f *fakeFetcher) lastQuery(t *testing.T) api.Query {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		t.Fatal("no queries recorded")
	}
	return f.queries[len(f.queries)-1]
}

func pageOf(title string, postIDs ...int64) *playgrade.PostPage {
	page := &playgrade.PostPage{TotalPages: 3, CurrentPage: 1}
	for _, id := range postIDs {
		page.Posts = append(page.Posts, &playgrade.Post{
			PostID: id,
			Title:  fmt.Sprintf("%s %d", title, id),
		})
	}
	return page
}

func TestRefreshPopulates(t *testing.T) {
	f := &fakeFetcher{pages: []*playgrade.PostPage{pageOf("post", 1, 2)}}
	c := New(f, slog.Default())

	if got := c.Snapshot().State; got != StateIdle {
		t.Fatalf("initial state = %v, want idle", got)
	}

	if err := c.Refresh(context.Background(), "tok"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	view := c.Snapshot()
	if view.State != StatePopulated {
		t.Errorf("state = %v, want populated", view.State)
	}
	if len(view.Posts) != 2 || view.TotalPages != 3 {
		t.Errorf("view = %+v, want 2 posts of 3 pages", view)
	}

	q := f.lastQuery(t)
	if q.Token != "tok" || q.Page != 1 || q.Limit != api.DefaultPageSize {
		t.Errorf("query = %+v", q)
	}
	if q.Filters == nil {
		t.Fatal("query carries no filters")
	}
	if q.Filters.SortBy != filters.SortNewest {
		t.Errorf("sortBy = %q, want default", q.Filters.SortBy)
	}
}

func TestRefreshEmpty(t *testing.T) {
	f := &fakeFetcher{pages: []*playgrade.PostPage{{TotalPages: 1, CurrentPage: 1}}}
	c := New(f, slog.Default())

	if err := c.Refresh(context.Background(), ""); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := c.Snapshot().State; got != StateEmpty {
		t.Errorf("state = %v, want empty", got)
	}
}

func TestRefreshFailure(t *testing.T) {
	boom := errors.New("connection refused")
	f := &fakeFetcher{errs: []error{boom}}
	c := New(f, slog.Default())

	if err := c.Refresh(context.Background(), ""); !errors.Is(err, boom) {
		t.Fatalf("Refresh() error = %v, want %v", err, boom)
	}

	view := c.Snapshot()
	if view.State != StateFailed {
		t.Errorf("state = %v, want failed", view.State)
	}
	if len(view.Posts) != 0 {
		t.Errorf("posts = %v, want none after failure", view.Posts)
	}
	if !errors.Is(view.Err, boom) {
		t.Errorf("view error = %v, want %v", view.Err, boom)
	}
}

// TestStaleResponseDiscarded holds the first fetch open until after a second
// fetch has fully resolved, then releases it. The first result must not
// overwrite the second.
func TestStaleResponseDiscarded(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{
		pages: []*playgrade.PostPage{pageOf("old", 1), pageOf("new", 2)},
		gates: []chan struct{}{gate},
	}
	c := New(f, slog.Default())

	done := make(chan error, 1)
	go func() {
		done <- c.Refresh(context.Background(), "")
	}()

	// Wait for the first fetch to be in flight before issuing the second.
	deadline := time.Now().Add(5 * time.Second)
	for {
		f.mu.Lock()
		started := len(f.queries) == 1
		f.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.Refresh(context.Background(), ""); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	after := c.Snapshot()
	if len(after.Posts) != 1 || after.Posts[0].PostID != 2 {
		t.Fatalf("second fetch view = %+v, want post 2", after.Posts)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}

	view := c.Snapshot()
	if len(view.Posts) != 1 || view.Posts[0].PostID != 2 {
		t.Errorf("stale fetch overwrote state: %+v, want post 2 kept", view.Posts)
	}
	if view.State != StatePopulated {
		t.Errorf("state = %v, want populated", view.State)
	}
}

// A stale failure must not clobber a fresher success either.
func TestStaleFailureDiscarded(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{
		errs:  []error{errors.New("timeout")},
		pages: []*playgrade.PostPage{nil, pageOf("fresh", 7)},
		gates: []chan struct{}{gate},
	}
	c := New(f, slog.Default())

	done := make(chan error, 1)
	go func() {
		done <- c.Refresh(context.Background(), "")
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		f.mu.Lock()
		started := len(f.queries) == 1
		f.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.Refresh(context.Background(), ""); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}

	close(gate)
	// The superseded call reports no error: its result was dropped.
	if err := <-done; err != nil {
		t.Fatalf("superseded Refresh() error = %v, want nil", err)
	}

	view := c.Snapshot()
	if view.State != StatePopulated || len(view.Posts) != 1 {
		t.Errorf("view = %+v, want populated with post 7", view)
	}
}

func TestSetFiltersResetsPage(t *testing.T) {
	f := &fakeFetcher{pages: []*playgrade.PostPage{
		{TotalPages: 4, CurrentPage: 3, Posts: pageOf("p", 1).Posts},
		pageOf("q", 2),
	}}
	c := New(f, slog.Default())

	if err := c.SetPage(context.Background(), 3, ""); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}
	if got := c.Snapshot().Page; got != 3 {
		t.Fatalf("page = %d, want 3", got)
	}

	next := filters.Default()
	next.SearchQuery = "zelda"
	if err := c.SetFilters(context.Background(), next, ""); err != nil {
		t.Fatalf("SetFilters() error = %v", err)
	}

	q := f.lastQuery(t)
	if q.Page != 1 {
		t.Errorf("page after filter change = %d, want 1", q.Page)
	}
	if q.Filters == nil || q.Filters.SearchQuery != "zelda" {
		t.Errorf("filters = %+v, want search carried", q.Filters)
	}
}

func TestSetPosterIDDropsFilters(t *testing.T) {
	f := &fakeFetcher{pages: []*playgrade.PostPage{pageOf("p", 1), pageOf("q", 2)}}
	c := New(f, slog.Default())

	if err := c.SetPage(context.Background(), 2, ""); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}
	if err := c.SetPosterID(context.Background(), 42, ""); err != nil {
		t.Fatalf("SetPosterID() error = %v", err)
	}

	q := f.lastQuery(t)
	if q.PosterID != 42 {
		t.Errorf("posterID = %d, want 42", q.PosterID)
	}
	if q.Filters != nil {
		t.Errorf("poster-scoped query carries filters: %+v", q.Filters)
	}
	if q.Page != 1 {
		t.Errorf("page = %d, want reset to 1", q.Page)
	}
}

func TestApplyLikeUnlike(t *testing.T) {
	page := pageOf("p", 1, 2)
	page.Posts[0].LikeCount = 3
	f := &fakeFetcher{pages: []*playgrade.PostPage{page}}
	c := New(f, slog.Default())

	if err := c.Refresh(context.Background(), "tok"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	c.ApplyLike(1)
	view := c.Snapshot()
	if !view.Posts[0].Liked || view.Posts[0].LikeCount != 4 {
		t.Errorf("after like: liked=%v count=%d, want true 4", view.Posts[0].Liked, view.Posts[0].LikeCount)
	}

	// Liking twice is a no-op.
	c.ApplyLike(1)
	if got := c.Snapshot().Posts[0].LikeCount; got != 4 {
		t.Errorf("double like count = %d, want 4", got)
	}

	c.ApplyUnlike(1)
	view = c.Snapshot()
	if view.Posts[0].Liked || view.Posts[0].LikeCount != 3 {
		t.Errorf("after unlike: liked=%v count=%d, want false 3", view.Posts[0].Liked, view.Posts[0].LikeCount)
	}

	// Unknown post is ignored.
	c.ApplyLike(99)
	if got := len(c.Snapshot().Posts); got != 2 {
		t.Errorf("posts = %d, want 2", got)
	}
}
