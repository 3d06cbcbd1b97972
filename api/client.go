// Package api translates filter, pagination, and session state into
// requests against the Play Grade REST service and decodes the responses
// into typed records. The service itself is an external collaborator; this
// package owns nothing but the wire contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"playgrade-client/filters"
	"playgrade-client/pkg/playgrade"
)

// DefaultPageSize matches the page size the original client requested.
const DefaultPageSize = 5

// Client talks to the Play Grade API.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// New creates a client for the service at baseURL. A nil httpClient gets a
// 30-second timeout default.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// BaseURL returns the configured service URL, for building image links.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Query selects one page of posts. When PosterID is set it takes precedence
// and every generic filter is ignored: the request carries only the poster,
// page, and limit.
type Query struct {
	Filters  *filters.State
	Token    string
	PosterID int64
	Page     int
	Limit    int
}

func (q Query) values() url.Values {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}

	vals := url.Values{}
	vals.Set("page", strconv.Itoa(page))
	vals.Set("limit", strconv.Itoa(limit))

	if q.PosterID > 0 {
		vals.Set("posterId", strconv.FormatInt(q.PosterID, 10))
		return vals
	}
	if q.Filters != nil {
		filters.Encode(*q.Filters, vals)
	}
	return vals
}

// Posts fetches one page of the feed.
func (c *Client) Posts(ctx context.Context, q Query) (*playgrade.PostPage, error) {
	var page playgrade.PostPage
	if err := c.get(ctx, "/posts", q.values(), q.Token, &page); err != nil {
		return nil, err
	}
	if page.TotalPages < 1 {
		page.TotalPages = 1
	}
	if page.CurrentPage < 1 {
		page.CurrentPage = 1
	}
	return &page, nil
}

// PostWithReplies fetches a single post and its ordered replies. A missing
// post surfaces as an APIError with status 404 (check with IsNotFound).
func (c *Client) PostWithReplies(ctx context.Context, postID int64, token string) (*playgrade.PostDetail, error) {
	var detail playgrade.PostDetail
	path := fmt.Sprintf("/posts/%d", postID)
	if err := c.get(ctx, path, nil, token, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// User fetches a public profile.
func (c *Client) User(ctx context.Context, userID int64) (*playgrade.User, error) {
	var user playgrade.User
	path := fmt.Sprintf("/users/%d", userID)
	if err := c.get(ctx, path, nil, "", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FollowStatus reports whether the signed-in viewer follows userID.
func (c *Client) FollowStatus(ctx context.Context, userID int64, token string) (bool, error) {
	if token == "" {
		return false, ErrNotLoggedIn
	}
	var status struct {
		IsFollowing bool `json:"is_following"`
	}
	path := fmt.Sprintf("/follows/status/%d", userID)
	if err := c.get(ctx, path, nil, token, &status); err != nil {
		return false, err
	}
	return status.IsFollowing, nil
}

// get performs an authenticated-if-possible GET and decodes the JSON body
// into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, token string, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req, out)
}

// do sends the request, maps non-2xx responses to *APIError, and decodes a
// JSON body into out when out is non-nil. Requests are never retried; a
// failure is terminal and the caller decides what to show.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("HTTP request failed",
			"method", req.Method,
			"url", req.URL.String(),
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	c.logger.Debug("HTTP request completed",
		"method", req.Method,
		"url", req.URL.String(),
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls the "error" field the service puts in failure bodies.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}

// sendJSON marshals body and performs a JSON request. out may be nil.
func (c *Client) sendJSON(ctx context.Context, method, path string, body any, token string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req, out)
}
