package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/mail"
	"regexp"
	"strconv"

	"playgrade-client/filters"
)

// Input limits enforced before any request is sent. The service enforces
// the same limits; rejecting locally keeps bad submissions off the wire.
const (
	MaxTitleLen    = 100
	MaxBodyLen     = 300
	MinPasswordLen = 8
)

// Like target types.
const (
	TargetPost  = "post"
	TargetReply = "reply"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil && emailRegex.MatchString(email)
}

// Upload is a file attached to a multipart submission.
type Upload struct {
	Filename string
	Data     []byte
}

// Login authenticates and returns the bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", &ValidationError{Field: "credentials", Reason: "email and password are required"}
	}
	if !isValidEmail(email) {
		return "", &ValidationError{Field: "email", Reason: "invalid format"}
	}
	if len(password) < MinPasswordLen {
		return "", &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLen)}
	}

	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.sendJSON(ctx, http.MethodPost, "/users/login", body, "", &resp); err != nil {
		return "", err
	}

	c.logger.Info("Login succeeded")
	return resp.Token, nil
}

// Register creates a new account. The caller logs in separately afterwards.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return &ValidationError{Field: "registration", Reason: "username, email, and password are required"}
	}
	if !isValidEmail(email) {
		return &ValidationError{Field: "email", Reason: "invalid format"}
	}
	if len(password) < MinPasswordLen {
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLen)}
	}

	body := map[string]string{"username": username, "email": email, "password": password}
	return c.sendJSON(ctx, http.MethodPost, "/users/register", body, "", nil)
}

// Like marks a post or reply as liked by the signed-in user.
func (c *Client) Like(ctx context.Context, token string, targetID int64, targetType string) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	if targetType != TargetPost && targetType != TargetReply {
		return &ValidationError{Field: "type", Reason: "must be post or reply"}
	}

	body := map[string]any{"target_id": targetID, "type": targetType}
	return c.sendJSON(ctx, http.MethodPost, "/likes", body, token, nil)
}

// Unlike removes a like from a post or reply.
func (c *Client) Unlike(ctx context.Context, token string, targetID int64, targetType string) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	if targetType != TargetPost && targetType != TargetReply {
		return &ValidationError{Field: "type", Reason: "must be post or reply"}
	}

	body := map[string]any{"target_id": targetID, "type": targetType}
	return c.sendJSON(ctx, http.MethodDelete, "/likes", body, token, nil)
}

// Follow subscribes the signed-in user to another user's posts.
func (c *Client) Follow(ctx context.Context, token string, userID int64) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	body := map[string]int64{"followee_id": userID}
	return c.sendJSON(ctx, http.MethodPost, "/follows", body, token, nil)
}

// Unfollow removes a follow.
func (c *Client) Unfollow(ctx context.Context, token string, userID int64) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	body := map[string]int64{"followee_id": userID}
	return c.sendJSON(ctx, http.MethodDelete, "/follows", body, token, nil)
}

// CreatePost submits a new post and returns its id. Title, category, body,
// and image are all required.
func (c *Client) CreatePost(ctx context.Context, token, title, category, body string, image Upload) (int64, error) {
	if token == "" {
		return 0, ErrNotLoggedIn
	}
	switch {
	case title == "":
		return 0, &ValidationError{Field: "title", Reason: "required"}
	case len(title) > MaxTitleLen:
		return 0, &ValidationError{Field: "title", Reason: fmt.Sprintf("longer than %d characters", MaxTitleLen)}
	case !filters.ValidCategory(category):
		return 0, &ValidationError{Field: "category", Reason: "required"}
	case body == "":
		return 0, &ValidationError{Field: "body", Reason: "required"}
	case len(body) > MaxBodyLen:
		return 0, &ValidationError{Field: "body", Reason: fmt.Sprintf("longer than %d characters", MaxBodyLen)}
	case len(image.Data) == 0:
		return 0, &ValidationError{Field: "image", Reason: "required"}
	}

	fields := map[string]string{
		"title":    title,
		"category": category,
		"body":     body,
	}
	var resp struct {
		PostID int64 `json:"post_id"`
	}
	if err := c.sendMultipart(ctx, http.MethodPost, "/posts", fields, &image, token, &resp); err != nil {
		return 0, err
	}

	c.logger.Info("Post created", "post_id", resp.PostID)
	return resp.PostID, nil
}

// CreateReply submits a reply to a post. The image is optional.
func (c *Client) CreateReply(ctx context.Context, token string, postID int64, body string, image *Upload) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	switch {
	case postID <= 0:
		return &ValidationError{Field: "post_id", Reason: "required"}
	case body == "":
		return &ValidationError{Field: "body", Reason: "required"}
	case len(body) > MaxBodyLen:
		return &ValidationError{Field: "body", Reason: fmt.Sprintf("longer than %d characters", MaxBodyLen)}
	}

	fields := map[string]string{
		"post_id": strconv.FormatInt(postID, 10),
		"body":    body,
	}
	return c.sendMultipart(ctx, http.MethodPost, "/replies", fields, image, token, nil)
}

// DeletePost removes a post. The service enforces owner-or-admin.
func (c *Client) DeletePost(ctx context.Context, token string, postID int64) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d", postID), nil, token, nil)
}

// DeleteReply removes a reply. The service enforces owner-or-admin.
func (c *Client) DeleteReply(ctx context.Context, token string, replyID int64) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/replies/%d", replyID), nil, token, nil)
}

// DeleteAccount removes the user and everything they own.
func (c *Client) DeleteAccount(ctx context.Context, token string, userID int64) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", userID), nil, token, nil)
}

// UpdateUsername changes the signed-in user's display name.
func (c *Client) UpdateUsername(ctx context.Context, token string, userID int64, username string) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	if username == "" {
		return &ValidationError{Field: "username", Reason: "required"}
	}

	body := map[string]string{"username": username}
	return c.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("/users/%d/username", userID), body, token, nil)
}

// UpdatePassword changes the signed-in user's password.
func (c *Client) UpdatePassword(ctx context.Context, token string, userID int64, password string) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	if len(password) < MinPasswordLen {
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLen)}
	}

	body := map[string]string{"password": password}
	return c.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("/users/%d/password", userID), body, token, nil)
}

// UpdateProfilePicture replaces the signed-in user's avatar.
func (c *Client) UpdateProfilePicture(ctx context.Context, token string, userID int64, image Upload) error {
	if token == "" {
		return ErrNotLoggedIn
	}
	if len(image.Data) == 0 {
		return &ValidationError{Field: "image", Reason: "required"}
	}

	path := fmt.Sprintf("/users/%d/profile-picture", userID)
	return c.sendMultipart(ctx, http.MethodPatch, path, nil, &image, token, nil)
}

// sendMultipart performs a multipart form request with optional text fields
// and an optional image part.
func (c *Client) sendMultipart(ctx context.Context, method, path string, fields map[string]string, image *Upload, token string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}
	if image != nil && len(image.Data) > 0 {
		name := image.Filename
		if name == "" {
			name = "upload"
		}
		part, err := w.CreateFormFile("image", name)
		if err != nil {
			return fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(image.Data); err != nil {
			return fmt.Errorf("write image part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req, out)
}
