// Package playgrade contains the core domain types exchanged with the Play Grade API.
package playgrade

// Post represents a single post as returned by the API.
type Post struct {
	PostID         int64  `json:"post_id"`
	PosterID       int64  `json:"poster_id"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	Body           string `json:"body"`
	ImageURL       string `json:"image_url,omitempty"`
	LikeCount      int    `json:"like_count"`
	ReplyCount     int    `json:"reply_count"`
	CreatedAt      string `json:"created_at"` // RFC 3339 timestamp from the API
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Liked          bool   `json:"liked"` // Whether the authenticated viewer liked it
}

// Reply represents a single reply to a post. Same shape as Post minus title
// and category, scoped to a parent post.
type Reply struct {
	ReplyID        int64  `json:"reply_id"`
	PostID         int64  `json:"post_id"`
	ReplierID      int64  `json:"replier_id"`
	Body           string `json:"body"`
	ImageURL       string `json:"image_url,omitempty"`
	LikeCount      int    `json:"like_count"`
	CreatedAt      string `json:"created_at"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Liked          bool   `json:"liked"`
}

// User represents a public user profile.
type User struct {
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// PostPage is one page of a paginated post listing. It is recomputed on
// every fetch and never cached across filter changes.
type PostPage struct {
	Posts       []*Post `json:"posts"`
	TotalPages  int     `json:"totalPages"`
	CurrentPage int     `json:"currentPage"`
}

// PostDetail is a single post together with its ordered replies.
type PostDetail struct {
	Post    *Post    `json:"post"`
	Replies []*Reply `json:"replies"`
}

// Claims is the token payload decoded client-side. The decode is never
// verified, so these values are display hints only; the server re-validates
// every privileged action.
type Claims struct {
	UserID  int64 `json:"user_id"`
	IsAdmin bool  `json:"is_admin"`
}

// CanModerate reports whether the signed-in user may be offered delete
// controls for content owned by ownerID. The API enforces the same rule
// server-side; this only gates what the UI renders.
func (c *Claims) CanModerate(ownerID int64) bool {
	return c != nil && (c.IsAdmin || c.UserID == ownerID)
}
