package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"playgrade-client/api"
	"playgrade-client/imaging"
	"playgrade-client/pkg/playgrade"
)

// maxFormMemory bounds how much of a multipart upload is held in memory.
const maxFormMemory = 8 << 20

type replyView struct {
	*playgrade.Reply
	ImageSrc  string
	AvatarSrc string
	Created   string
	CanDelete bool
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || postID <= 0 {
		s.renderNotFound(w, r)
		return
	}

	detail, err := s.browser.PostWithReplies(r.Context(), postID, s.sess.Token())
	if err != nil {
		if api.IsNotFound(err) {
			s.renderNotFound(w, r)
			return
		}
		if api.IsUnauthorized(err) {
			s.failure(w, r, err, "/")
			return
		}
		s.logger.Warn("Failed to load post", "post_id", postID, "error", err)
		setFlash(w, "Could not load the post. Please try again.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if detail.Post == nil {
		s.renderNotFound(w, r)
		return
	}

	viewer := s.viewer()
	replies := make([]replyView, 0, len(detail.Replies))
	for _, reply := range detail.Replies {
		replies = append(replies, replyView{
			Reply:     reply,
			ImageSrc:  s.imageURL(reply.ImageURL),
			AvatarSrc: s.imageURL(reply.ProfilePicture),
			Created:   displayTime(reply.CreatedAt),
			CanDelete: viewer.CanModerate(reply.ReplierID),
		})
	}

	post := s.postViews([]*playgrade.Post{detail.Post})[0]
	s.render(w, http.StatusOK, "post.tmpl", map[string]any{
		"Viewer":  viewer,
		"Flash":   takeFlash(w, r),
		"Post":    post,
		"Replies": replies,
	})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	category := r.FormValue("category")
	body := strings.TrimSpace(r.FormValue("body"))
	image, imageErr := s.formImage(r, "image")

	// Reject incomplete submissions here so nothing goes on the wire.
	if title == "" || category == "" || body == "" || imageErr != nil || image == nil {
		setFlash(w, "Title, category, review text, and an image are all required.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	postID, err := s.pub.CreatePost(r.Context(), s.sess.Token(), title, category, body, *image)
	if err != nil {
		s.failure(w, r, err, "/")
		return
	}

	setFlash(w, "Post published.")
	http.Redirect(w, r, fmt.Sprintf("/post/%d", postID), http.StatusSeeOther)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || postID <= 0 {
		s.renderNotFound(w, r)
		return
	}

	if err := s.pub.DeletePost(r.Context(), s.sess.Token(), postID); err != nil {
		s.failure(w, r, err, fmt.Sprintf("/post/%d", postID))
		return
	}

	s.logger.Info("Post deleted", "post_id", postID)
	setFlash(w, "Post deleted.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCreateReply(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	postID, err := strconv.ParseInt(r.FormValue("post_id"), 10, 64)
	if err != nil || postID <= 0 {
		http.Error(w, "Invalid post", http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/post/%d", postID)

	body := strings.TrimSpace(r.FormValue("body"))
	if body == "" {
		setFlash(w, "Reply text is required.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	// The image is optional on replies.
	image, imageErr := s.formImage(r, "image")
	if imageErr != nil {
		setFlash(w, "The attached image could not be processed.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	if err := s.pub.CreateReply(r.Context(), s.sess.Token(), postID, body, image); err != nil {
		s.failure(w, r, err, back)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Server) handleDeleteReply(w http.ResponseWriter, r *http.Request) {
	replyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || replyID <= 0 {
		s.renderNotFound(w, r)
		return
	}

	back := returnTo(r, "/")
	if err := s.pub.DeleteReply(r.Context(), s.sess.Token(), replyID); err != nil {
		s.failure(w, r, err, back)
		return
	}

	s.logger.Info("Reply deleted", "reply_id", replyID)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// formImage reads an uploaded file and shrinks it to the service's upload
// policy. A missing file returns (nil, nil); a file that cannot be read or
// re-encoded returns an error.
func (s *Server) formImage(r *http.Request, field string) (*api.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, fmt.Errorf("read form file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			s.logger.Warn("Failed to close upload", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	name, shrunk, err := imaging.Shrink(header.Filename, data)
	if err != nil {
		s.logger.Warn("Failed to shrink upload", "filename", header.Filename, "error", err)
		return nil, err
	}
	if len(shrunk) < len(data) {
		s.logger.Info("Upload compressed",
			"filename", header.Filename,
			"original_bytes", len(data),
			"compressed_bytes", len(shrunk))
	}

	return &api.Upload{Filename: name, Data: shrunk}, nil
}
