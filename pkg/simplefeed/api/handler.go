// Package api exposes the feed service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-feed/pkg/simplefeed"
)

// CreatePostRequest is the request body for creating a post
type CreatePostRequest struct {
	Content string               `json:"content"`
	Image   *simplefeed.ImageRef `json:"image,omitempty"`
}

// UpdatePostRequest is the request body for updating a post
type UpdatePostRequest struct {
	Content string               `json:"content"`
	Image   *simplefeed.ImageRef `json:"image,omitempty"`
}

// CountResponse is the response body for the post count
type CountResponse struct {
	Total int64 `json:"total"`
}

// ImageResponse is the response body for an uploaded image
type ImageResponse struct {
	URL     string `json:"url"`
	AssetID string `json:"asset_id"`
}

// FeedHandler handles HTTP requests for the feed using pkg/simplefeed
type FeedHandler struct {
	service simplefeed.Service
	blobs   simplefeed.BlobStore
}

// NewFeedHandler creates a new feed handler. The blob store may be nil, in
// which case the image endpoints report the feature as unavailable.
func NewFeedHandler(service simplefeed.Service, blobs simplefeed.BlobStore) *FeedHandler {
	return &FeedHandler{
		service: service,
		blobs:   blobs,
	}
}

// Routes returns the routes for the feed
func (h *FeedHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/posts", h.ListPosts)
	r.Get("/posts/count", h.CountPosts)
	r.Get("/posts/search", h.SearchPosts)
	r.Get("/posts/{id}", h.GetPost)
	r.Post("/posts", h.CreatePost)
	r.Put("/posts/{id}", h.UpdatePost)
	r.Delete("/posts/{id}", h.DeletePost)

	r.Get("/me/posts", h.ListMyPosts)

	r.Get("/subscriptions/{topic}", h.SubscribePosts)

	r.Post("/images", h.UploadImage)
	r.Delete("/images/{assetID}", h.RemoveImage)

	return r
}

// ListPosts returns a page of the feed, newest first
func (h *FeedHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		parsed, err := strconv.Atoi(pageStr)
		if err != nil {
			http.Error(w, "Invalid page", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	posts, err := h.service.ListPosts(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, posts)
}

// GetPost retrieves a post by ID
func (h *FeedHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	post, err := h.service.GetPost(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, post)
}

// CountPosts returns the total number of posts
func (h *FeedHandler) CountPosts(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.CountPosts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, CountResponse{Total: total})
}

// SearchPosts returns posts matching the full-text query
func (h *FeedHandler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Missing required 'q' parameter", http.StatusBadRequest)
		return
	}

	posts, err := h.service.SearchPosts(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, posts)
}

// ListMyPosts returns every post owned by the caller
func (h *FeedHandler) ListMyPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListMyPosts(r.Context(), bearerToken(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, posts)
}

// CreatePost creates a new post owned by the caller
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	post, err := h.service.CreatePost(r.Context(), simplefeed.CreatePostRequest{
		Token:   bearerToken(r),
		Content: req.Content,
		Image:   req.Image,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	slog.Info("Post created", "post_id", post.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, post)
}

// UpdatePost replaces the content and image of a post owned by the caller
func (h *FeedHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	post, err := h.service.UpdatePost(r.Context(), simplefeed.UpdatePostRequest{
		Token:   bearerToken(r),
		PostID:  id,
		Content: req.Content,
		Image:   req.Image,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	slog.Info("Post updated", "post_id", idStr)
	render.JSON(w, r, post)
}

// DeletePost removes a post owned by the caller and returns its last state
func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	post, err := h.service.DeletePost(r.Context(), simplefeed.DeletePostRequest{
		Token:  bearerToken(r),
		PostID: id,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	slog.Info("Post deleted", "post_id", idStr)
	render.JSON(w, r, post)
}

// SubscribePosts streams feed events for one topic over server-sent events.
// The stream carries only events published after the subscription is
// registered; there is no replay of earlier history.
func (h *FeedHandler) SubscribePosts(w http.ResponseWriter, r *http.Request) {
	topic := simplefeed.EventType(chi.URLParam(r, "topic"))
	if !topic.Valid() {
		http.Error(w, "Unknown topic", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := h.service.SubscribePosts(r.Context(), topic)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				slog.Error("Failed to encode event", "topic", topic, "error", err)
				continue
			}
			if _, err := w.Write([]byte("event: " + string(ev.Type) + "\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

const maxImageSize = 10 << 20 // 10 MiB

// UploadImage stores an image asset and returns its URL and asset ID
func (h *FeedHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		http.Error(w, "Image storage not configured", http.StatusNotImplemented)
		return
	}

	if _, err := h.service.Authenticate(r.Context(), bearerToken(r)); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Missing 'image' file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	assetID := uuid.NewString()
	contentType := header.Header.Get("Content-Type")

	url, err := h.blobs.Upload(r.Context(), assetID, contentType, file)
	if err != nil {
		slog.Error("Failed to upload image", "asset_id", assetID, "error", err)
		http.Error(w, "Failed to upload image", http.StatusInternalServerError)
		return
	}

	slog.Info("Image uploaded", "asset_id", assetID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ImageResponse{URL: url, AssetID: assetID})
}

// RemoveImage deletes an image asset
func (h *FeedHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		http.Error(w, "Image storage not configured", http.StatusNotImplemented)
		return
	}

	if _, err := h.service.Authenticate(r.Context(), bearerToken(r)); err != nil {
		h.writeError(w, r, err)
		return
	}

	assetIDStr := chi.URLParam(r, "assetID")
	assetID, err := uuid.Parse(assetIDStr)
	if err != nil {
		http.Error(w, "Invalid asset ID", http.StatusBadRequest)
		return
	}

	if err := h.blobs.Delete(r.Context(), assetID.String()); err != nil {
		slog.Error("Failed to remove image", "asset_id", assetIDStr, "error", err)
		http.Error(w, "Failed to remove image", http.StatusInternalServerError)
		return
	}

	slog.Info("Image removed", "asset_id", assetIDStr)
	w.WriteHeader(http.StatusNoContent)
}

// bearerToken extracts the bearer token from the Authorization header.
// Returns the empty string when the header is missing or malformed; the
// service treats that as an unauthenticated caller.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// writeError maps service errors onto HTTP status codes
func (h *FeedHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, simplefeed.ErrUnauthenticated):
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	case errors.Is(err, simplefeed.ErrForbidden):
		http.Error(w, "Not authorized", http.StatusForbidden)
	case errors.Is(err, simplefeed.ErrEmptyContent):
		http.Error(w, "Content is required", http.StatusBadRequest)
	case errors.Is(err, simplefeed.ErrPostNotFound):
		http.Error(w, "Post not found", http.StatusNotFound)
	case errors.Is(err, simplefeed.ErrAuthorNotFound):
		http.Error(w, "Author not found", http.StatusNotFound)
	default:
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
