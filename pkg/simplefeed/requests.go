package simplefeed

import "github.com/google/uuid"

// Request DTOs

// CreatePostRequest contains parameters for creating a post. Token is the
// raw bearer credential of the caller; any authenticated author may create.
type CreatePostRequest struct {
	Token   string
	Content string
	Image   *ImageRef
}

// UpdatePostRequest contains parameters for updating a post. Only content
// and image reference may change.
type UpdatePostRequest struct {
	Token   string
	PostID  uuid.UUID
	Content string
	Image   *ImageRef
}

// DeletePostRequest contains parameters for deleting a post.
type DeletePostRequest struct {
	Token  string
	PostID uuid.UUID
}
