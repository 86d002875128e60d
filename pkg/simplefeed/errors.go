package simplefeed

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrUnauthenticated indicates a missing, malformed, or rejected bearer
	// token. The underlying verifier error is never exposed to callers.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates an authenticated caller that does not own the
	// target post.
	ErrForbidden = errors.New("not authorized")

	// ErrEmptyContent indicates post content that is empty or whitespace-only.
	ErrEmptyContent = errors.New("content is required")

	// ErrPostNotFound indicates a post was not found.
	ErrPostNotFound = errors.New("post not found")

	// ErrAuthorNotFound indicates a verified identity with no provisioned
	// author record. Distinct from ErrUnauthenticated.
	ErrAuthorNotFound = errors.New("author not found")

	// ErrBusClosed indicates a subscribe attempt on a bus that has been
	// shut down.
	ErrBusClosed = errors.New("event bus closed")
)

// PostError represents an error related to post operations
type PostError struct {
	PostID uuid.UUID
	Op     string
	Err    error
}

func (e *PostError) Error() string {
	return fmt.Sprintf("post operation %s failed for post %s: %v", e.Op, e.PostID, e.Err)
}

func (e *PostError) Unwrap() error {
	return e.Err
}
