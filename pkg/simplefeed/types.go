package simplefeed

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Post is a single feed entry. The identifier and creation timestamp are
// assigned by the repository on create and never change afterwards; the same
// holds for the author reference.
type Post struct {
	ID        uuid.UUID  `json:"id"`
	Content   string     `json:"content"`
	Image     *ImageRef  `json:"image,omitempty"`
	Author    *AuthorRef `json:"author"`
	CreatedAt time.Time  `json:"created_at"`
}

// ImageRef points at an externally stored image asset. It is opaque to the
// core: create/update pass it through unchanged and no component inspects it.
type ImageRef struct {
	URL     string `json:"url"`
	AssetID string `json:"asset_id"`
}

// AuthorRef is the resolved owner projection attached to every post returned
// by a repository: just enough to render and to authorize.
type AuthorRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Author is the stored account record that owns posts. Authors are
// provisioned by an external account-management flow; this library only
// reads them, correlating a verified principal by email.
type Author struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
}

// Principal is the request-scoped result of verifying a bearer token. It is
// never persisted.
type Principal struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
}

// EventType names one of the three fixed event topics.
type EventType string

const (
	EventPostCreated EventType = "post.created"
	EventPostUpdated EventType = "post.updated"
	EventPostDeleted EventType = "post.deleted"
)

// Valid reports whether t is one of the fixed topics.
func (t EventType) Valid() bool {
	switch t {
	case EventPostCreated, EventPostUpdated, EventPostDeleted:
		return true
	}
	return false
}

// Event is a mutation notification carrying the full post (with resolved
// author). For EventPostDeleted the payload is the post's last known state.
type Event struct {
	Type EventType `json:"type"`
	Post *Post     `json:"post"`
}

// PageSize is the fixed page length for ListPosts.
const PageSize = 3

// ValidatePostContent enforces the single content invariant: content must
// not be empty or whitespace-only. Content is stored as given; only the
// trimmed form is checked.
func ValidatePostContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	return nil
}
