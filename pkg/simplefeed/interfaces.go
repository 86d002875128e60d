package simplefeed

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Repository defines the interface for post persistence. Every post returned
// by a read or write carries its author reference resolved to {id, username}.
//
// All operations are atomic at the single-document level; no multi-document
// transactions are required.
type Repository interface {
	// CreatePost persists a new post. The repository assigns the identifier
	// and creation timestamp; post.Author.ID names the owning author.
	// Fails with ErrEmptyContent if the content invariant is violated.
	CreatePost(ctx context.Context, post *Post) (*Post, error)

	// GetPost returns a single post or ErrPostNotFound.
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)

	// UpdatePost replaces content and image reference of an existing post.
	// The author reference and identifier never change. Fails with
	// ErrEmptyContent or ErrPostNotFound.
	UpdatePost(ctx context.Context, id uuid.UUID, content string, image *ImageRef) (*Post, error)

	// DeletePost removes a post and returns its last known state, for event
	// payload purposes. Fails with ErrPostNotFound.
	DeletePost(ctx context.Context, id uuid.UUID) (*Post, error)

	// ListPosts returns posts ordered by creation time descending, applying
	// the given skip/limit window.
	ListPosts(ctx context.Context, offset, limit int) ([]*Post, error)

	// ListPostsByAuthor returns all posts owned by one author, newest first.
	ListPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*Post, error)

	// CountPosts returns the total number of posts. A store-side fast
	// estimate is acceptable; exactness under concurrent writes is not
	// required.
	CountPosts(ctx context.Context) (int64, error)

	// SearchPosts runs a full-text match against post content, ordered by
	// store relevance.
	SearchPosts(ctx context.Context, query string) ([]*Post, error)

	// AuthorByEmail resolves the author record correlated with a verified
	// principal. Fails with ErrAuthorNotFound.
	AuthorByEmail(ctx context.Context, email string) (*Author, error)
}

// TokenVerifier wraps the external identity verifier: given an opaque bearer
// token it returns the verified principal or an error. The service classifies
// any verifier error as ErrUnauthenticated.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// BlobStore defines the interface for image asset storage backends. It is
// invoked only from the transport layer; the core treats image references as
// opaque values.
type BlobStore interface {
	// Upload stores the blob under the caller-supplied asset ID and returns
	// a URL the asset can be fetched from.
	Upload(ctx context.Context, assetID, contentType string, r io.Reader) (string, error)

	// Delete removes the asset.
	Delete(ctx context.Context, assetID string) error
}
