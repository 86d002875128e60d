package simplefeed

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-feed library
type Service interface {
	// Open queries
	ListPosts(ctx context.Context, page int) ([]*Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)
	CountPosts(ctx context.Context) (int64, error)
	SearchPosts(ctx context.Context, query string) ([]*Post, error)

	// Authenticated queries
	Authenticate(ctx context.Context, token string) (*Author, error)
	ListMyPosts(ctx context.Context, token string) ([]*Post, error)

	// Mutations
	CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error)
	UpdatePost(ctx context.Context, req UpdatePostRequest) (*Post, error)
	DeletePost(ctx context.Context, req DeletePostRequest) (*Post, error)

	// Subscriptions
	SubscribePosts(ctx context.Context, topic EventType) (*Subscription, error)
}
