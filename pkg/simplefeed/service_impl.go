package simplefeed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	verifier   TokenVerifier
	bus        *Bus
	logger     *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithTokenVerifier sets the identity verifier for the service
func WithTokenVerifier(v TokenVerifier) Option {
	return func(s *service) {
		s.verifier = v
	}
}

// WithEventBus sets the event bus mutations publish to. Without a bus the
// service still mutates; events are simply not fanned out.
func WithEventBus(bus *Bus) Option {
	return func(s *service) {
		s.bus = bus
	}
}

// WithLogger sets the logger used for infrastructure warnings
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		logger: slog.Default(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.verifier == nil {
		return nil, fmt.Errorf("token verifier is required")
	}

	return s, nil
}

// Open queries

func (s *service) ListPosts(ctx context.Context, page int) ([]*Post, error) {
	if page < 1 {
		page = 1
	}
	return s.repository.ListPosts(ctx, (page-1)*PageSize, PageSize)
}

func (s *service) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	return s.repository.GetPost(ctx, id)
}

func (s *service) CountPosts(ctx context.Context) (int64, error) {
	return s.repository.CountPosts(ctx)
}

func (s *service) SearchPosts(ctx context.Context, query string) ([]*Post, error) {
	return s.repository.SearchPosts(ctx, query)
}

// Authenticated queries

// Authenticate verifies the bearer token and returns the caller's author
// record. Callers outside the post operations (the image endpoints) use it
// as their auth gate.
func (s *service) Authenticate(ctx context.Context, token string) (*Author, error) {
	return s.resolveAuthor(ctx, token)
}

func (s *service) ListMyPosts(ctx context.Context, token string) ([]*Post, error) {
	author, err := s.resolveAuthor(ctx, token)
	if err != nil {
		return nil, err
	}
	// Always scoped to the caller's own author record; listing another
	// author's posts by id is not exposed.
	return s.repository.ListPostsByAuthor(ctx, author.ID)
}

// Mutations

func (s *service) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	// Any authenticated author may create; no ownership check applies.
	author, err := s.resolveAuthor(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	if err := ValidatePostContent(req.Content); err != nil {
		return nil, err
	}

	post, err := s.repository.CreatePost(ctx, &Post{
		Content: req.Content,
		Image:   req.Image,
		Author:  &AuthorRef{ID: author.ID, Username: author.Username},
	})
	if err != nil {
		return nil, &PostError{Op: "create", Err: err}
	}

	// The store write has committed; only now may subscribers hear about it.
	s.publish(Event{Type: EventPostCreated, Post: post})

	return post, nil
}

func (s *service) UpdatePost(ctx context.Context, req UpdatePostRequest) (*Post, error) {
	author, err := s.resolveAuthor(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	if err := ValidatePostContent(req.Content); err != nil {
		return nil, err
	}

	target, err := s.repository.GetPost(ctx, req.PostID)
	if err != nil {
		return nil, &PostError{PostID: req.PostID, Op: "update", Err: err}
	}
	if err := authorizePostMutation(author, target); err != nil {
		return nil, err
	}

	post, err := s.repository.UpdatePost(ctx, req.PostID, req.Content, req.Image)
	if err != nil {
		return nil, &PostError{PostID: req.PostID, Op: "update", Err: err}
	}

	s.publish(Event{Type: EventPostUpdated, Post: post})

	return post, nil
}

func (s *service) DeletePost(ctx context.Context, req DeletePostRequest) (*Post, error) {
	author, err := s.resolveAuthor(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	target, err := s.repository.GetPost(ctx, req.PostID)
	if err != nil {
		return nil, &PostError{PostID: req.PostID, Op: "delete", Err: err}
	}
	if err := authorizePostMutation(author, target); err != nil {
		return nil, err
	}

	post, err := s.repository.DeletePost(ctx, req.PostID)
	if err != nil {
		return nil, &PostError{PostID: req.PostID, Op: "delete", Err: err}
	}

	s.publish(Event{Type: EventPostDeleted, Post: post})

	return post, nil
}

// Subscriptions

func (s *service) SubscribePosts(ctx context.Context, topic EventType) (*Subscription, error) {
	if s.bus == nil {
		return nil, fmt.Errorf("no event bus configured")
	}
	return s.bus.Subscribe(ctx, topic)
}

// Helper methods

// resolveAuthor authenticates the bearer token and looks up the provisioned
// author record for the verified principal.
func (s *service) resolveAuthor(ctx context.Context, token string) (*Author, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	principal, err := s.verifier.Verify(ctx, token)
	if err != nil {
		// Verifier detail stays out of the caller-facing classification.
		s.logger.Debug("token verification failed", "err", err)
		return nil, ErrUnauthenticated
	}

	author, err := s.repository.AuthorByEmail(ctx, principal.Email)
	if err != nil {
		return nil, err
	}

	return author, nil
}

func (s *service) publish(ev Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ev)
}
