package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-feed/pkg/simplefeed"
)

// record is the persisted shape of a post: the author is stored as a bare
// identifier and resolved against the author set on every read.
type record struct {
	id        uuid.UUID
	content   string
	image     *simplefeed.ImageRef
	authorID  uuid.UUID
	createdAt time.Time
}

// Repository implements simplefeed.Repository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	posts   map[uuid.UUID]*record
	authors map[uuid.UUID]*simplefeed.Author
	byEmail map[string]uuid.UUID
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		posts:   make(map[uuid.UUID]*record),
		authors: make(map[uuid.UUID]*simplefeed.Author),
		byEmail: make(map[string]uuid.UUID),
	}
}

// PutAuthor stores an author record. Authors are provisioned by an external
// account-management flow; this helper stands in for it in tests and local
// setups, which is why it is not part of simplefeed.Repository.
func (r *Repository) PutAuthor(author *simplefeed.Author) {
	r.mu.Lock()
	defer r.mu.Unlock()

	authorCopy := *author
	if authorCopy.ID == uuid.Nil {
		authorCopy.ID = uuid.New()
	}
	r.authors[authorCopy.ID] = &authorCopy
	r.byEmail[authorCopy.Email] = authorCopy.ID
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *simplefeed.Post) (*simplefeed.Post, error) {
	if err := simplefeed.ValidatePostContent(post.Content); err != nil {
		return nil, err
	}
	if post.Author == nil {
		return nil, simplefeed.ErrAuthorNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.authors[post.Author.ID]; !exists {
		return nil, simplefeed.ErrAuthorNotFound
	}

	rec := &record{
		id:        uuid.New(),
		content:   post.Content,
		authorID:  post.Author.ID,
		createdAt: time.Now().UTC(),
	}
	if post.Image != nil {
		imageCopy := *post.Image
		rec.image = &imageCopy
	}
	r.posts[rec.id] = rec

	return r.resolve(rec), nil
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*simplefeed.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.posts[id]
	if !exists {
		return nil, simplefeed.ErrPostNotFound
	}
	return r.resolve(rec), nil
}

func (r *Repository) UpdatePost(ctx context.Context, id uuid.UUID, content string, image *simplefeed.ImageRef) (*simplefeed.Post, error) {
	if err := simplefeed.ValidatePostContent(content); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.posts[id]
	if !exists {
		return nil, simplefeed.ErrPostNotFound
	}

	rec.content = content
	rec.image = nil
	if image != nil {
		imageCopy := *image
		rec.image = &imageCopy
	}

	return r.resolve(rec), nil
}

func (r *Repository) DeletePost(ctx context.Context, id uuid.UUID) (*simplefeed.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.posts[id]
	if !exists {
		return nil, simplefeed.ErrPostNotFound
	}
	delete(r.posts, id)

	return r.resolve(rec), nil
}

func (r *Repository) ListPosts(ctx context.Context, offset, limit int) ([]*simplefeed.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.sortedPosts(func(*record) bool { return true })

	if offset >= len(all) {
		return []*simplefeed.Post{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *Repository) ListPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*simplefeed.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedPosts(func(rec *record) bool { return rec.authorID == authorID }), nil
}

func (r *Repository) CountPosts(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.posts)), nil
}

// SearchPosts matches with a case-insensitive substring scan, standing in
// for the text search of the persistent stores.
func (r *Repository) SearchPosts(ctx context.Context, query string) ([]*simplefeed.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(query)
	return r.sortedPosts(func(rec *record) bool {
		return needle != "" && strings.Contains(strings.ToLower(rec.content), needle)
	}), nil
}

// Author operations

func (r *Repository) AuthorByEmail(ctx context.Context, email string) (*simplefeed.Author, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[email]
	if !exists {
		return nil, simplefeed.ErrAuthorNotFound
	}
	authorCopy := *r.authors[id]
	return &authorCopy, nil
}

// Helpers, called with the lock held.

func (r *Repository) resolve(rec *record) *simplefeed.Post {
	ref := &simplefeed.AuthorRef{ID: rec.authorID}
	if author, exists := r.authors[rec.authorID]; exists {
		ref.Username = author.Username
	}

	post := &simplefeed.Post{
		ID:        rec.id,
		Content:   rec.content,
		Author:    ref,
		CreatedAt: rec.createdAt,
	}
	if rec.image != nil {
		imageCopy := *rec.image
		post.Image = &imageCopy
	}
	return post
}

func (r *Repository) sortedPosts(match func(*record) bool) []*simplefeed.Post {
	result := []*simplefeed.Post{}
	for _, rec := range r.posts {
		if match(rec) {
			result = append(result, r.resolve(rec))
		}
	}

	// Sort by created_at descending; ties broken by id for a stable order.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}
