// Package mongo provides MongoDB-backed post persistence.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-feed/pkg/simplefeed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// postDoc is the stored shape of a post. Identifiers are UUID strings so the
// same opaque ID type flows through every repository implementation.
type postDoc struct {
	ID           string    `bson:"_id"`
	Content      string    `bson:"content"`
	ImageURL     string    `bson:"image_url,omitempty"`
	ImageAssetID string    `bson:"image_asset_id,omitempty"`
	AuthorID     string    `bson:"author_id"`
	CreatedAt    time.Time `bson:"created_at"`
}

type authorDoc struct {
	ID       string `bson:"_id"`
	Email    string `bson:"email"`
	Username string `bson:"username"`
}

// Repository implements simplefeed.Repository using MongoDB
type Repository struct {
	posts   *mongo.Collection
	authors *mongo.Collection
}

// New creates a new MongoDB repository on the given database and ensures the
// indexes the query paths rely on: a text index on content and a descending
// creation-time index.
func New(ctx context.Context, db *mongo.Database) (*Repository, error) {
	r := &Repository{
		posts:   db.Collection("posts"),
		authors: db.Collection("authors"),
	}

	_, err := r.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "content", Value: "text"}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create post indexes: %w", err)
	}

	_, err = r.authors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create author index: %w", err)
	}

	return r, nil
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *simplefeed.Post) (*simplefeed.Post, error) {
	if err := simplefeed.ValidatePostContent(post.Content); err != nil {
		return nil, err
	}
	if post.Author == nil {
		return nil, simplefeed.ErrAuthorNotFound
	}

	doc := postDoc{
		ID:        uuid.NewString(),
		Content:   post.Content,
		AuthorID:  post.Author.ID.String(),
		CreatedAt: time.Now().UTC(),
	}
	if post.Image != nil {
		doc.ImageURL = post.Image.URL
		doc.ImageAssetID = post.Image.AssetID
	}

	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return r.resolveOne(ctx, &doc)
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*simplefeed.Post, error) {
	var doc postDoc
	err := r.posts.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, simplefeed.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return r.resolveOne(ctx, &doc)
}

func (r *Repository) UpdatePost(ctx context.Context, id uuid.UUID, content string, image *simplefeed.ImageRef) (*simplefeed.Post, error) {
	if err := simplefeed.ValidatePostContent(content); err != nil {
		return nil, err
	}

	set := bson.M{"content": content}
	unset := bson.M{}
	if image != nil {
		set["image_url"] = image.URL
		set["image_asset_id"] = image.AssetID
	} else {
		unset["image_url"] = ""
		unset["image_asset_id"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var doc postDoc
	err := r.posts.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, simplefeed.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return r.resolveOne(ctx, &doc)
}

func (r *Repository) DeletePost(ctx context.Context, id uuid.UUID) (*simplefeed.Post, error) {
	var doc postDoc
	err := r.posts.FindOneAndDelete(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, simplefeed.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}
	return r.resolveOne(ctx, &doc)
}

func (r *Repository) ListPosts(ctx context.Context, offset, limit int) ([]*simplefeed.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return r.resolveCursor(ctx, cursor)
}

func (r *Repository) ListPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*simplefeed.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.posts.Find(ctx, bson.M{"author_id": authorID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author: %w", err)
	}
	return r.resolveCursor(ctx, cursor)
}

// CountPosts uses the collection's metadata estimate rather than a full
// scan; it may lag slightly under concurrent writes.
func (r *Repository) CountPosts(ctx context.Context) (int64, error) {
	count, err := r.posts.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func (r *Repository) SearchPosts(ctx context.Context, query string) ([]*simplefeed.Post, error) {
	filter := bson.M{"$text": bson.M{"$search": query}}
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}})

	cursor, err := r.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	return r.resolveCursor(ctx, cursor)
}

// Author operations

func (r *Repository) AuthorByEmail(ctx context.Context, email string) (*simplefeed.Author, error) {
	var doc authorDoc
	err := r.authors.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, simplefeed.ErrAuthorNotFound
		}
		return nil, fmt.Errorf("failed to find author by email: %w", err)
	}
	return docToAuthor(&doc)
}

// Author resolution

// resolveOne joins a single post with its author record.
func (r *Repository) resolveOne(ctx context.Context, doc *postDoc) (*simplefeed.Post, error) {
	refs, err := r.authorRefs(ctx, []string{doc.AuthorID})
	if err != nil {
		return nil, err
	}
	return docToPost(doc, refs)
}

// resolveCursor drains a post cursor and batch-resolves the author
// references with a single authors query.
func (r *Repository) resolveCursor(ctx context.Context, cursor *mongo.Cursor) ([]*simplefeed.Post, error) {
	defer cursor.Close(ctx)

	var docs []postDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	ids := make([]string, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for i := range docs {
		if !seen[docs[i].AuthorID] {
			seen[docs[i].AuthorID] = true
			ids = append(ids, docs[i].AuthorID)
		}
	}

	refs, err := r.authorRefs(ctx, ids)
	if err != nil {
		return nil, err
	}

	posts := make([]*simplefeed.Post, 0, len(docs))
	for i := range docs {
		post, err := docToPost(&docs[i], refs)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (r *Repository) authorRefs(ctx context.Context, ids []string) (map[string]*simplefeed.AuthorRef, error) {
	refs := make(map[string]*simplefeed.AuthorRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	cursor, err := r.authors.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve authors: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []authorDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode authors: %w", err)
	}
	for i := range docs {
		id, err := uuid.Parse(docs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("invalid author id %q: %w", docs[i].ID, err)
		}
		refs[docs[i].ID] = &simplefeed.AuthorRef{ID: id, Username: docs[i].Username}
	}
	return refs, nil
}

func docToPost(doc *postDoc, refs map[string]*simplefeed.AuthorRef) (*simplefeed.Post, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid post id %q: %w", doc.ID, err)
	}

	ref, ok := refs[doc.AuthorID]
	if !ok {
		// The author record was removed out from under the post; surface
		// the bare reference rather than failing the read.
		authorID, err := uuid.Parse(doc.AuthorID)
		if err != nil {
			return nil, fmt.Errorf("invalid author id %q: %w", doc.AuthorID, err)
		}
		ref = &simplefeed.AuthorRef{ID: authorID}
	}

	post := &simplefeed.Post{
		ID:        id,
		Content:   doc.Content,
		Author:    &simplefeed.AuthorRef{ID: ref.ID, Username: ref.Username},
		CreatedAt: doc.CreatedAt,
	}
	if doc.ImageURL != "" || doc.ImageAssetID != "" {
		post.Image = &simplefeed.ImageRef{URL: doc.ImageURL, AssetID: doc.ImageAssetID}
	}
	return post, nil
}

func docToAuthor(doc *authorDoc) (*simplefeed.Author, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid author id %q: %w", doc.ID, err)
	}
	return &simplefeed.Author{ID: id, Email: doc.Email, Username: doc.Username}, nil
}
