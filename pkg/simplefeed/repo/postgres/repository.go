package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-feed/pkg/simplefeed"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplefeed.Repository using PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE author (
//	    id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    email    TEXT NOT NULL UNIQUE,
//	    username TEXT NOT NULL
//	);
//	CREATE TABLE post (
//	    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    content        TEXT NOT NULL,
//	    image_url      TEXT,
//	    image_asset_id TEXT,
//	    author_id      UUID NOT NULL REFERENCES author(id),
//	    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX post_created_at_idx ON post (created_at DESC);
//	CREATE INDEX post_content_fts_idx ON post
//	    USING GIN (to_tsvector('english', content));
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const postColumns = `
	p.id, p.content, p.image_url, p.image_asset_id, p.created_at,
	a.id, a.username`

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return simplefeed.ErrAuthorNotFound
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simplefeed.ErrPostNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *simplefeed.Post) (*simplefeed.Post, error) {
	if err := simplefeed.ValidatePostContent(post.Content); err != nil {
		return nil, err
	}
	if post.Author == nil {
		return nil, simplefeed.ErrAuthorNotFound
	}

	var imageURL, imageAssetID *string
	if post.Image != nil {
		imageURL = &post.Image.URL
		imageAssetID = &post.Image.AssetID
	}

	query := `
		INSERT INTO post (content, image_url, image_asset_id, author_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, post.Content, imageURL, imageAssetID, post.Author.ID).Scan(&id)
	if err != nil {
		return nil, handlePostgresError("create post", err)
	}

	return r.GetPost(ctx, id)
}

func (r *Repository) GetPost(ctx context.Context, id uuid.UUID) (*simplefeed.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM post p JOIN author a ON a.id = p.author_id
		WHERE p.id = $1`

	post, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplefeed.ErrPostNotFound
		}
		return nil, handlePostgresError("get post", err)
	}
	return post, nil
}

func (r *Repository) UpdatePost(ctx context.Context, id uuid.UUID, content string, image *simplefeed.ImageRef) (*simplefeed.Post, error) {
	if err := simplefeed.ValidatePostContent(content); err != nil {
		return nil, err
	}

	var imageURL, imageAssetID *string
	if image != nil {
		imageURL = &image.URL
		imageAssetID = &image.AssetID
	}

	// Only content and the image reference are assignable; author_id and id
	// stay as created.
	query := `
		UPDATE post SET content = $2, image_url = $3, image_asset_id = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, content, imageURL, imageAssetID)
	if err != nil {
		return nil, handlePostgresError("update post", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, simplefeed.ErrPostNotFound
	}

	return r.GetPost(ctx, id)
}

func (r *Repository) DeletePost(ctx context.Context, id uuid.UUID) (*simplefeed.Post, error) {
	// Fetch the last known state first; it becomes the event payload.
	post, err := r.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM post WHERE id = $1`, id)
	if err != nil {
		return nil, handlePostgresError("delete post", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, simplefeed.ErrPostNotFound
	}

	return post, nil
}

func (r *Repository) ListPosts(ctx context.Context, offset, limit int) ([]*simplefeed.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM post p JOIN author a ON a.id = p.author_id
		ORDER BY p.created_at DESC
		OFFSET $1 LIMIT $2`

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, handlePostgresError("list posts", err)
	}
	return collectPosts(rows)
}

func (r *Repository) ListPostsByAuthor(ctx context.Context, authorID uuid.UUID) ([]*simplefeed.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM post p JOIN author a ON a.id = p.author_id
		WHERE p.author_id = $1
		ORDER BY p.created_at DESC`

	rows, err := r.db.Query(ctx, query, authorID)
	if err != nil {
		return nil, handlePostgresError("list posts by author", err)
	}
	return collectPosts(rows)
}

// CountPosts returns the planner's row estimate for the post table, falling
// back to an exact count when no estimate is available (e.g. before the
// first ANALYZE).
func (r *Repository) CountPosts(ctx context.Context) (int64, error) {
	var estimate int64
	err := r.db.QueryRow(ctx,
		`SELECT reltuples::bigint FROM pg_class WHERE oid = 'post'::regclass`).Scan(&estimate)
	if err != nil {
		return 0, handlePostgresError("count posts", err)
	}
	if estimate >= 0 {
		return estimate, nil
	}

	var exact int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM post`).Scan(&exact); err != nil {
		return 0, handlePostgresError("count posts", err)
	}
	return exact, nil
}

func (r *Repository) SearchPosts(ctx context.Context, query string) ([]*simplefeed.Post, error) {
	sql := `
		SELECT ` + postColumns + `
		FROM post p JOIN author a ON a.id = p.author_id
		WHERE to_tsvector('english', p.content) @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank(to_tsvector('english', p.content), plainto_tsquery('english', $1)) DESC`

	rows, err := r.db.Query(ctx, sql, query)
	if err != nil {
		return nil, handlePostgresError("search posts", err)
	}
	return collectPosts(rows)
}

// Author operations

func (r *Repository) AuthorByEmail(ctx context.Context, email string) (*simplefeed.Author, error) {
	var author simplefeed.Author
	err := r.db.QueryRow(ctx,
		`SELECT id, email, username FROM author WHERE email = $1`, email).
		Scan(&author.ID, &author.Email, &author.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplefeed.ErrAuthorNotFound
		}
		return nil, handlePostgresError("author by email", err)
	}
	return &author, nil
}

// Row mapping

func scanPost(row pgx.Row) (*simplefeed.Post, error) {
	var (
		post         simplefeed.Post
		author       simplefeed.AuthorRef
		imageURL     *string
		imageAssetID *string
	)
	err := row.Scan(&post.ID, &post.Content, &imageURL, &imageAssetID, &post.CreatedAt,
		&author.ID, &author.Username)
	if err != nil {
		return nil, err
	}

	post.Author = &author
	if imageURL != nil || imageAssetID != nil {
		post.Image = &simplefeed.ImageRef{}
		if imageURL != nil {
			post.Image.URL = *imageURL
		}
		if imageAssetID != nil {
			post.Image.AssetID = *imageAssetID
		}
	}
	return &post, nil
}

func collectPosts(rows pgx.Rows) ([]*simplefeed.Post, error) {
	defer rows.Close()

	posts := []*simplefeed.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}
