package simplefeed_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-feed/pkg/simplefeed"
	"github.com/tendant/simple-feed/pkg/simplefeed/identity"
	"github.com/tendant/simple-feed/pkg/simplefeed/repo/memory"
)

const (
	aliceToken = "alice-token"
	bobToken   = "bob-token"
)

// setupTestService builds a service over the in-memory repository with two
// known authors and a connected event bus.
func setupTestService(t *testing.T) (simplefeed.Service, *memory.Repository, *simplefeed.Bus) {
	t.Helper()

	repo := memory.New()
	repo.PutAuthor(&simplefeed.Author{ID: uuid.New(), Email: "alice@example.com", Username: "alice"})
	repo.PutAuthor(&simplefeed.Author{ID: uuid.New(), Email: "bob@example.com", Username: "bob"})

	verifier := identity.NewStaticVerifier(map[string]simplefeed.Principal{
		aliceToken: {ExternalID: "ext-alice", Email: "alice@example.com"},
		bobToken:   {ExternalID: "ext-bob", Email: "bob@example.com"},
	})

	bus := simplefeed.NewBus()
	t.Cleanup(bus.Close)

	svc, err := simplefeed.New(
		simplefeed.WithRepository(repo),
		simplefeed.WithTokenVerifier(verifier),
		simplefeed.WithEventBus(bus),
	)
	require.NoError(t, err)

	return svc, repo, bus
}

func subscribe(t *testing.T, bus *simplefeed.Bus, topic simplefeed.EventType) *simplefeed.Subscription {
	t.Helper()
	sub, err := bus.Subscribe(context.Background(), topic)
	require.NoError(t, err)
	return sub
}

func TestServiceCreation(t *testing.T) {
	repo := memory.New()
	verifier := identity.NewStaticVerifier(nil)

	tests := []struct {
		name        string
		options     []simplefeed.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []simplefeed.Option{},
			expectError: true,
		},
		{
			name: "repository alone should fail",
			options: []simplefeed.Option{
				simplefeed.WithRepository(repo),
			},
			expectError: true,
		},
		{
			name: "verifier alone should fail",
			options: []simplefeed.Option{
				simplefeed.WithTokenVerifier(verifier),
			},
			expectError: true,
		},
		{
			name: "repository and verifier should succeed",
			options: []simplefeed.Option{
				simplefeed.WithRepository(repo),
				simplefeed.WithTokenVerifier(verifier),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simplefeed.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	author, err := svc.Authenticate(ctx, aliceToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", author.Username)
	assert.Equal(t, "alice@example.com", author.Email)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, simplefeed.ErrUnauthenticated)

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, simplefeed.ErrUnauthenticated)
}

func TestCreatePost(t *testing.T) {
	svc, _, bus := setupTestService(t)
	ctx := context.Background()

	sub := subscribe(t, bus, simplefeed.EventPostCreated)

	post, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{
		Token:   aliceToken,
		Content: "hello feed",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, post.ID)
	assert.Equal(t, "hello feed", post.Content)
	assert.False(t, post.CreatedAt.IsZero())
	require.NotNil(t, post.Author)
	assert.Equal(t, "alice", post.Author.Username)

	ev := receiveOne(t, sub)
	assert.Equal(t, simplefeed.EventPostCreated, ev.Type)
	require.NotNil(t, ev.Post)
	assert.Equal(t, post.ID, ev.Post.ID)
	assert.Equal(t, "hello feed", ev.Post.Content)
}

func TestCreatePostAuthentication(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	t.Run("missing token", func(t *testing.T) {
		_, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{Content: "x"})
		assert.ErrorIs(t, err, simplefeed.ErrUnauthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{Token: "mallory-token", Content: "x"})
		assert.ErrorIs(t, err, simplefeed.ErrUnauthenticated)
	})
}

func TestCreatePostEmptyContent(t *testing.T) {
	svc, _, bus := setupTestService(t)
	ctx := context.Background()

	sub := subscribe(t, bus, simplefeed.EventPostCreated)

	for _, content := range []string{"", "   ", "\n\t "} {
		_, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{
			Token:   aliceToken,
			Content: content,
		})
		assert.ErrorIs(t, err, simplefeed.ErrEmptyContent)
	}

	// Nothing persisted, nothing published.
	total, err := svc.CountPosts(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUpdatePost(t *testing.T) {
	svc, _, bus := setupTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{
		Token:   aliceToken,
		Content: "original",
	})
	require.NoError(t, err)

	sub := subscribe(t, bus, simplefeed.EventPostUpdated)

	updated, err := svc.UpdatePost(ctx, simplefeed.UpdatePostRequest{
		Token:   aliceToken,
		PostID:  post.ID,
		Content: "revised",
	})
	require.NoError(t, err)
	assert.Equal(t, "revised", updated.Content)
	assert.Equal(t, post.ID, updated.ID)

	ev := receiveOne(t, sub)
	assert.Equal(t, simplefeed.EventPostUpdated, ev.Type)
	assert.Equal(t, "revised", ev.Post.Content)
}

func TestUpdatePostNotOwner(t *testing.T) {
	svc, _, bus := setupTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{
		Token:   aliceToken,
		Content: "alice's post",
	})
	require.NoError(t, err)

	sub := subscribe(t, bus, simplefeed.EventPostUpdated)

	_, err = svc.UpdatePost(ctx, simplefeed.UpdatePostRequest{
		Token:   bobToken,
		PostID:  post.ID,
		Content: "bob was here",
	})
	assert.ErrorIs(t, err, simplefeed.ErrForbidden)

	// The post is unchanged and no event fired.
	unchanged, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice's post", unchanged.Content)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUpdatePostNotFound(t *testing.T) {
	svc, _, _ := setupTestService(t)

	_, err := svc.UpdatePost(context.Background(), simplefeed.UpdatePostRequest{
		Token:   aliceToken,
		PostID:  uuid.New(),
		Content: "whatever",
	})
	assert.ErrorIs(t, err, simplefeed.ErrPostNotFound)
}

func TestDeletePost(t *testing.T) {
	svc, _, bus := setupTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{
		Token:   aliceToken,
		Content: "short lived",
	})
	require.NoError(t, err)

	sub := subscribe(t, bus, simplefeed.EventPostDeleted)

	deleted, err := svc.DeletePost(ctx, simplefeed.DeletePostRequest{
		Token:  aliceToken,
		PostID: post.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "short lived", deleted.Content)

	ev := receiveOne(t, sub)
	assert.Equal(t, simplefeed.EventPostDeleted, ev.Type)
	assert.Equal(t, post.ID, ev.Post.ID)

	_, err = svc.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, simplefeed.ErrPostNotFound)
}

func TestDeletePostNotOwner(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{
		Token:   aliceToken,
		Content: "protected",
	})
	require.NoError(t, err)

	_, err = svc.DeletePost(ctx, simplefeed.DeletePostRequest{
		Token:  bobToken,
		PostID: post.ID,
	})
	assert.ErrorIs(t, err, simplefeed.ErrForbidden)

	_, err = svc.GetPost(ctx, post.ID)
	assert.NoError(t, err)
}

func TestListPostsPaging(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	var created []*simplefeed.Post
	for i := 0; i < 5; i++ {
		post, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{
			Token:   aliceToken,
			Content: "post " + string(rune('a'+i)),
		})
		require.NoError(t, err)
		created = append(created, post)
		time.Sleep(time.Millisecond) // distinct creation times
	}

	page1, err := svc.ListPosts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, page1, simplefeed.PageSize)

	// Newest first.
	assert.Equal(t, created[4].ID, page1[0].ID)
	assert.Equal(t, created[3].ID, page1[1].ID)
	assert.Equal(t, created[2].ID, page1[2].ID)

	page2, err := svc.ListPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, created[1].ID, page2[0].ID)
	assert.Equal(t, created[0].ID, page2[1].ID)

	// Page numbers below 1 are treated as the first page.
	clamped, err := svc.ListPosts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, page1, clamped)

	// Beyond the end yields an empty page.
	empty, err := svc.ListPosts(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListMyPosts(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{Token: aliceToken, Content: "mine"})
	require.NoError(t, err)
	_, err = svc.CreatePost(ctx, simplefeed.CreatePostRequest{Token: bobToken, Content: "bob's"})
	require.NoError(t, err)

	posts, err := svc.ListMyPosts(ctx, aliceToken)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "mine", posts[0].Content)

	_, err = svc.ListMyPosts(ctx, "")
	assert.ErrorIs(t, err, simplefeed.ErrUnauthenticated)
}

func TestSearchPosts(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{Token: aliceToken, Content: "gophers at work"})
	require.NoError(t, err)
	_, err = svc.CreatePost(ctx, simplefeed.CreatePostRequest{Token: bobToken, Content: "nothing here"})
	require.NoError(t, err)

	posts, err := svc.SearchPosts(ctx, "gophers")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "gophers at work", posts[0].Content)
}

func TestCountPosts(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	total, err := svc.CountPosts(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	for i := 0; i < 3; i++ {
		_, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{Token: aliceToken, Content: "post"})
		require.NoError(t, err)
	}

	total, err = svc.CountPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestSubscribePostsWithoutBus(t *testing.T) {
	repo := memory.New()
	verifier := identity.NewStaticVerifier(nil)

	svc, err := simplefeed.New(
		simplefeed.WithRepository(repo),
		simplefeed.WithTokenVerifier(verifier),
	)
	require.NoError(t, err)

	_, err = svc.SubscribePosts(context.Background(), simplefeed.EventPostCreated)
	assert.Error(t, err)
}

// TestFeedLifecycle drives a post through create, a rejected foreign update,
// an owner update and a delete, with a subscriber on every topic.
func TestFeedLifecycle(t *testing.T) {
	svc, _, bus := setupTestService(t)
	ctx := context.Background()

	createdSub := subscribe(t, bus, simplefeed.EventPostCreated)
	updatedSub := subscribe(t, bus, simplefeed.EventPostUpdated)
	deletedSub := subscribe(t, bus, simplefeed.EventPostDeleted)

	post, err := svc.CreatePost(ctx, simplefeed.CreatePostRequest{
		Token:   aliceToken,
		Content: "v1",
	})
	require.NoError(t, err)

	_, err = svc.UpdatePost(ctx, simplefeed.UpdatePostRequest{
		Token:   bobToken,
		PostID:  post.ID,
		Content: "hijacked",
	})
	require.ErrorIs(t, err, simplefeed.ErrForbidden)

	_, err = svc.UpdatePost(ctx, simplefeed.UpdatePostRequest{
		Token:   aliceToken,
		PostID:  post.ID,
		Content: "v2",
	})
	require.NoError(t, err)

	_, err = svc.DeletePost(ctx, simplefeed.DeletePostRequest{
		Token:  aliceToken,
		PostID: post.ID,
	})
	require.NoError(t, err)

	created := receiveOne(t, createdSub)
	assert.Equal(t, "v1", created.Post.Content)

	updated := receiveOne(t, updatedSub)
	assert.Equal(t, "v2", updated.Post.Content)

	deleted := receiveOne(t, deletedSub)
	assert.Equal(t, post.ID, deleted.Post.ID)
	assert.Equal(t, "v2", deleted.Post.Content)

	// Exactly one event per topic: the forbidden update published nothing.
	for name, sub := range map[string]*simplefeed.Subscription{
		"created": createdSub, "updated": updatedSub, "deleted": deletedSub,
	} {
		select {
		case ev := <-sub.Events():
			t.Fatalf("extra %s event %v", name, ev)
		case <-time.After(50 * time.Millisecond):
		}
	}
}
