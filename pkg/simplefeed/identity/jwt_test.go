package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-feed/pkg/simplefeed"
)

func TestNewJWTVerifier(t *testing.T) {
	t.Run("requires key", func(t *testing.T) {
		_, err := NewJWTVerifier("")
		require.Error(t, err)
	})

	t.Run("with key", func(t *testing.T) {
		v, err := NewJWTVerifier("test-secret")
		require.NoError(t, err)
		assert.NotNil(t, v)
	})
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v, err := NewJWTVerifier("test-secret")
	require.NoError(t, err)

	token, err := v.Issue(&simplefeed.Principal{
		ExternalID: "user-123",
		Email:      "alice@example.com",
	}, time.Hour)
	require.NoError(t, err)

	principal, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", principal.ExternalID)
	assert.Equal(t, "alice@example.com", principal.Email)
}

func TestJWTVerifier_RejectsBadTokens(t *testing.T) {
	v, err := NewJWTVerifier("test-secret")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify(context.Background(), "not-a-token")
		assert.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewJWTVerifier("other-secret")
		require.NoError(t, err)
		token, err := other.Issue(&simplefeed.Principal{Email: "alice@example.com"}, time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := v.Issue(&simplefeed.Principal{Email: "alice@example.com"}, -time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("missing email", func(t *testing.T) {
		token, err := v.Issue(&simplefeed.Principal{ExternalID: "user-123"}, time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), token)
		assert.Error(t, err)
	})
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]simplefeed.Principal{
		"alice-token": {ExternalID: "ext-1", Email: "alice@example.com"},
	})

	principal, err := v.Verify(context.Background(), "alice-token")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", principal.Email)

	_, err = v.Verify(context.Background(), "bob-token")
	assert.Error(t, err)
}
