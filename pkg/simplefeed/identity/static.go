package identity

import (
	"context"
	"fmt"

	"github.com/tendant/simple-feed/pkg/simplefeed"
)

// StaticVerifier resolves tokens from a fixed in-memory table. It is meant
// for tests and local development where no identity provider is available.
type StaticVerifier struct {
	principals map[string]simplefeed.Principal
}

// NewStaticVerifier creates a verifier over a token-to-principal table.
func NewStaticVerifier(principals map[string]simplefeed.Principal) *StaticVerifier {
	table := make(map[string]simplefeed.Principal, len(principals))
	for token, p := range principals {
		table[token] = p
	}
	return &StaticVerifier{principals: table}
}

// Verify implements simplefeed.TokenVerifier.
func (v *StaticVerifier) Verify(ctx context.Context, token string) (*simplefeed.Principal, error) {
	p, ok := v.principals[token]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return &simplefeed.Principal{ExternalID: p.ExternalID, Email: p.Email}, nil
}
