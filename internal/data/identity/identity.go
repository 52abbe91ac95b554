// Package identity resolves bearer credentials to owner ids.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"pyscope/internal/core/errors"
	"pyscope/internal/core/ports"
)

// Provider is an IdentityProvider that holds resources until closed.
type Provider interface {
	ports.IdentityProvider
	Close() error
}

// normalize trims whitespace and an optional "Bearer " prefix.
func normalize(credential string) string {
	c := strings.TrimSpace(credential)
	if len(c) >= 7 && strings.EqualFold(c[:7], "bearer ") {
		c = strings.TrimSpace(c[7:])
	}
	return c
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func unauthenticated() error {
	return errors.New(errors.CodeUnauthenticated, "invalid or revoked credential")
}

// StaticProvider serves a fixed token to owner map.
type StaticProvider struct {
	tokens map[string]string
}

var _ Provider = (*StaticProvider)(nil)

func NewStaticProvider(tokens map[string]string) *StaticProvider {
	copied := make(map[string]string, len(tokens))
	for token, owner := range tokens {
		token = strings.TrimSpace(token)
		owner = strings.TrimSpace(owner)
		if token == "" || owner == "" {
			continue
		}
		copied[token] = owner
	}
	return &StaticProvider{tokens: copied}
}

func (p *StaticProvider) Resolve(_ context.Context, credential string) (string, error) {
	owner, ok := p.tokens[normalize(credential)]
	if !ok {
		return "", unauthenticated()
	}
	return owner, nil
}

func (p *StaticProvider) Close() error { return nil }
