package redisad

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"review_sync/internal/domain"
)

// TokenStore reads access tokens kept fresh by the OAuth component under oauth:access_token:{tenant}.
type TokenStore struct {
	c        *redis.Client
	fallback string // used when a tenant has no stored token; empty disables
}

func NewTokenStore(c *redis.Client, fallback string) *TokenStore {
	return &TokenStore{c: c, fallback: strings.TrimSpace(fallback)}
}

func tokenKey(tenantID string) string { return "oauth:access_token:" + tenantID }

func (t *TokenStore) AccessToken(ctx context.Context, tenantID string) (string, error) {
	v, err := t.c.Get(ctx, tokenKey(tenantID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return "", fmt.Errorf("read token: %w", err)
	default:
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	}
	if t.fallback != "" {
		return t.fallback, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrNoCredential, tenantID)
}
