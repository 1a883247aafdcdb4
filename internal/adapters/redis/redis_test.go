package redisad

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_sync/internal/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCache_SetGetDel(t *testing.T) {
	mr, c := newTestClient(t)
	cache := NewCache(c)
	ctx := context.Background()

	var got payload
	ok, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", payload{Name: "a", Count: 2}, 60))
	assert.Equal(t, 60*time.Second, mr.TTL("k"))

	ok, err = cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload{Name: "a", Count: 2}, got)

	require.NoError(t, cache.Del(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestCache_CorruptValueIsMiss(t *testing.T) {
	mr, c := newTestClient(t)
	require.NoError(t, mr.Set("k", "not json"))

	var got payload
	ok, err := NewCache(c).Get(context.Background(), "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocker_ExclusiveUntilReleased(t *testing.T) {
	mr, c := newTestClient(t)
	l := NewLocker(c)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "sync:lock:t1:7:provider_b", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "sync:lock:t1:7:provider_b", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLocked)

	// other locations are independent
	r2, err := l.Acquire(ctx, "sync:lock:t1:8:provider_b", time.Minute)
	require.NoError(t, err)
	r2()

	release()
	assert.False(t, mr.Exists("sync:lock:t1:7:provider_b"))

	again, err := l.Acquire(ctx, "sync:lock:t1:7:provider_b", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	mr, c := newTestClient(t)
	l := NewLocker(c)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "lk", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "lk", time.Minute)
	require.NoError(t, err)

	// the stale holder must not delete the new holder's key
	stale()
	assert.True(t, mr.Exists("lk"))
	fresh()
	assert.False(t, mr.Exists("lk"))
}

func TestTokenStore(t *testing.T) {
	mr, c := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("oauth:access_token:t1", " tok-1 "))

	ts := NewTokenStore(c, "")
	tok, err := ts.AccessToken(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	_, err = ts.AccessToken(ctx, "t2")
	assert.ErrorIs(t, err, domain.ErrNoCredential)

	tok, err = NewTokenStore(c, "static").AccessToken(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "static", tok)
}

func TestTokenStore_RedisDown(t *testing.T) {
	mr, c := newTestClient(t)
	mr.Close()

	_, err := NewTokenStore(c, "static").AccessToken(context.Background(), "t1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNoCredential))
}
