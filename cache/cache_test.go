package cache

import (
	"context"
	"testing"
	"time"

	"kaizen/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	client.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = NewClient(config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

type cachedList struct {
	Titles []string `json:"titles"`
}

func TestContentCache_GetSet(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	c := NewContentCache(client, time.Minute)

	var got cachedList
	assert.ErrorIs(t, c.Get(ctx, "issues:3", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "issues:3", cachedList{Titles: []string{"Issue #1"}}))
	require.NoError(t, c.Get(ctx, "issues:3", &got))
	assert.Equal(t, []string{"Issue #1"}, got.Titles)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "issues:3", &got), ErrMiss)
}

func TestContentCache_CorruptValue(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewContentCache(client, time.Minute)

	require.NoError(t, mr.Set(contentPrefix+"bad", "{not json"))

	var got cachedList
	err := c.Get(context.Background(), "bad", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestEventLedger_MarkProcessed(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	l := NewEventLedger(client, time.Hour)

	first, err := l.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := l.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, l.Forget(ctx, "evt_1"))
	retry, err := l.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, retry)

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(eventPrefix+"evt_1"))
}

func TestEventLedger_NonPositiveTTLFallsBackToDefault(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Minute} {
		mr, client := setupRedis(t)
		l := NewEventLedger(client, ttl)

		first, err := l.MarkProcessed(context.Background(), "evt_ttl")
		require.NoError(t, err)
		assert.True(t, first)
		assert.Equal(t, defaultEventTTL, mr.TTL(eventPrefix+"evt_ttl"))
	}
}

func TestDenylist(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	d := NewDenylist(client)

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Already-expired tokens are not stored.
	require.NoError(t, d.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(denyPrefix+"jti-2"))

	mr.FastForward(2 * time.Hour)
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
