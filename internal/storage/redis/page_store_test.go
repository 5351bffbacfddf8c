package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

func newTestStore(t *testing.T, ttl time.Duration) (*PageStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err := NewPageStore(client, Config{TTL: ttl})
	require.NoError(t, err)
	return store, srv
}

func TestPageStoreRoundTrip(t *testing.T) {
	store, srv := newTestStore(t, 0)
	ctx := context.Background()

	_, ok, err := store.GetPage(ctx, "https://harbor.com/")
	require.NoError(t, err)
	assert.False(t, ok)

	crawled := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.PutPage(ctx, crawler.PageRecord{
		URL:         "https://harbor.com/",
		LastCrawled: crawled,
		StatusCode:  404,
	}))

	rec, ok, err := store.GetPage(ctx, "https://harbor.com/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, crawled, rec.LastCrawled)
	assert.Equal(t, 404, rec.StatusCode)
	assert.Empty(t, rec.Error)
	assert.True(t, srv.Exists(defaultKeyPrefix+"https://harbor.com/"))
	assert.Zero(t, srv.TTL(defaultKeyPrefix+"https://harbor.com/"))
}

func TestPageStoreTTL(t *testing.T) {
	store, srv := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.PutPage(ctx, crawler.PageRecord{
		URL:         "https://harbor.com/contact",
		LastCrawled: time.Now(),
		StatusCode:  crawler.TransportFailureStatus,
		Error:       "timeout",
	}))
	assert.Equal(t, time.Hour, srv.TTL(defaultKeyPrefix+"https://harbor.com/contact"))

	srv.FastForward(2 * time.Hour)
	_, ok, err := store.GetPage(ctx, "https://harbor.com/contact")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPageStoreOverwriteClearsError(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.PutPage(ctx, crawler.PageRecord{URL: "u", LastCrawled: time.Now(), StatusCode: -1, Error: "boom"}))
	require.NoError(t, store.PutPage(ctx, crawler.PageRecord{URL: "u", LastCrawled: time.Now(), StatusCode: 200}))

	rec, ok, err := store.GetPage(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200, rec.StatusCode)
	assert.Empty(t, rec.Error)
}

func TestNewClientRequiresAddress(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrEmptyAddress)

	srv := miniredis.RunT(t)
	client, err := NewClient(Config{Address: srv.Addr()})
	require.NoError(t, err)
	_ = client.Close()
}

func TestPageStorePing(t *testing.T) {
	store, srv := newTestStore(t, 0)
	require.NoError(t, store.Ping(context.Background()))

	srv.Close()
	assert.Error(t, store.Ping(context.Background()))
}
