package crawler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchLayerSuccessRecordsPage(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.getter.page("https://a.com/p?id=1", "<html>ok</html>")

	body, ok := h.fetch.Fetch(context.Background(), "https://a.com/p?id=1&utm_source=x#top")
	require.True(t, ok)
	assert.Equal(t, "<html>ok</html>", string(body))

	rec, found, err := h.pages.GetPage(context.Background(), "https://a.com/p?id=1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 200, rec.StatusCode)
	assert.Equal(t, h.clock.Now(), rec.LastCrawled)
	assert.Empty(t, rec.Error)
}

func TestFetchLayerNon200(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.getter.status("https://a.com/gone", 410)

	body, ok := h.fetch.Fetch(context.Background(), "https://a.com/gone")
	assert.False(t, ok)
	assert.Nil(t, body)
	assert.Equal(t, 410, h.pages.pages["https://a.com/gone"].StatusCode)
}

func TestFetchLayerTransportFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.getter.fail("https://a.com/x", errors.New("dial tcp: "+strings.Repeat("x", 500)))

	_, ok := h.fetch.Fetch(context.Background(), "https://a.com/x")
	assert.False(t, ok)
	rec := h.pages.pages["https://a.com/x"]
	assert.Equal(t, TransportFailureStatus, rec.StatusCode)
	assert.Len(t, rec.Error, 300)
	assert.True(t, strings.HasPrefix(rec.Error, "dial tcp"))
}

func TestFetchLayerVisitedCache(t *testing.T) {
	t.Parallel()

	t.Run("forever", func(t *testing.T) {
		h := newHarness(FetchOptions{UseVisitedCache: true}, LeadOptions{})
		h.getter.page("https://a.com/", "hi")
		ctx := context.Background()

		_, ok := h.fetch.Fetch(ctx, "https://a.com/")
		require.True(t, ok)
		h.clock.Advance(365 * 24 * time.Hour)
		_, ok = h.fetch.Fetch(ctx, "https://a.com/#again")
		assert.False(t, ok)
		assert.Equal(t, 1, h.getter.callCount("https://a.com/"))
	})

	t.Run("ttl", func(t *testing.T) {
		h := newHarness(FetchOptions{UseVisitedCache: true, VisitedTTL: time.Hour}, LeadOptions{})
		h.getter.page("https://a.com/", "hi")
		ctx := context.Background()

		_, ok := h.fetch.Fetch(ctx, "https://a.com/")
		require.True(t, ok)
		h.clock.Advance(30 * time.Minute)
		_, ok = h.fetch.Fetch(ctx, "https://a.com/")
		assert.False(t, ok)
		h.clock.Advance(31 * time.Minute)
		_, ok = h.fetch.Fetch(ctx, "https://a.com/")
		assert.True(t, ok)
		assert.Equal(t, 2, h.getter.callCount("https://a.com/"))
	})

	t.Run("lookup failure fetches anyway", func(t *testing.T) {
		h := newHarness(FetchOptions{UseVisitedCache: true}, LeadOptions{})
		h.getter.page("https://a.com/", "hi")
		h.pages.getErr = errors.New("store down")

		_, ok := h.fetch.Fetch(context.Background(), "https://a.com/")
		assert.True(t, ok)
	})
}

func TestFetchLayerDomainBudget(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.throttle = NewDomainThrottle(0, 1)
	h.fetch = NewFetchLayer(h.getter, h.pages, h.throttle, h.clock, FetchOptions{}, nil)
	h.getter.page("https://a.com/1", "one").page("https://a.com/2", "two").page("https://b.com/", "b")
	ctx := context.Background()

	_, ok := h.fetch.Fetch(ctx, "https://a.com/1")
	assert.True(t, ok)
	_, ok = h.fetch.Fetch(ctx, "https://a.com/2")
	assert.False(t, ok)
	_, ok = h.fetch.Fetch(ctx, "https://b.com/")
	assert.True(t, ok)

	assert.Zero(t, h.getter.callCount("https://a.com/2"))
	_, recorded := h.pages.pages["https://a.com/2"]
	assert.False(t, recorded, "over-budget urls are not attempted")
}

func TestFetchLayerPageWriteFailureIsBestEffort(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.getter.page("https://a.com/", "hi")
	h.pages.putErr = errors.New("write failed")

	body, ok := h.fetch.Fetch(context.Background(), "https://a.com/")
	assert.True(t, ok)
	assert.Equal(t, "hi", string(body))
}

func TestFetchLayerRejectsNonHTTP(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})

	_, ok := h.fetch.Fetch(context.Background(), "mailto:someone@a.com")
	assert.False(t, ok)
	assert.Empty(t, h.getter.calls)
}
