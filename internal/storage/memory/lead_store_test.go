package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

func TestLeadStoreUpsertMerges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewLeadStore()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	require.NoError(t, store.UpsertLead(ctx, crawler.LeadRecord{
		LeadID:      "abc",
		Email:       "sync@harbor.com",
		ContactType: crawler.ContactEmail,
		CompanyName: "Harbor Light",
		Role:        "publisher",
		LastSeen:    first,
		TouchedAt:   first,
		TouchedBy:   "crawler",
	}))

	stored, ok := store.Get("abc")
	require.True(t, ok)
	assert.Equal(t, crawler.StatusNew, stored.Status)
	assert.Equal(t, crawler.ItemTypeLead, stored.ItemType)
	assert.Equal(t, first, stored.FirstSeen)

	store.SetStatus("abc", crawler.ItemTypeLead, crawler.StatusContacted)

	require.NoError(t, store.UpsertLead(ctx, crawler.LeadRecord{
		LeadID:    "abc",
		Status:    crawler.StatusNew,
		FirstSeen: later,
		LastSeen:  later,
		TouchedAt: later,
		TouchedBy: "worker-2",
	}))

	stored, _ = store.Get("abc")
	assert.Equal(t, crawler.StatusContacted, stored.Status)
	assert.Equal(t, first, stored.FirstSeen)
	assert.Equal(t, later, stored.LastSeen)
	assert.Equal(t, "worker-2", stored.TouchedBy)
	assert.Equal(t, "sync@harbor.com", stored.Email)
	assert.Equal(t, "Harbor Light", stored.CompanyName)

	status, found, err := store.LeadStatus(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, crawler.StatusContacted, status)

	_, found, err = store.LeadStatus(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPageStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewPageStore()
	_, ok, err := store.GetPage(ctx, "https://a.com/")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := crawler.PageRecord{URL: "https://a.com/", StatusCode: 200, LastCrawled: time.Unix(100, 0).UTC()}
	require.NoError(t, store.PutPage(ctx, rec))
	got, ok, err := store.GetPage(ctx, "https://a.com/")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rec, got)
	assert.Equal(t, 1, store.Len())
}
