package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedHTML = `<html><head><title>Tidewater Publishing | Sync</title></head><body>
<h1>Music publisher and sync licensing</h1>
<a href="mailto:licensing@tidewater-pub.com">Email licensing</a>
<a href="/releases">Releases</a>
<a href="/catalog.zip">Download</a>
<a href="https://elsewhere.com/contact">Elsewhere</a>
</body></html>`

const releasesHTML = `<html><head><title>Releases</title></head><body>
<h2>New releases</h2>
<a href="/">Home</a>
</body></html>`

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"local", "producer", "worker"} {
		m, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, Mode(name), m)
	}
	_, err := ParseMode("cluster")
	assert.Error(t, err)
}

func TestRunLocalSingleMailtoSeed(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.getter.page("https://tidewater-pub.com/", seedHTML)
	h.getter.page("https://tidewater-pub.com/releases", releasesHTML)
	ctx := context.Background()

	stats, err := h.engine(nil, EngineOptions{}).RunLocal(ctx, []string{"https://tidewater-pub.com/?utm_campaign=x"})
	require.NoError(t, err)

	leads := h.leads.all()
	require.Len(t, leads, 1)
	first := leads[0]
	assert.Equal(t, ContactEmail, first.ContactType)
	assert.Equal(t, "licensing@tidewater-pub.com", first.Email)
	assert.Equal(t, StatusNew, first.Status)
	assert.NotEmpty(t, first.DraftMessage)
	assert.Equal(t, 1, stats.LeadsSaved)
	assert.Equal(t, 2, stats.PagesVisited)
	assert.Equal(t, 2, stats.PagesFetched)
	assert.Zero(t, h.getter.callCount("https://elsewhere.com/contact"))
	assert.Zero(t, h.getter.callCount("https://tidewater-pub.com/catalog.zip"))

	// A later run refreshes last_seen without a second record.
	h.clock.Advance(24 * time.Hour)
	_, err = h.engine(nil, EngineOptions{}).RunLocal(ctx, []string{"https://tidewater-pub.com/"})
	require.NoError(t, err)

	leads = h.leads.all()
	require.Len(t, leads, 1)
	assert.Equal(t, first.LeadID, leads[0].LeadID)
	assert.Equal(t, first.FirstSeen, leads[0].FirstSeen)
	assert.True(t, leads[0].LastSeen.After(first.LastSeen))
	assert.Equal(t, StatusNew, leads[0].Status)
}

func TestRunLocalRecrawlKeepsContactedStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.getter.page("https://tidewater-pub.com/", seedHTML)
	ctx := context.Background()

	_, err := h.engine(nil, EngineOptions{}).RunLocal(ctx, []string{"https://tidewater-pub.com/"})
	require.NoError(t, err)
	leads := h.leads.all()
	require.Len(t, leads, 1)
	h.leads.setStatus(leads[0].LeadID, StatusContacted, ItemTypeLead)

	stats, err := h.engine(nil, EngineOptions{}).RunLocal(ctx, []string{"https://tidewater-pub.com/"})
	require.NoError(t, err)
	assert.Zero(t, stats.LeadsSaved)
	assert.Equal(t, 1, stats.LeadsRejected)
	assert.Equal(t, StatusContacted, h.leads.all()[0].Status)
}

func TestRunLocalBudgets(t *testing.T) {
	t.Parallel()

	t.Run("page budget", func(t *testing.T) {
		h := newHarness(FetchOptions{}, LeadOptions{})
		h.getter.page("https://tidewater-pub.com/", seedHTML)
		h.getter.page("https://tidewater-pub.com/releases", releasesHTML)

		stats, err := h.engine(nil, EngineOptions{MaxPages: 1}).RunLocal(context.Background(), []string{"https://tidewater-pub.com/"})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.PagesFetched)
		assert.Zero(t, h.getter.callCount("https://tidewater-pub.com/releases"))
	})

	t.Run("lead budget", func(t *testing.T) {
		h := newHarness(FetchOptions{}, LeadOptions{})
		h.getter.page("https://a-label.com/", `<a href="mailto:hi@a-label.com">m</a>`)
		h.getter.page("https://b-label.com/", `<a href="mailto:hi@b-label.com">m</a>`)

		stats, err := h.engine(nil, EngineOptions{MaxLeads: 1}).RunLocal(context.Background(),
			[]string{"https://a-label.com/", "https://b-label.com/"})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.LeadsSaved)
		assert.Zero(t, h.getter.callCount("https://b-label.com/"))
	})

	t.Run("invalid seeds ignored", func(t *testing.T) {
		h := newHarness(FetchOptions{}, LeadOptions{})
		stats, err := h.engine(nil, EngineOptions{}).RunLocal(context.Background(), []string{"not a url", "ftp://x.com"})
		require.NoError(t, err)
		assert.Zero(t, stats.PagesVisited)
	})

	t.Run("canceled", func(t *testing.T) {
		h := newHarness(FetchOptions{}, LeadOptions{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.engine(nil, EngineOptions{}).RunLocal(ctx, []string{"https://a.com/"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunProducer(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	q := newFakeQueue()

	stats, err := h.engine(q, EngineOptions{}).RunProducer(context.Background(),
		[]string{"https://a.com/?utm_source=x#f", "bogus", "https://b.com/"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SeedsQueued)
	assert.Equal(t, []QueueMessage{
		{URL: "https://a.com/", SeedURL: "https://a.com/"},
		{URL: "https://b.com/", SeedURL: "https://b.com/"},
	}, q.sent)
	assert.Empty(t, h.getter.calls, "producer never fetches")

	_, err = h.engine(nil, EngineOptions{}).RunProducer(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunWorker(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.getter.page("https://tidewater-pub.com/", seedHTML)
	h.getter.page("https://tidewater-pub.com/releases", releasesHTML)
	q := newFakeQueue()
	q.pushRaw(`{"url":"https://tidewater-pub.com/","seed_url":"https://tidewater-pub.com/"}`)
	q.pushRaw(`{not json`)
	q.pushRaw(`{"url":"","seed_url":"x"}`)

	stats, err := h.engine(q, EngineOptions{ReceiveBatch: 2, MaxEmptyReceives: 2}).RunWorker(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.PoisonMessages)
	assert.Equal(t, 1, stats.LeadsSaved)
	assert.Equal(t, 2, stats.PagesFetched)
	assert.Empty(t, q.leased, "every received message is acked")
	assert.Equal(t, stats.MessagesAcked, len(q.acked))
	assert.Contains(t, q.sent, QueueMessage{URL: "https://tidewater-pub.com/releases", SeedURL: "https://tidewater-pub.com/"})
	for _, msg := range q.sent {
		assert.Equal(t, "tidewater-pub.com", SiteHost(msg.URL))
	}
}

func TestRunWorkerBudgetLeavesBatchUnacked(t *testing.T) {
	t.Parallel()
	h := newHarness(FetchOptions{}, LeadOptions{})
	h.getter.page("https://a.com/", "<p>a</p>").page("https://b.com/", "<p>b</p>").page("https://c.com/", "<p>c</p>")
	q := newFakeQueue()
	for _, u := range []string{"https://a.com/", "https://b.com/", "https://c.com/"} {
		require.NoError(t, q.Send(context.Background(), QueueMessage{URL: u, SeedURL: u}))
	}

	stats, err := h.engine(q, EngineOptions{MaxPages: 1, ReceiveBatch: 3}).RunWorker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PagesFetched)
	assert.Equal(t, 1, stats.MessagesAcked)
	assert.Len(t, q.leased, 2, "remaining leases expire and redeliver")
}

func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	msg, err := DecodeMessage([]byte(`{"url":"https://a.com/x#frag"}`))
	require.NoError(t, err)
	assert.Equal(t, QueueMessage{URL: "https://a.com/x", SeedURL: "https://a.com/x"}, msg)

	for _, body := range []string{``, `null`, `[]`, `{"url":"mailto:x@y.com"}`} {
		_, err := DecodeMessage([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedMessage, body)
	}
}
