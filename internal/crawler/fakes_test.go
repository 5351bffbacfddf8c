package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/leadcrawler/internal/heuristics"
	"github.com/JakeFAU/leadcrawler/internal/platform"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeGetter serves canned responses keyed by URL; unknown URLs return 404.
type fakeGetter struct {
	mu        sync.Mutex
	responses map[string]Response
	failures  map[string]error
	calls     []string
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{responses: map[string]Response{}, failures: map[string]error{}}
}

func (g *fakeGetter) page(url, html string) *fakeGetter {
	g.responses[url] = Response{URL: url, StatusCode: 200, Body: []byte(html)}
	return g
}

func (g *fakeGetter) status(url string, code int) *fakeGetter {
	g.responses[url] = Response{URL: url, StatusCode: code}
	return g
}

func (g *fakeGetter) fail(url string, err error) *fakeGetter {
	g.failures[url] = err
	return g
}

func (g *fakeGetter) Get(_ context.Context, url string) (Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, url)
	if err, ok := g.failures[url]; ok {
		return Response{}, err
	}
	if resp, ok := g.responses[url]; ok {
		return resp, nil
	}
	return Response{URL: url, StatusCode: 404}, nil
}

func (g *fakeGetter) callCount(url string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == url {
			n++
		}
	}
	return n
}

type fakePages struct {
	mu     sync.Mutex
	pages  map[string]PageRecord
	putErr error
	getErr error
}

func newFakePages() *fakePages {
	return &fakePages{pages: map[string]PageRecord{}}
}

func (p *fakePages) PutPage(_ context.Context, page PageRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.putErr != nil {
		return p.putErr
	}
	p.pages[page.URL] = page
	return nil
}

func (p *fakePages) GetPage(_ context.Context, url string) (PageRecord, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return PageRecord{}, false, p.getErr
	}
	page, ok := p.pages[url]
	return page, ok, nil
}

// fakeLeads mirrors the store contract: first_seen and status are set once,
// empty fields never clobber stored values.
type fakeLeads struct {
	mu        sync.Mutex
	leads     map[string]LeadRecord
	upsertErr error
	statusErr error
	upserts   int
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{leads: map[string]LeadRecord{}}
}

func (s *fakeLeads) UpsertLead(_ context.Context, lead LeadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	existing, ok := s.leads[lead.LeadID]
	if !ok {
		s.leads[lead.LeadID] = lead
		return nil
	}
	existing.LastSeen = lead.LastSeen
	existing.TouchedAt = lead.TouchedAt
	existing.TouchedBy = lead.TouchedBy
	if lead.Email != "" {
		existing.Email = lead.Email
	}
	if lead.ContactURL != "" {
		existing.ContactURL = lead.ContactURL
	}
	existing.RoleConfidence = lead.RoleConfidence
	existing.LibraryConfidence = lead.LibraryConfidence
	s.leads[lead.LeadID] = existing
	return nil
}

func (s *fakeLeads) LeadStatus(_ context.Context, leadID string) (LeadStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return "", false, s.statusErr
	}
	lead, ok := s.leads[leadID]
	return lead.Status, ok, nil
}

func (s *fakeLeads) setStatus(leadID string, status LeadStatus, itemType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := s.leads[leadID]
	lead.LeadID = leadID
	lead.Status = status
	lead.ItemType = itemType
	s.leads[leadID] = lead
}

func (s *fakeLeads) all() []LeadRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LeadRecord, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, l)
	}
	return out
}

type fakeSink struct {
	leads []LeadRecord
	err   error
}

func (s *fakeSink) WriteLead(_ context.Context, lead LeadRecord) error {
	if s.err != nil {
		return s.err
	}
	s.leads = append(s.leads, lead)
	return nil
}

// fakeQueue is an in-memory lease queue without visibility timeouts: leased
// messages that are never acked stay in the leased map.
type fakeQueue struct {
	mu      sync.Mutex
	pending [][]byte
	leased  map[string][]byte
	sent    []QueueMessage
	acked   []string
	seq     int
	sendErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{leased: map[string][]byte{}}
}

func (q *fakeQueue) pushRaw(body string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, []byte(body))
}

func (q *fakeQueue) Send(_ context.Context, msg QueueMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sendErr != nil {
		return q.sendErr
	}
	q.sent = append(q.sent, msg)
	q.pending = append(q.pending, []byte(fmt.Sprintf(`{"url":%q,"seed_url":%q}`, msg.URL, msg.SeedURL)))
	return nil
}

func (q *fakeQueue) Receive(_ context.Context, max int, _ time.Duration) ([]Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(max, len(q.pending))
	out := make([]Delivery, 0, n)
	for _, body := range q.pending[:n] {
		q.seq++
		receipt := fmt.Sprintf("r-%d", q.seq)
		q.leased[receipt] = body
		out = append(out, Delivery{Receipt: receipt, Body: body})
	}
	q.pending = q.pending[n:]
	return out, nil
}

func (q *fakeQueue) Ack(_ context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.leased[receipt]; !ok {
		return errors.New("unknown receipt")
	}
	delete(q.leased, receipt)
	q.acked = append(q.acked, receipt)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

type harness struct {
	clock     *fakeClock
	getter    *fakeGetter
	pages     *fakePages
	leads     *fakeLeads
	sink      *fakeSink
	throttle  *DomainThrottle
	fetch     *FetchLayer
	extractor *Extractor
	adapter   *LeadAdapter
}

func newHarness(fetchOpts FetchOptions, leadOpts LeadOptions) *harness {
	h := &harness{
		clock:    newFakeClock(),
		getter:   newFakeGetter(),
		pages:    newFakePages(),
		leads:    newFakeLeads(),
		sink:     &fakeSink{},
		throttle: NewDomainThrottle(0, 0),
	}
	rules := heuristics.Default()
	h.fetch = NewFetchLayer(h.getter, h.pages, h.throttle, h.clock, fetchOpts, nil)
	h.extractor = NewExtractor(rules, ExtractOptions{MaxLinks: 50})
	drafts := NewDraftWriter(Outreach{SenderName: "Harbor Sound", Website: "harborsound.test"})
	h.adapter = NewLeadAdapter(h.leads, h.sink, platform.NewHasher(), h.clock, rules, drafts, leadOpts, nil)
	return h
}

func (h *harness) engine(queue Queue, opts EngineOptions) *Engine {
	return NewEngine(h.fetch, h.extractor, h.adapter, queue, opts, nil)
}
