package crawler

import "time"

// ContactType describes how a lead can be reached.
type ContactType string

// Contact types persisted on a lead.
const (
	ContactEmail ContactType = "email"
	ContactForm  ContactType = "form"
)

// LeadStatus represents the outreach lifecycle of a lead.
type LeadStatus string

// Lead status values shared with the review dashboard and cleanup tools.
// Contacted and skipped are terminal for the crawler.
const (
	StatusNew       LeadStatus = "new"
	StatusContacted LeadStatus = "contacted"
	StatusSkipped   LeadStatus = "skipped"
)

// Terminal reports whether the status was applied by a human or cleanup pass
// and must suppress further crawler writes.
func (s LeadStatus) Terminal() bool {
	return s == StatusContacted || s == StatusSkipped
}

// Item types stored in the lead table.
const (
	ItemTypeLead              = "lead"
	ItemTypeDomainSuppression = "domain_suppression"
)

// TransportFailureStatus is recorded on a PageRecord when no HTTP response was
// received.
const TransportFailureStatus = -1

// LeadRecord is a persisted candidate contact.
type LeadRecord struct {
	LeadID            string      `json:"lead_id"`
	ItemType          string      `json:"item_type"`
	Email             string      `json:"email,omitempty"`
	ContactType       ContactType `json:"contact_type"`
	ContactURL        string      `json:"contact_url,omitempty"`
	LeadDomain        string      `json:"lead_domain"`
	CompanyName       string      `json:"company_name,omitempty"`
	Role              string      `json:"role"`
	RoleConfidence    int         `json:"role_confidence"`
	LibraryConfidence int         `json:"library_confidence"`
	SourceURL         string      `json:"source_url"`
	Status            LeadStatus  `json:"status"`
	DraftMessage      string      `json:"draft_message,omitempty"`
	FirstSeen         time.Time   `json:"first_seen"`
	LastSeen          time.Time   `json:"last_seen"`
	TouchedAt         time.Time   `json:"touched_at"`
	TouchedBy         string      `json:"touched_by"`
	SkippedAt         *time.Time  `json:"skipped_at,omitempty"`
	DedupeReason      string      `json:"dedupe_reason,omitempty"`
	DedupeWinner      string      `json:"dedupe_winner,omitempty"`
}

// PageRecord is the outcome of one fetch attempt, keyed by normalized URL.
type PageRecord struct {
	URL         string    `json:"page_url"`
	LastCrawled time.Time `json:"last_crawled"`
	StatusCode  int       `json:"status_code"`
	Error       string    `json:"error,omitempty"`
}

// QueueMessage is the distributed queue payload.
type QueueMessage struct {
	URL     string `json:"url"`
	SeedURL string `json:"seed_url"`
}

// Delivery is a leased queue message. Receipt identifies the lease for Ack.
type Delivery struct {
	Receipt string
	Body    []byte
}

// Response is the raw result of a network fetch.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Stats summarizes a frontier run.
type Stats struct {
	PagesVisited   int `json:"pages_visited"`
	PagesFetched   int `json:"pages_fetched"`
	LeadsSaved     int `json:"leads_saved"`
	LeadsRejected  int `json:"leads_rejected"`
	LinksQueued    int `json:"links_queued"`
	SeedsQueued    int `json:"seeds_queued"`
	MessagesAcked  int `json:"messages_acked"`
	PoisonMessages int `json:"poison_messages"`
}
